package models

import "github.com/shopspring/decimal"

// Position is one perpetual position from the clearinghouse state.
// Size is signed; negative means short.
type Position struct {
	Coin              string
	Size              decimal.Decimal
	EntryPrice        decimal.Decimal
	UnrealizedPnl     decimal.Decimal
	ReturnOnEquity    decimal.Decimal
	Leverage          int
	MarginUsed        decimal.Decimal
	LiquidationPrice  decimal.NullDecimal
	CumulativeFunding decimal.Decimal
}

// SideLabel reports LONG or SHORT based on the sign of Size.
func (p Position) SideLabel() string {
	if p.Size.Sign() < 0 {
		return "SHORT"
	}
	return "LONG"
}

// Value is the absolute position value at entry price.
func (p Position) Value() decimal.Decimal {
	return p.Size.Abs().Mul(p.EntryPrice)
}

// Balance is one spot token balance.
type Balance struct {
	Coin          string
	Total         decimal.Decimal
	Hold          decimal.Decimal
	EntryNotional decimal.Decimal
}

// Available is the portion of Total not held against open orders.
func (b Balance) Available() decimal.Decimal {
	return b.Total.Sub(b.Hold)
}
