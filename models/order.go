package models

import "github.com/shopspring/decimal"

// Side identifies which half of the book an order rests on.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// RawOrder is a resting order exactly as reported by the exchange. It is
// immutable once fetched.
type RawOrder struct {
	Market    string
	Side      Side
	Price     decimal.Decimal
	Size      decimal.Decimal
	OrderID   int64
	Timestamp int64
}

// MidPrices maps a market symbol to its mid price at snapshot time. A run
// fetches the mapping once, so every derived distance is mutually consistent.
type MidPrices map[string]decimal.Decimal

// NormalizedOrder joins a RawOrder with the mid price snapshot.
//
// DistanceBps is signed: bids rest at or below mid and carry distance <= 0,
// asks >= 0. Consumers that bucket by distance use the magnitude.
type NormalizedOrder struct {
	RawOrder
	Mid         decimal.Decimal
	DistanceBps decimal.Decimal
	Notional    decimal.Decimal
}

// DistanceAbs returns the unsigned distance from mid in basis points.
func (o NormalizedOrder) DistanceAbs() decimal.Decimal {
	return o.DistanceBps.Abs()
}

// SkippedOrder records an order excluded from statistics together with the
// reason, so a run can surface it without failing.
type SkippedOrder struct {
	Order  RawOrder
	Reason string
}

// Tier is one rung of a quoting ladder: the orders on one side of one market
// that fall within a contiguous band of distance from mid. Tiers are derived
// each run, never persisted.
type Tier struct {
	Market          string
	Side            Side
	LevelIndex      int // 1 = closest to mid
	DistanceLowBps  decimal.Decimal
	DistanceHighBps decimal.Decimal
	TotalSize       decimal.Decimal
	TotalNotional   decimal.Decimal
	OrderCount      int
	// SizeMultiple is this tier's total size relative to the previous tier.
	// Unset for the first tier of a side.
	SizeMultiple decimal.NullDecimal
}

// MarketSummary aggregates one market's resting orders. SpreadBps and
// AvgSpacingBps are unset when the market lacks the orders to define them.
type MarketSummary struct {
	Market        string
	Mid           decimal.Decimal
	SpreadBps     decimal.NullDecimal
	BidNotional   decimal.Decimal
	AskNotional   decimal.Decimal
	OrderCount    int
	AvgSpacingBps decimal.NullDecimal
}

// TotalNotional is the combined resting value on both sides.
func (s MarketSummary) TotalNotional() decimal.Decimal {
	return s.BidNotional.Add(s.AskNotional)
}
