package hyperliquid

import (
	"fmt"

	"github.com/shopspring/decimal"

	"quotelens/models"
)

// infoRequest is the body of every info endpoint call. The Type field
// discriminates the query; User is only set for account-scoped queries.
type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

// wireOrder is one resting order as returned by the openOrders query.
// Prices and sizes arrive as decimal strings.
type wireOrder struct {
	Coin      string `json:"coin"`
	Side      string `json:"side"`
	LimitPx   string `json:"limitPx"`
	Sz        string `json:"sz"`
	Oid       int64  `json:"oid"`
	Timestamp int64  `json:"timestamp"`
}

func (w wireOrder) toOrder() (models.RawOrder, error) {
	if w.Coin == "" {
		return models.RawOrder{}, fmt.Errorf("%w: order %d has no coin", ErrMalformedResponse, w.Oid)
	}

	var side models.Side
	switch w.Side {
	case "B":
		side = models.SideBid
	case "A":
		side = models.SideAsk
	default:
		return models.RawOrder{}, fmt.Errorf("%w: order %d side %q", ErrMalformedResponse, w.Oid, w.Side)
	}

	price, err := decimal.NewFromString(w.LimitPx)
	if err != nil {
		return models.RawOrder{}, fmt.Errorf("%w: order %d limitPx %q", ErrMalformedResponse, w.Oid, w.LimitPx)
	}
	size, err := decimal.NewFromString(w.Sz)
	if err != nil {
		return models.RawOrder{}, fmt.Errorf("%w: order %d sz %q", ErrMalformedResponse, w.Oid, w.Sz)
	}

	return models.RawOrder{
		Market:    w.Coin,
		Side:      side,
		Price:     price,
		Size:      size,
		OrderID:   w.Oid,
		Timestamp: w.Timestamp,
	}, nil
}

// Clearinghouse state. Only the position fields the reports need are decoded;
// the endpoint returns more.
type clearinghouseStateResponse struct {
	AssetPositions []wireAssetPosition `json:"assetPositions"`
}

type wireAssetPosition struct {
	Position wirePosition `json:"position"`
}

type wirePosition struct {
	Coin           string         `json:"coin"`
	Szi            string         `json:"szi"`
	EntryPx        string         `json:"entryPx"`
	UnrealizedPnl  string         `json:"unrealizedPnl"`
	ReturnOnEquity string         `json:"returnOnEquity"`
	Leverage       *wireLeverage  `json:"leverage"`
	MarginUsed     string         `json:"marginUsed"`
	LiquidationPx  *string        `json:"liquidationPx"`
	CumFunding     wireCumFunding `json:"cumFunding"`
}

type wireLeverage struct {
	Type  string `json:"type"`
	Value int    `json:"value"`
}

type wireCumFunding struct {
	AllTime string `json:"allTime"`
}

func (w wirePosition) toPosition() (models.Position, error) {
	if w.Coin == "" {
		return models.Position{}, fmt.Errorf("%w: position has no coin", ErrMalformedResponse)
	}

	size, err := decimal.NewFromString(w.Szi)
	if err != nil {
		return models.Position{}, fmt.Errorf("%w: position %s szi %q", ErrMalformedResponse, w.Coin, w.Szi)
	}
	entry, err := decimal.NewFromString(w.EntryPx)
	if err != nil {
		return models.Position{}, fmt.Errorf("%w: position %s entryPx %q", ErrMalformedResponse, w.Coin, w.EntryPx)
	}
	pnl, err := decimal.NewFromString(w.UnrealizedPnl)
	if err != nil {
		return models.Position{}, fmt.Errorf("%w: position %s unrealizedPnl %q", ErrMalformedResponse, w.Coin, w.UnrealizedPnl)
	}
	roe, err := decimal.NewFromString(w.ReturnOnEquity)
	if err != nil {
		return models.Position{}, fmt.Errorf("%w: position %s returnOnEquity %q", ErrMalformedResponse, w.Coin, w.ReturnOnEquity)
	}

	pos := models.Position{
		Coin:           w.Coin,
		Size:           size,
		EntryPrice:     entry,
		UnrealizedPnl:  pnl,
		ReturnOnEquity: roe,
		Leverage:       1,
	}

	if w.Leverage != nil && w.Leverage.Value > 0 {
		pos.Leverage = w.Leverage.Value
	}
	if w.MarginUsed != "" {
		margin, err := decimal.NewFromString(w.MarginUsed)
		if err != nil {
			return models.Position{}, fmt.Errorf("%w: position %s marginUsed %q", ErrMalformedResponse, w.Coin, w.MarginUsed)
		}
		pos.MarginUsed = margin
	}
	if w.LiquidationPx != nil && *w.LiquidationPx != "" {
		liq, err := decimal.NewFromString(*w.LiquidationPx)
		if err != nil {
			return models.Position{}, fmt.Errorf("%w: position %s liquidationPx %q", ErrMalformedResponse, w.Coin, *w.LiquidationPx)
		}
		pos.LiquidationPrice = decimal.NewNullDecimal(liq)
	}
	if w.CumFunding.AllTime != "" {
		funding, err := decimal.NewFromString(w.CumFunding.AllTime)
		if err != nil {
			return models.Position{}, fmt.Errorf("%w: position %s cumFunding %q", ErrMalformedResponse, w.Coin, w.CumFunding.AllTime)
		}
		pos.CumulativeFunding = funding
	}

	return pos, nil
}

type spotClearinghouseStateResponse struct {
	Balances []wireBalance `json:"balances"`
}

type wireBalance struct {
	Coin     string `json:"coin"`
	Total    string `json:"total"`
	Hold     string `json:"hold"`
	EntryNtl string `json:"entryNtl"`
}

func (w wireBalance) toBalance() (models.Balance, error) {
	if w.Coin == "" {
		return models.Balance{}, fmt.Errorf("%w: balance has no coin", ErrMalformedResponse)
	}

	total, err := decimal.NewFromString(w.Total)
	if err != nil {
		return models.Balance{}, fmt.Errorf("%w: balance %s total %q", ErrMalformedResponse, w.Coin, w.Total)
	}

	bal := models.Balance{Coin: w.Coin, Total: total}

	if w.Hold != "" {
		hold, err := decimal.NewFromString(w.Hold)
		if err != nil {
			return models.Balance{}, fmt.Errorf("%w: balance %s hold %q", ErrMalformedResponse, w.Coin, w.Hold)
		}
		bal.Hold = hold
	}
	if w.EntryNtl != "" {
		entry, err := decimal.NewFromString(w.EntryNtl)
		if err != nil {
			return models.Balance{}, fmt.Errorf("%w: balance %s entryNtl %q", ErrMalformedResponse, w.Coin, w.EntryNtl)
		}
		bal.EntryNotional = entry
	}

	return bal, nil
}
