package processor

import (
	"fmt"

	"github.com/shopspring/decimal"

	"quotelens/logger"
	"quotelens/models"
)

var bpsFactor = decimal.NewFromInt(10000)

// MissingMidError reports an order whose market had no usable mid price in
// the snapshot. The order is skipped, not fatal.
type MissingMidError struct {
	Market string
}

func (e *MissingMidError) Error() string {
	return fmt.Sprintf("no mid price for market %s", e.Market)
}

// NormalizeResult splits a batch into orders enriched with mid-relative
// fields and orders that had to be excluded.
type NormalizeResult struct {
	Orders  []models.NormalizedOrder
	Skipped []models.SkippedOrder
}

// Normalize joins each raw order with its market's mid price and derives the
// signed distance from mid in basis points and the notional value. Orders in
// markets with a missing or zero mid are diverted to Skipped so one bad
// market cannot sink the run.
func Normalize(orders []models.RawOrder, mids models.MidPrices) NormalizeResult {
	log := logger.GetLogger().WithComponent("normalizer")

	result := NormalizeResult{
		Orders: make([]models.NormalizedOrder, 0, len(orders)),
	}

	for _, order := range orders {
		mid, ok := mids[order.Market]
		if !ok || mid.IsZero() {
			reason := (&MissingMidError{Market: order.Market}).Error()
			result.Skipped = append(result.Skipped, models.SkippedOrder{Order: order, Reason: reason})
			logger.IncrementSkippedOrder()
			log.WithFields(logger.Fields{
				"market":   order.Market,
				"order_id": order.OrderID,
			}).Warn("skipping order without mid price")
			continue
		}

		distance := order.Price.Sub(mid).Div(mid).Mul(bpsFactor)

		result.Orders = append(result.Orders, models.NormalizedOrder{
			RawOrder:    order,
			Mid:         mid,
			DistanceBps: distance,
			Notional:    order.Price.Mul(order.Size),
		})
	}

	if len(result.Skipped) > 0 {
		log.WithFields(logger.Fields{
			"normalized": len(result.Orders),
			"skipped":    len(result.Skipped),
		}).Warn("batch normalized with skipped orders")
	}

	return result
}
