package processor

import (
	"sort"

	"github.com/shopspring/decimal"

	"quotelens/models"
)

// DefaultRatioThreshold opens a new tier when an order rests at least 1.5
// times further from mid than the tier's first order.
var DefaultRatioThreshold = decimal.NewFromFloat(1.5)

// BuildTiers groups each market side's resting orders into quoting-ladder
// tiers. Orders are walked outward from mid; a new tier opens whenever the
// distance ratio against the current tier's opening order reaches the
// threshold. Output is ordered by market, bids before asks, then level.
func BuildTiers(orders []models.NormalizedOrder, threshold decimal.Decimal) []models.Tier {
	type sideKey struct {
		market string
		side   models.Side
	}

	groups := make(map[sideKey][]models.NormalizedOrder)
	for _, order := range orders {
		key := sideKey{market: order.Market, side: order.Side}
		groups[key] = append(groups[key], order)
	}

	keys := make([]sideKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].market != keys[j].market {
			return keys[i].market < keys[j].market
		}
		return keys[i].side == models.SideBid && keys[j].side == models.SideAsk
	})

	var tiers []models.Tier
	for _, key := range keys {
		tiers = append(tiers, tierSide(key.market, key.side, groups[key], threshold)...)
	}
	return tiers
}

// tierSide buckets one market side. Orders are sorted by distance magnitude
// with order ID as the tie-breaker so reruns over the same snapshot produce
// identical ladders.
func tierSide(market string, side models.Side, orders []models.NormalizedOrder, threshold decimal.Decimal) []models.Tier {
	sort.Slice(orders, func(i, j int) bool {
		di, dj := orders[i].DistanceAbs(), orders[j].DistanceAbs()
		if !di.Equal(dj) {
			return di.LessThan(dj)
		}
		return orders[i].OrderID < orders[j].OrderID
	})

	var tiers []models.Tier
	var current *models.Tier
	var opening decimal.Decimal

	for _, order := range orders {
		d := order.DistanceAbs()

		if current != nil && startsNewTier(opening, d, threshold) {
			tiers = append(tiers, *current)
			current = nil
		}

		if current == nil {
			current = &models.Tier{
				Market:         market,
				Side:           side,
				LevelIndex:     len(tiers) + 1,
				DistanceLowBps: d,
			}
			opening = d
		}

		current.DistanceHighBps = d
		current.TotalSize = current.TotalSize.Add(order.Size)
		current.TotalNotional = current.TotalNotional.Add(order.Notional)
		current.OrderCount++
	}
	if current != nil {
		tiers = append(tiers, *current)
	}

	for i := 1; i < len(tiers); i++ {
		prev := tiers[i-1].TotalSize
		if !prev.IsZero() {
			tiers[i].SizeMultiple = decimal.NewNullDecimal(tiers[i].TotalSize.Div(prev))
		}
	}

	return tiers
}

// startsNewTier decides whether an order at distance d belongs to a new tier
// relative to the current tier's opening distance. A tier opened at mid
// itself cannot absorb any order away from mid.
func startsNewTier(opening, d, threshold decimal.Decimal) bool {
	if opening.IsZero() {
		return !d.IsZero()
	}
	return d.Div(opening).GreaterThanOrEqual(threshold)
}
