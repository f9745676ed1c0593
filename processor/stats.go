package processor

import (
	"sort"

	"github.com/shopspring/decimal"

	"quotelens/models"
)

// Summarize aggregates normalized orders into one row per market. Rows are
// ordered by total resting notional, largest first, with the market symbol
// breaking ties so output order is stable.
func Summarize(orders []models.NormalizedOrder) []models.MarketSummary {
	byMarket := make(map[string][]models.NormalizedOrder)
	for _, order := range orders {
		byMarket[order.Market] = append(byMarket[order.Market], order)
	}

	summaries := make([]models.MarketSummary, 0, len(byMarket))
	for market, group := range byMarket {
		summaries = append(summaries, summarizeMarket(market, group))
	}

	sort.Slice(summaries, func(i, j int) bool {
		ti, tj := summaries[i].TotalNotional(), summaries[j].TotalNotional()
		if !ti.Equal(tj) {
			return ti.GreaterThan(tj)
		}
		return summaries[i].Market < summaries[j].Market
	})

	return summaries
}

func summarizeMarket(market string, orders []models.NormalizedOrder) models.MarketSummary {
	summary := models.MarketSummary{
		Market:     market,
		Mid:        orders[0].Mid,
		OrderCount: len(orders),
	}

	var bestBid, bestAsk decimal.Decimal
	var haveBid, haveAsk bool
	var bidDistances, askDistances []decimal.Decimal

	for _, order := range orders {
		switch order.Side {
		case models.SideBid:
			summary.BidNotional = summary.BidNotional.Add(order.Notional)
			if !haveBid || order.Price.GreaterThan(bestBid) {
				bestBid, haveBid = order.Price, true
			}
			bidDistances = append(bidDistances, order.DistanceAbs())
		case models.SideAsk:
			summary.AskNotional = summary.AskNotional.Add(order.Notional)
			if !haveAsk || order.Price.LessThan(bestAsk) {
				bestAsk, haveAsk = order.Price, true
			}
			askDistances = append(askDistances, order.DistanceAbs())
		}
	}

	// Spread is only defined when the wallet quotes both sides.
	if haveBid && haveAsk {
		spread := bestAsk.Sub(bestBid).Div(summary.Mid).Mul(bpsFactor)
		summary.SpreadBps = decimal.NewNullDecimal(spread)
	}

	deltas := append(spacingDeltas(bidDistances), spacingDeltas(askDistances)...)
	if len(deltas) > 0 {
		sum := decimal.Zero
		for _, d := range deltas {
			sum = sum.Add(d)
		}
		summary.AvgSpacingBps = decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(len(deltas)))))
	}

	return summary
}

// spacingDeltas returns the gaps between consecutive levels on one side,
// walking outward from mid. A side with fewer than two orders has no gaps.
func spacingDeltas(distances []decimal.Decimal) []decimal.Decimal {
	if len(distances) < 2 {
		return nil
	}
	sort.Slice(distances, func(i, j int) bool { return distances[i].LessThan(distances[j]) })

	deltas := make([]decimal.Decimal, 0, len(distances)-1)
	for i := 1; i < len(distances); i++ {
		deltas = append(deltas, distances[i].Sub(distances[i-1]))
	}
	return deltas
}
