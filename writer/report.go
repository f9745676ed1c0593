package writer

import (
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"quotelens/models"
)

// Report table file names. Every run overwrites the previous set.
const (
	SummaryFile   = "quoting_summary.csv"
	DetailFile    = "quoting_detail.csv"
	TiersFile     = "quoting_tiers.csv"
	SkippedFile   = "skipped_orders.csv"
	PositionsFile = "positions.csv"
	BalancesFile  = "balances.csv"
)

func nullStr(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// WriteSummary writes one row per market, ordered by total resting notional.
func WriteSummary(dir string, summaries []models.MarketSummary) error {
	header := []string{"market", "mid", "spread_bps", "bid_notional", "ask_notional", "order_count", "avg_spacing_bps"}

	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			s.Market,
			s.Mid.String(),
			nullStr(s.SpreadBps),
			s.BidNotional.String(),
			s.AskNotional.String(),
			strconv.Itoa(s.OrderCount),
			nullStr(s.AvgSpacingBps),
		})
	}
	return writeCSV(dir, SummaryFile, header, rows)
}

// WriteDetail writes every normalized order with its ladder position. Rows
// are grouped per market, bids before asks, closest to mid first, and
// level_index counts outward from mid within each side.
func WriteDetail(dir string, orders []models.NormalizedOrder) error {
	header := []string{"market", "side", "price", "size", "notional", "distance_bps", "level_index"}

	sorted := detailOrder(orders)
	rows := make([][]string, 0, len(sorted))

	level := 0
	var prevMarket string
	var prevSide models.Side
	for i, o := range sorted {
		if i == 0 || o.Market != prevMarket || o.Side != prevSide {
			level = 0
			prevMarket, prevSide = o.Market, o.Side
		}
		level++

		rows = append(rows, []string{
			o.Market,
			string(o.Side),
			o.Price.String(),
			o.Size.String(),
			o.Notional.String(),
			o.DistanceBps.String(),
			strconv.Itoa(level),
		})
	}
	return writeCSV(dir, DetailFile, header, rows)
}

// detailOrder sorts a copy of the orders into report order without touching
// the caller's slice.
func detailOrder(orders []models.NormalizedOrder) []models.NormalizedOrder {
	sorted := make([]models.NormalizedOrder, len(orders))
	copy(sorted, orders)

	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Market != b.Market {
			return a.Market < b.Market
		}
		if a.Side != b.Side {
			return a.Side == models.SideBid
		}
		da, db := a.DistanceAbs(), b.DistanceAbs()
		if !da.Equal(db) {
			return da.LessThan(db)
		}
		return a.OrderID < b.OrderID
	})
	return sorted
}

// WriteTiers writes the quoting-ladder tiers, one row per tier.
func WriteTiers(dir string, tiers []models.Tier) error {
	header := []string{
		"market", "side", "level_index",
		"distance_low_bps", "distance_high_bps",
		"total_size", "total_notional", "order_count",
		"size_multiple_vs_prior_tier",
	}

	rows := make([][]string, 0, len(tiers))
	for _, tier := range tiers {
		rows = append(rows, []string{
			tier.Market,
			string(tier.Side),
			strconv.Itoa(tier.LevelIndex),
			tier.DistanceLowBps.String(),
			tier.DistanceHighBps.String(),
			tier.TotalSize.String(),
			tier.TotalNotional.String(),
			strconv.Itoa(tier.OrderCount),
			nullStr(tier.SizeMultiple),
		})
	}
	return writeCSV(dir, TiersFile, header, rows)
}

// WriteSkipped records the orders a run excluded and why. The table is
// written even when empty so a stale file from a prior run cannot linger.
func WriteSkipped(dir string, skipped []models.SkippedOrder) error {
	header := []string{"market", "side", "price", "size", "order_id", "reason"}

	sorted := make([]models.SkippedOrder, len(skipped))
	copy(sorted, skipped)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Order.Market != sorted[j].Order.Market {
			return sorted[i].Order.Market < sorted[j].Order.Market
		}
		return sorted[i].Order.OrderID < sorted[j].Order.OrderID
	})

	rows := make([][]string, 0, len(sorted))
	for _, s := range sorted {
		rows = append(rows, []string{
			s.Order.Market,
			string(s.Order.Side),
			s.Order.Price.String(),
			s.Order.Size.String(),
			strconv.FormatInt(s.Order.OrderID, 10),
			s.Reason,
		})
	}
	return writeCSV(dir, SkippedFile, header, rows)
}

// WritePositions writes the perpetual positions, largest value first.
func WritePositions(dir string, positions []models.Position) error {
	header := []string{
		"coin", "side", "size", "entry_price", "position_value",
		"unrealized_pnl", "return_on_equity", "leverage",
		"margin_used", "liquidation_price", "cumulative_funding",
	}

	sorted := make([]models.Position, len(positions))
	copy(sorted, positions)
	sort.Slice(sorted, func(i, j int) bool {
		vi, vj := sorted[i].Value(), sorted[j].Value()
		if !vi.Equal(vj) {
			return vi.GreaterThan(vj)
		}
		return sorted[i].Coin < sorted[j].Coin
	})

	rows := make([][]string, 0, len(sorted))
	for _, p := range sorted {
		rows = append(rows, []string{
			p.Coin,
			p.SideLabel(),
			p.Size.String(),
			p.EntryPrice.String(),
			p.Value().String(),
			p.UnrealizedPnl.String(),
			p.ReturnOnEquity.String(),
			strconv.Itoa(p.Leverage),
			p.MarginUsed.String(),
			nullStr(p.LiquidationPrice),
			p.CumulativeFunding.String(),
		})
	}
	return writeCSV(dir, PositionsFile, header, rows)
}

// WriteBalances writes the spot balances, largest entry notional first.
func WriteBalances(dir string, balances []models.Balance) error {
	header := []string{"coin", "total", "hold", "available", "entry_notional"}

	sorted := make([]models.Balance, len(balances))
	copy(sorted, balances)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].EntryNotional.Equal(sorted[j].EntryNotional) {
			return sorted[i].EntryNotional.GreaterThan(sorted[j].EntryNotional)
		}
		return sorted[i].Coin < sorted[j].Coin
	})

	rows := make([][]string, 0, len(sorted))
	for _, b := range sorted {
		rows = append(rows, []string{
			b.Coin,
			b.Total.String(),
			b.Hold.String(),
			b.Available().String(),
			b.EntryNotional.String(),
		})
	}
	return writeCSV(dir, BalancesFile, header, rows)
}
