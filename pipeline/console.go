package pipeline

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"quotelens/models"
)

const digestMarkets = 10

// PrintDigest writes a terse console view of the run: the largest quoted
// markets, spread statistics and account exposure. Reports on disk carry the
// full detail; this is for a human watching the run.
func PrintDigest(out io.Writer, report *Report, mode Mode) {
	snap := report.Snapshot

	fmt.Fprintf(out, "run %s at %s\n", snap.RunID, snap.FetchedAt.UTC().Format("2006-01-02 15:04:05 UTC"))

	if mode.wantsOrders() {
		printQuotingDigest(out, report)
	}
	if mode.wantsPositions() {
		printPositionsDigest(out, snap.Positions)
	}
	if mode.wantsBalances() {
		printBalancesDigest(out, snap.Balances)
	}

	for _, warning := range snap.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}
}

func printQuotingDigest(out io.Writer, report *Report) {
	total := decimal.Zero
	for _, s := range report.Summaries {
		total = total.Add(s.TotalNotional())
	}

	fmt.Fprintf(out, "\nresting orders: %d across %d markets, %s notional",
		len(report.Orders), len(report.Summaries), total.StringFixed(2))
	if len(report.Skipped) > 0 {
		fmt.Fprintf(out, " (%d skipped)", len(report.Skipped))
	}
	fmt.Fprintln(out)

	if spread := spreadStats(report.Summaries); spread != nil {
		fmt.Fprintf(out, "spread bps: min %s avg %s max %s\n",
			spread.min.StringFixed(2), spread.avg.StringFixed(2), spread.max.StringFixed(2))
	}

	limit := len(report.Summaries)
	if limit > digestMarkets {
		limit = digestMarkets
	}
	for _, s := range report.Summaries[:limit] {
		spread := "-"
		if s.SpreadBps.Valid {
			spread = s.SpreadBps.Decimal.StringFixed(2)
		}
		fmt.Fprintf(out, "  %-12s notional %14s  spread %8s  orders %3d\n",
			s.Market, s.TotalNotional().StringFixed(2), spread, s.OrderCount)
	}
}

type spreadSummary struct {
	min, max, avg decimal.Decimal
}

func spreadStats(summaries []models.MarketSummary) *spreadSummary {
	var stats *spreadSummary
	sum := decimal.Zero
	count := 0

	for _, s := range summaries {
		if !s.SpreadBps.Valid {
			continue
		}
		v := s.SpreadBps.Decimal
		if stats == nil {
			stats = &spreadSummary{min: v, max: v}
		} else {
			if v.LessThan(stats.min) {
				stats.min = v
			}
			if v.GreaterThan(stats.max) {
				stats.max = v
			}
		}
		sum = sum.Add(v)
		count++
	}
	if stats == nil {
		return nil
	}
	stats.avg = sum.Div(decimal.NewFromInt(int64(count)))
	return stats
}

func printPositionsDigest(out io.Writer, positions []models.Position) {
	if len(positions) == 0 {
		fmt.Fprintf(out, "\nno open positions\n")
		return
	}

	long, short, pnl := decimal.Zero, decimal.Zero, decimal.Zero
	for _, p := range positions {
		if p.Size.Sign() < 0 {
			short = short.Add(p.Value())
		} else {
			long = long.Add(p.Value())
		}
		pnl = pnl.Add(p.UnrealizedPnl)
	}

	fmt.Fprintf(out, "\npositions: %d open, long %s short %s net %s, unrealized pnl %s\n",
		len(positions),
		long.StringFixed(2), short.StringFixed(2),
		long.Sub(short).StringFixed(2), pnl.StringFixed(2))
}

func printBalancesDigest(out io.Writer, balances []models.Balance) {
	if len(balances) == 0 {
		fmt.Fprintf(out, "\nno spot balances\n")
		return
	}

	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b.EntryNotional)
	}
	fmt.Fprintf(out, "\nspot balances: %d tokens, %s entry notional\n",
		len(balances), total.StringFixed(2))
}
