package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"quotelens/config"
	"quotelens/models"
	"quotelens/writer"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// stubFetcher serves canned snapshot data, with per-call failure injection.
type stubFetcher struct {
	orders    []models.RawOrder
	mids      models.MidPrices
	positions []models.Position
	balances  []models.Balance

	ordersErr    error
	midsErr      error
	positionsErr error
	balancesErr  error
}

func (f *stubFetcher) OpenOrders(ctx context.Context, user string) ([]models.RawOrder, error) {
	return f.orders, f.ordersErr
}

func (f *stubFetcher) AllMids(ctx context.Context) (models.MidPrices, error) {
	return f.mids, f.midsErr
}

func (f *stubFetcher) Positions(ctx context.Context, user string) ([]models.Position, error) {
	return f.positions, f.positionsErr
}

func (f *stubFetcher) SpotBalances(ctx context.Context, user string) ([]models.Balance, error) {
	return f.balances, f.balancesErr
}

// ladderFetcher serves a two-level ladder on both sides of BTC at mid 100000,
// plus one position and one balance.
func ladderFetcher() *stubFetcher {
	order := func(side models.Side, price, size string, oid int64) models.RawOrder {
		return models.RawOrder{
			Market:  "BTC",
			Side:    side,
			Price:   d(price),
			Size:    d(size),
			OrderID: oid,
		}
	}
	return &stubFetcher{
		orders: []models.RawOrder{
			order(models.SideBid, "99999", "1", 1),
			order(models.SideBid, "99900", "2", 2),
			order(models.SideAsk, "100010", "1", 3),
			order(models.SideAsk, "100200", "2", 4),
		},
		mids: models.MidPrices{"BTC": d("100000")},
		positions: []models.Position{
			{Coin: "BTC", Size: d("1"), EntryPrice: d("98000"), Leverage: 5},
		},
		balances: []models.Balance{
			{Coin: "USDC", Total: d("50000"), EntryNotional: d("50000")},
		},
	}
}

func testConfig(dir string) *config.Config {
	cfg := &config.Config{}
	cfg.Quotelens.Wallet = "0xecb63caa47c7c4e77f60f1ce858cf28dc2b82b00"
	cfg.Tiering.RatioThreshold = 1.5
	cfg.Output.Dir = dir
	return cfg
}

func TestFetchAll(t *testing.T) {
	snap, err := Fetch(context.Background(), ladderFetcher(), "0xabc", ModeAll)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(snap.Orders) != 4 || len(snap.Mids) != 1 {
		t.Errorf("unexpected orders/mids: %d/%d", len(snap.Orders), len(snap.Mids))
	}
	if len(snap.Positions) != 1 || len(snap.Balances) != 1 {
		t.Errorf("unexpected positions/balances: %d/%d", len(snap.Positions), len(snap.Balances))
	}
	if len(snap.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", snap.Warnings)
	}
}

func TestFetchOrdersFailureIsFatal(t *testing.T) {
	fetcher := ladderFetcher()
	fetcher.ordersErr = errors.New("boom")

	if _, err := Fetch(context.Background(), fetcher, "0xabc", ModeAll); err == nil {
		t.Fatalf("expected error when orders fetch fails")
	}
}

func TestFetchMidsFailureIsFatal(t *testing.T) {
	fetcher := ladderFetcher()
	fetcher.midsErr = errors.New("boom")

	if _, err := Fetch(context.Background(), fetcher, "0xabc", ModeAll); err == nil {
		t.Fatalf("expected error when mids fetch fails")
	}
}

func TestFetchPositionsFailureDegrades(t *testing.T) {
	fetcher := ladderFetcher()
	fetcher.positionsErr = errors.New("boom")
	fetcher.balancesErr = errors.New("boom")

	snap, err := Fetch(context.Background(), fetcher, "0xabc", ModeAll)
	if err != nil {
		t.Fatalf("Fetch should degrade, got %v", err)
	}
	if len(snap.Warnings) != 2 {
		t.Errorf("expected 2 warnings, got %v", snap.Warnings)
	}
	if len(snap.Orders) != 4 {
		t.Errorf("orders should survive: %d", len(snap.Orders))
	}
}

func TestFetchModeScoping(t *testing.T) {
	fetcher := ladderFetcher()
	// Failures outside the mode's scope must not matter.
	fetcher.ordersErr = errors.New("boom")
	fetcher.midsErr = errors.New("boom")

	snap, err := Fetch(context.Background(), fetcher, "0xabc", ModePositions)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(snap.Orders) != 0 {
		t.Errorf("positions mode should not fetch orders")
	}
	if len(snap.Positions) != 1 {
		t.Errorf("expected 1 position, got %d", len(snap.Positions))
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		arg  string
		mode Mode
		ok   bool
	}{
		{"orders", ModeOrders, true},
		{"positions", ModePositions, true},
		{"balances", ModeBalances, true},
		{"all", ModeAll, true},
		{"trades", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		mode, err := ParseMode(c.arg)
		if c.ok && (err != nil || mode != c.mode) {
			t.Errorf("ParseMode(%q) = %v, %v", c.arg, mode, err)
		}
		if !c.ok && err == nil {
			t.Errorf("ParseMode(%q) should fail", c.arg)
		}
	}
}

func TestBuildLadder(t *testing.T) {
	snap, err := Fetch(context.Background(), ladderFetcher(), "0xabc", ModeOrders)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	report := Build(snap, d("1.5"))
	if len(report.Summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(report.Summaries))
	}
	s := report.Summaries[0]
	if !s.SpreadBps.Valid || !s.SpreadBps.Decimal.Equal(d("1.1")) {
		t.Errorf("spread: got %+v, want 1.1", s.SpreadBps)
	}
	if !s.BidNotional.Equal(d("299799")) {
		t.Errorf("bid notional: got %s, want 299799", s.BidNotional)
	}
	if len(report.Tiers) != 4 {
		t.Errorf("expected 4 tiers, got %d", len(report.Tiers))
	}
}

func TestRunAllWritesEveryTable(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	err := Run(context.Background(), testConfig(dir), ladderFetcher(), ModeAll, &console)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, name := range []string{
		writer.SummaryFile, writer.DetailFile, writer.TiersFile,
		writer.SkippedFile, writer.PositionsFile, writer.BalancesFile,
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing table %s: %v", name, err)
		}
	}

	digest := console.String()
	if !strings.Contains(digest, "BTC") {
		t.Errorf("digest missing market line:\n%s", digest)
	}
	if !strings.Contains(digest, "positions: 1 open") {
		t.Errorf("digest missing positions line:\n%s", digest)
	}
}

func TestRunOrdersModeScopesTables(t *testing.T) {
	dir := t.TempDir()

	if err := Run(context.Background(), testConfig(dir), ladderFetcher(), ModeOrders, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, writer.SummaryFile)); err != nil {
		t.Errorf("missing summary table: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, writer.PositionsFile)); !os.IsNotExist(err) {
		t.Errorf("orders mode should not write positions table")
	}
}

func TestRunParquetWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Output.Formats.Parquet.Enabled = true
	cfg.Output.Formats.Parquet.Compression = "snappy"

	if err := Run(context.Background(), cfg, ladderFetcher(), ModeOrders, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, writer.ParquetDetailFile)); err != nil {
		t.Errorf("missing parquet table: %v", err)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)

	readAll := func() map[string]string {
		t.Helper()
		files := map[string]string{}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("read dir: %v", err)
		}
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(dir, e.Name()))
			if err != nil {
				t.Fatalf("read %s: %v", e.Name(), err)
			}
			files[e.Name()] = string(data)
		}
		return files
	}

	if err := Run(context.Background(), cfg, ladderFetcher(), ModeOrders, nil); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first := readAll()

	if err := Run(context.Background(), cfg, ladderFetcher(), ModeOrders, nil); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	second := readAll()

	if len(first) != len(second) {
		t.Fatalf("file sets differ: %d vs %d", len(first), len(second))
	}
	for name, content := range first {
		if second[name] != content {
			t.Errorf("table %s differs between identical runs", name)
		}
	}
}

func TestRunSummaryRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if err := Run(context.Background(), testConfig(dir), ladderFetcher(), ModeOrders, nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, writer.SummaryFile))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	row := strings.Split(lines[1], ",")
	if row[0] != "BTC" || row[2] != "1.1" {
		t.Errorf("unexpected summary row: %v", row)
	}
}

func TestRunFatalOnOrdersFailure(t *testing.T) {
	dir := t.TempDir()
	fetcher := ladderFetcher()
	fetcher.ordersErr = errors.New("boom")

	if err := Run(context.Background(), testConfig(dir), fetcher, ModeAll, nil); err == nil {
		t.Fatalf("expected Run to fail when orders fetch fails")
	}
}
