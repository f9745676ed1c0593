package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"quotelens/config"
	"quotelens/logger"
	"quotelens/models"
	"quotelens/processor"
	"quotelens/writer"
)

// Fetcher is the slice of the exchange client a run needs. The concrete
// implementation lives in reader/hyperliquid.
type Fetcher interface {
	OpenOrders(ctx context.Context, user string) ([]models.RawOrder, error)
	AllMids(ctx context.Context) (models.MidPrices, error)
	Positions(ctx context.Context, user string) ([]models.Position, error)
	SpotBalances(ctx context.Context, user string) ([]models.Balance, error)
}

// Mode selects which slice of account state a run fetches and reports.
type Mode string

const (
	ModeOrders    Mode = "orders"
	ModePositions Mode = "positions"
	ModeBalances  Mode = "balances"
	ModeAll       Mode = "all"
)

// ParseMode maps a CLI argument to a Mode.
func ParseMode(arg string) (Mode, error) {
	switch Mode(arg) {
	case ModeOrders, ModePositions, ModeBalances, ModeAll:
		return Mode(arg), nil
	}
	return "", fmt.Errorf("unknown mode %q (want orders, positions, balances or all)", arg)
}

func (m Mode) wantsOrders() bool {
	return m == ModeOrders || m == ModeAll
}

func (m Mode) wantsPositions() bool {
	return m == ModePositions || m == ModeAll
}

func (m Mode) wantsBalances() bool {
	return m == ModeBalances || m == ModeAll
}

// Snapshot is everything one run fetched, stamped with a run ID. Warnings
// carry the non-fatal fetch failures the run degraded around.
type Snapshot struct {
	RunID     uuid.UUID
	FetchedAt time.Time
	Orders    []models.RawOrder
	Mids      models.MidPrices
	Positions []models.Position
	Balances  []models.Balance
	Warnings  []string
}

// Fetch pulls the slices of account state the mode asks for, concurrently.
// Orders and mids are load-bearing: their failure fails the run. Positions
// and balances degrade to warnings so a partial snapshot still reports.
func Fetch(ctx context.Context, fetcher Fetcher, wallet string, mode Mode) (*Snapshot, error) {
	log := logger.GetLogger().WithComponent("pipeline")

	snap := &Snapshot{
		RunID:     uuid.New(),
		FetchedAt: time.Now(),
	}

	var wg sync.WaitGroup
	var ordersErr, midsErr, positionsErr, balancesErr error

	if mode.wantsOrders() {
		wg.Add(2)
		go func() {
			defer wg.Done()
			snap.Orders, ordersErr = fetcher.OpenOrders(ctx, wallet)
		}()
		go func() {
			defer wg.Done()
			snap.Mids, midsErr = fetcher.AllMids(ctx)
		}()
	}
	if mode.wantsPositions() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap.Positions, positionsErr = fetcher.Positions(ctx, wallet)
		}()
	}
	if mode.wantsBalances() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snap.Balances, balancesErr = fetcher.SpotBalances(ctx, wallet)
		}()
	}
	wg.Wait()

	if ordersErr != nil {
		return nil, fmt.Errorf("openOrders fetch failed: %w", ordersErr)
	}
	if midsErr != nil {
		return nil, fmt.Errorf("allMids fetch failed: %w", midsErr)
	}
	if positionsErr != nil {
		warning := fmt.Sprintf("positions fetch failed: %v", positionsErr)
		snap.Warnings = append(snap.Warnings, warning)
		log.WithError(positionsErr).Warn("positions fetch failed, continuing without them")
	}
	if balancesErr != nil {
		warning := fmt.Sprintf("balances fetch failed: %v", balancesErr)
		snap.Warnings = append(snap.Warnings, warning)
		log.WithError(balancesErr).Warn("balances fetch failed, continuing without them")
	}

	log.WithFields(logger.Fields{
		"run_id":    snap.RunID.String(),
		"orders":    len(snap.Orders),
		"mids":      len(snap.Mids),
		"positions": len(snap.Positions),
		"balances":  len(snap.Balances),
		"warnings":  len(snap.Warnings),
	}).Info("snapshot fetched")

	return snap, nil
}

// Report is the fully derived view of one snapshot.
type Report struct {
	Snapshot  *Snapshot
	Orders    []models.NormalizedOrder
	Skipped   []models.SkippedOrder
	Summaries []models.MarketSummary
	Tiers     []models.Tier
}

// Build derives every analysis table from a snapshot.
func Build(snap *Snapshot, threshold decimal.Decimal) *Report {
	result := processor.Normalize(snap.Orders, snap.Mids)

	return &Report{
		Snapshot:  snap,
		Orders:    result.Orders,
		Skipped:   result.Skipped,
		Summaries: processor.Summarize(result.Orders),
		Tiers:     processor.BuildTiers(result.Orders, threshold),
	}
}

// Run executes one full cycle: fetch, derive, write. Any report table that
// cannot be written fails the run; the optional S3 mirror and console digest
// never do.
func Run(ctx context.Context, cfg *config.Config, fetcher Fetcher, mode Mode, out io.Writer) error {
	log := logger.GetLogger().WithComponent("pipeline")
	start := time.Now()

	snap, err := Fetch(ctx, fetcher, cfg.Quotelens.Wallet, mode)
	if err != nil {
		return err
	}

	report := Build(snap, cfg.Tiering.Threshold())
	dir := cfg.Output.Dir

	var written []string
	write := func(name string, fn func() error) error {
		if err := fn(); err != nil {
			return err
		}
		written = append(written, filepath.Join(dir, name))
		return nil
	}

	if mode.wantsOrders() {
		if err := write(writer.SummaryFile, func() error { return writer.WriteSummary(dir, report.Summaries) }); err != nil {
			return err
		}
		if err := write(writer.DetailFile, func() error { return writer.WriteDetail(dir, report.Orders) }); err != nil {
			return err
		}
		if err := write(writer.TiersFile, func() error { return writer.WriteTiers(dir, report.Tiers) }); err != nil {
			return err
		}
		if err := write(writer.SkippedFile, func() error { return writer.WriteSkipped(dir, report.Skipped) }); err != nil {
			return err
		}
		if cfg.Output.Formats.Parquet.Enabled {
			compression := cfg.Output.Formats.Parquet.Compression
			if err := write(writer.ParquetDetailFile, func() error {
				return writer.WriteDetailParquet(dir, report.Orders, compression)
			}); err != nil {
				return err
			}
		}
	}
	if mode.wantsPositions() {
		if err := write(writer.PositionsFile, func() error { return writer.WritePositions(dir, report.Snapshot.Positions) }); err != nil {
			return err
		}
	}
	if mode.wantsBalances() {
		if err := write(writer.BalancesFile, func() error { return writer.WriteBalances(dir, report.Snapshot.Balances) }); err != nil {
			return err
		}
	}

	if cfg.Storage.S3.Enabled {
		mirrorReports(ctx, cfg, snap.FetchedAt, written, log)
	}

	if out != nil {
		PrintDigest(out, report, mode)
	}

	logger.LogPerformanceEntry(log, "pipeline", "run", time.Since(start), logger.Fields{
		"run_id": snap.RunID.String(),
		"mode":   string(mode),
		"tables": len(written),
	})

	return nil
}

// mirrorReports copies the run's tables to S3. The local files are already on
// disk, so mirror failures are logged and swallowed.
func mirrorReports(ctx context.Context, cfg *config.Config, runAt time.Time, paths []string, log *logger.Entry) {
	uploader, err := writer.NewUploader(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("s3 mirror unavailable, reports kept local only")
		return
	}
	if err := uploader.Upload(ctx, runAt, paths); err != nil {
		log.WithError(err).Warn("s3 mirror failed, reports kept local only")
	}
}
