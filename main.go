package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"quotelens/config"
	"quotelens/logger"
	"quotelens/pipeline"
	"quotelens/reader/hyperliquid"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	outDir := flag.String("out", "", "Report output directory (overrides output.dir)")
	flag.Parse()

	mode := pipeline.ModeAll
	if arg := flag.Arg(0); arg != "" {
		var err error
		mode, err = pipeline.ParseMode(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "quotelens: %v\n", err)
			os.Exit(2)
		}
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Quotelens.Name,
		"version": cfg.Quotelens.Version,
		"wallet":  cfg.Quotelens.Wallet,
		"mode":    string(mode),
	}).Info("starting quotelens")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	client := hyperliquid.NewClient(cfg)

	if cfg.Poller.Enabled {
		poll(ctx, cancel, cfg, client, mode)
		log.Info("quotelens stopped")
		return
	}

	if err := pipeline.Run(ctx, cfg, client, mode, os.Stdout); err != nil {
		log.WithError(err).Error("run failed")
		os.Exit(1)
	}
	log.Info("quotelens finished")
}

// poll reruns the pipeline on the configured interval until interrupted. A
// failed cycle is logged and the next one still runs; the freshest successful
// report set stays on disk throughout.
func poll(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, client *hyperliquid.Client, mode pipeline.Mode) {
	log := logger.GetLogger().WithComponent("poller")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	interval := cfg.Poller.Interval.Std()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.WithFields(logger.Fields{"interval": interval}).Info("poller started")

	runOnce := func() {
		if err := pipeline.Run(ctx, cfg, client, mode, os.Stdout); err != nil {
			log.WithError(err).Error("poll cycle failed")
		}
	}
	runOnce()

	for {
		select {
		case sig := <-sigChan:
			log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
			cancel()
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
