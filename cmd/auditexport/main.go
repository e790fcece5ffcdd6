package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/scrubworks/redactgate/internal/audit"
	"github.com/scrubworks/redactgate/internal/config"
	"github.com/scrubworks/redactgate/internal/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "Configuration file path")
		outputFile = flag.String("output", "", "Output file (.parquet, .csv, or .json)")
		sinceFlag  = flag.String("since", "24h", "Export records newer than this duration (e.g. 24h, 7d as 168h)")
		limit      = flag.Int("limit", 10000, "Maximum number of records to export")
	)
	flag.Parse()

	if *outputFile == "" {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --output audit.parquet --since 24h\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --output audit.csv --since 168h --limit 50000\n", os.Args[0])
		os.Exit(1)
	}

	window, err := time.ParseDuration(*sinceFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid --since duration: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Received shutdown signal, cancelling export...")
		cancel()
	}()

	sink, err := audit.NewPostgresSink(&cfg.Audit.Sink, log.WithComponent("audit").Logger)
	if err != nil {
		log.Fatal("Failed to connect to audit database", zap.Error(err))
	}
	defer sink.Close()

	exporter := audit.NewExporter(sink, log.WithComponent("export").Logger)

	since := time.Now().Add(-window)
	rows, err := exporter.Export(ctx, *outputFile, since, *limit)
	if err != nil {
		log.Fatal("Export failed", zap.Error(err))
	}

	log.Info("Audit export completed",
		zap.String("output", *outputFile),
		zap.Int("rows", rows),
		zap.Time("since", since))
}
