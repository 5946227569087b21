package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"poptrack/collector"
	"poptrack/config"
	"poptrack/export"
	"poptrack/logger"
	"poptrack/storage"
)

const usage = `usage: poptrack <command>

commands:
  init             create the population table
  collect <csv>    fetch all masters, persist one sample, rewrite the export file
  import <csv>     bulk-import a CSV history file
  clear            delete every stored sample
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error setting up logger:", err)
		os.Exit(1)
	}
	defer logger.Flush(log.Logger)

	store, err := storage.NewSQLite(cfg.DBPath, cfg.BatchSize, log.Logger)
	if err != nil {
		log.Logger.Error("open store", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Prepare(ctx); err != nil {
		log.Logger.Error("prepare store", zap.Error(err))
		os.Exit(1)
	}

	switch cmd := os.Args[1]; cmd {
	case "init":
		// Prepare already ran; nothing left to do.
		log.Logger.Info("store initialized", zap.String("db", cfg.DBPath))

	case "collect":
		if len(os.Args) < 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		if len(cfg.Endpoints) == 0 {
			log.Logger.Error("no master-server endpoints configured")
			os.Exit(1)
		}
		if err := collect(ctx, cfg, store, os.Args[2], log.Logger); err != nil {
			log.Logger.Error("collect cycle failed", zap.Error(err))
			os.Exit(1)
		}

	case "import":
		if len(os.Args) < 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		res, err := importFile(ctx, cfg, store, os.Args[2], log.Logger)
		if err != nil {
			log.Logger.Error("import failed", zap.Error(err))
			os.Exit(1)
		}
		if res.Failed() {
			// Partial failure: surviving chunks are kept, but exit non-zero
			// so the caller can tell the run was incomplete.
			os.Exit(1)
		}

	case "clear":
		if err := store.ClearAll(ctx); err != nil {
			log.Logger.Error("clear failed", zap.Error(err))
			os.Exit(1)
		}

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

// collect runs one merge cycle: fetch every master, persist the summed
// sample, then rewrite the CSV export from the retention query.
func collect(ctx context.Context, cfg *config.Config, store storage.Store, csvPath string, log *zap.Logger) error {
	fetcher := collector.NewFetcher(time.Duration(cfg.FetchTimeoutMS)*time.Millisecond, log)
	pop := fetcher.Merge(ctx, cfg.Endpoints)

	if err := store.InsertOne(ctx, pop.Servers, pop.Players); err != nil {
		return err
	}

	rows, err := store.Query(ctx, cfg.RetentionDays)
	if err != nil {
		return err
	}
	if err := export.WriteFile(csvPath, rows); err != nil {
		return err
	}
	log.Info("export written", zap.String("path", csvPath), zap.Int("rows", len(rows)))
	return nil
}

func importFile(ctx context.Context, cfg *config.Config, store storage.Store, csvPath string, log *zap.Logger) (export.Result, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return export.Result{}, fmt.Errorf("open csv file: %w", err)
	}
	defer f.Close()

	im := &export.Importer{Store: store, BatchSize: cfg.BatchSize, Log: log}
	res, err := im.Run(ctx, f)
	if err != nil {
		return res, err
	}

	if n, err := store.Count(ctx); err == nil {
		log.Info("store now holds samples", zap.Int64("count", n))
	}
	return res, nil
}
