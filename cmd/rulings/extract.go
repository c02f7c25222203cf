package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/pevans/rulings"
	"github.com/pevans/rulings/config"
	"github.com/pevans/rulings/stats"
	"github.com/pevans/rulings/store"
)

func handleExtract(cfg *config.FileConfig, args []string) int {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	source := fs.String("source", getEnv("RULINGS_SOURCE", rulings.SourceCourt), "Source to search (corte_constitucional or corte_constitucional_feed)")
	limit := fs.Int("limit", getEnvInt("RULINGS_LIMIT", 20), "Maximum number of rulings")
	doDownload := fs.Bool("download", false, "Download each verified ruling")
	noEmptyCheck := fs.Bool("no-empty-check", false, "Skip the document count lookup and search the normal window")
	storePath := fs.String("store", getEnv("RULINGS_STORE", ""), "Save results to this SQLite database")
	timeout := fs.Duration("timeout", getEnvDuration("RULINGS_TIMEOUT", 10*time.Minute), "Maximum duration of the run")
	logLevel := fs.String("log-level", cfg.Log.Level, "Log level (debug, info, warn, error)")
	fs.Parse(args)

	if *limit < 1 {
		fmt.Fprintf(os.Stderr, "Error: --limit must be at least 1\n")
		return 1
	}

	logCfg := cfg.Log
	logCfg.Level = *logLevel
	log := newLogger(logCfg)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var db *store.Store
	if *storePath != "" {
		var err error
		db, err = store.NewStore(*storePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open store: %v\n", err)
			return 1
		}
		defer db.Close()
	}

	opts := []rulings.Option{rulings.WithLogger(log)}
	if counter := emptyCounter(cfg, db); counter != nil {
		opts = append(opts, rulings.WithCounter(counter))
	}

	service := rulings.NewDiscoveryService(discoveryConfig(cfg), opts...)
	defer service.Close()

	started := time.Now()
	result := service.Run(ctx, rulings.Request{
		Source:     *source,
		Limit:      *limit,
		Download:   *doDownload,
		CheckEmpty: !*noEmptyCheck,
	})

	if db != nil {
		persist(db, log, result, *source, started)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to marshal JSON: %v\n", err)
		return 1
	}
	fmt.Println(string(data))

	if !result.Success {
		return 1
	}
	return 0
}

// emptyCounter picks what answers "is the store nearly empty": the
// document service when one is configured, otherwise the local store.
func emptyCounter(cfg *config.FileConfig, db *store.Store) rulings.StoreCounter {
	if cfg.Stats.URL != "" {
		return stats.New(cfg.Stats)
	}
	if db != nil {
		return db
	}
	return nil
}

// persist saves the result's rulings and records the run. Failures are
// logged; they never change the result already produced.
func persist(db *store.Store, log *zap.SugaredLogger, result rulings.Result, source string, started time.Time) {
	// The run context may have expired; saving is short and local.
	ctx := context.Background()

	saved := 0
	for _, doc := range result.Documents {
		inserted, err := db.Save(ctx, result.RunID, doc)
		if err != nil {
			log.Warnw("Failed to save ruling", "id", doc.ID.String(), "error", err)
			continue
		}
		if inserted {
			saved++
		}
	}

	run := store.Run{
		ID:         result.RunID,
		Source:     source,
		Mode:       result.Mode,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Success:    result.Success,
		Found:      result.TotalFound,
		Downloaded: result.DownloadedCount,
	}
	if result.Error != "" {
		run.Error = &result.Error
	}
	if err := db.RecordRun(ctx, run); err != nil {
		log.Warnw("Failed to record run", "run", result.RunID, "error", err)
		return
	}
	log.Infow("Saved rulings", "run", result.RunID, "new", saved, "total", len(result.Documents))
}
