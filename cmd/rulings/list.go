package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/pevans/rulings/config"
	"github.com/pevans/rulings/store"
)

func handleList(cfg *config.FileConfig, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	storePath := fs.String("store", getEnv("RULINGS_STORE", cfg.Storage.Path), "Path to the SQLite database")
	source := fs.String("source", "", "Only rulings from this source")
	docType := fs.String("type", "", "Only rulings of this type (T, C, SU, A)")
	since := fs.String("since", "", "Only rulings published on or after this date (YYYY-MM-DD)")
	limit := fs.Int("limit", 20, "Maximum number of entries")
	offset := fs.Int("offset", 0, "Number of entries to skip")
	runs := fs.Bool("runs", false, "List recorded runs instead of rulings")
	format := fs.String("format", "table", "Output format (table, json)")
	fs.Parse(args)

	db, err := store.NewStore(*storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	if *runs {
		list, err := db.ListRuns(ctx, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
			os.Exit(1)
		}
		switch *format {
		case "json":
			printJSON(map[string]any{"runs": list})
		default:
			printRunsTable(list)
		}
		return
	}

	filter := store.Filter{
		Source:       *source,
		DocumentType: *docType,
		Limit:        *limit,
		Offset:       *offset,
	}
	if *since != "" {
		t, err := time.Parse("2006-01-02", *since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid --since date %q (expected YYYY-MM-DD)\n", *since)
			os.Exit(1)
		}
		filter.Since = &t
	}

	docs, err := db.List(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to list rulings: %v\n", err)
		os.Exit(1)
	}
	total, err := db.CountMatching(ctx, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to count rulings: %v\n", err)
		os.Exit(1)
	}

	switch *format {
	case "json":
		printJSON(map[string]any{"rulings": docs, "total": total})
	default:
		printRulingsTable(docs, total, *offset)
	}
}
