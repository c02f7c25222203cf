package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pevans/rulings/config"
	"github.com/pevans/rulings/download"
	"github.com/pevans/rulings/ruling"
)

func handleDownload(cfg *config.FileConfig, args []string) int {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	url := fs.String("url", "", "Document URL (required)")
	idText := fs.String("id", "", "Ruling identifier such as T-343/25 (required)")
	dir := fs.String("dir", cfg.Download.Dir, "Destination directory")
	fs.Parse(args)

	if *url == "" || *idText == "" {
		fmt.Fprintf(os.Stderr, "Error: --url and --id are required\n")
		fs.Usage()
		return 1
	}

	id, err := ruling.ParseIdentifier(*idText)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid ruling identifier: %v\n", err)
		return 1
	}

	log := newLogger(cfg.Log)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dlCfg := cfg.Download
	dlCfg.Dir = *dir
	artifact, err := download.New(dlCfg, log).Fetch(ctx, *url, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: download failed: %v\n", err)
		return 1
	}

	// Callers read the path from this line.
	fmt.Printf("LOCAL_PATH:%s\n", artifact.Path)
	return 0
}
