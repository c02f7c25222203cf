package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/pevans/rulings"
	"github.com/pevans/rulings/config"
	"github.com/pevans/rulings/logging"
)

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration parses a duration from environment variable or returns default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvInt parses an int from environment variable or returns default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// loadConfig reads the configuration file, falling back to defaults with a
// warning when it cannot be parsed.
func loadConfig() *config.FileConfig {
	path := getEnv("RULINGS_CONFIG", config.DefaultPath())
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
		fmt.Fprintf(os.Stderr, "Continuing with defaults and environment variables...\n\n")
		return config.Default()
	}

	if level := os.Getenv("RULINGS_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	return cfg
}

// newLogger builds the stderr logger, falling back to info level when the
// configured level is invalid.
func newLogger(cfg logging.Config) *zap.SugaredLogger {
	log, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		cfg.Level = "info"
		log, _ = logging.New(cfg)
	}
	return log
}

// discoveryConfig maps the file configuration onto the discovery service.
func discoveryConfig(cfg *config.FileConfig) *rulings.DiscoveryConfig {
	return &rulings.DiscoveryConfig{
		EntryURLs:      cfg.Site.EntryURLs(),
		Primary:        cfg.Browser.Primary,
		Fallback:       cfg.Browser.Fallback,
		Navigation:     cfg.Navigation,
		Window:         cfg.Search,
		Extraction:     cfg.Extraction,
		Verify:         cfg.Verify,
		Download:       cfg.Download,
		Feed:           cfg.Feed,
		EmptyThreshold: cfg.Stats.Threshold,
	}
}

// truncate shortens s to n runes for table output.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
