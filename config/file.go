package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/pevans/rulings/browser"
	"github.com/pevans/rulings/download"
	"github.com/pevans/rulings/extract"
	"github.com/pevans/rulings/feed"
	"github.com/pevans/rulings/logging"
	"github.com/pevans/rulings/navigator"
	"github.com/pevans/rulings/stats"
	"github.com/pevans/rulings/verify"
	"github.com/pevans/rulings/window"
)

// SiteConfig locates the court's web application.
type SiteConfig struct {
	BaseURL    string   `yaml:"base_url"`
	EntryPaths []string `yaml:"entry_paths"`
}

// EntryURLs returns the candidate entry points in the order they are tried.
func (s SiteConfig) EntryURLs() []string {
	base := strings.TrimRight(s.BaseURL, "/")
	urls := make([]string, 0, len(s.EntryPaths))
	for _, path := range s.EntryPaths {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		urls = append(urls, base+path)
	}
	return urls
}

// BrowserConfig holds the two browser configurations.
type BrowserConfig struct {
	Primary  browser.Options `yaml:"primary"`
	Fallback browser.Options `yaml:"fallback"`
}

// StorageConfig locates the local ruling database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// FileConfig represents the structure of ~/.rulings/config.yaml.
type FileConfig struct {
	Site       SiteConfig       `yaml:"site"`
	Browser    BrowserConfig    `yaml:"browser"`
	Navigation navigator.Config `yaml:"navigation"`
	Search     window.Config    `yaml:"search"`
	Extraction extract.Config   `yaml:"extraction"`
	Verify     verify.Config    `yaml:"verify"`
	Download   download.Config  `yaml:"download"`
	Stats      stats.Config     `yaml:"stats"`
	Feed       feed.Config      `yaml:"feed"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        logging.Config   `yaml:"log"`
}

// Default returns the configuration used when no file overrides it.
func Default() *FileConfig {
	ext := extract.DefaultConfig()
	return &FileConfig{
		Site: SiteConfig{
			BaseURL:    ext.BaseURL,
			EntryPaths: []string{"/jurisprudencia/", "/relatoria/", "/"},
		},
		Browser: BrowserConfig{
			Primary:  browser.PrimaryOptions(),
			Fallback: browser.FallbackOptions(),
		},
		Navigation: navigator.DefaultConfig(),
		Search:     window.DefaultConfig(),
		Extraction: ext,
		Verify:     verify.DefaultConfig(),
		Download:   download.DefaultConfig(),
		Stats:      stats.DefaultConfig(),
		Feed:       feed.DefaultConfig(),
		Storage:    StorageConfig{Path: filepath.Join(homeDir(), ".rulings", "rulings.db")},
		Log:        logging.DefaultConfig(),
	}
}

// DefaultPath returns ~/.rulings/config.yaml.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".rulings", "config.yaml")
}

// Load reads the file at path over the defaults. A missing file is not an
// error; the defaults are returned as they are. Fields the file leaves out
// keep their default values.
func Load(path string) (*FileConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "parse config file %s", path),
			"durations are written like 1.5s or 30m",
		)
	}

	// Document URLs are synthesized against the site that is browsed.
	cfg.Extraction.BaseURL = strings.TrimRight(cfg.Site.BaseURL, "/")

	return cfg, nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
