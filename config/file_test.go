package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.NotNil(t, cfg, "Should return defaults when config file doesn't exist")

	assert.Equal(t, 2, cfg.Search.NormalDays)
	assert.Equal(t, 8, cfg.Search.ExtendedDays)
	assert.Equal(t, 30*time.Minute, cfg.Verify.TTL)
	assert.Equal(t, 100, cfg.Verify.SweepThreshold)
	assert.Equal(t, 1500*time.Millisecond, cfg.Navigation.SettleDelay)
	assert.Equal(t, "primary", cfg.Browser.Primary.Name)
	assert.True(t, cfg.Browser.Fallback.Minimal)
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `site:
  base_url: "https://mirror.example.org/"
  entry_paths: ["/relatoria/"]
browser:
  primary:
    exec_path: "/usr/bin/chromium"
    page_load_timeout: 20s
navigation:
  settle_delay: 2s
search:
  normal_days: 3
verify:
  ttl: 10m
download:
  dir: "/var/rulings"
storage:
  path: "/var/rulings/rulings.db"
log:
  json: true
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://mirror.example.org/relatoria/"}, cfg.Site.EntryURLs())
	assert.Equal(t, "https://mirror.example.org", cfg.Extraction.BaseURL)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.Primary.ExecPath)
	assert.Equal(t, 20*time.Second, cfg.Browser.Primary.PageLoadTimeout)
	assert.Equal(t, "primary", cfg.Browser.Primary.Name, "name is not configurable")
	assert.Equal(t, 1920, cfg.Browser.Primary.WindowWidth, "unset fields keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Navigation.SettleDelay)
	assert.Equal(t, 6*time.Second, cfg.Navigation.DocumentReadyTimeout)
	assert.Equal(t, 3, cfg.Search.NormalDays)
	assert.Equal(t, 8, cfg.Search.ExtendedDays)
	assert.Equal(t, 10*time.Minute, cfg.Verify.TTL)
	assert.Equal(t, "/var/rulings", cfg.Download.Dir)
	assert.Equal(t, int64(100), cfg.Download.MinBytes)
	assert.Equal(t, "/var/rulings/rulings.db", cfg.Storage.Path)
	assert.True(t, cfg.Log.JSON)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `search:
  - this is invalid yaml because search should be an object not a list
`)

	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "parse config file")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `verify:
  ttl: "half an hour"
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEntryURLs(t *testing.T) {
	site := SiteConfig{
		BaseURL:    "https://www.corteconstitucional.gov.co",
		EntryPaths: []string{"/jurisprudencia/", "relatoria/", "/"},
	}

	assert.Equal(t, []string{
		"https://www.corteconstitucional.gov.co/jurisprudencia/",
		"https://www.corteconstitucional.gov.co/relatoria/",
		"https://www.corteconstitucional.gov.co/",
	}, site.EntryURLs())
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/home/relator")

	assert.Equal(t, filepath.Join("/home/relator", ".rulings", "config.yaml"), DefaultPath())
}
