// Package verify decides whether synthesized document URLs actually serve
// a document, remembering each answer for a while.
package verify

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/pevans/rulings/fault"
)

// Config controls probing and caching.
type Config struct {
	TTL            time.Duration `yaml:"ttl"`
	SweepThreshold int           `yaml:"sweep_threshold"`
	ProbeTimeout   time.Duration `yaml:"probe_timeout"`
	UserAgent      string        `yaml:"user_agent"`
}

// DefaultConfig returns a 30 minute cache that is swept once it holds more
// than 100 entries.
func DefaultConfig() Config {
	return Config{
		TTL:            30 * time.Minute,
		SweepThreshold: 100,
		ProbeTimeout:   3 * time.Second,
		UserAgent:      "SistemaEditorialJuridico/1.0",
	}
}

// Prober checks one URL over the network.
type Prober interface {
	Probe(ctx context.Context, url string) (bool, error)
}

type entry struct {
	valid     bool
	checkedAt time.Time
}

// Stats counts cache activity.
type Stats struct {
	Hits   int
	Probes int
	Errors int
}

// Cache answers Verify from memory when a live entry exists and probes
// otherwise. It is safe for concurrent use.
type Cache struct {
	config Config
	prober Prober
	log    *zap.SugaredLogger
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]entry
	stats   Stats
}

// NewCache creates a cache in front of prober.
func NewCache(config Config, prober Prober, log *zap.SugaredLogger, now func() time.Time) *Cache {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		config:  config,
		prober:  prober,
		log:     log,
		now:     now,
		entries: make(map[string]entry),
	}
}

// Verify reports whether url serves a document. A probe that errors counts
// as invalid and is cached like any other answer.
func (c *Cache) Verify(ctx context.Context, url string) bool {
	c.mu.Lock()
	now := c.now()
	if e, ok := c.entries[url]; ok {
		if now.Sub(e.checkedAt) < c.config.TTL {
			c.stats.Hits++
			c.mu.Unlock()
			return e.valid
		}
		delete(c.entries, url)
	}
	c.stats.Probes++
	c.mu.Unlock()

	valid, err := c.prober.Probe(ctx, url)
	if err != nil {
		c.log.Debugw("Probe failed", "url", url, "transport", fault.TransportOf(err).String(), "error", fault.Message(err, 50))
		valid = false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.stats.Errors++
	}
	c.entries[url] = entry{valid: valid, checkedAt: c.now()}
	if len(c.entries) > c.config.SweepThreshold {
		c.sweepLocked(c.now())
	}
	return valid
}

// Sweep drops every expired entry and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(c.now())
}

func (c *Cache) sweepLocked(now time.Time) int {
	removed := 0
	for url, e := range c.entries {
		if now.Sub(e.checkedAt) >= c.config.TTL {
			delete(c.entries, url)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries, live or not yet swept.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// acceptedTypes lists the content type prefixes a document may be served as.
var acceptedTypes = []string{
	"application/rtf",
	"text/rtf",
	"application/vnd.openxmlformats",
	"application/msword",
	"application/pdf",
	"application/octet-stream",
}

// AcceptableContentType reports whether a HEAD response's content type
// could carry a document. Servers that send no type are given the benefit of
// the doubt.
func AcceptableContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		return true
	}
	for _, prefix := range acceptedTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// HTTPProber checks URLs with a HEAD request, following up to ten
// redirects.
type HTTPProber struct {
	client *resty.Client
}

// NewHTTPProber creates a prober with config's timeout and user agent.
func NewHTTPProber(config Config) *HTTPProber {
	client := resty.New().
		SetTimeout(config.ProbeTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if config.UserAgent != "" {
		client.SetHeader("User-Agent", config.UserAgent)
	}
	return &HTTPProber{client: client}
}

// Probe returns true for a 2xx response whose content type could be a
// document.
func (p *HTTPProber) Probe(ctx context.Context, url string) (bool, error) {
	res, err := p.client.R().SetContext(ctx).Head(url)
	if err != nil {
		return false, fault.New(fault.KindProbeFailure, "probe "+url, err)
	}
	if !res.IsSuccess() {
		return false, nil
	}
	return AcceptableContentType(res.Header().Get("Content-Type")), nil
}
