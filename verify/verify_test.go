package verify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	mu     sync.Mutex
	valid  map[string]bool
	err    error
	probes map[string]int
}

func newFakeProber(valid map[string]bool) *fakeProber {
	return &fakeProber{valid: valid, probes: make(map[string]int)}
}

func (f *fakeProber) Probe(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes[url]++
	if f.err != nil {
		return false, f.err
	}
	return f.valid[url], nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

// TestVerify_CachesWithinTTL verifies repeated checks do not probe again
func TestVerify_CachesWithinTTL(t *testing.T) {
	prober := newFakeProber(map[string]bool{"https://x/a.rtf": true})
	clk := &clock{t: time.Date(2025, 9, 4, 10, 0, 0, 0, time.UTC)}
	cache := NewCache(DefaultConfig(), prober, nil, clk.now)

	assert.True(t, cache.Verify(context.Background(), "https://x/a.rtf"))
	clk.t = clk.t.Add(29 * time.Minute)
	assert.True(t, cache.Verify(context.Background(), "https://x/a.rtf"))

	assert.Equal(t, 1, prober.probes["https://x/a.rtf"])
	assert.Equal(t, Stats{Hits: 1, Probes: 1}, cache.Stats())
}

// TestVerify_ReprobesAfterTTL verifies expired entries are refreshed
func TestVerify_ReprobesAfterTTL(t *testing.T) {
	prober := newFakeProber(map[string]bool{"https://x/a.rtf": true})
	clk := &clock{t: time.Date(2025, 9, 4, 10, 0, 0, 0, time.UTC)}
	cache := NewCache(DefaultConfig(), prober, nil, clk.now)

	cache.Verify(context.Background(), "https://x/a.rtf")
	prober.valid["https://x/a.rtf"] = false
	clk.t = clk.t.Add(31 * time.Minute)

	assert.False(t, cache.Verify(context.Background(), "https://x/a.rtf"))
	assert.Equal(t, 2, prober.probes["https://x/a.rtf"])
}

// TestVerify_ProbeErrorIsInvalid verifies failures are cached as invalid
func TestVerify_ProbeErrorIsInvalid(t *testing.T) {
	prober := newFakeProber(nil)
	prober.err = errors.New("connection refused")
	cache := NewCache(DefaultConfig(), prober, nil, nil)

	assert.False(t, cache.Verify(context.Background(), "https://x/a.rtf"))
	assert.False(t, cache.Verify(context.Background(), "https://x/a.rtf"))
	assert.Equal(t, 1, prober.probes["https://x/a.rtf"])
	assert.Equal(t, 1, cache.Stats().Errors)
}

// TestVerify_SweepsOverThreshold verifies expired entries are dropped once
// the cache grows past the threshold
func TestVerify_SweepsOverThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepThreshold = 3
	prober := newFakeProber(nil)
	clk := &clock{t: time.Date(2025, 9, 4, 10, 0, 0, 0, time.UTC)}
	cache := NewCache(cfg, prober, nil, clk.now)

	for i := 0; i < 3; i++ {
		cache.Verify(context.Background(), fmt.Sprintf("https://x/old-%d", i))
	}
	require.Equal(t, 3, cache.Len())

	clk.t = clk.t.Add(time.Hour)
	cache.Verify(context.Background(), "https://x/new")

	assert.Equal(t, 1, cache.Len())
}

// TestSweep verifies manual sweeping keeps live entries
func TestSweep(t *testing.T) {
	prober := newFakeProber(nil)
	clk := &clock{t: time.Date(2025, 9, 4, 10, 0, 0, 0, time.UTC)}
	cache := NewCache(DefaultConfig(), prober, nil, clk.now)

	cache.Verify(context.Background(), "https://x/old")
	clk.t = clk.t.Add(20 * time.Minute)
	cache.Verify(context.Background(), "https://x/new")
	clk.t = clk.t.Add(15 * time.Minute)

	assert.Equal(t, 1, cache.Sweep())
	assert.Equal(t, 1, cache.Len())
}

// TestAcceptableContentType verifies the document type allow-list
func TestAcceptableContentType(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"application/rtf", true},
		{"text/rtf", true},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", true},
		{"application/msword", true},
		{"application/pdf", true},
		{"application/octet-stream", true},
		{"Application/PDF; charset=binary", true},
		{"", true},
		{"text/html; charset=utf-8", false},
		{"application/json", false},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.want, AcceptableContentType(tt.contentType))
		})
	}
}

// TestHTTPProber verifies HEAD responses are judged by status and type
func TestHTTPProber(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		assert.Equal(t, "SistemaEditorialJuridico/1.0", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/doc.rtf":
			w.Header().Set("Content-Type", "application/rtf")
		case "/untyped":
			w.Header()["Content-Type"] = nil
		case "/page.htm":
			w.Header().Set("Content-Type", "text/html")
		case "/moved":
			http.Redirect(w, r, "/doc.rtf", http.StatusFound)
			return
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	prober := NewHTTPProber(DefaultConfig())
	ctx := context.Background()

	tests := []struct {
		path string
		want bool
	}{
		{"/doc.rtf", true},
		{"/untyped", true},
		{"/page.htm", false},
		{"/moved", true},
		{"/missing", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			ok, err := prober.Probe(ctx, server.URL+tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

// TestHTTPProber_Unreachable verifies a transport error is reported
func TestHTTPProber_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL + "/doc.rtf"
	server.Close()

	cache := NewCache(DefaultConfig(), NewHTTPProber(DefaultConfig()), nil, nil)

	assert.False(t, cache.Verify(context.Background(), url))
	assert.Equal(t, 1, cache.Stats().Errors)
}
