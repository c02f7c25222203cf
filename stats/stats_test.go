package stats

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pevans/rulings/fault"
)

func serve(t *testing.T, status int, body string) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server.URL
}

// TestCount verifies the total is read from the data envelope
func TestCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = serve(t, http.StatusOK, `{"success":true,"data":{"total":3,"byType":{}}}`)

	total, err := New(cfg).Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

// TestCount_Zero verifies an explicit zero is not treated as missing
func TestCount_Zero(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = serve(t, http.StatusOK, `{"data":{"total":0}}`)

	total, err := New(cfg).Count(context.Background())

	require.NoError(t, err)
	assert.Zero(t, total)
}

// TestCount_Failures verifies every failure is reported as unavailable
func TestCount_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"missing total", http.StatusOK, `{"data":{}}`},
		{"malformed", http.StatusOK, `not json`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.URL = serve(t, tt.status, tt.body)

			_, err := New(cfg).Count(context.Background())

			require.Error(t, err)
			assert.Equal(t, fault.KindStatsUnavailable, fault.KindOf(err))
		})
	}
}

// TestCount_Unreachable verifies a closed endpoint is unavailable
func TestCount_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	cfg := DefaultConfig()
	cfg.URL = server.URL
	server.Close()

	_, err := New(cfg).Count(context.Background())

	assert.Equal(t, fault.KindStatsUnavailable, fault.KindOf(err))
}
