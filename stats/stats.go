// Package stats asks the document service how many rulings it already holds.
package stats

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pevans/rulings/fault"
)

// Config locates the document statistics endpoint.
type Config struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`

	// Threshold is the document count below which the store is treated as
	// nearly empty.
	Threshold int `yaml:"threshold"`
}

// DefaultConfig points at the local document service.
func DefaultConfig() Config {
	return Config{
		URL:       "http://localhost:3001/api/documents/stats",
		Timeout:   5 * time.Second,
		Threshold: 5,
	}
}

type statsResponse struct {
	Data struct {
		Total *int `json:"total"`
	} `json:"data"`
}

// Client reads the document total.
type Client struct {
	url    string
	client *resty.Client
}

// New creates a client for config.URL.
func New(config Config) *Client {
	return &Client{
		url:    config.URL,
		client: resty.New().SetTimeout(config.Timeout),
	}
}

// Count returns the number of stored documents.
func (c *Client) Count(ctx context.Context) (int, error) {
	var body statsResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetResult(&body).
		ForceContentType("application/json").
		Get(c.url)
	if err != nil {
		return 0, fault.New(fault.KindStatsUnavailable, "document stats", err)
	}
	if !res.IsSuccess() {
		return 0, fault.Newf(fault.KindStatsUnavailable, "document stats", "HTTP %d from %s", res.StatusCode(), c.url)
	}
	if body.Data.Total == nil {
		return 0, fault.Newf(fault.KindStatsUnavailable, "document stats", "response has no data.total")
	}
	return *body.Data.Total, nil
}
