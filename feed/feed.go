// Package feed reads the court's publication feed as an alternative to
// driving the web application. Each feed item becomes a row of text in the
// same shape the page extractor consumes.
package feed

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mmcdole/gofeed"

	"github.com/pevans/rulings/window"
)

// Config locates the feed.
type Config struct {
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// DefaultConfig returns the court's news feed.
func DefaultConfig() Config {
	return Config{
		URL:       "https://www.corteconstitucional.gov.co/feed/",
		Timeout:   15 * time.Second,
		UserAgent: "SistemaEditorialJuridico/1.0",
	}
}

// Row is one feed item flattened for extraction.
type Row struct {
	Text    string
	Link    string
	Authors []string
}

// Fetcher downloads and parses RSS or Atom feeds.
type Fetcher struct {
	config Config
}

// NewFetcher creates a fetcher.
func NewFetcher(config Config) *Fetcher {
	return &Fetcher{config: config}
}

// Fetch parses the feed at config.URL. gofeed detects RSS and Atom.
func (f *Fetcher) Fetch(ctx context.Context) (*gofeed.Feed, error) {
	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	fp := gofeed.NewParser()
	fp.UserAgent = f.config.UserAgent
	parsed, err := fp.ParseURLWithContext(f.config.URL, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "parse feed %s", f.config.URL)
	}
	return parsed, nil
}

// Rows flattens every item in parsed.
func Rows(parsed *gofeed.Feed) []Row {
	rows := make([]Row, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		rows = append(rows, ItemRow(item))
	}
	return rows
}

// ItemRow joins an item's title, description and publication date. The
// date is written in the long and ISO forms so it matches a search date the
// same way a table row would.
func ItemRow(item *gofeed.Item) Row {
	parts := []string{item.Title, item.Description}

	// RSS <pubDate> and Atom <published>/<updated> are both parsed by gofeed.
	if item.PublishedParsed != nil {
		parts = append(parts, dateForms(*item.PublishedParsed)...)
	} else if item.UpdatedParsed != nil {
		parts = append(parts, dateForms(*item.UpdatedParsed)...)
	}

	text := strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	return Row{Text: text, Link: item.Link, Authors: authors(item)}
}

func dateForms(t time.Time) []string {
	sd := window.NewSearchDate(t)
	return []string{sd.Long, sd.ISO}
}

// authors collects item authors from <author>, Atom author lists and
// Dublin Core creators, without duplicates.
func authors(item *gofeed.Item) []string {
	names := make([]string, 0)
	if item.Author != nil && item.Author.Name != "" {
		names = append(names, item.Author.Name)
	}
	for _, author := range item.Authors {
		if author.Name != "" && !contains(names, author.Name) {
			names = append(names, author.Name)
		}
	}
	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if creator != "" && !contains(names, creator) {
				names = append(names, creator)
			}
		}
	}
	return names
}

func contains(slice []string, str string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, str) {
			return true
		}
	}
	return false
}
