package rulings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/pevans/rulings/browser"
	"github.com/pevans/rulings/download"
	"github.com/pevans/rulings/extract"
	"github.com/pevans/rulings/fault"
	"github.com/pevans/rulings/feed"
	"github.com/pevans/rulings/navigator"
	"github.com/pevans/rulings/ruling"
	"github.com/pevans/rulings/verify"
	"github.com/pevans/rulings/window"
)

// Supported values for Request.Source.
const (
	SourceCourt = "corte_constitucional"
	SourceFeed  = "corte_constitucional_feed"
)

// State is the position of a DiscoveryService in its run.
type State int

const (
	StateIdle State = iota
	StateSessionReady
	StateNavigated
	StateSearching
	StateFiltering
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSessionReady:
		return "session_ready"
	case StateNavigated:
		return "navigated"
	case StateSearching:
		return "searching"
	case StateFiltering:
		return "filtering"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// StoreCounter reports how many documents the downstream store holds.
type StoreCounter interface {
	Count(ctx context.Context) (int, error)
}

// FeedFetcher retrieves the court's publication feed.
type FeedFetcher interface {
	Fetch(ctx context.Context) (*gofeed.Feed, error)
}

// Downloader saves one document locally, returning nil when nothing was
// kept.
type Downloader interface {
	Download(ctx context.Context, url string, id ruling.Identifier) *download.Artifact
}

// DiscoveryConfig holds configuration for the discovery service.
type DiscoveryConfig struct {
	// Candidate entry points, tried in order
	EntryURLs []string

	Primary    browser.Options
	Fallback   browser.Options
	Navigation navigator.Config
	Window     window.Config
	Extraction extract.Config
	Verify     verify.Config
	Download   download.Config
	Feed       feed.Config

	// A store holding fewer documents than this is searched in extended
	// mode
	EmptyThreshold int
}

// DefaultDiscoveryConfig returns the configuration for the constitutional
// court.
func DefaultDiscoveryConfig() *DiscoveryConfig {
	ext := extract.DefaultConfig()
	return &DiscoveryConfig{
		EntryURLs: []string{
			ext.BaseURL + "/jurisprudencia/",
			ext.BaseURL + "/relatoria/",
			ext.BaseURL + "/",
		},
		Primary:        browser.PrimaryOptions(),
		Fallback:       browser.FallbackOptions(),
		Navigation:     navigator.DefaultConfig(),
		Window:         window.DefaultConfig(),
		Extraction:     ext,
		Verify:         verify.DefaultConfig(),
		Download:       download.DefaultConfig(),
		Feed:           feed.DefaultConfig(),
		EmptyThreshold: 5,
	}
}

// Option customizes a DiscoveryService.
type Option func(*DiscoveryService)

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(ds *DiscoveryService) { ds.log = log }
}

// WithLauncher replaces the Chrome launcher.
func WithLauncher(l browser.Launcher) Option {
	return func(ds *DiscoveryService) { ds.launcher = l }
}

// WithCounter sets the store-size collaborator. Without one every search
// starts in normal mode.
func WithCounter(c StoreCounter) Option {
	return func(ds *DiscoveryService) { ds.counter = c }
}

// WithProber replaces the HTTP prober behind the verification cache.
func WithProber(p verify.Prober) Option {
	return func(ds *DiscoveryService) { ds.prober = p }
}

// WithDownloader replaces the document downloader.
func WithDownloader(d Downloader) Option {
	return func(ds *DiscoveryService) { ds.downloader = d }
}

// WithFeedFetcher replaces the feed fetcher used by SourceFeed.
func WithFeedFetcher(f FeedFetcher) Option {
	return func(ds *DiscoveryService) { ds.feed = f }
}

// WithClock sets the source of "today".
func WithClock(now func() time.Time) Option {
	return func(ds *DiscoveryService) { ds.now = now }
}

// DiscoveryService runs discovery against one court. It owns a browser
// session and a verification cache for its lifetime; the session is started
// on first use and released by Close. A DiscoveryService is not safe for
// concurrent use.
type DiscoveryService struct {
	config *DiscoveryConfig
	log    *zap.SugaredLogger
	now    func() time.Time

	launcher   browser.Launcher
	prober     verify.Prober
	counter    StoreCounter
	feed       FeedFetcher
	downloader Downloader

	resolver  *navigator.Resolver
	extractor *extract.Extractor
	cache     *verify.Cache

	page     browser.Page
	state    State
	lastMode window.Mode
}

// NewDiscoveryService creates a new discovery service.
func NewDiscoveryService(config *DiscoveryConfig, opts ...Option) *DiscoveryService {
	if config == nil {
		config = DefaultDiscoveryConfig()
	}

	ds := &DiscoveryService{config: config}
	for _, opt := range opts {
		opt(ds)
	}

	if ds.log == nil {
		ds.log = zap.NewNop().Sugar()
	}
	if ds.now == nil {
		ds.now = time.Now
	}
	if ds.launcher == nil {
		ds.launcher = browser.ChromeLauncher{}
	}
	if ds.prober == nil {
		ds.prober = verify.NewHTTPProber(config.Verify)
	}
	if ds.downloader == nil {
		ds.downloader = download.New(config.Download, ds.log)
	}
	if ds.feed == nil && config.Feed.URL != "" {
		ds.feed = feed.NewFetcher(config.Feed)
	}

	ds.resolver = navigator.New(config.Navigation, ds.log)
	ds.extractor = extract.New(config.Extraction, ds.log, ds.now)
	ds.cache = verify.NewCache(config.Verify, ds.prober, ds.log, ds.now)
	return ds
}

// State returns where the last run stopped.
func (ds *DiscoveryService) State() State {
	return ds.state
}

// Mode returns the search mode the last run ended in.
func (ds *DiscoveryService) Mode() window.Mode {
	return ds.lastMode
}

// CacheStats exposes verification cache counters.
func (ds *DiscoveryService) CacheStats() verify.Stats {
	return ds.cache.Stats()
}

// Close releases the browser session, if one was started.
func (ds *DiscoveryService) Close() error {
	if ds.page == nil {
		return nil
	}
	err := ds.page.Close()
	ds.page = nil
	ds.state = StateIdle
	return err
}

// Discover finds up to limit verified rulings published in the search
// window. When checkEmpty is set and the store-size collaborator reports a
// nearly empty store, the window starts in extended mode. A normal-mode
// search that finds nothing is repeated once in extended mode.
//
// Only session, navigation and internal failures are returned as errors;
// everything below is logged and skipped.
func (ds *DiscoveryService) Discover(ctx context.Context, source string, limit int, checkEmpty bool) (docs []ruling.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			ds.state = StateFailed
			docs = nil
			err = fault.Newf(fault.KindInternal, "discover", "panic: %v", r)
		}
		if err != nil {
			ds.logFailure(err)
		}
	}()

	collect, err := ds.collector(source)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		ds.state = StateDone
		return nil, nil
	}

	mode := ds.searchMode(ctx, checkEmpty)
	ds.lastMode = mode

	candidates, err := collect(ctx, mode, limit)
	if err != nil {
		ds.state = StateFailed
		return nil, err
	}

	if len(candidates) == 0 && mode == window.Normal {
		ds.log.Infow("No rulings in normal window, escalating to extended search")
		mode = window.Extended
		ds.lastMode = mode
		candidates, err = collect(ctx, mode, limit)
		if err != nil {
			ds.state = StateFailed
			return nil, err
		}
	}

	ds.state = StateFiltering
	docs = ds.filterVerified(ctx, candidates)
	if len(docs) > limit {
		docs = docs[:limit]
	}

	ds.state = StateDone
	ds.log.Infow("Discovery finished",
		"source", source,
		"mode", mode.String(),
		"candidates", len(candidates),
		"verified", len(docs),
	)
	return docs, nil
}

type collectFunc func(ctx context.Context, mode window.Mode, limit int) ([]ruling.Document, error)

func (ds *DiscoveryService) collector(source string) (collectFunc, error) {
	switch source {
	case SourceCourt:
		return ds.collectFromSite, nil
	case SourceFeed:
		if ds.feed == nil {
			return nil, errors.WithHint(
				errors.Newf("source %q has no feed configured", source),
				"set feed.url in the configuration file",
			)
		}
		return ds.collectFromFeed(), nil
	default:
		return nil, errors.WithHint(
			errors.Newf("unsupported source %q", source),
			fmt.Sprintf("use %q or %q", SourceCourt, SourceFeed),
		)
	}
}

// searchMode asks the store-size collaborator whether the store is nearly
// empty. An unknown size means normal mode.
func (ds *DiscoveryService) searchMode(ctx context.Context, checkEmpty bool) window.Mode {
	if !checkEmpty || ds.counter == nil {
		return window.Normal
	}

	total, err := ds.counter.Count(ctx)
	if err != nil {
		ds.log.Warnw("Store size unknown, using normal search",
			"kind", fault.KindOf(err).String(),
			"error", fault.Message(err, 100),
		)
		return window.Normal
	}

	if total < ds.config.EmptyThreshold {
		ds.log.Infow("Store nearly empty, using extended search", "documents", total)
		return window.Extended
	}
	return window.Normal
}

// session starts the browser on first use and reuses it afterwards.
func (ds *DiscoveryService) session(ctx context.Context) (browser.Page, error) {
	if ds.page != nil {
		return ds.page, nil
	}

	page, err := browser.Acquire(ctx, ds.launcher, ds.config.Primary, ds.config.Fallback, ds.log)
	if err != nil {
		return nil, err
	}
	ds.page = page
	ds.state = StateSessionReady
	return page, nil
}

// collectFromSite navigates to the latest-rulings view and scans it once per
// search date.
func (ds *DiscoveryService) collectFromSite(ctx context.Context, mode window.Mode, limit int) ([]ruling.Document, error) {
	page, err := ds.session(ctx)
	if err != nil {
		return nil, err
	}

	if !ds.resolver.Resolve(ctx, page, ds.config.EntryURLs) {
		return nil, fault.Newf(fault.KindNavigationExhausted, "resolve entry",
			"none of %d entry points produced the results view", len(ds.config.EntryURLs))
	}
	ds.state = StateNavigated

	ds.state = StateSearching
	dates := window.Generate(ds.now(), ds.config.Window.Days(mode))
	ds.log.Infow("Searching", "mode", mode.String(), "dates", len(dates))

	var results []ruling.Document
	seen := make(map[ruling.Identifier]bool)
	for _, date := range dates {
		if len(results) >= limit || ctx.Err() != nil {
			break
		}

		doc, err := ds.snapshot(ctx, page)
		if err != nil {
			ds.log.Warnw("Could not read results page", "date", date.ISO, "error", fault.Message(err, 100))
			continue
		}

		found := ds.extractor.ExtractPage(doc, date, limit-len(results))
		results = appendUnique(results, seen, found)
		ds.log.Debugw("Searched date", "date", date.ISO, "found", len(found))
	}

	return results, nil
}

func (ds *DiscoveryService) snapshot(ctx context.Context, page browser.Page) (*goquery.Document, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fault.New(fault.KindExtractionRow, "parse results page", err)
	}
	return doc, nil
}

// collectFromFeed scans feed items instead of a rendered page. The feed is
// fetched once per Discover call and reused on escalation.
func (ds *DiscoveryService) collectFromFeed() collectFunc {
	var rows []feed.Row

	return func(ctx context.Context, mode window.Mode, limit int) ([]ruling.Document, error) {
		if rows == nil {
			parsed, err := ds.feed.Fetch(ctx)
			if err != nil {
				return nil, fault.New(fault.KindNavigationExhausted, "fetch feed", err)
			}
			rows = feed.Rows(parsed)
		}
		ds.state = StateSearching

		dates := window.Generate(ds.now(), ds.config.Window.Days(mode))
		ds.log.Infow("Searching feed", "mode", mode.String(), "dates", len(dates), "items", len(rows))

		var results []ruling.Document
		seen := make(map[ruling.Identifier]bool)
		for _, date := range dates {
			for _, row := range rows {
				if len(results) >= limit {
					return results, nil
				}
				found := ds.extractor.ExtractRows([]string{row.Text}, date, 1)
				for i := range found {
					found[i].Magistrate = strings.Join(row.Authors, ", ")
				}
				results = appendUnique(results, seen, found)
			}
		}
		return results, nil
	}
}

// appendUnique adds found to results, skipping identifiers already seen on
// an earlier date.
func appendUnique(results []ruling.Document, seen map[ruling.Identifier]bool, found []ruling.Document) []ruling.Document {
	for _, doc := range found {
		if seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		results = append(results, doc)
	}
	return results
}

// filterVerified keeps the documents whose synthesized URL serves a
// document.
func (ds *DiscoveryService) filterVerified(ctx context.Context, candidates []ruling.Document) []ruling.Document {
	verified := make([]ruling.Document, 0, len(candidates))
	for _, doc := range candidates {
		if doc.PDFURL == "" {
			continue
		}
		if !ds.cache.Verify(ctx, doc.PDFURL) {
			ds.log.Infow("Discarding unverified document", "id", doc.ID, "url", doc.PDFURL)
			continue
		}
		verified = append(verified, doc)
	}
	return verified
}

func (ds *DiscoveryService) logFailure(err error) {
	kind := fault.KindOf(err)
	fields := []any{
		"kind", kind.String(),
		"transport", fault.TransportOf(err).String(),
		"error", fault.Message(err, 100),
	}
	if hints := errors.GetAllHints(err); len(hints) > 0 {
		fields = append(fields, "hint", strings.Join(hints, "; "))
	}

	if kind.Terminal() {
		ds.log.Errorw("Discovery failed", fields...)
	} else {
		ds.log.Warnw("Discovery failed", fields...)
	}
}
