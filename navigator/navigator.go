// Package navigator walks candidate entry URLs until one of them shows the
// latest-rulings view. The target is a JavaScript application, so every
// step waits for the framework and the content to settle.
package navigator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pevans/rulings/browser"
	"github.com/pevans/rulings/fault"
)

const (
	documentReadyJS = `document.readyState === "complete"`
	appReadyJS      = `typeof window.ng !== 'undefined' || document.querySelector('app-root') !== null || document.querySelector('[ng-app]') !== null`
	contentReadyJS  = `document.querySelector('table') !== null || document.querySelector('.results') !== null || document.querySelectorAll('tr').length > 5`
)

// controlPatterns locate an element whose own text contains a label: a
// button, a link, or a span nested directly in either.
var controlPatterns = []string{
	"//button[contains(text(), '%s')]",
	"//a[contains(text(), '%s')]",
	"//span[contains(text(), '%s')]/parent::button",
	"//span[contains(text(), '%s')]/parent::a",
}

// Config holds the waits used while navigating.
type Config struct {
	// Labels are the accepted phrasings of the latest-rulings control, tried
	// in order and matched case-sensitively.
	Labels []string `yaml:"labels"`

	SettleDelay          time.Duration `yaml:"settle_delay"`
	DocumentReadyTimeout time.Duration `yaml:"document_ready_timeout"`
	AppReadyTimeout      time.Duration `yaml:"app_ready_timeout"`
	ContentTimeout       time.Duration `yaml:"content_timeout"`
	PollInterval         time.Duration `yaml:"poll_interval"`
	ScrollDelay          time.Duration `yaml:"scroll_delay"`
}

// DefaultConfig returns the waits tuned for the constitutional court site.
func DefaultConfig() Config {
	return Config{
		Labels: []string{
			"Ver últimas sentencias",
			"últimas sentencias",
			"Últimas sentencias",
			"Ver sentencias recientes",
		},
		SettleDelay:          1500 * time.Millisecond,
		DocumentReadyTimeout: 6 * time.Second,
		AppReadyTimeout:      4 * time.Second,
		ContentTimeout:       3 * time.Second,
		PollInterval:         300 * time.Millisecond,
		ScrollDelay:          300 * time.Millisecond,
	}
}

// Resolver finds a working entry point.
type Resolver struct {
	config Config
	log    *zap.SugaredLogger
}

// New creates a resolver. A nil logger discards output.
func New(config Config, log *zap.SugaredLogger) *Resolver {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Resolver{config: config, log: log}
}

// Resolve visits candidates in order and returns true once a
// latest-rulings control has been clicked. A candidate that fails to load or
// has no usable control is skipped; when none works the result is false.
func (r *Resolver) Resolve(ctx context.Context, page browser.Page, candidates []string) bool {
	for _, url := range candidates {
		if ctx.Err() != nil {
			return false
		}

		r.log.Infow("Navigating", "url", url)
		if err := page.Navigate(ctx, url); err != nil {
			r.log.Infow("Could not load entry point", "url", url, "error", fault.Message(err, 50))
			continue
		}
		r.sleep(ctx, r.config.SettleDelay)
		r.WaitReady(ctx, page)

		if r.clickLatest(ctx, page) {
			return true
		}
		r.log.Infow("No latest-rulings control found", "url", url)
	}

	return false
}

// WaitReady waits for the document, then the application root, then
// content. Each wait is bounded; a timeout is logged and the flow goes on.
func (r *Resolver) WaitReady(ctx context.Context, page browser.Page) {
	if err := r.poll(ctx, page, documentReadyJS, r.config.DocumentReadyTimeout); err != nil {
		r.log.Warnw("Timed out waiting for document, continuing", "error", fault.Message(err, 100))
	}
	if err := r.poll(ctx, page, appReadyJS, r.config.AppReadyTimeout); err != nil {
		r.log.Warnw("Timed out waiting for application, continuing", "error", fault.Message(err, 100))
	}
	if err := r.poll(ctx, page, contentReadyJS, r.config.ContentTimeout); err != nil {
		r.log.Debugw("Results content not detected", "error", fault.Message(err, 100))
	}
}

// poll evaluates expression every PollInterval until it is true or timeout
// elapses. Evaluation errors count as not ready.
func (r *Resolver) poll(ctx context.Context, page browser.Page, expression string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := page.EvalBool(ctx, expression)
		if err == nil && ok {
			return nil
		}
		if ctx.Err() != nil {
			return fault.New(fault.KindElementTimeout, "wait ready", ctx.Err())
		}
		if !time.Now().Before(deadline) {
			return fault.Newf(fault.KindElementTimeout, "wait ready", "condition not met after %s", timeout)
		}
		r.sleep(ctx, r.config.PollInterval)
	}
}

// clickLatest clicks the first visible, enabled control matching any label
// and waits for the resulting view.
func (r *Resolver) clickLatest(ctx context.Context, page browser.Page) bool {
	for _, label := range r.config.Labels {
		for _, pattern := range controlPatterns {
			xpath := fmt.Sprintf(pattern, label)
			controls, err := page.Controls(ctx, xpath)
			if err != nil {
				continue
			}

			for _, control := range controls {
				if !control.Visible() || !control.Enabled() {
					continue
				}
				if !r.click(ctx, control) {
					break
				}

				r.log.Infow("Clicked latest-rulings control", "text", control.Text())
				r.sleep(ctx, r.config.SettleDelay)
				r.WaitReady(ctx, page)
				return true
			}
		}
	}
	return false
}

// click scrolls control into view and clicks it, forcing a script click when
// the native one is intercepted.
func (r *Resolver) click(ctx context.Context, control browser.Control) bool {
	if err := control.ScrollIntoView(ctx); err != nil {
		r.log.Debugw("Scroll into view failed", "error", fault.Message(err, 80))
	}
	r.sleep(ctx, r.config.ScrollDelay)

	if err := control.Click(ctx); err != nil {
		r.log.Debugw("Native click failed, forcing", "error", fault.Message(err, 80))
		if err := control.ForceClick(ctx); err != nil {
			r.log.Debugw("Forced click failed", "error", fault.Message(err, 80))
			return false
		}
	}
	return true
}

func (r *Resolver) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
