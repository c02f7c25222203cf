// Package browser acquires and drives a headless browser session. The rest of
// the pipeline only sees the Page and Control interfaces, so it can run
// against a fake in tests.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pevans/rulings/fault"
)

// Page is a live browser tab.
type Page interface {
	// Navigate loads url, bounded by the session's page-load timeout.
	Navigate(ctx context.Context, url string) error
	// EvalBool evaluates a JavaScript expression that yields a boolean.
	EvalBool(ctx context.Context, expression string) (bool, error)
	// Controls returns the elements matching an XPath expression in
	// document order.
	Controls(ctx context.Context, xpath string) ([]Control, error)
	// HTML returns the rendered document's outer HTML.
	HTML(ctx context.Context) (string, error)
	// Close releases the tab and the browser process behind it.
	Close() error
}

// Control is a clickable element found on a Page.
type Control interface {
	Text() string
	Visible() bool
	Enabled() bool
	ScrollIntoView(ctx context.Context) error
	// Click dispatches a native mouse click.
	Click(ctx context.Context) error
	// ForceClick calls the element's click() from script, which works when
	// an overlay intercepts the native click.
	ForceClick(ctx context.Context) error
}

// Launcher starts a browser with a given configuration.
type Launcher interface {
	Launch(ctx context.Context, opts Options) (Page, error)
}

// Options describes one browser configuration.
type Options struct {
	// Name identifies the configuration in logs and errors.
	Name string `yaml:"-"`

	ExecPath        string        `yaml:"exec_path"`
	UserAgent       string        `yaml:"user_agent"`
	WindowWidth     int           `yaml:"window_width"`
	WindowHeight    int           `yaml:"window_height"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout"`
	ImplicitWait    time.Duration `yaml:"implicit_wait"`

	// Minimal keeps only the headless and sandbox flags.
	Minimal bool `yaml:"-"`
}

// PrimaryOptions is the fully optioned headless configuration: fixed
// viewport, no images or plugins, automation fingerprint hidden.
func PrimaryOptions() Options {
	return Options{
		Name:            "primary",
		UserAgent:       "SistemaEditorialJuridico/1.0",
		WindowWidth:     1920,
		WindowHeight:    1080,
		PageLoadTimeout: 15 * time.Second,
		ImplicitWait:    2 * time.Second,
	}
}

// FallbackOptions is the minimal configuration tried when the primary one
// cannot start.
func FallbackOptions() Options {
	return Options{
		Name:            "fallback",
		PageLoadTimeout: 30 * time.Second,
		ImplicitWait:    2 * time.Second,
		Minimal:         true,
	}
}

// Acquire launches a session with primary, then once more with fallback. When
// both fail the error is a fault.KindSessionUnavailable naming both
// configurations, with the primary failure as the root cause.
func Acquire(ctx context.Context, launcher Launcher, primary, fallback Options, log *zap.SugaredLogger) (Page, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	log.Infow("Starting browser session", "config", primary.Name)
	page, primaryErr := launcher.Launch(ctx, primary)
	if primaryErr == nil {
		return page, nil
	}
	log.Warnw("Browser configuration failed", "config", primary.Name, "error", fault.Message(primaryErr, 100))

	log.Infow("Retrying with simplified browser configuration", "config", fallback.Name)
	page, fallbackErr := launcher.Launch(ctx, fallback)
	if fallbackErr == nil {
		return page, nil
	}
	log.Errorw("Fallback browser configuration failed", "config", fallback.Name, "error", fault.Message(fallbackErr, 100))

	err := errors.WithSecondaryError(
		errors.Wrapf(primaryErr, "configurations %q and %q failed", primary.Name, fallback.Name),
		fallbackErr,
	)
	err = errors.WithHint(err, "check the Chrome installation and process permissions")
	return nil, fault.New(fault.KindSessionUnavailable, "acquire session", err)
}

func (o Options) String() string {
	return fmt.Sprintf("%s(load=%s, wait=%s, minimal=%t)", o.Name, o.PageLoadTimeout, o.ImplicitWait, o.Minimal)
}
