// Package browsertest provides in-memory browser fakes for tests.
package browsertest

import (
	"context"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/pevans/rulings/browser"
)

// Page is a scripted browser.Page. Navigation to URLs listed in FailURLs
// fails; every other URL loads Pages[url] or, when absent, DefaultHTML.
type Page struct {
	mu sync.Mutex

	Pages       map[string]string
	DefaultHTML string
	FailURLs    map[string]bool

	// Ready is returned by every EvalBool call.
	Ready   bool
	EvalErr error

	// Buttons maps an accepted label to the controls whose text contains it.
	// Controls answers XPath queries by looking for a quoted label.
	Buttons map[string][]*Control
	HTMLErr error

	Navigations []string
	Evaluations int
	Closed      int

	current string
}

// NewPage returns a ready page serving html at every URL with one visible,
// enabled control for label.
func NewPage(html, label string) *Page {
	return &Page{
		DefaultHTML: html,
		Ready:       true,
		Buttons: map[string][]*Control{
			label: {{Label: label, IsVisible: true, IsEnabled: true}},
		},
	}
}

func (p *Page) Navigate(_ context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Navigations = append(p.Navigations, url)
	if p.FailURLs[url] {
		return errors.New("net::ERR_CONNECTION_REFUSED")
	}
	p.current = url
	return nil
}

func (p *Page) EvalBool(context.Context, string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Evaluations++
	return p.Ready, p.EvalErr
}

func (p *Page) Controls(_ context.Context, xpath string) ([]browser.Control, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var controls []browser.Control
	for label, buttons := range p.Buttons {
		if !strings.Contains(xpath, "'"+label+"'") {
			continue
		}
		// Only the plain button pattern answers, so each control is seen
		// once per label.
		if !strings.HasPrefix(xpath, "//button") {
			continue
		}
		for _, b := range buttons {
			controls = append(controls, b)
		}
	}
	return controls, nil
}

func (p *Page) HTML(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.HTMLErr != nil {
		return "", p.HTMLErr
	}
	if html, ok := p.Pages[p.current]; ok {
		return html, nil
	}
	return p.DefaultHTML, nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.Closed++
	return nil
}

// Control is a scripted browser.Control.
type Control struct {
	Label     string
	IsVisible bool
	IsEnabled bool

	ClickErr      error
	ForceClickErr error

	Scrolls     int
	Clicks      int
	ForceClicks int
}

func (c *Control) Text() string  { return c.Label }
func (c *Control) Visible() bool { return c.IsVisible }
func (c *Control) Enabled() bool { return c.IsEnabled }

func (c *Control) ScrollIntoView(context.Context) error {
	c.Scrolls++
	return nil
}

func (c *Control) Click(context.Context) error {
	c.Clicks++
	return c.ClickErr
}

func (c *Control) ForceClick(context.Context) error {
	c.ForceClicks++
	return c.ForceClickErr
}

// Launcher hands out Page, failing for every configuration named in Fail.
type Launcher struct {
	Page *Page
	Fail map[string]error

	Launched []browser.Options
}

func (l *Launcher) Launch(_ context.Context, opts browser.Options) (browser.Page, error) {
	l.Launched = append(l.Launched, opts)
	if err := l.Fail[opts.Name]; err != nil {
		return nil, err
	}
	return l.Page, nil
}
