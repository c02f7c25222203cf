package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"
)

const hideWebdriverJS = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`

// markControlsJS tags every node matching an XPath with a data attribute so
// it can be addressed by CSS selector later, and reports what a user would
// see of it.
const markControlsJS = `(() => {
	const result = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	const out = [];
	for (let i = 0; i < result.snapshotLength; i++) {
		const el = result.snapshotItem(i);
		const id = %s + "-" + i;
		el.setAttribute("data-rulings-control", id);
		const style = window.getComputedStyle(el);
		const rect = el.getBoundingClientRect();
		out.push({
			id: id,
			text: (el.innerText || el.textContent || "").trim(),
			visible: style.visibility !== "hidden" && style.display !== "none" && rect.width > 0 && rect.height > 0,
			enabled: !el.disabled && el.getAttribute("aria-disabled") !== "true",
		});
	}
	return out;
})()`

// ChromeLauncher starts headless Chrome through the DevTools protocol.
type ChromeLauncher struct{}

// Launch starts a browser process for opts and opens a blank tab. The session
// outlives ctx's cancellation; it ends when the returned Page is closed.
func (ChromeLauncher) Launch(ctx context.Context, opts Options) (Page, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocatorOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	cancel := func() {
		cancelTab()
		cancelAlloc()
	}

	// The first Run starts the browser; it must not carry a deadline or the
	// browser dies with it.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, errors.Wrapf(err, "start %s browser", opts.Name)
	}

	p := &chromePage{ctx: tabCtx, cancel: cancel, opts: opts}

	var setup []chromedp.Action
	if !opts.Minimal {
		setup = append(setup, chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverJS).Do(ctx)
			return err
		}))
	}
	setup = append(setup, chromedp.Navigate("about:blank"))

	if err := p.run(ctx, opts.PageLoadTimeout, setup...); err != nil {
		p.Close()
		return nil, errors.Wrapf(err, "prepare %s browser", opts.Name)
	}

	return p, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	flags := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Headless,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if opts.ExecPath != "" {
		flags = append(flags, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.Minimal {
		return flags
	}

	flags = append(flags,
		chromedp.DisableGPU,
		chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("disable-plugins", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.UserAgent != "" {
		flags = append(flags, chromedp.UserAgent(opts.UserAgent))
	}
	return flags
}

type chromePage struct {
	ctx    context.Context
	cancel func()
	opts   Options
	seq    int
	closed bool
}

// run executes actions on the tab under timeout, also stopping early when
// the caller's ctx is cancelled.
func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.opts.PageLoadTimeout, chromedp.Navigate(url)); err != nil {
		return errors.Wrapf(err, "navigate to %s", url)
	}
	return nil
}

func (p *chromePage) EvalBool(ctx context.Context, expression string) (bool, error) {
	var ok bool
	if err := p.run(ctx, p.opts.ImplicitWait, chromedp.Evaluate(expression, &ok)); err != nil {
		return false, err
	}
	return ok, nil
}

type controlInfo struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
}

func (p *chromePage) Controls(ctx context.Context, xpath string) ([]Control, error) {
	p.seq++
	script := fmt.Sprintf(markControlsJS, jsString(xpath), jsString(fmt.Sprintf("c%d", p.seq)))

	var infos []controlInfo
	if err := p.run(ctx, p.opts.ImplicitWait, chromedp.Evaluate(script, &infos)); err != nil {
		return nil, errors.Wrapf(err, "find controls %s", xpath)
	}

	controls := make([]Control, 0, len(infos))
	for _, info := range infos {
		controls = append(controls, &chromeControl{
			page:     p,
			info:     info,
			selector: fmt.Sprintf(`[data-rulings-control=%q]`, info.ID),
		})
	}
	return controls, nil
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, p.opts.PageLoadTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", errors.Wrap(err, "read page html")
	}
	return html, nil
}

func (p *chromePage) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true

	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}

type chromeControl struct {
	page     *chromePage
	info     controlInfo
	selector string
}

func (c *chromeControl) Text() string  { return c.info.Text }
func (c *chromeControl) Visible() bool { return c.info.Visible }
func (c *chromeControl) Enabled() bool { return c.info.Enabled }

func (c *chromeControl) ScrollIntoView(ctx context.Context) error {
	return c.page.run(ctx, c.page.opts.ImplicitWait, chromedp.ScrollIntoView(c.selector, chromedp.ByQuery))
}

func (c *chromeControl) Click(ctx context.Context) error {
	return c.page.run(ctx, c.page.opts.ImplicitWait, chromedp.Click(c.selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (c *chromeControl) ForceClick(ctx context.Context) error {
	script := fmt.Sprintf(`(() => { document.querySelector(%s).click(); return true; })()`, jsString(c.selector))
	var ok bool
	return c.page.run(ctx, c.page.opts.ImplicitWait, chromedp.Evaluate(script, &ok))
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
