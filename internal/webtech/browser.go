package webtech

import (
	"context"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// RenderError is a page-level navigation or rendering failure: a dead
// domain, a TLS error, or a load timeout on the lead's site. Browser launch
// and connection faults are reported as plain errors instead.
type RenderError struct {
	URL string
	Err error
}

func (e *RenderError) Error() string { return "webtech: render " + e.URL + ": " + e.Err.Error() }

func (e *RenderError) Unwrap() error { return e.Err }

// Browser owns a shared headless Chrome instance. The instance launches
// lazily on the first render and is reused across requests; pages are
// per-request and always closed.
type Browser struct {
	pageTimeout time.Duration

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowser creates a browser manager. Chrome does not launch until the
// first RenderHTML call.
func NewBrowser(pageTimeout time.Duration) *Browser {
	if pageTimeout <= 0 {
		pageTimeout = 15 * time.Second
	}
	return &Browser{pageTimeout: pageTimeout}
}

// ensure launches and connects to Chrome if not already running.
func (b *Browser) ensure() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser != nil {
		return b.browser, nil
	}

	url, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return nil, eris.Wrap(err, "webtech: launch chrome")
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, eris.Wrap(err, "webtech: connect to chrome")
	}

	zap.L().Info("headless browser started", zap.String("control_url", url))
	b.browser = browser
	return browser, nil
}

// RenderHTML navigates to url in a fresh page and returns the rendered
// document after scripts have run. The page is closed on every path.
func (b *Browser) RenderHTML(ctx context.Context, url string) (string, error) {
	browser, err := b.ensure()
	if err != nil {
		return "", err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", eris.Wrap(err, "webtech: open page")
	}
	defer page.Close() //nolint:errcheck

	page = page.Context(ctx).Timeout(b.pageTimeout)
	if err := page.Navigate(url); err != nil {
		return "", &RenderError{URL: url, Err: err}
	}
	if err := page.WaitLoad(); err != nil {
		return "", &RenderError{URL: url, Err: err}
	}

	html, err := page.HTML()
	if err != nil {
		return "", &RenderError{URL: url, Err: err}
	}
	return html, nil
}

// Shutdown closes the shared browser. Safe to call when it never launched.
func (b *Browser) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return
	}
	if err := b.browser.Close(); err != nil {
		zap.L().Warn("browser close failed", zap.Error(err))
	}
	b.browser = nil
}
