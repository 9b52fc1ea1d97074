package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/readerview/pkg/config"
	"github.com/Sriram-PR/readerview/pkg/metrics"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

const outerHTMLScript = `() => document.documentElement.outerHTML`

// RenderedFetcher loads pages in a headless browser, lets client-side
// scripts settle and captures the resulting markup. The browser is launched
// on first use.
type RenderedFetcher struct {
	cfg  config.RenderConfig
	tabs *semaphore.Weighted
	log  *logrus.Entry

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	closed   bool
}

// NewRenderedFetcher creates a renderer; no browser is started yet
func NewRenderedFetcher(cfg config.RenderConfig, log *logrus.Entry) *RenderedFetcher {
	tabs := cfg.MaxTabs
	if tabs <= 0 {
		tabs = 1
	}
	return &RenderedFetcher{
		cfg:  cfg,
		tabs: semaphore.NewWeighted(int64(tabs)),
		log:  log.WithField("mode", ModeRendered),
	}
}

// Fetch implements Fetcher
func (r *RenderedFetcher) Fetch(ctx context.Context, u *url.URL) (string, error) {
	start := time.Now()
	html, err := r.render(ctx, u)
	metrics.FetchDuration.WithLabelValues(string(ModeRendered)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FetchErrors.WithLabelValues(string(ModeRendered), utils.CategorizeError(err)).Inc()
	}
	return html, err
}

func (r *RenderedFetcher) render(ctx context.Context, u *url.URL) (string, error) {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %v", utils.ErrBadURL, u)
	}
	if err := r.tabs.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer r.tabs.Release(1)

	browser, err := r.ensureBrowser()
	if err != nil {
		return "", err
	}
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		r.resetBrowser(browser)
		return "", fmt.Errorf("%w: open tab: %v", utils.ErrNavigation, err)
	}
	defer page.Close()

	navCtx := ctx
	if r.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, r.cfg.NavigationTimeout)
		defer cancel()
	}
	p := page.Context(navCtx)

	pageLog := r.log.WithField("url", u.String())
	if err := p.Navigate(u.String()); err != nil {
		return "", r.navigationError(ctx, err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", r.navigationError(ctx, err)
	}

	// Client-side rendering has no completion event; wait a fixed interval.
	if r.cfg.SettleDelay > 0 {
		select {
		case <-time.After(r.cfg.SettleDelay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	res, err := p.Eval(outerHTMLScript)
	if err != nil {
		return "", r.navigationError(ctx, err)
	}
	html := res.Value.Str()
	pageLog.WithField("bytes", len(html)).Debug("Captured rendered page")
	return html, nil
}

func (r *RenderedFetcher) navigationError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		return fmt.Errorf("%w: %s", utils.ErrNavigation, navErr.Reason)
	}
	return fmt.Errorf("%w: %v", utils.ErrNavigation, err)
}

func (r *RenderedFetcher) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, fmt.Errorf("%w: renderer closed", utils.ErrNavigation)
	}
	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(!r.cfg.Headful).NoSandbox(true)
	if r.cfg.BrowserBin != "" {
		l = l.Bin(r.cfg.BrowserBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	r.launcher = l
	r.browser = b
	r.log.Info("Headless browser started")
	return b, nil
}

// resetBrowser drops a browser that stopped accepting tabs; the next fetch relaunches
func (r *RenderedFetcher) resetBrowser(b *rod.Browser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != b {
		return
	}
	_ = b.Close()
	if r.launcher != nil {
		r.launcher.Kill()
	}
	r.browser, r.launcher = nil, nil
	r.log.Warn("Headless browser reset")
}

// Close shuts the browser down
func (r *RenderedFetcher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	var err error
	if r.browser != nil {
		err = r.browser.Close()
	}
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher.Cleanup()
	}
	r.browser, r.launcher = nil, nil
	return err
}
