package crawl

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/docsync/agent/internal/docsync"
	"github.com/docsync/agent/internal/metrics"
)

// BrowserCrawler implements the same discovery contract as StaticCrawler but
// renders each page in headless Chrome, for sites that build their markup
// client side or sit behind bot interstitials.
type BrowserCrawler struct {
	cfg    Config
	logger *zap.Logger
}

// NewBrowser builds a BrowserCrawler. The browser process itself is launched
// per crawl and torn down when the crawl returns.
func NewBrowser(cfg Config, logger *zap.Logger) *BrowserCrawler {
	metrics.Init()
	return &BrowserCrawler{cfg: cfg, logger: logger}
}

// anchorInfo mirrors the object shape produced by the in-page extraction
// script.
type anchorInfo struct {
	Href string `json:"href"`
	Text string `json:"text"`
}

const extractAnchorsJS = `Array.from(document.querySelectorAll('a[href]'))` +
	`.map(a => ({href: a.href, text: a.innerText || ''}))`

// Crawl renders pages with one shared browser instance, one tab per page.
// Cancellation is checked before every navigation and before recursing into
// the next link.
func (c *BrowserCrawler) Crawl(
	ctx context.Context,
	seedURL string,
	scopeFilter []string,
	maxPages int,
) ([]docsync.Discovery, error) {
	r, err := newRun(seedURL, scopeFilter, maxPages)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.UserAgent(c.cfg.userAgent()),
	)
	if c.cfg.BrowserPath != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.BrowserPath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("browser start: %w", err)
	}

	limiter := rate.NewLimiter(rate.Every(c.cfg.delay()), 1)
	c.crawlPage(ctx, browserCtx, r, limiter, r.seedURL)

	if err := ctx.Err(); err != nil {
		return r.discoveries(), fmt.Errorf("crawl interrupted: %w", err)
	}
	metrics.ObserveCrawl(r.seedURL, len(r.visited), len(r.found))
	c.logger.Info("browser crawl finished",
		zap.String("seed", r.seedURL),
		zap.Int("pages_visited", len(r.visited)),
		zap.Int("documents_found", len(r.found)),
	)
	return r.discoveries(), nil
}

func (c *BrowserCrawler) crawlPage(
	ctx context.Context,
	browserCtx context.Context,
	r *run,
	limiter *rate.Limiter,
	pageURL string,
) {
	if ctx.Err() != nil || r.full() {
		return
	}
	// Navigating straight to a document would trigger a native download
	// inside the browser; record it without a page visit.
	if IsDocumentURL(pageURL) {
		if matchesScope(pageURL, "", r.scope) {
			r.addFound(pageURL, "", pageURL)
		}
		return
	}
	if !r.markVisited(pageURL) {
		return
	}
	if err := limiter.Wait(ctx); err != nil {
		return
	}

	anchors, err := c.renderPage(browserCtx, pageURL)
	if err != nil {
		c.logger.Warn("page render failed", zap.String("url", pageURL), zap.Error(err))
		return
	}

	var follow []link
	for _, a := range anchors {
		resolved, ok := resolveLink(pageURL, a.Href)
		if !ok {
			continue
		}
		if IsDocumentURL(resolved) {
			if matchesScope(resolved, a.Text, r.scope) {
				r.addFound(resolved, a.Text, pageURL)
			}
			continue
		}
		if r.onSite(resolved) {
			follow = append(follow, link{URL: resolved, AnchorText: a.Text})
		}
	}

	for _, next := range rankLinks(follow, r.scope, c.cfg.topLinks()) {
		if ctx.Err() != nil || r.full() {
			return
		}
		c.crawlPage(ctx, browserCtx, r, limiter, next)
	}
}

// renderPage opens a fresh tab, waits for the DOM plus a short settle delay,
// and reads the rendered anchors. The tab is closed when the function
// returns.
func (c *BrowserCrawler) renderPage(browserCtx context.Context, pageURL string) ([]anchorInfo, error) {
	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	taskCtx, cancelTask := context.WithTimeout(tabCtx, c.cfg.timeout())
	defer cancelTask()

	var anchors []anchorInfo
	tasks := chromedp.Tasks{
		emulation.SetUserAgentOverride(c.cfg.userAgent()),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(c.cfg.settleDelay()),
		chromedp.Evaluate(extractAnchorsJS, &anchors),
	}
	if err := chromedp.Run(taskCtx, tasks); err != nil {
		return nil, fmt.Errorf("chromedp run: %w", err)
	}
	return anchors, nil
}
