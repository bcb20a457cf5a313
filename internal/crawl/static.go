package crawl

import (
	"bytes"
	"context"
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/docsync/agent/internal/docsync"
	"github.com/docsync/agent/internal/metrics"
)

// Page is a fetched response in the form the crawl logic consumes.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}

// StaticCrawler discovers documents with plain HTTP GETs via Colly. It also
// hosts the JS-site probe run against the seed before a full crawl.
type StaticCrawler struct {
	cfg      Config
	logger   *zap.Logger
	detector *Detector
	base     *colly.Collector
}

// NewStatic builds a StaticCrawler.
func NewStatic(cfg Config, logger *zap.Logger) *StaticCrawler {
	metrics.Init()
	c := colly.NewCollector(colly.Async(false), colly.UserAgent(cfg.userAgent()))
	c.IgnoreRobotsTxt = true
	c.ParseHTTPErrorResponse = true
	c.SetRequestTimeout(cfg.timeout())

	return &StaticCrawler{
		cfg:      cfg,
		logger:   logger,
		detector: NewDetector(),
		base:     c,
	}
}

// Crawl walks the site breadth-bounded from seedURL and returns discovered
// document candidates. Visits at most maxPages pages, never the same URL
// twice, and honors ctx between fetches.
func (c *StaticCrawler) Crawl(
	ctx context.Context,
	seedURL string,
	scopeFilter []string,
	maxPages int,
) ([]docsync.Discovery, error) {
	r, err := newRun(seedURL, scopeFilter, maxPages)
	if err != nil {
		return nil, err
	}
	limiter := rate.NewLimiter(rate.Every(c.cfg.delay()), 1)

	c.crawlPage(ctx, r, limiter, r.seedURL)

	if err := ctx.Err(); err != nil {
		return r.discoveries(), fmt.Errorf("crawl interrupted: %w", err)
	}
	metrics.ObserveCrawl(r.seedURL, len(r.visited), len(r.found))
	c.logger.Info("static crawl finished",
		zap.String("seed", r.seedURL),
		zap.Int("pages_visited", len(r.visited)),
		zap.Int("documents_found", len(r.found)),
	)
	return r.discoveries(), nil
}

// ProbeSeed fetches the seed once and reports whether a rendering browser is
// required. Transport-level failures count as browser-required: a site that
// rejects plain clients outright is exactly the case the browser exists for.
func (c *StaticCrawler) ProbeSeed(ctx context.Context, seedURL string) bool {
	page, err := c.fetch(ctx, EnsureScheme(seedURL))
	if err != nil {
		c.logger.Warn("seed probe fetch failed, assuming browser required",
			zap.String("seed", seedURL), zap.Error(err))
		return true
	}
	needed := c.detector.NeedsBrowser(page)
	c.logger.Info("seed probe",
		zap.String("seed", seedURL),
		zap.Int("status", page.StatusCode),
		zap.Bool("browser_required", needed),
	)
	return needed
}

func (c *StaticCrawler) crawlPage(ctx context.Context, r *run, limiter *rate.Limiter, pageURL string) {
	if ctx.Err() != nil || r.full() || !r.markVisited(pageURL) {
		return
	}
	if err := limiter.Wait(ctx); err != nil {
		return
	}

	page, err := c.fetch(ctx, pageURL)
	if err != nil {
		c.logger.Warn("page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return
	}
	if page.StatusCode != 200 {
		c.logger.Debug("skipping page", zap.String("url", pageURL), zap.Int("status", page.StatusCode))
		return
	}

	// The URL itself may be a document reached through a redirect or an
	// extensionless download endpoint.
	if isDocumentContentType(page.ContentType) || IsDocumentURL(page.URL) {
		if matchesScope(page.URL, "", r.scope) {
			r.addFound(page.URL, "", pageURL)
		}
		return
	}
	if !isHTML(page.ContentType) {
		return
	}

	links := extractLinks(page.URL, page.Body)
	var follow []link
	for _, l := range links {
		if IsDocumentURL(l.URL) {
			if matchesScope(l.URL, l.AnchorText, r.scope) {
				r.addFound(l.URL, l.AnchorText, page.URL)
			}
			continue
		}
		if r.onSite(l.URL) {
			follow = append(follow, l)
		}
	}

	for _, next := range rankLinks(follow, r.scope, c.cfg.topLinks()) {
		if ctx.Err() != nil || r.full() {
			return
		}
		c.crawlPage(ctx, r, limiter, next)
	}
}

// fetch executes a single GET through a cloned collector. Redirects are
// followed; HTTP-level errors come back as a Page with the status set so the
// probe can inspect challenge responses.
func (c *StaticCrawler) fetch(ctx context.Context, rawURL string) (Page, error) {
	var (
		result   Page
		fetchErr error
	)
	collector := c.base.Clone()
	collector.OnResponse(func(resp *colly.Response) {
		result = Page{
			URL:         resp.Request.URL.String(),
			StatusCode:  resp.StatusCode,
			ContentType: resp.Headers.Get("Content-Type"),
			Body:        append([]byte(nil), resp.Body...),
		}
	})
	collector.OnError(func(resp *colly.Response, err error) {
		if resp != nil && resp.StatusCode > 0 {
			result = Page{
				URL:         resp.Request.URL.String(),
				StatusCode:  resp.StatusCode,
				ContentType: resp.Headers.Get("Content-Type"),
				Body:        append([]byte(nil), resp.Body...),
			}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return Page{}, fmt.Errorf("fetch cancelled: %w", ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return Page{}, fmt.Errorf("fetch %s: %w", rawURL, fetchErr)
		}
		if result.StatusCode == 0 && err != nil {
			return Page{}, fmt.Errorf("visit %s: %w", rawURL, err)
		}
		return result, nil
	}
}

// extractLinks pulls all anchors out of an HTML body, resolved against the
// page URL.
func extractLinks(pageURL string, body []byte) []link {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}
	var links []link
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved, ok := resolveLink(pageURL, href)
		if !ok {
			return
		}
		links = append(links, link{URL: resolved, AnchorText: sel.Text()})
	})
	return links
}
