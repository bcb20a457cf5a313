package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func testBrowserRun(t *testing.T, seedURL string, scope []string, maxPages int) *run {
	t.Helper()
	r, err := newRun(seedURL, scope, maxPages)
	if err != nil {
		t.Fatalf("newRun() error = %v", err)
	}
	return r
}

func TestBrowserCrawlPageDocumentShortCircuit(t *testing.T) {
	t.Parallel()

	c := NewBrowser(testCrawlConfig(), zap.NewNop())
	r := testBrowserRun(t, "https://acme.example.com", nil, 10)
	limiter := rate.NewLimiter(rate.Inf, 1)

	// A direct document URL must be recorded without opening a tab; the nil
	// browser context would fail any navigation attempt.
	c.crawlPage(context.Background(), context.Background(), r, limiter, "https://acme.example.com/files/valve-data-sheet.pdf")

	got := r.discoveries()
	if len(got) != 1 {
		t.Fatalf("expected 1 discovery, got %d", len(got))
	}
	if got[0].URL != "https://acme.example.com/files/valve-data-sheet.pdf" {
		t.Fatalf("unexpected discovery %q", got[0].URL)
	}
	if len(r.visited) != 0 {
		t.Fatalf("document URL must not count as a page visit, visited=%d", len(r.visited))
	}
}

func TestBrowserCrawlPageDocumentOutsideScope(t *testing.T) {
	t.Parallel()

	c := NewBrowser(testCrawlConfig(), zap.NewNop())
	r := testBrowserRun(t, "https://acme.example.com", []string{"series-x"}, 10)
	limiter := rate.NewLimiter(rate.Inf, 1)

	c.crawlPage(context.Background(), context.Background(), r, limiter, "https://acme.example.com/files/other-line.pdf")

	if got := r.discoveries(); len(got) != 0 {
		t.Fatalf("expected no discoveries outside scope, got %v", got)
	}
}

func TestBrowserCrawlPageCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewBrowser(testCrawlConfig(), zap.NewNop())
	r := testBrowserRun(t, "https://acme.example.com", nil, 10)
	limiter := rate.NewLimiter(rate.Inf, 1)

	c.crawlPage(ctx, context.Background(), r, limiter, "https://acme.example.com/files/valve-data-sheet.pdf")

	if len(r.discoveries()) != 0 || len(r.visited) != 0 {
		t.Fatalf("cancelled crawl must record nothing, found=%d visited=%d",
			len(r.discoveries()), len(r.visited))
	}
}

func TestBrowserCrawlPageBudgetExhausted(t *testing.T) {
	t.Parallel()

	c := NewBrowser(testCrawlConfig(), zap.NewNop())
	r := testBrowserRun(t, "https://acme.example.com", nil, 1)
	if !r.markVisited("https://acme.example.com/") {
		t.Fatal("seeding the visited set failed")
	}
	limiter := rate.NewLimiter(rate.Inf, 1)

	// Budget is spent, so the page must be neither visited nor rendered.
	c.crawlPage(context.Background(), context.Background(), r, limiter, "https://acme.example.com/products")

	if len(r.visited) != 1 {
		t.Fatalf("expected no further visits, visited=%d", len(r.visited))
	}
}

func TestBrowserCrawlRendersPages(t *testing.T) {
	t.Parallel()

	path := chromePath()
	if path == "" {
		t.Skip("no Chrome binary available")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body>
				<a href="/files/valve-data-sheet.pdf">Series X Data Sheet</a>
				<a href="/products">Products</a>
			</body></html>`)
		case "/products":
			fmt.Fprint(w, `<html><body>
				<a href="/files/pump-submittal.pdf">Pump Submittal</a>
			</body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testCrawlConfig()
	cfg.BrowserPath = path
	cfg.SettleDelay = 50 * time.Millisecond
	cfg.Timeout = 20 * time.Second
	c := NewBrowser(cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	got, err := c.Crawl(ctx, srv.URL, nil, 5)
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	urls := make(map[string]bool, len(got))
	for _, d := range got {
		urls[d.URL] = true
	}
	if !urls[srv.URL+"/files/valve-data-sheet.pdf"] || !urls[srv.URL+"/files/pump-submittal.pdf"] {
		t.Fatalf("expected both documents to be discovered, got %v", got)
	}
}

// chromePath finds a usable Chrome binary, or returns "".
func chromePath() string {
	for _, name := range []string{
		"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell",
	} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
