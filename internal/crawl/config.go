// Package crawl implements site traversal for document discovery: a static
// HTTP crawler, a headless-browser crawler for JavaScript-driven sites, and
// the probe that decides between them.
package crawl

import "time"

// Default bounds applied when the corresponding Config field is zero.
const (
	DefaultMaxPages        = 100
	defaultTopLinksPerPage = 15
	defaultTimeout         = 30 * time.Second
	defaultDelay           = 500 * time.Millisecond
	defaultSettleDelay     = 2 * time.Second
	defaultUserAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	// Minimum anchors expected on a server-rendered page; fewer on an
	// otherwise healthy response suggests the markup is built client side.
	minStaticAnchors = 5
)

// Config holds the settings for a crawl session. Decoupled from Viper so the
// crawlers are testable independently.
type Config struct {
	UserAgent       string
	Timeout         time.Duration
	Delay           time.Duration
	TopLinksPerPage int
	SettleDelay     time.Duration
	BrowserPath     string
}

func (c Config) userAgent() string {
	if c.UserAgent == "" {
		return defaultUserAgent
	}
	return c.UserAgent
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

func (c Config) delay() time.Duration {
	if c.Delay <= 0 {
		return defaultDelay
	}
	return c.Delay
}

func (c Config) topLinks() int {
	if c.TopLinksPerPage <= 0 {
		return defaultTopLinksPerPage
	}
	return c.TopLinksPerPage
}

func (c Config) settleDelay() time.Duration {
	if c.SettleDelay <= 0 {
		return defaultSettleDelay
	}
	return c.SettleDelay
}
