package crawl

import (
	"fmt"
	"net/url"

	"github.com/docsync/agent/internal/docsync"
)

// run holds the mutable state of one crawl: the visited-page set bounded by
// maxPages and the found-document set. Owned by a single Crawl invocation,
// never shared between crawls.
type run struct {
	seedURL  string
	seedHost string
	scope    []string
	maxPages int

	visited map[string]struct{}
	found   map[string]docsync.Discovery
	order   []string
}

func newRun(seedURL string, scopeFilter []string, maxPages int) (*run, error) {
	seedURL = EnsureScheme(seedURL)
	u, err := url.Parse(seedURL)
	if err != nil {
		return nil, fmt.Errorf("parse seed url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("seed url %q has no host", seedURL)
	}
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &run{
		seedURL:  seedURL,
		seedHost: u.Host,
		scope:    scopeFilter,
		maxPages: maxPages,
		visited:  make(map[string]struct{}),
		found:    make(map[string]docsync.Discovery),
	}, nil
}

// full reports whether the page budget is exhausted.
func (r *run) full() bool {
	return len(r.visited) >= r.maxPages
}

// markVisited records the page and returns true when it was not seen before.
func (r *run) markVisited(rawURL string) bool {
	key, err := NormalizeURL(rawURL)
	if err != nil {
		key = rawURL
	}
	if _, seen := r.visited[key]; seen {
		return false
	}
	r.visited[key] = struct{}{}
	return true
}

// addFound records a discovered document, keeping the first discovery of
// each URL.
func (r *run) addFound(rawURL, anchorText, sourcePage string) {
	if _, seen := r.found[rawURL]; seen {
		return
	}
	r.found[rawURL] = docsync.Discovery{
		URL:        rawURL,
		AnchorText: anchorText,
		SourcePage: sourcePage,
	}
	r.order = append(r.order, rawURL)
}

// onSite reports whether the link belongs to the seed's site.
func (r *run) onSite(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return sameSite(r.seedHost, u.Host)
}

// discoveries returns found documents in discovery order.
func (r *run) discoveries() []docsync.Discovery {
	out := make([]docsync.Discovery, 0, len(r.order))
	for _, rawURL := range r.order {
		out = append(out, r.found[rawURL])
	}
	return out
}
