package crawl

import (
	"net/url"
	"sort"
	"strings"
)

// Link-priority constants. Product/category paths are where data sheets live,
// documentation paths come next, locale-duplicated trees are deprioritized.
const (
	scoreProductPath   = 100
	scoreDocPath       = 50
	scoreLocalePenalty = -80
	scoreAnchorBonus   = 10
)

// productSegments mark catalog-style paths on manufacturer sites.
var productSegments = []string{
	"product", "products", "item", "part", "model", "sku",
	"category", "categories", "series",
}

// docSegments mark paths likely to host technical documentation.
var docSegments = []string{
	"data-sheet", "datasheet", "submittal", "submittals", "spec", "specs",
	"technical-data", "technical", "document", "documents", "documentation",
	"download", "downloads", "resource", "resources", "literature",
	"library", "media", "asset", "assets", "doc", "sheet", "support", "file",
}

// avoidSegments mark site plumbing that never leads to documents.
var avoidSegments = []string{
	"login", "cart", "checkout", "account", "register", "signin",
	"facebook", "twitter", "linkedin", "youtube", "instagram",
	"privacy", "terms", "cookie", "sitemap", "search", "contact",
	"blog", "news", "press", "careers", "jobs", "about-us",
}

// localePrefixes flag translated duplicates of the primary tree.
var localePrefixes = map[string]struct{}{
	"fr": {}, "es": {}, "de": {}, "it": {}, "pt": {}, "nl": {},
	"pl": {}, "sv": {}, "da": {}, "ja": {}, "zh": {}, "ko": {}, "ru": {},
}

// scoredLink pairs a follow candidate with its priority.
type scoredLink struct {
	URL   string
	Score int
}

// matchesScope reports whether URL or anchor text contains any scope-filter
// keyword. An empty filter matches everything.
func matchesScope(rawURL, anchorText string, scopeFilter []string) bool {
	if len(scopeFilter) == 0 {
		return true
	}
	combined := strings.ToLower(rawURL + " " + anchorText)
	for _, keyword := range scopeFilter {
		if keyword = strings.ToLower(strings.TrimSpace(keyword)); keyword == "" {
			continue
		}
		if strings.Contains(combined, keyword) {
			return true
		}
	}
	return false
}

// relevantLink decides whether a same-site link is worth following: nothing
// from the avoid list, and either a scope keyword, a documentation keyword,
// or no scope filter at all.
func relevantLink(rawURL string, scopeFilter []string) bool {
	lower := strings.ToLower(rawURL)
	for _, avoid := range avoidSegments {
		if strings.Contains(lower, avoid) {
			return false
		}
	}
	if len(scopeFilter) > 0 && matchesScope(rawURL, "", scopeFilter) {
		return true
	}
	for _, keyword := range append(append([]string{}, productSegments...), docSegments...) {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return len(scopeFilter) == 0
}

// scoreLink ranks a follow candidate by its path segments and anchor text.
func scoreLink(rawURL, anchorText string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0
	}
	segments := strings.Split(strings.Trim(strings.ToLower(u.Path), "/"), "/")

	score := 0
	for _, segment := range segments {
		if containsAny(segment, productSegments) {
			score += scoreProductPath
		}
		if containsAny(segment, docSegments) {
			score += scoreDocPath
		}
	}
	if len(segments) > 0 {
		if _, locale := localePrefixes[segments[0]]; locale {
			score += scoreLocalePenalty
		}
	}
	if containsAny(strings.ToLower(anchorText), docSegments) {
		score += scoreAnchorBonus
	}
	return score
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// rankLinks filters candidate links for relevance, scores them, and returns
// at most limit URLs in stable score-descending order.
func rankLinks(links []link, scopeFilter []string, limit int) []string {
	scored := make([]scoredLink, 0, len(links))
	for _, l := range links {
		if !relevantLink(l.URL, scopeFilter) {
			continue
		}
		scored = append(scored, scoredLink{URL: l.URL, Score: scoreLink(l.URL, l.AnchorText)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.URL
	}
	return out
}

// link is a raw anchor extracted from a page.
type link struct {
	URL        string
	AnchorText string
}
