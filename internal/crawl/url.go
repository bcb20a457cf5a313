package crawl

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// documentExtensions are URL path suffixes treated as downloadable documents
// rather than pages to parse.
var documentExtensions = []string{".pdf"}

// NormalizeURL standardizes a URL for dedup: lowercased scheme/host, default
// ports and fragments removed, query parameters sorted.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// EnsureScheme prefixes https:// when the target domain was given bare.
func EnsureScheme(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

// IsDocumentURL reports whether the URL path ends in a known document
// extension.
func IsDocumentURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	lower := strings.ToLower(u.Path)
	for _, ext := range documentExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// FilenameFromURL extracts the last path segment for use as the stored
// filename.
func FilenameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return u.Host
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

// resolveLink joins an href against its page URL and strips fragments,
// skipping non-navigable schemes.
func resolveLink(pageURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") {
		return "", false
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

// baseHost strips a leading www. so subdomain membership checks compare
// against the registrable portion of the seed host.
func baseHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

// sameSite reports whether the link host belongs to the seed's site, either
// exactly or as a subdomain.
func sameSite(seedHost, linkHost string) bool {
	seed := baseHost(seedHost)
	link := baseHost(linkHost)
	if seed == "" || link == "" {
		return false
	}
	return link == seed || strings.HasSuffix(link, "."+seed)
}
