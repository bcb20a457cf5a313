package crawl

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// challengeMarkers are body fragments emitted by bot-interstitial pages
// (Cloudflare and similar). Matched case-insensitively.
var challengeMarkers = [][]byte{
	[]byte("cf-browser-verification"),
	[]byte("cf-chl"),
	[]byte("just a moment"),
	[]byte("checking your browser"),
	[]byte("attention required"),
	[]byte("captcha"),
	[]byte("ddos protection"),
	[]byte("enable javascript and cookies"),
}

// Detector decides whether a site needs a rendering browser from simple
// signals on the seed response.
type Detector struct {
	minAnchors int
}

// NewDetector constructs a Detector with the default anchor threshold.
func NewDetector() *Detector {
	return &Detector{minAnchors: minStaticAnchors}
}

// NeedsBrowser inspects the seed page for signals that static fetching is
// insufficient: a bot-challenge status, a challenge interstitial in the
// body, or a near-empty anchor set on an otherwise healthy HTML page.
func (d *Detector) NeedsBrowser(page Page) bool {
	switch page.StatusCode {
	case http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	if containsChallengeMarker(page.Body) {
		return true
	}
	if page.StatusCode == http.StatusOK && isHTML(page.ContentType) {
		return countAnchors(page.Body) < d.minAnchors
	}
	return false
}

func containsChallengeMarker(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	lower := bytes.ToLower(body)
	for _, marker := range challengeMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func countAnchors(body []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0
	}
	return doc.Find("a[href]").Length()
}

func isHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

func isDocumentContentType(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf")
}
