package crawl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func richHTML(anchors int) []byte {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < anchors; i++ {
		sb.WriteString(`<a href="/p">link</a>`)
	}
	sb.WriteString("</body></html>")
	return []byte(sb.String())
}

func TestDetectorNeedsBrowser(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name string
		page Page
		want bool
	}{
		{
			name: "healthy server-rendered page",
			page: Page{StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: richHTML(20)},
			want: false,
		},
		{
			name: "forbidden",
			page: Page{StatusCode: 403, ContentType: "text/html", Body: richHTML(20)},
			want: true,
		},
		{
			name: "rate limited",
			page: Page{StatusCode: 429, ContentType: "text/html"},
			want: true,
		},
		{
			name: "service unavailable",
			page: Page{StatusCode: 503, ContentType: "text/html"},
			want: true,
		},
		{
			name: "cloudflare interstitial on 200",
			page: Page{
				StatusCode:  200,
				ContentType: "text/html",
				Body:        []byte(`<html><title>Just a moment...</title><div id="cf-chl-widget"></div></html>`),
			},
			want: true,
		},
		{
			name: "sparse anchors on healthy page",
			page: Page{StatusCode: 200, ContentType: "text/html", Body: richHTML(2)},
			want: true,
		},
		{
			name: "exactly at anchor threshold",
			page: Page{StatusCode: 200, ContentType: "text/html", Body: richHTML(minStaticAnchors)},
			want: false,
		},
		{
			name: "non-html 200 left alone",
			page: Page{StatusCode: 200, ContentType: "application/pdf", Body: []byte("%PDF-1.7")},
			want: false,
		},
		{
			name: "plain 404",
			page: Page{StatusCode: 404, ContentType: "text/html", Body: []byte("not found")},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.NeedsBrowser(tt.page))
		})
	}
}

func TestContainsChallengeMarker(t *testing.T) {
	assert.True(t, containsChallengeMarker([]byte("Please ENABLE JavaScript and Cookies to continue")))
	assert.False(t, containsChallengeMarker([]byte("<html>regular page</html>")))
	assert.False(t, containsChallengeMarker(nil))
}
