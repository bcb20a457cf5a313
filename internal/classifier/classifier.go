// Package classifier decides whether a discovered file is a genuine
// submittal/technical data sheet based on its filename and URL. It is a pure
// keyword matcher: precision over recall, a deny match always wins.
package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

// Result is the outcome of classifying a single candidate file.
type Result struct {
	Accepted       bool
	Reason         string
	DocumentType   string
	AllowedMatches []string
	DeniedMatches  []string
}

var (
	separators = regexp.MustCompile(`[-_]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// Classify evaluates a filename/URL pair. Deterministic and side-effect
// free; identical inputs always yield identical results. Any internal panic
// fails closed with Accepted=false.
func Classify(filename, url string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Accepted: false,
				Reason:   fmt.Sprintf("classification error, skipped: %v", r),
			}
		}
	}()

	text := normalize(filename + " " + url)

	allowed := matchKeywords(text, allowKeywords)
	denied := matchKeywords(text, denyKeywords)

	// Rule 1: at least one allowed keyword must match.
	if len(allowed) == 0 {
		return Result{
			Accepted:      false,
			Reason:        "no allowed keyword found; expected submittal data, technical data, data sheet, etc.",
			DeniedMatches: denied,
		}
	}

	// Rule 2: any denied keyword disqualifies, even with an allow match.
	if len(denied) > 0 {
		return Result{
			Accepted:       false,
			Reason:         "contains disallowed content: " + strings.Join(denied, ", "),
			AllowedMatches: allowed,
			DeniedMatches:  denied,
		}
	}

	return Result{
		Accepted:       true,
		Reason:         "matched allowed keywords: " + strings.Join(allowed, ", "),
		DocumentType:   documentType(allowed),
		AllowedMatches: allowed,
	}
}

// normalize lowercases, collapses hyphens/underscores to spaces, and
// squeezes runs of whitespace.
func normalize(text string) string {
	text = strings.ToLower(text)
	text = separators.ReplaceAllString(text, " ")
	text = whitespace.ReplaceAllString(text, " ")
	return text
}

func matchKeywords(text string, keywords []string) []string {
	var matched []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			matched = append(matched, kw)
		}
	}
	return matched
}

// documentType derives the label from which allow terms matched.
func documentType(allowed []string) string {
	matches := strings.Join(allowed, " ")
	switch {
	case strings.Contains(matches, "submittal"):
		return "Submittal Data Sheet"
	case strings.Contains(matches, "technical data"),
		strings.Contains(matches, "tech data"),
		strings.Contains(matches, "tds"):
		return "Technical Data Sheet"
	case strings.Contains(matches, "pds"):
		return "Product Data Sheet"
	case strings.Contains(matches, "data sheet"), strings.Contains(matches, "datasheet"):
		return "Data Sheet"
	default:
		return "Submittal Technical Data"
	}
}
