package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_AcceptsTechnicalDataSheet(t *testing.T) {
	result := Classify("ABC-123 Technical Data Sheet.pdf", "https://vendor.example.com/docs/abc-123.pdf")

	require.True(t, result.Accepted)
	assert.Equal(t, "Technical Data Sheet", result.DocumentType)
	assert.Contains(t, result.Reason, "technical data")
	assert.Empty(t, result.DeniedMatches)
}

func TestClassify_DenyAlwaysWins(t *testing.T) {
	// An allow term matches, but the deny term must dominate.
	result := Classify("submittal-installation-guide.pdf", "https://vendor.example.com/files")

	require.False(t, result.Accepted)
	assert.Contains(t, result.Reason, "installation")
	assert.Contains(t, result.AllowedMatches, "submittal")
	assert.Empty(t, result.DocumentType)
}

func TestClassify_NoAllowKeywordRejects(t *testing.T) {
	// The URL loosely implies submittal context, but the combined text rule
	// still requires an allow term; "installation" in the filename denies
	// regardless.
	result := Classify("Installation Manual.pdf", "https://vendor.example.com/submittal-archive/files")

	require.False(t, result.Accepted)
	assert.Empty(t, result.DocumentType)
}

func TestClassify_RejectsWithoutAllowMatch(t *testing.T) {
	result := Classify("company-overview.pdf", "https://vendor.example.com/about")

	require.False(t, result.Accepted)
	assert.Contains(t, result.Reason, "no allowed keyword")
	assert.Empty(t, result.AllowedMatches)
}

func TestClassify_DocumentTypes(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"submittal", "widget-submittal-data.pdf", "Submittal Data Sheet"},
		{"technical", "widget technical data.pdf", "Technical Data Sheet"},
		{"tds", "widget TDS.pdf", "Technical Data Sheet"},
		{"pds", "widget PDS.pdf", "Product Data Sheet"},
		{"datasheet", "widget datasheet.pdf", "Data Sheet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Classify(tt.filename, "https://vendor.example.com/")
			require.True(t, result.Accepted, "reason: %s", result.Reason)
			assert.Equal(t, tt.want, result.DocumentType)
		})
	}
}

func TestClassify_HyphensAndUnderscoresNormalize(t *testing.T) {
	hyphen := Classify("widget-data-sheet.pdf", "")
	underscore := Classify("widget_data_sheet.pdf", "")

	require.True(t, hyphen.Accepted)
	require.True(t, underscore.Accepted)
	assert.Equal(t, hyphen.DocumentType, underscore.DocumentType)
}

func TestClassify_Deterministic(t *testing.T) {
	first := Classify("Alpha Submittal Data.pdf", "https://vendor.example.com/resources/alpha.pdf")
	second := Classify("Alpha Submittal Data.pdf", "https://vendor.example.com/resources/alpha.pdf")

	assert.Equal(t, first, second)
}

func TestClassify_DeniedByURL(t *testing.T) {
	// Deny terms in the URL reject even when the filename is clean.
	result := Classify("widget-data-sheet.pdf", "https://vendor.example.com/catalog/widget-data-sheet.pdf")

	require.False(t, result.Accepted)
	assert.Contains(t, result.DeniedMatches, "catalog")
}

func TestClassify_EmptyInput(t *testing.T) {
	result := Classify("", "")
	require.False(t, result.Accepted)
}
