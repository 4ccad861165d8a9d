package retrieval

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractKeywords(t *testing.T) {
	t.Parallel()

	keywords := ExtractKeywords("What is your position on gun control?")

	require.Contains(t, keywords, "position")
	require.Contains(t, keywords, "gun")
	require.Contains(t, keywords, "control")
	require.NotContains(t, keywords, "what")
	require.NotContains(t, keywords, "is")
	require.NotContains(t, keywords, "your")
	require.NotContains(t, keywords, "on")

	require.Contains(t, keywords, "gun control", "2-word phrases kept")
	require.Contains(t, keywords, "position on gun", "3-word phrases keep stop words")
}

func TestExtractKeywords_EmptyAndStopOnly(t *testing.T) {
	t.Parallel()

	require.Empty(t, ExtractKeywords(""))
	require.Empty(t, ExtractKeywords("   "))

	// A single stop word still produces no single tokens and no phrases.
	require.Empty(t, ExtractKeywords("the"))
}

func TestExtractKeywords_Dedupes(t *testing.T) {
	t.Parallel()

	keywords := ExtractKeywords("taxes taxes taxes")

	var singles int
	for _, kw := range keywords {
		if kw == "taxes" {
			singles++
		}
	}
	require.Equal(t, 1, singles)
}

func TestExtractKeywords_Punctuation(t *testing.T) {
	t.Parallel()

	keywords := ExtractKeywords("Where's the pre-K funding?!")

	require.Contains(t, keywords, "pre-k", "hyphens survive tokenization")
	require.Contains(t, keywords, "funding")
	require.NotContains(t, keywords, "funding?!")
}

func TestExtractKeywords_ShortTokensDropped(t *testing.T) {
	t.Parallel()

	keywords := ExtractKeywords("plan b vote")
	require.NotContains(t, keywords, "b")
	require.Contains(t, keywords, "plan")
	require.Contains(t, keywords, "vote")
	require.Contains(t, keywords, "plan b", "short tokens still appear inside phrases")
}
