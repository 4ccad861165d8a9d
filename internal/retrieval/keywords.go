// Package retrieval scores crawled content against free-text queries and
// assembles bounded context snippets for the answer-generation layer.
package retrieval

import (
	"strings"
)

// Fixed English stop-word list applied to single tokens. Phrases keep
// their stop words so named entities like "house of representatives"
// survive extraction.
var stopWords = map[string]struct{}{
	"a": {}, "about": {}, "after": {}, "all": {}, "also": {}, "an": {},
	"and": {}, "any": {}, "are": {}, "as": {}, "at": {}, "be": {},
	"because": {}, "been": {}, "but": {}, "by": {}, "can": {}, "could": {},
	"did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "get": {},
	"had": {}, "has": {}, "have": {}, "he": {}, "her": {}, "his": {},
	"how": {}, "i": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"its": {}, "just": {}, "like": {}, "me": {}, "more": {}, "most": {},
	"my": {}, "no": {}, "not": {}, "of": {}, "on": {}, "one": {}, "or": {},
	"other": {}, "our": {}, "out": {}, "over": {}, "she": {}, "so": {},
	"some": {}, "than": {}, "that": {}, "the": {}, "their": {}, "them": {},
	"then": {}, "there": {}, "these": {}, "they": {}, "this": {}, "to": {},
	"up": {}, "us": {}, "was": {}, "we": {}, "were": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "why": {}, "will": {},
	"with": {}, "would": {}, "you": {}, "your": {},
}

// ExtractKeywords turns a free-text query into scoring terms: stop-word
// filtered single tokens of length >= 2, plus every contiguous 2-word and
// 3-word phrase from the raw token sequence. An empty query yields an
// empty list.
func ExtractKeywords(query string) []string {
	tokens := tokenize(query)
	if len(tokens) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var keywords []string
	add := func(kw string) {
		if _, dup := seen[kw]; dup {
			return
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}

	for _, tok := range tokens {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		add(tok)
	}

	for i := 0; i+1 < len(tokens); i++ {
		add(tokens[i] + " " + tokens[i+1])
		if i+2 < len(tokens) {
			add(tokens[i] + " " + tokens[i+1] + " " + tokens[i+2])
		}
	}

	return keywords
}

// tokenize lowercases, strips punctuation except hyphens, and splits on
// whitespace.
func tokenize(query string) []string {
	var b strings.Builder
	for _, r := range strings.ToLower(query) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r >= 0x80:
			// Keep non-ASCII letters; queries are not always English.
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}
