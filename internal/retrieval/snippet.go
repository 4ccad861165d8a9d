package retrieval

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Snippet extraction constants, carried over as tunable parameters:
// occurrences within clusterDistance of each other form one cluster, and
// the densest cluster is expanded by windowPad on each side.
const (
	clusterDistance = 300
	windowPad       = 150
)

// extractSnippet returns the densest keyword neighborhood of text,
// trimmed to sentence boundaries where possible and hard-capped at
// maxLen. With no keyword hit it falls back to the head of the text.
func extractSnippet(text string, keywords []string, maxLen int) string {
	text = strings.TrimSpace(text)
	if text == "" || maxLen <= 0 {
		return ""
	}

	positions := keywordPositions(text, keywords)
	if len(positions) == 0 {
		return capSnippet(text, maxLen)
	}

	start, end := densestWindow(positions, len(text))
	start = trimToSentenceStart(text, start)
	end = trimToSentenceEnd(text, end)

	snippet := strings.TrimSpace(text[start:end])
	if start > 0 && !startsSentence(snippet) {
		snippet = "..." + snippet
	}
	return capSnippet(snippet, maxLen)
}

// keywordPositions collects every case-insensitive occurrence index of
// every keyword.
func keywordPositions(text string, keywords []string) []int {
	lower := strings.ToLower(text)
	var positions []int
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		offset := 0
		for {
			idx := strings.Index(lower[offset:], kw)
			if idx < 0 {
				break
			}
			positions = append(positions, offset+idx)
			offset += idx + len(kw)
			if offset >= len(lower) {
				break
			}
		}
	}
	sort.Ints(positions)
	return positions
}

// densestWindow clusters sorted positions that sit within
// clusterDistance of each other, picks the cluster with the most hits,
// and expands it by windowPad on each side.
func densestWindow(positions []int, textLen int) (int, int) {
	bestStart, bestEnd, bestCount := positions[0], positions[0], 1
	clusterStart, clusterEnd, count := positions[0], positions[0], 1

	for i := 1; i < len(positions); i++ {
		if positions[i]-clusterEnd <= clusterDistance {
			clusterEnd = positions[i]
			count++
		} else {
			clusterStart, clusterEnd, count = positions[i], positions[i], 1
		}
		if count > bestCount {
			bestStart, bestEnd, bestCount = clusterStart, clusterEnd, count
		}
	}

	start := bestStart - windowPad
	if start < 0 {
		start = 0
	}
	end := bestEnd + windowPad
	if end > textLen {
		end = textLen
	}
	return start, end
}

// trimToSentenceStart moves start forward to the beginning of the next
// sentence when a boundary sits close to the window edge.
func trimToSentenceStart(text string, start int) int {
	if start == 0 {
		return 0
	}
	limit := start + windowPad/2
	if limit > len(text) {
		limit = len(text)
	}
	for i := start; i < limit-1; i++ {
		if isSentenceEnd(text[i]) && text[i+1] == ' ' {
			return i + 2
		}
	}
	return start
}

// trimToSentenceEnd moves end backward to the nearest preceding sentence
// boundary when one sits close to the window edge.
func trimToSentenceEnd(text string, end int) int {
	if end >= len(text) {
		return len(text)
	}
	limit := end - windowPad/2
	if limit < 0 {
		limit = 0
	}
	for i := end - 1; i > limit; i-- {
		if isSentenceEnd(text[i]) {
			return i + 1
		}
	}
	return end
}

func isSentenceEnd(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func startsSentence(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c >= 'A' && c <= 'Z'
}

// capSnippet enforces the hard character cap, suffixing an ellipsis
// when a sentence is cut mid-way.
func capSnippet(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	cut := truncateRunes(s, maxLen-3)
	if idx := strings.LastIndexByte(cut, ' '); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "..."
}

// truncateRunes caps s at max characters without splitting a rune.
func truncateRunes(s string, max int) string {
	count := 0
	for i := range s {
		if count == max {
			return s[:i]
		}
		count++
	}
	return s
}
