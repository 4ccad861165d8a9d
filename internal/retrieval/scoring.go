package retrieval

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

// Score weights. The relative ordering matters more than the exact
// values: URL structure beats metadata, metadata beats bare substrings.
const (
	scoreSegmentInQuery   = 15
	scoreSegmentExact     = 20
	scoreSegmentSubstring = 10
	scoreWholeWord        = 15
	scoreSubstring        = 5
	scoreTitle            = 12
	scoreDescription      = 8
	scoreSiteMapKeyword   = 6

	contentOccurrenceWeight = 2
)

// scoredEntry pairs a site map entry with its query score. Ephemeral,
// never persisted.
type scoredEntry struct {
	entry crawler.SiteMapEntry
	score int
}

// scoredResource is the fallback equivalent over whole resources.
type scoredResource struct {
	resource crawler.WebsiteResource
	score    int
}

// scoreEntry sums per-keyword signals for one site map entry.
func scoreEntry(entry crawler.SiteMapEntry, keywords []string, rawQuery string) int {
	segments := pathSegments(entry.URL)
	haystack := strings.ToLower(strings.Join(append([]string{
		entry.Title, entry.Description, entry.URL,
	}, entry.Keywords...), " "))
	title := strings.ToLower(entry.Title)
	description := strings.ToLower(entry.Description)
	query := strings.ToLower(rawQuery)

	total := 0
	for _, kw := range keywords {
		total += scoreSegments(kw, segments, query)

		if matchWholeWord(haystack, kw) {
			total += scoreWholeWord
		} else if strings.Contains(haystack, kw) {
			total += scoreSubstring
		}

		if strings.Contains(title, kw) {
			total += scoreTitle
		}
		if description != "" && strings.Contains(description, kw) {
			total += scoreDescription
		}
		for _, smKeyword := range entry.Keywords {
			if strings.Contains(strings.ToLower(smKeyword), kw) {
				total += scoreSiteMapKeyword
				break
			}
		}
	}
	return total
}

// scoreResource scores a whole website resource for the fallback chain:
// URL path-segment bonuses, a title bonus, and raw content occurrences.
func scoreResource(resource crawler.WebsiteResource, keywords []string, rawQuery string) int {
	segments := pathSegments(resource.URL)
	title := strings.ToLower(resource.Title)
	content := strings.ToLower(resource.Content)
	query := strings.ToLower(rawQuery)

	total := 0
	for _, kw := range keywords {
		total += scoreSegments(kw, segments, query)
		if title != "" && strings.Contains(title, kw) {
			total += scoreTitle
		}
		if content != "" {
			total += strings.Count(content, kw) * contentOccurrenceWeight
		}
	}
	return total
}

func scoreSegments(keyword string, segments []string, query string) int {
	score := 0
	for _, segment := range segments {
		if keyword == segment && strings.Contains(query, segment) {
			score += scoreSegmentInQuery
		}
		if keyword == segment {
			score += scoreSegmentExact
		} else if strings.Contains(segment, keyword) {
			score += scoreSegmentSubstring
		}
	}
	return score
}

// pathSegments returns the lowercase, non-empty path segments of a URL.
func pathSegments(rawURL string) []string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var segments []string
	for _, segment := range strings.Split(strings.ToLower(u.Path), "/") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return segments
}

// matchWholeWord reports whether kw appears with word boundaries on both
// sides of haystack. Multi-word phrases are matched literally.
func matchWholeWord(haystack, kw string) bool {
	pattern, err := regexp.Compile(`\b` + regexp.QuoteMeta(kw) + `\b`)
	if err != nil {
		return false
	}
	return pattern.MatchString(haystack)
}
