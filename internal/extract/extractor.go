// Package extract parses fetched HTML into structured page data.
package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

// ContentCap is the hard maximum length, in characters, of stored
// page content.
const ContentCap = 10000

var strippedSelectors = []string{"script", "style", "nav", "footer", "header", "aside"}

// Extractor implements crawler.Extractor using goquery. Parsing is
// best-effort: malformed HTML yields empty fields, never an error.
type Extractor struct{}

// New constructs an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses html into a PageData for pageURL. Outbound links are
// resolved against pageURL and filtered to baseOrigin.
func (e *Extractor) Extract(html []byte, pageURL string, baseOrigin string) crawler.PageData {
	data := crawler.PageData{
		URL:      pageURL,
		Title:    pageURL,
		Keywords: []string{},
		Links:    []string{},
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return data
	}

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		data.Title = title
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		data.Description = strings.TrimSpace(desc)
	}

	data.Keywords = extractKeywords(doc)
	data.Links = extractLinks(doc, pageURL, baseOrigin)

	doc.Find(strings.Join(strippedSelectors, ", ")).Remove()
	data.Content = collapseWhitespace(doc.Find("body").Text())
	if utf8.RuneCountInString(data.Content) > ContentCap {
		data.Content = truncateRunes(data.Content, ContentCap)
	}

	return data
}

// extractKeywords prefers the meta keywords tag; when absent it falls
// back to heading text as pseudo-keywords.
func extractKeywords(doc *goquery.Document) []string {
	keywords := []string{}
	if raw, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content"); ok {
		for _, kw := range strings.Split(raw, ",") {
			kw = strings.TrimSpace(kw)
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
	}
	if len(keywords) > 0 {
		return keywords
	}
	doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		text := collapseWhitespace(sel.Text())
		if text != "" {
			keywords = append(keywords, text)
		}
	})
	return keywords
}

func extractLinks(doc *goquery.Document, pageURL, baseOrigin string) []string {
	seen := make(map[string]struct{})
	links := []string{}
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		resolved, ok := crawler.ResolveLink(href, pageURL, baseOrigin)
		if !ok {
			return
		}
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
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
