package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

var skipExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".css", ".js", ".svg", ".mp4", ".webp",
}

var skipPrefixes = []string{
	"#", "mailto:", "tel:", "javascript:", "data:",
}

// NormalizeSeedURL prepares a job-supplied target for crawling: bare
// domains get an https scheme, everything else is returned trimmed.
func NormalizeSeedURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

// NormalizeURL standardizes a URL to avoid frontier duplicates. It
// lowercases the scheme and host, removes default ports and fragments,
// and sorts query parameters.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" && strings.HasSuffix(u.Host, ":80") {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" && strings.HasSuffix(u.Host, ":443") {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// Origin returns scheme://host for a URL, or empty if it cannot be parsed.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// SkippableLink reports whether a raw href should never be enqueued:
// binary/static asset extensions and non-navigational URL schemes.
func SkippableLink(href string) bool {
	trimmed := strings.TrimSpace(strings.ToLower(href))
	if trimmed == "" {
		return true
	}
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	pathOnly := trimmed
	if i := strings.IndexAny(pathOnly, "?#"); i >= 0 {
		pathOnly = pathOnly[:i]
	}
	for _, ext := range skipExtensions {
		if strings.HasSuffix(pathOnly, ext) {
			return true
		}
	}
	return false
}

// ResolveLink resolves href against pageURL and returns the absolute URL
// if it stays on baseOrigin. The second return is false for cross-origin,
// skip-listed, or unparseable links.
func ResolveLink(href, pageURL, baseOrigin string) (string, bool) {
	if SkippableLink(href) {
		return "", false
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if Origin(abs.String()) != strings.ToLower(baseOrigin) {
		return "", false
	}
	normalized, err := NormalizeURL(abs.String())
	if err != nil {
		return "", false
	}
	return normalized, true
}
