// Package crawler defines core types shared across the crawl subsystems.
package crawler

import (
	"time"
)

// ResourceStatus represents the lifecycle state of a website resource.
type ResourceStatus string

// Resource status values persisted in the resource store. Transitions are
// monotonic within one crawl attempt; a re-crawl resets to processing.
const (
	ResourceStatusPending    ResourceStatus = "pending"
	ResourceStatusProcessing ResourceStatus = "processing"
	ResourceStatusCompleted  ResourceStatus = "completed"
	ResourceStatusFailed     ResourceStatus = "failed"
)

// SiteMapStatus represents the lifecycle state of a site map aggregate.
type SiteMapStatus string

// Site map status values.
const (
	SiteMapStatusCrawling  SiteMapStatus = "crawling"
	SiteMapStatusCompleted SiteMapStatus = "completed"
	SiteMapStatusFailed    SiteMapStatus = "failed"
)

// ResourceType distinguishes how a website resource was supplied.
type ResourceType string

// Resource type values.
const (
	ResourceTypeURL        ResourceType = "url"
	ResourceTypeHTML       ResourceType = "html"
	ResourceTypeScreenshot ResourceType = "screenshot"
)

// CrawlJob is the queue message that requests a crawl of one resource.
type CrawlJob struct {
	WebsiteResourceID string    `json:"websiteResourceId"`
	CampaignID        string    `json:"campaignId"`
	URL               string    `json:"url"`
	Timestamp         time.Time `json:"timestamp"`
}

// WebsiteResource owns the lifecycle of one URL belonging to a campaign.
type WebsiteResource struct {
	ID           string         `json:"id"`
	CampaignID   string         `json:"campaignId"`
	Type         ResourceType   `json:"type"`
	URL          string         `json:"url"`
	Status       ResourceStatus `json:"status"`
	ErrorText    string         `json:"error,omitempty"`
	PagesCrawled int            `json:"pagesCrawled"`
	Title        string         `json:"title,omitempty"`
	Content      string         `json:"content,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
	LastFetched  *time.Time     `json:"lastFetched,omitempty"`
}

// SiteMapEntry is one crawled page inside a site map.
type SiteMapEntry struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Keywords    []string  `json:"keywords"`
	Content     string    `json:"content"`
	LastCrawled time.Time `json:"lastCrawled"`
}

// SiteMap is the output aggregate of one crawl, 1:1 with its resource.
type SiteMap struct {
	ID                string         `json:"id"`
	CampaignID        string         `json:"campaignId"`
	WebsiteResourceID string         `json:"websiteResourceId"`
	BaseURL           string         `json:"baseUrl"`
	Status            SiteMapStatus  `json:"status"`
	PagesCrawled      int            `json:"pagesCrawled"`
	Entries           []SiteMapEntry `json:"entries"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// PageData is the structured result of extracting one HTML document.
type PageData struct {
	URL         string
	Title       string
	Description string
	Keywords    []string
	Content     string
	Links       []string
}

// CachedPage is one row of the URL-keyed page cache.
type CachedPage struct {
	URL       string    `json:"url"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetchedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// FetchResult is the raw outcome of fetching one URL.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	Rendered   bool
}

// CrawlResult summarizes one completed frontier run.
type CrawlResult struct {
	Entries      []SiteMapEntry
	PagesCrawled int
}
