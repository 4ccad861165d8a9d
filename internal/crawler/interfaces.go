package crawler

import (
	"context"
	"time"
)

// Fetcher retrieves raw HTML for one URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// Extractor parses HTML into structured page data.
type Extractor interface {
	Extract(html []byte, pageURL string, baseOrigin string) PageData
}

// SiteMapStore persists site map aggregates, keyed by website resource.
type SiteMapStore interface {
	FindOrCreate(ctx context.Context, campaignID, websiteResourceID, baseURL string) (SiteMap, error)
	Flush(ctx context.Context, siteMapID string, entries []SiteMapEntry) error
	Finalize(ctx context.Context, siteMapID string, entries []SiteMapEntry, status SiteMapStatus) error
	ListCompletedByCampaign(ctx context.Context, campaignID string) ([]SiteMap, error)
}

// ResourceStore persists website resource status and metadata.
type ResourceStore interface {
	Get(ctx context.Context, resourceID string) (WebsiteResource, error)
	SetStatus(ctx context.Context, resourceID string, status ResourceStatus, errText string, pagesCrawled int) error
	ListByCampaign(ctx context.Context, campaignID string) ([]WebsiteResource, error)
}

// PageCache is the time-boxed, URL-keyed cache of extracted page text.
type PageCache interface {
	Get(ctx context.Context, url string) (CachedPage, bool, error)
	Put(ctx context.Context, page CachedPage) error
}

// Archive persists raw fetched HTML and returns a storage URI.
type Archive interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Delivery is one received queue message pending acknowledgment. Err
// reports a malformed message body; such deliveries are acked and
// dropped rather than redelivered forever.
type Delivery interface {
	Job() CrawlJob
	Raw() []byte
	Err() error
	Ack(ctx context.Context) error
}

// Queue decouples crawl requests from crawl execution with at-least-once
// delivery and explicit acknowledgment.
type Queue interface {
	Enqueue(ctx context.Context, job CrawlJob) (string, error)
	Receive(ctx context.Context) (Delivery, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces site map IDs.
type IDGenerator interface {
	NewID() (string, error)
}
