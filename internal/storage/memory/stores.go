// Package memory provides in-memory store implementations for local
// development and tests. They honor the same contracts as the Postgres
// stores, including idempotent find-or-create.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

// SiteMapStore keeps site maps in a map keyed by website resource ID.
type SiteMapStore struct {
	mu    sync.RWMutex
	byID  map[string]*crawler.SiteMap
	byRes map[string]string
	clock crawler.Clock
	ids   crawler.IDGenerator
}

// NewSiteMapStore creates an empty store.
func NewSiteMapStore(clock crawler.Clock) *SiteMapStore {
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &SiteMapStore{
		byID:  make(map[string]*crawler.SiteMap),
		byRes: make(map[string]string),
		clock: clock,
		ids:   crawler.UUIDGenerator{},
	}
}

// FindOrCreate returns the existing site map for the resource, reset to
// crawling, or creates a fresh one.
func (s *SiteMapStore) FindOrCreate(_ context.Context, campaignID, websiteResourceID, baseURL string) (crawler.SiteMap, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	if id, ok := s.byRes[websiteResourceID]; ok {
		sm := s.byID[id]
		sm.Status = crawler.SiteMapStatusCrawling
		sm.BaseURL = baseURL
		sm.UpdatedAt = now
		return cloneSiteMap(sm), nil
	}
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.SiteMap{}, fmt.Errorf("generate site map id: %w", err)
	}
	sm := &crawler.SiteMap{
		ID:                id,
		CampaignID:        campaignID,
		WebsiteResourceID: websiteResourceID,
		BaseURL:           baseURL,
		Status:            crawler.SiteMapStatusCrawling,
		Entries:           []crawler.SiteMapEntry{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	s.byID[sm.ID] = sm
	s.byRes[websiteResourceID] = sm.ID
	return cloneSiteMap(sm), nil
}

// Flush overwrites entries and page count.
func (s *SiteMapStore) Flush(_ context.Context, siteMapID string, entries []crawler.SiteMapEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm, ok := s.byID[siteMapID]
	if !ok {
		return fmt.Errorf("site map %s not found", siteMapID)
	}
	sm.Entries = append([]crawler.SiteMapEntry(nil), entries...)
	sm.PagesCrawled = len(entries)
	sm.UpdatedAt = s.clock.Now()
	return nil
}

// Finalize writes terminal entries and status. Nil entries preserve the
// already-flushed entries.
func (s *SiteMapStore) Finalize(_ context.Context, siteMapID string, entries []crawler.SiteMapEntry, status crawler.SiteMapStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sm, ok := s.byID[siteMapID]
	if !ok {
		return fmt.Errorf("site map %s not found", siteMapID)
	}
	if entries != nil {
		sm.Entries = append([]crawler.SiteMapEntry(nil), entries...)
		sm.PagesCrawled = len(entries)
	}
	sm.Status = status
	sm.UpdatedAt = s.clock.Now()
	return nil
}

// ListCompletedByCampaign returns completed site maps for a campaign.
func (s *SiteMapStore) ListCompletedByCampaign(_ context.Context, campaignID string) ([]crawler.SiteMap, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.SiteMap
	for _, sm := range s.byID {
		if sm.CampaignID == campaignID && sm.Status == crawler.SiteMapStatusCompleted {
			out = append(out, cloneSiteMap(sm))
		}
	}
	return out, nil
}

// Get returns a site map by ID, for tests.
func (s *SiteMapStore) Get(siteMapID string) (crawler.SiteMap, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sm, ok := s.byID[siteMapID]
	if !ok {
		return crawler.SiteMap{}, false
	}
	return cloneSiteMap(sm), true
}

func cloneSiteMap(sm *crawler.SiteMap) crawler.SiteMap {
	out := *sm
	out.Entries = append([]crawler.SiteMapEntry(nil), sm.Entries...)
	return out
}

// ResourceStore keeps website resources in memory.
type ResourceStore struct {
	mu        sync.RWMutex
	resources map[string]*crawler.WebsiteResource
	clock     crawler.Clock
}

// NewResourceStore creates an empty store.
func NewResourceStore(clock crawler.Clock) *ResourceStore {
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &ResourceStore{
		resources: make(map[string]*crawler.WebsiteResource),
		clock:     clock,
	}
}

// Add seeds a resource, standing in for the portal API layer.
func (s *ResourceStore) Add(resource crawler.WebsiteResource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resource.Status == "" {
		resource.Status = crawler.ResourceStatusPending
	}
	if resource.Type == "" {
		resource.Type = crawler.ResourceTypeURL
	}
	now := s.clock.Now()
	resource.CreatedAt = now
	resource.UpdatedAt = now
	s.resources[resource.ID] = &resource
}

// Get loads one resource by ID.
func (s *ResourceStore) Get(_ context.Context, resourceID string) (crawler.WebsiteResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resources[resourceID]
	if !ok {
		return crawler.WebsiteResource{}, fmt.Errorf("resource %s not found", resourceID)
	}
	return *r, nil
}

// SetStatus moves a resource through the crawl lifecycle.
func (s *ResourceStore) SetStatus(_ context.Context, resourceID string, status crawler.ResourceStatus, errText string, pagesCrawled int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[resourceID]
	if !ok {
		return fmt.Errorf("resource %s not found", resourceID)
	}
	now := s.clock.Now()
	r.Status = status
	r.ErrorText = errText
	r.PagesCrawled = pagesCrawled
	r.UpdatedAt = now
	if status == crawler.ResourceStatusCompleted || status == crawler.ResourceStatusFailed {
		t := now
		r.LastFetched = &t
	}
	return nil
}

// ListByCampaign returns every resource belonging to a campaign.
func (s *ResourceStore) ListByCampaign(_ context.Context, campaignID string) ([]crawler.WebsiteResource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []crawler.WebsiteResource
	for _, r := range s.resources {
		if r.CampaignID == campaignID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// PageCache keeps cached pages in memory with TTL semantics.
type PageCache struct {
	mu    sync.RWMutex
	pages map[string]crawler.CachedPage
	clock crawler.Clock
}

// NewPageCache creates an empty cache.
func NewPageCache(clock crawler.Clock) *PageCache {
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &PageCache{
		pages: make(map[string]crawler.CachedPage),
		clock: clock,
	}
}

// Get returns the cached page for url; expired entries are absent.
func (c *PageCache) Get(_ context.Context, url string) (crawler.CachedPage, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	page, ok := c.pages[url]
	if !ok || !page.ExpiresAt.After(c.clock.Now()) {
		return crawler.CachedPage{}, false, nil
	}
	return page, true, nil
}

// Put upserts a cached page by URL.
func (c *PageCache) Put(_ context.Context, page crawler.CachedPage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages[page.URL] = page
	return nil
}
