package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

// SiteMapStore persists site map aggregates in Postgres. Upserts are
// keyed by website_resource_id so reprocessing a redelivered job reuses
// the existing row instead of creating a duplicate. Writes are
// last-writer-wins; the queue's per-resource ordering is the concurrency
// control, not the store.
type SiteMapStore struct {
	pool  Pool
	clock crawler.Clock
	ids   crawler.IDGenerator
}

// NewSiteMapStore constructs a store over an injected pool.
func NewSiteMapStore(pool Pool, clock crawler.Clock) (*SiteMapStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &SiteMapStore{pool: pool, clock: clock, ids: crawler.UUIDGenerator{}}, nil
}

// FindOrCreate returns the site map for websiteResourceID, creating it
// if absent. An existing map is reset to crawling status for the new run.
func (s *SiteMapStore) FindOrCreate(ctx context.Context, campaignID, websiteResourceID, baseURL string) (crawler.SiteMap, error) {
	id, err := s.ids.NewID()
	if err != nil {
		return crawler.SiteMap{}, fmt.Errorf("generate site map id: %w", err)
	}
	now := s.clock.Now()
	query := `
		INSERT INTO site_maps (id, campaign_id, website_resource_id, base_url, status, pages_crawled, entries, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, '[]'::jsonb, $6, $6)
		ON CONFLICT (website_resource_id) DO UPDATE
		SET status = EXCLUDED.status, base_url = EXCLUDED.base_url, updated_at = EXCLUDED.updated_at
		RETURNING id, campaign_id, website_resource_id, base_url, status, pages_crawled, entries, created_at, updated_at;
	`
	row := s.pool.QueryRow(ctx, query,
		id, campaignID, websiteResourceID, baseURL, crawler.SiteMapStatusCrawling, now)
	siteMap, err := scanSiteMap(row)
	if err != nil {
		return crawler.SiteMap{}, fmt.Errorf("find or create site map: %w", err)
	}
	return siteMap, nil
}

// Flush overwrites the entries list and page count for a running crawl.
func (s *SiteMapStore) Flush(ctx context.Context, siteMapID string, entries []crawler.SiteMapEntry) error {
	entriesJSON, err := marshalEntries(entries)
	if err != nil {
		return err
	}
	query := `
		UPDATE site_maps
		SET entries = $2, pages_crawled = $3, updated_at = $4
		WHERE id = $1;
	`
	if _, err := s.pool.Exec(ctx, query, siteMapID, entriesJSON, len(entries), s.clock.Now()); err != nil {
		return fmt.Errorf("flush site map: %w", err)
	}
	return nil
}

// Finalize writes the terminal entries and status for a crawl. Nil
// entries leave the already-flushed entries in place, so a failed crawl
// keeps whatever partial progress survived.
func (s *SiteMapStore) Finalize(ctx context.Context, siteMapID string, entries []crawler.SiteMapEntry, status crawler.SiteMapStatus) error {
	if entries == nil {
		query := `
			UPDATE site_maps
			SET status = $2, updated_at = $3
			WHERE id = $1;
		`
		if _, err := s.pool.Exec(ctx, query, siteMapID, status, s.clock.Now()); err != nil {
			return fmt.Errorf("finalize site map: %w", err)
		}
		return nil
	}
	entriesJSON, err := marshalEntries(entries)
	if err != nil {
		return err
	}
	query := `
		UPDATE site_maps
		SET entries = $2, pages_crawled = $3, status = $4, updated_at = $5
		WHERE id = $1;
	`
	if _, err := s.pool.Exec(ctx, query, siteMapID, entriesJSON, len(entries), status, s.clock.Now()); err != nil {
		return fmt.Errorf("finalize site map: %w", err)
	}
	return nil
}

// ListCompletedByCampaign returns every completed site map for a campaign.
func (s *SiteMapStore) ListCompletedByCampaign(ctx context.Context, campaignID string) ([]crawler.SiteMap, error) {
	query := `
		SELECT id, campaign_id, website_resource_id, base_url, status, pages_crawled, entries, created_at, updated_at
		FROM site_maps
		WHERE campaign_id = $1 AND status = $2
		ORDER BY updated_at DESC;
	`
	rows, err := s.pool.Query(ctx, query, campaignID, crawler.SiteMapStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("list site maps: %w", err)
	}
	defer rows.Close()

	var siteMaps []crawler.SiteMap
	for rows.Next() {
		siteMap, err := scanSiteMap(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site map: %w", err)
		}
		siteMaps = append(siteMaps, siteMap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate site maps: %w", err)
	}
	return siteMaps, nil
}

func marshalEntries(entries []crawler.SiteMapEntry) ([]byte, error) {
	if entries == nil {
		entries = []crawler.SiteMapEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal entries: %w", err)
	}
	return data, nil
}

func scanSiteMap(row pgx.Row) (crawler.SiteMap, error) {
	var (
		siteMap     crawler.SiteMap
		entriesJSON []byte
	)
	err := row.Scan(
		&siteMap.ID,
		&siteMap.CampaignID,
		&siteMap.WebsiteResourceID,
		&siteMap.BaseURL,
		&siteMap.Status,
		&siteMap.PagesCrawled,
		&entriesJSON,
		&siteMap.CreatedAt,
		&siteMap.UpdatedAt,
	)
	if err != nil {
		return crawler.SiteMap{}, err
	}
	if len(entriesJSON) > 0 {
		if err := json.Unmarshal(entriesJSON, &siteMap.Entries); err != nil {
			return crawler.SiteMap{}, fmt.Errorf("unmarshal entries: %w", err)
		}
	}
	return siteMap, nil
}
