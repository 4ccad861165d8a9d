package postgres

import (
	"context"
	"fmt"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

// ResourceStore persists website resource lifecycle state in Postgres.
// Resources are created by the portal API layer; this subsystem only
// reads them and moves their status through the crawl lifecycle.
type ResourceStore struct {
	pool  Pool
	clock crawler.Clock
}

// NewResourceStore constructs a store over an injected pool.
func NewResourceStore(pool Pool, clock crawler.Clock) (*ResourceStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &ResourceStore{pool: pool, clock: clock}, nil
}

// Get loads one resource by ID.
func (s *ResourceStore) Get(ctx context.Context, resourceID string) (crawler.WebsiteResource, error) {
	query := `
		SELECT id, campaign_id, type, url, status, COALESCE(error_text, ''), pages_crawled,
		       COALESCE(title, ''), COALESCE(content, ''), created_at, updated_at, last_fetched
		FROM website_resources
		WHERE id = $1;
	`
	var r crawler.WebsiteResource
	err := s.pool.QueryRow(ctx, query, resourceID).Scan(
		&r.ID, &r.CampaignID, &r.Type, &r.URL, &r.Status, &r.ErrorText, &r.PagesCrawled,
		&r.Title, &r.Content, &r.CreatedAt, &r.UpdatedAt, &r.LastFetched,
	)
	if err != nil {
		return crawler.WebsiteResource{}, fmt.Errorf("get resource %s: %w", resourceID, err)
	}
	return r, nil
}

// SetStatus moves a resource through the crawl lifecycle. Terminal
// statuses also stamp last_fetched.
func (s *ResourceStore) SetStatus(ctx context.Context, resourceID string, status crawler.ResourceStatus, errText string, pagesCrawled int) error {
	now := s.clock.Now()
	query := `
		UPDATE website_resources
		SET status = $2, error_text = NULLIF($3, ''), pages_crawled = $4, updated_at = $5,
		    last_fetched = CASE WHEN $2 IN ('completed', 'failed') THEN $5 ELSE last_fetched END
		WHERE id = $1;
	`
	tag, err := s.pool.Exec(ctx, query, resourceID, status, errText, pagesCrawled, now)
	if err != nil {
		return fmt.Errorf("set resource status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("resource %s not found", resourceID)
	}
	return nil
}

// ListByCampaign returns every resource belonging to a campaign.
func (s *ResourceStore) ListByCampaign(ctx context.Context, campaignID string) ([]crawler.WebsiteResource, error) {
	query := `
		SELECT id, campaign_id, type, url, status, COALESCE(error_text, ''), pages_crawled,
		       COALESCE(title, ''), COALESCE(content, ''), created_at, updated_at, last_fetched
		FROM website_resources
		WHERE campaign_id = $1
		ORDER BY created_at;
	`
	rows, err := s.pool.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	defer rows.Close()

	var resources []crawler.WebsiteResource
	for rows.Next() {
		var r crawler.WebsiteResource
		err := rows.Scan(
			&r.ID, &r.CampaignID, &r.Type, &r.URL, &r.Status, &r.ErrorText, &r.PagesCrawled,
			&r.Title, &r.Content, &r.CreatedAt, &r.UpdatedAt, &r.LastFetched,
		)
		if err != nil {
			return nil, fmt.Errorf("scan resource: %w", err)
		}
		resources = append(resources, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate resources: %w", err)
	}
	return resources, nil
}
