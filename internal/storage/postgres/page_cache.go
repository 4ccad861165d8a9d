package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

// PageCache stores extracted page text keyed by URL with a TTL. Rows are
// shared across campaigns that reference the same URL; concurrent
// upserts are last-writer-wins, which is safe because the cached data is
// idempotent-equivalent.
type PageCache struct {
	pool  Pool
	clock crawler.Clock
}

// NewPageCache constructs a cache over an injected pool.
func NewPageCache(pool Pool, clock crawler.Clock) (*PageCache, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &PageCache{pool: pool, clock: clock}, nil
}

// Get returns the cached page for url. Expired rows are treated as absent.
func (c *PageCache) Get(ctx context.Context, url string) (crawler.CachedPage, bool, error) {
	query := `
		SELECT url, content, fetched_at, expires_at
		FROM page_cache
		WHERE url = $1 AND expires_at > $2;
	`
	var page crawler.CachedPage
	err := c.pool.QueryRow(ctx, query, url, c.clock.Now()).Scan(
		&page.URL, &page.Content, &page.FetchedAt, &page.ExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.CachedPage{}, false, nil
	}
	if err != nil {
		return crawler.CachedPage{}, false, fmt.Errorf("get cached page: %w", err)
	}
	return page, true, nil
}

// Put upserts a cached page by URL.
func (c *PageCache) Put(ctx context.Context, page crawler.CachedPage) error {
	query := `
		INSERT INTO page_cache (url, content, fetched_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO UPDATE
		SET content = EXCLUDED.content, fetched_at = EXCLUDED.fetched_at, expires_at = EXCLUDED.expires_at;
	`
	if _, err := c.pool.Exec(ctx, query, page.URL, page.Content, page.FetchedAt, page.ExpiresAt); err != nil {
		return fmt.Errorf("put cached page: %w", err)
	}
	return nil
}
