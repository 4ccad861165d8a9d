// Package postgres expects the following schema:
//
//	CREATE TABLE website_resources (
//		id            TEXT PRIMARY KEY,
//		campaign_id   TEXT NOT NULL,
//		type          TEXT NOT NULL DEFAULT 'url',
//		url           TEXT NOT NULL,
//		status        TEXT NOT NULL DEFAULT 'pending',
//		error_text    TEXT,
//		pages_crawled INT NOT NULL DEFAULT 0,
//		title         TEXT,
//		content       TEXT,
//		created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//		updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//		last_fetched  TIMESTAMPTZ
//	);
//
//	CREATE TABLE site_maps (
//		id                  TEXT PRIMARY KEY,
//		campaign_id         TEXT NOT NULL,
//		website_resource_id TEXT NOT NULL UNIQUE REFERENCES website_resources (id) ON DELETE CASCADE,
//		base_url            TEXT NOT NULL,
//		status              TEXT NOT NULL DEFAULT 'crawling',
//		pages_crawled       INT NOT NULL DEFAULT 0,
//		entries             JSONB NOT NULL DEFAULT '[]'::jsonb,
//		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
//		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
//
//	CREATE TABLE page_cache (
//		url        TEXT PRIMARY KEY,
//		content    TEXT NOT NULL,
//		fetched_at TIMESTAMPTZ NOT NULL,
//		expires_at TIMESTAMPTZ NOT NULL
//	);
//
// The UNIQUE constraint on site_maps.website_resource_id is what makes
// FindOrCreate an idempotent upsert.
package postgres
