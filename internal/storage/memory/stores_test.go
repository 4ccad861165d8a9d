package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func TestSiteMapStore_FindOrCreateIdempotent(t *testing.T) {
	t.Parallel()

	store := NewSiteMapStore(nil)
	ctx := context.Background()

	first, err := store.FindOrCreate(ctx, "camp-1", "res-1", "https://example.com")
	require.NoError(t, err)
	require.Equal(t, crawler.SiteMapStatusCrawling, first.Status)

	require.NoError(t, store.Flush(ctx, first.ID, []crawler.SiteMapEntry{{URL: "https://example.com"}}))
	require.NoError(t, store.Finalize(ctx, first.ID, []crawler.SiteMapEntry{{URL: "https://example.com"}}, crawler.SiteMapStatusCompleted))

	second, err := store.FindOrCreate(ctx, "camp-1", "res-1", "https://example.com")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "one site map per resource, re-crawls reuse it")
	require.Equal(t, crawler.SiteMapStatusCrawling, second.Status, "re-crawl resets status")
}

func TestSiteMapStore_FinalizeNilPreservesEntries(t *testing.T) {
	t.Parallel()

	store := NewSiteMapStore(nil)
	ctx := context.Background()

	sm, err := store.FindOrCreate(ctx, "camp-1", "res-1", "https://example.com")
	require.NoError(t, err)

	flushed := []crawler.SiteMapEntry{{URL: "https://example.com"}, {URL: "https://example.com/a"}}
	require.NoError(t, store.Flush(ctx, sm.ID, flushed))

	require.NoError(t, store.Finalize(ctx, sm.ID, nil, crawler.SiteMapStatusFailed))

	got, ok := store.Get(sm.ID)
	require.True(t, ok)
	require.Equal(t, crawler.SiteMapStatusFailed, got.Status)
	require.Len(t, got.Entries, 2, "failure finalize keeps partial progress")
	require.Equal(t, 2, got.PagesCrawled)
}

func TestSiteMapStore_ListCompletedByCampaign(t *testing.T) {
	t.Parallel()

	store := NewSiteMapStore(nil)
	ctx := context.Background()

	done, err := store.FindOrCreate(ctx, "camp-1", "res-1", "https://a.com")
	require.NoError(t, err)
	require.NoError(t, store.Finalize(ctx, done.ID, []crawler.SiteMapEntry{{URL: "https://a.com"}}, crawler.SiteMapStatusCompleted))

	_, err = store.FindOrCreate(ctx, "camp-1", "res-2", "https://b.com")
	require.NoError(t, err)

	other, err := store.FindOrCreate(ctx, "camp-2", "res-3", "https://c.com")
	require.NoError(t, err)
	require.NoError(t, store.Finalize(ctx, other.ID, nil, crawler.SiteMapStatusCompleted))

	completed, err := store.ListCompletedByCampaign(ctx, "camp-1")
	require.NoError(t, err)
	require.Len(t, completed, 1, "still-crawling and other-campaign maps excluded")
	require.Equal(t, done.ID, completed[0].ID)
}

func TestResourceStore_Lifecycle(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	store := NewResourceStore(clock)
	ctx := context.Background()

	store.Add(crawler.WebsiteResource{ID: "res-1", CampaignID: "camp-1", URL: "https://example.com"})

	r, err := store.Get(ctx, "res-1")
	require.NoError(t, err)
	require.Equal(t, crawler.ResourceStatusPending, r.Status)
	require.Equal(t, crawler.ResourceTypeURL, r.Type)
	require.Nil(t, r.LastFetched)

	require.NoError(t, store.SetStatus(ctx, "res-1", crawler.ResourceStatusProcessing, "", 0))
	r, err = store.Get(ctx, "res-1")
	require.NoError(t, err)
	require.Equal(t, crawler.ResourceStatusProcessing, r.Status)
	require.Nil(t, r.LastFetched, "only terminal statuses stamp last fetched")

	require.NoError(t, store.SetStatus(ctx, "res-1", crawler.ResourceStatusCompleted, "", 12))
	r, err = store.Get(ctx, "res-1")
	require.NoError(t, err)
	require.Equal(t, 12, r.PagesCrawled)
	require.NotNil(t, r.LastFetched)
	require.True(t, clock.now.Equal(*r.LastFetched))
}

func TestResourceStore_SetStatusUnknown(t *testing.T) {
	t.Parallel()

	store := NewResourceStore(nil)
	require.Error(t, store.SetStatus(context.Background(), "ghost", crawler.ResourceStatusFailed, "boom", 0))
}

func TestPageCache_TTL(t *testing.T) {
	t.Parallel()

	clock := &fixedClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := NewPageCache(clock)
	ctx := context.Background()

	page := crawler.CachedPage{
		URL:       "https://example.com",
		Content:   "cached text",
		FetchedAt: clock.now,
		ExpiresAt: clock.now.Add(time.Hour),
	}
	require.NoError(t, cache.Put(ctx, page))

	got, ok, err := cache.Get(ctx, "https://example.com")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "cached text", got.Content)

	clock.now = clock.now.Add(2 * time.Hour)
	_, ok, err = cache.Get(ctx, "https://example.com")
	require.NoError(t, err)
	require.False(t, ok, "expired entries behave as absent")
}

func TestPageCache_Miss(t *testing.T) {
	t.Parallel()

	cache := NewPageCache(nil)
	_, ok, err := cache.Get(context.Background(), "https://nowhere.example")
	require.NoError(t, err)
	require.False(t, ok)
}

type sequenceIDs struct{ next int }

func (g *sequenceIDs) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("sm-%d", g.next), nil
}

func TestSiteMapStore_UsesInjectedIDGenerator(t *testing.T) {
	t.Parallel()

	store := NewSiteMapStore(nil)
	store.ids = &sequenceIDs{}
	ctx := context.Background()

	first, err := store.FindOrCreate(ctx, "camp-1", "res-1", "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "sm-1", first.ID)

	other, err := store.FindOrCreate(ctx, "camp-1", "res-2", "https://other.example")
	require.NoError(t, err)
	require.Equal(t, "sm-2", other.ID)
}
