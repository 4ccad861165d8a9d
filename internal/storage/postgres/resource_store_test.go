package postgres

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

func resourceColumns() []string {
	return []string{
		"id", "campaign_id", "type", "url", "status", "error_text", "pages_crawled",
		"title", "content", "created_at", "updated_at", "last_fetched",
	}
}

func TestResourceStore_Get(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResourceStore(mock, testClock{now: frozen})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM website_resources").
		WithArgs("res-1").
		WillReturnRows(pgxmock.NewRows(resourceColumns()).AddRow(
			"res-1", "camp-1", crawler.ResourceTypeURL, "https://example.com", crawler.ResourceStatusCompleted, "", 12,
			"Campaign Home", "welcome text", frozen, frozen, &frozen,
		))

	r, err := store.Get(context.Background(), "res-1")
	require.NoError(t, err)
	require.Equal(t, "res-1", r.ID)
	require.Equal(t, crawler.ResourceStatusCompleted, r.Status)
	require.Equal(t, 12, r.PagesCrawled)
	require.NotNil(t, r.LastFetched)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceStore_SetStatus(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResourceStore(mock, testClock{now: frozen})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE website_resources").
		WithArgs("res-1", crawler.ResourceStatusFailed, "seed unreachable", 0, frozen).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SetStatus(context.Background(), "res-1", crawler.ResourceStatusFailed, "seed unreachable", 0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceStore_SetStatusUnknownResource(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResourceStore(mock, testClock{now: frozen})
	require.NoError(t, err)

	mock.ExpectExec("UPDATE website_resources").
		WithArgs("ghost", crawler.ResourceStatusProcessing, "", 0, frozen).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.SetStatus(context.Background(), "ghost", crawler.ResourceStatusProcessing, "", 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceStore_ListByCampaign(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResourceStore(mock, testClock{now: frozen})
	require.NoError(t, err)

	mock.ExpectQuery("SELECT (.+) FROM website_resources").
		WithArgs("camp-1").
		WillReturnRows(pgxmock.NewRows(resourceColumns()).
			AddRow("res-1", "camp-1", crawler.ResourceTypeURL, "https://a.com", crawler.ResourceStatusCompleted, "", 3, "", "", frozen, frozen, &frozen).
			AddRow("res-2", "camp-1", crawler.ResourceTypeURL, "https://b.com", crawler.ResourceStatusPending, "", 0, "", "", frozen, frozen, nil))

	resources, err := store.ListByCampaign(context.Background(), "camp-1")
	require.NoError(t, err)
	require.Len(t, resources, 2)
	require.Nil(t, resources[1].LastFetched)
	require.NoError(t, mock.ExpectationsWereMet())
}
