package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	visits []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (FetchResult, error) {
	f.mu.Lock()
	f.visits = append(f.visits, url)
	f.mu.Unlock()
	if err, ok := f.errs[url]; ok {
		return FetchResult{}, err
	}
	body, ok := f.pages[url]
	if !ok {
		return FetchResult{}, &FetchError{URL: url, StatusCode: 404}
	}
	return FetchResult{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

// fakeExtractor returns canned links per URL and a title derived from
// the body.
type fakeExtractor struct {
	links map[string][]string
}

func (e *fakeExtractor) Extract(html []byte, pageURL, _ string) PageData {
	return PageData{
		URL:     pageURL,
		Title:   string(html),
		Content: string(html),
		Links:   e.links[pageURL],
	}
}

type fakeSiteMapStore struct {
	mu       sync.Mutex
	flushes  [][]SiteMapEntry
	flushErr error
}

func (s *fakeSiteMapStore) FindOrCreate(context.Context, string, string, string) (SiteMap, error) {
	return SiteMap{}, errors.New("not used")
}

func (s *fakeSiteMapStore) Flush(_ context.Context, _ string, entries []SiteMapEntry) error {
	if s.flushErr != nil {
		return s.flushErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]SiteMapEntry, len(entries))
	copy(snapshot, entries)
	s.flushes = append(s.flushes, snapshot)
	return nil
}

func (s *fakeSiteMapStore) Finalize(context.Context, string, []SiteMapEntry, SiteMapStatus) error {
	return nil
}

func (s *fakeSiteMapStore) ListCompletedByCampaign(context.Context, string) ([]SiteMap, error) {
	return nil, nil
}

type fakeArchive struct {
	mu    sync.Mutex
	paths []string
}

func (a *fakeArchive) PutObject(_ context.Context, path, _ string, _ []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paths = append(a.paths, path)
	return "mem://" + path, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type noPause struct{}

func (noPause) Pause(context.Context, time.Duration) {}

func newTestFrontier(fetcher Fetcher, extractor Extractor, store SiteMapStore, archive Archive, cfg FrontierConfig) *Frontier {
	f := NewFrontier(fetcher, extractor, store, archive, &fakeClock{now: time.Unix(1000, 0)}, cfg, zap.NewNop())
	f.pauser = noPause{}
	return f
}

func TestFrontier_CrawlBreadthFirstSameOrigin(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com":       "home",
		"https://example.com/a":     "page a",
		"https://example.com/b":     "page b",
		"https://example.com/a/sub": "page a sub",
	}}
	extractor := &fakeExtractor{links: map[string][]string{
		"https://example.com":   {"https://example.com/a", "https://example.com/b"},
		"https://example.com/a": {"https://example.com/a/sub", "https://example.com/b"},
	}}
	store := &fakeSiteMapStore{}

	f := newTestFrontier(fetcher, extractor, store, nil, FrontierConfig{MaxPages: 10, FlushEvery: 2})
	result, err := f.Crawl(context.Background(), "sm-1", "example.com", 0)
	require.NoError(t, err)

	require.Equal(t, 4, result.PagesCrawled)
	require.Equal(t, []string{
		"https://example.com",
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/a/sub",
	}, fetcher.visits, "breadth-first order, each URL fetched once")
}

func TestFrontier_CrawlStopsAtMaxPages(t *testing.T) {
	t.Parallel()

	pages := map[string]string{"https://example.com": "home"}
	links := map[string][]string{"https://example.com": {}}
	// A chain of pages each linking to the next.
	prev := "https://example.com"
	for i := 0; i < 10; i++ {
		next := prev + "/n"
		pages[next] = "page"
		links[prev] = []string{next}
		prev = next
	}

	fetcher := &fakeFetcher{pages: pages}
	store := &fakeSiteMapStore{}
	f := newTestFrontier(fetcher, &fakeExtractor{links: links}, store, nil, FrontierConfig{MaxPages: 3, FlushEvery: 5})

	result, err := f.Crawl(context.Background(), "sm-1", "https://example.com", 3)
	require.NoError(t, err)
	require.Equal(t, 3, result.PagesCrawled)
	require.Len(t, fetcher.visits, 3)
}

func TestFrontier_FlushCadence(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	var seeds []string
	for _, p := range []string{"", "/a", "/b", "/c", "/d", "/e", "/f"} {
		u := "https://example.com" + p
		pages[u] = "page"
		if p != "" {
			seeds = append(seeds, u)
		}
	}
	fetcher := &fakeFetcher{pages: pages}
	extractor := &fakeExtractor{links: map[string][]string{"https://example.com": seeds}}
	store := &fakeSiteMapStore{}

	f := newTestFrontier(fetcher, extractor, store, nil, FrontierConfig{MaxPages: 7, FlushEvery: 3})
	result, err := f.Crawl(context.Background(), "sm-1", "https://example.com", 0)
	require.NoError(t, err)
	require.Equal(t, 7, result.PagesCrawled)

	// Flushes at 3, 6, and the final cap at 7.
	require.Len(t, store.flushes, 3)
	require.Len(t, store.flushes[0], 3)
	require.Len(t, store.flushes[1], 6)
	require.Len(t, store.flushes[2], 7)
}

func TestFrontier_FetchFailureSkipsPage(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://example.com":   "home",
			"https://example.com/b": "page b",
		},
		errs: map[string]error{
			"https://example.com/a": &FetchError{URL: "https://example.com/a", StatusCode: 502},
		},
	}
	extractor := &fakeExtractor{links: map[string][]string{
		"https://example.com": {"https://example.com/a", "https://example.com/b"},
	}}
	store := &fakeSiteMapStore{}

	f := newTestFrontier(fetcher, extractor, store, nil, FrontierConfig{MaxPages: 10, FlushEvery: 10})
	result, err := f.Crawl(context.Background(), "sm-1", "https://example.com", 0)
	require.NoError(t, err, "fetch failure must not abort the crawl")
	require.Equal(t, 2, result.PagesCrawled)
	for _, entry := range result.Entries {
		require.NotEqual(t, "https://example.com/a", entry.URL)
	}
}

func TestFrontier_StoreFailureAborts(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com": "home"}}
	store := &fakeSiteMapStore{flushErr: errors.New("connection lost")}

	f := newTestFrontier(fetcher, &fakeExtractor{}, store, nil, FrontierConfig{MaxPages: 1, FlushEvery: 1})
	_, err := f.Crawl(context.Background(), "sm-1", "https://example.com", 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "flush site map")
}

func TestFrontier_InterstitialRecordsSentinel(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com": "<html>Just a moment... Checking your browser</html>",
	}}
	extractor := &fakeExtractor{links: map[string][]string{
		"https://example.com": {"https://example.com/never"},
	}}
	store := &fakeSiteMapStore{}

	f := newTestFrontier(fetcher, extractor, store, nil, FrontierConfig{MaxPages: 10, FlushEvery: 10})
	result, err := f.Crawl(context.Background(), "sm-1", "https://example.com", 0)
	require.NoError(t, err)

	require.Equal(t, 1, result.PagesCrawled)
	entry := result.Entries[0]
	require.Equal(t, "https://example.com", entry.URL)
	require.Equal(t, "https://example.com", entry.Title, "sentinel uses the URL as title")
	require.Empty(t, entry.Content)
	require.Len(t, fetcher.visits, 1, "interstitial pages contribute no links")
}

func TestFrontier_ArchivesRawHTML(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com": "home"}}
	archive := &fakeArchive{}

	f := newTestFrontier(fetcher, &fakeExtractor{}, &fakeSiteMapStore{}, archive, FrontierConfig{
		MaxPages:     1,
		FlushEvery:   1,
		ArchivePages: true,
	})
	_, err := f.Crawl(context.Background(), "sm-1", "https://example.com", 0)
	require.NoError(t, err)

	require.Len(t, archive.paths, 1)
	require.Contains(t, archive.paths[0], "sm-1/")
	require.Contains(t, archive.paths[0], ".html")
}

func TestFrontier_ContextCancelation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com": "home"}}
	f := newTestFrontier(fetcher, &fakeExtractor{}, &fakeSiteMapStore{}, nil, FrontierConfig{})

	_, err := f.Crawl(ctx, "sm-1", "https://example.com", 0)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsInterstitial(t *testing.T) {
	t.Parallel()

	require.True(t, isInterstitial([]byte("<title>Just a Moment</title>")))
	require.True(t, isInterstitial([]byte("We are CHECKING YOUR BROWSER before access")))
	require.False(t, isInterstitial([]byte("<html>Welcome to the campaign</html>")))
}
