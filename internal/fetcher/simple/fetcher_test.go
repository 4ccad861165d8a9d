package simple

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

type instantPauser struct{}

func (instantPauser) Pause(context.Context, time.Duration) {}

func newTestFetcher(cfg Config) *Fetcher {
	f := New(cfg, zap.NewNop())
	f.pauser = instantPauser{}
	return f
}

func TestFetch_Success(t *testing.T) {
	t.Parallel()

	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(Config{})
	result, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, result.StatusCode)
	require.Contains(t, string(result.Body), "ok")
	require.False(t, result.Rendered)
	require.Contains(t, gotUA, "Mozilla/5.0", "sends a browser identity")
	require.Contains(t, gotAccept, "text/html")
}

func TestFetch_RetriesTransientFailure(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := newTestFetcher(Config{})
	result, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, int32(2), calls.Load())
	require.Contains(t, string(result.Body), "recovered")
}

func TestFetch_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newTestFetcher(Config{})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.Equal(t, int32(3), calls.Load(), "default policy allows three attempts")

	var fetchErr *crawler.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	require.Equal(t, srv.URL, fetchErr.URL)
}

func TestFetch_ForbiddenReportedInError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newTestFetcher(Config{})
	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)

	var fetchErr *crawler.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, http.StatusForbidden, fetchErr.StatusCode)
}

func TestFetch_ContextCanceled(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	f := newTestFetcher(Config{Timeout: time.Second})
	_, err := f.Fetch(ctx, srv.URL)
	require.Error(t, err)
}

func TestFetch_RotatesUserAgents(t *testing.T) {
	t.Parallel()

	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := newTestFetcher(Config{})
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}

	require.Len(t, agents, 3)
	joined := strings.Join(agents, "|")
	require.NotEqual(t, agents[0], agents[1], "identity rotates between requests: %s", joined)
}

func TestFetch_CancellationLeavesLateResponseUnread(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte("late body"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	f := newTestFetcher(Config{Timeout: time.Second})

	errCh := make(chan error, 1)
	go func() {
		_, err := f.Fetch(ctx, srv.URL)
		errCh <- err
	}()
	cancel()

	err := <-errCh
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)

	// Let the server respond after Fetch has already returned; the
	// detached collector goroutine must finish without touching the
	// caller's result.
	close(release)
	time.Sleep(50 * time.Millisecond)
}
