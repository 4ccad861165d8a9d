// Package simple implements crawler.Fetcher with a plain HTTP client
// built on gocolly.
package simple

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
	"github.com/kevinalyk/campaign-portal/internal/metrics"
)

const maxRedirects = 5

// Realistic browser identities rotated across attempts to reduce
// blocking by anti-bot defenses.
var userAgentPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// Config controls fetcher behavior.
type Config struct {
	Timeout time.Duration
	Retry   crawler.RetryPolicy
}

type pauser interface {
	Pause(ctx context.Context, delay time.Duration)
}

// Fetcher issues browser-like HTTP GETs with retry and rotating identity.
type Fetcher struct {
	cfg     Config
	pauser  pauser
	attempt atomic.Uint64
	logger  *zap.Logger
}

// New builds a Fetcher. A nil retry policy gets the exponential default.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = crawler.NewExponentialRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		pauser: timerPauser{},
		logger: logger,
	}
}

// Fetch retrieves url, retrying transient failures with backoff. HTTP 403
// responses get the policy's longer bot-challenge backoff. After the last
// attempt the error is wrapped in a *crawler.FetchError so callers can
// skip the page without aborting the crawl.
func (f *Fetcher) Fetch(ctx context.Context, url string) (crawler.FetchResult, error) {
	var (
		lastErr    error
		lastStatus int
	)
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			metrics.ObserveFetchRetry()
		}
		result, err := f.fetchOnce(ctx, url)
		if err == nil {
			return result, nil
		}
		lastErr = err
		lastStatus = result.StatusCode
		if lastStatus == http.StatusForbidden {
			metrics.ObserveForbidden()
		}
		if !f.cfg.Retry.ShouldRetry(err, attempt) {
			break
		}
		backoff := f.cfg.Retry.Backoff(attempt, lastStatus)
		f.logger.Debug("fetch attempt failed, backing off",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("status", lastStatus),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		f.pauser.Pause(ctx, backoff)
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
	}
	return crawler.FetchResult{}, &crawler.FetchError{URL: url, StatusCode: lastStatus, Err: lastErr}
}

type fetchOutcome struct {
	result crawler.FetchResult
	err    error
}

// fetchOnce runs one collector visit. The visit goroutine keeps sole
// ownership of the response state and hands it back over the channel,
// so an early return on cancellation never races with the collector's
// callbacks; the request timeout bounds the abandoned goroutine.
func (f *Fetcher) fetchOnce(ctx context.Context, url string) (crawler.FetchResult, error) {
	done := make(chan fetchOutcome, 1)
	go func() {
		done <- f.visit(url)
	}()

	select {
	case <-ctx.Done():
		return crawler.FetchResult{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case out := <-done:
		return out.result, out.err
	}
}

func (f *Fetcher) visit(url string) fetchOutcome {
	var (
		result   crawler.FetchResult
		fetchErr error
	)
	start := time.Now()

	collector := colly.NewCollector(colly.Async(false))
	collector.UserAgent = f.nextUserAgent()
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(newHTTPTransport())
	collector.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Referer", "https://www.google.com/")
	})

	collector.OnResponse(func(r *colly.Response) {
		result = crawler.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		fetchErr = err
	})

	if err := collector.Visit(url); err != nil {
		return fetchOutcome{result: result, err: fmt.Errorf("visit failed: %w", err)}
	}
	if fetchErr != nil {
		return fetchOutcome{result: result, err: fmt.Errorf("response failed: %w", fetchErr)}
	}
	return fetchOutcome{result: result}
}

func (f *Fetcher) nextUserAgent() string {
	n := f.attempt.Add(1)
	return userAgentPool[int(n)%len(userAgentPool)]
}

type timerPauser struct{}

func (timerPauser) Pause(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
