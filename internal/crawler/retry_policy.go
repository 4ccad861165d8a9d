package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// FetchError signals that a URL could not be fetched after all retries.
// The crawl treats the URL as skipped, not as a fatal failure.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return "fetch failed: " + e.URL
	}
	return "fetch failed: " + e.URL + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }

// RetryPolicy decides whether and when a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int, statusCode int) time.Duration
}

// ExponentialRetryPolicy implements RetryPolicy with jittered backoff.
// HTTP 403 responses, which usually mean a bot challenge, get a much
// longer base delay before the next attempt.
type ExponentialRetryPolicy struct {
	maxAttempts    int
	baseDelay      time.Duration
	forbiddenDelay time.Duration
	maxDelay       time.Duration
}

// NewExponentialRetryPolicy builds a policy with the crawl defaults:
// three attempts, base*2^attempt backoff, 5s base on forbidden responses.
func NewExponentialRetryPolicy() *ExponentialRetryPolicy {
	return &ExponentialRetryPolicy{
		maxAttempts:    3,
		baseDelay:      time.Second,
		forbiddenDelay: 5 * time.Second,
		maxDelay:       40 * time.Second,
	}
}

// ShouldRetry decides whether the error is retryable.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts-1 {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Backoff returns the wait duration before the next attempt. The status
// code of the failed attempt selects the base delay.
func (p *ExponentialRetryPolicy) Backoff(attempt int, statusCode int) time.Duration {
	base := p.baseDelay
	if statusCode == 403 {
		base = p.forbiddenDelay
	}
	delay := float64(base) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 4)
	return time.Duration(delay*3/4) + jitter
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
