package crawler

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kevinalyk/campaign-portal/internal/metrics"
)

// FrontierConfig controls one crawl run.
type FrontierConfig struct {
	MaxPages     int
	FlushEvery   int
	MinDelay     time.Duration
	MaxDelay     time.Duration
	ArchivePages bool
}

func (c *FrontierConfig) applyDefaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 50
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 5
	}
	if c.MinDelay <= 0 {
		c.MinDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 3 * time.Second
	}
}

// Interstitial challenge signatures emitted by bot-protection layers.
// A page matching one of these is recorded as a sentinel entry instead
// of being treated as a fetch failure.
var interstitialSignatures = [][]byte{
	[]byte("checking your browser"),
	[]byte("just a moment"),
}

func isInterstitial(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, sig := range interstitialSignatures {
		if bytes.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// Frontier drives the fetch -> extract -> enqueue-links loop for one job.
// The loop is strictly sequential so the politeness delay actually spaces
// requests to the target site.
type Frontier struct {
	fetcher   Fetcher
	extractor Extractor
	store     SiteMapStore
	archive   Archive
	clock     Clock
	pauser    pauseController
	cfg       FrontierConfig
	logger    *zap.Logger
}

// NewFrontier constructs a Frontier. The archive may be nil, in which
// case raw HTML snapshots are not kept.
func NewFrontier(
	fetcher Fetcher,
	extractor Extractor,
	store SiteMapStore,
	archive Archive,
	clock Clock,
	cfg FrontierConfig,
	logger *zap.Logger,
) *Frontier {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Frontier{
		fetcher:   fetcher,
		extractor: extractor,
		store:     store,
		archive:   archive,
		clock:     clock,
		pauser:    &timerPauseController{},
		cfg:       cfg,
		logger:    logger,
	}
}

// Crawl walks the same-origin link graph breadth-first from seedURL until
// the frontier empties or maxPages entries exist. Entries are flushed to
// the site map store every FlushEvery pages so a mid-crawl crash loses at
// most one flush interval of work. A fetch failure skips the page; only a
// store failure aborts the crawl.
func (f *Frontier) Crawl(ctx context.Context, siteMapID, seedURL string, maxPages int) (CrawlResult, error) {
	if maxPages <= 0 {
		maxPages = f.cfg.MaxPages
	}
	seed := NormalizeSeedURL(seedURL)
	normalizedSeed, err := NormalizeURL(seed)
	if err != nil {
		return CrawlResult{}, fmt.Errorf("normalize seed url: %w", err)
	}
	baseOrigin := Origin(normalizedSeed)
	if baseOrigin == "" {
		return CrawlResult{}, fmt.Errorf("seed url %q has no origin", seedURL)
	}

	visited := map[string]struct{}{normalizedSeed: {}}
	queued := map[string]struct{}{normalizedSeed: {}}
	toVisit := []string{normalizedSeed}
	entries := make([]SiteMapEntry, 0, maxPages)
	lastFlushed := 0

	for len(toVisit) > 0 && len(entries) < maxPages {
		if ctx.Err() != nil {
			return CrawlResult{}, fmt.Errorf("crawl canceled: %w", ctx.Err())
		}

		pageURL := toVisit[0]
		toVisit = toVisit[1:]
		visited[pageURL] = struct{}{}

		if len(entries) > 0 {
			f.pauser.Pause(ctx, politenessDelay(f.cfg.MinDelay, f.cfg.MaxDelay))
		}

		result, err := f.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			metrics.ObservePageSkipped(baseOrigin)
			f.logger.Warn("page fetch failed, skipping",
				zap.String("url", pageURL),
				zap.Error(err),
			)
			continue
		}

		entry, links := f.processPage(ctx, siteMapID, pageURL, baseOrigin, result)
		entries = append(entries, entry)
		metrics.ObservePageCrawled(baseOrigin, result.StatusCode)

		for _, link := range links {
			if len(queued) >= maxPages*10 {
				break
			}
			if _, seen := visited[link]; seen {
				continue
			}
			if _, pending := queued[link]; pending {
				continue
			}
			queued[link] = struct{}{}
			toVisit = append(toVisit, link)
		}

		if len(entries)-lastFlushed >= f.cfg.FlushEvery || len(entries) >= maxPages {
			if err := f.store.Flush(ctx, siteMapID, entries); err != nil {
				return CrawlResult{}, fmt.Errorf("flush site map: %w", err)
			}
			lastFlushed = len(entries)
		}
	}

	return CrawlResult{Entries: entries, PagesCrawled: len(entries)}, nil
}

func (f *Frontier) processPage(
	ctx context.Context,
	siteMapID string,
	pageURL string,
	baseOrigin string,
	result FetchResult,
) (SiteMapEntry, []string) {
	if isInterstitial(result.Body) {
		f.logger.Info("interstitial challenge page, recording sentinel entry",
			zap.String("url", pageURL),
		)
		return SiteMapEntry{
			URL:         pageURL,
			Title:       pageURL,
			Keywords:    []string{},
			LastCrawled: f.clock.Now(),
		}, nil
	}

	data := f.extractor.Extract(result.Body, pageURL, baseOrigin)
	entry := SiteMapEntry{
		URL:         pageURL,
		Title:       data.Title,
		Description: data.Description,
		Keywords:    data.Keywords,
		Content:     data.Content,
		LastCrawled: f.clock.Now(),
	}

	if f.cfg.ArchivePages && f.archive != nil {
		path := fmt.Sprintf("%s/%x.html", siteMapID, hashURL(pageURL))
		if _, err := f.archive.PutObject(ctx, path, "text/html; charset=utf-8", result.Body); err != nil {
			f.logger.Warn("archive page failed",
				zap.String("url", pageURL),
				zap.Error(err),
			)
		}
	}

	return entry, data.Links
}
