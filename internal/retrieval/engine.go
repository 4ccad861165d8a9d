package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
	"github.com/kevinalyk/campaign-portal/internal/metrics"
)

// Output bounds: five entries are scored and kept, but only three feed
// the context assembly so the downstream prompt stays bounded.
const (
	topScored    = 5
	topAssembled = 3

	bodySnippetCap   = 500
	sourceSnippetCap = 200
	sampleLength     = 500
)

// Source cites one page that contributed to the assembled context.
type Source struct {
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// RelevantContent is the bounded context returned to the answer layer.
type RelevantContent struct {
	Content string   `json:"content"`
	Sources []Source `json:"sources,omitempty"`
}

// Config controls retrieval behavior.
type Config struct {
	CacheTTL time.Duration
}

// Engine ranks crawled pages against a query and assembles snippets.
// Every internal failure degrades to a nil result: a retrieval hiccup
// costs answer quality, never the chat experience.
type Engine struct {
	siteMaps  crawler.SiteMapStore
	resources crawler.ResourceStore
	cache     crawler.PageCache
	fetcher   crawler.Fetcher
	extractor crawler.Extractor
	clock     crawler.Clock
	cfg       Config
	logger    *zap.Logger
}

// NewEngine constructs an Engine. The fetcher and extractor are used
// only to refresh pages whose site map entry carries no content.
func NewEngine(
	siteMaps crawler.SiteMapStore,
	resources crawler.ResourceStore,
	cache crawler.PageCache,
	fetcher crawler.Fetcher,
	extractor crawler.Extractor,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Engine {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		siteMaps:  siteMaps,
		resources: resources,
		cache:     cache,
		fetcher:   fetcher,
		extractor: extractor,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// GetRelevantContent ranks the campaign's crawled pages against query
// and returns assembled context. It returns nil when the campaign has no
// resources at all, and also on any internal error; callers treat nil as
// "answer without site context".
func (e *Engine) GetRelevantContent(ctx context.Context, campaignID, query string, includeSourceInfo bool) *RelevantContent {
	start := time.Now()
	result, outcome := e.retrieve(ctx, campaignID, query, includeSourceInfo)
	metrics.ObserveRetrieval(outcome, time.Since(start))
	return result
}

func (e *Engine) retrieve(ctx context.Context, campaignID, query string, includeSourceInfo bool) (*RelevantContent, string) {
	keywords := ExtractKeywords(query)

	if len(keywords) > 0 {
		scored, err := e.scoreSiteMapEntries(ctx, campaignID, keywords, query)
		if err != nil {
			e.logger.Warn("site map scoring failed, degrading to nil",
				zap.String("campaign_id", campaignID),
				zap.Error(err),
			)
			return nil, "error"
		}
		if len(scored) > 0 {
			return e.assembleFromEntries(ctx, scored, keywords, includeSourceInfo), "ranked"
		}
	}

	// Fallback chain: keyword search over whole resources, then an
	// unranked sample of everything the campaign has.
	resources, err := e.resources.ListByCampaign(ctx, campaignID)
	if err != nil {
		e.logger.Warn("resource listing failed, degrading to nil",
			zap.String("campaign_id", campaignID),
			zap.Error(err),
		)
		return nil, "error"
	}
	if len(resources) == 0 {
		return nil, "empty"
	}

	if len(keywords) > 0 {
		if result := assembleFromResources(resources, keywords, query, includeSourceInfo); result != nil {
			return result, "resource_fallback"
		}
	}
	return assembleSample(resources, includeSourceInfo), "sample_fallback"
}

// scoreSiteMapEntries flattens all completed site maps for the campaign
// into one candidate list and keeps the topScored non-zero scorers.
func (e *Engine) scoreSiteMapEntries(ctx context.Context, campaignID string, keywords []string, rawQuery string) ([]scoredEntry, error) {
	siteMaps, err := e.siteMaps.ListCompletedByCampaign(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("list completed site maps: %w", err)
	}

	var scored []scoredEntry
	for _, sm := range siteMaps {
		for _, entry := range sm.Entries {
			if s := scoreEntry(entry, keywords, rawQuery); s > 0 {
				scored = append(scored, scoredEntry{entry: entry, score: s})
			}
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if len(scored) > topScored {
		scored = scored[:topScored]
	}
	return scored, nil
}

func (e *Engine) assembleFromEntries(ctx context.Context, scored []scoredEntry, keywords []string, includeSourceInfo bool) *RelevantContent {
	limit := len(scored)
	if limit > topAssembled {
		limit = topAssembled
	}

	var (
		blocks  strings.Builder
		sources []Source
	)
	for _, candidate := range scored[:limit] {
		text := e.pageText(ctx, candidate.entry)
		snippet := extractSnippet(text, keywords, bodySnippetCap)
		if snippet == "" {
			snippet = extractSnippet(candidate.entry.Description, keywords, bodySnippetCap)
		}
		fmt.Fprintf(&blocks, "Page: %s\nURL: %s\n%s\n\n", candidate.entry.Title, candidate.entry.URL, snippet)
		if includeSourceInfo {
			sources = append(sources, Source{
				URL:     candidate.entry.URL,
				Snippet: extractSnippet(text, keywords, sourceSnippetCap),
			})
		}
	}

	result := &RelevantContent{Content: blocks.String()}
	if includeSourceInfo {
		result.Sources = sources
	}
	return result
}

// pageText prefers the entry's own content, then the page cache, and
// only refetches live as a last resort, populating the cache on the way
// out. A refresh failure just means a thinner snippet.
func (e *Engine) pageText(ctx context.Context, entry crawler.SiteMapEntry) string {
	if entry.Content != "" {
		return entry.Content
	}

	if cached, ok, err := e.cache.Get(ctx, entry.URL); err == nil && ok {
		metrics.ObserveCacheLookup(true)
		return cached.Content
	} else if err != nil {
		e.logger.Warn("page cache lookup failed", zap.String("url", entry.URL), zap.Error(err))
	}
	metrics.ObserveCacheLookup(false)

	if e.fetcher == nil || e.extractor == nil {
		return entry.Description
	}
	fetched, err := e.fetcher.Fetch(ctx, entry.URL)
	if err != nil {
		e.logger.Warn("live refresh fetch failed", zap.String("url", entry.URL), zap.Error(err))
		return entry.Description
	}
	data := e.extractor.Extract(fetched.Body, entry.URL, crawler.Origin(entry.URL))

	now := e.clock.Now()
	err = e.cache.Put(ctx, crawler.CachedPage{
		URL:       entry.URL,
		Content:   data.Content,
		FetchedAt: now,
		ExpiresAt: now.Add(e.cfg.CacheTTL),
	})
	if err != nil {
		e.logger.Warn("page cache write failed", zap.String("url", entry.URL), zap.Error(err))
	}
	return data.Content
}

// assembleFromResources is fallback (a): keyword scoring directly over
// resource content, url, and title. Returns nil when nothing scores.
func assembleFromResources(resources []crawler.WebsiteResource, keywords []string, rawQuery string, includeSourceInfo bool) *RelevantContent {
	var scored []scoredResource
	for _, resource := range resources {
		if s := scoreResource(resource, keywords, rawQuery); s > 0 {
			scored = append(scored, scoredResource{resource: resource, score: s})
		}
	}
	if len(scored) == 0 {
		return nil
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	limit := len(scored)
	if limit > topAssembled {
		limit = topAssembled
	}

	var (
		blocks  strings.Builder
		sources []Source
	)
	for _, candidate := range scored[:limit] {
		snippet := extractSnippet(candidate.resource.Content, keywords, bodySnippetCap)
		fmt.Fprintf(&blocks, "Page: %s\nURL: %s\n%s\n\n",
			resourceTitle(candidate.resource), candidate.resource.URL, snippet)
		if includeSourceInfo {
			sources = append(sources, Source{
				URL:     candidate.resource.URL,
				Snippet: extractSnippet(candidate.resource.Content, keywords, sourceSnippetCap),
			})
		}
	}

	result := &RelevantContent{Content: blocks.String()}
	if includeSourceInfo {
		result.Sources = sources
	}
	return result
}

// assembleSample is fallback (b): an unranked, unscored sample of every
// resource's content.
func assembleSample(resources []crawler.WebsiteResource, includeSourceInfo bool) *RelevantContent {
	var (
		blocks  strings.Builder
		sources []Source
	)
	for _, resource := range resources {
		sample := truncateRunes(resource.Content, sampleLength)
		fmt.Fprintf(&blocks, "Page: %s\nURL: %s\n%s\n\n", resourceTitle(resource), resource.URL, sample)
		if includeSourceInfo {
			sources = append(sources, Source{URL: resource.URL, Snippet: truncateRunes(sample, sourceSnippetCap)})
		}
	}

	result := &RelevantContent{Content: blocks.String()}
	if includeSourceInfo {
		result.Sources = sources
	}
	return result
}

func resourceTitle(resource crawler.WebsiteResource) string {
	if resource.Title != "" {
		return resource.Title
	}
	return resource.URL
}
