// Package worker implements the crawl job consumer loop.
package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
	"github.com/kevinalyk/campaign-portal/internal/metrics"
)

// Frontier is the crawl loop the worker drives for each job.
type Frontier interface {
	Crawl(ctx context.Context, siteMapID, seedURL string, maxPages int) (crawler.CrawlResult, error)
}

// Config controls Worker behavior.
type Config struct {
	MaxPages int
}

// Worker consumes crawl jobs and executes them end-to-end: one worker
// owns one job at a time, and the queue's per-resource ordering means no
// two workers ever crawl the same resource concurrently.
type Worker struct {
	queue     crawler.Queue
	resources crawler.ResourceStore
	siteMaps  crawler.SiteMapStore
	frontier  Frontier
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue crawler.Queue,
	resources crawler.ResourceStore,
	siteMaps crawler.SiteMapStore,
	frontier Frontier,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}
	return &Worker{
		queue:     queue,
		resources: resources,
		siteMaps:  siteMaps,
		frontier:  frontier,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue deliveries until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		delivery, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue receive failed", zap.Error(err))
			continue
		}
		w.processDelivery(ctx, delivery)
	}
}

// processDelivery handles one message. The delivery is acked only after
// a terminal outcome is durably recorded, so a crash mid-crawl forces
// redelivery. Every step is idempotent, which makes the at-least-once
// redelivery safe.
func (w *Worker) processDelivery(ctx context.Context, delivery crawler.Delivery) {
	metrics.WorkerStarted()
	defer metrics.WorkerFinished()

	if err := delivery.Err(); err != nil {
		// Malformed message: ack-and-drop so it does not poison the queue.
		w.logger.Warn("dropping malformed crawl job message",
			zap.ByteString("body", delivery.Raw()),
			zap.Error(err),
		)
		w.ack(ctx, delivery)
		return
	}

	job := delivery.Job()
	logger := w.logger.With(
		zap.String("resource_id", job.WebsiteResourceID),
		zap.String("campaign_id", job.CampaignID),
		zap.String("url", job.URL),
	)
	logger.Info("processing crawl job")

	if err := w.processJob(ctx, job, logger); err != nil {
		// Terminal failure was not durably recorded; leave the message
		// un-acked so the queue redelivers it.
		logger.Error("crawl job failed before terminal status write", zap.Error(err))
		return
	}
	w.ack(ctx, delivery)
}

func (w *Worker) processJob(ctx context.Context, job crawler.CrawlJob, logger *zap.Logger) error {
	if err := w.resources.SetStatus(ctx, job.WebsiteResourceID, crawler.ResourceStatusProcessing, "", 0); err != nil {
		return fmt.Errorf("mark resource processing: %w", err)
	}

	seed := crawler.NormalizeSeedURL(job.URL)
	baseOrigin := crawler.Origin(seed)
	siteMap, err := w.siteMaps.FindOrCreate(ctx, job.CampaignID, job.WebsiteResourceID, baseOrigin)
	if err != nil {
		return fmt.Errorf("find or create site map: %w", err)
	}

	result, crawlErr := w.frontier.Crawl(ctx, siteMap.ID, seed, w.cfg.MaxPages)
	if crawlErr != nil {
		logger.Error("crawl failed", zap.Error(crawlErr))
		if err := w.recordFailure(ctx, job, siteMap.ID, crawlErr); err != nil {
			return err
		}
		metrics.ObserveJob(string(crawler.ResourceStatusFailed))
		return nil
	}

	if err := w.siteMaps.Finalize(ctx, siteMap.ID, result.Entries, crawler.SiteMapStatusCompleted); err != nil {
		return fmt.Errorf("finalize site map: %w", err)
	}
	if err := w.resources.SetStatus(ctx, job.WebsiteResourceID, crawler.ResourceStatusCompleted, "", result.PagesCrawled); err != nil {
		return fmt.Errorf("mark resource completed: %w", err)
	}

	metrics.ObserveJob(string(crawler.ResourceStatusCompleted))
	logger.Info("crawl job completed", zap.Int("pages_crawled", result.PagesCrawled))
	return nil
}

// recordFailure durably records the failed outcome on both the site map
// and the resource. Once both writes land the message can be acked,
// which stops futile retries of a permanently bad target.
func (w *Worker) recordFailure(ctx context.Context, job crawler.CrawlJob, siteMapID string, crawlErr error) error {
	if err := w.siteMaps.Finalize(ctx, siteMapID, nil, crawler.SiteMapStatusFailed); err != nil {
		return fmt.Errorf("finalize failed site map: %w", err)
	}
	if err := w.resources.SetStatus(ctx, job.WebsiteResourceID, crawler.ResourceStatusFailed, crawlErr.Error(), 0); err != nil {
		return fmt.Errorf("mark resource failed: %w", err)
	}
	return nil
}

func (w *Worker) ack(ctx context.Context, delivery crawler.Delivery) {
	if err := delivery.Ack(ctx); err != nil {
		// A lost ack just means one harmless, idempotent reprocessing.
		w.logger.Warn("delivery ack failed", zap.Error(err))
	}
}
