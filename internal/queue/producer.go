package queue

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
	"github.com/kevinalyk/campaign-portal/internal/metrics"
)

// Producer bridges resource mutations to the crawl queue. Enqueue
// failures are logged and counted but never surfaced to the caller, so
// a queue outage cannot break the write path that triggered the crawl.
type Producer struct {
	queue     crawler.Queue
	resources crawler.ResourceStore
	clock     crawler.Clock
	logger    *zap.Logger
}

// NewProducer constructs a Producer.
func NewProducer(queue crawler.Queue, resources crawler.ResourceStore, clock crawler.Clock, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if clock == nil {
		clock = crawler.SystemClock{}
	}
	return &Producer{queue: queue, resources: resources, clock: clock, logger: logger}
}

// TriggerCrawl looks up the resource and enqueues a crawl job for it.
// The resource must exist and be of type url; everything past that
// lookup is fire-and-forget.
func (p *Producer) TriggerCrawl(ctx context.Context, resourceID string) error {
	resource, err := p.resources.Get(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("load resource %s: %w", resourceID, err)
	}
	if resource.Type != crawler.ResourceTypeURL {
		return fmt.Errorf("resource %s is not a url resource", resourceID)
	}

	job := crawler.CrawlJob{
		WebsiteResourceID: resource.ID,
		CampaignID:        resource.CampaignID,
		URL:               resource.URL,
		Timestamp:         p.clock.Now(),
	}

	go p.enqueue(job)
	return nil
}

func (p *Producer) enqueue(job crawler.CrawlJob) {
	// Detached from the request context: the trigger call has already
	// returned and the publish should not die with it.
	id, err := p.queue.Enqueue(context.Background(), job)
	if err != nil {
		metrics.ObserveEnqueueError()
		p.logger.Error("enqueue crawl job failed",
			zap.String("websiteResourceId", job.WebsiteResourceID),
			zap.Error(err),
		)
		return
	}
	p.logger.Info("crawl job enqueued",
		zap.String("websiteResourceId", job.WebsiteResourceID),
		zap.String("messageId", id),
	)
}
