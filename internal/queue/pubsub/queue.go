// Package pubsub implements the crawl job queue on Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
	"github.com/kevinalyk/campaign-portal/internal/queue"
)

// Config identifies the topic and subscription used for crawl jobs.
type Config struct {
	ProjectID      string
	TopicID        string
	SubscriptionID string
}

// Queue implements crawler.Queue on Pub/Sub. Messages are published with
// the resource ID as ordering key so two crawls of the same resource
// cannot race; acknowledgment maps directly onto Pub/Sub acks, giving
// at-least-once delivery.
type Queue struct {
	client     *gcppubsub.Client
	topic      *gcppubsub.Topic
	deliveries chan *gcppubsub.Message
	cancelRecv context.CancelFunc
	logger     *zap.Logger
}

// New connects to Pub/Sub and starts pulling from the subscription.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub project_id and topic_id are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := gcppubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.TopicID)
	topic.EnableMessageOrdering = true

	q := &Queue{
		client:     client,
		topic:      topic,
		deliveries: make(chan *gcppubsub.Message),
		logger:     logger,
	}

	if cfg.SubscriptionID != "" {
		recvCtx, cancel := context.WithCancel(context.Background())
		q.cancelRecv = cancel
		sub := client.Subscription(cfg.SubscriptionID)
		// One message in flight per worker; the worker acks explicitly.
		sub.ReceiveSettings.MaxOutstandingMessages = cap(q.deliveries) + 1
		go func() {
			err := sub.Receive(recvCtx, func(_ context.Context, msg *gcppubsub.Message) {
				select {
				case q.deliveries <- msg:
				case <-recvCtx.Done():
					msg.Nack()
				}
			})
			if err != nil && recvCtx.Err() == nil {
				logger.Error("pubsub receive loop exited", zap.Error(err))
			}
		}()
	}

	return q, nil
}

// Enqueue publishes a crawl job and waits for the server-assigned ID.
func (q *Queue) Enqueue(ctx context.Context, job crawler.CrawlJob) (string, error) {
	body, err := queue.EncodeJob(job)
	if err != nil {
		return "", err
	}
	result := q.topic.Publish(ctx, &gcppubsub.Message{
		Data:        body,
		OrderingKey: job.WebsiteResourceID,
	})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish crawl job: %w", err)
	}
	return id, nil
}

// Receive blocks for the next delivery.
func (q *Queue) Receive(ctx context.Context) (crawler.Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("receive canceled: %w", ctx.Err())
	case msg := <-q.deliveries:
		job, err := queue.ParseJob(msg.Data)
		return &delivery{msg: msg, job: job, parseErr: err}, nil
	}
}

// Close stops the receive loop and releases the client.
func (q *Queue) Close() error {
	if q.cancelRecv != nil {
		q.cancelRecv()
	}
	q.topic.Stop()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

type delivery struct {
	msg      *gcppubsub.Message
	job      crawler.CrawlJob
	parseErr error
}

func (d *delivery) Job() crawler.CrawlJob { return d.job }

func (d *delivery) Raw() []byte { return d.msg.Data }

func (d *delivery) Err() error { return d.parseErr }

func (d *delivery) Ack(_ context.Context) error {
	d.msg.Ack()
	return nil
}
