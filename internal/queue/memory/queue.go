// Package memory provides a queue implementation for local development
// and tests, with the same at-least-once contract as the real broker.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
	"github.com/kevinalyk/campaign-portal/internal/queue"
)

// Queue is a bounded in-memory queue. Received messages stay in-flight
// until acked; un-acked messages past the redelivery timeout become
// available again, mimicking broker visibility timeouts.
type Queue struct {
	ch              chan message
	redeliveryAfter time.Duration

	mu       sync.Mutex
	inFlight map[string]message
	closed   bool
}

type message struct {
	id   string
	body []byte
}

// NewQueue constructs a queue with the provided capacity. A zero
// redeliveryAfter disables automatic redelivery.
func NewQueue(capacity int, redeliveryAfter time.Duration) *Queue {
	return &Queue{
		ch:              make(chan message, capacity),
		redeliveryAfter: redeliveryAfter,
		inFlight:        make(map[string]message),
	}
}

// Enqueue pushes a job into the queue or returns if the context ends.
func (q *Queue) Enqueue(ctx context.Context, job crawler.CrawlJob) (string, error) {
	body, err := queue.EncodeJob(job)
	if err != nil {
		return "", err
	}
	msg := message{id: uuid.NewString(), body: body}
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- msg:
		return msg.id, nil
	}
}

// Receive pops the next message, respecting context cancellation. The
// message stays in-flight until its delivery is acked.
func (q *Queue) Receive(ctx context.Context) (crawler.Delivery, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("receive canceled: %w", ctx.Err())
	case msg, ok := <-q.ch:
		if !ok {
			return nil, fmt.Errorf("queue closed")
		}
		q.trackInFlight(msg)
		job, err := queue.ParseJob(msg.body)
		d := &delivery{queue: q, msg: msg, job: job, parseErr: err}
		return d, nil
	}
}

func (q *Queue) trackInFlight(msg message) {
	q.mu.Lock()
	q.inFlight[msg.id] = msg
	q.mu.Unlock()
	if q.redeliveryAfter <= 0 {
		return
	}
	go q.redeliver(msg.id)
}

// redeliver re-queues an un-acked message after each visibility timeout
// until it is acked or the queue closes. The send happens under the
// mutex so it is serialized with Close, and a full channel leaves the
// message in-flight for the next interval instead of dropping it.
func (q *Queue) redeliver(id string) {
	for {
		time.Sleep(q.redeliveryAfter)
		q.mu.Lock()
		pending, stillInFlight := q.inFlight[id]
		if !stillInFlight || q.closed {
			q.mu.Unlock()
			return
		}
		select {
		case q.ch <- pending:
			delete(q.inFlight, id)
			q.mu.Unlock()
			return
		default:
			q.mu.Unlock()
		}
	}
}

func (q *Queue) ack(id string) {
	q.mu.Lock()
	delete(q.inFlight, id)
	q.mu.Unlock()
}

// Close closes the underlying channel for shutdown.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

type delivery struct {
	queue    *Queue
	msg      message
	job      crawler.CrawlJob
	parseErr error
}

func (d *delivery) Job() crawler.CrawlJob { return d.job }

func (d *delivery) Raw() []byte { return d.msg.body }

// Err returns the parse error for malformed message bodies.
func (d *delivery) Err() error { return d.parseErr }

func (d *delivery) Ack(_ context.Context) error {
	d.queue.ack(d.msg.id)
	return nil
}
