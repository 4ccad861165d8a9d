package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kevinalyk/campaign-portal/internal/crawler"
)

func testJob() crawler.CrawlJob {
	return crawler.CrawlJob{
		WebsiteResourceID: "65a1b2c3d4e5f6a7b8c9d0e1",
		CampaignID:        "camp-1",
		URL:               "https://example.com",
		Timestamp:         time.Now().UTC(),
	}
}

func TestQueue_EnqueueReceiveAck(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, 0)
	defer q.Close()

	id, err := q.Enqueue(context.Background(), testJob())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	delivery, err := q.Receive(context.Background())
	require.NoError(t, err)
	require.NoError(t, delivery.Err())
	require.Equal(t, "https://example.com", delivery.Job().URL)
	require.NotEmpty(t, delivery.Raw())

	require.NoError(t, delivery.Ack(context.Background()))

	q.mu.Lock()
	inFlight := len(q.inFlight)
	q.mu.Unlock()
	require.Zero(t, inFlight)
}

func TestQueue_UnackedMessageRedelivered(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, 50*time.Millisecond)
	defer q.Close()

	_, err := q.Enqueue(context.Background(), testJob())
	require.NoError(t, err)

	first, err := q.Receive(context.Background())
	require.NoError(t, err)
	require.NoError(t, first.Err())
	// Simulate a crash: never ack.

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	second, err := q.Receive(ctx)
	require.NoError(t, err, "un-acked message must come back")
	require.Equal(t, first.Job().WebsiteResourceID, second.Job().WebsiteResourceID)
}

func TestQueue_AckedMessageNotRedelivered(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, 50*time.Millisecond)
	defer q.Close()

	_, err := q.Enqueue(context.Background(), testJob())
	require.NoError(t, err)

	delivery, err := q.Receive(context.Background())
	require.NoError(t, err)
	require.NoError(t, delivery.Ack(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = q.Receive(ctx)
	require.Error(t, err, "acked message must stay gone")
}

func TestQueue_MalformedMessageSurfacedViaErr(t *testing.T) {
	t.Parallel()

	q := NewQueue(4, 0)
	defer q.Close()

	// Bypass EncodeJob to inject a corrupt body.
	q.ch <- message{id: "bad-1", body: []byte("not json")}

	delivery, err := q.Receive(context.Background())
	require.NoError(t, err)
	require.Error(t, delivery.Err())
	require.Equal(t, []byte("not json"), delivery.Raw())
	require.NoError(t, delivery.Ack(context.Background()), "malformed messages are acked and dropped")
}

func TestQueue_ReceiveHonorsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, 0)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := q.Receive(ctx)
	require.Error(t, err)
}

func TestQueue_RedeliveryRetriesWhenChannelFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, 30*time.Millisecond)
	defer q.Close()

	first := testJob()
	_, err := q.Enqueue(context.Background(), first)
	require.NoError(t, err)

	held, err := q.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, first.URL, held.Job().URL)
	// Never acked; meanwhile a second message fills the channel so the
	// redelivery timer cannot re-queue immediately.

	second := testJob()
	second.WebsiteResourceID = "65a1b2c3d4e5f6a7b8c9d0e2"
	_, err = q.Enqueue(context.Background(), second)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	got, err := q.Receive(context.Background())
	require.NoError(t, err)
	require.Equal(t, second.WebsiteResourceID, got.Job().WebsiteResourceID)
	require.NoError(t, got.Ack(context.Background()))

	// With the channel drained the held message must come back rather
	// than having been dropped.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	redelivered, err := q.Receive(ctx)
	require.NoError(t, err)
	require.Equal(t, first.WebsiteResourceID, redelivered.Job().WebsiteResourceID)
}

func TestQueue_CloseDuringRedeliveryWindow(t *testing.T) {
	t.Parallel()

	q := NewQueue(1, 20*time.Millisecond)

	_, err := q.Enqueue(context.Background(), testJob())
	require.NoError(t, err)

	_, err = q.Receive(context.Background())
	require.NoError(t, err)

	q.Close()
	// Let the redelivery timer fire against the closed queue; it must
	// observe closed under the lock and exit instead of sending.
	time.Sleep(50 * time.Millisecond)
}
