package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPolitenessDelay_Bounds(t *testing.T) {
	t.Parallel()

	minDelay := 100 * time.Millisecond
	maxDelay := 300 * time.Millisecond
	for i := 0; i < 100; i++ {
		d := politenessDelay(minDelay, maxDelay)
		require.GreaterOrEqual(t, d, minDelay)
		require.LessOrEqual(t, d, maxDelay)
	}
}

func TestPolitenessDelay_DegenerateRange(t *testing.T) {
	t.Parallel()

	require.Equal(t, time.Second, politenessDelay(time.Second, time.Second))
	require.Equal(t, time.Second, politenessDelay(time.Second, time.Millisecond))
}

func TestTimerPauseController_RespectsContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &timerPauseController{}
	start := time.Now()
	p.Pause(ctx, time.Minute)
	require.Less(t, time.Since(start), time.Second, "canceled context interrupts the pause")
}

func TestTimerPauseController_ZeroDelay(t *testing.T) {
	t.Parallel()

	p := &timerPauseController{}
	start := time.Now()
	p.Pause(context.Background(), 0)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
