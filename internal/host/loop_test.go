package host

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLoop_SyncRunsOnDrainingGoroutine delivers primary functions on the caller of Drain.
func TestLoop_SyncRunsOnDrainingGoroutine(t *testing.T) {
	t.Parallel()

	loop := NewLoop()
	defer loop.Stop()

	var (
		mu    sync.Mutex
		order []string
	)

	record := func(step string) {
		mu.Lock()
		defer mu.Unlock()

		order = append(order, step)
	}

	delivered := make(chan struct{})

	require.NoError(t, loop.RunAsync(context.Background(), func(context.Context) {
		record("background")

		loop.RunSync(func() {
			record("primary")
			close(delivered)
		})
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, loop.Drain(ctx))

	select {
	case <-delivered:
	default:
		t.Fatal("primary function was not run by Drain")
	}

	require.Equal(t, []string{"background", "primary"}, order)
	require.Zero(t, loop.Pending())
}

// TestLoop_BackgroundTasksRunOneAtATime never overlaps two background tasks.
func TestLoop_BackgroundTasksRunOneAtATime(t *testing.T) {
	t.Parallel()

	loop := NewLoop()
	defer loop.Stop()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		seen    []int
	)

	for index := 0; index < 10; index++ {
		index := index
		err := loop.RunAsync(context.Background(), func(context.Context) {
			mu.Lock()
			running++
			maxSeen = max(maxSeen, running)
			seen = append(seen, index)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
		})
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, loop.Drain(ctx))
	require.Equal(t, 1, maxSeen)
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

// TestLoop_RunStopsWithContext returns the context error.
func TestLoop_RunStopsWithContext(t *testing.T) {
	t.Parallel()

	loop := NewLoop()
	defer loop.Stop()

	ran := false

	loop.RunSync(func() { ran = true })

	ctx, cancel := context.WithCancel(context.Background())

	loop.RunSync(cancel)

	require.ErrorIs(t, loop.Run(ctx), context.Canceled)
	require.True(t, ran)
}

// TestLoop_Stop drops work submitted afterwards and reports it to RunAsync callers.
func TestLoop_Stop(t *testing.T) {
	t.Parallel()

	loop := NewLoop()
	loop.Stop()
	loop.Stop()

	loop.RunSync(func() { t.Error("must not run") })
	err := loop.RunAsync(context.Background(), func(context.Context) { t.Error("must not run") })
	require.ErrorIs(t, err, ErrLoopStopped)

	require.Zero(t, loop.Pending())
	require.NoError(t, loop.Drain(context.Background()))
	require.ErrorIs(t, loop.Run(context.Background()), ErrLoopStopped)
}
