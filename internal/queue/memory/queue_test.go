package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/borsa-crawler/internal/queue"
	"github.com/JakeFAU/borsa-crawler/internal/runner"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan queue.Item, 1)
	go func() {
		item, err := q.Dequeue(context.Background())
		if err == nil {
			result <- item
		}
	}()

	require.NoError(t, q.Enqueue(context.Background(), queue.Item{RunID: "run-1", Kind: runner.KindShares}))
	select {
	case got := <-result:
		require.Equal(t, "run-1", got.RunID)
		require.Equal(t, runner.KindShares, got.Kind)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return the item")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewQueue(1).Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	full := NewQueue(1)
	require.NoError(t, full.Enqueue(context.Background(), queue.Item{RunID: "primed"}))
	require.Equal(t, 1, full.Len())
	err = full.Enqueue(ctx, queue.Item{})
	require.EqualError(t, err, "enqueue canceled: context canceled")
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	require.NoError(t, q.Enqueue(context.Background(), queue.Item{RunID: "waiting"}))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Enqueue(context.Background(), queue.Item{}), queue.ErrClosed)
	item, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "waiting", item.RunID)
	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, queue.ErrClosed)
}
