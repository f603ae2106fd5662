package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "first"))
	require.NoError(t, q.Enqueue(ctx, "second"))
	require.NoError(t, q.Enqueue(ctx, "third"))

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, length)

	items, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []any{"first", "second", "third"}, items)
}

func TestMemoryQueue_DequeueRespectsMaxItems(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(ctx, i))
	}

	items, err := q.Dequeue(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, items, 2)

	length, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, length)
}

func TestMemoryQueue_DequeueBlocksUntilItem(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	ctx := context.Background()

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = q.Enqueue(ctx, "late")
	}()

	items, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []any{"late"}, items)
}

func TestMemoryQueue_DequeueWithTimeout(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	ctx := context.Background()

	start := time.Now()
	items, err := q.DequeueWithTimeout(ctx, 10, 50*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	require.NoError(t, q.Enqueue(ctx, "item"))
	items, err = q.DequeueWithTimeout(ctx, 10, time.Second)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestMemoryQueue_DequeueCancelled(t *testing.T) {
	q := NewMemoryQueue(nil)
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx, 1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryQueue_Closed(t *testing.T) {
	q := NewMemoryQueue(nil)
	require.NoError(t, q.Close())

	ctx := context.Background()
	assert.ErrorIs(t, q.Enqueue(ctx, "x"), ErrQueueClosed)

	_, err := q.Dequeue(ctx, 1)
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, err = q.Length(ctx)
	assert.ErrorIs(t, err, ErrQueueClosed)

	// Closing twice is fine
	assert.NoError(t, q.Close())
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	defer dlq.Close()

	ctx := context.Background()

	require.NoError(t, dlq.Add(ctx, "payload-1", errors.New("webhook returned 500")))
	require.NoError(t, dlq.Add(ctx, "payload-2", errors.New("timeout")))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "payload-1", items[0].Item)
	assert.Equal(t, "webhook returned 500", items[0].Error)
	assert.NotEmpty(t, items[0].ID)
	assert.NotEqual(t, items[0].ID, items[1].ID)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))

	items, err = dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "payload-2", items[0].Item)

	assert.ErrorIs(t, dlq.Remove(ctx, "missing"), ErrItemNotFound)
}

func TestMemoryDeadLetterQueue_ListLimit(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue()
	defer dlq.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, dlq.Add(ctx, i, errors.New("fail")))
	}

	items, err := dlq.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}
