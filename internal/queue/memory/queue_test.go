package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan catalog.Job, 1)
	errCh := make(chan error, 1)

	go func() {
		job, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- job
	}()

	require.NoError(t, q.Enqueue(context.Background(), catalog.Job{ID: "job-1"}))
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		assert.Equal(t, "job-1", got.ID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return job")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewQueue(1).Dequeue(ctx)
	require.EqualError(t, err, "dequeue canceled: context canceled")

	full := NewQueue(1)
	require.NoError(t, full.Enqueue(context.Background(), catalog.Job{ID: "primed"}))
	err = full.Enqueue(ctx, catalog.Job{})
	require.EqualError(t, err, "enqueue canceled: context canceled")
	assert.Equal(t, 1, full.Len())
}

func TestQueueCloseDrains(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	require.NoError(t, q.Enqueue(context.Background(), catalog.Job{ID: "a"}))
	q.Close()
	q.Close()

	require.ErrorIs(t, q.Enqueue(context.Background(), catalog.Job{ID: "b"}), catalog.ErrQueueClosed)

	job, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", job.ID)

	_, err = q.Dequeue(context.Background())
	require.ErrorIs(t, err, catalog.ErrQueueClosed)
}
