// Package memory provides the in-process job queue.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/normattiva-catalog/internal/catalog"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan catalog.Job
	closeMu sync.RWMutex
	closed  bool
}

var _ catalog.Queue = (*Queue)(nil)

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	return &Queue{
		ch: make(chan catalog.Job, capacity),
	}
}

// Enqueue pushes a job into the queue or returns if the context ends.
// Enqueueing on a closed queue returns catalog.ErrQueueClosed.
func (q *Queue) Enqueue(ctx context.Context, job catalog.Job) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return catalog.ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case q.ch <- job:
		return nil
	}
}

// Dequeue pops the next job, respecting context cancellation. Once the queue
// is closed and drained it returns catalog.ErrQueueClosed.
func (q *Queue) Dequeue(ctx context.Context) (catalog.Job, error) {
	select {
	case <-ctx.Done():
		return catalog.Job{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case job, ok := <-q.ch:
		if !ok {
			return catalog.Job{}, catalog.ErrQueueClosed
		}
		return job, nil
	}
}

// Len reports the number of buffered jobs.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting jobs. Buffered jobs remain available to Dequeue.
func (q *Queue) Close() {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}
