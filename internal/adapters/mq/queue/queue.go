// Package queue defines a bounded in-memory job queue.
//
// Enqueue never blocks: a full or closed queue refuses the job and the caller
// decides whether to retry.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/tally/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 10000
	defaultName          = "jobs"
	putRetryDelay        = time.Millisecond
)

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue adds a job to the queue.
	// Returns false if the queue is full or closed and the job was not enqueued.
	Enqueue(ctx context.Context, job T) bool

	// Dequeue returns a channel that will receive jobs as they become available.
	// The channel will be closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan T

	// Len returns the current number of queued jobs.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	jobs     chan T
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	cfg := settings{capacity: defaultQueueCapacity, name: defaultName}
	for _, opt := range opts {
		opt(&cfg)
	}

	q := &InMemoryQueue[T]{
		jobs:     make(chan T, cfg.capacity),
		capacity: cfg.capacity,
		name:     cfg.name,
	}
	metrics.UpdateQueueDepth(q.name, 0)
	return q
}

// Enqueue adds a job to the queue.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, job T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueRejected(q.name, "closed")
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordQueueRejected(q.name, "context_cancelled")
		return false
	default:
	}

	select {
	case q.jobs <- job:
		metrics.UpdateQueueDepth(q.name, len(q.jobs))
		return true
	default:
		metrics.RecordQueueRejected(q.name, "full")
		return false
	}
}

// Put enqueues job, waiting while the queue is full. It fails with ErrClosed
// once the queue is closed or with the context error once ctx is done.
func (q *InMemoryQueue[T]) Put(ctx context.Context, job T) error {
	for !q.Enqueue(ctx, job) {
		if q.IsClosed() {
			return ErrClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(putRetryDelay):
		}
	}
	return nil
}

// Dequeue returns a channel that will receive jobs as they become available.
// Every call starts a forwarder; consumers share the underlying jobs.
func (q *InMemoryQueue[T]) Dequeue(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for job := range q.jobs {
			select {
			case out <- job:
				metrics.UpdateQueueDepth(q.name, len(q.jobs))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue[T]) Len(_ context.Context) int {
	return len(q.jobs)
}

// Capacity returns the maximum number of queued jobs.
func (q *InMemoryQueue[T]) Capacity() int {
	return q.capacity
}

// Close gracefully shuts down the queue. Jobs already queued are still
// delivered.
func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
