// Package queue defines the contract for enqueuing and consuming batch jobs.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/roofline/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 1000
)

// Task is a reference to a stored job waiting for a worker.
type Task struct {
	JobID      string
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a task to the queue.
	// Returns false if the queue is full or closed.
	Enqueue(ctx context.Context, t Task) bool

	// Dequeue returns the channel workers read from. It is closed with the queue.
	Dequeue(ctx context.Context) <-chan Task

	// Len returns the current number of queued tasks.
	Len(ctx context.Context) int

	// Cap returns the queue capacity.
	Cap() int

	// Close stops accepting tasks and closes the dequeue channel.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	tasks    chan Task
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.tasks = make(chan Task, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.observe()
	return q
}

func (q *InMemoryQueue) observe() {
	size := len(q.tasks)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}

// Enqueue adds a task to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Task) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}

	select {
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
	}

	select {
	case q.tasks <- t:
		metrics.RecordQueueEnqueue()
		q.observe()
		return true
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns the task channel. All workers share it.
func (q *InMemoryQueue) Dequeue(_ context.Context) <-chan Task {
	return q.tasks
}

// Len returns the current number of queued tasks.
func (q *InMemoryQueue) Len(_ context.Context) int {
	q.observe()
	return len(q.tasks)
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

// Close gracefully shuts down the queue. Tasks already queued stay readable.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.tasks)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
