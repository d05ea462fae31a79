// Package dedupe tracks job IDs so a resubmitted batch is accepted once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultMaxSize = 50000

// Deduper records seen job IDs to ensure at-most-once submission.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID so a submission rejected after recording
	// (queue backpressure) can be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// node is an entry in the insertion-ordered list.
type node struct {
	id         string
	prev, next *node
}

// inMemoryDeduper keeps IDs in a map plus a doubly linked list in insertion
// order. When bounded, the oldest ID is evicted first; every operation is O(1).
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*node
	head    *node // oldest
	tail    *node // newest
	maxSize int   // <= 0 means unbounded
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		seen:    make(map[string]*node),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SeenAndRecord implements Deduper.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.unlink(d.head)
	}

	n := &node{id: id, prev: d.tail}
	if d.tail != nil {
		d.tail.next = n
	} else {
		d.head = n
	}
	d.tail = n
	d.seen[id] = n
	d.size.Add(1)
	return false
}

// Unrecord implements Deduper.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.seen[id]; ok {
		d.unlink(n)
	}
}

// unlink removes n from the list and the map. Caller holds d.mu.
func (d *inMemoryDeduper) unlink(n *node) {
	if n == nil {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		d.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		d.tail = n.prev
	}
	delete(d.seen, n.id)
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
