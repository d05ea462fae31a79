package cache

import (
	"sync"
	"time"

	"github.com/okian/roofline/internal/domain/model"
)

type memEntry struct {
	est      model.RoofEstimate
	storedAt time.Time
}

// Memory is an in-process TTL map safe for concurrent use. Expired entries
// are dropped lazily on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	ttl     time.Duration
	now     func() time.Time
}

// MemoryOption configures a Memory tier.
type MemoryOption func(*Memory)

// WithTTL sets the freshness window.
func WithTTL(ttl time.Duration) MemoryOption {
	return func(m *Memory) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty memory tier.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries: make(map[string]memEntry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns a copy of the entry when present and fresh.
func (m *Memory) Get(key string) (model.RoofEstimate, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return model.RoofEstimate{}, false
	}
	if m.now().Sub(e.storedAt) >= m.ttl {
		m.mu.Lock()
		// A concurrent Set may have refreshed it.
		if cur, still := m.entries[key]; still && cur.storedAt.Equal(e.storedAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return model.RoofEstimate{}, false
	}
	return e.est.Clone(), true
}

// Set replaces the entry for key.
func (m *Memory) Set(key string, est model.RoofEstimate) {
	m.SetAt(key, est, m.now())
}

// SetAt replaces the entry for key as if it had been written at storedAt.
// A zero storedAt means now.
func (m *Memory) SetAt(key string, est model.RoofEstimate, storedAt time.Time) {
	if storedAt.IsZero() {
		storedAt = m.now()
	}
	m.mu.Lock()
	m.entries[key] = memEntry{est: est.Clone(), storedAt: storedAt}
	m.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet read.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
