package repository

import "time"

const defaultRetention = 24 * time.Hour

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithRetention sets how long finished jobs are kept.
func WithRetention(d time.Duration) Option {
	return func(s *MemoryStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}
