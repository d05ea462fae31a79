// Package cache stores finished roof estimates in a fast in-process tier
// backed by an optional durable tier (file, sqlite or redis).
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/pkg/logger"
	"github.com/okian/roofline/pkg/metrics"
)

// DefaultTTL is how long an estimate stays fresh in every tier.
const DefaultTTL = 24 * time.Hour

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// Sentinel errors.
var (
	ErrUnknownBackend = errors.New("unknown cache backend")
	ErrCorruptEntry   = errors.New("corrupt cache entry")
)

// Durable is a persistent tier. Get reports a miss with ok=false and a nil
// error; expired entries are misses. storedAt is when the entry was written.
type Durable interface {
	Name() string
	Get(ctx context.Context, key string) (est model.RoofEstimate, storedAt time.Time, ok bool, err error)
	Set(ctx context.Context, key string, est model.RoofEstimate) error
	Close() error
}

// record is the persisted layout shared by the file and redis tiers.
type record struct {
	Timestamp int64              `json:"timestamp"`
	Result    model.RoofEstimate `json:"result"`
}

func encode(est model.RoofEstimate, now time.Time) ([]byte, error) {
	return json.Marshal(record{Timestamp: now.UnixMilli(), Result: est})
}

func fresh(storedMs int64, now time.Time, ttl time.Duration) bool {
	return now.Sub(time.UnixMilli(storedMs)) < ttl
}

// Tiered reads memory first, then the durable tier, populating memory on a
// durable hit with the entry's original timestamp. Writes go to both; durable failures are logged and swallowed.
type Tiered struct {
	memory  *Memory
	durable Durable
	log     logger.Logger
}

// TieredOption configures a Tiered cache.
type TieredOption func(*Tiered)

// WithLogger sets the logger used for swallowed durable failures.
func WithLogger(l logger.Logger) TieredOption {
	return func(t *Tiered) {
		if l != nil {
			t.log = l
		}
	}
}

// NewTiered combines a memory tier with an optional durable tier.
func NewTiered(memory *Memory, durable Durable, opts ...TieredOption) *Tiered {
	if memory == nil {
		memory = NewMemory()
	}
	t := &Tiered{memory: memory, durable: durable, log: logger.Noop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Get returns a copy of the cached estimate for key.
func (t *Tiered) Get(ctx context.Context, key string) (model.RoofEstimate, bool) {
	if est, ok := t.memory.Get(key); ok {
		metrics.RecordCacheLookup("memory", "hit")
		return est, true
	}
	metrics.RecordCacheLookup("memory", "miss")
	if t.durable == nil {
		return model.RoofEstimate{}, false
	}

	est, storedAt, ok, err := t.durable.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RecordCacheLookup(t.durable.Name(), "error")
		t.log.Warn(ctx, "durable cache read failed",
			logger.String("tier", t.durable.Name()), logger.String("key", key), logger.Error(err))
		return model.RoofEstimate{}, false
	case !ok:
		metrics.RecordCacheLookup(t.durable.Name(), "miss")
		return model.RoofEstimate{}, false
	}
	metrics.RecordCacheLookup(t.durable.Name(), "hit")
	// Keep the durable write time so the entry expires on its original clock.
	t.memory.SetAt(key, est, storedAt)
	return est.Clone(), true
}

// Set stores est in both tiers.
func (t *Tiered) Set(ctx context.Context, key string, est model.RoofEstimate) {
	t.memory.Set(key, est)
	if t.durable == nil {
		return
	}
	if err := t.durable.Set(ctx, key, est); err != nil {
		metrics.RecordCacheWriteError(t.durable.Name())
		t.log.Warn(ctx, "durable cache write failed",
			logger.String("tier", t.durable.Name()), logger.String("key", key), logger.Error(err))
	}
}

// Len is the number of live entries in the memory tier.
func (t *Tiered) Len() int { return t.memory.Len() }

// Close releases the durable tier.
func (t *Tiered) Close() error {
	if t.durable == nil {
		return nil
	}
	return t.durable.Close()
}
