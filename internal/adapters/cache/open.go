package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/roofline/pkg/logger"
)

// Settings selects and configures the durable tier.
type Settings struct {
	Backend    string
	TTL        time.Duration
	Dir        string
	SQLitePath string
	Redis      RedisConfig
}

// Open builds the tiered cache for the configured backend.
func Open(ctx context.Context, s Settings, log logger.Logger) (*Tiered, error) {
	if s.TTL <= 0 {
		s.TTL = DefaultTTL
	}
	var (
		durable Durable
		err     error
	)
	switch s.Backend {
	case BackendFile, "":
		durable, err = NewFile(s.Dir, s.TTL)
	case BackendSQLite:
		durable, err = NewSQLite(s.SQLitePath, s.TTL)
	case BackendRedis:
		durable, err = NewRedis(ctx, s.Redis, s.TTL)
	case BackendNone:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, s.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", s.Backend, err)
	}
	return NewTiered(NewMemory(WithTTL(s.TTL)), durable, WithLogger(log)), nil
}
