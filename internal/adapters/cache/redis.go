package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/roofline/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

// RedisPrefix namespaces every key this service writes.
const RedisPrefix = "roofline:"

// RedisConfig addresses a redis server.
type RedisConfig struct {
	Addr     string
	DB       int
	Password string
}

// Redis stores JSON records with a server-side TTL and checks the stored
// timestamp again on read.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig, ttl time.Duration) (*Redis, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		DB:       cfg.DB,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client, ttl: ttl, now: time.Now}, nil
}

// Name implements Durable.
func (r *Redis) Name() string { return BackendRedis }

// Get implements Durable.
func (r *Redis) Get(ctx context.Context, key string) (model.RoofEstimate, time.Time, bool, error) {
	data, err := r.client.Get(ctx, RedisPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.RoofEstimate{}, time.Time{}, false, nil
	}
	if err != nil {
		return model.RoofEstimate{}, time.Time{}, false, fmt.Errorf("redis get: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.RoofEstimate{}, time.Time{}, false, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if !fresh(rec.Timestamp, r.now(), r.ttl) {
		return model.RoofEstimate{}, time.Time{}, false, nil
	}
	return rec.Result, time.UnixMilli(rec.Timestamp), true, nil
}

// Set implements Durable.
func (r *Redis) Set(ctx context.Context, key string, est model.RoofEstimate) error {
	data, err := encode(est, r.now())
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, RedisPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close implements Durable.
func (r *Redis) Close() error { return r.client.Close() }
