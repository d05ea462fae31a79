package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver
	"github.com/okian/roofline/internal/domain/model"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS roof_cache (
	key       TEXT PRIMARY KEY,
	stored_at INTEGER NOT NULL,
	result    BLOB NOT NULL
)`

// SQLite keeps entries in a single table. Expiry is decided on stored_at
// before the result is decoded.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLite opens or creates the database at path.
func NewSQLite(path string, ttl time.Duration) (*SQLite, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		sqliteSchema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite setup %q: %w", stmt, err)
		}
	}
	return &SQLite{db: db, ttl: ttl, now: time.Now}, nil
}

// Name implements Durable.
func (s *SQLite) Name() string { return BackendSQLite }

// Get implements Durable.
func (s *SQLite) Get(ctx context.Context, key string) (model.RoofEstimate, time.Time, bool, error) {
	var (
		storedAt int64
		blob     []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT stored_at, result FROM roof_cache WHERE key = ?`, key).Scan(&storedAt, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RoofEstimate{}, time.Time{}, false, nil
	}
	if err != nil {
		return model.RoofEstimate{}, time.Time{}, false, fmt.Errorf("query roof_cache: %w", err)
	}
	if !fresh(storedAt, s.now(), s.ttl) {
		return model.RoofEstimate{}, time.Time{}, false, nil
	}
	var est model.RoofEstimate
	if err := json.Unmarshal(blob, &est); err != nil {
		return model.RoofEstimate{}, time.Time{}, false, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	return est, time.UnixMilli(storedAt), true, nil
}

// Set implements Durable, replacing any existing row.
func (s *SQLite) Set(ctx context.Context, key string, est model.RoofEstimate) error {
	blob, err := json.Marshal(est)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO roof_cache (key, stored_at, result) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET stored_at = excluded.stored_at, result = excluded.result`,
		key, s.now().UnixMilli(), blob)
	if err != nil {
		return fmt.Errorf("upsert roof_cache: %w", err)
	}
	return nil
}

// Close implements Durable.
func (s *SQLite) Close() error { return s.db.Close() }
