package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/roofline/internal/domain/model"
)

// File keeps one JSON document per key in a directory. File names are the
// SHA-256 of the key so arbitrary keys are safe on disk.
type File struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// NewFile creates dir when needed.
func NewFile(dir string, ttl time.Duration) (*File, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &File{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Name implements Durable.
func (f *File) Name() string { return BackendFile }

func (f *File) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(sum[:])+".json")
}

// Get implements Durable.
func (f *File) Get(_ context.Context, key string) (model.RoofEstimate, time.Time, bool, error) {
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return model.RoofEstimate{}, time.Time{}, false, nil
	}
	if err != nil {
		return model.RoofEstimate{}, time.Time{}, false, fmt.Errorf("read cache file: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.RoofEstimate{}, time.Time{}, false, fmt.Errorf("%w: %v", ErrCorruptEntry, err)
	}
	if !fresh(rec.Timestamp, f.now(), f.ttl) {
		return model.RoofEstimate{}, time.Time{}, false, nil
	}
	return rec.Result, time.UnixMilli(rec.Timestamp), true, nil
}

// Set implements Durable with a temp file and rename.
func (f *File) Set(_ context.Context, key string, est model.RoofEstimate) error {
	data, err := encode(est, f.now())
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	tmp, err := os.CreateTemp(f.dir, ".roof-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}

// Close implements Durable.
func (f *File) Close() error { return nil }
