// Package config defines service configuration structures and loading hooks.
//
// Conventions:
//   - New(ctx) builds a Config with defaults; Load layers file and env on top.
//   - Nested sections map to env vars with a double underscore,
//     e.g. ROOFLINE_CACHE__BACKEND -> cache.backend.
package config

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// Imagery configures the static-maps style tile provider.
type Imagery struct {
	BaseURL      string        `koanf:"base_url"`
	APIKey       string        `koanf:"api_key"`
	Timeout      time.Duration `koanf:"timeout"`
	RetryBackoff time.Duration `koanf:"retry_backoff"`
}

// Vision configures the vision model endpoint.
type Vision struct {
	BaseURL   string        `koanf:"base_url"`
	APIKey    string        `koanf:"api_key"`
	Model     string        `koanf:"model"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxTokens int           `koanf:"max_tokens"`
}

// Endpoint configures a plain keyed HTTP collaborator.
type Endpoint struct {
	BaseURL string        `koanf:"base_url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// Cache configures the durable cache tier.
type Cache struct {
	// Backend is one of file, sqlite, redis, none.
	Backend       string        `koanf:"backend"`
	TTL           time.Duration `koanf:"ttl"`
	Dir           string        `koanf:"dir"`
	SQLitePath    string        `koanf:"sqlite_path"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisDB       int           `koanf:"redis_db"`
	RedisPassword string        `koanf:"redis_password"`
}

// Jobs configures batch estimation.
type Jobs struct {
	QueueSize   int `koanf:"queue_size"`
	WorkerCount int `koanf:"worker_count"`
	DedupeSize  int `koanf:"dedupe_size"`
	MaxItems    int `koanf:"max_items"`
}

// Tracing configures OpenTelemetry export.
type Tracing struct {
	Enabled bool `koanf:"enabled"`
	// Exporter is stdout or otlp.
	Exporter    string  `koanf:"exporter"`
	Endpoint    string  `koanf:"endpoint"`
	ServiceName string  `koanf:"service_name"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// ZoomLevels are sampled for every reconciliation, most detailed first.
	ZoomLevels []int `koanf:"zoom_levels"`
	// ImageSize is the requested tile size, WIDTHxHEIGHT.
	ImageSize string `koanf:"image_size"`
	// RequestTimeout bounds one reconciliation.
	RequestTimeout time.Duration `koanf:"request_timeout"`
	// ShortCircuitHigh stops remaining analyses once a high-confidence result exists.
	ShortCircuitHigh bool `koanf:"short_circuit_high"`

	Imagery      Imagery  `koanf:"imagery"`
	Vision       Vision   `koanf:"vision"`
	Geocoder     Endpoint `koanf:"geocoder"`
	PropertyData Endpoint `koanf:"property_data"`
	Cache        Cache    `koanf:"cache"`
	Jobs         Jobs     `koanf:"jobs"`
	Tracing      Tracing  `koanf:"tracing"`
}

// New creates a Config with defaults. Context is accepted first to match
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		ZoomLevels:       []int{21, 20, 19},
		ImageSize:        "640x640",
		RequestTimeout:   45 * time.Second,
		ShortCircuitHigh: true,
		Imagery: Imagery{
			BaseURL:      "https://maps.googleapis.com/maps/api/staticmap",
			Timeout:      20 * time.Second,
			RetryBackoff: 250 * time.Millisecond,
		},
		Vision: Vision{
			Timeout:   30 * time.Second,
			Model:     "vision-large",
			MaxTokens: 1024,
		},
		Geocoder: Endpoint{
			BaseURL: "https://maps.googleapis.com/maps/api/geocode/json",
			Timeout: 10 * time.Second,
		},
		PropertyData: Endpoint{
			Timeout: 10 * time.Second,
		},
		Cache: Cache{
			Backend:    "file",
			TTL:        24 * time.Hour,
			Dir:        ".roofline-cache",
			SQLitePath: "roofline-cache.db",
			RedisAddr:  "localhost:6379",
		},
		Jobs: Jobs{
			QueueSize:   1000,
			WorkerCount: runtime.NumCPU(),
			DedupeSize:  50_000,
			MaxItems:    500,
		},
		Tracing: Tracing{
			Exporter:    "stdout",
			Endpoint:    "localhost:4317",
			ServiceName: "roofline",
			SampleRatio: 1.0,
		},
	}
}

var cacheBackends = map[string]bool{"file": true, "sqlite": true, "redis": true, "none": true}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case len(c.ZoomLevels) == 0:
		return fmt.Errorf("%w: zoom_levels must not be empty", ErrInvalidConfig)
	case !cacheBackends[c.Cache.Backend]:
		return fmt.Errorf("%w: unknown cache backend %q", ErrInvalidConfig, c.Cache.Backend)
	case c.Cache.TTL <= 0:
		return fmt.Errorf("%w: cache ttl must be positive", ErrInvalidConfig)
	case c.RequestTimeout <= 0:
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	case c.Tracing.Enabled && c.Tracing.Exporter != "stdout" && c.Tracing.Exporter != "otlp":
		return fmt.Errorf("%w: unknown tracing exporter %q", ErrInvalidConfig, c.Tracing.Exporter)
	}
	for _, z := range c.ZoomLevels {
		if z < 0 || z > 22 {
			return fmt.Errorf("%w: zoom level %d out of range", ErrInvalidConfig, z)
		}
	}
	return nil
}

// MissingCredentials lists the API keys that are required but empty.
func (c *Config) MissingCredentials() []string {
	var missing []string
	if c.Imagery.APIKey == "" {
		missing = append(missing, "imagery.api_key")
	}
	if c.Vision.APIKey == "" {
		missing = append(missing, "vision.api_key")
	}
	if c.Vision.BaseURL == "" {
		missing = append(missing, "vision.base_url")
	}
	return missing
}
