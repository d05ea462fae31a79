package imagery

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/pkg/logger"
	"github.com/okian/roofline/pkg/metrics"
	"golang.org/x/sync/errgroup"
)

// Sampler defaults.
const (
	DefaultImageSize    = "640x640"
	DefaultFetchTimeout = 20 * time.Second
	DefaultRetryBackoff = 250 * time.Millisecond
)

// Sampler fetches one tile per zoom level concurrently. A failed zoom never
// aborts its siblings; transient failures are retried once.
type Sampler struct {
	provider TileProvider
	size     string
	mapType  string
	timeout  time.Duration
	backoff  time.Duration
	retries  int
	log      logger.Logger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithImageSize sets the requested tile size, e.g. "640x640".
func WithImageSize(size string) Option {
	return func(s *Sampler) {
		if size != "" {
			s.size = size
		}
	}
}

// WithFetchTimeout bounds each fetch attempt.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRetry sets how many times a transient failure is retried and the
// pause before each retry.
func WithRetry(retries int, backoff time.Duration) Option {
	return func(s *Sampler) {
		if retries >= 0 {
			s.retries = retries
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.log = l
		}
	}
}

// NewSampler constructs a Sampler over provider.
func NewSampler(provider TileProvider, opts ...Option) *Sampler {
	s := &Sampler{
		provider: provider,
		size:     DefaultImageSize,
		mapType:  MapTypeSatellite,
		timeout:  DefaultFetchTimeout,
		backoff:  DefaultRetryBackoff,
		retries:  1,
		log:      logger.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sample fetches every zoom level concurrently. The result has one entry per
// zoom, in input order.
func (s *Sampler) Sample(ctx context.Context, coord model.Coordinate, zooms []int) []model.ZoomImage {
	out := make([]model.ZoomImage, len(zooms))
	var g errgroup.Group
	for i, zoom := range zooms {
		i, zoom := i, zoom
		g.Go(func() error {
			data, err := s.Fetch(ctx, coord, zoom)
			out[i] = model.ZoomImage{Zoom: zoom, Data: data, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Fetch downloads one zoom level, retrying transient failures.
func (s *Sampler) Fetch(ctx context.Context, coord model.Coordinate, zoom int) ([]byte, error) {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			metrics.RecordZoomFetch(zoom, "retry")
			s.log.Debug(ctx, "retrying tile fetch", logger.Int("zoom", zoom), logger.Error(err))
			select {
			case <-ctx.Done():
				return nil, err
			case <-time.After(s.backoff):
			}
		}
		var data []byte
		data, err = s.fetchOnce(ctx, coord, zoom)
		if err == nil {
			metrics.RecordZoomFetch(zoom, "ok")
			return data, nil
		}
		if ctx.Err() != nil || !Transient(err) {
			break
		}
	}
	metrics.RecordZoomFetch(zoom, "error")
	metrics.RecordErrorByComponent("imagery", "fetch")
	return nil, err
}

func (s *Sampler) fetchOnce(ctx context.Context, coord model.Coordinate, zoom int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	start := time.Now()
	defer func() {
		metrics.RecordCollaboratorLatency("tiles", float64(time.Since(start).Milliseconds()))
	}()
	return s.provider.FetchImage(ctx, coord.Latitude, coord.Longitude, zoom, s.size, s.mapType)
}

// Transient classifies network errors, timeouts, 5xx and 429 as retryable.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
