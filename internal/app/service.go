// Package service assembles the roof estimation service from its adapters
// and implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/roofline/internal/adapters/cache"
	"github.com/okian/roofline/internal/adapters/geocode"
	"github.com/okian/roofline/internal/adapters/imagery"
	"github.com/okian/roofline/internal/adapters/mq/queue"
	"github.com/okian/roofline/internal/adapters/mq/worker"
	"github.com/okian/roofline/internal/adapters/propertydata"
	"github.com/okian/roofline/internal/adapters/repository"
	"github.com/okian/roofline/internal/adapters/vision"
	"github.com/okian/roofline/internal/config"
	"github.com/okian/roofline/internal/domain/dedupe"
	"github.com/okian/roofline/internal/domain/job"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
	"github.com/okian/roofline/internal/domain/reconcile"
	"github.com/okian/roofline/pkg/logger"
	"github.com/okian/roofline/pkg/metrics"
)

const shutdownTimeout = 30 * time.Second

// AddressEstimate is the result of estimating by street address.
type AddressEstimate struct {
	Address  geocode.Result     `json:"address"`
	Property *property.Record   `json:"property,omitempty"`
	Estimate model.RoofEstimate `json:"estimate"`
}

// Service implements the API dependencies for roof estimation.
type Service struct {
	mu  sync.RWMutex
	cfg *config.Config

	// Collaborators; injected ones win over the config-built defaults.
	sampler    reconcile.Sampler
	analyzer   reconcile.Analyzer
	geocoder   geocode.Geocoder
	properties propertydata.Provider
	cache      reconcile.Cache

	// Built on Start.
	orchestrator *reconcile.Orchestrator
	tiered       *cache.Tiered
	jobs         repository.Store
	deduper      dedupe.Deduper
	queue        queue.Queue
	pool         *worker.Pool

	started bool
	now     func() time.Time
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSampler replaces the imagery sampler.
func WithSampler(sm reconcile.Sampler) Option {
	return func(s *Service) { s.sampler = sm }
}

// WithAnalyzer replaces the vision analyzer.
func WithAnalyzer(a reconcile.Analyzer) Option {
	return func(s *Service) { s.analyzer = a }
}

// WithGeocoder replaces the geocoder.
func WithGeocoder(g geocode.Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithPropertyProvider replaces the property records provider.
func WithPropertyProvider(p propertydata.Provider) Option {
	return func(s *Service) { s.properties = p }
}

// WithCache replaces the tiered cache built from config.
func WithCache(c reconcile.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClock replaces time.Now for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service. Nothing is dialled until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New(context.Background())
	}
	s := &Service{
		cfg: cfg,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the collaborators, the cache and the batch pipeline. It
// fails fast with ErrMissingCredentials when a required collaborator has
// no credentials and was not injected.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting roofline service...")

	if err := s.buildCollaborators(); err != nil {
		return err
	}

	if s.cache == nil {
		tiered, err := cache.Open(ctx, cache.Settings{
			Backend:    s.cfg.Cache.Backend,
			TTL:        s.cfg.Cache.TTL,
			Dir:        s.cfg.Cache.Dir,
			SQLitePath: s.cfg.Cache.SQLitePath,
			Redis: cache.RedisConfig{
				Addr:     s.cfg.Cache.RedisAddr,
				DB:       s.cfg.Cache.RedisDB,
				Password: s.cfg.Cache.RedisPassword,
			},
		}, s.logger.Named("cache"))
		if err != nil {
			return fmt.Errorf("open cache: %w", err)
		}
		s.tiered = tiered
		s.cache = tiered
	}

	s.orchestrator = reconcile.New(s.sampler, s.analyzer,
		reconcile.WithCache(s.cache),
		reconcile.WithZoomLevels(s.cfg.ZoomLevels),
		reconcile.WithRequestTimeout(s.cfg.RequestTimeout),
		reconcile.WithShortCircuit(s.cfg.ShortCircuitHigh),
		reconcile.WithLogger(s.logger.Named("reconcile")),
	)

	s.jobs = repository.NewMemoryStore()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.Jobs.DedupeSize))
	q := queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.Jobs.QueueSize))
	s.queue = q
	s.pool = worker.NewPool(s.cfg.Jobs.WorkerCount, q, s.orchestrator, s.jobs)
	// Workers outlive the start request.
	s.pool.Start(context.WithoutCancel(ctx))

	s.started = true
	s.logger.Info(ctx, "roofline service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", q.Cap()),
		logger.String("cache", s.cfg.Cache.Backend),
		logger.Bool("geocoder", s.geocoder != nil),
		logger.Bool("propertyData", s.properties != nil),
	)
	return nil
}

func (s *Service) buildCollaborators() error {
	if s.sampler == nil || s.analyzer == nil {
		if missing := s.cfg.MissingCredentials(); len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
		}
	}
	if s.sampler == nil {
		tiles := imagery.NewClient(s.cfg.Imagery.BaseURL, s.cfg.Imagery.APIKey)
		s.sampler = imagery.NewSampler(tiles,
			imagery.WithImageSize(s.cfg.ImageSize),
			imagery.WithFetchTimeout(s.cfg.Imagery.Timeout),
			imagery.WithRetry(1, s.cfg.Imagery.RetryBackoff),
			imagery.WithLogger(s.logger.Named("imagery")),
		)
	}
	if s.analyzer == nil {
		client := vision.NewHTTPClient(s.cfg.Vision.BaseURL, s.cfg.Vision.APIKey,
			vision.WithModel(s.cfg.Vision.Model),
			vision.WithMaxTokens(s.cfg.Vision.MaxTokens),
		)
		s.analyzer = vision.NewAnalyzer(client,
			vision.WithTimeout(s.cfg.Vision.Timeout),
			vision.WithLogger(s.logger.Named("vision")),
		)
	}
	// Address lookups are optional features.
	if s.geocoder == nil && s.cfg.Geocoder.APIKey != "" {
		s.geocoder = geocode.NewClient(s.cfg.Geocoder.BaseURL, s.cfg.Geocoder.APIKey,
			geocode.WithTimeout(s.cfg.Geocoder.Timeout))
	}
	if s.properties == nil && s.cfg.PropertyData.BaseURL != "" {
		s.properties = propertydata.NewClient(s.cfg.PropertyData.BaseURL, s.cfg.PropertyData.APIKey,
			propertydata.WithTimeout(s.cfg.PropertyData.Timeout))
	}
	return nil
}

// Stop drains the batch pipeline and releases the cache.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping roofline service...")

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.pool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	if s.tiered != nil {
		if err := s.tiered.Close(); err != nil {
			s.logger.Warn(ctx, "cache close failed", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "roofline service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Estimate reconciles one location.
func (s *Service) Estimate(ctx context.Context, req reconcile.Request) (model.RoofEstimate, error) {
	if err := s.ready(); err != nil {
		return model.RoofEstimate{}, err
	}
	return s.orchestrator.Estimate(ctx, req)
}

// EstimateByAddress geocodes the address, looks up property records when
// none were supplied and reconciles the result. A failed property lookup
// degrades to estimating without records.
func (s *Service) EstimateByAddress(ctx context.Context, address string, rec *property.Record) (AddressEstimate, error) {
	if err := s.ready(); err != nil {
		return AddressEstimate{}, err
	}
	if s.geocoder == nil {
		return AddressEstimate{}, ErrGeocoderUnavailable
	}

	loc, err := s.geocoder.Geocode(ctx, address)
	if err != nil {
		return AddressEstimate{}, fmt.Errorf("geocode: %w", err)
	}

	if rec == nil && s.properties != nil {
		found, lerr := s.properties.Lookup(ctx, loc.FormattedAddress)
		switch {
		case lerr != nil:
			metrics.RecordErrorByComponent("service", "property_lookup")
			s.logger.Warn(ctx, "property lookup failed; estimating without records",
				logger.String("address", loc.FormattedAddress), logger.Error(lerr))
		default:
			rec = found
		}
	}

	est, err := s.orchestrator.Estimate(ctx, reconcile.Request{Coordinate: loc.Coordinate, Property: rec})
	if err != nil {
		return AddressEstimate{}, err
	}
	return AddressEstimate{Address: loc, Property: rec, Estimate: est}, nil
}

// SubmitJob stores and queues a batch. A repeated job ID returns the
// existing job with duplicate=true. An empty ID gets a fresh UUID.
func (s *Service) SubmitJob(ctx context.Context, id string, items []job.Item) (j job.Job, duplicate bool, err error) {
	if err := s.ready(); err != nil {
		return job.Job{}, false, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}

	j, err = job.New(id, items, s.cfg.Jobs.MaxItems, s.now())
	if err != nil {
		return job.Job{}, false, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}

	if s.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordJobDuplicate()
		existing, gerr := s.jobs.Get(ctx, id)
		if gerr != nil {
			// Evicted from the store but still remembered.
			existing = job.Job{ID: id, Status: job.StatusDone}
		}
		return existing, true, nil
	}

	if err := s.jobs.Create(ctx, j); err != nil {
		if errors.Is(err, repository.ErrExists) {
			metrics.RecordJobDuplicate()
			existing, _ := s.jobs.Get(ctx, id)
			return existing, true, nil
		}
		s.deduper.Unrecord(ctx, id)
		return job.Job{}, false, fmt.Errorf("store job: %w", err)
	}

	if !s.queue.Enqueue(ctx, queue.Task{JobID: id, EnqueuedAt: s.now()}) {
		s.jobs.Delete(ctx, id)
		s.deduper.Unrecord(ctx, id)
		return job.Job{}, false, ErrBackpressure
	}
	metrics.RecordJob(string(job.StatusQueued))
	s.logger.Debug(ctx, "job queued", logger.String("job_id", id), logger.Int("items", len(items)))
	return j, false, nil
}

// Job returns a job by ID; repository.ErrNotFound when unknown.
func (s *Service) Job(ctx context.Context, id string) (job.Job, error) {
	if err := s.ready(); err != nil {
		return job.Job{}, err
	}
	return s.jobs.Get(ctx, id)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":        s.started,
		"zoomLevels":     s.cfg.ZoomLevels,
		"cacheBackend":   s.cfg.Cache.Backend,
		"requestTimeout": s.cfg.RequestTimeout.String(),
	}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	queueLen := s.queue.Len(ctx)
	stats["workerCount"] = s.pool.Size()
	stats["queueLength"] = queueLen
	stats["queueCapacity"] = s.queue.Cap()
	stats["dedupeSize"] = s.deduper.Size()
	jobs := make(map[string]int)
	for status, n := range s.jobs.Counts(ctx) {
		jobs[string(status)] = n
	}
	stats["jobs"] = jobs
	if s.tiered != nil {
		stats["cacheEntries"] = s.tiered.Len()
	}

	metrics.UpdateQueueSize(queueLen)
	metrics.UpdateWorkerCount(s.pool.Size())
	return stats
}
