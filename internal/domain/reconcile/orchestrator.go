// Package reconcile merges satellite, vision and property-record estimates
// into one bounded roof area.
package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/roofline/internal/domain/geometry"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
	"github.com/okian/roofline/pkg/logger"
	"github.com/okian/roofline/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// State is a step of a reconciliation.
type State string

// Reconciliation states.
const (
	StateCacheLookup State = "cache_lookup"
	StateSampling    State = "sampling"
	StateAnalyzing   State = "analyzing"
	StateSelecting   State = "selecting"
	StateAdjusting   State = "adjusting"
	StateValidating  State = "validating"
	StateFallback    State = "fallback"
	StateCacheWrite  State = "cache_write"
	StateDone        State = "done"
)

// Sampler fetches satellite images at several zoom levels. Results are in
// zoom order and every zoom gets an entry.
type Sampler interface {
	Sample(ctx context.Context, coord model.Coordinate, zooms []int) []model.ZoomImage
}

// Analyzer reads a roof out of one satellite image.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, coord model.Coordinate, propertySummary string) (model.Analysis, error)
}

// Cache stores finished reconciliations. Implementations are best-effort.
type Cache interface {
	Get(ctx context.Context, key string) (model.RoofEstimate, bool)
	Set(ctx context.Context, key string, est model.RoofEstimate)
}

// Request is one estimation request.
type Request struct {
	Coordinate model.Coordinate
	Property   *property.Record
	// ManualAreaSqFt, when positive, is taken as authoritative.
	ManualAreaSqFt float64
}

// Orchestrator runs the reconciliation state machine.
type Orchestrator struct {
	sampler        Sampler
	analyzer       Analyzer
	cache          Cache
	zooms          []int
	requestTimeout time.Duration
	shortCircuit   bool
	fallbacks      []Attempt
	log            logger.Logger
	tracer         trace.Tracer
	observe        func(State)
}

// New constructs an Orchestrator. Without a cache every request reconciles.
func New(sampler Sampler, analyzer Analyzer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sampler:        sampler,
		analyzer:       analyzer,
		cache:          noCache{},
		zooms:          append([]int(nil), DefaultZoomLevels...),
		requestTimeout: DefaultRequestTimeout,
		shortCircuit:   true,
		fallbacks:      DefaultFallbacks(),
		log:            logger.Noop(),
		tracer:         otel.Tracer("roofline/reconcile"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EstimateRoofArea reconciles a roof estimate for a coordinate and optional
// property record.
func (o *Orchestrator) EstimateRoofArea(ctx context.Context, coord model.Coordinate, rec *property.Record) (model.RoofEstimate, error) {
	return o.Estimate(ctx, Request{Coordinate: coord, Property: rec})
}

// Estimate reconciles a request. It fails only when ctx is already done,
// the coordinate is invalid, or every fallback is exhausted.
func (o *Orchestrator) Estimate(ctx context.Context, req Request) (model.RoofEstimate, error) {
	if err := ctx.Err(); err != nil {
		return model.RoofEstimate{}, err
	}
	if err := req.Coordinate.Validate(); err != nil {
		return model.RoofEstimate{}, err
	}
	if o.sampler == nil || o.analyzer == nil {
		return model.RoofEstimate{}, ErrNotConfigured
	}

	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "reconcile.Estimate", trace.WithAttributes(
		attribute.Float64("roof.latitude", req.Coordinate.Latitude),
		attribute.Float64("roof.longitude", req.Coordinate.Longitude),
		attribute.String("roof.property_category", string(req.Property.Category())),
	))
	defer span.End()

	est, err := o.run(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.RoofEstimate{}, err
	}

	span.SetAttributes(
		attribute.String("roof.method", string(est.Method)),
		attribute.String("roof.confidence", string(est.Confidence)),
		attribute.Float64("roof.area_sq_ft", est.AreaSqFt),
	)
	metrics.RecordEstimate(string(est.Method), string(est.Confidence))
	metrics.RecordReconcileLatency(float64(time.Since(start).Milliseconds()))
	return est, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request) (model.RoofEstimate, error) {
	coord := req.Coordinate

	if req.ManualAreaSqFt > 0 {
		o.enter(ctx, StateDone)
		return manualEstimate(req), nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.requestTimeout)
	defer cancel()

	key := CacheKey(coord, req.Property)
	o.enter(ctx, StateCacheLookup)
	if est, ok := o.cache.Get(ctx, key); ok {
		o.log.Debug(ctx, "cache hit", logger.String("key", key))
		o.enter(ctx, StateDone)
		return est, nil
	}

	o.enter(ctx, StateSampling)
	images := o.sampler.Sample(ctx, coord, o.zooms)

	o.enter(ctx, StateAnalyzing)
	candidates := o.analyzeAll(ctx, images, coord, req.Property.Summary())
	if len(candidates) == 0 {
		return o.fallback(ctx, key, req, "Satellite analysis unavailable.")
	}

	o.enter(ctx, StateSelecting)
	best, _ := Best(candidates)
	best.Polygon = placePolygon(best.Polygon, coord)

	o.enter(ctx, StateAdjusting)
	est := Adjust(best, req.Property)

	o.enter(ctx, StateValidating)
	est = CrossValidate(est, req.Property, &coord)
	if !est.Valid() {
		return o.fallback(ctx, key, req, "Satellite analysis found no roof.")
	}

	o.write(ctx, key, est)
	o.enter(ctx, StateDone)
	return est, nil
}

// analyzeAll runs one analysis per fetched image concurrently. Failures are
// logged and dropped; they never cancel siblings. With short-circuit on, the
// first high-confidence result cancels the analyses still in flight.
func (o *Orchestrator) analyzeAll(ctx context.Context, images []model.ZoomImage, coord model.Coordinate, summary string) []model.RoofEstimate {
	actx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu         sync.Mutex
		candidates []model.RoofEstimate
		g          errgroup.Group
	)
	for _, img := range images {
		if !img.OK() {
			o.log.Warn(ctx, "zoom level excluded", logger.Int("zoom", img.Zoom), logger.Error(img.Err))
			continue
		}
		img := img
		g.Go(func() error {
			est, err := o.analyzeOne(actx, img, coord, summary)
			if err != nil {
				o.log.Warn(ctx, "vision analysis failed", logger.Int("zoom", img.Zoom), logger.Error(err))
				return nil
			}
			mu.Lock()
			candidates = append(candidates, est)
			mu.Unlock()
			if o.shortCircuit && est.Valid() && est.Confidence.Rank() == model.ConfidenceHigh.Rank() {
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()
	return candidates
}

func (o *Orchestrator) analyzeOne(ctx context.Context, img model.ZoomImage, coord model.Coordinate, summary string) (model.RoofEstimate, error) {
	ctx, span := o.tracer.Start(ctx, "reconcile.analyze", trace.WithAttributes(attribute.Int("roof.zoom", img.Zoom)))
	defer span.End()

	a, err := o.analyzer.Analyze(ctx, img.Data, coord, summary)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return model.RoofEstimate{}, fmt.Errorf("zoom %d: %w", img.Zoom, err)
	}
	return a.Estimate(img.Zoom), nil
}

func (o *Orchestrator) fallback(ctx context.Context, key string, req Request, reason string) (model.RoofEstimate, error) {
	o.enter(ctx, StateFallback)
	coord := req.Coordinate
	est, attempt, ok := fold(o.fallbacks, req.Property, &coord)
	if !ok {
		return model.RoofEstimate{}, ErrNoEstimate
	}
	est.Notes = reason + " " + est.Notes
	o.log.Info(ctx, "using fallback estimate",
		logger.String("method", string(attempt.Method)),
		logger.Float64("area_sq_ft", est.AreaSqFt),
	)
	if attempt.Cacheable {
		o.write(ctx, key, est)
	}
	o.enter(ctx, StateDone)
	return est, nil
}

// write stores est even if the request deadline has passed.
func (o *Orchestrator) write(ctx context.Context, key string, est model.RoofEstimate) {
	o.enter(ctx, StateCacheWrite)
	o.cache.Set(context.WithoutCancel(ctx), key, est)
}

func (o *Orchestrator) enter(ctx context.Context, s State) {
	trace.SpanFromContext(ctx).AddEvent(string(s))
	if o.observe != nil {
		o.observe(s)
	}
}

// placePolygon centres a usable vision polygon on the requested point and
// drops anything with fewer than three vertices.
func placePolygon(p model.Polygon, coord model.Coordinate) model.Polygon {
	if !geometry.Valid(p) {
		return nil
	}
	return geometry.Reposition(p, coord)
}

func manualEstimate(req Request) model.RoofEstimate {
	coord := req.Coordinate
	est := model.RoofEstimate{
		AreaSqFt:       req.ManualAreaSqFt,
		Confidence:     model.ConfidenceHigh,
		RoofShape:      model.ShapeUnknown,
		EstimatedPitch: model.PitchUnknown,
		Polygon:        geometry.SyntheticPolygon(coord, req.ManualAreaSqFt, 0),
		Method:         model.MethodManual,
		Notes:          "Roof area provided manually.",
	}
	if pe, err := property.Estimate(req.Property, nil); err == nil {
		est.RoofShape = pe.RoofShape
		est.EstimatedPitch = pe.EstimatedPitch
	}
	return est
}

type noCache struct{}

func (noCache) Get(context.Context, string) (model.RoofEstimate, bool) { return model.RoofEstimate{}, false }
func (noCache) Set(context.Context, string, model.RoofEstimate)        {}
