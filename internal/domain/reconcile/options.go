package reconcile

import (
	"time"

	"github.com/okian/roofline/pkg/logger"
	"go.opentelemetry.io/otel/trace"
)

// Default orchestrator configuration.
const (
	DefaultRequestTimeout = 45 * time.Second
)

// DefaultZoomLevels are tried highest first.
var DefaultZoomLevels = []int{21, 20, 19}

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithCache sets the result cache.
func WithCache(c Cache) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.cache = c
		}
	}
}

// WithZoomLevels sets the zoom levels sampled per request.
func WithZoomLevels(zooms []int) Option {
	return func(o *Orchestrator) {
		if len(zooms) > 0 {
			o.zooms = append([]int(nil), zooms...)
		}
	}
}

// WithRequestTimeout bounds a whole reconciliation.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithShortCircuit cancels outstanding analyses once a high-confidence
// result exists.
func WithShortCircuit(enabled bool) Option {
	return func(o *Orchestrator) {
		o.shortCircuit = enabled
	}
}

// WithFallbacks replaces the fallback chain.
func WithFallbacks(attempts []Attempt) Option {
	return func(o *Orchestrator) {
		if len(attempts) > 0 {
			o.fallbacks = attempts
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithTracer sets the tracer used for reconciliation spans.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithStateObserver registers a callback invoked on every state transition.
func WithStateObserver(fn func(State)) Option {
	return func(o *Orchestrator) {
		o.observe = fn
	}
}
