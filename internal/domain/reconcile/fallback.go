package reconcile

import (
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
)

// Attempt is one step of the fallback chain tried when imagery yields nothing.
type Attempt struct {
	Method model.Method
	Run    func(rec *property.Record, coord *model.Coordinate) (model.RoofEstimate, error)
	// Cacheable results are written through the cache like vision results.
	Cacheable bool
}

// DefaultFallbacks tries property records first and the fixed default last.
// The default is not cached so a later request can retry the collaborators.
func DefaultFallbacks() []Attempt {
	return []Attempt{
		{Method: model.MethodPropertyBased, Run: property.Estimate, Cacheable: true},
		{
			Method: model.MethodDefault,
			Run: func(_ *property.Record, coord *model.Coordinate) (model.RoofEstimate, error) {
				return property.Default(coord), nil
			},
		},
	}
}

// fold runs attempts in order and returns the first valid estimate.
func fold(attempts []Attempt, rec *property.Record, coord *model.Coordinate) (model.RoofEstimate, Attempt, bool) {
	for _, a := range attempts {
		est, err := a.Run(rec, coord)
		if err != nil || !est.Valid() {
			continue
		}
		return est, a, true
	}
	return model.RoofEstimate{}, Attempt{}, false
}
