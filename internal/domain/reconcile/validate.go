package reconcile

import (
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
)

// Range is the plausible roof area for a footprint.
type Range struct {
	Min float64
	Max float64
}

// ExpectedRange returns the plausible roof area for rec. ok is false when
// the record has no footprint.
func ExpectedRange(rec *property.Record) (r Range, ok bool) {
	footprint, ok := rec.Footprint()
	if !ok {
		return Range{}, false
	}
	f := rec.Category().Factors()
	return Range{Min: footprint * f.MinExpected, Max: footprint * f.MaxExpected}, true
}

// CrossValidate bounds an adjusted vision estimate by what the property
// record says is plausible. A zero area, or a low-confidence area below the
// range, is replaced by the property-based estimate. A high-confidence area
// above the range is trusted.
func CrossValidate(est model.RoofEstimate, rec *property.Record, coord *model.Coordinate) model.RoofEstimate {
	rng, ok := ExpectedRange(rec)
	if !ok {
		return est
	}

	switch {
	case est.AreaSqFt <= 0:
		return substitute(est, rec, coord, "Satellite analysis found no roof")
	case est.AreaSqFt < rng.Min:
		if est.Confidence.Rank() <= model.ConfidenceLow.Rank() {
			return substitute(est, rec, coord, "Low-confidence satellite measurement was below the expected range")
		}
		out := est.Clone()
		out.AppendNote("Raised from %.0f to %.0f sq ft, the minimum expected for this property.", est.AreaSqFt, rng.Min)
		out.AreaSqFt = rng.Min
		out.Polygon = rescale(out.Polygon, rng.Min)
		out.Method = model.MethodVisionValidated
		return out
	case est.AreaSqFt > rng.Max && est.Confidence.Rank() != model.ConfidenceHigh.Rank():
		out := est.Clone()
		out.AppendNote("Lowered from %.0f to %.0f sq ft, the maximum expected for this property.", est.AreaSqFt, rng.Max)
		out.AreaSqFt = rng.Max
		out.Confidence = model.ConfidenceMedium
		out.Polygon = rescale(out.Polygon, rng.Max)
		out.Method = model.MethodVisionValidated
		return out
	default:
		return est
	}
}

func substitute(est model.RoofEstimate, rec *property.Record, coord *model.Coordinate, reason string) model.RoofEstimate {
	fallback, err := property.Estimate(rec, coord)
	if err != nil {
		return est
	}
	fallback.Notes = reason + ". " + fallback.Notes
	return fallback
}
