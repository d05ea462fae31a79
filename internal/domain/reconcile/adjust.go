package reconcile

import (
	"github.com/okian/roofline/internal/domain/geometry"
	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/internal/domain/property"
)

// Minimum roof-to-footprint ratios by reported pitch.
const (
	steepMinFactor    = 1.4
	moderateMinFactor = 1.25
	lowMinFactor      = 1.15
	defaultMinFactor  = 1.2
	complexBonus      = 0.1
)

// MinFactor is the smallest plausible roof-to-footprint ratio for a roof of
// the given pitch and shape.
func MinFactor(pitch model.Pitch, shape model.RoofShape) float64 {
	f := defaultMinFactor
	switch pitch {
	case model.PitchSteep:
		f = steepMinFactor
	case model.PitchModerate:
		f = moderateMinFactor
	case model.PitchLow:
		f = lowMinFactor
	}
	if shape == model.ShapeComplex {
		f += complexBonus
	}
	return f
}

// Adjust raises a vision estimate that falls below the industry-standard
// minimum for its footprint. It never lowers an area. A zero area is left for
// the cross-validator to substitute.
func Adjust(est model.RoofEstimate, rec *property.Record) model.RoofEstimate {
	footprint, ok := rec.Footprint()
	if !ok || est.AreaSqFt <= 0 || !rec.Category().Factors().PitchFloor {
		return est
	}
	floor := footprint * MinFactor(est.EstimatedPitch, est.RoofShape)
	if est.AreaSqFt >= floor {
		return est
	}

	out := est.Clone()
	out.AppendNote("Raised from %.0f to the %.0f sq ft industry minimum for a %s %s roof.",
		est.AreaSqFt, floor, est.EstimatedPitch, est.RoofShape)
	out.AreaSqFt = floor
	out.Polygon = rescale(out.Polygon, floor)
	out.Method = model.MethodVisionAdjusted
	return out
}

// rescale resizes p to area, keeping p when it cannot be scaled.
func rescale(p model.Polygon, area float64) model.Polygon {
	if !geometry.Valid(p) {
		return p
	}
	scaled, err := geometry.ScaleToArea(p, area)
	if err != nil {
		return p
	}
	return scaled
}
