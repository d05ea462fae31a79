package property

import (
	"errors"
	"fmt"
	"math"

	"github.com/okian/roofline/internal/domain/geometry"
	"github.com/okian/roofline/internal/domain/model"
)

// DefaultAreaSqFt is the fixed estimate returned when nothing else is known.
const DefaultAreaSqFt = 2500

// complexFootprintSqFt is the single-family footprint above which a roof is
// assumed to have a complex shape.
const complexFootprintSqFt = 2000

// ErrInsufficientData is returned when the record lacks a usable building size.
var ErrInsufficientData = errors.New("insufficient property data")

// Estimate derives a roof area from property records alone.
// When coord is non-nil a synthetic rectangle of the estimated area is
// attached as the polygon.
func Estimate(r *Record, coord *model.Coordinate) (model.RoofEstimate, error) {
	footprint, ok := r.Footprint()
	if !ok {
		return model.RoofEstimate{}, ErrInsufficientData
	}
	cat := r.Category()
	f := cat.Factors()
	area := math.Round(footprint * f.Multiplier)

	est := model.RoofEstimate{
		AreaSqFt:       area,
		Confidence:     model.ConfidenceMedium,
		RoofShape:      shapeFor(cat, footprint),
		EstimatedPitch: pitchFor(cat),
		Method:         model.MethodPropertyBased,
		Notes: fmt.Sprintf("Estimated from property records: %.0f sq ft footprint x %.2f %s roof factor.",
			footprint, f.Multiplier, cat.Label()),
	}
	if coord != nil {
		est.Polygon = geometry.SyntheticPolygon(*coord, area, 0)
	}
	return est, nil
}

// Default is the fixed low-confidence estimate used when every source failed.
func Default(coord *model.Coordinate) model.RoofEstimate {
	est := model.RoofEstimate{
		AreaSqFt:       DefaultAreaSqFt,
		Confidence:     model.ConfidenceLow,
		RoofShape:      model.ShapeUnknown,
		EstimatedPitch: model.PitchUnknown,
		Method:         model.MethodDefault,
		Notes:          "No imagery or property data available; using a typical residential roof size.",
	}
	if coord != nil {
		est.Polygon = geometry.SyntheticPolygon(*coord, DefaultAreaSqFt, 0)
	}
	return est
}

func shapeFor(cat Category, footprint float64) model.RoofShape {
	if cat != SingleFamily {
		return model.ShapeUnknown
	}
	if footprint > complexFootprintSqFt {
		return model.ShapeComplex
	}
	return model.ShapeSimple
}

func pitchFor(cat Category) model.Pitch {
	switch cat {
	case SingleFamily, Townhouse:
		return model.PitchModerate
	case Commercial, MultiFamily, Condo:
		return model.PitchLow
	default:
		return model.PitchUnknown
	}
}
