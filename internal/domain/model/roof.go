// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"math"
	"strings"
)

// Confidence is the qualitative reliability label attached to an estimate.
type Confidence string

// Confidence values. Anything else ranks as unknown.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank maps a confidence label to a comparable number: high=3, medium=2,
// low=1, anything else 0.
func (c Confidence) Rank() int {
	switch Confidence(strings.ToLower(strings.TrimSpace(string(c)))) {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// RoofShape classifies roof complexity.
type RoofShape string

// Roof shapes.
const (
	ShapeSimple  RoofShape = "simple"
	ShapeComplex RoofShape = "complex"
	ShapeUnknown RoofShape = "unknown"
)

// ParseRoofShape normalizes free text into a RoofShape.
func ParseRoofShape(s string) RoofShape {
	switch RoofShape(strings.ToLower(strings.TrimSpace(s))) {
	case ShapeSimple:
		return ShapeSimple
	case ShapeComplex:
		return ShapeComplex
	default:
		return ShapeUnknown
	}
}

// Pitch is the roof steepness category.
type Pitch string

// Pitch categories.
const (
	PitchFlat     Pitch = "flat"
	PitchLow      Pitch = "low"
	PitchModerate Pitch = "moderate"
	PitchSteep    Pitch = "steep"
	PitchUnknown  Pitch = "unknown"
)

// ParsePitch normalizes free text into a Pitch.
func ParsePitch(s string) Pitch {
	switch Pitch(strings.ToLower(strings.TrimSpace(s))) {
	case PitchFlat:
		return PitchFlat
	case PitchLow:
		return PitchLow
	case PitchModerate:
		return PitchModerate
	case PitchSteep:
		return PitchSteep
	default:
		return PitchUnknown
	}
}

// Method tags the provenance of an estimate.
type Method string

// Provenance tags.
const (
	MethodVision          Method = "vision"
	MethodVisionAdjusted  Method = "vision_adjusted"
	MethodVisionValidated Method = "vision_validated"
	MethodPropertyBased   Method = "property_based"
	MethodDefault         Method = "default"
	MethodManual          Method = "manual"
)

// RoofEstimate is the result every estimator produces.
type RoofEstimate struct {
	AreaSqFt         float64    `json:"area_sq_ft"`
	Confidence       Confidence `json:"confidence"`
	RoofShape        RoofShape  `json:"roof_shape"`
	EstimatedPitch   Pitch      `json:"estimated_pitch"`
	Polygon          Polygon    `json:"polygon"`
	Method           Method     `json:"method"`
	Notes            string     `json:"notes,omitempty"`
	IncludedFeatures []string   `json:"included_features,omitempty"`
	Zoom             int        `json:"zoom,omitempty"`
}

// Valid reports whether the estimate carries a usable, strictly positive area.
func (e RoofEstimate) Valid() bool {
	return e.AreaSqFt > 0 && !math.IsNaN(e.AreaSqFt) && !math.IsInf(e.AreaSqFt, 0)
}

// AppendNote adds a sentence to the estimate's rationale.
func (e *RoofEstimate) AppendNote(format string, args ...any) {
	note := fmt.Sprintf(format, args...)
	if e.Notes == "" {
		e.Notes = note
		return
	}
	e.Notes = strings.TrimSpace(e.Notes) + " " + note
}

// Clone returns a deep copy so callers can mutate the result freely.
func (e RoofEstimate) Clone() RoofEstimate {
	out := e
	if e.Polygon != nil {
		out.Polygon = append(Polygon(nil), e.Polygon...)
	}
	if e.IncludedFeatures != nil {
		out.IncludedFeatures = append([]string(nil), e.IncludedFeatures...)
	}
	return out
}
