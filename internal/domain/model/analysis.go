package model

// Analysis is the canonical vision-model reading of one satellite image.
type Analysis struct {
	AreaSqFt         float64
	Confidence       Confidence
	ConfidenceRank   int
	RoofShape        RoofShape
	EstimatedPitch   Pitch
	Polygon          Polygon
	IncludedFeatures []string
	Notes            string
}

// Estimate converts the analysis into a vision-sourced estimate taken at zoom.
// The raw confidence string is kept as reported.
func (a Analysis) Estimate(zoom int) RoofEstimate {
	return RoofEstimate{
		AreaSqFt:         a.AreaSqFt,
		Confidence:       a.Confidence,
		RoofShape:        a.RoofShape,
		EstimatedPitch:   a.EstimatedPitch,
		Polygon:          a.Polygon,
		Method:           MethodVision,
		Notes:            a.Notes,
		IncludedFeatures: a.IncludedFeatures,
		Zoom:             zoom,
	}
}
