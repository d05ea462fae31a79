package roofctl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/okian/roofline/internal/domain/model"
)

// printJSON writes v indented.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printEstimate writes est as a short human summary.
func printEstimate(w io.Writer, est model.RoofEstimate) {
	fmt.Fprintf(w, "area:       %.0f sq ft\n", est.AreaSqFt)
	fmt.Fprintf(w, "confidence: %s\n", est.Confidence)
	fmt.Fprintf(w, "method:     %s\n", est.Method)
	fmt.Fprintf(w, "shape:      %s\n", est.RoofShape)
	fmt.Fprintf(w, "pitch:      %s\n", est.EstimatedPitch)
	if est.Zoom > 0 {
		fmt.Fprintf(w, "zoom:       %d\n", est.Zoom)
	}
	if len(est.IncludedFeatures) > 0 {
		fmt.Fprintf(w, "features:   %s\n", strings.Join(est.IncludedFeatures, ", "))
	}
	if est.Notes != "" {
		fmt.Fprintf(w, "notes:      %s\n", est.Notes)
	}
}
