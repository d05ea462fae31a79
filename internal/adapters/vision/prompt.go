package vision

import (
	"fmt"
	"strings"

	"github.com/okian/roofline/internal/domain/model"
)

const promptHeader = "You are a roofing estimator measuring a roof from a top-down satellite image.\n" +
	"The image is centred on latitude %.6f, longitude %.6f. Measure only the building at the centre.\n\n"

const promptInstructions = `Respond with a single JSON object and nothing else, using exactly these fields:
{
  "roofArea": <number, total roof surface in square feet including pitch>,
  "confidence": "high" | "medium" | "low",
  "roofShape": "simple" | "complex",
  "roofPolygon": [{"lat": <number>, "lng": <number>}, ...],
  "estimatedPitch": "flat" | "low" | "moderate" | "steep",
  "notes": "<short explanation of what you measured>",
  "includedFeaturesInArea": ["<feature>", ...]
}

Rules:
- Include attached garages, porches and dormers that share the roof; exclude detached structures.
- If no roof is visible, set roofArea to 0 and confidence to "low".
- Use "high" confidence only when the full roof outline is clearly visible.
`

// BuildPrompt renders the instruction text sent with every image.
func BuildPrompt(coord model.Coordinate, propertySummary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, promptHeader, coord.Latitude, coord.Longitude)
	if s := strings.TrimSpace(propertySummary); s != "" {
		b.WriteString("Property records: ")
		b.WriteString(s)
		b.WriteString("\nTreat these records as context; report what the image shows.\n\n")
	}
	b.WriteString(promptInstructions)
	return b.String()
}
