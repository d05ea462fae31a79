// Package vision asks a vision model to measure a roof and coerces its
// answer into one canonical schema.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/okian/roofline/internal/domain/model"
	"github.com/okian/roofline/pkg/logger"
	"github.com/okian/roofline/pkg/metrics"
	"github.com/rotisserie/eris"
)

// DefaultTimeout bounds a single analysis.
const DefaultTimeout = 30 * time.Second

// Analyzer turns a satellite image into a model.Analysis.
type Analyzer struct {
	client  Client
	timeout time.Duration
	log     logger.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithTimeout bounds each analysis.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAnalyzer constructs an Analyzer over client.
func NewAnalyzer(client Client, opts ...Option) *Analyzer {
	a := &Analyzer{
		client:  client,
		timeout: DefaultTimeout,
		log:     logger.Noop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze measures the roof in image. Transport failures, non-2xx answers and
// unparsable or incomplete JSON are all errors; nothing is fabricated.
func (a *Analyzer) Analyze(ctx context.Context, image []byte, coord model.Coordinate, propertySummary string) (model.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.client.Complete(ctx, image, BuildPrompt(coord, propertySummary))
	metrics.RecordCollaboratorLatency("vision", float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordVisionAnalysis("error")
		metrics.RecordErrorByComponent("vision", "call")
		return model.Analysis{}, err
	}

	an, err := Parse(raw)
	if err != nil {
		metrics.RecordVisionAnalysis("malformed")
		metrics.RecordErrorByComponent("vision", "malformed")
		a.log.Debug(ctx, "unusable vision response", logger.String("raw", truncate(raw, 512)), logger.Error(err))
		return model.Analysis{}, err
	}
	metrics.RecordVisionAnalysis("ok")
	return an, nil
}

// response is the wire schema. Keys match case-insensitively.
type response struct {
	RoofArea               *flexFloat `json:"roofArea"`
	Confidence             *string    `json:"confidence"`
	RoofShape              string     `json:"roofShape"`
	RoofPolygon            []point    `json:"roofPolygon"`
	EstimatedPitch         string     `json:"estimatedPitch"`
	Notes                  string     `json:"notes"`
	IncludedFeaturesInArea []string   `json:"includedFeaturesInArea"`
}

// point accepts both lat/lng and latitude/longitude spellings.
type point struct {
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

func (p point) coordinate() (model.Coordinate, bool) {
	lat, lng := p.Lat, p.Lng
	if lat == nil {
		lat = p.Latitude
	}
	if lng == nil {
		lng = p.Longitude
	}
	if lat == nil || lng == nil {
		return model.Coordinate{}, false
	}
	return model.Coordinate{Latitude: *lat, Longitude: *lng}, true
}

// flexFloat decodes a JSON number or a numeric string such as "2,450 sq ft".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("roofArea: %s is not a number", string(b))
	}
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	s = strings.TrimSpace(strings.TrimSuffix(strings.ToLower(s), "sq ft"))
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("roofArea: %q is not a number", s)
	}
	*f = flexFloat(n)
	return nil
}

// Parse extracts the first decodable JSON object from raw model output and
// coerces it into an Analysis. roofArea and confidence are required.
func Parse(raw string) (model.Analysis, error) {
	r, err := decodeFirst(raw)
	if err != nil {
		return model.Analysis{}, err
	}
	if r.RoofArea == nil {
		return model.Analysis{}, eris.Wrap(ErrMalformedResponse, "vision: missing roofArea")
	}
	area := float64(*r.RoofArea)
	if area < 0 || math.IsNaN(area) || math.IsInf(area, 0) {
		return model.Analysis{}, eris.Wrapf(ErrMalformedResponse, "vision: invalid roofArea %v", area)
	}
	if r.Confidence == nil || strings.TrimSpace(*r.Confidence) == "" {
		return model.Analysis{}, eris.Wrap(ErrMalformedResponse, "vision: missing confidence")
	}

	conf := model.Confidence(strings.ToLower(strings.TrimSpace(*r.Confidence)))
	an := model.Analysis{
		AreaSqFt:         area,
		Confidence:       conf,
		ConfidenceRank:   conf.Rank(),
		RoofShape:        model.ParseRoofShape(r.RoofShape),
		EstimatedPitch:   model.ParsePitch(r.EstimatedPitch),
		Polygon:          model.Polygon{},
		IncludedFeatures: []string{},
		Notes:            strings.TrimSpace(r.Notes),
	}
	for _, p := range r.RoofPolygon {
		if c, ok := p.coordinate(); ok {
			an.Polygon = append(an.Polygon, c)
		}
	}
	for _, f := range r.IncludedFeaturesInArea {
		if f = strings.TrimSpace(f); f != "" {
			an.IncludedFeatures = append(an.IncludedFeatures, f)
		}
	}
	return an, nil
}

// decodeFirst tries each balanced object in s in order until one decodes.
// Prose such as "{see overlay}" ahead of the real answer is skipped.
func decodeFirst(s string) (response, error) {
	var decodeErr error
	for from := 0; from < len(s); {
		obj, start, err := nextObject(s, from)
		if err != nil {
			break
		}
		var r response
		if decodeErr = json.Unmarshal([]byte(obj), &r); decodeErr == nil {
			return r, nil
		}
		from = start + 1
	}
	if decodeErr == nil {
		return response{}, ErrNoJSON
	}
	return response{}, eris.Wrapf(ErrMalformedResponse, "vision: decode: %v", decodeErr)
}

// ExtractJSON returns the first balanced {...} object in s, skipping braces
// inside string literals.
func ExtractJSON(s string) (string, error) {
	obj, _, err := nextObject(s, 0)
	return obj, err
}

// nextObject finds the first balanced object opening at or after from and
// returns it with its start offset.
func nextObject(s string, from int) (string, int, error) {
	for from < len(s) {
		i := strings.IndexByte(s[from:], '{')
		if i < 0 {
			break
		}
		start := from + i
		if end, ok := balancedEnd(s, start); ok {
			return s[start : end+1], start, nil
		}
		from = start + 1
	}
	return "", -1, ErrNoJSON
}

// balancedEnd returns the index of the brace closing the one at start.
func balancedEnd(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
