// Package property models public property records and derives roof-area
// expectations from them.
package property

import (
	"strings"

	"golang.org/x/text/cases"
)

// Category is the closed set of property types the estimator understands.
type Category string

// Known categories.
const (
	SingleFamily Category = "single_family"
	Townhouse    Category = "townhouse"
	Condo        Category = "condo"
	Commercial   Category = "commercial"
	MultiFamily  Category = "multi_family"
	Unknown      Category = "unknown"
)

// Factors holds the per-category multipliers.
type Factors struct {
	// Multiplier scales footprint into roof surface (pitch and overhangs).
	Multiplier float64
	// MinExpected and MaxExpected bound a plausible roof area as multiples
	// of the footprint.
	MinExpected float64
	MaxExpected float64
	// PitchFloor enables the industry-standard minimum based on reported pitch.
	PitchFloor bool
}

var factorTable = map[Category]Factors{
	SingleFamily: {Multiplier: 1.4, MinExpected: 1.0, MaxExpected: 1.8, PitchFloor: true},
	Townhouse:    {Multiplier: 1.3, MinExpected: 0.9, MaxExpected: 1.5},
	Condo:        {Multiplier: 1.1, MinExpected: 0.9, MaxExpected: 1.5},
	MultiFamily:  {Multiplier: 1.2, MinExpected: 0.9, MaxExpected: 1.5},
	Commercial:   {Multiplier: 1.05, MinExpected: 0.9, MaxExpected: 1.5},
	Unknown:      {Multiplier: 1.2, MinExpected: 0.9, MaxExpected: 1.5},
}

// Factors returns the factor set for c; unrecognised values use Unknown's.
func (c Category) Factors() Factors {
	if f, ok := factorTable[c]; ok {
		return f
	}
	return factorTable[Unknown]
}

// Normalize maps free-text property types from external data into a Category.
func Normalize(raw string) Category {
	s := cases.Fold().String(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)

	switch {
	case s == "":
		return Unknown
	case strings.Contains(s, "single") && strings.Contains(s, "family"),
		s == "sfr", s == "detached", s == "house":
		return SingleFamily
	case strings.Contains(s, "town"), strings.Contains(s, "row"):
		return Townhouse
	case strings.Contains(s, "condo"), strings.Contains(s, "apartment"):
		return Condo
	case strings.Contains(s, "multi"), strings.Contains(s, "duplex"), strings.Contains(s, "triplex"):
		return MultiFamily
	case strings.Contains(s, "commercial"), strings.Contains(s, "office"),
		strings.Contains(s, "retail"), strings.Contains(s, "industrial"):
		return Commercial
	default:
		return Unknown
	}
}

// UnmarshalText normalizes on decode so records from JSON or YAML are
// canonical from the start.
func (c *Category) UnmarshalText(text []byte) error {
	*c = Normalize(string(text))
	return nil
}

// Label is the human-readable form used in prompts and notes.
func (c Category) Label() string {
	return strings.ReplaceAll(string(c), "_", " ")
}
