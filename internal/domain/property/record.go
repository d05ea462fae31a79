package property

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// NoPropertyFingerprint stands in for absent property data in cache keys.
const NoPropertyFingerprint = "noprop"

const fingerprintLen = 12

// Record is the property data supplied by callers or the property data provider.
type Record struct {
	Type             Category `json:"property_type"`
	BuildingSizeSqFt *float64 `json:"building_size_sq_ft,omitempty"`
	Stories          int      `json:"stories,omitempty"`
	YearBuilt        *int     `json:"year_built,omitempty"`
	RoofType         *string  `json:"roof_type,omitempty"`
}

// StoryCount returns the number of stories, defaulting to one.
func (r *Record) StoryCount() int {
	if r == nil || r.Stories < 1 {
		return 1
	}
	return r.Stories
}

// Category returns the record's category, Unknown for a nil record.
func (r *Record) Category() Category {
	if r == nil || r.Type == "" {
		return Unknown
	}
	return r.Type
}

// Footprint is the ground-floor area: building size divided by stories.
// ok is false when building size is missing or not positive.
func (r *Record) Footprint() (sqFt float64, ok bool) {
	if r == nil || r.BuildingSizeSqFt == nil || *r.BuildingSizeSqFt <= 0 {
		return 0, false
	}
	return *r.BuildingSizeSqFt / float64(r.StoryCount()), true
}

// Fingerprint is a short deterministic digest of the attributes that affect
// estimation: category, building size and stories.
func (r *Record) Fingerprint() string {
	if r == nil {
		return NoPropertyFingerprint
	}
	size := "none"
	if r.BuildingSizeSqFt != nil {
		size = strconv.FormatFloat(*r.BuildingSizeSqFt, 'f', -1, 64)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", r.Category(), size, r.StoryCount())))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// Summary renders the record as prompt context for the vision model.
func (r *Record) Summary() string {
	if r == nil {
		return ""
	}
	var parts []string
	parts = append(parts, "Property type: "+r.Category().Label()+".")
	if fp, ok := r.Footprint(); ok {
		parts = append(parts, fmt.Sprintf("Building size: %.0f sq ft across %d stories (estimated footprint %.0f sq ft).",
			*r.BuildingSizeSqFt, r.StoryCount(), fp))
	}
	if r.YearBuilt != nil {
		parts = append(parts, fmt.Sprintf("Year built: %d.", *r.YearBuilt))
	}
	if r.RoofType != nil && strings.TrimSpace(*r.RoofType) != "" {
		parts = append(parts, "Roof type: "+strings.TrimSpace(*r.RoofType)+".")
	}
	return strings.Join(parts, " ")
}
