package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate is returned for latitude/longitude outside WGS84 bounds.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate is a finite point on the globe.
func (c Coordinate) Validate() error {
	switch {
	case math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude):
		return fmt.Errorf("%w: NaN component", ErrInvalidCoordinate)
	case c.Latitude < -90 || c.Latitude > 90:
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalidCoordinate, c.Latitude)
	case c.Longitude < -180 || c.Longitude > 180:
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// Key renders the coordinate rounded to 6 decimals (~0.1 m).
func (c Coordinate) Key() string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}

// Polygon is an ordered list of vertices describing a roof outline.
// Producers do not guarantee closure.
type Polygon []Coordinate

// MinPolygonVertices is the smallest vertex count treated as a polygon.
const MinPolygonVertices = 3

// Usable reports whether the polygon has enough vertices to describe an area.
func (p Polygon) Usable() bool {
	return len(p) >= MinPolygonVertices
}
