// Package geometry provides the polygon arithmetic used to measure and
// reshape roof outlines.
//
// Polygons arrive as WGS84 vertices. For area work they are projected onto a
// local equirectangular plane centred on the polygon's mean latitude, which is
// accurate to well under a percent at roof scale.
package geometry

import (
	"errors"
	"math"

	"github.com/okian/roofline/internal/domain/model"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// SqMetersToSqFeet converts square metres to square feet.
const SqMetersToSqFeet = 10.7639

const (
	feetPerMeter       = 3.28084
	defaultAspectRatio = 1.5
)

// Sentinel errors for geometry operations.
var (
	ErrDegeneratePolygon = errors.New("degenerate polygon")
	ErrInvalidArea       = errors.New("invalid target area")
)

// MetersPerDegree returns the length of one degree of latitude and longitude,
// in metres, at the given latitude.
func MetersPerDegree(lat float64) (perLat, perLng float64) {
	phi := lat * math.Pi / 180
	perLat = 111132.92 - 559.82*math.Cos(2*phi) + 1.175*math.Cos(4*phi) - 0.0023*math.Cos(6*phi)
	perLng = 111412.84*math.Cos(phi) - 93.5*math.Cos(3*phi) + 0.118*math.Cos(5*phi)
	return perLat, perLng
}

// vertices returns the distinct vertices, dropping an explicit closing point.
func vertices(p model.Polygon) model.Polygon {
	if len(p) > 1 && p[0] == p[len(p)-1] {
		return p[:len(p)-1]
	}
	return p
}

// Close returns a copy of p whose last vertex repeats the first.
func Close(p model.Polygon) model.Polygon {
	out := append(model.Polygon(nil), vertices(p)...)
	if len(out) == 0 {
		return out
	}
	return append(out, out[0])
}

// Valid reports whether p has at least three distinct vertices.
func Valid(p model.Polygon) bool {
	if !p.Usable() {
		return false
	}
	seen := make(map[model.Coordinate]struct{}, len(p))
	for _, c := range p {
		seen[c] = struct{}{}
		if len(seen) >= model.MinPolygonVertices {
			return true
		}
	}
	return false
}

// Centroid is the arithmetic mean of the distinct vertices. It is not the
// area-weighted centroid, which is fine for repositioning roof outlines.
func Centroid(p model.Polygon) model.Coordinate {
	v := vertices(p)
	if len(v) == 0 {
		return model.Coordinate{}
	}
	var lat, lng float64
	for _, c := range v {
		lat += c.Latitude
		lng += c.Longitude
	}
	n := float64(len(v))
	return model.Coordinate{Latitude: lat / n, Longitude: lng / n}
}

// project maps the polygon onto a closed ring in metres around origin.
func project(p model.Polygon, origin model.Coordinate) orb.Ring {
	perLat, perLng := MetersPerDegree(origin.Latitude)
	closed := Close(p)
	ring := make(orb.Ring, len(closed))
	for i, c := range closed {
		ring[i] = orb.Point{
			(c.Longitude - origin.Longitude) * perLng,
			(c.Latitude - origin.Latitude) * perLat,
		}
	}
	return ring
}

// Area returns the planar area of the polygon in square feet. Winding order
// and vertex rotation do not affect the result. Unusable polygons measure 0.
func Area(p model.Polygon) float64 {
	if !Valid(p) {
		return 0
	}
	ring := project(p, Centroid(p))
	return math.Abs(planar.Area(ring)) * SqMetersToSqFeet
}

// ScaleToArea scales p radially about its centroid so that its area becomes
// targetSqFt. A polygon with zero area is returned unchanged together with
// ErrDegeneratePolygon.
func ScaleToArea(p model.Polygon, targetSqFt float64) (model.Polygon, error) {
	if targetSqFt <= 0 || math.IsNaN(targetSqFt) || math.IsInf(targetSqFt, 0) {
		return p, ErrInvalidArea
	}
	current := Area(p)
	if current == 0 {
		return p, ErrDegeneratePolygon
	}
	k := math.Sqrt(targetSqFt / current)
	c := Centroid(p)
	out := make(model.Polygon, len(p))
	for i, v := range p {
		out[i] = model.Coordinate{
			Latitude:  c.Latitude + (v.Latitude-c.Latitude)*k,
			Longitude: c.Longitude + (v.Longitude-c.Longitude)*k,
		}
	}
	return out, nil
}

// Reposition translates p so that its centroid lands on center.
func Reposition(p model.Polygon, center model.Coordinate) model.Polygon {
	if len(p) == 0 {
		return p
	}
	c := Centroid(p)
	dLat := center.Latitude - c.Latitude
	dLng := center.Longitude - c.Longitude
	out := make(model.Polygon, len(p))
	for i, v := range p {
		out[i] = model.Coordinate{Latitude: v.Latitude + dLat, Longitude: v.Longitude + dLng}
	}
	return out
}

// SyntheticPolygon builds an axis-aligned rectangle of areaSqFt centred on
// center. The long side runs east-west; aspectRatio <= 0 means 1.5.
// The rectangle has four vertices; use Close for an explicitly closed ring.
func SyntheticPolygon(center model.Coordinate, areaSqFt, aspectRatio float64) model.Polygon {
	if areaSqFt <= 0 {
		return nil
	}
	if aspectRatio <= 0 {
		aspectRatio = defaultAspectRatio
	}
	widthFt := math.Sqrt(areaSqFt / aspectRatio)
	lengthFt := widthFt * aspectRatio

	perLat, perLng := MetersPerDegree(center.Latitude)
	halfLat := (widthFt / 2 / feetPerMeter) / perLat
	halfLng := (lengthFt / 2 / feetPerMeter) / perLng

	return model.Polygon{
		{Latitude: center.Latitude + halfLat, Longitude: center.Longitude - halfLng},
		{Latitude: center.Latitude + halfLat, Longitude: center.Longitude + halfLng},
		{Latitude: center.Latitude - halfLat, Longitude: center.Longitude + halfLng},
		{Latitude: center.Latitude - halfLat, Longitude: center.Longitude - halfLng},
	}
}
