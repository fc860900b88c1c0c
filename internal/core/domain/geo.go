package domain

import (
	"fmt"
	"math"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewGeoPoint builds a validated point. Values that are not finite or fall
// outside [-90, 90] / [-180, 180] yield ErrInvalidCoordinate.
func NewGeoPoint(lat, lon float64) (GeoPoint, error) {
	p := GeoPoint{Lat: lat, Lon: lon}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p, nil
}

// Validate checks the coordinate invariants.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lon) || math.IsInf(p.Lon, 0) {
		return fmt.Errorf("%w: non-finite coordinate (%v, %v)", ErrInvalidCoordinate, p.Lat, p.Lon)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, p.Lat)
	}
	if p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, p.Lon)
	}
	return nil
}

// Equal reports value equality.
func (p GeoPoint) Equal(o GeoPoint) bool {
	return p.Lat == o.Lat && p.Lon == o.Lon
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Contains reports whether p lies inside the box (edges inclusive).
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// ContainsBounds reports whether o lies entirely inside b.
func (b Bounds) ContainsBounds(o Bounds) bool {
	return o.MinLat >= b.MinLat && o.MaxLat <= b.MaxLat &&
		o.MinLon >= b.MinLon && o.MaxLon <= b.MaxLon
}

// Span returns the larger of the latitude and longitude extents in degrees.
func (b Bounds) Span() float64 {
	return math.Max(b.MaxLat-b.MinLat, b.MaxLon-b.MinLon)
}

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return GeoPoint{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lon: (b.MinLon + b.MaxLon) / 2,
	}
}

// Viewport is the camera region used to frame the map.
type Viewport struct {
	Center   GeoPoint `json:"center"`
	ZoomHint int      `json:"zoom_hint"`
	Bounds   Bounds   `json:"bounds"`
}
