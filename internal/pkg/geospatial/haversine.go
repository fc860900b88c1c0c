package geospatial

import (
	"math"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

// EarthRadiusKm is the mean Earth radius.
const EarthRadiusKm = 6371.0

// degenerateAngle is the angular separation (radians) below which two
// points are treated as the same point.
const degenerateAngle = 1e-12

// DistanceKm returns the great-circle distance between a and b in kilometres.
func DistanceKm(a, b domain.GeoPoint) float64 {
	if a.Equal(b) {
		return 0
	}
	return EarthRadiusKm * centralAngle(a.Lat, a.Lon, b.Lat, b.Lon)
}

// AngularDistance returns the central angle between a and b in radians.
func AngularDistance(a, b domain.GeoPoint) float64 {
	if a.Equal(b) {
		return 0
	}
	return centralAngle(a.Lat, a.Lon, b.Lat, b.Lon)
}

// centralAngle uses the haversine form; h is clamped into [0, 1] so rounding
// near identical or antipodal points never produces NaN.
func centralAngle(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	h = clamp(h, 0, 1)

	return 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
