package geospatial

import (
	"math"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

// InitialBearing returns the compass heading in [0, 360) of the great-circle
// path leaving a towards b. Identical points have no direction; 0 is returned.
func InitialBearing(a, b domain.GeoPoint) float64 {
	if a.Equal(b) {
		return 0
	}
	phi1, phi2 := toRad(a.Lat), toRad(b.Lat)
	dLon := toRad(b.Lon - a.Lon)

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)
	if x == 0 && y == 0 {
		return 0
	}
	return NormalizeBearing(toDeg(math.Atan2(y, x)))
}

// NormalizeBearing wraps deg into [0, 360).
func NormalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// NormalizeLongitude wraps lon into [-180, 180].
func NormalizeLongitude(lon float64) float64 {
	if lon >= -180 && lon <= 180 {
		return lon
	}
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Interpolate returns the point at fraction f of the way along the great
// circle from a to b. f is clamped into [0, 1].
//
// Coincident endpoints return a for every f. Antipodal endpoints have no
// unique great circle; the path follows the initial bearing from a.
func Interpolate(a, b domain.GeoPoint, f float64) domain.GeoPoint {
	if math.IsNaN(f) || f <= 0 {
		return a
	}
	if f >= 1 {
		return b
	}

	delta := AngularDistance(a, b)
	if delta < degenerateAngle {
		return a
	}
	sinDelta := math.Sin(delta)
	if sinDelta < degenerateAngle {
		return Destination(a, InitialBearing(a, b), f*delta*EarthRadiusKm)
	}

	phi1, lam1 := toRad(a.Lat), toRad(a.Lon)
	phi2, lam2 := toRad(b.Lat), toRad(b.Lon)

	wa := math.Sin((1-f)*delta) / sinDelta
	wb := math.Sin(f*delta) / sinDelta

	x := wa*math.Cos(phi1)*math.Cos(lam1) + wb*math.Cos(phi2)*math.Cos(lam2)
	y := wa*math.Cos(phi1)*math.Sin(lam1) + wb*math.Cos(phi2)*math.Sin(lam2)
	z := wa*math.Sin(phi1) + wb*math.Sin(phi2)

	phi := math.Atan2(z, math.Sqrt(x*x+y*y))
	lam := math.Atan2(y, x)

	return domain.GeoPoint{
		Lat: clamp(toDeg(phi), -90, 90),
		Lon: NormalizeLongitude(toDeg(lam)),
	}
}

// Destination returns the point reached by travelling distanceKm from a
// along the great circle with the given initial bearing.
func Destination(a domain.GeoPoint, bearingDeg, distanceKm float64) domain.GeoPoint {
	if distanceKm == 0 {
		return a
	}
	delta := distanceKm / EarthRadiusKm
	theta := toRad(bearingDeg)
	phi1, lam1 := toRad(a.Lat), toRad(a.Lon)

	sinphi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	phi2 := math.Asin(clamp(sinphi2, -1, 1))
	lam2 := lam1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*sinphi2,
	)

	return domain.GeoPoint{
		Lat: clamp(toDeg(phi2), -90, 90),
		Lon: NormalizeLongitude(toDeg(lam2)),
	}
}
