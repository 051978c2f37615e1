// Package geofence — geo_utils contains pure geographic computation helpers.
package geofence

import (
	"math"

	"colis/internal/types"
)

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometres between two
// points specified in decimal degrees.
func HaversineKm(a, b types.Point) float64 {
	dLat := degreesToRadians(b.Lat - a.Lat)
	dLng := degreesToRadians(b.Lng - a.Lng)

	rLat1 := degreesToRadians(a.Lat)
	rLat2 := degreesToRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// DistanceMeters is HaversineKm expressed in metres, the unit the alert
// thresholds are defined in.
func DistanceMeters(a, b types.Point) float64 {
	return HaversineKm(a, b) * 1000
}

// Contains reports whether p lies inside the polygon using the ray-casting
// rule: a horizontal ray from p toggles the inside flag at every edge it
// crosses. A polygon needs at least three vertices; anything smaller
// contains nothing.
func Contains(polygon []types.Point, p types.Point) bool {
	if len(polygon) < 3 {
		return false
	}
	inside := false
	j := len(polygon) - 1
	for i := 0; i < len(polygon); i++ {
		vi, vj := polygon[i], polygon[j]
		if (vi.Lng > p.Lng) != (vj.Lng > p.Lng) &&
			p.Lat < (vj.Lat-vi.Lat)*(p.Lng-vi.Lng)/(vj.Lng-vi.Lng)+vi.Lat {
			inside = !inside
		}
		j = i
	}
	return inside
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
