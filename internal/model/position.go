package model

import "math"

const earthRadiusMeters = 6371000.0

type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locatable is anything that carries a fix on the map.
type Locatable interface {
	Location() Position
}

// Valid reports whether the position looks like a real fix.
// (0,0) is what modems report before the first fix.
func (p Position) Valid() bool {
	if p.Latitude == 0 && p.Longitude == 0 {
		return false
	}
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return false
	}
	return true
}

// Distance returns the great-circle distance in meters (haversine).
func Distance(a, b Position) float64 {
	deg2rad := func(deg float64) float64 { return deg * (math.Pi / 180.0) }

	dLat := deg2rad(b.Latitude - a.Latitude)
	dLon := deg2rad(b.Longitude - a.Longitude)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Pow(math.Sin(dLon/2), 2)*math.Cos(deg2rad(a.Latitude))*math.Cos(deg2rad(b.Latitude))
	return earthRadiusMeters * 2 * math.Asin(math.Sqrt(h))
}

// DistanceBetween is Distance over two Locatable values.
func DistanceBetween(a, b Locatable) float64 {
	return Distance(a.Location(), b.Location())
}
