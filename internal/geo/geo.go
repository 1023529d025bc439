// Package geo provides the geodesy primitives the planner is built on:
// haversine distance, the grid-street walking detour model, travel time
// estimators and nearest-vertex projection onto pattern polylines.
package geo

import "math"

const earthRadius = 6371000 // meters

// LatLng is a WGS-84 coordinate pair
type LatLng struct {
	Lat float64
	Lon float64
}

// Haversine calculates the straight-line distance between two coordinates in meters
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// WalkingDistance scales the straight-line distance between two points by a
// detour factor that models walking along the Santa Cruz street grid.
// The factor grows with distance: short hops cut few corners, long walks
// zig-zag through many blocks.
//
// Every user-facing walking distance must go through this function; raw
// haversine would route pedestrians through buildings.
func WalkingDistance(lat1, lon1, lat2, lon2 float64) float64 {
	straight := Haversine(lat1, lon1, lat2, lon2)
	return straight * detourFactor(straight)
}

func detourFactor(straightM float64) float64 {
	switch {
	case straightM < 200:
		return 1.3
	case straightM < 500:
		return 1.5
	case straightM < 1000:
		return 1.7
	default:
		return 2.0
	}
}

// PathDistance sums the haversine distances along an ordered coordinate
// sequence. Fewer than two points yields 0.
func PathDistance(coords []LatLng) float64 {
	var total float64
	for i := 0; i+1 < len(coords); i++ {
		total += Haversine(coords[i].Lat, coords[i].Lon, coords[i+1].Lat, coords[i+1].Lon)
	}
	return total
}

// TravelTime converts a distance in meters to whole seconds at the given
// speed in meters per minute, flooring the result.
func TravelTime(distanceM, speedMPerMin float64) int {
	return int((distanceM / speedMPerMin) * 60)
}

// ClosestVertex returns the polyline vertex nearest to the query point and
// its index. Ties resolve to the earliest index. The planner boards and
// alights only at authored vertices; no point is ever interpolated onto a
// segment, so results are reproducible bit-for-bit.
func ClosestVertex(coords []LatLng, lat, lon float64) (LatLng, int) {
	if len(coords) == 0 {
		return LatLng{Lat: lat, Lon: lon}, 0
	}

	closest := coords[0]
	closestIdx := 0
	minDist := math.Inf(1)

	for i, p := range coords {
		d := Haversine(lat, lon, p.Lat, p.Lon)
		if d < minDist {
			minDist = d
			closest = p
			closestIdx = i
		}
	}

	return closest, closestIdx
}
