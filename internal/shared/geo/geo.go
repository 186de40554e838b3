package geo

import "math"

const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between two points in km.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// BoundingDeltas converts a radius into latitude/longitude half-widths for a
// rectangular prefilter around centerLat. The cosine divisor is clamped so the
// longitude band stays bounded near the poles. Longitude wrap at ±180 is not
// handled; searches centered near the antimeridian may miss candidates across it.
func BoundingDeltas(centerLat, radiusKm float64) (latDelta, lngDelta float64) {
	latDelta = radiusKm / EarthRadiusKm * (180 / math.Pi)
	cosLat := math.Cos(centerLat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lngDelta = latDelta / cosLat
	return latDelta, lngDelta
}

// RoundKm rounds a distance to two decimal places for presentation.
func RoundKm(d float64) float64 {
	return math.Round(d*100) / 100
}
