// Package geo computes distances between coordinates and the score a guess earns.
package geo

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius
const EarthRadiusKm = 6371.0088

// Distance returns the great-circle distance in kilometres between two points
// given in degrees.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * EarthRadiusKm
}

// Score maps a distance onto [0, maxScore]. It decreases linearly and reaches 0
// at maxDistance.
func Score(distance, maxDistance float64, maxScore int) int {
	if maxDistance <= 0 || distance >= maxDistance {
		return 0
	}
	if distance <= 0 {
		return maxScore
	}
	score := float64(maxScore) * (1 - distance/maxDistance)
	return int(math.Round(score))
}

// ValidCoordinates reports whether lat/lng are finite degrees within range
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Destination returns the point reached by travelling distanceKm from
// (lat, lng) along the initial bearing, in degrees clockwise from north.
func Destination(lat, lng, bearing, distanceKm float64) (float64, float64) {
	start := s2.LatLngFromDegrees(lat, lng)
	phi1, lambda1 := start.Lat.Radians(), start.Lng.Radians()
	theta := bearing * math.Pi / 180
	delta := distanceKm / EarthRadiusKm

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta))
	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	end := s2.LatLng{Lat: s1.Angle(phi2), Lng: s1.Angle(lambda2)}.Normalized()
	return end.Lat.Degrees(), end.Lng.Degrees()
}
