// Package geo holds the pure geographic helpers used by capture and routing.
//
// Distances use the haversine formula on a spherical earth; that is precise enough
// for ordering delivery stops and for sanity checks on GPS fixes.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/UnknownOlympus/hermes/internal/models"
)

// EarthRadiusM is the mean earth radius in metres.
const EarthRadiusM = 6_371_000.0

const (
	mpsToKmh = 3.6
	mpsToMph = 2.2369362920544
)

// ErrInvalidCoordinates is returned for samples that must never reach the upload queue.
var ErrInvalidCoordinates = errors.New("invalid GPS coordinates")

// IsValidGPSCoordinates reports whether lat and lng are finite and inside their ranges.
func IsValidGPSCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}

	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Validate checks a sample before it is queued.
func Validate(sample models.GPSSample) error {
	if !IsValidGPSCoordinates(sample.Latitude, sample.Longitude) {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrInvalidCoordinates, sample.Latitude, sample.Longitude)
	}
	if sample.Accuracy != nil && (*sample.Accuracy < 0 || !isFinite(*sample.Accuracy)) {
		return fmt.Errorf("%w: accuracy=%v", ErrInvalidCoordinates, *sample.Accuracy)
	}
	if sample.Speed != nil && (*sample.Speed < 0 || !isFinite(*sample.Speed)) {
		return fmt.Errorf("%w: speed=%v", ErrInvalidCoordinates, *sample.Speed)
	}
	if sample.Heading != nil && (*sample.Heading < 0 || *sample.Heading >= 360 || !isFinite(*sample.Heading)) {
		return fmt.Errorf("%w: heading=%v", ErrInvalidCoordinates, *sample.Heading)
	}

	return nil
}

// Distance returns the great-circle distance between two points in metres.
func Distance(from, to models.Coordinates) float64 {
	dLat := toRad(to.Latitude - from.Latitude)
	dLng := toRad(to.Longitude - from.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(toRad(from.Latitude))*math.Cos(toRad(to.Latitude))*sinLng*sinLng

	return 2 * EarthRadiusM * math.Asin(math.Sqrt(math.Min(1, h)))
}

// Bearing returns the initial great-circle bearing from one point to another,
// in degrees clockwise from north, normalised to [0, 360).
func Bearing(from, to models.Coordinates) float64 {
	lat1 := toRad(from.Latitude)
	lat2 := toRad(to.Latitude)
	dLng := toRad(to.Longitude - from.Longitude)

	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)

	deg := math.Mod(toDeg(math.Atan2(y, x))+360, 360)
	if deg >= 360 {
		deg = 0
	}

	return deg
}

// MpsToKmh converts metres per second to kilometres per hour.
func MpsToKmh(mps float64) float64 { return mps * mpsToKmh }

// KmhToMps converts kilometres per hour to metres per second.
func KmhToMps(kmh float64) float64 { return kmh / mpsToKmh }

// MpsToMph converts metres per second to miles per hour.
func MpsToMph(mps float64) float64 { return mps * mpsToMph }

// SmoothAccuracy folds a new accuracy reading into a running exponential average.
// A non-positive previous value means there is no history yet. Alpha is clamped to (0, 1].
func SmoothAccuracy(prev, next, alpha float64) float64 {
	if prev <= 0 {
		return next
	}
	if alpha <= 0 || alpha > 1 {
		alpha = 1
	}

	return alpha*next + (1-alpha)*prev
}

// Centroid returns the arithmetic mean of the points. The boolean is false for an empty slice.
func Centroid(points []models.Coordinates) (models.Coordinates, bool) {
	if len(points) == 0 {
		return models.Coordinates{}, false
	}

	var lat, lng float64
	for _, p := range points {
		lat += p.Latitude
		lng += p.Longitude
	}
	n := float64(len(points))

	return models.Coordinates{Latitude: lat / n, Longitude: lng / n}, true
}

// PathLength sums the distances between consecutive points.
func PathLength(points []models.Coordinates) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}

	return total
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
