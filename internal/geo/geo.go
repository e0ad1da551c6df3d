// Package geo validates device locations against the configured geofence.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/tidwall/geodesic"
)

// ErrInvalidCoordinate reports a latitude/longitude pair outside the valid
// range, or NaN/Inf input.
var ErrInvalidCoordinate = errors.New("geo: invalid coordinate")

// ErrInvalidRadius reports a non-positive geofence radius.
var ErrInvalidRadius = errors.New("geo: radius must be a positive number of meters")

// Point is a WGS-84 latitude/longitude pair in degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Valid reports whether the point is a usable coordinate pair.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Distance returns the geodesic distance between two points in meters,
// solved on the WGS-84 ellipsoid (not a spherical approximation).
func Distance(a, b Point) (float64, error) {
	if !a.Valid() {
		return 0, fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, a.Lat, a.Lon)
	}
	if !b.Valid() {
		return 0, fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinate, b.Lat, b.Lon)
	}
	var meters float64
	geodesic.WGS84.Inverse(a.Lat, a.Lon, b.Lat, b.Lon, &meters, nil, nil)
	return meters, nil
}

// WithinRadius reports whether user is within radiusMeters of center,
// along with the computed distance. The boundary is inclusive and the
// comparison uses the raw float distance; rounding is display-only.
func WithinRadius(user, center Point, radiusMeters int) (bool, float64, error) {
	if radiusMeters <= 0 {
		return false, 0, fmt.Errorf("%w: got %d", ErrInvalidRadius, radiusMeters)
	}
	dist, err := Distance(user, center)
	if err != nil {
		return false, 0, err
	}
	return dist <= float64(radiusMeters), dist, nil
}

// Plausible reports whether a point looks like a real device fix.
// (0, 0) almost always means the GPS failed rather than a boat in the
// Gulf of Guinea.
func Plausible(p Point) bool {
	if !p.Valid() {
		return false
	}
	return p.Lat != 0 || p.Lon != 0
}

// FormatCoordinates renders a point for display, e.g. "41.2995°N, 69.2401°E".
func FormatCoordinates(p Point) string {
	latDir, lonDir := "N", "E"
	if p.Lat < 0 {
		latDir = "S"
	}
	if p.Lon < 0 {
		lonDir = "W"
	}
	return fmt.Sprintf("%.4f°%s, %.4f°%s", math.Abs(p.Lat), latDir, math.Abs(p.Lon), lonDir)
}

// DistanceDescription renders a distance for display: meters below 1km,
// tenths of a kilometer above.
func DistanceDescription(meters float64) string {
	if meters < 0 {
		return "invalid distance"
	}
	if meters < 1000 {
		return fmt.Sprintf("%.0fm away", meters)
	}
	return fmt.Sprintf("%.1fkm away", meters/1000)
}
