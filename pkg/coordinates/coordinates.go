package coordinates

import (
	"math"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's radius in kilometers (WGS84 mean radius)
	EarthRadiusKm = 6371.0

	// KmPerNauticalMile is the length of one nautical mile in kilometers
	KmPerNauticalMile = 1.852

	// FeetToMeters converts feet to meters
	FeetToMeters = 0.3048

	// MetersToFeet converts meters to feet
	MetersToFeet = 3.28084

	// KnotsToMetersPerSecond converts knots to m/s
	KnotsToMetersPerSecond = 0.514444444

	// MetersPerSecondToKnots converts m/s to knots
	MetersPerSecondToKnots = 1.94384

	// MetersPerSecondToFeetPerMinute converts m/s to ft/min
	MetersPerSecondToFeetPerMinute = 196.85
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64
}

// Valid reports whether the position lies within [-90, 90] x [-180, 180].
func (g Geographic) Valid() bool {
	return g.Latitude >= -90 && g.Latitude <= 90 &&
		g.Longitude >= -180 && g.Longitude <= 180
}

// ToRadians converts the Geographic coordinates to radians.
// Returns (latRad, lonRad).
func (g Geographic) ToRadians() (float64, float64) {
	return g.Latitude * DegreesToRadians, g.Longitude * DegreesToRadians
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
// A heading of 360 becomes 0 (due north).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	// math.Mod of a tiny negative value can round back up to 360
	if az >= 360.0 {
		az = 0
	}
	return az
}

// NormalizeLongitude wraps a longitude into [-180, 180).
func NormalizeLongitude(lon float64) float64 {
	l := math.Mod(lon+180.0, 360.0)
	if l < 0 {
		l += 360.0
	}
	return l - 180.0
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Uses spherical trigonometry to calculate the bearing along a great circle.
// Returns bearing in degrees (0-360), where 0/360 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1, lon1 := from.ToRadians()
	lat2, lon2 := to.ToRadians()

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// DistanceKm calculates the great-circle distance between two points.
// Uses the Haversine formula for accuracy over short and long distances.
func DistanceKm(from, to Geographic) float64 {
	lat1Rad, lon1Rad := from.ToRadians()
	lat2Rad, lon2Rad := to.ToRadians()

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	// Haversine formula
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// DistanceNauticalMiles is DistanceKm expressed in nautical miles.
func DistanceNauticalMiles(from, to Geographic) float64 {
	return DistanceKm(from, to) / KmPerNauticalMile
}

// DestinationPoint returns the point reached by travelling distanceKm from
// start along the great circle with the given initial bearing.
//
//	lat2 = asin(sin(lat1)*cos(d) + cos(lat1)*sin(d)*cos(brg))
//	lon2 = lon1 + atan2(sin(brg)*sin(d)*cos(lat1), cos(d)-sin(lat1)*sin(lat2))
//
// The resulting longitude is normalized to [-180, 180).
func DestinationPoint(start Geographic, bearingDeg, distanceKm float64) Geographic {
	latRad, lonRad := start.ToRadians()
	brgRad := NormalizeAzimuth(bearingDeg) * DegreesToRadians

	// Angular distance
	d := distanceKm / EarthRadiusKm

	newLatRad := math.Asin(
		math.Sin(latRad)*math.Cos(d) +
			math.Cos(latRad)*math.Sin(d)*math.Cos(brgRad),
	)
	newLonRad := lonRad + math.Atan2(
		math.Sin(brgRad)*math.Sin(d)*math.Cos(latRad),
		math.Cos(d)-math.Sin(latRad)*math.Sin(newLatRad),
	)

	return Geographic{
		Latitude:  newLatRad * RadiansToDegrees,
		Longitude: NormalizeLongitude(newLonRad * RadiansToDegrees),
	}
}

// InterpolateGreatCircle finds a point along a great circle path.
// fraction=0 returns start point, fraction=1 returns end point.
//
// Uses spherical linear interpolation (slerp) formula.
func InterpolateGreatCircle(from, to Geographic, fraction float64) Geographic {
	lat1Rad, lon1Rad := from.ToRadians()
	lat2Rad, lon2Rad := to.ToRadians()

	// Angular distance, clamped against rounding outside [-1, 1]
	cosD := math.Sin(lat1Rad)*math.Sin(lat2Rad) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Cos(lon2Rad-lon1Rad)
	d := math.Acos(math.Max(-1, math.Min(1, cosD)))

	// Handle case where points are very close
	if d < 1e-10 {
		return from
	}

	a := math.Sin((1-fraction)*d) / math.Sin(d)
	b := math.Sin(fraction*d) / math.Sin(d)

	// Convert to Cartesian coordinates
	x := a*math.Cos(lat1Rad)*math.Cos(lon1Rad) + b*math.Cos(lat2Rad)*math.Cos(lon2Rad)
	y := a*math.Cos(lat1Rad)*math.Sin(lon1Rad) + b*math.Cos(lat2Rad)*math.Sin(lon2Rad)
	z := a*math.Sin(lat1Rad) + b*math.Sin(lat2Rad)

	latRad := math.Atan2(z, math.Sqrt(x*x+y*y))
	lonRad := math.Atan2(y, x)

	return Geographic{
		Latitude:  latRad * RadiansToDegrees,
		Longitude: lonRad * RadiansToDegrees,
	}
}

// GreatCirclePath samples the great circle between two points.
// The path always contains both endpoints; segments controls how many
// intermediate intervals are produced (minimum 1).
func GreatCirclePath(from, to Geographic, segments int) []Geographic {
	if segments < 1 {
		segments = 1
	}
	path := make([]Geographic, 0, segments+1)
	for i := 0; i <= segments; i++ {
		path = append(path, InterpolateGreatCircle(from, to, float64(i)/float64(segments)))
	}
	// Pin both ends so rounding in the slerp never moves them
	path[0] = from
	path[len(path)-1] = to
	return path
}

// SplitAtAntimeridian breaks a path into parts wherever consecutive points
// jump across the ±180° meridian, so each part can be drawn on a flat map.
func SplitAtAntimeridian(path []Geographic) [][]Geographic {
	if len(path) == 0 {
		return nil
	}
	var parts [][]Geographic
	current := []Geographic{path[0]}
	for i := 1; i < len(path); i++ {
		if math.Abs(path[i].Longitude-path[i-1].Longitude) > 180.0 {
			parts = append(parts, current)
			current = nil
		}
		current = append(current, path[i])
	}
	return append(parts, current)
}

// BoundingBoxAround returns the latitude/longitude box enclosing a circle of
// radiusKm around center. The box is clamped at the poles; longitude span is
// widened to the full range when the circle reaches a pole.
func BoundingBoxAround(center Geographic, radiusKm float64) (minLat, minLon, maxLat, maxLon float64) {
	dLat := radiusKm / EarthRadiusKm * RadiansToDegrees
	minLat = math.Max(-90, center.Latitude-dLat)
	maxLat = math.Min(90, center.Latitude+dLat)

	if minLat <= -90 || maxLat >= 90 {
		return minLat, -180, maxLat, 180
	}

	dLon := dLat / math.Cos(center.Latitude*DegreesToRadians)
	minLon = math.Max(-180, center.Longitude-dLon)
	maxLon = math.Min(180, center.Longitude+dLon)
	return minLat, minLon, maxLat, maxLon
}
