package adsb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// Aircraft represents one aircraft position from a snapshot.
// All position data is in WGS84 coordinate system. Fields a provider may
// omit are pointers; nil means "not reported", never zero.
type Aircraft struct {
	// ICAO is the unique 24-bit ICAO aircraft address (e.g., "a12345")
	ICAO string

	// Callsign is the flight number or aircraft registration, trimmed
	Callsign string

	// Registration is the tail number, when the provider reports it
	Registration string

	// Type is the ICAO aircraft type designator (e.g., "B738")
	Type string

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64

	// Altitude in feet above mean sea level
	Altitude *float64

	// GroundSpeed in knots
	GroundSpeed *float64

	// Track is the ground track (heading) in degrees (0-360)
	// 0 = North, 90 = East, 180 = South, 270 = West
	Track *float64

	// VerticalRate in feet per minute (positive = climbing)
	VerticalRate *float64

	// OnGround is true when the provider flags the aircraft as on the ground
	OnGround bool

	// Origin and Destination are airport codes, when the provider has them
	Origin      string
	Destination string

	// LastSeen is the timestamp of the last position update
	LastSeen time.Time
}

// Position returns the aircraft position.
func (a Aircraft) Position() coordinates.Geographic {
	return coordinates.Geographic{Latitude: a.Latitude, Longitude: a.Longitude}
}

// Observation converts the aircraft to aggregator input.
func (a Aircraft) Observation() routes.Observation {
	return routes.Observation{
		Latitude:    a.Latitude,
		Longitude:   a.Longitude,
		Heading:     a.Track,
		GroundSpeed: a.GroundSpeed,
	}
}

// Bounds is a latitude/longitude rectangle in decimal degrees.
type Bounds struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Contains reports whether p lies inside the rectangle (edges inclusive).
func (b Bounds) Contains(p coordinates.Geographic) bool {
	return p.Latitude >= b.MinLat && p.Latitude <= b.MaxLat &&
		p.Longitude >= b.MinLon && p.Longitude <= b.MaxLon
}

// Validate checks the ordering and range of the corners.
func (b Bounds) Validate() error {
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return fmt.Errorf("bounds min must not exceed max: %+v", b)
	}
	if !(coordinates.Geographic{Latitude: b.MinLat, Longitude: b.MinLon}).Valid() ||
		!(coordinates.Geographic{Latitude: b.MaxLat, Longitude: b.MaxLon}).Valid() {
		return fmt.Errorf("bounds outside valid coordinate range: %+v", b)
	}
	return nil
}

// Region selects which aircraft a snapshot should contain.
// Bounds takes precedence over Center/RadiusKm; a zero Region means the
// whole world.
type Region struct {
	Name string

	Bounds *Bounds

	Center   *coordinates.Geographic
	RadiusKm float64
}

// Global reports whether the region places no restriction on position.
func (r Region) Global() bool {
	return r.Bounds == nil && (r.Center == nil || r.RadiusKm <= 0)
}

// Contains reports whether p is inside the region.
func (r Region) Contains(p coordinates.Geographic) bool {
	switch {
	case r.Bounds != nil:
		return r.Bounds.Contains(p)
	case r.Center != nil && r.RadiusKm > 0:
		return coordinates.DistanceKm(*r.Center, p) <= r.RadiusKm
	default:
		return true
	}
}

// BoundingBox returns a rectangle enclosing the region.
func (r Region) BoundingBox() Bounds {
	switch {
	case r.Bounds != nil:
		return *r.Bounds
	case r.Center != nil && r.RadiusKm > 0:
		minLat, minLon, maxLat, maxLon := coordinates.BoundingBoxAround(*r.Center, r.RadiusKm)
		return Bounds{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
	default:
		return Bounds{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}
	}
}

func (r Region) String() string {
	if r.Name != "" {
		return r.Name
	}
	switch {
	case r.Bounds != nil:
		return fmt.Sprintf("bounds(%.2f,%.2f,%.2f,%.2f)", r.Bounds.MinLat, r.Bounds.MinLon, r.Bounds.MaxLat, r.Bounds.MaxLon)
	case r.Center != nil && r.RadiusKm > 0:
		return fmt.Sprintf("%.0fkm around (%.4f,%.4f)", r.RadiusKm, r.Center.Latitude, r.Center.Longitude)
	default:
		return "global"
	}
}

// Filter returns the aircraft inside the region, preserving order.
func Filter(aircraft []Aircraft, region Region) []Aircraft {
	if region.Global() {
		return aircraft
	}
	out := make([]Aircraft, 0, len(aircraft))
	for _, ac := range aircraft {
		if region.Contains(ac.Position()) {
			out = append(out, ac)
		}
	}
	return out
}

// FindByCallsign returns the first aircraft whose trimmed callsign matches
// one of the candidates (case-insensitive), or nil.
func FindByCallsign(aircraft []Aircraft, candidates ...string) *Aircraft {
	for i := range aircraft {
		cs := strings.TrimSpace(aircraft[i].Callsign)
		for _, c := range candidates {
			if strings.EqualFold(cs, c) {
				return &aircraft[i]
			}
		}
	}
	return nil
}

// DataSource is the interface that all ADS-B data providers must implement.
// This abstraction allows switching between online services (ADS-B Exchange,
// airplanes.live, OpenSky) without touching the aggregation code.
type DataSource interface {
	// Name identifies the provider in logs.
	Name() string

	// Snapshot returns the aircraft currently tracked inside region.
	// Aircraft without a position are never returned.
	Snapshot(ctx context.Context, region Region) ([]Aircraft, error)

	// Close cleanly shuts down the data source connection.
	Close() error
}
