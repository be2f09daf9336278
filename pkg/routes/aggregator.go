// Package routes turns single-snapshot aircraft observations into
// approximate departure/arrival route records.
//
// A snapshot carries no flight-plan data, so each observation is projected
// backward and forward along its heading by a fixed half-segment and both
// ends are snapped to a coordinate grid. Observations whose projected ends
// land in the same pair of cells are counted as one route. This is a
// heuristic; it is not trajectory reconstruction.
package routes

import (
	"math"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
)

// Defaults used when the corresponding Options field is zero.
const (
	DefaultGridResolution  = 1.0
	DefaultMinFlights      = 1
	DefaultSegmentLengthKm = 500.0
	DefaultHorizonHours    = 1.0
)

// Policy selects how the projected segment length is chosen.
type Policy int

const (
	// PolicyConstant always uses Options.SegmentLengthKm. Ground speed is
	// informational only.
	PolicyConstant Policy = iota

	// PolicySpeedScaled uses ground speed × Options.HorizonHours when a
	// ground speed is present, and Options.SegmentLengthKm otherwise.
	PolicySpeedScaled
)

func (p Policy) String() string {
	switch p {
	case PolicyConstant:
		return "constant"
	case PolicySpeedScaled:
		return "speed-scaled"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a policy name ("constant", "speed-scaled") to a Policy.
func ParsePolicy(name string) (Policy, bool) {
	switch name {
	case "", "constant":
		return PolicyConstant, true
	case "speed-scaled", "speed":
		return PolicySpeedScaled, true
	default:
		return PolicyConstant, false
	}
}

// Options configures an Aggregator.
type Options struct {
	// GridResolution is the cell size in degrees. Must be > 0.
	GridResolution float64

	// MinFlights is the threshold used by DefaultRoutes (default 1).
	MinFlights int

	// SegmentLengthKm is the assumed full route length; each observation is
	// projected half of it in both directions (default 500).
	SegmentLengthKm float64

	// Policy selects constant or speed-scaled projection (default constant).
	Policy Policy

	// HorizonHours is the flight time each way used by PolicySpeedScaled.
	HorizonHours float64

	// MinGroundSpeedKts skips observations that report a ground speed below
	// this value (taxiing or parked aircraft). 0 disables the check.
	// Observations without a ground speed are never skipped by this rule.
	MinGroundSpeedKts float64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		GridResolution:  DefaultGridResolution,
		MinFlights:      DefaultMinFlights,
		SegmentLengthKm: DefaultSegmentLengthKm,
		Policy:          PolicyConstant,
		HorizonHours:    DefaultHorizonHours,
	}
}

// Observation is one aircraft position from one snapshot.
type Observation struct {
	Latitude  float64
	Longitude float64

	// Heading in degrees clockwise from true north; nil when the aircraft
	// is not transmitting track.
	Heading *float64

	// GroundSpeed in knots; nil when not reported.
	GroundSpeed *float64
}

// RouteRecord is one aggregated (departure cell, arrival cell) pair.
// Coordinates are cell centres.
type RouteRecord struct {
	DepLat float64 `json:"dep_lat"`
	DepLon float64 `json:"dep_lon"`
	ArrLat float64 `json:"arr_lat"`
	ArrLon float64 `json:"arr_lon"`
	Count  int     `json:"count"`
}

// Departure returns the departure point as a Geographic.
func (r RouteRecord) Departure() coordinates.Geographic {
	return coordinates.Geographic{Latitude: r.DepLat, Longitude: r.DepLon}
}

// Arrival returns the arrival point as a Geographic.
func (r RouteRecord) Arrival() coordinates.Geographic {
	return coordinates.Geographic{Latitude: r.ArrLat, Longitude: r.ArrLon}
}

// Stats counts what happened to the observations passed to Add.
type Stats struct {
	Observations     int
	Aggregated       int
	SkippedNoHeading int
	SkippedSlow      int
	Invalid          int
}

type routeKey struct {
	dep GridCell
	arr GridCell
}

// Aggregator accumulates observations into route records.
// It is not safe for concurrent use; use one aggregator per goroutine and
// combine them with Merge.
type Aggregator struct {
	opts   Options
	grid   Grid
	routes map[routeKey]*RouteRecord
	order  []routeKey
	stats  Stats
}

// NewAggregator validates opts and returns an empty aggregator.
// Zero MinFlights, SegmentLengthKm and HorizonHours fall back to defaults;
// GridResolution has no default and must be > 0.
func NewAggregator(opts Options) (*Aggregator, error) {
	if math.IsNaN(opts.GridResolution) || math.IsInf(opts.GridResolution, 0) || opts.GridResolution <= 0 {
		return nil, &ConfigurationError{Field: "grid_resolution", Value: opts.GridResolution, Reason: "must be > 0"}
	}
	if opts.GridResolution > 180 {
		return nil, &ConfigurationError{Field: "grid_resolution", Value: opts.GridResolution, Reason: "must be <= 180"}
	}

	if opts.MinFlights == 0 {
		opts.MinFlights = DefaultMinFlights
	}
	if opts.MinFlights < 0 {
		return nil, &ConfigurationError{Field: "min_flights", Value: float64(opts.MinFlights), Reason: "must be >= 1"}
	}

	if opts.SegmentLengthKm == 0 {
		opts.SegmentLengthKm = DefaultSegmentLengthKm
	}
	if math.IsNaN(opts.SegmentLengthKm) || math.IsInf(opts.SegmentLengthKm, 0) || opts.SegmentLengthKm < 0 {
		return nil, &ConfigurationError{Field: "segment_length_km", Value: opts.SegmentLengthKm, Reason: "must be > 0"}
	}

	if opts.HorizonHours == 0 {
		opts.HorizonHours = DefaultHorizonHours
	}
	if opts.HorizonHours < 0 {
		return nil, &ConfigurationError{Field: "horizon_hours", Value: opts.HorizonHours, Reason: "must be > 0"}
	}

	if opts.Policy != PolicyConstant && opts.Policy != PolicySpeedScaled {
		return nil, &ConfigurationError{Field: "policy", Value: float64(opts.Policy), Reason: "unknown projection policy"}
	}

	if opts.MinGroundSpeedKts < 0 {
		return nil, &ConfigurationError{Field: "min_ground_speed_kts", Value: opts.MinGroundSpeedKts, Reason: "must be >= 0"}
	}

	return &Aggregator{
		opts:   opts,
		grid:   newGrid(opts.GridResolution),
		routes: make(map[routeKey]*RouteRecord),
	}, nil
}

// Options returns the effective options, with defaults applied.
func (a *Aggregator) Options() Options {
	return a.opts
}

// Grid returns the grid used for snapping.
func (a *Aggregator) Grid() Grid {
	return a.grid
}

// Stats returns the observation counters.
func (a *Aggregator) Stats() Stats {
	return a.stats
}

// Len returns the number of distinct route records.
func (a *Aggregator) Len() int {
	return len(a.routes)
}

// Add projects one observation and counts it against its route record.
//
// An observation without a heading is skipped and nil is returned. An
// observation outside the valid coordinate ranges is skipped and an
// InvalidObservationError is returned; the aggregator stays usable.
func (a *Aggregator) Add(obs Observation) error {
	a.stats.Observations++

	pos := coordinates.Geographic{Latitude: obs.Latitude, Longitude: obs.Longitude}
	if !pos.Valid() {
		a.stats.Invalid++
		return &InvalidObservationError{Latitude: obs.Latitude, Longitude: obs.Longitude}
	}

	if obs.Heading == nil || math.IsNaN(*obs.Heading) || math.IsInf(*obs.Heading, 0) {
		a.stats.SkippedNoHeading++
		return nil
	}

	if a.opts.MinGroundSpeedKts > 0 && obs.GroundSpeed != nil && *obs.GroundSpeed < a.opts.MinGroundSpeedKts {
		a.stats.SkippedSlow++
		return nil
	}

	heading := coordinates.NormalizeAzimuth(*obs.Heading)
	half := a.segmentLength(obs) / 2

	// Project from the centre of the observation's own cell so that every
	// observation in one cell with one heading lands on the same record.
	origin := a.grid.Center(a.grid.Cell(pos))
	dep := coordinates.DestinationPoint(origin, heading+180, half)
	arr := coordinates.DestinationPoint(origin, heading, half)

	key := routeKey{dep: a.grid.Cell(dep), arr: a.grid.Cell(arr)}
	rec, ok := a.routes[key]
	if !ok {
		depCenter := a.grid.Center(key.dep)
		arrCenter := a.grid.Center(key.arr)
		rec = &RouteRecord{
			DepLat: depCenter.Latitude,
			DepLon: depCenter.Longitude,
			ArrLat: arrCenter.Latitude,
			ArrLon: arrCenter.Longitude,
		}
		a.routes[key] = rec
		a.order = append(a.order, key)
	}
	rec.Count++
	a.stats.Aggregated++

	return nil
}

func (a *Aggregator) segmentLength(obs Observation) float64 {
	if a.opts.Policy == PolicySpeedScaled && obs.GroundSpeed != nil && *obs.GroundSpeed > 0 {
		return *obs.GroundSpeed * coordinates.KmPerNauticalMile * a.opts.HorizonHours * 2
	}
	return a.opts.SegmentLengthKm
}

// Routes returns a copy of every record with Count >= minFlights, in the
// order the records were first created. Values below 1 are treated as 1.
// Later calls to Add do not modify the returned slice.
func (a *Aggregator) Routes(minFlights int) []RouteRecord {
	if minFlights < 1 {
		minFlights = 1
	}
	out := make([]RouteRecord, 0, len(a.order))
	for _, key := range a.order {
		rec := a.routes[key]
		if rec.Count >= minFlights {
			out = append(out, *rec)
		}
	}
	return out
}

// DefaultRoutes is Routes with the configured MinFlights.
func (a *Aggregator) DefaultRoutes() []RouteRecord {
	return a.Routes(a.opts.MinFlights)
}

// Merge adds other's counts into a. Records with the same cell pair are
// summed; their stored centres are identical by construction. Both
// aggregators must share grid resolution, segment length and policy.
func (a *Aggregator) Merge(other *Aggregator) error {
	if other == nil || other == a {
		return nil
	}
	if other.opts.GridResolution != a.opts.GridResolution {
		return &ConfigurationError{Field: "grid_resolution", Value: other.opts.GridResolution, Reason: "differs from merge target"}
	}
	if other.opts.SegmentLengthKm != a.opts.SegmentLengthKm {
		return &ConfigurationError{Field: "segment_length_km", Value: other.opts.SegmentLengthKm, Reason: "differs from merge target"}
	}
	if other.opts.Policy != a.opts.Policy || other.opts.HorizonHours != a.opts.HorizonHours {
		return &ConfigurationError{Field: "policy", Value: float64(other.opts.Policy), Reason: "differs from merge target"}
	}

	for _, key := range other.order {
		src := other.routes[key]
		if dst, ok := a.routes[key]; ok {
			dst.Count += src.Count
			continue
		}
		rec := *src
		a.routes[key] = &rec
		a.order = append(a.order, key)
	}

	a.stats.Observations += other.stats.Observations
	a.stats.Aggregated += other.stats.Aggregated
	a.stats.SkippedNoHeading += other.stats.SkippedNoHeading
	a.stats.SkippedSlow += other.stats.SkippedSlow
	a.stats.Invalid += other.stats.Invalid

	return nil
}
