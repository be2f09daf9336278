// Package tracking follows a single flight by callsign across repeated
// snapshots and keeps its position history.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/unklstewy/ads-routes/pkg/adsb"
	"github.com/unklstewy/ads-routes/pkg/coordinates"
)

// ErrNotFound is matched by NotFoundError.
var ErrNotFound = errors.New("flight not found")

// NotFoundError reports a callsign absent from the current snapshot.
// Similar lists currently tracked callsigns sharing the airline prefix.
type NotFoundError struct {
	Callsign string
	Similar  []string
}

func (e *NotFoundError) Error() string {
	if len(e.Similar) > 0 {
		return fmt.Sprintf("flight %s not found (similar: %s)", e.Callsign, strings.Join(e.Similar, ", "))
	}
	return fmt.Sprintf("flight %s not found", e.Callsign)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// CallsignFinder is implemented by sources that can look a callsign up
// directly instead of downloading a whole snapshot.
type CallsignFinder interface {
	FindCallsign(ctx context.Context, callsigns ...string) (*adsb.Aircraft, error)
}

// TrackPoint is one observed position of the tracked flight.
type TrackPoint struct {
	Timestamp    time.Time
	ICAO         string
	Callsign     string
	Registration string
	Type         string
	Origin       string
	Destination  string

	Latitude  float64
	Longitude float64

	AltitudeFt      *float64
	GroundSpeedKts  *float64
	Track           *float64
	VerticalRateFpm *float64
}

// NewTrackPoint copies the fields of a snapshot aircraft.
func NewTrackPoint(ac adsb.Aircraft) TrackPoint {
	ts := ac.LastSeen
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return TrackPoint{
		Timestamp:       ts,
		ICAO:            strings.ToUpper(ac.ICAO),
		Callsign:        ac.Callsign,
		Registration:    ac.Registration,
		Type:            ac.Type,
		Origin:          ac.Origin,
		Destination:     ac.Destination,
		Latitude:        ac.Latitude,
		Longitude:       ac.Longitude,
		AltitudeFt:      ac.Altitude,
		GroundSpeedKts:  ac.GroundSpeed,
		Track:           ac.Track,
		VerticalRateFpm: ac.VerticalRate,
	}
}

// Position returns the point's position.
func (p TrackPoint) Position() coordinates.Geographic {
	return coordinates.Geographic{Latitude: p.Latitude, Longitude: p.Longitude}
}

// AltitudeM returns the altitude in metres, or nil.
func (p TrackPoint) AltitudeM() *float64 {
	return scale(p.AltitudeFt, coordinates.FeetToMeters)
}

// SpeedMps returns the ground speed in metres per second, or nil.
func (p TrackPoint) SpeedMps() *float64 {
	return scale(p.GroundSpeedKts, coordinates.KnotsToMetersPerSecond)
}

// VerticalRateMps returns the vertical rate in metres per second, or nil.
func (p TrackPoint) VerticalRateMps() *float64 {
	return scale(p.VerticalRateFpm, 1/coordinates.MetersPerSecondToFeetPerMinute)
}

// Estimate dead-reckons the position at a later time along the last known
// track and ground speed. Without both it returns the last position.
func (p TrackPoint) Estimate(at time.Time) coordinates.Geographic {
	if p.Track == nil || p.GroundSpeedKts == nil {
		return p.Position()
	}
	hours := at.Sub(p.Timestamp).Hours()
	if hours <= 0 {
		return p.Position()
	}
	km := *p.GroundSpeedKts * coordinates.KmPerNauticalMile * hours
	return coordinates.DestinationPoint(p.Position(), *p.Track, km)
}

func scale(v *float64, factor float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v * factor
	return &out
}

// Tracker finds one flight in snapshots and records where it was seen.
type Tracker struct {
	Source adsb.DataSource
	Region adsb.Region

	history []TrackPoint
}

// NewTracker creates a tracker searching region of src.
func NewTracker(src adsb.DataSource, region adsb.Region) *Tracker {
	return &Tracker{Source: src, Region: region}
}

// Find returns the aircraft currently broadcasting callsign or one of its
// variations. A missing flight is reported as *NotFoundError.
func (t *Tracker) Find(ctx context.Context, callsign string) (*adsb.Aircraft, error) {
	variations := CallsignVariations(callsign)
	if len(variations) == 0 {
		return nil, errors.New("empty callsign")
	}

	if finder, ok := t.Source.(CallsignFinder); ok {
		ac, err := finder.FindCallsign(ctx, variations...)
		if err != nil {
			return nil, fmt.Errorf("callsign lookup on %s: %w", t.Source.Name(), err)
		}
		if ac == nil {
			return nil, &NotFoundError{Callsign: variations[0]}
		}
		return ac, nil
	}

	aircraft, err := t.Source.Snapshot(ctx, t.Region)
	if err != nil {
		return nil, fmt.Errorf("snapshot from %s: %w", t.Source.Name(), err)
	}

	if ac := adsb.FindByCallsign(aircraft, variations...); ac != nil {
		return ac, nil
	}
	return nil, &NotFoundError{Callsign: variations[0], Similar: similarCallsigns(aircraft, variations, 10)}
}

// similarCallsigns lists up to limit callsigns sharing the first two
// characters of any variation.
func similarCallsigns(aircraft []adsb.Aircraft, variations []string, limit int) []string {
	var prefixes []string
	for _, v := range variations {
		if len(v) >= 2 {
			prefixes = append(prefixes, v[:2])
		}
	}

	seen := make(map[string]bool)
	var out []string
	for _, ac := range aircraft {
		cs := strings.ToUpper(strings.TrimSpace(ac.Callsign))
		if cs == "" || seen[cs] {
			continue
		}
		for _, p := range prefixes {
			if strings.HasPrefix(cs, p) {
				seen[cs] = true
				out = append(out, cs)
				break
			}
		}
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Update is reported to the Follow callback after every poll.
type Update struct {
	// N is the 1-based poll number
	N int

	// Point is the new position, nil when the poll failed
	Point *TrackPoint

	// Err is the poll error; ErrNotFound when the flight was not in the snapshot
	Err error

	// Estimated is a dead-reckoned position from the last fix, set when the
	// poll failed after at least one success
	Estimated *coordinates.Geographic
}

// Follow polls for callsign every interval until updates polls have been
// made (0 = until ctx is done). Failed polls are reported and tolerated.
// Cancelling ctx ends tracking normally; the history collected so far is
// returned with a nil error.
func (t *Tracker) Follow(ctx context.Context, callsign string, interval time.Duration, updates int, fn func(Update)) ([]TrackPoint, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %v", interval)
	}

	for n := 1; updates <= 0 || n <= updates; n++ {
		u := Update{N: n}

		ac, err := t.Find(ctx, callsign)
		switch {
		case ctx.Err() != nil:
			return t.History(), nil
		case err != nil:
			u.Err = err
			if len(t.history) > 0 {
				est := t.history[len(t.history)-1].Estimate(time.Now().UTC())
				u.Estimated = &est
			}
		default:
			p := NewTrackPoint(*ac)
			t.history = append(t.history, p)
			u.Point = &p
		}

		if fn != nil {
			fn(u)
		}

		if updates > 0 && n == updates {
			break
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return t.History(), nil
		case <-timer.C:
		}
	}

	return t.History(), nil
}

// Record appends a point to the history.
func (t *Tracker) Record(p TrackPoint) {
	t.history = append(t.history, p)
}

// History returns a copy of the recorded positions, oldest first.
func (t *Tracker) History() []TrackPoint {
	out := make([]TrackPoint, len(t.history))
	copy(out, t.history)
	return out
}
