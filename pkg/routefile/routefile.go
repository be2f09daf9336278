// Package routefile reads and writes the route and track CSV files shared by
// the fetch, plot and tracking commands.
//
// Routes use the semicolon-separated flights-analysis layout:
//
//	DepLat;DepLon;ArrLat;ArrLon;NbFlights;CO2Intensity
//
// Tracks are comma-separated position histories with metric and imperial
// columns side by side.
package routefile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
	"github.com/unklstewy/ads-routes/pkg/routes"
	"github.com/unklstewy/ads-routes/pkg/tracking"
)

// DefaultCO2Intensity is written in the CO2Intensity column. Snapshots carry
// no emissions data, so the value is a placeholder.
const DefaultCO2Intensity = 50.0

// missingValue marks an absent field in route files.
const missingValue = `\N`

// RoutesHeader is the header row of a routes file.
var RoutesHeader = []string{"DepLat", "DepLon", "ArrLat", "ArrLon", "NbFlights", "CO2Intensity"}

// TrackHeader is the header row of a track file.
var TrackHeader = []string{
	"Timestamp", "Callsign", "ICAO", "Latitude", "Longitude",
	"Altitude_m", "Altitude_ft", "Speed_mps", "Speed_kts",
	"Track", "VertRate_mps", "VertRate_fpm",
	"Registration", "AircraftType", "Origin", "Destination",
}

// Route is one row of a routes file.
type Route struct {
	routes.RouteRecord
	CO2Intensity float64 `json:"co2_intensity"`
}

// WriteRoutes writes records in routes-file format.
func WriteRoutes(w io.Writer, records []routes.RouteRecord, co2 float64) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	if err := cw.Write(RoutesHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			formatCoord(r.DepLat),
			formatCoord(r.DepLon),
			formatCoord(r.ArrLat),
			formatCoord(r.ArrLon),
			strconv.Itoa(r.Count),
			formatCoord(co2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write route: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteRoutesFile writes records to path, replacing any existing file.
func WriteRoutesFile(path string, records []routes.RouteRecord, co2 float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteRoutes(f, records, co2); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadRoutes parses a routes file. The first row is always treated as a
// header. Rows containing \N in any field are skipped, as are blank lines.
func ReadRoutes(r io.Reader) ([]Route, error) {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []Route
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 {
			continue
		}
		if len(rec) < 5 {
			return nil, fmt.Errorf("line %d: expected at least 5 fields, got %d", line, len(rec))
		}
		if hasMissing(rec) {
			continue
		}

		route, err := parseRoute(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, route)
	}
	return out, nil
}

// ReadRoutesFile reads a routes file from disk.
func ReadRoutesFile(path string) ([]Route, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRoutes(f)
}

// Records strips the CO2 column.
func Records(rs []Route) []routes.RouteRecord {
	out := make([]routes.RouteRecord, len(rs))
	for i, r := range rs {
		out[i] = r.RouteRecord
	}
	return out
}

func parseRoute(rec []string) (Route, error) {
	var vals [4]float64
	for i := range vals {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return Route{}, fmt.Errorf("field %s: %w", RoutesHeader[i], err)
		}
		vals[i] = v
	}

	// Counts are integral, but some exporters write them as floats
	countF, err := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
	if err != nil {
		return Route{}, fmt.Errorf("field NbFlights: %w", err)
	}

	route := Route{
		RouteRecord: routes.RouteRecord{
			DepLat: vals[0],
			DepLon: vals[1],
			ArrLat: vals[2],
			ArrLon: vals[3],
			Count:  int(countF),
		},
		CO2Intensity: DefaultCO2Intensity,
	}
	if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
		co2, err := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
		if err != nil {
			return Route{}, fmt.Errorf("field CO2Intensity: %w", err)
		}
		route.CO2Intensity = co2
	}
	return route, nil
}

func hasMissing(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) == missingValue {
			return true
		}
	}
	return false
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 5, 64)
}

// PathRoutes connects consecutive track positions as single-flight segments
// so a track can be drawn with the route renderer.
func PathRoutes(points []tracking.TrackPoint) []routes.RouteRecord {
	if len(points) < 2 {
		return nil
	}
	out := make([]routes.RouteRecord, 0, len(points)-1)
	for i := 0; i < len(points)-1; i++ {
		p1, p2 := points[i], points[i+1]
		out = append(out, routes.RouteRecord{
			DepLat: p1.Latitude,
			DepLon: p1.Longitude,
			ArrLat: p2.Latitude,
			ArrLon: p2.Longitude,
			Count:  1,
		})
	}
	return out
}

// WriteTrack writes a position history as comma-separated rows.
// Optional values that are absent are left empty.
func WriteTrack(w io.Writer, points []tracking.TrackPoint) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(TrackHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, p := range points {
		row := []string{
			p.Timestamp.UTC().Format(time.RFC3339),
			p.Callsign,
			p.ICAO,
			strconv.FormatFloat(p.Latitude, 'f', 6, 64),
			strconv.FormatFloat(p.Longitude, 'f', 6, 64),
			optional(p.AltitudeM(), 1),
			optional(p.AltitudeFt, 0),
			optional(p.SpeedMps(), 2),
			optional(p.GroundSpeedKts, 1),
			optional(p.Track, 1),
			optional(p.VerticalRateMps(), 2),
			optional(p.VerticalRateFpm, 0),
			p.Registration,
			p.Type,
			p.Origin,
			p.Destination,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write track point: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteTrackFile writes a position history to path.
func WriteTrackFile(path string, points []tracking.TrackPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteTrack(f, points); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadTrack parses a track file written by WriteTrack. Columns are matched
// by header name; feet are preferred over metres when both are present.
func ReadTrack(r io.Reader) ([]tracking.TrackPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, required := range []string{"Latitude", "Longitude"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %s", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []tracking.TrackPoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		lat, err := strconv.ParseFloat(field(rec, "Latitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		lon, err := strconv.ParseFloat(field(rec, "Longitude"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: longitude: %w", line, err)
		}

		p := tracking.TrackPoint{
			Callsign:     field(rec, "Callsign"),
			ICAO:         field(rec, "ICAO"),
			Registration: field(rec, "Registration"),
			Type:         field(rec, "AircraftType"),
			Origin:       field(rec, "Origin"),
			Destination:  field(rec, "Destination"),
			Latitude:     lat,
			Longitude:    lon,
		}
		if ts := field(rec, "Timestamp"); ts != "" {
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				p.Timestamp = t
			}
		}

		p.AltitudeFt = parseOptional(field(rec, "Altitude_ft"), 1)
		if p.AltitudeFt == nil {
			p.AltitudeFt = parseOptional(field(rec, "Altitude_m"), coordinates.MetersToFeet)
		}
		p.GroundSpeedKts = parseOptional(field(rec, "Speed_kts"), 1)
		if p.GroundSpeedKts == nil {
			p.GroundSpeedKts = parseOptional(field(rec, "Speed_mps"), coordinates.MetersPerSecondToKnots)
		}
		p.Track = parseOptional(field(rec, "Track"), 1)
		p.VerticalRateFpm = parseOptional(field(rec, "VertRate_fpm"), 1)
		if p.VerticalRateFpm == nil {
			p.VerticalRateFpm = parseOptional(field(rec, "VertRate_mps"), coordinates.MetersPerSecondToFeetPerMinute)
		}

		out = append(out, p)
	}
	return out, nil
}

func optional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func parseOptional(s string, factor float64) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	v *= factor
	return &v
}
