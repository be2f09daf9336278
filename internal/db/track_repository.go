package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
	"github.com/unklstewy/ads-routes/pkg/tracking"
)

// TrackRepository stores the position history of followed flights.
type TrackRepository struct {
	db *DB
}

// NewTrackRepository creates a new track repository.
func NewTrackRepository(db *DB) *TrackRepository {
	return &TrackRepository{db: db}
}

// InsertPoints stores points in order, skipping any that repeat the previous
// position of the same aircraft. Deltas to the previous stored point are
// recorded alongside. It returns how many points were written.
func (r *TrackRepository) InsertPoints(ctx context.Context, points []tracking.TrackPoint) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	last := make(map[string]*tracking.TrackPoint)
	written := 0

	for i := range points {
		p := points[i]

		prev, ok := last[p.ICAO]
		if !ok {
			prev, err = latestPoint(ctx, tx, p.ICAO)
			if err != nil {
				return written, err
			}
			last[p.ICAO] = prev
		}

		if prev != nil && positionsEqual(p, *prev) {
			continue
		}

		var deltaTime, deltaDistance sql.NullFloat64
		if prev != nil {
			if dt := p.Timestamp.Sub(prev.Timestamp).Seconds(); dt > 0 {
				deltaTime = sql.NullFloat64{Float64: dt, Valid: true}
				deltaDistance = sql.NullFloat64{
					Float64: coordinates.DistanceNauticalMiles(prev.Position(), p.Position()),
					Valid:   true,
				}
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO track_points (
				icao, callsign, timestamp, latitude, longitude,
				altitude_ft, ground_speed_kts, track_deg, vertical_rate_fpm,
				registration, aircraft_type, origin, destination,
				delta_time_seconds, delta_distance_nm
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			p.ICAO, p.Callsign, p.Timestamp.UTC(), p.Latitude, p.Longitude,
			p.AltitudeFt, p.GroundSpeedKts, p.Track, p.VerticalRateFpm,
			p.Registration, p.Type, p.Origin, p.Destination,
			deltaTime, deltaDistance,
		)
		if err != nil {
			return written, fmt.Errorf("failed to insert track point: %w", err)
		}

		last[p.ICAO] = &p
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit track points: %w", err)
	}
	return written, nil
}

// latestPoint returns the newest stored point for icao, or nil.
func latestPoint(ctx context.Context, tx *sql.Tx, icao string) (*tracking.TrackPoint, error) {
	p := tracking.TrackPoint{ICAO: icao}
	var alt, gs sql.NullFloat64
	err := tx.QueryRowContext(ctx,
		`SELECT timestamp, latitude, longitude, altitude_ft, ground_speed_kts
		 FROM track_points WHERE icao = $1
		 ORDER BY timestamp DESC LIMIT 1`,
		icao,
	).Scan(&p.Timestamp, &p.Latitude, &p.Longitude, &alt, &gs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query previous position: %w", err)
	}
	p.AltitudeFt = nullable(alt)
	p.GroundSpeedKts = nullable(gs)
	return &p, nil
}

// GetTrack returns the stored points of a callsign since a time, oldest first.
func (r *TrackRepository) GetTrack(ctx context.Context, callsign string, since time.Time) ([]tracking.TrackPoint, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT icao, callsign, timestamp, latitude, longitude,
		        altitude_ft, ground_speed_kts, track_deg, vertical_rate_fpm,
		        registration, aircraft_type, origin, destination
		 FROM track_points
		 WHERE callsign = $1 AND timestamp >= $2
		 ORDER BY timestamp ASC, id ASC`,
		callsign, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []tracking.TrackPoint
	for rows.Next() {
		var p tracking.TrackPoint
		var alt, gs, track, vr sql.NullFloat64
		err := rows.Scan(
			&p.ICAO, &p.Callsign, &p.Timestamp, &p.Latitude, &p.Longitude,
			&alt, &gs, &track, &vr,
			&p.Registration, &p.Type, &p.Origin, &p.Destination,
		)
		if err != nil {
			return nil, err
		}
		p.AltitudeFt = nullable(alt)
		p.GroundSpeedKts = nullable(gs)
		p.Track = nullable(track)
		p.VerticalRateFpm = nullable(vr)
		points = append(points, p)
	}

	return points, rows.Err()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

// positionsEqual checks if two track points are effectively identical.
// This prevents storing redundant history for a stationary aircraft.
func positionsEqual(current, prev tracking.TrackPoint) bool {
	// Position tolerance: 0.000001 degrees ≈ 0.1 meters
	const positionTolerance = 0.000001
	// Altitude tolerance: 1 foot
	const altitudeTolerance = 1.0
	// Speed threshold: consider stationary below 1 knot
	const speedThreshold = 1.0

	latChanged := math.Abs(current.Latitude-prev.Latitude) > positionTolerance
	lonChanged := math.Abs(current.Longitude-prev.Longitude) > positionTolerance
	altChanged := math.Abs(value(current.AltitudeFt)-value(prev.AltitudeFt)) > altitudeTolerance

	// Either sample moving means the aircraft is in motion
	isMoving := value(current.GroundSpeedKts) >= speedThreshold || value(prev.GroundSpeedKts) >= speedThreshold

	return !latChanged && !lonChanged && !altChanged && !isMoving
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
