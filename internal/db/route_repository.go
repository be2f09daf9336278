package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// RouteRepository archives aggregation runs and their routes.
type RouteRepository struct {
	db *DB
}

// NewRouteRepository creates a new route repository.
func NewRouteRepository(db *DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// Run describes one aggregation run.
type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time

	// Source is the data source name, Region the region label ("" = global)
	Source string
	Region string

	GridResolution  float64
	SegmentLengthKm float64
	Policy          string

	Observations int
	Aggregated   int
	Skipped      int
	RouteCount   int
}

// NewRun fills a run from aggregator settings and counters.
func NewRun(source, region string, started time.Time, agg *routes.Aggregator, routeCount int) Run {
	opts := agg.Options()
	stats := agg.Stats()
	return Run{
		StartedAt:       started.UTC(),
		FinishedAt:      time.Now().UTC(),
		Source:          source,
		Region:          region,
		GridResolution:  opts.GridResolution,
		SegmentLengthKm: opts.SegmentLengthKm,
		Policy:          opts.Policy.String(),
		Observations:    stats.Observations,
		Aggregated:      stats.Aggregated,
		Skipped:         stats.SkippedNoHeading + stats.SkippedSlow + stats.Invalid,
		RouteCount:      routeCount,
	}
}

// SaveRun stores a run and its routes in one transaction and returns the run ID.
// Routes are bulk-loaded with COPY in the order given.
func (r *RouteRepository) SaveRun(ctx context.Context, run Run, records []routes.RouteRecord) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	run.RouteCount = len(records)
	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO runs (
			started_at, finished_at, source, region,
			grid_resolution, segment_length_km, policy,
			observations, aggregated, skipped, route_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		run.StartedAt, run.FinishedAt, run.Source, run.Region,
		run.GridResolution, run.SegmentLengthKm, run.Policy,
		run.Observations, run.Aggregated, run.Skipped, run.RouteCount,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("run_routes",
		"run_id", "seq", "dep_lat", "dep_lon", "arr_lat", "arr_lon", "nb_flights"))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare copy: %w", err)
	}

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, id, i, rec.DepLat, rec.DepLon, rec.ArrLat, rec.ArrLon, rec.Count); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("failed to copy route %d: %w", i, err)
		}
	}

	// Flush the buffered COPY data
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("failed to flush copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("failed to close copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	return id, nil
}

const runColumns = `id, started_at, finished_at, source, region,
	grid_resolution, segment_length_km, policy,
	observations, aggregated, skipped, route_count`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var run Run
	err := row.Scan(
		&run.ID, &run.StartedAt, &run.FinishedAt, &run.Source, &run.Region,
		&run.GridResolution, &run.SegmentLengthKm, &run.Policy,
		&run.Observations, &run.Aggregated, &run.Skipped, &run.RouteCount,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// LatestRun returns the most recently finished run, or nil if none exist.
func (r *RouteRepository) LatestRun(ctx context.Context) (*Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY finished_at DESC, id DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return run, nil
}

// GetRun returns a run by ID, or nil if it does not exist.
func (r *RouteRepository) GetRun(ctx context.Context, id int64) (*Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run %d: %w", id, err)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first.
func (r *RouteRepository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY finished_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRoutes returns the routes of a run with at least minFlights flights,
// in their stored order.
func (r *RouteRepository) GetRoutes(ctx context.Context, runID int64, minFlights int) ([]routes.RouteRecord, error) {
	if minFlights < 1 {
		minFlights = 1
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT dep_lat, dep_lon, arr_lat, arr_lon, nb_flights
		 FROM run_routes
		 WHERE run_id = $1 AND nb_flights >= $2
		 ORDER BY seq ASC`,
		runID, minFlights,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []routes.RouteRecord
	for rows.Next() {
		var rec routes.RouteRecord
		if err := rows.Scan(&rec.DepLat, &rec.DepLon, &rec.ArrLat, &rec.ArrLon, &rec.Count); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
