package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/unklstewy/ads-routes/pkg/config"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	// Open connection
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{
		DB:     sqlDB,
		config: cfg,
	}

	return db, nil
}

// InitSchema creates or updates the database schema.
// This should be called once at application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	// Read schema SQL
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	// Execute schema
	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// CleanupOldData keeps the newest keepRuns runs (their routes cascade) and
// drops track points older than maxTrackAge. Zero disables either step.
func (db *DB) CleanupOldData(ctx context.Context, keepRuns int, maxTrackAge time.Duration) error {
	if keepRuns > 0 {
		_, err := db.ExecContext(ctx,
			`DELETE FROM runs WHERE id NOT IN (
				SELECT id FROM runs ORDER BY finished_at DESC, id DESC LIMIT $1
			)`,
			keepRuns,
		)
		if err != nil {
			return fmt.Errorf("failed to delete old runs: %w", err)
		}
	}

	if maxTrackAge > 0 {
		cutoff := time.Now().UTC().Add(-maxTrackAge)
		_, err := db.ExecContext(ctx,
			`DELETE FROM track_points WHERE timestamp < $1`,
			cutoff,
		)
		if err != nil {
			return fmt.Errorf("failed to delete old track points: %w", err)
		}
	}

	return nil
}

// GetStats returns database statistics.
func (db *DB) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	queries := []struct {
		key   string
		query string
	}{
		{"runs", `SELECT COUNT(*) FROM runs`},
		{"archived_routes", `SELECT COUNT(*) FROM run_routes`},
		{"track_points", `SELECT COUNT(*) FROM track_points`},
		{"tracked_flights", `SELECT COUNT(DISTINCT icao) FROM track_points`},
	}

	for _, q := range queries {
		var n int64
		if err := db.QueryRowContext(ctx, q.query).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", q.key, err)
		}
		stats[q.key] = n
	}

	return stats, nil
}
