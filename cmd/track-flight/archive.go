package main

import (
	"context"
	"fmt"

	"github.com/unklstewy/ads-routes/internal/db"
	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/tracking"
)

// archiver writes track points to PostgreSQL, checking the connection before
// every write so a long -follow session survives database restarts.
type archiver struct {
	cfg      config.DatabaseConfig
	conn     *db.DB
	prepared bool
	saved    int

	ensure  func(ctx context.Context, conn *db.DB, cfg config.DatabaseConfig) (*db.DB, error)
	prepare func(ctx context.Context, conn *db.DB) error
	insert  func(ctx context.Context, conn *db.DB, points []tracking.TrackPoint) (int, error)
}

func newArchiver(cfg config.DatabaseConfig) *archiver {
	return &archiver{
		cfg:    cfg,
		ensure: db.EnsureConnection,
		prepare: func(ctx context.Context, conn *db.DB) error {
			return conn.InitSchema(ctx)
		},
		insert: func(ctx context.Context, conn *db.DB, points []tracking.TrackPoint) (int, error) {
			return db.NewTrackRepository(conn).InsertPoints(ctx, points)
		},
	}
}

// save stores points and returns how many were new.
func (a *archiver) save(ctx context.Context, points []tracking.TrackPoint) (int, error) {
	// Cancellation only stops the polling
	ctx = context.WithoutCancel(ctx)

	conn, err := a.ensure(ctx, a.conn, a.cfg)
	if err != nil {
		return 0, fmt.Errorf("database unavailable: %w", err)
	}
	a.conn = conn

	if !a.prepared {
		if err := a.prepare(ctx, conn); err != nil {
			return 0, fmt.Errorf("failed to initialize schema: %w", err)
		}
		a.prepared = true
	}

	var n int
	err = db.WithRetry(ctx, func() error {
		var err error
		n, err = a.insert(ctx, conn, points)
		return err
	}, 3)
	if err != nil {
		return 0, fmt.Errorf("failed to archive track: %w", err)
	}
	a.saved += n
	return n, nil
}

func (a *archiver) Close() error {
	if a.conn == nil {
		return nil
	}
	return a.conn.Close()
}
