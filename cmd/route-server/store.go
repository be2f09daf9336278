package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/unklstewy/ads-routes/internal/db"
	"github.com/unklstewy/ads-routes/pkg/routefile"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// errNoRoutes is returned when no data set is available yet.
var errNoRoutes = errors.New("no routes available")

// Dataset is one loaded set of routes.
type Dataset struct {
	// Version changes whenever the underlying data changes; it keys the
	// map cache
	Version string

	Source    string
	UpdatedAt time.Time
	Routes    []routes.RouteRecord
}

// RouteStore supplies the current routes.
type RouteStore interface {
	Current(ctx context.Context) (*Dataset, error)
}

// fileStore serves a routes file, re-reading it when its modification time
// changes.
type fileStore struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	data    *Dataset
}

func newFileStore(path string) *fileStore {
	return &fileStore{path: path}
}

func (s *fileStore) Current(ctx context.Context) (*Dataset, error) {
	info, err := os.Stat(s.path)
	if os.IsNotExist(err) {
		return nil, errNoRoutes
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data != nil && info.ModTime().Equal(s.modTime) {
		return s.data, nil
	}

	rs, err := routefile.ReadRoutesFile(s.path)
	if err != nil {
		return nil, err
	}
	s.modTime = info.ModTime()
	s.data = &Dataset{
		Version:   fmt.Sprintf("file:%d", info.ModTime().UnixNano()),
		Source:    s.path,
		UpdatedAt: info.ModTime().UTC(),
		Routes:    routefile.Records(rs),
	}
	return s.data, nil
}

// runSource is the part of db.RouteRepository the server needs.
type runSource interface {
	LatestRun(ctx context.Context) (*db.Run, error)
	GetRoutes(ctx context.Context, runID int64, minFlights int) ([]routes.RouteRecord, error)
}

// healthChecker is implemented by stores backed by a service that can go away.
type healthChecker interface {
	Healthy(ctx context.Context) bool
}

// dbStore serves the latest archived run. Routes are fetched once per run.
type dbStore struct {
	repo runSource
	ping func(ctx context.Context) bool

	mu   sync.Mutex
	data *Dataset
}

// newDBStore returns a store over repo; ping, when set, backs Healthy.
func newDBStore(repo runSource, ping func(ctx context.Context) bool) *dbStore {
	return &dbStore{repo: repo, ping: ping}
}

func (s *dbStore) Healthy(ctx context.Context) bool {
	return s.ping == nil || s.ping(ctx)
}

func (s *dbStore) Current(ctx context.Context) (*Dataset, error) {
	run, err := s.repo.LatestRun(ctx)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, errNoRoutes
	}

	version := fmt.Sprintf("run:%d", run.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data != nil && s.data.Version == version {
		return s.data, nil
	}

	records, err := s.repo.GetRoutes(ctx, run.ID, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to load routes of run %d: %w", run.ID, err)
	}
	source := run.Source
	if run.Region != "" {
		source += " (" + run.Region + ")"
	}
	s.data = &Dataset{
		Version:   version,
		Source:    source,
		UpdatedAt: run.FinishedAt,
		Routes:    records,
	}
	return s.data, nil
}
