package adsb

import (
	"context"
	"fmt"
	"time"

	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/coordinates"
)

// ClientOptions are transport settings shared by every provider.
type ClientOptions struct {
	// Timeout is the per-request HTTP timeout (provider default if zero)
	Timeout time.Duration

	// RequestsPerSecond caps the request rate; 0 = unlimited
	RequestsPerSecond float64

	// UserAgent overrides DefaultUserAgent
	UserAgent string
}

// GlobalSource is implemented by providers whose every response covers the
// whole world regardless of the requested region.
type GlobalSource interface {
	Global() bool
}

// IsGlobal reports whether src always returns the whole world.
func IsGlobal(src DataSource) bool {
	g, ok := src.(GlobalSource)
	return ok && g.Global()
}

// NewDataSource builds a provider client from its configuration.
func NewDataSource(cfg config.SourceConfig) (DataSource, error) {
	opts := ClientOptions{
		Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
		RequestsPerSecond: cfg.RequestsPerSecond,
		UserAgent:         cfg.UserAgent,
	}

	switch cfg.Type {
	case "adsbexchange":
		return NewADSBExchangeClient(cfg.BaseURL, cfg.APIKey, opts), nil
	case "airplaneslive":
		if opts.RequestsPerSecond == 0 {
			opts.RequestsPerSecond = 1
		}
		return NewAirplanesLiveClientWithOptions(cfg.BaseURL, opts), nil
	case "opensky":
		return NewOpenSkyClient(cfg.BaseURL, cfg.Username, cfg.Password, opts), nil
	default:
		return nil, fmt.Errorf("unknown ADS-B source type %q", cfg.Type)
	}
}

// RetryingSource wraps a DataSource so that every Snapshot is retried with
// exponential backoff.
type RetryingSource struct {
	DataSource
	Retry RetryConfig
}

// WithRetry wraps src. A MaxRetries of 0 returns src unchanged.
func WithRetry(src DataSource, cfg RetryConfig) DataSource {
	if cfg.MaxRetries <= 0 {
		return src
	}
	return &RetryingSource{DataSource: src, Retry: cfg}
}

// Snapshot calls the wrapped source until it succeeds or retries run out.
func (r *RetryingSource) Snapshot(ctx context.Context, region Region) ([]Aircraft, error) {
	return RetryWithBackoffResult(ctx, r.Retry, func() ([]Aircraft, error) {
		return r.DataSource.Snapshot(ctx, region)
	})
}

// Global forwards to the wrapped source.
func (r *RetryingSource) Global() bool {
	return IsGlobal(r.DataSource)
}

// RegionFromConfig converts a configured region.
func RegionFromConfig(rc config.RegionConfig) Region {
	r := Region{Name: rc.Name}
	if rc.Bounds != nil {
		r.Bounds = &Bounds{
			MinLat: rc.Bounds.MinLat,
			MinLon: rc.Bounds.MinLon,
			MaxLat: rc.Bounds.MaxLat,
			MaxLon: rc.Bounds.MaxLon,
		}
	}
	if rc.Center != nil {
		r.Center = &coordinates.Geographic{Latitude: rc.Center.Latitude, Longitude: rc.Center.Longitude}
		r.RadiusKm = rc.RadiusKm
	}
	return r
}

// RegionsFromConfig converts every enabled region of cfg.
func RegionsFromConfig(cfg *config.Config) []Region {
	enabled := cfg.EnabledRegions()
	out := make([]Region, len(enabled))
	for i, rc := range enabled {
		out[i] = RegionFromConfig(rc)
	}
	return out
}
