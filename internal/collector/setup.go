package collector

import (
	"fmt"
	"strings"
	"time"

	"github.com/unklstewy/ads-routes/pkg/adsb"
	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// OptionsFromConfig converts the aggregation section. An unknown policy
// name falls back to constant; config validation rejects it earlier.
func OptionsFromConfig(a config.AggregationConfig) routes.Options {
	policy, _ := routes.ParsePolicy(a.Policy)
	return routes.Options{
		GridResolution:    a.GridResolution,
		MinFlights:        a.MinFlights,
		SegmentLengthKm:   a.SegmentLengthKm,
		Policy:            policy,
		HorizonHours:      a.HorizonHours,
		MinGroundSpeedKts: a.MinGroundSpeedKts,
	}
}

// SelectSource picks a configured source by name or type. An empty name
// selects the first enabled source.
func SelectSource(cfg *config.Config, name string) (config.SourceConfig, error) {
	if name == "" {
		enabled := cfg.EnabledSources()
		if len(enabled) == 0 {
			return config.SourceConfig{}, fmt.Errorf("no ADS-B sources enabled")
		}
		return enabled[0], nil
	}

	for _, s := range cfg.Sources {
		if strings.EqualFold(s.Name, name) || strings.EqualFold(s.Type, name) {
			return s, nil
		}
	}

	// Unconfigured provider types can still be used with defaults
	switch strings.ToLower(name) {
	case "adsbexchange", "airplaneslive", "opensky":
		return config.SourceConfig{Name: strings.ToLower(name), Type: strings.ToLower(name), Enabled: true, MaxRetries: 3}, nil
	}
	return config.SourceConfig{}, fmt.Errorf("unknown ADS-B source %q", name)
}

// OpenSource builds the client for sc wrapped with its retry policy.
func OpenSource(sc config.SourceConfig) (adsb.DataSource, error) {
	src, err := adsb.NewDataSource(sc)
	if err != nil {
		return nil, err
	}

	retry := adsb.DefaultRetryConfig()
	retry.MaxRetries = sc.MaxRetries
	if sc.TimeoutSeconds > 0 {
		retry.MaxDelay = time.Duration(sc.TimeoutSeconds) * time.Second
	}
	return adsb.WithRetry(src, retry), nil
}
