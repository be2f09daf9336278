package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
)

const (
	// AirplanesLiveURL is the public airplanes.live v2 API.
	AirplanesLiveURL = "https://api.airplanes.live/v2"

	// airplanesLiveMaxRadiusNM is the largest radius the /point endpoint accepts.
	airplanesLiveMaxRadiusNM = 250.0
)

// AirplanesLiveClient implements the DataSource interface for airplanes.live API.
// API Documentation: https://airplanes.live/api-guide/
// Rate Limit: 1 request per second
type AirplanesLiveClient struct {
	// baseURL is the API base URL (default: https://api.airplanes.live/v2)
	baseURL string

	httpFetcher
}

// NewAirplanesLiveClient creates a new airplanes.live API client limited to
// one request per second.
// baseURL should be "https://api.airplanes.live/v2" (or custom for testing)
func NewAirplanesLiveClient(baseURL string) *AirplanesLiveClient {
	return NewAirplanesLiveClientWithOptions(baseURL, ClientOptions{RequestsPerSecond: 1})
}

// NewAirplanesLiveClientWithOptions creates a client with explicit transport options.
func NewAirplanesLiveClientWithOptions(baseURL string, opts ClientOptions) *AirplanesLiveClient {
	if baseURL == "" {
		baseURL = AirplanesLiveURL
	}
	return &AirplanesLiveClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpFetcher: newHTTPFetcher(opts.Timeout, opts.RequestsPerSecond, opts.UserAgent),
	}
}

// Name identifies the provider in logs.
func (c *AirplanesLiveClient) Name() string {
	return "airplanes.live"
}

// Snapshot returns the aircraft inside region.
// airplanes.live only serves radius queries, so a bounding-box region is
// fetched as the circle enclosing it (capped at 250 NM) and then filtered.
// A global region is rejected.
func (c *AirplanesLiveClient) Snapshot(ctx context.Context, region Region) ([]Aircraft, error) {
	if region.Global() {
		return nil, errors.New("airplanes.live does not serve global snapshots; configure a center and radius or bounds")
	}

	var center coordinates.Geographic
	var radiusKm float64
	if region.Bounds != nil {
		b := region.Bounds
		center = coordinates.Geographic{Latitude: (b.MinLat + b.MaxLat) / 2, Longitude: (b.MinLon + b.MaxLon) / 2}
		radiusKm = coordinates.DistanceKm(center, coordinates.Geographic{Latitude: b.MaxLat, Longitude: b.MaxLon})
	} else {
		center = *region.Center
		radiusKm = region.RadiusKm
	}

	aircraft, err := c.GetAircraft(ctx, center.Latitude, center.Longitude, radiusKm/coordinates.KmPerNauticalMile)
	if err != nil {
		return nil, err
	}
	return Filter(aircraft, region), nil
}

// GetAircraft returns all aircraft within a radius of a given point.
// Uses the /point/[lat]/[lon]/[radius] endpoint.
// Maximum radius is 250 nautical miles.
//
// centerLat/centerLon: Center point in decimal degrees
// radiusNM: Search radius in nautical miles (max 250)
func (c *AirplanesLiveClient) GetAircraft(ctx context.Context, centerLat, centerLon, radiusNM float64) ([]Aircraft, error) {
	if radiusNM > airplanesLiveMaxRadiusNM {
		radiusNM = airplanesLiveMaxRadiusNM
	}
	radiusNM = math.Ceil(radiusNM)

	return c.fetch(ctx, fmt.Sprintf("%s/point/%.4f/%.4f/%.0f", c.baseURL, centerLat, centerLon, radiusNM))
}

// GetAircraftByICAO returns a specific aircraft by its ICAO hex code.
// Uses the /hex/[hex] endpoint. Returns nil if the aircraft is not tracked.
func (c *AirplanesLiveClient) GetAircraftByICAO(ctx context.Context, icao string) (*Aircraft, error) {
	aircraft, err := c.fetch(ctx, fmt.Sprintf("%s/hex/%s", c.baseURL, url.PathEscape(strings.ToLower(icao))))
	if err != nil || len(aircraft) == 0 {
		return nil, err
	}
	return &aircraft[0], nil
}

// FindCallsign returns the first aircraft broadcasting one of the given
// callsigns, or nil. Uses the /callsign/[callsign] endpoint.
func (c *AirplanesLiveClient) FindCallsign(ctx context.Context, callsigns ...string) (*Aircraft, error) {
	for _, cs := range callsigns {
		aircraft, err := c.fetch(ctx, fmt.Sprintf("%s/callsign/%s", c.baseURL, url.PathEscape(cs)))
		if err != nil {
			return nil, err
		}
		if ac := FindByCallsign(aircraft, cs); ac != nil {
			return ac, nil
		}
	}
	return nil, nil
}

// Close cleanly shuts down the client.
// For airplanes.live, this is a no-op as there are no persistent connections.
func (c *AirplanesLiveClient) Close() error {
	return nil
}

func (c *AirplanesLiveClient) fetch(ctx context.Context, endpoint string) ([]Aircraft, error) {
	body, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var apiResp airplanesLiveResponse
	if err := json.NewDecoder(body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	now := time.Now().UTC()
	aircraft := make([]Aircraft, 0, len(apiResp.Aircraft))
	for _, ac := range apiResp.Aircraft {
		// Skip aircraft with no position
		if ac.Lat == nil || ac.Lon == nil {
			continue
		}
		aircraft = append(aircraft, ac.toAircraft(now))
	}

	return aircraft, nil
}

// airplanesLiveResponse represents the JSON response from airplanes.live API.
type airplanesLiveResponse struct {
	Aircraft []readsbAircraft `json:"ac"`
	Total    int              `json:"total"`
	Now      float64          `json:"now"`
	Messages int              `json:"messages"`
}

// readsbAircraft is the per-aircraft object shared by airplanes.live and
// ADS-B Exchange, both of which serve readsb JSON.
// Field documentation: https://airplanes.live/adsb-field-explanations/
type readsbAircraft struct {
	// Hex is the ICAO Mode S hex code (e.g., "a12345")
	Hex string `json:"hex"`

	// Flight is the callsign/flight number, space padded
	Flight *string `json:"flight"`

	// R is the registration, T the type designator
	R *string `json:"r"`
	T *string `json:"t"`

	// From and To are airport codes; only some feeds carry them
	From *string `json:"from"`
	To   *string `json:"to"`

	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`

	// AltBaro and AltGeom can be the string "ground" or a number of feet
	AltBaro interface{} `json:"alt_baro"`
	AltGeom interface{} `json:"alt_geom"`

	// Gs is ground speed in knots
	Gs *float64 `json:"gs"`

	// Track is ground track in degrees (0-360)
	Track *float64 `json:"track"`

	// BaroRate is barometric vertical rate in feet/minute
	BaroRate *float64 `json:"baro_rate"`

	// Seen is seconds since last message
	Seen *float64 `json:"seen"`
}

// toAircraft converts a readsb aircraft to our Aircraft type.
func (ac readsbAircraft) toAircraft(now time.Time) Aircraft {
	aircraft := Aircraft{
		ICAO:     strings.ToLower(ac.Hex),
		LastSeen: now,
	}

	if ac.Flight != nil {
		aircraft.Callsign = strings.TrimSpace(*ac.Flight)
	}
	if ac.R != nil {
		aircraft.Registration = *ac.R
	}
	if ac.T != nil {
		aircraft.Type = *ac.T
	}
	if ac.From != nil {
		aircraft.Origin = *ac.From
	}
	if ac.To != nil {
		aircraft.Destination = *ac.To
	}
	if ac.Lat != nil {
		aircraft.Latitude = *ac.Lat
	}
	if ac.Lon != nil {
		aircraft.Longitude = *ac.Lon
	}

	// Prefer barometric altitude, fall back to geometric
	if alt, ground := parseAltitude(ac.AltBaro); alt != nil {
		aircraft.Altitude = alt
		aircraft.OnGround = ground
	} else if alt, ground := parseAltitude(ac.AltGeom); alt != nil {
		aircraft.Altitude = alt
		aircraft.OnGround = ground
	}

	aircraft.GroundSpeed = ac.Gs
	aircraft.Track = ac.Track
	aircraft.VerticalRate = ac.BaroRate

	if ac.Seen != nil {
		aircraft.LastSeen = now.Add(-time.Duration(*ac.Seen * float64(time.Second)))
	}

	return aircraft
}

// parseAltitude safely extracts altitude from interface{} which can be float64 or string.
// "ground" yields 0 with ground=true; anything else unusable yields nil.
func parseAltitude(val interface{}) (alt *float64, ground bool) {
	switch v := val.(type) {
	case float64:
		return &v, false
	case string:
		if v == "ground" {
			zero := 0.0
			return &zero, true
		}
	}
	return nil, false
}
