package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
)

// OpenSkyURL is the OpenSky Network REST API.
const OpenSkyURL = "https://opensky-network.org/api"

// OpenSkyClient fetches state vectors from the OpenSky Network.
// Anonymous access is allowed; credentials raise the daily quota.
type OpenSkyClient struct {
	baseURL  string
	username string
	password string

	httpFetcher
}

// NewOpenSkyClient creates a client. Username and password may be empty.
func NewOpenSkyClient(baseURL, username, password string, opts ClientOptions) *OpenSkyClient {
	if baseURL == "" {
		baseURL = OpenSkyURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &OpenSkyClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		username:    username,
		password:    password,
		httpFetcher: newHTTPFetcher(opts.Timeout, opts.RequestsPerSecond, opts.UserAgent),
	}
}

// Name identifies the provider in logs.
func (c *OpenSkyClient) Name() string {
	return "opensky"
}

// Snapshot returns the state vectors inside region. The bounding box of the
// region is sent to the server; radius regions are then filtered locally.
func (c *OpenSkyClient) Snapshot(ctx context.Context, region Region) ([]Aircraft, error) {
	endpoint := c.baseURL + "/states/all"
	if !region.Global() {
		b := region.BoundingBox()
		q := url.Values{}
		q.Set("lamin", fmt.Sprintf("%.4f", b.MinLat))
		q.Set("lomin", fmt.Sprintf("%.4f", b.MinLon))
		q.Set("lamax", fmt.Sprintf("%.4f", b.MaxLat))
		q.Set("lomax", fmt.Sprintf("%.4f", b.MaxLon))
		endpoint += "?" + q.Encode()
	}

	body, err := c.get(ctx, endpoint, c.setAuth)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var apiResp openSkyResponse
	if err := json.NewDecoder(body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	aircraft := make([]Aircraft, 0, len(apiResp.States))
	for _, s := range apiResp.States {
		ac, ok := parseStateVector(s, apiResp.Time)
		if !ok {
			continue
		}
		if region.Contains(ac.Position()) {
			aircraft = append(aircraft, ac)
		}
	}

	return aircraft, nil
}

// Close is a no-op; the client holds no persistent connections.
func (c *OpenSkyClient) Close() error {
	return nil
}

func (c *OpenSkyClient) setAuth(req *http.Request) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
}

// openSkyResponse matches the /states/all payload. Each state is a
// positional array; see https://openskynetwork.github.io/opensky-api/rest.html
type openSkyResponse struct {
	Time   int64           `json:"time"`
	States [][]interface{} `json:"states"`
}

// State vector indices
const (
	osICAO24       = 0
	osCallsign     = 1
	osOrigin       = 2
	osLastContact  = 4
	osLongitude    = 5
	osLatitude     = 6
	osBaroAltitude = 7
	osOnGround     = 8
	osVelocity     = 9
	osTrueTrack    = 10
	osVerticalRate = 11
	osGeoAltitude  = 13
	osMinFields    = 12
)

// parseStateVector converts one state array. Metric units are converted to
// knots, feet and feet per minute. ok is false when there is no position.
func parseStateVector(s []interface{}, responseTime int64) (Aircraft, bool) {
	if len(s) < osMinFields {
		return Aircraft{}, false
	}

	lat := stateFloat(s, osLatitude)
	lon := stateFloat(s, osLongitude)
	if lat == nil || lon == nil {
		return Aircraft{}, false
	}

	ac := Aircraft{
		ICAO:      strings.ToLower(stateString(s, osICAO24)),
		Callsign:  strings.TrimSpace(stateString(s, osCallsign)),
		Latitude:  *lat,
		Longitude: *lon,
		Origin:    stateString(s, osOrigin),
		Track:     stateFloat(s, osTrueTrack),
	}

	if v, ok := s[osOnGround].(bool); ok {
		ac.OnGround = v
	}

	alt := stateFloat(s, osBaroAltitude)
	if alt == nil {
		alt = stateFloat(s, osGeoAltitude)
	}
	if alt != nil {
		ft := *alt * coordinates.MetersToFeet
		ac.Altitude = &ft
	}
	if v := stateFloat(s, osVelocity); v != nil {
		kts := *v * coordinates.MetersPerSecondToKnots
		ac.GroundSpeed = &kts
	}
	if v := stateFloat(s, osVerticalRate); v != nil {
		fpm := *v * coordinates.MetersPerSecondToFeetPerMinute
		ac.VerticalRate = &fpm
	}

	ts := responseTime
	if lc := stateFloat(s, osLastContact); lc != nil {
		ts = int64(*lc)
	}
	if ts > 0 {
		ac.LastSeen = time.Unix(ts, 0).UTC()
	} else {
		ac.LastSeen = time.Now().UTC()
	}

	return ac, true
}

func stateFloat(s []interface{}, i int) *float64 {
	if i >= len(s) {
		return nil
	}
	f, ok := s[i].(float64)
	if !ok {
		return nil
	}
	return &f
}

func stateString(s []interface{}, i int) string {
	if i >= len(s) {
		return ""
	}
	str, _ := s[i].(string)
	return str
}
