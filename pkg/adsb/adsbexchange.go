package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ADSBExchangeURL is the public globe feed. It needs no key but is rate limited.
const ADSBExchangeURL = "https://globe.adsbexchange.com"

// ADSBExchangeClient fetches the global aircraft list from ADS-B Exchange.
// The feed has no server-side filtering, so Snapshot downloads everything
// and filters locally.
type ADSBExchangeClient struct {
	baseURL string
	apiKey  string

	httpFetcher
}

// NewADSBExchangeClient creates a client. apiKey is an optional RapidAPI key
// for higher rate limits; it may be empty.
func NewADSBExchangeClient(baseURL, apiKey string, opts ClientOptions) *ADSBExchangeClient {
	if baseURL == "" {
		baseURL = ADSBExchangeURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &ADSBExchangeClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		httpFetcher: newHTTPFetcher(opts.Timeout, opts.RequestsPerSecond, opts.UserAgent),
	}
}

// Name identifies the provider in logs.
func (c *ADSBExchangeClient) Name() string {
	return "adsbexchange"
}

// Global reports that every call downloads the whole world.
func (c *ADSBExchangeClient) Global() bool {
	return true
}

// Snapshot returns every positioned aircraft inside region.
func (c *ADSBExchangeClient) Snapshot(ctx context.Context, region Region) ([]Aircraft, error) {
	body, err := c.get(ctx, c.baseURL+"/data/aircraft.json", c.setAuth)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var apiResp adsbExchangeResponse
	if err := json.NewDecoder(body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse API response: %w", err)
	}

	now := time.Now().UTC()
	if apiResp.Now > 0 {
		now = time.Unix(0, int64(apiResp.Now*float64(time.Second))).UTC()
	}

	aircraft := make([]Aircraft, 0, len(apiResp.Aircraft))
	for _, ac := range apiResp.Aircraft {
		if ac.Lat == nil || ac.Lon == nil {
			continue
		}
		a := ac.toAircraft(now)
		if region.Contains(a.Position()) {
			aircraft = append(aircraft, a)
		}
	}

	return aircraft, nil
}

// Close is a no-op; the client holds no persistent connections.
func (c *ADSBExchangeClient) Close() error {
	return nil
}

func (c *ADSBExchangeClient) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.apiKey)
	}
}

type adsbExchangeResponse struct {
	Now      float64          `json:"now"`
	Messages int              `json:"messages"`
	Aircraft []readsbAircraft `json:"aircraft"`
}
