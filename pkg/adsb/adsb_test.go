package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/coordinates"
)

var bayArea = Region{
	Name:   "bay-area",
	Bounds: &Bounds{MinLat: 37.0, MinLon: -123.0, MaxLat: 38.5, MaxLon: -121.5},
}

// TestNewAirplanesLiveClient tests client construction.
func TestNewAirplanesLiveClient(t *testing.T) {
	client := NewAirplanesLiveClient("https://api.test.com/")

	if client == nil {
		t.Fatal("Expected client, got nil")
	}
	if client.baseURL != "https://api.test.com" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient.Timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", client.httpClient.Timeout)
	}
	if client.limiter.Limit() != 1 {
		t.Errorf("Expected 1 request per second, got %v", client.limiter.Limit())
	}
	if client.Name() != "airplanes.live" {
		t.Errorf("Unexpected name %s", client.Name())
	}
}

// TestGetAircraft tests fetching aircraft within a radius.
func TestGetAircraft(t *testing.T) {
	t.Run("Successful request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			expectedPath := "/point/35.0000/-80.0000/100"
			if r.URL.Path != expectedPath {
				t.Errorf("Expected path %s, got %s", expectedPath, r.URL.Path)
			}
			if ua := r.Header.Get("User-Agent"); ua != DefaultUserAgent {
				t.Errorf("Expected User-Agent %s, got %s", DefaultUserAgent, ua)
			}

			response := airplanesLiveResponse{
				Aircraft: []readsbAircraft{
					{
						Hex:      "A12345",
						Flight:   strPtr("UAL123  "),
						Lat:      floatPtr(35.5),
						Lon:      floatPtr(-80.5),
						AltBaro:  30000.0,
						Gs:       floatPtr(450.0),
						Track:    floatPtr(90.0),
						BaroRate: floatPtr(0.0),
						Seen:     floatPtr(2.5),
					},
				},
				Total: 1,
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL)
		aircraft, err := client.GetAircraft(context.Background(), 35.0, -80.0, 100)

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(aircraft) != 1 {
			t.Fatalf("Expected 1 aircraft, got %d", len(aircraft))
		}

		ac := aircraft[0]
		if ac.ICAO != "a12345" {
			t.Errorf("Expected ICAO a12345, got %s", ac.ICAO)
		}
		if ac.Callsign != "UAL123" {
			t.Errorf("Expected trimmed callsign UAL123, got %q", ac.Callsign)
		}
		if ac.Latitude != 35.5 {
			t.Errorf("Expected latitude 35.5, got %f", ac.Latitude)
		}
		if ac.Altitude == nil || *ac.Altitude != 30000.0 {
			t.Errorf("Expected altitude 30000, got %v", ac.Altitude)
		}
		if ac.Track == nil || *ac.Track != 90 {
			t.Errorf("Expected track 90, got %v", ac.Track)
		}
	})

	t.Run("Caps radius at 250 NM", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/point/35.0000/-80.0000/250" {
				t.Errorf("Expected radius capped at 250, got path %s", r.URL.Path)
			}
			json.NewEncoder(w).Encode(airplanesLiveResponse{})
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL)
		if _, err := client.GetAircraft(context.Background(), 35.0, -80.0, 500); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	})

	t.Run("Handles rate limit error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "30")
			w.Header().Set("X-Rate-Limit-Limit", "100")
			w.Header().Set("X-Rate-Limit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limit exceeded"))
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL)
		_, err := client.GetAircraft(context.Background(), 35.0, -80.0, 100)

		rle, ok := IsRateLimitError(err)
		if !ok {
			t.Fatalf("Expected RateLimitError, got %v", err)
		}
		if rle.StatusCode != 429 {
			t.Errorf("Expected status 429, got %d", rle.StatusCode)
		}
		if rle.RetryAfter != 30*time.Second {
			t.Errorf("Expected retry after 30s, got %v", rle.RetryAfter)
		}
		if rle.Headers.Limit != 100 {
			t.Errorf("Expected limit 100, got %d", rle.Headers.Limit)
		}
	})

	t.Run("Handles HTTP error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal error"))
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL)
		_, err := client.GetAircraft(context.Background(), 35.0, -80.0, 100)

		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != 500 {
			t.Fatalf("Expected StatusError 500, got %v", err)
		}
	})

	t.Run("Skips aircraft with missing position", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			response := airplanesLiveResponse{
				Aircraft: []readsbAircraft{
					{Hex: "a11111", Lat: floatPtr(35.0), Lon: floatPtr(-80.0)}, // Valid
					{Hex: "a22222", Lat: nil, Lon: floatPtr(-80.0)},            // Missing lat
					{Hex: "a33333", Lat: floatPtr(35.0), Lon: nil},             // Missing lon
					{Hex: "a44444", Lat: floatPtr(36.0), Lon: floatPtr(-81.0)}, // Valid
				},
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL)
		aircraft, err := client.GetAircraft(context.Background(), 35.0, -80.0, 100)

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if len(aircraft) != 2 {
			t.Errorf("Expected 2 valid aircraft, got %d", len(aircraft))
		}
	})
}

// TestAirplanesLiveSnapshot tests region handling.
func TestAirplanesLiveSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response := airplanesLiveResponse{
			Aircraft: []readsbAircraft{
				{Hex: "inside", Lat: floatPtr(37.7), Lon: floatPtr(-122.4), Track: floatPtr(90)},
				{Hex: "outside", Lat: floatPtr(36.5), Lon: floatPtr(-122.4), Track: floatPtr(90)},
			},
		}
		json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewAirplanesLiveClient(server.URL)

	aircraft, err := client.Snapshot(context.Background(), bayArea)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(aircraft) != 1 || aircraft[0].ICAO != "inside" {
		t.Errorf("Expected only the aircraft inside the bounds, got %+v", aircraft)
	}

	if _, err := client.Snapshot(context.Background(), Region{}); err == nil {
		t.Error("Expected error for global region")
	}
}

// TestGetAircraftByICAO tests fetching a specific aircraft.
func TestGetAircraftByICAO(t *testing.T) {
	t.Run("Found aircraft", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/hex/a12345" {
				t.Errorf("Expected path /hex/a12345, got %s", r.URL.Path)
			}
			response := airplanesLiveResponse{
				Aircraft: []readsbAircraft{
					{Hex: "a12345", Flight: strPtr("DAL456"), Lat: floatPtr(40.0), Lon: floatPtr(-75.0)},
				},
			}
			json.NewEncoder(w).Encode(response)
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL)
		aircraft, err := client.GetAircraftByICAO(context.Background(), "A12345")

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if aircraft == nil || aircraft.Callsign != "DAL456" {
			t.Fatalf("Expected DAL456, got %+v", aircraft)
		}
	})

	t.Run("Aircraft not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(airplanesLiveResponse{})
		}))
		defer server.Close()

		client := NewAirplanesLiveClient(server.URL)
		aircraft, err := client.GetAircraftByICAO(context.Background(), "unknown")

		if err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
		if aircraft != nil {
			t.Error("Expected nil for not found aircraft")
		}
	})
}

// TestFindCallsign tests the callsign endpoint with fallbacks.
func TestFindCallsign(t *testing.T) {
	var requests []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)
		if r.URL.Path == "/callsign/UAL123" {
			json.NewEncoder(w).Encode(airplanesLiveResponse{
				Aircraft: []readsbAircraft{{Hex: "abc", Flight: strPtr("UAL123 "), Lat: floatPtr(1), Lon: floatPtr(2)}},
			})
			return
		}
		json.NewEncoder(w).Encode(airplanesLiveResponse{})
	}))
	defer server.Close()

	client := NewAirplanesLiveClientWithOptions(server.URL, ClientOptions{})
	ac, err := client.FindCallsign(context.Background(), "UA123", "UAL123")
	if err != nil {
		t.Fatalf("FindCallsign failed: %v", err)
	}
	if ac == nil || ac.ICAO != "abc" {
		t.Fatalf("Expected abc, got %+v", ac)
	}
	if len(requests) != 2 {
		t.Errorf("Expected 2 requests, got %v", requests)
	}
}

// TestADSBExchangeSnapshot tests the global feed client.
func TestADSBExchangeSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/aircraft.json" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-RapidAPI-Key") != "secret" {
			t.Errorf("Expected API key header")
		}
		fmt.Fprint(w, `{
			"now": 1700000000.5,
			"aircraft": [
				{"hex": "a1b2c3", "flight": "SWA100  ", "r": "N123", "t": "B738", "lat": 37.7, "lon": -122.4, "alt_baro": 35000, "gs": 450.2, "track": 88.5},
				{"hex": "d4e5f6", "lat": 37.6, "lon": -122.3, "alt_baro": "ground", "gs": 5},
				{"hex": "nopos", "flight": "GHOST"},
				{"hex": "faraway", "lat": 51.5, "lon": -0.1, "track": 10}
			]
		}`)
	}))
	defer server.Close()

	client := NewADSBExchangeClient(server.URL, "secret", ClientOptions{})
	if !IsGlobal(client) {
		t.Error("ADS-B Exchange should report a global feed")
	}

	t.Run("Global region returns every positioned aircraft", func(t *testing.T) {
		aircraft, err := client.Snapshot(context.Background(), Region{})
		if err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if len(aircraft) != 3 {
			t.Fatalf("Expected 3 aircraft, got %d", len(aircraft))
		}

		ac := aircraft[0]
		if ac.Callsign != "SWA100" || ac.Registration != "N123" || ac.Type != "B738" {
			t.Errorf("Unexpected identity fields: %+v", ac)
		}
		if ac.GroundSpeed == nil || *ac.GroundSpeed != 450.2 {
			t.Errorf("Expected ground speed 450.2, got %v", ac.GroundSpeed)
		}
		if ac.LastSeen.Unix() != 1700000000 {
			t.Errorf("Expected LastSeen from response time, got %v", ac.LastSeen)
		}

		ground := aircraft[1]
		if !ground.OnGround || ground.Altitude == nil || *ground.Altitude != 0 {
			t.Errorf("Expected on-ground aircraft at altitude 0, got %+v", ground)
		}
		if ground.Track != nil {
			t.Errorf("Expected nil track, got %v", *ground.Track)
		}
	})

	t.Run("Radius region filters locally", func(t *testing.T) {
		region := Region{
			Center:   &coordinates.Geographic{Latitude: 37.7749, Longitude: -122.4194},
			RadiusKm: 100,
		}
		aircraft, err := client.Snapshot(context.Background(), region)
		if err != nil {
			t.Fatalf("Snapshot failed: %v", err)
		}
		if len(aircraft) != 2 {
			t.Errorf("Expected 2 aircraft near San Francisco, got %d", len(aircraft))
		}
	})
}

// TestOpenSkySnapshot tests state vector parsing and bounding box queries.
func TestOpenSkySnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/states/all" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("lamin") != "37.0000" || q.Get("lomax") != "-121.5000" {
			t.Errorf("Unexpected bounding box query: %s", r.URL.RawQuery)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "sky" || pass != "pw" {
			t.Errorf("Expected basic auth")
		}
		fmt.Fprint(w, `{
			"time": 1700000000,
			"states": [
				["abc123", "UAL5    ", "United States", 1700000000, 1699999999, -122.4, 37.7, 10000.0, false, 200.0, 95.0, 5.0, null, 10100.0, "1200", false, 0],
				["def456", "", "Canada", null, null, null, null, null, true, 0, null, null, null, null, null, false, 0],
				["fed789", "DAL9", "United States", 1700000000, 1699999990, -122.0, 37.5, null, false, null, null, null, null, 3000.0, null, false, 0]
			]
		}`)
	}))
	defer server.Close()

	client := NewOpenSkyClient(server.URL, "sky", "pw", ClientOptions{})
	aircraft, err := client.Snapshot(context.Background(), bayArea)
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(aircraft) != 2 {
		t.Fatalf("Expected 2 positioned aircraft, got %d", len(aircraft))
	}

	ac := aircraft[0]
	if ac.ICAO != "abc123" || ac.Callsign != "UAL5" || ac.Origin != "United States" {
		t.Errorf("Unexpected identity: %+v", ac)
	}
	if ac.Altitude == nil || *ac.Altitude < 32808 || *ac.Altitude > 32809 {
		t.Errorf("Expected ~32808 ft, got %v", ac.Altitude)
	}
	if ac.GroundSpeed == nil || *ac.GroundSpeed < 388.7 || *ac.GroundSpeed > 388.8 {
		t.Errorf("Expected ~388.77 kts, got %v", ac.GroundSpeed)
	}
	if ac.VerticalRate == nil || *ac.VerticalRate < 984 || *ac.VerticalRate > 985 {
		t.Errorf("Expected ~984 fpm, got %v", ac.VerticalRate)
	}
	if ac.LastSeen.Unix() != 1699999999 {
		t.Errorf("Expected last contact timestamp, got %v", ac.LastSeen.Unix())
	}

	geo := aircraft[1]
	if geo.Altitude == nil || *geo.Altitude < 9842 || *geo.Altitude > 9843 {
		t.Errorf("Expected geometric altitude fallback ~9842 ft, got %v", geo.Altitude)
	}
	if geo.Track != nil || geo.GroundSpeed != nil {
		t.Errorf("Expected nil track and speed, got %+v", geo)
	}
}

// TestRegion tests region containment and bounding boxes.
func TestRegion(t *testing.T) {
	sf := coordinates.Geographic{Latitude: 37.7749, Longitude: -122.4194}
	la := coordinates.Geographic{Latitude: 34.05, Longitude: -118.24}

	tests := []struct {
		name   string
		region Region
		p      coordinates.Geographic
		want   bool
	}{
		{"Global contains everything", Region{}, la, true},
		{"Bounds contains inside", bayArea, sf, true},
		{"Bounds excludes outside", bayArea, la, false},
		{"Radius contains nearby", Region{Center: &sf, RadiusKm: 100}, coordinates.Geographic{Latitude: 37.5, Longitude: -122.0}, true},
		{"Radius excludes distant", Region{Center: &sf, RadiusKm: 100}, la, false},
		{"Center without radius is global", Region{Center: &sf}, la, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.region.Contains(tt.p); got != tt.want {
				t.Errorf("Contains = %v, want %v", got, tt.want)
			}
		})
	}

	box := Region{Center: &sf, RadiusKm: 100}.BoundingBox()
	if !box.Contains(sf) || box.MaxLat-box.MinLat < 1.7 || box.MaxLat-box.MinLat > 1.9 {
		t.Errorf("Unexpected bounding box %+v", box)
	}

	if err := (Bounds{MinLat: 10, MaxLat: 5}).Validate(); err == nil {
		t.Error("Expected error for inverted bounds")
	}
	if err := bayArea.Bounds.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

// TestAircraftObservation tests conversion to aggregator input.
func TestAircraftObservation(t *testing.T) {
	ac := Aircraft{Latitude: 1, Longitude: 2, Track: floatPtr(45), GroundSpeed: floatPtr(300)}
	obs := ac.Observation()
	if obs.Latitude != 1 || obs.Longitude != 2 || *obs.Heading != 45 || *obs.GroundSpeed != 300 {
		t.Errorf("Unexpected observation %+v", obs)
	}
	if (Aircraft{}).Observation().Heading != nil {
		t.Error("Missing track must stay nil")
	}
}

// TestFindByCallsign tests case-insensitive callsign matching.
func TestFindByCallsign(t *testing.T) {
	aircraft := []Aircraft{{ICAO: "a", Callsign: "DAL1"}, {ICAO: "b", Callsign: "ual123 "}}
	if ac := FindByCallsign(aircraft, "UA123", "UAL123"); ac == nil || ac.ICAO != "b" {
		t.Errorf("Expected b, got %+v", ac)
	}
	if FindByCallsign(aircraft, "AAL9") != nil {
		t.Error("Expected nil for unknown callsign")
	}
}

// TestNewDataSource tests the provider factory.
func TestNewDataSource(t *testing.T) {
	tests := []struct {
		cfg      config.SourceConfig
		wantName string
		wantErr  bool
	}{
		{config.SourceConfig{Type: "adsbexchange"}, "adsbexchange", false},
		{config.SourceConfig{Type: "airplaneslive"}, "airplanes.live", false},
		{config.SourceConfig{Type: "opensky", Username: "u"}, "opensky", false},
		{config.SourceConfig{Type: "sdr"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			src, err := NewDataSource(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			defer src.Close()
			if src.Name() != tt.wantName {
				t.Errorf("Expected %s, got %s", tt.wantName, src.Name())
			}
		})
	}
}

// TestRetryingSource tests that snapshots are retried on server errors.
func TestRetryingSource(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"aircraft": [{"hex": "a", "lat": 1, "lon": 1}]}`)
	}))
	defer server.Close()

	src := WithRetry(NewADSBExchangeClient(server.URL, "", ClientOptions{}), RetryConfig{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Multiplier:   2,
	})
	if !IsGlobal(src) {
		t.Error("Wrapped source should stay global")
	}

	aircraft, err := src.Snapshot(context.Background(), Region{})
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(aircraft) != 1 || atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 1 aircraft after 2 calls, got %d after %d", len(aircraft), calls)
	}

	plain := NewOpenSkyClient("", "", "", ClientOptions{})
	if WithRetry(plain, RetryConfig{}) != DataSource(plain) {
		t.Error("Zero retries should return the source unchanged")
	}
}

// TestParseAltitude tests altitude parsing from interface{}.
func TestParseAltitude(t *testing.T) {
	tests := []struct {
		name       string
		input      interface{}
		expected   *float64
		wantGround bool
	}{
		{"nil input", nil, nil, false},
		{"float64 altitude", 35000.0, floatPtr(35000.0), false},
		{"ground string", "ground", floatPtr(0.0), true},
		{"invalid string", "invalid", nil, false},
		{"invalid type", 123, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, ground := parseAltitude(tt.input)
			if ground != tt.wantGround {
				t.Errorf("Expected ground=%v, got %v", tt.wantGround, ground)
			}
			if tt.expected == nil {
				if result != nil {
					t.Errorf("Expected nil, got %v", *result)
				}
			} else if result == nil {
				t.Error("Expected value, got nil")
			} else if *result != *tt.expected {
				t.Errorf("Expected %f, got %f", *tt.expected, *result)
			}
		})
	}
}

// TestReadsbConversion tests data conversion.
func TestReadsbConversion(t *testing.T) {
	now := time.Now().UTC()

	input := readsbAircraft{
		Hex:      "abc123",
		Flight:   strPtr("TEST123"),
		Lat:      floatPtr(35.1234),
		Lon:      floatPtr(-80.5678),
		AltGeom:  35000.0,
		Gs:       floatPtr(450.5),
		Track:    floatPtr(270.0),
		BaroRate: floatPtr(1500.0),
		Seen:     floatPtr(3.0),
	}

	result := input.toAircraft(now)

	if result.ICAO != "abc123" {
		t.Errorf("Expected ICAO abc123, got %s", result.ICAO)
	}
	if result.Altitude == nil || *result.Altitude != 35000.0 {
		t.Errorf("Expected geometric altitude fallback 35000, got %v", result.Altitude)
	}
	if result.VerticalRate == nil || *result.VerticalRate != 1500.0 {
		t.Errorf("Expected vertical rate 1500, got %v", result.VerticalRate)
	}
	if !result.LastSeen.Equal(now.Add(-3 * time.Second)) {
		t.Errorf("Expected LastSeen 3s before now, got %v", result.LastSeen)
	}
}

// TestParseRetryAfter tests Retry-After header parsing.
func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected time.Duration
	}{
		{"Empty header", "", 0},
		{"Delay seconds", "30", 30 * time.Second},
		{"Zero seconds", "0", 0},
		{"Negative (invalid)", "-10", 0},
		{"HTTP date in the past", "Wed, 21 Oct 2015 07:28:00 GMT", 0},
		{"Invalid string", "invalid", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			if tt.header != "" {
				headers.Set("Retry-After", tt.header)
			}
			if result := parseRetryAfter(headers); result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

// TestExtractRateLimitHeaders tests rate limit header extraction.
func TestExtractRateLimitHeaders(t *testing.T) {
	t.Run("Standard headers", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Rate-Limit-Limit", "100")
		headers.Set("X-Rate-Limit-Remaining", "25")
		headers.Set("X-Rate-Limit-Reset", "1609459200")

		result := extractRateLimitHeaders(headers)

		if result.Limit != 100 || result.Remaining != 25 {
			t.Errorf("Expected 100/25, got %d/%d", result.Limit, result.Remaining)
		}
		if !result.Reset.Equal(time.Unix(1609459200, 0)) {
			t.Errorf("Unexpected reset %v", result.Reset)
		}
	})

	t.Run("Alternative header names", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-RateLimit-Limit", "200")
		headers.Set("X-RateLimit-Remaining", "50")

		result := extractRateLimitHeaders(headers)

		if result.Limit != 200 || result.Remaining != 50 {
			t.Errorf("Expected 200/50, got %d/%d", result.Limit, result.Remaining)
		}
	})

	t.Run("Missing headers", func(t *testing.T) {
		result := extractRateLimitHeaders(http.Header{})

		if result.Limit != -1 || result.Remaining != -1 {
			t.Errorf("Expected -1/-1, got %d/%d", result.Limit, result.Remaining)
		}
		if !result.Reset.IsZero() {
			t.Errorf("Expected zero reset, got %v", result.Reset)
		}
	})
}

// TestRateLimitError tests rate limit error handling.
func TestRateLimitError(t *testing.T) {
	err := &RateLimitError{StatusCode: 429, RetryAfter: 30 * time.Second, Message: "Rate limit exceeded"}
	if err.Error() != "Rate limit exceeded (retry after 30s)" {
		t.Errorf("Unexpected message %q", err.Error())
	}

	wrapped := fmt.Errorf("region west: %w", err)
	rle, ok := IsRateLimitError(wrapped)
	if !ok || rle.StatusCode != 429 {
		t.Error("Expected wrapped RateLimitError to be detected")
	}

	if _, ok := IsRateLimitError(errors.New("normal error")); ok {
		t.Error("Expected false for normal error")
	}
}

// TestRateLimiter tests that consecutive requests are spaced.
func TestRateLimiter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(airplanesLiveResponse{})
	}))
	defer server.Close()

	client := NewAirplanesLiveClientWithOptions(server.URL, ClientOptions{RequestsPerSecond: 10})

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.GetAircraft(context.Background(), 0, 0, 10); err != nil {
			t.Fatalf("Request %d failed: %v", i, err)
		}
	}
	// Burst of 1 at 10/s: the 2nd and 3rd calls wait ~100ms each
	if elapsed := time.Since(start); elapsed < 180*time.Millisecond {
		t.Errorf("Expected requests to be spaced, took %v", elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.GetAircraft(ctx, 0, 0, 10); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

// Helper functions
func strPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

// TestRegionsFromConfig tests conversion of configured regions.
func TestRegionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	if got := RegionsFromConfig(cfg); len(got) != 1 || !got[0].Global() || got[0].Name != "global" {
		t.Errorf("Expected a single global region, got %+v", got)
	}

	cfg.Regions = []config.RegionConfig{
		{Name: "bay", Enabled: true, Bounds: &config.BoundsConfig{MinLat: 37, MinLon: -123, MaxLat: 38.5, MaxLon: -121.5}},
		{Name: "nyc", Enabled: true, Center: &config.PointConfig{Latitude: 40.7128, Longitude: -74.006}, RadiusKm: 100},
		{Name: "off", Enabled: false},
	}
	got := RegionsFromConfig(cfg)
	if len(got) != 2 {
		t.Fatalf("Expected 2 enabled regions, got %d", len(got))
	}
	if got[0].Bounds == nil || got[0].Bounds.MaxLon != -121.5 {
		t.Errorf("Unexpected bounds region %+v", got[0])
	}
	if got[1].Center == nil || got[1].RadiusKm != 100 || got[1].String() != "nyc" {
		t.Errorf("Unexpected radius region %+v", got[1])
	}
	if !got[1].Contains(coordinates.Geographic{Latitude: 40.75, Longitude: -73.98}) {
		t.Error("Manhattan should be inside the nyc region")
	}
}
