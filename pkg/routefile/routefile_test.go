package routefile

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/unklstewy/ads-routes/pkg/routes"
	"github.com/unklstewy/ads-routes/pkg/tracking"
)

func ptr(v float64) *float64 { return &v }

// TestWriteRoutes tests the exact routes-file layout.
func TestWriteRoutes(t *testing.T) {
	records := []routes.RouteRecord{
		{DepLat: 37.5, DepLon: -125.5, ArrLat: 37.5, ArrLon: -119.5, Count: 3},
		{DepLat: -0.5, DepLon: 179.5, ArrLat: 0.5, ArrLon: -179.5, Count: 1},
	}

	var buf bytes.Buffer
	if err := WriteRoutes(&buf, records, DefaultCO2Intensity); err != nil {
		t.Fatalf("WriteRoutes failed: %v", err)
	}

	want := "DepLat;DepLon;ArrLat;ArrLon;NbFlights;CO2Intensity\n" +
		"37.50000;-125.50000;37.50000;-119.50000;3;50.00000\n" +
		"-0.50000;179.50000;0.50000;-179.50000;1;50.00000\n"
	if buf.String() != want {
		t.Errorf("Unexpected output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

// TestReadRoutes tests parsing, including missing values and blank lines.
func TestReadRoutes(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int
		wantErr bool
	}{
		{
			name:  "Round trip layout",
			input: "DepLat;DepLon;ArrLat;ArrLon;NbFlights;CO2Intensity\n1.5;2.5;3.5;4.5;7;12.0\n",
			want:  1,
		},
		{
			name:  "Missing values skipped",
			input: "h;h;h;h;h;h\n1;2;3;4;5;50\n\\N;2;3;4;5;50\n1;2;3;4;\\N;50\n",
			want:  1,
		},
		{
			name:  "Blank lines ignored",
			input: "h;h;h;h;h;h\n\n1;2;3;4;5;50\n\n",
			want:  1,
		},
		{
			name:  "Without CO2 column",
			input: "h;h;h;h;h\n1;2;3;4;5\n",
			want:  1,
		},
		{
			name:  "Float counts",
			input: "h;h;h;h;h;h\n1;2;3;4;5.0;50\n",
			want:  1,
		},
		{
			name:  "Header only",
			input: "DepLat;DepLon;ArrLat;ArrLon;NbFlights;CO2Intensity\n",
			want:  0,
		},
		{
			name:    "Bad number",
			input:   "h;h;h;h;h;h\n1;x;3;4;5;50\n",
			wantErr: true,
		},
		{
			name:    "Too few fields",
			input:   "h;h;h;h;h;h\n1;2;3\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadRoutes(strings.NewReader(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadRoutes failed: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Expected %d routes, got %d", tt.want, len(got))
			}
		})
	}

	t.Run("Values", func(t *testing.T) {
		got, err := ReadRoutes(strings.NewReader("h;h;h;h;h;h\n1.5;2.5;3.5;4.5;7;12.0\n1;2;3;4;1\n"))
		if err != nil {
			t.Fatalf("ReadRoutes failed: %v", err)
		}
		r := got[0]
		if r.DepLat != 1.5 || r.DepLon != 2.5 || r.ArrLat != 3.5 || r.ArrLon != 4.5 || r.Count != 7 || r.CO2Intensity != 12 {
			t.Errorf("Unexpected route %+v", r)
		}
		if got[1].CO2Intensity != DefaultCO2Intensity {
			t.Errorf("Expected default CO2 when column is absent, got %v", got[1].CO2Intensity)
		}
	})
}

// TestRoutesFileRoundTrip tests writing and reading back through disk.
func TestRoutesFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.csv")
	records := []routes.RouteRecord{
		{DepLat: 37.5, DepLon: -125.5, ArrLat: 37.5, ArrLon: -119.5, Count: 4},
	}

	if err := WriteRoutesFile(path, records, DefaultCO2Intensity); err != nil {
		t.Fatalf("WriteRoutesFile failed: %v", err)
	}
	got, err := ReadRoutesFile(path)
	if err != nil {
		t.Fatalf("ReadRoutesFile failed: %v", err)
	}
	back := Records(got)
	if len(back) != 1 || back[0] != records[0] {
		t.Errorf("Round trip mismatch: %+v", back)
	}

	if _, err := ReadRoutesFile(filepath.Join(t.TempDir(), "missing.csv")); err == nil {
		t.Error("Expected error for missing file")
	}
}

// TestPathRoutes tests connecting track positions.
func TestPathRoutes(t *testing.T) {
	points := []tracking.TrackPoint{
		{Latitude: 1, Longitude: 1},
		{Latitude: 2, Longitude: 2},
		{Latitude: 3, Longitude: 3},
	}

	got := PathRoutes(points)
	if len(got) != 2 {
		t.Fatalf("Expected 2 segments, got %d", len(got))
	}
	want := routes.RouteRecord{DepLat: 2, DepLon: 2, ArrLat: 3, ArrLon: 3, Count: 1}
	if got[1] != want {
		t.Errorf("Expected %+v, got %+v", want, got[1])
	}

	if PathRoutes(points[:1]) != nil {
		t.Error("A single point has no path")
	}
}

// TestTrackRoundTrip tests the track file layout and parsing.
func TestTrackRoundTrip(t *testing.T) {
	ts := time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)
	points := []tracking.TrackPoint{
		{
			Timestamp:       ts,
			Callsign:        "UAL262",
			ICAO:            "A1B2C3",
			Latitude:        37.618999,
			Longitude:       -122.375,
			AltitudeFt:      ptr(10000),
			GroundSpeedKts:  ptr(250),
			Track:           ptr(90),
			VerticalRateFpm: ptr(-1000),
			Registration:    "N12345",
			Type:            "B789",
			Origin:          "SFO",
			Destination:     "EWR",
		},
		{
			Timestamp: ts.Add(time.Minute),
			Callsign:  "UAL262",
			ICAO:      "A1B2C3",
			Latitude:  37.7,
			Longitude: -122.0,
		},
	}

	var buf bytes.Buffer
	if err := WriteTrack(&buf, points); err != nil {
		t.Fatalf("WriteTrack failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	if lines[0] != strings.Join(TrackHeader, ",") {
		t.Errorf("Unexpected header %q", lines[0])
	}
	wantRow := "2025-03-01T18:30:00Z,UAL262,A1B2C3,37.618999,-122.375000,3048.0,10000,128.61,250.0,90.0,-5.08,-1000,N12345,B789,SFO,EWR"
	if lines[1] != wantRow {
		t.Errorf("Unexpected row:\n%s\nwant:\n%s", lines[1], wantRow)
	}
	if !strings.HasSuffix(lines[2], ",,,,,,,,,,,") {
		t.Errorf("Missing values should be empty: %q", lines[2])
	}

	got, err := ReadTrack(&buf)
	if err != nil {
		t.Fatalf("ReadTrack failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(got))
	}
	if !got[0].Timestamp.Equal(ts) || got[0].Callsign != "UAL262" || *got[0].AltitudeFt != 10000 {
		t.Errorf("Unexpected first point %+v", got[0])
	}
	if got[1].AltitudeFt != nil || got[1].Track != nil {
		t.Error("Absent values should read back as nil")
	}

	t.Run("Metric only columns", func(t *testing.T) {
		in := "Latitude,Longitude,Altitude_m\n1,2,1000\n"
		got, err := ReadTrack(strings.NewReader(in))
		if err != nil {
			t.Fatalf("ReadTrack failed: %v", err)
		}
		if got[0].AltitudeFt == nil || *got[0].AltitudeFt < 3280 || *got[0].AltitudeFt > 3281 {
			t.Errorf("Expected ~3281 ft, got %v", got[0].AltitudeFt)
		}
	})

	t.Run("Missing position column", func(t *testing.T) {
		if _, err := ReadTrack(strings.NewReader("Callsign\nUAL1\n")); err == nil {
			t.Error("Expected error")
		}
	})
}
