package routes

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/unklstewy/ads-routes/pkg/coordinates"
)

func ptr(v float64) *float64 { return &v }

func newTestAggregator(t *testing.T, opts Options) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(opts)
	if err != nil {
		t.Fatalf("NewAggregator failed: %v", err)
	}
	return agg
}

func approx(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// TestSanFranciscoEastbound covers a single eastbound aircraft over San Francisco.
func TestSanFranciscoEastbound(t *testing.T) {
	agg := newTestAggregator(t, DefaultOptions())

	err := agg.Add(Observation{Latitude: 37.7749, Longitude: -122.4194, Heading: ptr(90), GroundSpeed: ptr(450)})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	routes := agg.Routes(1)
	if len(routes) != 1 {
		t.Fatalf("Expected 1 route, got %d", len(routes))
	}
	r := routes[0]

	if r.Count != 1 {
		t.Errorf("Expected count 1, got %d", r.Count)
	}
	if r.DepLat != 37.5 || r.DepLon != -125.5 {
		t.Errorf("Departure = (%v, %v), want (37.5, -125.5)", r.DepLat, r.DepLon)
	}
	if r.ArrLat != 37.5 || r.ArrLon != -119.5 {
		t.Errorf("Arrival = (%v, %v), want (37.5, -119.5)", r.ArrLat, r.ArrLon)
	}

	// Within one grid cell of the unsnapped projection
	if !approx(r.DepLat, 37.77, 1.5) || !approx(r.DepLon, -124.32, 1.5) {
		t.Errorf("Departure (%v, %v) too far from ~(37.77, -124.32)", r.DepLat, r.DepLon)
	}
	if !approx(r.ArrLat, 37.65, 1.5) || !approx(r.ArrLon, -120.12, 1.5) {
		t.Errorf("Arrival (%v, %v) too far from ~(37.65, -120.12)", r.ArrLat, r.ArrLon)
	}

	// Departure west of the observation, arrival east of it
	if r.DepLon >= -122.4194 || r.ArrLon <= -122.4194 {
		t.Errorf("Expected departure west and arrival east, got dep %v arr %v", r.DepLon, r.ArrLon)
	}
}

// TestMinFlightsThreshold covers repeated observations against the threshold.
func TestMinFlightsThreshold(t *testing.T) {
	agg := newTestAggregator(t, DefaultOptions())

	for i := 0; i < 5; i++ {
		if err := agg.Add(Observation{Latitude: 37.7749, Longitude: -122.4194, Heading: ptr(90)}); err != nil {
			t.Fatalf("Add %d failed: %v", i, err)
		}
	}

	tests := []struct {
		minFlights int
		wantLen    int
	}{
		{-3, 1},
		{0, 1},
		{1, 1},
		{5, 1},
		{6, 0},
	}

	for _, tt := range tests {
		got := agg.Routes(tt.minFlights)
		if len(got) != tt.wantLen {
			t.Errorf("Routes(%d) returned %d records, want %d", tt.minFlights, len(got), tt.wantLen)
		}
		if len(got) == 1 && got[0].Count != 5 {
			t.Errorf("Routes(%d) count = %d, want 5", tt.minFlights, got[0].Count)
		}
	}
}

// TestNewAggregatorValidation covers configuration errors.
func TestNewAggregatorValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Options)
		wantErr bool
	}{
		{"Defaults", func(o *Options) {}, false},
		{"Zero resolution", func(o *Options) { o.GridResolution = 0 }, true},
		{"Negative resolution", func(o *Options) { o.GridResolution = -1 }, true},
		{"NaN resolution", func(o *Options) { o.GridResolution = math.NaN() }, true},
		{"Infinite resolution", func(o *Options) { o.GridResolution = math.Inf(1) }, true},
		{"Resolution wider than the globe", func(o *Options) { o.GridResolution = 200 }, true},
		{"Fine resolution", func(o *Options) { o.GridResolution = 0.1 }, false},
		{"Negative min flights", func(o *Options) { o.MinFlights = -1 }, true},
		{"Negative segment", func(o *Options) { o.SegmentLengthKm = -10 }, true},
		{"Zero segment uses default", func(o *Options) { o.SegmentLengthKm = 0 }, false},
		{"Unknown policy", func(o *Options) { o.Policy = Policy(7) }, true},
		{"Negative speed floor", func(o *Options) { o.MinGroundSpeedKts = -5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			tt.mutate(&opts)

			agg, err := NewAggregator(opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("Expected ErrConfiguration, got %v", err)
				}
				var cfgErr *ConfigurationError
				if !errors.As(err, &cfgErr) {
					t.Errorf("Expected *ConfigurationError, got %T", err)
				}
				if agg != nil {
					t.Error("Expected nil aggregator on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		})
	}

	agg := newTestAggregator(t, Options{GridResolution: 2})
	got := agg.Options()
	if got.SegmentLengthKm != DefaultSegmentLengthKm || got.MinFlights != DefaultMinFlights || got.HorizonHours != DefaultHorizonHours {
		t.Errorf("Expected zero fields to take defaults, got %+v", got)
	}
}

// TestMissingHeading covers observations without track data.
func TestMissingHeading(t *testing.T) {
	agg := newTestAggregator(t, DefaultOptions())

	observations := []Observation{
		{Latitude: 10, Longitude: 10},
		{Latitude: 10, Longitude: 10, Heading: ptr(math.NaN())},
		{Latitude: 10, Longitude: 10, GroundSpeed: ptr(300)},
	}
	for _, obs := range observations {
		if err := agg.Add(obs); err != nil {
			t.Errorf("Add(%+v) returned %v, want nil", obs, err)
		}
	}

	if n := len(agg.Routes(1)); n != 0 {
		t.Errorf("Expected no routes, got %d", n)
	}
	if s := agg.Stats(); s.SkippedNoHeading != 3 || s.Observations != 3 || s.Aggregated != 0 {
		t.Errorf("Unexpected stats: %+v", s)
	}
}

// TestInvalidObservation covers out-of-range positions.
func TestInvalidObservation(t *testing.T) {
	agg := newTestAggregator(t, DefaultOptions())

	bad := []Observation{
		{Latitude: 91, Longitude: 0, Heading: ptr(0)},
		{Latitude: -90.5, Longitude: 0, Heading: ptr(0)},
		{Latitude: 0, Longitude: 181, Heading: ptr(0)},
		{Latitude: math.NaN(), Longitude: 0, Heading: ptr(0)},
	}
	for _, obs := range bad {
		err := agg.Add(obs)
		if !errors.Is(err, ErrInvalidObservation) {
			t.Errorf("Add(%+v) = %v, want ErrInvalidObservation", obs, err)
		}
	}

	// Aggregator stays usable
	if err := agg.Add(Observation{Latitude: 0, Longitude: 0, Heading: ptr(45)}); err != nil {
		t.Fatalf("Add after invalid observation failed: %v", err)
	}
	if n := len(agg.Routes(1)); n != 1 {
		t.Errorf("Expected 1 route, got %d", n)
	}
	if s := agg.Stats(); s.Invalid != 4 {
		t.Errorf("Expected 4 invalid, got %d", s.Invalid)
	}
}

// TestHeadingNormalization checks that 360 and 0 aggregate together.
func TestHeadingNormalization(t *testing.T) {
	agg := newTestAggregator(t, DefaultOptions())

	for _, h := range []float64{0, 360, 720, -360} {
		if err := agg.Add(Observation{Latitude: 51.47, Longitude: -0.45, Heading: ptr(h)}); err != nil {
			t.Fatalf("Add heading %v failed: %v", h, err)
		}
	}

	routes := agg.Routes(1)
	if len(routes) != 1 {
		t.Fatalf("Expected 1 route, got %d", len(routes))
	}
	if routes[0].Count != 4 {
		t.Errorf("Expected count 4, got %d", routes[0].Count)
	}
	if routes[0].DepLat >= routes[0].ArrLat {
		t.Errorf("Northbound route should depart south of arrival: %+v", routes[0])
	}
}

// TestGridInvariant checks that observations in one cell with one heading
// share a record, and that every stored coordinate is a cell centre.
func TestGridInvariant(t *testing.T) {
	resolutions := []float64{0.25, 0.5, 1, 2.5, 5}

	for _, res := range resolutions {
		opts := DefaultOptions()
		opts.GridResolution = res
		agg := newTestAggregator(t, opts)

		base := coordinates.Geographic{
			Latitude:  math.Floor(37.0/res)*res + res*0.1,
			Longitude: math.Floor(-123.0/res)*res + res*0.1,
		}
		other := coordinates.Geographic{Latitude: base.Latitude + res*0.8, Longitude: base.Longitude + res*0.8}

		// Both points must start in the same cell for the property to apply
		if agg.Grid().Cell(base) != agg.Grid().Cell(other) {
			t.Fatalf("Test points not in one cell at resolution %v", res)
		}

		for _, p := range []coordinates.Geographic{base, other} {
			if err := agg.Add(Observation{Latitude: p.Latitude, Longitude: p.Longitude, Heading: ptr(135)}); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}

		routes := agg.Routes(1)
		if len(routes) != 1 || routes[0].Count != 2 {
			t.Errorf("Resolution %v: expected one record with count 2, got %+v", res, routes)
			continue
		}

		for _, v := range []float64{routes[0].DepLat, routes[0].DepLon, routes[0].ArrLat, routes[0].ArrLon} {
			frac := math.Mod(math.Abs(v)/res, 1)
			if !approx(frac, 0.5, 1e-9) {
				t.Errorf("Resolution %v: coordinate %v is not a cell centre", res, v)
			}
		}
	}
}

// TestDistinctCellsDistinctRecords checks that separate routes are not merged.
func TestDistinctCellsDistinctRecords(t *testing.T) {
	agg := newTestAggregator(t, DefaultOptions())

	observations := []Observation{
		{Latitude: 37.7749, Longitude: -122.4194, Heading: ptr(90)},
		{Latitude: 37.7749, Longitude: -122.4194, Heading: ptr(270)},
		{Latitude: 47.45, Longitude: -122.31, Heading: ptr(90)},
	}
	for _, obs := range observations {
		if err := agg.Add(obs); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	routes := agg.Routes(1)
	if len(routes) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(routes))
	}

	// Insertion order
	if routes[0].ArrLon != -119.5 || routes[1].ArrLon != -125.5 {
		t.Errorf("Unexpected order: %+v", routes)
	}
	if routes[1].DepLon != routes[0].ArrLon || routes[1].ArrLon != routes[0].DepLon {
		t.Errorf("Reverse heading should swap departure and arrival: %+v vs %+v", routes[0], routes[1])
	}
}

// TestRoutesSnapshot checks that returned records are independent of later adds.
func TestRoutesSnapshot(t *testing.T) {
	agg := newTestAggregator(t, DefaultOptions())
	obs := Observation{Latitude: 40.64, Longitude: -73.78, Heading: ptr(60)}

	if err := agg.Add(obs); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	snapshot := agg.Routes(1)

	if err := agg.Add(obs); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if snapshot[0].Count != 1 {
		t.Errorf("Snapshot changed after Add: count %d", snapshot[0].Count)
	}
	if agg.Routes(1)[0].Count != 2 {
		t.Errorf("Expected live count 2, got %d", agg.Routes(1)[0].Count)
	}

	snapshot[0].Count = 99
	if agg.Routes(1)[0].Count != 2 {
		t.Error("Mutating snapshot modified aggregator state")
	}
}

// TestSameCellRoute checks that a segment shorter than a cell yields a record
// whose departure and arrival coincide.
func TestSameCellRoute(t *testing.T) {
	agg := newTestAggregator(t, Options{GridResolution: 1, SegmentLengthKm: 1})

	if err := agg.Add(Observation{Latitude: 10.5, Longitude: 10.5, Heading: ptr(90)}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	got := agg.Routes(1)
	want := []RouteRecord{{DepLat: 10.5, DepLon: 10.5, ArrLat: 10.5, ArrLon: 10.5, Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Routes(1) = %+v, want %+v", got, want)
	}
	if s := agg.Stats(); s.Aggregated != 1 || s.Invalid != 0 {
		t.Errorf("Same-cell route should aggregate normally, got %+v", s)
	}
}

func busyAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg := newTestAggregator(t, DefaultOptions())
	traffic := []struct {
		obs   Observation
		times int
	}{
		{Observation{Latitude: 51.47, Longitude: -0.45, Heading: ptr(270)}, 5},
		{Observation{Latitude: 40.64, Longitude: -73.78, Heading: ptr(60)}, 2},
		{Observation{Latitude: -33.95, Longitude: 151.18, Heading: ptr(10)}, 1},
		{Observation{Latitude: 35.55, Longitude: 139.78, Heading: ptr(180)}, 6},
	}
	for _, tr := range traffic {
		for i := 0; i < tr.times; i++ {
			if err := agg.Add(tr.obs); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}
	}
	return agg
}

// TestRoutesIdempotent checks that reading routes does not change them.
func TestRoutesIdempotent(t *testing.T) {
	agg := busyAggregator(t)

	first := agg.Routes(1)
	statsBefore := agg.Stats()
	second := agg.Routes(1)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("Consecutive reads differ:\n%+v\n%+v", first, second)
	}
	if agg.Stats() != statsBefore || agg.Len() != len(first) {
		t.Error("Reading routes changed the aggregator")
	}
}

// TestRoutesSuperset checks that lowering the threshold never drops a record.
func TestRoutesSuperset(t *testing.T) {
	agg := busyAggregator(t)

	all := agg.Routes(1)
	keys := make(map[RouteRecord]bool, len(all))
	for _, r := range all {
		keys[r] = true
	}

	for _, threshold := range []int{2, 5, 6, 7} {
		subset := agg.Routes(threshold)
		for _, r := range subset {
			if r.Count < threshold {
				t.Errorf("Routes(%d) returned count %d", threshold, r.Count)
			}
			if !keys[r] {
				t.Errorf("Routes(%d) record %+v missing from Routes(1)", threshold, r)
			}
		}
		want := 0
		for _, r := range all {
			if r.Count >= threshold {
				want++
			}
		}
		if len(subset) != want {
			t.Errorf("Routes(%d) returned %d records, want %d", threshold, len(subset), want)
		}
	}

	if n := len(agg.Routes(5)); n != 2 {
		t.Errorf("Expected 2 routes with at least 5 flights, got %d", n)
	}
	if n := len(all); n != 4 {
		t.Errorf("Expected 4 routes, got %d", n)
	}
}

// TestAntimeridianAndPoles checks projections that wrap or cross a pole.
func TestAntimeridianAndPoles(t *testing.T) {
	agg := newTestAggregator(t, DefaultOptions())

	if err := agg.Add(Observation{Latitude: 0.2, Longitude: 179.9, Heading: ptr(90)}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	routes := agg.Routes(1)
	if len(routes) != 1 {
		t.Fatalf("Expected 1 route, got %d", len(routes))
	}
	if routes[0].DepLon != 177.5 || routes[0].ArrLon != -178.5 {
		t.Errorf("Antimeridian route = %+v, want dep lon 177.5 arr lon -178.5", routes[0])
	}

	for _, obs := range []Observation{
		{Latitude: 89.9, Longitude: 0, Heading: ptr(0)},
		{Latitude: -89.9, Longitude: 100, Heading: ptr(180)},
		{Latitude: 90, Longitude: 180, Heading: ptr(45)},
	} {
		if err := agg.Add(obs); err != nil {
			t.Fatalf("Add(%+v) failed: %v", obs, err)
		}
	}
	for _, r := range agg.Routes(1) {
		if !r.Departure().Valid() || !r.Arrival().Valid() {
			t.Errorf("Record outside valid ranges: %+v", r)
		}
	}
}

// TestSpeedScaledPolicy checks projection lengths derived from ground speed.
func TestSpeedScaledPolicy(t *testing.T) {
	opts := DefaultOptions()
	opts.Policy = PolicySpeedScaled
	agg := newTestAggregator(t, opts)

	// 270 kts for one hour is 500 km each way
	if err := agg.Add(Observation{Latitude: 37.7749, Longitude: -122.4194, Heading: ptr(90), GroundSpeed: ptr(270)}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	// No ground speed falls back to the constant segment
	if err := agg.Add(Observation{Latitude: 37.7749, Longitude: -122.4194, Heading: ptr(90)}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	routes := agg.Routes(1)
	if len(routes) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(routes))
	}
	if routes[0].DepLon != -128.5 || routes[0].ArrLon != -116.5 {
		t.Errorf("Speed-scaled route = %+v, want dep lon -128.5 arr lon -116.5", routes[0])
	}
	if routes[1].DepLon != -125.5 || routes[1].ArrLon != -119.5 {
		t.Errorf("Fallback route = %+v, want dep lon -125.5 arr lon -119.5", routes[1])
	}

	// Constant policy ignores ground speed
	constant := newTestAggregator(t, DefaultOptions())
	_ = constant.Add(Observation{Latitude: 37.7749, Longitude: -122.4194, Heading: ptr(90), GroundSpeed: ptr(270)})
	_ = constant.Add(Observation{Latitude: 37.7749, Longitude: -122.4194, Heading: ptr(90), GroundSpeed: ptr(90)})
	if n := len(constant.Routes(1)); n != 1 {
		t.Errorf("Constant policy produced %d records, want 1", n)
	}
}

// TestMinGroundSpeed checks the optional slow-aircraft filter.
func TestMinGroundSpeed(t *testing.T) {
	opts := DefaultOptions()
	opts.MinGroundSpeedKts = 50
	agg := newTestAggregator(t, opts)

	_ = agg.Add(Observation{Latitude: 33.94, Longitude: -118.41, Heading: ptr(250), GroundSpeed: ptr(12)})
	_ = agg.Add(Observation{Latitude: 33.94, Longitude: -118.41, Heading: ptr(250), GroundSpeed: ptr(160)})
	_ = agg.Add(Observation{Latitude: 33.94, Longitude: -118.41, Heading: ptr(250)})

	routes := agg.Routes(1)
	if len(routes) != 1 || routes[0].Count != 2 {
		t.Errorf("Expected one record with count 2, got %+v", routes)
	}
	if s := agg.Stats(); s.SkippedSlow != 1 {
		t.Errorf("Expected 1 slow skip, got %d", s.SkippedSlow)
	}
}

// TestMerge checks that merging sums counts and keeps record order.
func TestMerge(t *testing.T) {
	a := newTestAggregator(t, DefaultOptions())
	b := newTestAggregator(t, DefaultOptions())

	east := Observation{Latitude: 37.7749, Longitude: -122.4194, Heading: ptr(90)}
	north := Observation{Latitude: 51.47, Longitude: -0.45, Heading: ptr(0)}

	_ = a.Add(east)
	_ = a.Add(east)
	_ = b.Add(east)
	_ = b.Add(north)

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge failed: %v", err)
	}

	routes := a.Routes(1)
	if len(routes) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(routes))
	}
	if routes[0].Count != 3 || routes[1].Count != 1 {
		t.Errorf("Unexpected counts after merge: %+v", routes)
	}
	if a.Stats().Aggregated != 4 {
		t.Errorf("Expected 4 aggregated, got %d", a.Stats().Aggregated)
	}

	// Source is untouched
	if b.Routes(1)[0].Count != 1 {
		t.Error("Merge modified the source aggregator")
	}

	if err := a.Merge(nil); err != nil {
		t.Errorf("Merge(nil) = %v", err)
	}

	opts := DefaultOptions()
	opts.GridResolution = 2
	c := newTestAggregator(t, opts)
	if err := a.Merge(c); !errors.Is(err, ErrConfiguration) {
		t.Errorf("Merge with different resolution = %v, want ErrConfiguration", err)
	}
}

// TestParsePolicy tests policy name parsing.
func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
		ok   bool
	}{
		{"", PolicyConstant, true},
		{"constant", PolicyConstant, true},
		{"speed-scaled", PolicySpeedScaled, true},
		{"bogus", PolicyConstant, false},
	}

	for _, tt := range tests {
		got, ok := ParsePolicy(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParsePolicy(%q) = (%v, %v), want (%v, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if PolicySpeedScaled.String() != "speed-scaled" {
		t.Errorf("Unexpected String(): %s", PolicySpeedScaled)
	}
}
