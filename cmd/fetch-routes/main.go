package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/unklstewy/ads-routes/internal/collector"
	"github.com/unklstewy/ads-routes/internal/db"
	"github.com/unklstewy/ads-routes/internal/kafka"
	"github.com/unklstewy/ads-routes/internal/logging"
	"github.com/unklstewy/ads-routes/internal/snapshot"
	"github.com/unklstewy/ads-routes/pkg/adsb"
	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/coordinates"
	"github.com/unklstewy/ads-routes/pkg/routefile"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// fetch-routes takes one or more snapshots of current flights, aggregates
// them into pseudo-routes and writes the routes file. Runs can also be
// archived in PostgreSQL and published to Kafka.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	output := flag.String("o", "", "Output CSV file path (default from config: flights_realtime.csv)")
	bounds := flag.String("bounds", "", "Filter by bounding box: MIN_LAT,MIN_LON,MAX_LAT,MAX_LON")
	center := flag.String("center", "", "Center point for radius filter: LAT,LON")
	radius := flag.Float64("radius", 0, "Radius in kilometers (requires -center)")
	minFlights := flag.Int("min-flights", 0, "Minimum number of flights per route (default from config)")
	gridRes := flag.Float64("grid-resolution", 0, "Grid resolution in degrees (default from config)")
	segmentKm := flag.Float64("segment-km", 0, "Assumed route length in km (default from config)")
	sourceName := flag.String("source", "", "ADS-B source name or type (adsbexchange, airplaneslive, opensky)")
	apiKey := flag.String("api-key", "", "ADS-B Exchange RapidAPI key (optional)")
	snapshotOut := flag.String("snapshot-out", "", "Save fetched aircraft to this snapshot file")
	snapshotIn := flag.String("snapshot-in", "", "Aggregate a saved snapshot file instead of fetching")
	useDB := flag.Bool("db", false, "Archive the run in PostgreSQL")
	kafkaBroker := flag.String("kafka-broker", "", "Publish routes to this Kafka broker (host:port)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	logFile := flag.String("log-file", "", "Also write logs to this rotating file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *logFile != "" {
		cfg.Logging.File = *logFile
	}
	closer := logging.Setup(*verbose, cfg.Logging)
	defer closer.Close()

	if *radius > 0 && *center == "" {
		fmt.Fprintln(os.Stderr, "Error: -radius requires -center")
		flag.Usage()
		os.Exit(2)
	}

	// Flags override the configuration file
	err = applyOverrides(cfg, overrides{
		output:      *output,
		minFlights:  *minFlights,
		gridRes:     *gridRes,
		segmentKm:   *segmentKm,
		snapshotOut: *snapshotOut,
		useDB:       *useDB,
		kafkaBroker: *kafkaBroker,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	regions := adsb.RegionsFromConfig(cfg)
	if *bounds != "" || *center != "" {
		region, err := regionFromFlags(*bounds, *center, *radius)
		if err != nil {
			log.Fatalf("Invalid region: %v", err)
		}
		regions = []adsb.Region{region}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		source adsb.DataSource
		rounds = cfg.Aggregation.Snapshots
	)
	if *snapshotIn != "" {
		file, err := snapshot.Load(*snapshotIn)
		if err != nil {
			log.Fatalf("Failed to load snapshot: %v", err)
		}
		log.Printf("✓ Loaded %d frames (%d aircraft) from %s", len(file.Frames), file.AircraftCount(), *snapshotIn)
		source = snapshot.NewReplay(*snapshotIn, file)
		rounds = len(file.Frames)
	} else {
		sc, err := collector.SelectSource(cfg, *sourceName)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}
		if *apiKey != "" {
			sc.APIKey = *apiKey
		}
		source, err = collector.OpenSource(sc)
		if err != nil {
			log.Fatalf("Failed to create ADS-B client: %v", err)
		}
	}
	defer source.Close()

	opts := collector.OptionsFromConfig(cfg.Aggregation)
	log.Printf("Source: %s", source.Name())
	log.Printf("Aggregation: grid %.2f°, segment %.0f km, policy %s, min flights %d",
		opts.GridResolution, opts.SegmentLengthKm, opts.Policy, opts.MinFlights)
	for _, r := range regions {
		logging.Debugf("Region: %s", r)
	}

	var snap *snapshot.File
	if cfg.Output.SnapshotFile != "" {
		snap = snapshot.New()
	}

	c := &collector.Collector{
		Source:   source,
		Regions:  regions,
		Options:  opts,
		Rounds:   rounds,
		Interval: time.Duration(cfg.Aggregation.IntervalSeconds) * time.Second,
	}
	if snap != nil {
		c.OnFrame = snap.Append
	}

	res, err := c.Collect(ctx)
	if snap != nil && len(snap.Frames) > 0 {
		if err := snapshot.Save(cfg.Output.SnapshotFile, snap); err != nil {
			log.Printf("✗ Failed to save snapshot: %v", err)
		} else {
			log.Printf("✓ Saved %d frames to %s", len(snap.Frames), cfg.Output.SnapshotFile)
		}
	}
	switch {
	case errors.Is(err, collector.ErrNoData) && res != nil && !hasFetchError(res):
		log.Println("No flights match the specified filters")
		os.Exit(1)
	case err != nil:
		log.Printf("No flight data retrieved: %v", err)
		os.Exit(1)
	}

	log.Printf("Filtered to %d flights", res.Aircraft)
	stats := res.Aggregator.Stats()
	logging.Debugf("Stats: %d aggregated, %d without heading, %d too slow, %d invalid",
		stats.Aggregated, stats.SkippedNoHeading, stats.SkippedSlow, stats.Invalid)

	records := res.Aggregator.DefaultRoutes()
	if len(records) == 0 {
		log.Printf("No routes with at least %d flights", opts.MinFlights)
		os.Exit(1)
	}

	if err := routefile.WriteRoutesFile(cfg.Output.RoutesFile, records, routefile.DefaultCO2Intensity); err != nil {
		log.Fatalf("Failed to write routes: %v", err)
	}
	log.Printf("✓ Saved %d routes to %s", len(records), cfg.Output.RoutesFile)

	regionLabel := regionsLabel(regions)
	var runID int64
	if cfg.Database.Enabled {
		runID = archiveRun(ctx, cfg.Database, db.NewRun(source.Name(), regionLabel, res.StartedAt, res.Aggregator, len(records)), records)
	}
	if cfg.Kafka.Enabled {
		publishRoutes(ctx, cfg.Kafka, kafka.RouteMessage{
			RunID:       runID,
			Source:      source.Name(),
			Region:      regionLabel,
			GeneratedAt: res.FinishedAt,
		}, records)
	}

	log.Printf("Done! Generated %d routes from %d flights", len(records), res.Aircraft)
	log.Printf("Visualize with: plot-routes -i %s", cfg.Output.RoutesFile)
}

// hasFetchError reports whether any region failed to fetch.
func hasFetchError(res *collector.Result) bool {
	for _, r := range res.Regions {
		if r.Err != nil {
			return true
		}
	}
	return false
}

// archiveRun stores the run; failures are logged, not fatal.
func archiveRun(ctx context.Context, cfg config.DatabaseConfig, run db.Run, records []routes.RouteRecord) int64 {
	database, err := db.ReconnectWithRetry(ctx, cfg, 3, time.Second)
	if err != nil {
		log.Printf("✗ Database unavailable, run not archived: %v", err)
		return 0
	}
	defer database.Close()

	if err := database.InitSchema(ctx); err != nil {
		log.Printf("✗ Failed to initialize schema: %v", err)
		return 0
	}

	repo := db.NewRouteRepository(database)
	var id int64
	err = db.WithRetry(ctx, func() error {
		var err error
		id, err = repo.SaveRun(ctx, run, records)
		return err
	}, 3)
	if err != nil {
		log.Printf("✗ Failed to archive run: %v", err)
		return 0
	}
	log.Printf("✓ Archived run %d (%d routes)", id, len(records))

	if cfg.KeepRuns > 0 {
		if err := database.CleanupOldData(ctx, cfg.KeepRuns, 0); err != nil {
			log.Printf("✗ Cleanup failed: %v", err)
		}
	}
	return id
}

// publishRoutes sends the routes to Kafka; failures are logged, not fatal.
func publishRoutes(ctx context.Context, cfg config.KafkaConfig, meta kafka.RouteMessage, records []routes.RouteRecord) {
	if err := kafka.EnsureTopic(cfg); err != nil {
		logging.Debugf("Topic check failed: %v", err)
	}

	pub := kafka.NewPublisher(cfg)
	defer pub.Close()

	pctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := pub.PublishRoutes(pctx, meta, records); err != nil {
		log.Printf("✗ %v", err)
		return
	}
	log.Printf("✓ Published %d routes to %s", len(records), pub.Topic())
}

// regionFromFlags builds the region given by -bounds or -center/-radius.
func regionFromFlags(bounds, center string, radiusKm float64) (adsb.Region, error) {
	if bounds != "" {
		v, err := parseFloats(bounds, 4)
		if err != nil {
			return adsb.Region{}, fmt.Errorf("-bounds: %w", err)
		}
		b := adsb.Bounds{MinLat: v[0], MinLon: v[1], MaxLat: v[2], MaxLon: v[3]}
		if err := b.Validate(); err != nil {
			return adsb.Region{}, err
		}
		return adsb.Region{Bounds: &b}, nil
	}

	v, err := parseFloats(center, 2)
	if err != nil {
		return adsb.Region{}, fmt.Errorf("-center: %w", err)
	}
	c := coordinates.Geographic{Latitude: v[0], Longitude: v[1]}
	if !c.Valid() {
		return adsb.Region{}, fmt.Errorf("center %v outside valid coordinate range", v)
	}
	if radiusKm <= 0 {
		return adsb.Region{}, errors.New("-center requires a positive -radius")
	}
	return adsb.Region{Center: &c, RadiusKm: radiusKm}, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func regionsLabel(regions []adsb.Region) string {
	names := make([]string, len(regions))
	for i, r := range regions {
		names[i] = r.String()
	}
	return strings.Join(names, "+")
}

// overrides holds the command-line values that replace configuration; zero
// values leave the configuration alone.
type overrides struct {
	output      string
	minFlights  int
	gridRes     float64
	segmentKm   float64
	snapshotOut string
	useDB       bool
	kafkaBroker string
}

// applyOverrides copies the set flags into cfg and validates the result.
func applyOverrides(cfg *config.Config, o overrides) error {
	if o.output != "" {
		cfg.Output.RoutesFile = o.output
	}
	if o.minFlights != 0 {
		cfg.Aggregation.MinFlights = o.minFlights
	}
	if o.gridRes != 0 {
		cfg.Aggregation.GridResolution = o.gridRes
	}
	if o.segmentKm != 0 {
		cfg.Aggregation.SegmentLengthKm = o.segmentKm
	}
	if o.snapshotOut != "" {
		cfg.Output.SnapshotFile = o.snapshotOut
	}
	if o.useDB {
		cfg.Database.Enabled = true
	}
	if o.kafkaBroker != "" {
		cfg.Kafka.Enabled = true
		cfg.Kafka.Brokers = []string{o.kafkaBroker}
	}
	return cfg.Validate()
}
