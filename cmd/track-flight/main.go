package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/unklstewy/ads-routes/internal/collector"
	"github.com/unklstewy/ads-routes/internal/logging"
	"github.com/unklstewy/ads-routes/pkg/adsb"
	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/render"
	"github.com/unklstewy/ads-routes/pkg/routefile"
	"github.com/unklstewy/ads-routes/pkg/tracking"
)

// track-flight looks up one flight by callsign and optionally follows it,
// saving the position history as CSV, a routes-format path or a map.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	follow := flag.Bool("follow", false, "Keep polling the flight's position")
	interval := flag.Duration("interval", 30*time.Second, "Time between updates when following")
	updates := flag.Int("updates", 0, "Number of updates when following (0 = until Ctrl+C)")
	output := flag.String("o", "", "Save the position history to this CSV file")
	pathOut := flag.String("path-out", "", "Save the flown path in routes-file format")
	plot := flag.String("plot", "", "Render the flown path to this PNG file")
	sourceName := flag.String("source", "", "ADS-B source name or type")
	apiKey := flag.String("api-key", "", "ADS-B Exchange RapidAPI key (optional)")
	useDB := flag.Bool("db", false, "Archive positions in PostgreSQL")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] CALLSIGN\n\nExamples:\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "  track-flight UA262")
		fmt.Fprintln(flag.CommandLine.Output(), "  track-flight -follow -interval 30s -o ua262.csv -plot ua262.png UAL262")
		fmt.Fprintln(flag.CommandLine.Output())
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	callsign := strings.ToUpper(strings.TrimSpace(flag.Arg(0)))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	closer := logging.Setup(*verbose, cfg.Logging)
	defer closer.Close()

	sc, err := collector.SelectSource(cfg, *sourceName)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}
	if *apiKey != "" {
		sc.APIKey = *apiKey
	}

	// The bare client keeps direct callsign lookups available
	source, err := adsb.NewDataSource(sc)
	if err != nil {
		log.Fatalf("Failed to create ADS-B client: %v", err)
	}
	defer source.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := tracking.NewTracker(source, adsb.Region{})
	out := newPrinter(os.Stdout)

	var arch *archiver
	if *useDB || cfg.Database.Enabled {
		arch = newArchiver(cfg.Database)
		defer arch.Close()
	}

	var history []tracking.TrackPoint
	if *follow {
		onUpdate := out.update
		if arch != nil {
			// Archive as we go so an interrupted session keeps its positions
			onUpdate = func(u tracking.Update) {
				out.update(u)
				if u.Point == nil {
					return
				}
				if _, err := arch.save(ctx, []tracking.TrackPoint{*u.Point}); err != nil {
					log.Printf("✗ %v", err)
				}
			}
		}
		out.banner(callsign, *interval)
		history, err = tracker.Follow(ctx, callsign, *interval, *updates, onUpdate)
		if err != nil {
			log.Fatalf("Tracking failed: %v", err)
		}
		if ctx.Err() != nil {
			out.stopped()
		}
	} else {
		out.searching(callsign)
		ac, err := tracker.Find(ctx, callsign)
		if err != nil {
			out.notFound(callsign, err)
			os.Exit(1)
		}
		p := tracking.NewTrackPoint(*ac)
		tracker.Record(p)
		out.position(1, p)
		history = tracker.History()
	}

	if len(history) == 0 {
		out.notFound(callsign, tracking.ErrNotFound)
		os.Exit(1)
	}
	out.summary(len(history))

	if *output != "" {
		if err := routefile.WriteTrackFile(*output, history); err != nil {
			log.Fatalf("Failed to write track: %v", err)
		}
		out.saved("Data", *output)
	}

	path := routefile.PathRoutes(history)
	if *pathOut != "" {
		if err := routefile.WriteRoutesFile(*pathOut, path, routefile.DefaultCO2Intensity); err != nil {
			log.Fatalf("Failed to write path: %v", err)
		}
		out.saved("Path", *pathOut)
	}
	if *plot != "" {
		if len(path) == 0 {
			log.Println("Need at least 2 positions to plot a path")
		} else {
			opts := render.OptionsFromConfig(cfg)
			opts.Title = fmt.Sprintf("%s  %d positions", history[0].Callsign, len(history))
			if err := render.RenderFile(*plot, path, opts); err != nil {
				log.Fatalf("Failed to render map: %v", err)
			}
			out.saved("Map", *plot)
		}
	}

	if arch != nil {
		if !*follow {
			if _, err := arch.save(ctx, history); err != nil {
				log.Printf("✗ %v", err)
			}
		}
		log.Printf("✓ Archived %d of %d positions", arch.saved, len(history))
	}
}
