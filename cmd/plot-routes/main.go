package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/unklstewy/ads-routes/internal/logging"
	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/render"
	"github.com/unklstewy/ads-routes/pkg/routefile"
)

// plot-routes renders a routes file as a world map of great-circle arcs.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	input := flag.String("i", "", "Input routes CSV (default from config: flights_realtime.csv)")
	output := flag.String("o", "", "Output PNG file (default from config: flights_map.png)")
	colorMode := flag.String("color-mode", "", "Colour scheme: screen or print (default from config)")
	absolute := flag.Bool("absolute", false, "Colour by flight count instead of rank")
	dpi := flag.Int("dpi", 0, "Output resolution (default from config: 150)")
	width := flag.Float64("width", 0, "Figure width in inches (default from config: 27)")
	height := flag.Float64("height", 0, "Figure height in inches (default from config: 20)")
	minFlights := flag.Int("min-flights", 1, "Only draw routes with at least this many flights")
	title := flag.String("title", "", "Title drawn in the top-left corner")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	closer := logging.Setup(*verbose, cfg.Logging)
	defer closer.Close()

	if *input != "" {
		cfg.Output.RoutesFile = *input
	}
	if *output != "" {
		cfg.Output.MapFile = *output
	}
	if *colorMode != "" {
		cfg.Visualization.ColorMode = *colorMode
	}
	if *absolute {
		cfg.Visualization.AbsoluteScaling = true
	}
	if *dpi > 0 {
		cfg.Output.DPI = *dpi
	}
	if *width > 0 {
		cfg.Visualization.Width = *width
	}
	if *height > 0 {
		cfg.Visualization.Height = *height
	}

	if _, ok := cfg.ColorSchemes[cfg.Visualization.ColorMode]; !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown colour mode %q (available: %s)\n",
			cfg.Visualization.ColorMode, strings.Join(schemeNames(cfg), ", "))
		os.Exit(2)
	}

	rs, err := routefile.ReadRoutesFile(cfg.Output.RoutesFile)
	if err != nil {
		log.Fatalf("Failed to read routes: %v", err)
	}
	records := routefile.Records(rs)

	kept := records[:0]
	for _, r := range records {
		if r.Count >= *minFlights {
			kept = append(kept, r)
		}
	}
	records = kept
	if len(records) == 0 {
		log.Printf("No routes with at least %d flights in %s", *minFlights, cfg.Output.RoutesFile)
		os.Exit(1)
	}
	log.Printf("Loaded %d routes from %s", len(records), cfg.Output.RoutesFile)

	opts := render.OptionsFromConfig(cfg)
	opts.Title = *title
	scaling := "relative"
	if opts.Absolute {
		scaling = fmt.Sprintf("absolute (gamma %.2f)", opts.Gamma)
	}
	logging.Debugf("Rendering %dx%d px, %s scheme, %s scaling", opts.Width, opts.Height, cfg.Visualization.ColorMode, scaling)

	if err := render.RenderFile(cfg.Output.MapFile, records, opts); err != nil {
		log.Fatalf("Failed to render map: %v", err)
	}
	log.Printf("✓ Saved map to %s", cfg.Output.MapFile)
}

func schemeNames(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.ColorSchemes))
	for name := range cfg.ColorSchemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
