package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/routefile"
)

// routeview browses a routes file in the terminal.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	input := flag.String("i", "", "Input routes CSV (default from config: flights_realtime.csv)")
	minFlights := flag.Int("min-flights", 1, "Initial minimum flights per route")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *input != "" {
		cfg.Output.RoutesFile = *input
	}

	rs, err := routefile.ReadRoutesFile(cfg.Output.RoutesFile)
	if err != nil {
		log.Fatalf("Failed to read routes: %v", err)
	}
	if len(rs) == 0 {
		log.Fatalf("No routes in %s", cfg.Output.RoutesFile)
	}

	m := newModel(cfg.Output.RoutesFile, routefile.Records(rs), *minFlights)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
