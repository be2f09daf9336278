// Route server
// Serves aggregated routes as JSON, CSV and a rendered PNG map
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/ads-routes/internal/db"
	"github.com/unklstewy/ads-routes/internal/logging"
	"github.com/unklstewy/ads-routes/pkg/config"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	routesFile := flag.String("routes", "", "Serve this routes file (default from config)")
	useDB := flag.Bool("db", false, "Serve the latest run archived in PostgreSQL instead of a file")
	port := flag.String("port", "", "HTTP server port (default from config: 8080)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	closer := logging.Setup(*verbose, cfg.Logging)
	defer closer.Close()

	if *port != "" {
		cfg.Server.Port = *port
	}
	if *routesFile != "" {
		cfg.Output.RoutesFile = *routesFile
	}

	var store RouteStore
	if *useDB {
		database, err := db.ReconnectWithRetry(context.Background(), cfg.Database, 5, time.Second)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close()
		if err := database.InitSchema(context.Background()); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		store = newDBStore(db.NewRouteRepository(database), func(ctx context.Context) bool {
			return db.HealthCheck(ctx, database)
		})
		log.Println("✓ Serving the latest archived run")
	} else {
		store = newFileStore(cfg.Output.RoutesFile)
		log.Printf("✓ Serving routes from %s", cfg.Output.RoutesFile)
	}

	srv := NewServer(cfg, store)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://%s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("✓ Server stopped")
}
