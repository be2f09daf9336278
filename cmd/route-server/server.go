package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/unklstewy/ads-routes/pkg/config"
	"github.com/unklstewy/ads-routes/pkg/render"
	"github.com/unklstewy/ads-routes/pkg/routefile"
	"github.com/unklstewy/ads-routes/pkg/routes"
)

// Server holds the HTTP router and its dependencies.
type Server struct {
	router *chi.Mux
	store  RouteStore
	cfg    *config.Config

	// maps caches rendered PNGs by data version and query
	maps *expirable.LRU[string, []byte]
}

// NewServer wires the routes of the HTTP API.
func NewServer(cfg *config.Config, store RouteStore) *Server {
	size := cfg.Server.CacheSize
	if size < 1 {
		size = 1
	}
	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	s := &Server{
		router: chi.NewRouter(),
		store:  store,
		cfg:    cfg,
		maps:   expirable.NewLRU[string, []byte](size, nil, ttl),
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	origins := s.cfg.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Get("/routes", s.handleGetRoutes)
		r.Get("/routes.csv", s.handleGetRoutesCSV)
	})
	r.Get("/map.png", s.handleGetMap)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if hc, ok := s.store.(healthChecker); ok && !hc.Healthy(r.Context()) {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "database": "unreachable"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type routesResponse struct {
	Source     string               `json:"source"`
	UpdatedAt  time.Time            `json:"updated_at"`
	MinFlights int                  `json:"min_flights"`
	Count      int                  `json:"count"`
	Routes     []routes.RouteRecord `json:"routes"`
}

func (s *Server) handleGetRoutes(w http.ResponseWriter, r *http.Request) {
	minFlights, err := intParam(r, "min_flights", 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, ok := s.dataset(w, r)
	if !ok {
		return
	}

	rs := filterRoutes(data.Routes, minFlights)
	respondJSON(w, http.StatusOK, routesResponse{
		Source:     data.Source,
		UpdatedAt:  data.UpdatedAt,
		MinFlights: minFlights,
		Count:      len(rs),
		Routes:     rs,
	})
}

func (s *Server) handleGetRoutesCSV(w http.ResponseWriter, r *http.Request) {
	minFlights, err := intParam(r, "min_flights", 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, ok := s.dataset(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := routefile.WriteRoutes(&buf, filterRoutes(data.Routes, minFlights), routefile.DefaultCO2Intensity); err != nil {
		log.Printf("Error writing routes CSV: %v", err)
		http.Error(w, "Failed to encode routes", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="routes.csv"`)
	w.Write(buf.Bytes())
}

func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	minFlights, err := intParam(r, "min_flights", 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	mode := r.URL.Query().Get("color_mode")
	if mode == "" {
		mode = s.cfg.Visualization.ColorMode
	}
	scheme, ok := s.cfg.ColorSchemes[mode]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown color_mode %q", mode), http.StatusBadRequest)
		return
	}

	absolute := s.cfg.Visualization.AbsoluteScaling
	if v := r.URL.Query().Get("absolute"); v != "" {
		absolute, err = strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "absolute must be a boolean", http.StatusBadRequest)
			return
		}
	}

	data, ok := s.dataset(w, r)
	if !ok {
		return
	}

	key := fmt.Sprintf("%s|%d|%s|%t", data.Version, minFlights, mode, absolute)
	png, hit := s.maps.Get(key)
	if !hit {
		opts := render.OptionsFromConfig(s.cfg)
		opts.Scheme = scheme
		opts.Absolute = absolute

		img, err := render.Render(filterRoutes(data.Routes, minFlights), opts)
		if err != nil {
			log.Printf("Error rendering map: %v", err)
			http.Error(w, "Failed to render map", http.StatusInternalServerError)
			return
		}
		var buf bytes.Buffer
		if err := render.WritePNG(&buf, img); err != nil {
			log.Printf("Error encoding map: %v", err)
			http.Error(w, "Failed to encode map", http.StatusInternalServerError)
			return
		}
		png = buf.Bytes()
		s.maps.Add(key, png)
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=60")
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Write(png)
}

// dataset loads the current routes, writing the error response itself
// when they are unavailable.
func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (*Dataset, bool) {
	data, err := s.store.Current(r.Context())
	switch {
	case errors.Is(err, errNoRoutes):
		http.Error(w, "No routes available yet", http.StatusServiceUnavailable)
		return nil, false
	case err != nil:
		log.Printf("Error loading routes: %v", err)
		http.Error(w, "Failed to load routes", http.StatusInternalServerError)
		return nil, false
	}
	return data, true
}

// filterRoutes keeps records with at least minFlights flights, in order.
func filterRoutes(rs []routes.RouteRecord, minFlights int) []routes.RouteRecord {
	out := make([]routes.RouteRecord, 0, len(rs))
	for _, rec := range rs {
		if rec.Count >= minFlights {
			out = append(out, rec)
		}
	}
	return out
}

// intParam parses a positive integer query parameter. Values below 1 are
// raised to 1.
func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if n < 1 {
		n = 1
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
