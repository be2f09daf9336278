package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
// Files may be YAML (.yaml, .yml) or JSON (anything else).
type Config struct {
	Sources       []SourceConfig         `json:"sources" yaml:"sources" validate:"dive"`
	Regions       []RegionConfig         `json:"regions" yaml:"regions" validate:"dive"`
	Aggregation   AggregationConfig      `json:"aggregation" yaml:"aggregation"`
	Database      DatabaseConfig         `json:"database" yaml:"database"`
	Kafka         KafkaConfig            `json:"kafka" yaml:"kafka"`
	Output        OutputConfig           `json:"output" yaml:"output"`
	Visualization VisualizationConfig    `json:"visualization" yaml:"visualization"`
	ColorSchemes  map[string]ColorScheme `json:"color_schemes" yaml:"color_schemes" validate:"dive"`
	Server        ServerConfig           `json:"server" yaml:"server"`
	Logging       LoggingConfig          `json:"logging" yaml:"logging"`
}

// SourceConfig represents a single ADS-B data source.
type SourceConfig struct {
	// Name is a friendly name for this source
	Name string `json:"name" yaml:"name"`

	// Type is the provider: "adsbexchange", "airplaneslive" or "opensky"
	Type string `json:"type" yaml:"type" validate:"required,oneof=adsbexchange airplaneslive opensky"`

	// Enabled determines if this source should be used
	Enabled bool `json:"enabled" yaml:"enabled"`

	// BaseURL overrides the provider's public endpoint
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`

	// APIKey is an optional key (RapidAPI for ADS-B Exchange)
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Username and Password are OpenSky credentials
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// RequestsPerSecond caps the request rate; 0 = unlimited
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`

	// TimeoutSeconds is the HTTP timeout; 0 = provider default
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`

	// MaxRetries is how many times a failed fetch is retried
	MaxRetries int `json:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`

	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`
}

// RegionConfig is a geographic area to collect from.
// Either Bounds or Center+RadiusKm may be set; neither means the whole world.
type RegionConfig struct {
	Name    string `json:"name" yaml:"name" validate:"required"`
	Enabled bool   `json:"enabled" yaml:"enabled"`

	Bounds *BoundsConfig `json:"bounds,omitempty" yaml:"bounds,omitempty"`

	Center   *PointConfig `json:"center,omitempty" yaml:"center,omitempty"`
	RadiusKm float64      `json:"radius_km,omitempty" yaml:"radius_km,omitempty" validate:"gte=0"`
}

// BoundsConfig is a latitude/longitude rectangle.
type BoundsConfig struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat" validate:"gte=-90,lte=90"`
	MinLon float64 `json:"min_lon" yaml:"min_lon" validate:"gte=-180,lte=180"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat" validate:"gte=-90,lte=90,gtefield=MinLat"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon" validate:"gte=-180,lte=180,gtefield=MinLon"`
}

// PointConfig is a position in decimal degrees.
type PointConfig struct {
	Latitude  float64 `json:"latitude" yaml:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" yaml:"longitude" validate:"gte=-180,lte=180"`
}

// AggregationConfig configures the route aggregator.
type AggregationConfig struct {
	// GridResolution is the cell size in degrees
	GridResolution float64 `json:"grid_resolution" yaml:"grid_resolution" validate:"gt=0,lte=180"`

	// MinFlights is the threshold for exported routes
	MinFlights int `json:"min_flights" yaml:"min_flights" validate:"gte=1"`

	// SegmentLengthKm is the assumed route length; half is projected each way
	SegmentLengthKm float64 `json:"segment_length_km" yaml:"segment_length_km" validate:"gt=0"`

	// Policy is "constant" or "speed-scaled"
	Policy string `json:"policy" yaml:"policy" validate:"oneof=constant speed-scaled"`

	// HorizonHours is the flight time each way for the speed-scaled policy
	HorizonHours float64 `json:"horizon_hours" yaml:"horizon_hours" validate:"gt=0"`

	// MinGroundSpeedKts drops slower aircraft; 0 disables the filter
	MinGroundSpeedKts float64 `json:"min_ground_speed_kts" yaml:"min_ground_speed_kts" validate:"gte=0"`

	// Snapshots is how many fetch rounds are accumulated into one run
	Snapshots int `json:"snapshots" yaml:"snapshots" validate:"gte=1"`

	// IntervalSeconds is the pause between fetch rounds
	IntervalSeconds int `json:"interval_seconds" yaml:"interval_seconds" validate:"gte=0"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	// Enabled archives each run in PostgreSQL
	Enabled bool `json:"enabled" yaml:"enabled"`

	// URL is a full postgres:// connection URL; it overrides the fields below
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	Host     string `json:"host" yaml:"host"`
	Port     int    `json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Database string `json:"database" yaml:"database"`
	Username string `json:"username" yaml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" yaml:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns" validate:"gte=0"`
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns" validate:"gte=0"`

	// KeepRuns is how many runs CleanupOldData retains; 0 keeps all
	KeepRuns int `json:"keep_runs" yaml:"keep_runs" validate:"gte=0"`
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	parts := []string{
		"host=" + d.Host,
		"port=" + strconv.Itoa(d.Port),
		"dbname=" + d.Database,
		"user=" + d.Username,
	}
	if d.Password != "" {
		parts = append(parts, "password="+d.Password)
	}
	if d.SSLMode != "" {
		parts = append(parts, "sslmode="+d.SSLMode)
	}
	return strings.Join(parts, " ")
}

// KafkaConfig configures publishing of route records.
type KafkaConfig struct {
	Enabled           bool     `json:"enabled" yaml:"enabled"`
	Brokers           []string `json:"brokers" yaml:"brokers" validate:"required_if=Enabled true,dive,hostname_port"`
	Topic             string   `json:"topic" yaml:"topic" validate:"required_if=Enabled true"`
	Partitions        int      `json:"partitions" yaml:"partitions" validate:"gte=0"`
	ReplicationFactor int      `json:"replication_factor" yaml:"replication_factor" validate:"gte=0"`
}

// OutputConfig names the files written by the commands.
type OutputConfig struct {
	RoutesFile string `json:"routes_file" yaml:"routes_file"`
	TrackFile  string `json:"track_file" yaml:"track_file"`
	MapFile    string `json:"map_file" yaml:"map_file"`

	// SnapshotFile, when set, stores raw fetched aircraft for replay
	SnapshotFile string `json:"snapshot_file,omitempty" yaml:"snapshot_file,omitempty"`

	DPI int `json:"dpi" yaml:"dpi" validate:"gte=10,lte=1200"`
}

// VisualizationConfig controls the route map renderer.
type VisualizationConfig struct {
	// ColorMode selects an entry of ColorSchemes ("screen" or "print")
	ColorMode string `json:"color_mode" yaml:"color_mode" validate:"required"`

	// AbsoluteScaling colours by flight count instead of rank
	AbsoluteScaling bool `json:"absolute_scaling" yaml:"absolute_scaling"`

	// PowerNormGamma compresses the count scale in absolute mode
	PowerNormGamma float64 `json:"power_norm_gamma" yaml:"power_norm_gamma" validate:"gt=0"`

	LineWidth float64 `json:"line_width" yaml:"line_width" validate:"gt=0"`
	Alpha     float64 `json:"alpha" yaml:"alpha" validate:"gte=0,lte=1"`

	// Width and Height are the figure size in inches; pixels = inches × DPI
	Width  float64 `json:"width" yaml:"width" validate:"gt=0"`
	Height float64 `json:"height" yaml:"height" validate:"gt=0"`

	// Segments is the number of great-circle samples per route
	Segments int `json:"segments" yaml:"segments" validate:"gte=1"`
}

// RGBA is a colour with components in [0, 1].
type RGBA [4]float64

// ColorScheme is a background, a graticule colour and a gradient of at
// least two stops used for route lines.
type ColorScheme struct {
	Background RGBA   `json:"background" yaml:"background"`
	Graticule  RGBA   `json:"graticule" yaml:"graticule"`
	Gradient   []RGBA `json:"gradient" yaml:"gradient" validate:"min=2"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Port is the HTTP server port (default: 8080)
	Port string `json:"port" yaml:"port" validate:"required,numeric"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" yaml:"host"`

	// AllowedOrigins for CORS; empty allows any origin
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`

	// CacheSize is the number of rendered maps kept in memory
	CacheSize int `json:"cache_size" yaml:"cache_size" validate:"gte=1"`

	// CacheTTLSeconds expires rendered maps
	CacheTTLSeconds int `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds" validate:"gte=1"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is "info" or "debug"
	Level string `json:"level" yaml:"level" validate:"oneof=debug info"`

	// File tees log output into a rotating file when set
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

// Load reads configuration from a YAML or JSON file.
// If the file doesn't exist, returns a default configuration.
// Values missing from the file keep their defaults; environment overrides
// are applied last and the result is validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults only
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := unmarshal(path, data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshal(path string, data []byte, cfg *Config) error {
	if isYAML(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

// Save writes the configuration, as YAML or JSON depending on the extension.
func (c *Config) Save(path string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New()

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if _, ok := c.ColorSchemes[c.Visualization.ColorMode]; !ok {
		return fmt.Errorf("invalid configuration: color_mode %q has no color scheme", c.Visualization.ColorMode)
	}

	for _, r := range c.Regions {
		if r.Bounds != nil && r.Center != nil {
			return fmt.Errorf("invalid configuration: region %q sets both bounds and center", r.Name)
		}
		if r.RadiusKm > 0 && r.Center == nil {
			return fmt.Errorf("invalid configuration: region %q has a radius but no center", r.Name)
		}
	}

	if c.Database.URL != "" {
		u, err := url.Parse(c.Database.URL)
		if err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			return fmt.Errorf("invalid configuration: database url must be postgres://")
		}
	}

	return nil
}

// EnabledSources returns the sources with Enabled set.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// EnabledRegions returns the enabled regions. If none are configured a
// single global region is returned.
func (c *Config) EnabledRegions() []RegionConfig {
	var out []RegionConfig
	for _, r := range c.Regions {
		if r.Enabled {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		out = append(out, RegionConfig{Name: "global", Enabled: true})
	}
	return out
}

// Scheme returns the active colour scheme.
func (c *Config) Scheme() ColorScheme {
	return c.ColorSchemes[c.Visualization.ColorMode]
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sources: []SourceConfig{
			{
				Name:              "adsbexchange",
				Type:              "adsbexchange",
				Enabled:           true,
				RequestsPerSecond: 0.2,
				TimeoutSeconds:    30,
				MaxRetries:        3,
			},
		},
		Aggregation: AggregationConfig{
			GridResolution:  1.0,
			MinFlights:      1,
			SegmentLengthKm: 500,
			Policy:          "constant",
			HorizonHours:    1.0,
			Snapshots:       1,
			IntervalSeconds: 60,
		},
		Database: DatabaseConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "adsroutes",
			Username:     "adsroutes",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
			KeepRuns:     100,
		},
		Kafka: KafkaConfig{
			Brokers:           []string{"localhost:9092"},
			Topic:             "flight-routes",
			Partitions:        1,
			ReplicationFactor: 1,
		},
		Output: OutputConfig{
			RoutesFile: "flights_realtime.csv",
			TrackFile:  "flight_track.csv",
			MapFile:    "flights_map.png",
			DPI:        150,
		},
		Visualization: VisualizationConfig{
			ColorMode:      "screen",
			PowerNormGamma: 0.3,
			LineWidth:      0.5,
			Alpha:          0.8,
			Width:          27,
			Height:         20,
			Segments:       64,
		},
		ColorSchemes: DefaultColorSchemes(),
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			CacheSize:       16,
			CacheTTLSeconds: 300,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// DefaultColorSchemes returns the built-in "screen" (dark) and "print"
// (light) schemes.
func DefaultColorSchemes() map[string]ColorScheme {
	return map[string]ColorScheme{
		"screen": {
			Background: RGBA{0, 0, 0, 1},
			Graticule:  RGBA{204.0 / 255, 0, 153.0 / 255, 0.7},
			Gradient: []RGBA{
				{0, 0, 0, 0},
				{204.0 / 255, 0, 153.0 / 255, 0.6},
				{1, 204.0 / 255, 230.0 / 255, 1},
			},
		},
		"print": {
			Background: RGBA{1, 1, 1, 1},
			Graticule:  RGBA{0.6, 0.6, 0.6, 0.7},
			Gradient: []RGBA{
				{1, 1, 1, 0},
				{0.2, 0.4, 0.8, 0.6},
				{0, 0, 0.3, 1},
			},
		},
	}
}

// applyEnvironmentOverrides reads ADS_ROUTES_* variables.
func (c *Config) applyEnvironmentOverrides() {
	if port := os.Getenv("ADS_ROUTES_PORT"); port != "" {
		c.Server.Port = port
	}
	if dbURL := os.Getenv("ADS_ROUTES_DB_URL"); dbURL != "" {
		c.Database.URL = dbURL
		c.Database.Enabled = true
	}
	if dbHost := os.Getenv("ADS_ROUTES_DB_HOST"); dbHost != "" {
		c.Database.Host = dbHost
	}
	if dbPassword := os.Getenv("ADS_ROUTES_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if brokers := os.Getenv("ADS_ROUTES_KAFKA_BROKERS"); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
		c.Kafka.Enabled = true
	}
	if level := os.Getenv("ADS_ROUTES_LOG_LEVEL"); level != "" {
		c.Logging.Level = strings.ToLower(level)
	}

	// Credentials apply to every source of the matching type
	apiKey := os.Getenv("ADS_ROUTES_API_KEY")
	osUser := os.Getenv("ADS_ROUTES_OPENSKY_USERNAME")
	osPass := os.Getenv("ADS_ROUTES_OPENSKY_PASSWORD")
	for i := range c.Sources {
		s := &c.Sources[i]
		if apiKey != "" && s.Type == "adsbexchange" {
			s.APIKey = apiKey
		}
		if osUser != "" && s.Type == "opensky" {
			s.Username = osUser
			s.Password = osPass
		}
	}
}
