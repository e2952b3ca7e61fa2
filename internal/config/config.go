package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Grid database.
	DBDriver    string
	DatabaseURL string
	GridTable   string
	MaxSnap     float64
	Grid        GridConfig

	// Client-facing URLs.
	PublicBaseURL   string
	TileURLTemplate string

	// Report cache. Redis is used when RedisAddr is set.
	ReportCacheSize int
	ReportCacheTTL  time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int

	// Lookup event stream.
	KafkaBrokers        []string
	LookupEventsTopic   string
	LookupEventsEnabled bool
}

// GridConfig holds the enumerations shared by the API and its clients.
type GridConfig struct {
	Years                []int    `envconfig:"GRID_YEARS" default:"2030,2040,2050"`
	Periods              []int    `envconfig:"GRID_PERIODS" default:"10,20,30,50,100"`
	OverlayPeriods       []int    `envconfig:"OVERLAY_PERIODS" default:"10,20,30,100"`
	DefaultOverlayPeriod int      `envconfig:"OVERLAY_DEFAULT_PERIOD" default:"100"`
	Languages            []string `envconfig:"LANGUAGES" default:"en,es,de"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	var grid GridConfig
	if err := envconfig.Process("", &grid); err != nil {
		return nil, fmt.Errorf("invalid grid configuration: %w", err)
	}
	if err := grid.validate(); err != nil {
		return nil, err
	}

	maxSnap, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("GRID_MAX_SNAP_DEGREES", "0.05"), 64)
	if err != nil {
		return nil, errors.New("invalid GRID_MAX_SNAP_DEGREES")
	}

	mapboxTimeout, err := parsePositiveDuration("MAPBOX_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("REPORT_CACHE_TTL", "1h")
	if err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	mapboxToken := os.Getenv("MAPBOX_TOKEN")
	mapboxEnabled := mapboxToken != ""
	if v := os.Getenv("MAPBOX_ENABLED"); v != "" {
		mapboxEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        httpAddr(),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DBDriver:    sharedcfg.EnvOrDefault("DB_DRIVER", "sqlite"),
		DatabaseURL: sharedcfg.EnvOrDefault("DATABASE_URL", "./data.db"),
		GridTable:   sharedcfg.EnvOrDefault("GRID_TABLE", "augur"),
		MaxSnap:     maxSnap,
		Grid:        grid,

		PublicBaseURL:   sharedcfg.EnvOrDefault("PUBLIC_BASE_URL", "https://augur.world/"),
		TileURLTemplate: sharedcfg.EnvOrDefault("TILE_URL_TEMPLATE", "https://obellprat.github.io/tilesaugur/tiles{period}/{z}/{x}/{-y}.png"),

		ReportCacheSize: parsePositiveInt("REPORT_CACHE_SIZE", 5000),
		ReportCacheTTL:  cacheTTL,
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,

		MapboxToken:     mapboxToken,
		MapboxEnabled:   mapboxEnabled,
		MapboxTimeout:   mapboxTimeout,
		MapboxCacheSize: parsePositiveInt("MAPBOX_CACHE_SIZE", 1000),

		KafkaBrokers:        sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		LookupEventsTopic:   sharedcfg.EnvOrDefault("LOOKUP_EVENTS_TOPIC", "location-lookups"),
		LookupEventsEnabled: os.Getenv("LOOKUP_EVENTS_ENABLED") == "true",
	}

	if cfg.DBDriver != "sqlite" && cfg.DBDriver != "pgx" {
		return nil, fmt.Errorf("DB_DRIVER must be sqlite or pgx, got %q", cfg.DBDriver)
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.GridTable == "" {
		return nil, errors.New("GRID_TABLE is required")
	}
	if u, err := url.Parse(cfg.PublicBaseURL); err != nil || !u.IsAbs() {
		return nil, errors.New("PUBLIC_BASE_URL must be an absolute URL")
	}
	if cfg.MapboxEnabled && cfg.MapboxToken == "" {
		return nil, errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	if cfg.LookupEventsEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("LOOKUP_EVENTS_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.LookupEventsEnabled && cfg.LookupEventsTopic == "" {
		return nil, errors.New("LOOKUP_EVENTS_TOPIC is required")
	}

	return cfg, nil
}

func (g GridConfig) validate() error {
	if len(g.Years) == 0 {
		return errors.New("GRID_YEARS is required")
	}
	if len(g.Periods) == 0 {
		return errors.New("GRID_PERIODS is required")
	}
	if len(g.OverlayPeriods) == 0 {
		return errors.New("OVERLAY_PERIODS is required")
	}
	if !slices.Contains(g.OverlayPeriods, g.DefaultOverlayPeriod) {
		return fmt.Errorf("OVERLAY_DEFAULT_PERIOD %d is not listed in OVERLAY_PERIODS", g.DefaultOverlayPeriod)
	}
	if len(g.Languages) == 0 {
		return errors.New("LANGUAGES is required")
	}
	return nil
}

// httpAddr prefers HTTP_ADDR and falls back to PORT, which hosting platforms set.
func httpAddr() string {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		return v
	}
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8080"
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := parseDuration(key, def)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}
