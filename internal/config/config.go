package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

const (
	BaselineNASA      = "nasa"
	BaselineOpenMeteo = "openmeteo"

	GeocoderNominatim = "nominatim"
	GeocoderGoogle    = "google"
)

type AppConfig struct {
	Port            string
	HTTPTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  string

	LogLevel  string
	LogFormat string

	// BaselineSource selects the ground-truth dataset: nasa or openmeteo.
	BaselineSource      string
	NASAPowerURL        string
	OpenMeteoArchiveURL string
	UpstreamRPS         float64

	// Baseline response cache.
	CacheTTL  time.Duration
	CacheSize int

	// ModelURL is empty when no learned model is deployed.
	ModelURL     string
	ModelTimeout time.Duration

	Geocoder          string
	GoogleAPIKey      string
	GeocoderUserAgent string
	GeocodeCacheSize  int

	DatabaseEnabled bool
	DatabasePath    string
	StoreMaxHistory int // per location when the in-memory store is used

	// KafkaBrokers is empty when publishing is disabled.
	KafkaBrokers []string
	KafkaTopic   string

	WatchLocations []weather.Location
	WarmupInterval time.Duration
}

// Load reads configuration from environment with sensible defaults.
// A .env file in the working directory is honoured when present.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:                getenvDefault("PORT", "8080"),
		AllowedOrigins:      getenvDefault("ALLOWED_ORIGINS", "*"),
		LogLevel:            getenvDefault("LOG_LEVEL", "info"),
		LogFormat:           getenvDefault("LOG_FORMAT", "json"),
		BaselineSource:      strings.ToLower(getenvDefault("BASELINE_SOURCE", BaselineNASA)),
		NASAPowerURL:        os.Getenv("NASA_POWER_URL"),
		OpenMeteoArchiveURL: os.Getenv("OPENMETEO_ARCHIVE_URL"),
		ModelURL:            os.Getenv("MODEL_URL"),
		Geocoder:            strings.ToLower(getenvDefault("GEOCODER", GeocoderNominatim)),
		GoogleAPIKey:        os.Getenv("GOOGLE_GEOCODING_API_KEY"),
		GeocoderUserAgent:   getenvDefault("GEOCODER_USER_AGENT", "precip-ensemble/1.0"),
		DatabasePath:        getenvDefault("DATABASE_PATH", "data/forecasts.db"),
		KafkaTopic:          getenvDefault("KAFKA_TOPIC", "precip-forecasts"),
	}

	var err error
	durations := []struct {
		key  string
		def  string
		into *time.Duration
	}{
		{"HTTP_TIMEOUT", "15s", &cfg.HTTPTimeout},
		{"SHUTDOWN_TIMEOUT", "10s", &cfg.ShutdownTimeout},
		{"CACHE_TTL", "15m", &cfg.CacheTTL},
		{"MODEL_TIMEOUT", "5s", &cfg.ModelTimeout},
		{"WARMUP_INTERVAL", "6h", &cfg.WarmupInterval},
	}
	for _, d := range durations {
		if *d.into, err = getenvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	ints := []struct {
		key  string
		def  int
		into *int
	}{
		{"CACHE_SIZE", 256, &cfg.CacheSize},
		{"GEOCODE_CACHE_SIZE", 1000, &cfg.GeocodeCacheSize},
		{"STORE_MAX_HISTORY", 100, &cfg.StoreMaxHistory},
	}
	for _, i := range ints {
		if *i.into, err = getenvInt(i.key, i.def); err != nil {
			return nil, err
		}
	}

	if cfg.UpstreamRPS, err = getenvFloat("UPSTREAM_RPS", 5); err != nil {
		return nil, err
	}
	if cfg.DatabaseEnabled, err = getenvBool("DATABASE_ENABLED", true); err != nil {
		return nil, err
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	if cfg.WatchLocations, err = ParseLocations(os.Getenv("WATCH_LOCATIONS")); err != nil {
		return nil, fmt.Errorf("invalid WATCH_LOCATIONS: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.BaselineSource {
	case BaselineNASA, BaselineOpenMeteo:
	default:
		return fmt.Errorf("invalid BASELINE_SOURCE %q: want %s or %s", c.BaselineSource, BaselineNASA, BaselineOpenMeteo)
	}
	switch c.Geocoder {
	case GeocoderNominatim:
	case GeocoderGoogle:
		if c.GoogleAPIKey == "" {
			return fmt.Errorf("GOOGLE_GEOCODING_API_KEY is required when GEOCODER=%s", GeocoderGoogle)
		}
	default:
		return fmt.Errorf("invalid GEOCODER %q: want %s or %s", c.Geocoder, GeocoderNominatim, GeocoderGoogle)
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("invalid CACHE_SIZE: must be positive, got %d", c.CacheSize)
	}
	if c.GeocodeCacheSize <= 0 {
		return fmt.Errorf("invalid GEOCODE_CACHE_SIZE: must be positive, got %d", c.GeocodeCacheSize)
	}
	if c.UpstreamRPS < 0 {
		return fmt.Errorf("invalid UPSTREAM_RPS: must not be negative, got %v", c.UpstreamRPS)
	}
	return nil
}

// ParseLocations parses "lat,lon,name;lat,lon,name". The name is optional.
func ParseLocations(raw string) ([]weather.Location, error) {
	var locs []weather.Location
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ",", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("%q: want lat,lon[,name]", entry)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: latitude: %w", entry, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%q: longitude: %w", entry, err)
		}
		loc := weather.Location{Latitude: lat, Longitude: lon}
		if len(parts) == 3 {
			loc.Name = strings.TrimSpace(parts[2])
		}
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("%q: %w", entry, err)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
