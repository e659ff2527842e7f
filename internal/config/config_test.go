package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

var envKeys = []string{
	"PORT", "HTTP_TIMEOUT", "SHUTDOWN_TIMEOUT", "ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FORMAT",
	"BASELINE_SOURCE", "NASA_POWER_URL", "OPENMETEO_ARCHIVE_URL", "UPSTREAM_RPS",
	"CACHE_TTL", "CACHE_SIZE", "MODEL_URL", "MODEL_TIMEOUT", "GEOCODER",
	"GOOGLE_GEOCODING_API_KEY", "GEOCODER_USER_AGENT", "GEOCODE_CACHE_SIZE",
	"DATABASE_ENABLED", "DATABASE_PATH", "STORE_MAX_HISTORY", "KAFKA_BROKERS",
	"KAFKA_TOPIC", "WATCH_LOCATIONS", "WARMUP_INTERVAL",
}

// clearEnv blanks every variable Load reads; blank means unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, BaselineNASA, cfg.BaselineSource)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.Equal(t, 5.0, cfg.UpstreamRPS)
	assert.Equal(t, GeocoderNominatim, cfg.Geocoder)
	assert.True(t, cfg.DatabaseEnabled)
	assert.Equal(t, "data/forecasts.db", cfg.DatabasePath)
	assert.Equal(t, 6*time.Hour, cfg.WarmupInterval)
	assert.Empty(t, cfg.ModelURL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.WatchLocations)
}

func TestOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BASELINE_SOURCE", "OpenMeteo")
	t.Setenv("CACHE_TTL", "1h")
	t.Setenv("DATABASE_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("WATCH_LOCATIONS", "35.22,-97.44,Norman, OK;51.5,-0.12")

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, BaselineOpenMeteo, cfg.BaselineSource)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.False(t, cfg.DatabaseEnabled)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []weather.Location{
		{Latitude: 35.22, Longitude: -97.44, Name: "Norman, OK"},
		{Latitude: 51.5, Longitude: -0.12},
	}, cfg.WatchLocations)
}

func TestErrorsNameTheVariable(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":     {"CACHE_TTL", "soon"},
		"bad int":          {"CACHE_SIZE", "lots"},
		"bad bool":         {"DATABASE_ENABLED", "maybe"},
		"bad float":        {"UPSTREAM_RPS", "fast"},
		"unknown baseline": {"BASELINE_SOURCE", "radar"},
		"unknown geocoder": {"GEOCODER", "bing"},
		"bad location":     {"WATCH_LOCATIONS", "95,10,Nowhere"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := fromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), kv[0])
		})
	}
}

func TestGoogleGeocoderNeedsKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEOCODER", "google")
	_, err := fromEnv()
	require.ErrorContains(t, err, "GOOGLE_GEOCODING_API_KEY")

	t.Setenv("GOOGLE_GEOCODING_API_KEY", "k")
	_, err = fromEnv()
	require.NoError(t, err)
}

func TestParseLocations(t *testing.T) {
	locs, err := ParseLocations(" ; 10,20 ;")
	require.NoError(t, err)
	assert.Equal(t, []weather.Location{{Latitude: 10, Longitude: 20}}, locs)

	_, err = ParseLocations("10")
	assert.Error(t, err)
	_, err = ParseLocations("north,20")
	assert.Error(t, err)
	_, err = ParseLocations("10,200")
	assert.ErrorIs(t, err, weather.ErrInvalidLocation)
}
