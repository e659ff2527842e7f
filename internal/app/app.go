// Package app assembles the service from configuration. Both binaries
// share it so the CLI forecasts exactly like the server does.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/i474232898/precip-ensemble/internal/config"
	"github.com/i474232898/precip-ensemble/internal/events"
	"github.com/i474232898/precip-ensemble/internal/geocode"
	"github.com/i474232898/precip-ensemble/internal/observability"
	"github.com/i474232898/precip-ensemble/internal/scheduler"
	"github.com/i474232898/precip-ensemble/internal/store"
	"github.com/i474232898/precip-ensemble/internal/weather"
	"github.com/i474232898/precip-ensemble/internal/weather/providers"
)

const geocodeCacheTTL = 24 * time.Hour

// Store is what the app needs from a forecast history store.
type Store interface {
	weather.ResultStore
	Get(ctx context.Context, id string) (weather.ForecastRecord, error)
	Close() error
}

// Publisher is a closable weather.Publisher.
type Publisher interface {
	weather.Publisher
	Close() error
}

// Components holds everything Build wired together.
type Components struct {
	Service   *weather.Service
	Baseline  *providers.CachedBaseline
	Model     *providers.ModelClient
	Geocoder  geocode.Geocoder
	Store     Store // nil when history is disabled
	Publisher Publisher
	Scheduler *scheduler.Scheduler
	Metrics   *observability.Metrics
}

// Build constructs every component from cfg. Metrics register on reg.
func Build(ctx context.Context, cfg *config.AppConfig, reg prometheus.Registerer, logger zerolog.Logger) (*Components, error) {
	clock := clockwork.NewRealClock()
	metrics := observability.NewMetrics(reg)
	c := &Components{Metrics: metrics}

	upstream := providers.HTTPClientConfig{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		Backoff: providers.DefaultBackoff(),
		Limiter: providers.NewLimiter(cfg.UpstreamRPS),
	}

	var raw weather.BaselineEstimator
	switch cfg.BaselineSource {
	case config.BaselineOpenMeteo:
		raw = providers.NewOpenMeteoProvider(upstream, cfg.OpenMeteoArchiveURL, clock, metrics)
	default:
		raw = providers.NewNASAPowerProvider(upstream, cfg.NASAPowerURL, clock, metrics)
	}
	c.Baseline = providers.NewCachedBaseline(raw, cfg.CacheSize, cfg.CacheTTL, metrics)

	modelHTTP := upstream
	modelHTTP.Client = &http.Client{Timeout: cfg.ModelTimeout}
	// The model is ours; no need to pace it.
	modelHTTP.Limiter = nil
	c.Model = providers.NewModelClient(modelHTTP, cfg.ModelURL, logger)

	gc, err := newGeocoder(cfg)
	if err != nil {
		return nil, err
	}
	c.Geocoder = geocode.NewCached(gc, cfg.GeocodeCacheSize, geocodeCacheTTL, metrics)

	if cfg.DatabaseEnabled {
		st, err := store.OpenSQLite(ctx, cfg.DatabasePath, clock, logger)
		if err != nil {
			return nil, fmt.Errorf("open forecast store: %w", err)
		}
		c.Store = st
	} else {
		c.Store = store.NewMemoryStore(cfg.StoreMaxHistory, 0, clock)
	}

	if len(cfg.KafkaBrokers) > 0 {
		c.Publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		logger.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("forecast publishing enabled")
	} else {
		c.Publisher = events.NopPublisher{}
	}

	c.Service = weather.NewService(weather.Deps{
		Baseline:  c.Baseline,
		Learned:   c.Model,
		Store:     c.Store,
		Publisher: c.Publisher,
		Clock:     clock,
		Metrics:   metrics,
		Logger:    logger,
	})

	c.Scheduler = scheduler.New(cfg.WatchLocations, c.Service, scheduler.Options{
		Interval: cfg.WarmupInterval,
		Clock:    clock,
		Observer: metrics,
		Logger:   logger,
	})

	logger.Info().
		Str("baseline", cfg.BaselineSource).
		Bool("model", c.Model.Enabled()).
		Str("geocoder", cfg.Geocoder).
		Bool("database", cfg.DatabaseEnabled).
		Int("watched_locations", len(cfg.WatchLocations)).
		Msg("components ready")
	return c, nil
}

func newGeocoder(cfg *config.AppConfig) (geocode.Geocoder, error) {
	if cfg.Geocoder == config.GeocoderGoogle {
		g, err := geocode.NewGoogleGeocoder(cfg.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("google geocoder: %w", err)
		}
		return g, nil
	}
	return geocode.NewNominatimClient(&http.Client{Timeout: cfg.HTTPTimeout}, "", cfg.GeocoderUserAgent), nil
}

// Close releases the store and the publisher.
func (c *Components) Close() error {
	var errs []error
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}
