package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	httpapi "github.com/i474232898/precip-ensemble/internal/api/http"
	"github.com/i474232898/precip-ensemble/internal/app"
	"github.com/i474232898/precip-ensemble/internal/config"
	"github.com/i474232898/precip-ensemble/internal/observability"
)

func main() {
	bootLog := newBootLogger(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to build logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.Build(ctx, cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build components")
	}

	if err := c.Scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start scheduler")
	}

	deps := httpapi.Deps{
		Service:  c.Service,
		Records:  c.Store,
		Geocoder: c.Geocoder,
		Model:    c.Model,
		Metrics:  promhttp.Handler(),
	}
	srv := httpapi.NewApp(deps, httpapi.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AccessLog:      true,
		Logger:         logger,
	})

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("http server listening")
		if err := srv.Listen(":" + cfg.Port); err != nil {
			logger.Error().Err(err).Msg("fiber server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	c.Scheduler.Stop()
	if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error during shutdown")
	}
	if err := c.Close(); err != nil {
		logger.Error().Err(err).Msg("error releasing resources")
	}
	logger.Info().Msg("shutdown complete")
}

// newBootLogger logs until configuration picks the real level and format.
func newBootLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("service", "precip-ensemble").Logger()
}
