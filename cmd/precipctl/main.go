// Command precipctl runs the ensemble from the command line with the same
// configuration the server uses.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/precip-ensemble/internal/app"
	"github.com/i474232898/precip-ensemble/internal/config"
	"github.com/i474232898/precip-ensemble/internal/observability"
	"github.com/i474232898/precip-ensemble/internal/weather"
)

type runContext struct {
	ctx        context.Context
	components *app.Components
}

type forecastCmd struct {
	Lat    float64 `required:"" help:"Latitude in degrees."`
	Lon    float64 `required:"" help:"Longitude in degrees."`
	Date   string  `help:"Event date (YYYY-MM-DD). Defaults to today."`
	Name   string  `help:"Optional display name for the location."`
	Record bool    `help:"Save and publish the result like the server does."`
}

func (f *forecastCmd) Run(rc *runContext) error {
	date := time.Now().UTC()
	if f.Date != "" {
		d, err := time.Parse(weather.DateLayout, f.Date)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		date = d
	}
	loc := weather.Location{Latitude: f.Lat, Longitude: f.Lon, Name: f.Name}

	run := rc.components.Service.Forecast
	if f.Record {
		run = rc.components.Service.ForecastAndRecord
	}
	result, err := run(rc.ctx, loc, date)
	if err != nil {
		return err
	}
	return printJSON(result)
}

type geocodeCmd struct {
	Query string `arg:"" help:"Place name or address."`
}

func (g *geocodeCmd) Run(rc *runContext) error {
	loc, err := rc.components.Geocoder.Geocode(rc.ctx, g.Query)
	if err != nil {
		return err
	}
	return printJSON(loc)
}

type warmupCmd struct{}

func (warmupCmd) Run(rc *runContext) error {
	report := rc.components.Scheduler.RunOnce(rc.ctx)
	fmt.Printf("warm-up: %d succeeded, %d failed\n", report.Succeeded, len(report.Failed))
	for name, err := range report.Failed {
		fmt.Printf("  %s: %v\n", name, err)
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d locations failed", len(report.Failed))
	}
	return nil
}

var cli struct {
	LogLevel string `default:"warn" help:"Log level." env:"LOG_LEVEL"`

	Forecast forecastCmd `cmd:"" help:"Forecast precipitation for a location and day."`
	Geocode  geocodeCmd  `cmd:"" help:"Resolve a place name to coordinates."`
	Warmup   warmupCmd   `cmd:"" help:"Forecast every WATCH_LOCATIONS entry for today once."`
}

func main() {
	kctx := kong.Parse(&cli,
		kong.Name("precipctl"),
		kong.Description("Blend satellite, model and trend estimates into a precipitation forecast."),
		kong.UsageOnError(),
	)

	cfg, err := config.Load()
	kctx.FatalIfErrorf(err)

	logger, err := observability.NewLogger(cli.LogLevel, "console")
	kctx.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, prometheus.NewRegistry(), logger)
	kctx.FatalIfErrorf(err)

	err = kctx.Run(&runContext{ctx: ctx, components: components})
	if cerr := components.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("error releasing resources")
	}
	kctx.FatalIfErrorf(err)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
