// Package scheduler periodically forecasts a fixed set of watched locations
// so the baseline cache stays warm and history keeps filling.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

const (
	defaultInterval    = 6 * time.Hour
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 4
)

// Forecaster is the part of weather.Service the warm-up needs.
type Forecaster interface {
	ForecastAndRecord(ctx context.Context, loc weather.Location, date time.Time) (weather.EnsembleResult, error)
}

// Observer is told when a warm-up pass finishes.
type Observer interface {
	WarmupCompleted()
}

// Options tunes a Scheduler. Zero values pick defaults.
type Options struct {
	Interval    time.Duration
	Timeout     time.Duration // per location
	Concurrency int
	Clock       clockwork.Clock
	Observer    Observer
	Logger      zerolog.Logger
}

// Report summarizes one warm-up pass.
type Report struct {
	Succeeded int
	Failed    map[string]error // keyed by location name
}

// Scheduler forecasts today's precipitation for every watched location.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	forecaster Forecaster
	locations  []weather.Location
	opts       Options
	logger     zerolog.Logger
}

// New creates a new Scheduler.
func New(locations []weather.Location, forecaster Forecaster, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		forecaster: forecaster,
		locations:  locations,
		opts:       opts,
		logger:     opts.Logger.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the periodic warm-up and starts the underlying scheduler.
// The first pass runs right away.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.logger.Info().Msg("no watched locations configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.opts.Interval).SingletonMode().Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info().Int("locations", len(s.locations)).Dur("interval", s.opts.Interval).Msg("warm-up scheduled")
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunOnce forecasts every watched location for today and waits for all of
// them. A failed location does not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) Report {
	started := s.opts.Clock.Now()
	today := weather.Day(started)
	s.logger.Info().Str("event_date", today.Format(weather.DateLayout)).Msg("running warm-up")

	var (
		mu     sync.Mutex
		report = Report{Failed: map[string]error{}}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for _, loc := range s.locations {
		g.Go(func() error {
			lctx, cancel := context.WithTimeout(gctx, s.opts.Timeout)
			defer cancel()

			_, err := s.forecaster.ForecastAndRecord(lctx, loc, today)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[loc.String()] = err
				s.logger.Warn().Err(err).Str("location", loc.String()).Msg("warm-up forecast failed")
				return nil
			}
			report.Succeeded++
			return nil
		})
	}
	_ = g.Wait()

	if s.opts.Observer != nil {
		s.opts.Observer.WarmupCompleted()
	}
	s.logger.Info().
		Int("succeeded", report.Succeeded).
		Int("failed", len(report.Failed)).
		Dur("elapsed", s.opts.Clock.Since(started)).
		Msg("warm-up completed")
	return report
}
