package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDataUnavailable is returned when the upstream has no observation for a location/date.
	ErrDataUnavailable = errors.New("precipitation data unavailable")
	// ErrUpstreamUnavailable is returned when the baseline source failed for any other reason.
	ErrUpstreamUnavailable = errors.New("baseline upstream unavailable")
	ErrInvalidLocation     = errors.New("invalid location")
)

// DataUnavailableError names the location/date that had no observation.
type DataUnavailableError struct {
	Location Location
	Date     time.Time
	Reason   string
}

func (e *DataUnavailableError) Error() string {
	msg := fmt.Sprintf("no precipitation data for %s on %s", e.Location, e.Date.Format(DateLayout))
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *DataUnavailableError) Unwrap() error { return ErrDataUnavailable }

// ForecastError is returned by Service.Forecast when the mandatory baseline call fails.
type ForecastError struct {
	Location Location
	Date     time.Time
	Err      error
}

func (e *ForecastError) Error() string {
	return fmt.Sprintf("forecast for %s on %s: %v", e.Location, e.Date.Format(DateLayout), e.Err)
}

func (e *ForecastError) Unwrap() error { return e.Err }

// BaselineEstimator abstracts the ground-truth observation source (NASA POWER, Open-Meteo).
// Implementations substitute the prior year's observation for future dates and
// tag the reading accordingly.
type BaselineEstimator interface {
	Baseline(ctx context.Context, loc Location, date time.Time) (BaselineReading, error)
}

// LearnedEstimator is the black-box regression model. It never fails; when no
// model is reachable it degrades to the historical average.
type LearnedEstimator interface {
	Predict(ctx context.Context, loc Location, date time.Time, historicalAvg float64) LearnedResult
}

// ResultStore is the contract forecast history stores must satisfy.
type ResultStore interface {
	Save(ctx context.Context, result EnsembleResult) (ForecastRecord, error)
	History(ctx context.Context, loc Location, limit int) ([]ForecastRecord, error)
	Statistics(ctx context.Context) (Statistics, error)
}

// Publisher announces issued forecasts to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, result EnsembleResult) error
}

const (
	fallbackLearnedConfidence = 0.3
)

// FallbackLearned is the learned estimate used when no model is available.
func FallbackLearned(historicalAvg float64) LearnedResult {
	return LearnedResult{
		EstimatorResult: EstimatorResult{
			AmountMM:   historicalAvg,
			Confidence: fallbackLearnedConfidence,
		},
		ModelAvailable: false,
	}
}

// NoModel is a LearnedEstimator for deployments without a model endpoint.
type NoModel struct{}

func (NoModel) Predict(_ context.Context, _ Location, _ time.Time, historicalAvg float64) LearnedResult {
	return FallbackLearned(historicalAvg)
}
