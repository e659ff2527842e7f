package weather

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// HistoricalYears is how many prior years feed the historical average.
const HistoricalYears = 3

// ErrNoStore is returned by history queries when no ResultStore is configured.
var ErrNoStore = errors.New("forecast history is not enabled")

const blendedDatasets = "learned model + trend analysis"

// Metrics receives engine events. observability.Metrics satisfies it.
type Metrics interface {
	ForecastIssued(label string)
	ForecastFailed(reason string)
	EstimatorFallback(estimator string)
}

type nopMetrics struct{}

func (nopMetrics) ForecastIssued(string)    {}
func (nopMetrics) ForecastFailed(string)    {}
func (nopMetrics) EstimatorFallback(string) {}

// Deps wires the Service collaborators. Only Baseline is required.
type Deps struct {
	Baseline  BaselineEstimator
	Learned   LearnedEstimator
	Store     ResultStore
	Publisher Publisher
	Clock     clockwork.Clock
	Metrics   Metrics
	Logger    zerolog.Logger
	// Weights overrides the base blend; the zero value means DefaultWeights.
	Weights Weights
}

// Service is the ensemble engine. It orchestrates the three estimators and
// fuses their output; it holds no per-request state.
type Service struct {
	baseline  BaselineEstimator
	learned   LearnedEstimator
	trend     *TrendEstimator
	store     ResultStore
	publisher Publisher
	clock     clockwork.Clock
	metrics   Metrics
	logger    zerolog.Logger
	weights   Weights
}

// NewService creates a new Service.
func NewService(deps Deps) *Service {
	s := &Service{
		baseline:  deps.Baseline,
		learned:   deps.Learned,
		store:     deps.Store,
		publisher: deps.Publisher,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With().Str("component", "ensemble").Logger(),
		weights:   deps.Weights,
	}
	if s.learned == nil {
		s.learned = NoModel{}
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.weights.Sum() <= 0 {
		s.weights = DefaultWeights()
	}
	s.weights = s.weights.clamped().normalized()
	s.trend = NewTrendEstimator(deps.Baseline, deps.Logger)
	return s
}

// Forecast blends the baseline, learned and trend estimates for loc on date.
// A failed baseline lookup fails the whole call with a *ForecastError; the
// other estimators degrade to their fallbacks.
func (s *Service) Forecast(ctx context.Context, loc Location, date time.Time) (EnsembleResult, error) {
	if err := loc.Validate(); err != nil {
		s.metrics.ForecastFailed("invalid_location")
		return EnsembleResult{}, err
	}
	day := Day(date)
	log := s.logger.With().Str("location", loc.String()).Str("event_date", day.Format(DateLayout)).Logger()

	reading, err := s.baseline.Baseline(ctx, loc, day)
	if err != nil {
		reason := "data_unavailable"
		if !errors.Is(err, ErrDataUnavailable) {
			reason = "upstream_unavailable"
			err = fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
		}
		s.metrics.ForecastFailed(reason)
		log.Error().Err(err).Msg("baseline lookup failed")
		return EnsembleResult{}, &ForecastError{Location: loc, Date: day, Err: err}
	}
	baselineMM := math.Max(0, reading.AmountMM)
	baselineProb := ProbabilityForAmount(baselineMM)

	// One scatter covers both the historical average (first three years)
	// and the trend window, so no prior year is fetched twice.
	history := priorYearSlots(ctx, s.baseline, loc, day, TrendWindowYears, log)
	histAvg := meanOrZero(present(history[:HistoricalYears]))

	// The historical average is an input to both; the two are independent otherwise.
	var (
		learned LearnedResult
		trend   TrendResult
		g       errgroup.Group
	)
	g.Go(func() error {
		learned = s.learned.Predict(ctx, loc, day, histAvg)
		return nil
	})
	g.Go(func() error {
		trend = s.trend.estimateFrom(loc, present(history), histAvg)
		return nil
	})
	_ = g.Wait()

	learned.AmountMM = math.Max(0, learned.AmountMM)
	learned.Confidence = clamp01(learned.Confidence)
	trend.AmountMM = math.Max(0, trend.AmountMM)
	trend.Confidence = clamp01(trend.Confidence)

	if !learned.ModelAvailable {
		s.metrics.EstimatorFallback("learned")
	}
	if trend.Label == TrendInsufficientData || trend.Label == TrendError {
		s.metrics.EstimatorFallback("trend")
	}

	amounts := Amounts{Baseline: baselineMM, Learned: learned.AmountMM, Trend: trend.AmountMM}
	weights := AdjustWeights(s.weights, learned.Confidence, trend.Confidence)
	fused := Fuse(amounts, weights)

	overall := OverallConfidence(learned.Confidence, trend.Confidence)
	probability := FuseProbability(baselineProb, fused, overall)
	interval := ConfidenceInterval(amounts, weights)
	label := LabelFor(overall)

	result := EnsembleResult{
		Location:        loc,
		EventDate:       day.Format(DateLayout),
		PrecipitationMM: round(fused, 2),
		Probability:     probability,
		Interval: Interval{
			Lower:  round(interval.Lower, 2),
			Upper:  round(interval.Upper, 2),
			StdDev: round(interval.StdDev, 2),
		},
		Confidence:      label,
		ConfidenceScore: round(overall, 3),
		Summary:         Summarize(probability, trend.Label, interval.StdDev, reading),
		Sources: Breakdown{
			Baseline: BaselineContribution{
				SourceContribution: SourceContribution{AmountMM: baselineMM, Weight: weights.Baseline, Confidence: 1.0},
				Probability:        baselineProb,
				Provenance:         reading.Provenance,
				SourceDate:         formatDay(reading.SourceDate),
			},
			Learned: LearnedContribution{
				SourceContribution: SourceContribution{AmountMM: learned.AmountMM, Weight: weights.Learned, Confidence: learned.Confidence},
				ModelAvailable:     learned.ModelAvailable,
			},
			Trend: TrendContribution{
				SourceContribution: SourceContribution{AmountMM: trend.AmountMM, Weight: weights.Trend, Confidence: trend.Confidence},
				Trend:              trend.Label,
				Slope:              trend.Slope,
				RSquared:           trend.RSquared,
				Samples:            trend.Samples,
			},
		},
		Dataset:  datasetName(reading.Dataset),
		IssuedAt: s.clock.Now().UTC(),
	}

	s.metrics.ForecastIssued(string(label))
	log.Info().
		Float64("precipitation_mm", result.PrecipitationMM).
		Float64("probability", result.Probability).
		Str("confidence", string(label)).
		Str("provenance", string(reading.Provenance)).
		Bool("model_available", learned.ModelAvailable).
		Str("trend", string(trend.Label)).
		Msg("forecast issued")

	return result, nil
}

// ForecastAndRecord runs Forecast and then persists and publishes the result.
// Persistence and publication are best effort; their failures are logged only.
func (s *Service) ForecastAndRecord(ctx context.Context, loc Location, date time.Time) (EnsembleResult, error) {
	result, err := s.Forecast(ctx, loc, date)
	if err != nil {
		return EnsembleResult{}, err
	}

	if s.store != nil {
		if rec, err := s.store.Save(ctx, result); err != nil {
			s.logger.Warn().Err(err).Str("location", loc.String()).Msg("failed to save forecast")
		} else {
			s.logger.Debug().Str("id", rec.ID).Msg("forecast saved")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, result); err != nil {
			s.logger.Warn().Err(err).Str("location", loc.String()).Msg("failed to publish forecast")
		}
	}
	return result, nil
}

// History delegates to the underlying store.
func (s *Service) History(ctx context.Context, loc Location, limit int) ([]ForecastRecord, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.History(ctx, loc, limit)
}

// Statistics delegates to the underlying store.
func (s *Service) Statistics(ctx context.Context) (Statistics, error) {
	if s.store == nil {
		return Statistics{}, ErrNoStore
	}
	return s.store.Statistics(ctx)
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func datasetName(baseline string) string {
	if baseline == "" {
		return blendedDatasets
	}
	return baseline + " + " + blendedDatasets
}
