package weather

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

const (
	// TrendWindowYears is how many past years the trend fit looks at.
	TrendWindowYears = 5

	minTrendSamples        = 2
	stableSlope            = 0.1
	insufficientConfidence = 0.5
	errorConfidence        = 0.4
	minTrendConfidence     = 0.3
	maxTrendConfidence     = 0.9
)

// TrendEstimator fits a line through past same-day baseline amounts and
// extrapolates it one step toward the present.
type TrendEstimator struct {
	baseline BaselineEstimator
	years    int
	logger   zerolog.Logger
}

// NewTrendEstimator creates a TrendEstimator over the standard five-year window.
func NewTrendEstimator(baseline BaselineEstimator, logger zerolog.Logger) *TrendEstimator {
	return &TrendEstimator{
		baseline: baseline,
		years:    TrendWindowYears,
		logger:   logger.With().Str("component", "trend").Logger(),
	}
}

// Estimate never fails: thin history yields insufficient_data and a failed
// fit yields error, both carrying historicalAvg as the amount.
func (t *TrendEstimator) Estimate(ctx context.Context, loc Location, date time.Time, historicalAvg float64) TrendResult {
	samples := present(priorYearSlots(ctx, t.baseline, loc, date, t.years, t.logger))
	return t.estimateFrom(loc, samples, historicalAvg)
}

// estimateFrom fits already collected samples, ordered one year back first.
func (t *TrendEstimator) estimateFrom(loc Location, samples []float64, historicalAvg float64) TrendResult {
	if len(samples) < minTrendSamples {
		t.logger.Debug().Int("samples", len(samples)).Str("location", loc.String()).Msg("not enough history for a trend")
		return TrendResult{
			EstimatorResult: EstimatorResult{AmountMM: historicalAvg, Confidence: insufficientConfidence},
			Label:           TrendInsufficientData,
			Samples:         len(samples),
		}
	}

	result, err := t.fit(samples)
	if err != nil {
		t.logger.Warn().Err(err).Str("location", loc.String()).Msg("trend estimation failed")
		return TrendResult{
			EstimatorResult: EstimatorResult{AmountMM: historicalAvg, Confidence: errorConfidence},
			Label:           TrendError,
			Samples:         len(samples),
		}
	}
	return result
}

// fit runs least squares with x = 0..n-1 in collection order. x=0 is the
// most recent year, so the intercept is the extrapolated estimate.
func (t *TrendEstimator) fit(samples []float64) (result TrendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("regression panicked: %v", r)
		}
	}()

	xs := make([]float64, len(samples))
	for i := range xs {
		xs[i] = float64(i)
	}

	intercept, slope := stat.LinearRegression(xs, samples, nil, false)
	if !isFinite(intercept) || !isFinite(slope) {
		return TrendResult{}, fmt.Errorf("non-finite fit: intercept=%v slope=%v", intercept, slope)
	}

	r2 := stat.RSquared(xs, samples, nil, intercept, slope)
	if !isFinite(r2) {
		// Flat history: no variance to explain.
		r2 = 0
	}

	confidence := r2 * float64(len(samples)) / float64(TrendWindowYears)
	confidence = math.Min(maxTrendConfidence, math.Max(minTrendConfidence, confidence))

	return TrendResult{
		EstimatorResult: EstimatorResult{
			AmountMM:   math.Max(0, intercept),
			Confidence: confidence,
		},
		Label:    labelForSlope(slope),
		Slope:    slope,
		RSquared: r2,
		Samples:  len(samples),
	}, nil
}

func labelForSlope(slope float64) TrendLabel {
	switch {
	case math.Abs(slope) < stableSlope:
		return TrendStable
	case slope > 0:
		return TrendIncreasing
	default:
		return TrendDecreasing
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
