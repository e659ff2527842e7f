package weather

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLoc = Location{Latitude: 40.7128, Longitude: -74.006, Name: "New York"}

func TestTrendPerfectLine(t *testing.T) {
	date := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	// One year back first: 10, 8, 6, 4, 2.
	est := NewTrendEstimator(newFakeBaseline(yearsBack(date, 10, 8, 6, 4, 2)), zerolog.Nop())

	res := est.Estimate(context.Background(), testLoc, date, 1.5)

	assert.Equal(t, TrendDecreasing, res.Label)
	assert.InDelta(t, 10.0, res.AmountMM, 1e-9)
	assert.InDelta(t, -2.0, res.Slope, 1e-9)
	assert.InDelta(t, 1.0, res.RSquared, 1e-9)
	assert.InDelta(t, 0.9, res.Confidence, 1e-9)
	assert.Equal(t, 5, res.Samples)
}

func TestTrendInsufficientData(t *testing.T) {
	date := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	est := NewTrendEstimator(newFakeBaseline(yearsBack(date, 3.3)), zerolog.Nop())

	res := est.Estimate(context.Background(), testLoc, date, 2.7)

	assert.Equal(t, TrendInsufficientData, res.Label)
	assert.Equal(t, 0.5, res.Confidence)
	assert.Equal(t, 2.7, res.AmountMM)
	assert.Equal(t, 1, res.Samples)
}

func TestTrendNoHistoryAtAll(t *testing.T) {
	date := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	est := NewTrendEstimator(newFakeBaseline(nil), zerolog.Nop())

	res := est.Estimate(context.Background(), testLoc, date, 0)

	assert.Equal(t, TrendInsufficientData, res.Label)
	assert.Equal(t, 0.5, res.Confidence)
}

func TestTrendSkipsFailedYearsAndKeepsOffsetOrder(t *testing.T) {
	date := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	fb := newFakeBaseline(map[string]float64{
		"2023-06-15": 9,
		"2021-06-15": 6,
		"2019-06-15": 3,
	})
	fb.errs["2022-06-15"] = errBoom

	res := NewTrendEstimator(fb, zerolog.Nop()).Estimate(context.Background(), testLoc, date, 0)

	require.Equal(t, 3, res.Samples)
	assert.InDelta(t, -3.0, res.Slope, 1e-9)
	assert.InDelta(t, 9.0, res.AmountMM, 1e-9)
	// r2 = 1, three of five years
	assert.InDelta(t, 0.6, res.Confidence, 1e-9)
	assert.Equal(t, 5, fb.callCount())
}

func TestTrendFlatHistoryIsStable(t *testing.T) {
	date := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	est := NewTrendEstimator(newFakeBaseline(yearsBack(date, 3, 3, 3, 3, 3)), zerolog.Nop())

	res := est.Estimate(context.Background(), testLoc, date, 0)

	assert.Equal(t, TrendStable, res.Label)
	assert.InDelta(t, 3.0, res.AmountMM, 1e-9)
	assert.Equal(t, 0.0, res.RSquared)
	assert.Equal(t, 0.3, res.Confidence)
}

func TestTrendNegativeInterceptIsFloored(t *testing.T) {
	date := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	est := NewTrendEstimator(newFakeBaseline(yearsBack(date, 0, 0, 10)), zerolog.Nop())

	res := est.Estimate(context.Background(), testLoc, date, 0)

	assert.Equal(t, TrendIncreasing, res.Label)
	assert.Equal(t, 0.0, res.AmountMM)
	assert.InDelta(t, 5.0, res.Slope, 1e-9)
	assert.InDelta(t, 0.75, res.RSquared, 1e-9)
	assert.InDelta(t, 0.45, res.Confidence, 1e-9)
}

func TestTrendLeapDaySkipsMissingYears(t *testing.T) {
	date := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)
	fb := newFakeBaseline(map[string]float64{"2020-02-29": 4})

	res := NewTrendEstimator(fb, zerolog.Nop()).Estimate(context.Background(), testLoc, date, 1.1)

	assert.Equal(t, TrendInsufficientData, res.Label)
	// Only 2020 exists as a calendar day.
	assert.Equal(t, 1, fb.callCount())
}

func TestTrendFitFailureFallsBackToHistoricalAverage(t *testing.T) {
	date := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)
	fb := newFakeBaseline(yearsBack(date, 1, math.Inf(1), 3))

	res := NewTrendEstimator(fb, zerolog.Nop()).Estimate(context.Background(), testLoc, date, 2.5)

	assert.Equal(t, TrendError, res.Label)
	assert.Equal(t, 0.4, res.Confidence)
	assert.Equal(t, 2.5, res.AmountMM)
	assert.Equal(t, 3, res.Samples)
}

func TestLabelForSlope(t *testing.T) {
	assert.Equal(t, TrendStable, labelForSlope(0.099))
	assert.Equal(t, TrendStable, labelForSlope(-0.099))
	assert.Equal(t, TrendIncreasing, labelForSlope(0.1))
	assert.Equal(t, TrendDecreasing, labelForSlope(-0.1))
}

func TestHistoricalAverage(t *testing.T) {
	date := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	avg := HistoricalAverage(context.Background(), newFakeBaseline(yearsBack(date, 1, 2, 6, 100)), testLoc, date, 3, zerolog.Nop())
	assert.InDelta(t, 3.0, avg, 1e-12)

	avg = HistoricalAverage(context.Background(), newFakeBaseline(nil), testLoc, date, 3, zerolog.Nop())
	assert.Equal(t, 0.0, avg)

	avg = HistoricalAverage(context.Background(), newFakeBaseline(yearsBack(date, 2, math.NaN(), 4)), testLoc, date, 3, zerolog.Nop())
	assert.InDelta(t, 3.0, avg, 1e-12)
}
