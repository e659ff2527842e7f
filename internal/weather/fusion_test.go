package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbabilityForAmount(t *testing.T) {
	cases := []struct {
		mm   float64
		want float64
	}{
		{0, 0.10},
		{0.2, 0.10},
		{0.21, 0.35},
		{1.0, 0.35},
		{5.0, 0.60},
		{10.0, 0.80},
		{10.01, 0.95},
		{50.0, 0.95},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ProbabilityForAmount(tc.mm), "mm=%v", tc.mm)
	}
}

func TestFuseEndToEndArithmetic(t *testing.T) {
	// 4.2mm baseline, learned 3.0mm @ 0.8, trend 5.0mm @ 0.7: no reweighting.
	w := AdjustWeights(DefaultWeights(), 0.8, 0.7)
	assert.InDelta(t, 0.5, w.Baseline, 1e-12)
	assert.InDelta(t, 0.3, w.Learned, 1e-12)
	assert.InDelta(t, 0.2, w.Trend, 1e-12)

	a := Amounts{Baseline: 4.2, Learned: 3.0, Trend: 5.0}
	fused := Fuse(a, w)
	assert.InDelta(t, 0.5*4.2+0.3*3.0+0.2*5.0, fused, 1e-12)
	assert.InDelta(t, 4.0, fused, 1e-9)

	assert.Equal(t, 0.60, ProbabilityForAmount(a.Baseline))
}

func TestConfidenceIntervalMeanMatchesFusedAmount(t *testing.T) {
	amounts := []Amounts{
		{Baseline: 4.2, Learned: 3.0, Trend: 5.0},
		{Baseline: 0, Learned: 12.5, Trend: 0.3},
		{Baseline: 30, Learned: 0, Trend: 1},
	}
	for _, a := range amounts {
		for _, conf := range [][2]float64{{1, 1}, {0, 0}, {0.2, 0.9}, {0.45, 0.1}} {
			w := AdjustWeights(DefaultWeights(), conf[0], conf[1])
			iv := ConfidenceInterval(a, w)

			assert.InDelta(t, Fuse(a, w), iv.Mean, 1e-6)
			assert.LessOrEqual(t, iv.Lower, iv.Upper)
			assert.GreaterOrEqual(t, iv.Lower, 0.0)
		}
	}
}

func TestConfidenceIntervalWeightedVariance(t *testing.T) {
	// mean 4, variance 0.5*16 + 0.3*16 + 0.2*256 = 64
	iv := ConfidenceInterval(Amounts{Baseline: 0, Learned: 0, Trend: 20}, DefaultWeights())

	assert.InDelta(t, 4.0, iv.Mean, 1e-9)
	assert.InDelta(t, 8.0, iv.StdDev, 1e-9)
	assert.Equal(t, 0.0, iv.Lower)
	assert.InDelta(t, 4+1.96*8, iv.Upper, 1e-9)
}

func TestConfidenceIntervalAgreeingEstimates(t *testing.T) {
	iv := ConfidenceInterval(Amounts{Baseline: 2.5, Learned: 2.5, Trend: 2.5}, DefaultWeights())

	assert.InDelta(t, 0.0, iv.StdDev, 1e-12)
	assert.InDelta(t, 2.5, iv.Lower, 1e-12)
	assert.InDelta(t, 2.5, iv.Upper, 1e-12)
}

func TestFuseProbability(t *testing.T) {
	// Full confidence: no pull toward 0.5.
	assert.InDelta(t, 0.6, FuseProbability(0.6, 4.0, 1.0), 1e-12)

	// combined 0.6*0.1 + 0.4*0.95 = 0.44, pulled by 0.2: 0.44*0.8 + 0.1 = 0.452
	assert.InDelta(t, 0.452, FuseProbability(0.10, 20, 0.0), 1e-12)

	// Overall 0.85: 0.6*0.97 + 0.5*0.03
	assert.InDelta(t, 0.597, FuseProbability(0.6, 4.0, 0.85), 1e-12)
}

func TestFuseProbabilityStaysInUnitRange(t *testing.T) {
	for _, bp := range []float64{0, 0.1, 0.35, 0.6, 0.8, 0.95, 1} {
		for _, mm := range []float64{0, 0.5, 3, 7, 100} {
			for _, c := range []float64{-1, 0, 0.3, 0.5, 1, 2} {
				p := FuseProbability(bp, mm, c)
				assert.GreaterOrEqual(t, p, 0.0)
				assert.LessOrEqual(t, p, 1.0)
			}
		}
	}
}

func TestLabelFor(t *testing.T) {
	cases := []struct {
		overall float64
		want    ConfidenceLabel
	}{
		{0.95, ConfidenceVeryHigh},
		{0.80, ConfidenceVeryHigh},
		{0.79, ConfidenceHigh},
		{0.65, ConfidenceHigh},
		{0.50, ConfidenceMedium},
		{0.35, ConfidenceLow},
		{0.34, ConfidenceVeryLow},
		{0, ConfidenceVeryLow},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, LabelFor(tc.overall), "overall=%v", tc.overall)
	}
}
