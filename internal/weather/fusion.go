package weather

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ProbabilityForAmount maps a daily amount to an occurrence probability
// using a fixed threshold ladder. Each bucket includes its upper bound.
func ProbabilityForAmount(mm float64) float64 {
	switch {
	case mm <= 0.2:
		return 0.10
	case mm <= 1:
		return 0.35
	case mm <= 5:
		return 0.60
	case mm <= 10:
		return 0.80
	default:
		return 0.95
	}
}

// Amounts holds the three point estimates in mm.
type Amounts struct {
	Baseline float64
	Learned  float64
	Trend    float64
}

func (a Amounts) slice() []float64 {
	return []float64{a.Baseline, a.Learned, a.Trend}
}

// Fuse returns the weighted blend of the three amounts.
func Fuse(a Amounts, w Weights) float64 {
	return w.Baseline*a.Baseline + w.Learned*a.Learned + w.Trend*a.Trend
}

const (
	baselineProbabilityShare  = 0.6
	thresholdProbabilityShare = 0.4
	uncertaintyPull           = 0.2
)

// OverallConfidence averages the two non-baseline confidences.
func OverallConfidence(learnedConf, trendConf float64) float64 {
	return (learnedConf + trendConf) / 2
}

// FuseProbability blends the baseline probability with the ladder probability
// of the fused amount, then pulls the result toward 0.5 as confidence drops.
// The result is clamped to [0,1] and rounded to 3 decimals.
func FuseProbability(baselineProb, fusedMM, overallConf float64) float64 {
	thresholdProb := ProbabilityForAmount(fusedMM)
	combined := baselineProbabilityShare*baselineProb + thresholdProbabilityShare*thresholdProb

	uncertainty := 1 - overallConf
	combined = combined*(1-uncertainty*uncertaintyPull) + 0.5*uncertainty*uncertaintyPull

	return round(clamp01(combined), 3)
}

// IntervalEstimate is the unrounded weighted spread of the three estimates.
type IntervalEstimate struct {
	Mean   float64
	StdDev float64
	Lower  float64
	Upper  float64
}

const z95 = 1.96

// ConfidenceInterval treats the amounts as a weighted 3-point sample and
// returns mean ± 1.96 standard deviations, with the lower bound floored at 0.
func ConfidenceInterval(a Amounts, w Weights) IntervalEstimate {
	mean, variance := stat.PopMeanVariance(a.slice(), w.slice())
	std := math.Sqrt(math.Max(0, variance))
	margin := z95 * std
	return IntervalEstimate{
		Mean:   mean,
		StdDev: std,
		Lower:  math.Max(0, mean-margin),
		Upper:  mean + margin,
	}
}

// LabelFor buckets an overall confidence score.
func LabelFor(overall float64) ConfidenceLabel {
	switch {
	case overall >= 0.80:
		return ConfidenceVeryHigh
	case overall >= 0.65:
		return ConfidenceHigh
	case overall >= 0.50:
		return ConfidenceMedium
	case overall >= 0.35:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}
