package weather

import "math"

// Weights is the share each estimator gets in the blend.
type Weights struct {
	Baseline float64 `json:"baseline"`
	Learned  float64 `json:"learned"`
	Trend    float64 `json:"trend"`
}

// DefaultWeights favours the satellite baseline as ground truth.
func DefaultWeights() Weights {
	return Weights{Baseline: 0.50, Learned: 0.30, Trend: 0.20}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Baseline + w.Learned + w.Trend
}

func (w Weights) slice() []float64 {
	return []float64{w.Baseline, w.Learned, w.Trend}
}

func (w Weights) clamped() Weights {
	return Weights{
		Baseline: math.Max(0, w.Baseline),
		Learned:  math.Max(0, w.Learned),
		Trend:    math.Max(0, w.Trend),
	}
}

func (w Weights) normalized() Weights {
	total := w.Sum()
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return DefaultWeights()
	}
	return Weights{
		Baseline: w.Baseline / total,
		Learned:  w.Learned / total,
		Trend:    w.Trend / total,
	}
}

const (
	// Estimators below this confidence lose weight.
	trustedConfidence = 0.5

	learnedPenaltyRate = 0.4
	trendPenaltyRate   = 0.3

	// A penalty is split between the baseline and the remaining estimator.
	baselineShare = 0.7
	siblingShare  = 0.3
)

// AdjustWeights moves weight away from the learned and trend estimators in
// proportion to how far their confidence falls below 0.5. The learned
// adjustment runs first and the trend adjustment builds on its output.
// Weights are clamped at zero after each step and renormalized to sum to 1.
// The baseline only ever gains, so the total stays positive.
func AdjustWeights(base Weights, learnedConf, trendConf float64) Weights {
	learnedConf = clamp01(learnedConf)
	trendConf = clamp01(trendConf)

	w := base.clamped()

	if learnedConf < trustedConfidence {
		reduction := (trustedConfidence - learnedConf) * learnedPenaltyRate
		w.Learned -= reduction
		w.Baseline += reduction * baselineShare
		w.Trend += reduction * siblingShare
		w = w.clamped()
	}

	if trendConf < trustedConfidence {
		reduction := (trustedConfidence - trendConf) * trendPenaltyRate
		w.Trend -= reduction
		w.Baseline += reduction * baselineShare
		w.Learned += reduction * siblingShare
		w = w.clamped()
	}

	return w.normalized()
}

// clamp01 bounds v to [0,1]; NaN counts as no confidence at all.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
