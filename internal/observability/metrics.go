package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters and histograms for the forecast engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ForecastsIssued    *prometheus.CounterVec   // labels: confidence
	ForecastFailures   *prometheus.CounterVec   // labels: reason
	EstimatorFallbacks *prometheus.CounterVec   // labels: estimator={learned,trend}
	UpstreamDuration   *prometheus.HistogramVec // labels: source, outcome={success,error}
	CacheLookups       *prometheus.CounterVec   // labels: cache, result={hit,miss}
	WarmupRuns         prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ForecastsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "precip",
			Name:      "forecasts_issued_total",
			Help:      "Ensemble forecasts issued, by overall confidence label.",
		}, []string{"confidence"}),
		ForecastFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "precip",
			Name:      "forecast_failures_total",
			Help:      "Forecasts that could not be issued, by reason.",
		}, []string{"reason"}),
		EstimatorFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "precip",
			Name:      "estimator_fallbacks_total",
			Help:      "Times an estimator degraded to its fallback value.",
		}, []string{"estimator"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "precip",
			Name:      "upstream_request_duration_seconds",
			Help:      "Baseline upstream lookup duration in seconds, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"source", "outcome"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "precip",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		WarmupRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "precip",
			Name:      "warmup_runs_total",
			Help:      "Completed scheduled warm-up passes.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ForecastsIssued,
			m.ForecastFailures,
			m.EstimatorFallbacks,
			m.UpstreamDuration,
			m.CacheLookups,
			m.WarmupRuns,
		)
	}
	return m
}

func (m *Metrics) ForecastIssued(label string) {
	if m == nil {
		return
	}
	m.ForecastsIssued.WithLabelValues(label).Inc()
}

func (m *Metrics) ForecastFailed(reason string) {
	if m == nil {
		return
	}
	m.ForecastFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) EstimatorFallback(estimator string) {
	if m == nil {
		return
	}
	m.EstimatorFallbacks.WithLabelValues(estimator).Inc()
}

// ObserveUpstream records one baseline lookup. Context cancellation counts as an error.
func (m *Metrics) ObserveUpstream(source string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamDuration.WithLabelValues(source, outcome).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (m *Metrics) WarmupCompleted() {
	if m == nil {
		return
	}
	m.WarmupRuns.Inc()
}
