package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ForecastIssued("high")
	m.ForecastIssued("high")
	m.ForecastFailed("data_unavailable")
	m.EstimatorFallback("learned")
	m.CacheLookup("baseline", true)
	m.CacheLookup("baseline", false)
	m.ObserveUpstream("nasa_power", 120*time.Millisecond, errors.New("x"))
	m.WarmupCompleted()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ForecastsIssued.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ForecastFailures.WithLabelValues("data_unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EstimatorFallbacks.WithLabelValues("learned")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("baseline", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("baseline", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WarmupRuns))
	assert.Equal(t, 1, testutil.CollectAndCount(m.UpstreamDuration))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ForecastIssued("low")
		m.ForecastFailed("x")
		m.EstimatorFallback("trend")
		m.CacheLookup("baseline", true)
		m.ObserveUpstream("nasa_power", time.Second, nil)
		m.WarmupCompleted()
	})
}

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info().Msg("hidden")
	logger.Warn().Str("k", "v").Msg("shown")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "shown", line["message"])
	assert.Equal(t, "v", line["k"])
	assert.Equal(t, "precip-ensemble", line["service"])
}

func TestNewLoggerRejectsBadInput(t *testing.T) {
	_, err := newLogger(&bytes.Buffer{}, "loud", "json")
	assert.Error(t, err)

	_, err = newLogger(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)

	_, err = newLogger(&bytes.Buffer{}, "", "console")
	assert.NoError(t, err)
}
