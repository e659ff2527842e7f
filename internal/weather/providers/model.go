package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

// FeatureNames is the order of the vector sent to the model.
var FeatureNames = []string{
	"latitude",
	"longitude",
	"day_of_year",
	"month",
	"season",
	"historical_avg",
	"distance_from_equator",
	"is_tropical",
	"day_sin",
	"day_cos",
}

const tropicLatitude = 23.5

// Features derives the model input vector for a location and day.
func Features(loc weather.Location, date time.Time, historicalAvg float64) []float64 {
	doy := float64(date.YearDay())
	month := int(date.Month())
	season := float64((month % 12) / 3)

	tropical := 0.0
	if math.Abs(loc.Latitude) < tropicLatitude {
		tropical = 1.0
	}
	angle := 2 * math.Pi * doy / 365.25

	return []float64{
		loc.Latitude,
		loc.Longitude,
		doy,
		float64(month),
		season,
		historicalAvg,
		math.Abs(loc.Latitude),
		tropical,
		math.Sin(angle),
		math.Cos(angle),
	}
}

type predictRequest struct {
	Features     []float64 `json:"features"`
	FeatureNames []string  `json:"feature_names"`
}

type predictResponse struct {
	PredictedMM       *float64           `json:"predicted_mm"`
	Confidence        *float64           `json:"confidence"`
	FeatureImportance map[string]float64 `json:"feature_importance,omitempty"`
}

// ModelInfo describes the served model. Unknown fields are kept in Extra.
type ModelInfo struct {
	ModelAvailable bool           `json:"model_available"`
	ModelType      string         `json:"model_type,omitempty"`
	NFeatures      int            `json:"n_features,omitempty"`
	Message        string         `json:"message,omitempty"`
	Extra          map[string]any `json:"extra,omitempty"`
}

// ModelClient is the learned estimator: a regression model served over HTTP.
// It never fails; any problem degrades to the historical average.
type ModelClient struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// NewModelClient creates a client for the model at baseURL. An empty URL
// yields a client that always falls back.
func NewModelClient(cfg HTTPClientConfig, baseURL string, logger zerolog.Logger) *ModelClient {
	return &ModelClient{
		name:    "model",
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: cfg,
		circuit: newCircuitBreaker("model"),
		logger:  logger.With().Str("component", "model_client").Logger(),
	}
}

// Enabled reports whether a model endpoint is configured.
func (m *ModelClient) Enabled() bool {
	return m.baseURL != ""
}

// Predict implements weather.LearnedEstimator.
func (m *ModelClient) Predict(ctx context.Context, loc weather.Location, date time.Time, historicalAvg float64) weather.LearnedResult {
	if !m.Enabled() {
		return weather.FallbackLearned(historicalAvg)
	}

	res, err := m.predict(ctx, Features(loc, date, historicalAvg))
	if err != nil {
		m.logger.Warn().Err(err).Str("location", loc.String()).Msg("model prediction failed; using historical average")
		return weather.FallbackLearned(historicalAvg)
	}

	m.logger.Debug().
		Float64("predicted_mm", res.AmountMM).
		Float64("confidence", res.Confidence).
		Str("location", loc.String()).
		Msg("model prediction")
	return res
}

func (m *ModelClient) predict(ctx context.Context, features []float64) (weather.LearnedResult, error) {
	body, err := json.Marshal(predictRequest{Features: features, FeatureNames: FeatureNames})
	if err != nil {
		return weather.LearnedResult{}, err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, m.baseURL+"/predict", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, m.httpCfg, m.circuit, buildRequest)
	if err != nil {
		return weather.LearnedResult{}, err
	}
	defer resp.Body.Close()

	var payload predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.LearnedResult{}, fmt.Errorf("decode model response: %w", err)
	}
	if payload.PredictedMM == nil || payload.Confidence == nil {
		return weather.LearnedResult{}, fmt.Errorf("model response missing prediction or confidence")
	}
	if math.IsNaN(*payload.PredictedMM) || math.IsNaN(*payload.Confidence) {
		return weather.LearnedResult{}, fmt.Errorf("model returned NaN")
	}

	return weather.LearnedResult{
		EstimatorResult: weather.EstimatorResult{
			AmountMM:   math.Max(0, *payload.PredictedMM),
			Confidence: math.Min(1, math.Max(0, *payload.Confidence)),
		},
		ModelAvailable: true,
	}, nil
}

// Info reports metadata about the served model.
func (m *ModelClient) Info(ctx context.Context) (ModelInfo, error) {
	if !m.Enabled() {
		return ModelInfo{ModelAvailable: false, Message: "no model endpoint configured"}, nil
	}

	buildRequest := func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, m.baseURL+"/info", nil)
	}
	resp, err := doRequestWithResilience(ctx, m.httpCfg, m.circuit, buildRequest)
	if err != nil {
		return ModelInfo{}, fmt.Errorf("model info: %w", err)
	}
	defer resp.Body.Close()

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return ModelInfo{}, fmt.Errorf("decode model info: %w", err)
	}

	info := ModelInfo{ModelAvailable: true, Extra: map[string]any{}}
	for k, v := range raw {
		switch k {
		case "model_available":
			if b, ok := v.(bool); ok {
				info.ModelAvailable = b
			}
		case "model_type":
			info.ModelType, _ = v.(string)
		case "n_features":
			if n, ok := v.(float64); ok {
				info.NFeatures = int(n)
			}
		case "message":
			info.Message, _ = v.(string)
		default:
			info.Extra[k] = v
		}
	}
	return info, nil
}
