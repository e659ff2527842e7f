package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

// OpenMeteoDataset names the baseline in results.
const OpenMeteoDataset = "Open-Meteo ERA5 archive"

// OpenMeteoProvider is an alternative baseline backed by the Open-Meteo
// historical archive (daily precipitation_sum).
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	clock    clockwork.Clock
	observer UpstreamObserver
}

func NewOpenMeteoProvider(cfg HTTPClientConfig, baseURL string, clock clockwork.Clock, observer UpstreamObserver) *OpenMeteoProvider {
	if baseURL == "" {
		baseURL = "https://archive-api.open-meteo.com/v1/archive"
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  baseURL,
		httpCfg:  cfg,
		circuit:  newCircuitBreaker("openmeteo"),
		clock:    clock,
		observer: observer,
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

// Baseline implements weather.BaselineEstimator.
func (p *OpenMeteoProvider) Baseline(ctx context.Context, loc weather.Location, date time.Time) (reading weather.BaselineReading, err error) {
	if p.observer != nil {
		start := time.Now()
		defer func() { p.observer.ObserveUpstream(p.name, time.Since(start), err) }()
	}

	obsDate, provenance := observationDate(p.clock, date)
	day := obsDate.Format(weather.DateLayout)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
		values.Set("start_date", day)
		values.Set("end_date", day)
		values.Set("daily", "precipitation_sum")
		values.Set("timezone", "UTC")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		if isClientError(err) {
			return weather.BaselineReading{}, &weather.DataUnavailableError{Location: loc, Date: obsDate, Reason: err.Error()}
		}
		return weather.BaselineReading{}, fmt.Errorf("openmeteo request: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Daily struct {
			Time             []string   `json:"time"`
			PrecipitationSum []*float64 `json:"precipitation_sum"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.BaselineReading{}, fmt.Errorf("decode openmeteo response: %w", err)
	}

	for i, ts := range payload.Daily.Time {
		if ts != day || i >= len(payload.Daily.PrecipitationSum) {
			continue
		}
		v := payload.Daily.PrecipitationSum[i]
		if v == nil {
			// The archive lags a few days behind real time.
			return weather.BaselineReading{}, &weather.DataUnavailableError{Location: loc, Date: obsDate, Reason: "null value"}
		}
		return weather.BaselineReading{
			AmountMM:   math.Max(0, *v),
			Provenance: provenance,
			SourceDate: obsDate,
			Dataset:    datasetFor(OpenMeteoDataset, provenance),
		}, nil
	}

	return weather.BaselineReading{}, &weather.DataUnavailableError{Location: loc, Date: obsDate, Reason: "date missing from response"}
}
