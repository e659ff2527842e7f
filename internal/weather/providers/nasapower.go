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

const (
	// NASAPowerDataset names the baseline in results.
	NASAPowerDataset = "NASA POWER (GPM IMERG derived)"

	nasaPowerURL       = "https://power.larc.nasa.gov/api/temporal/daily/point"
	nasaParameter      = "PRECTOTCORR"
	nasaDateLayout     = "20060102"
	nasaFillValue      = -999.0
	nasaFillValueDelta = 1e-6
)

// UpstreamObserver is told about every completed upstream lookup.
type UpstreamObserver interface {
	ObserveUpstream(source string, elapsed time.Duration, err error)
}

// NASAPowerProvider is the satellite-derived baseline: daily corrected
// precipitation (PRECTOTCORR) from the NASA POWER point API.
type NASAPowerProvider struct {
	name     string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	clock    clockwork.Clock
	observer UpstreamObserver
}

func NewNASAPowerProvider(cfg HTTPClientConfig, baseURL string, clock clockwork.Clock, observer UpstreamObserver) *NASAPowerProvider {
	if baseURL == "" {
		baseURL = nasaPowerURL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &NASAPowerProvider{
		name:     "nasa_power",
		baseURL:  baseURL,
		httpCfg:  cfg,
		circuit:  newCircuitBreaker("nasa_power"),
		clock:    clock,
		observer: observer,
	}
}

func (p *NASAPowerProvider) Name() string {
	return p.name
}

type nasaPowerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// Baseline implements weather.BaselineEstimator.
func (p *NASAPowerProvider) Baseline(ctx context.Context, loc weather.Location, date time.Time) (reading weather.BaselineReading, err error) {
	if p.observer != nil {
		start := time.Now()
		defer func() { p.observer.ObserveUpstream(p.name, time.Since(start), err) }()
	}

	obsDate, provenance := observationDate(p.clock, date)
	stamp := obsDate.Format(nasaDateLayout)

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("parameters", nasaParameter)
		values.Set("community", "RE")
		values.Set("latitude", strconv.FormatFloat(loc.Latitude, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(loc.Longitude, 'f', -1, 64))
		values.Set("start", stamp)
		values.Set("end", stamp)
		values.Set("format", "JSON")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		if isClientError(err) {
			return weather.BaselineReading{}, &weather.DataUnavailableError{Location: loc, Date: obsDate, Reason: err.Error()}
		}
		return weather.BaselineReading{}, fmt.Errorf("nasa power request: %w", err)
	}
	defer resp.Body.Close()

	var payload nasaPowerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.BaselineReading{}, fmt.Errorf("decode nasa power response: %w", err)
	}

	raw, ok := payload.Properties.Parameter[nasaParameter][stamp]
	if !ok {
		return weather.BaselineReading{}, &weather.DataUnavailableError{Location: loc, Date: obsDate, Reason: "no value in response"}
	}
	if math.Abs(raw-nasaFillValue) < nasaFillValueDelta {
		return weather.BaselineReading{}, &weather.DataUnavailableError{Location: loc, Date: obsDate, Reason: "fill value"}
	}

	return weather.BaselineReading{
		AmountMM:   math.Max(0, raw),
		Provenance: provenance,
		SourceDate: obsDate,
		Dataset:    datasetFor(NASAPowerDataset, provenance),
	}, nil
}
