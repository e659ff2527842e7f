package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

const (
	nominatimURL       = "https://nominatim.openstreetmap.org"
	DefaultUserAgent   = "precip-ensemble"
	nominatimMaxRetry  = 2
	nominatimRateLimit = 1 // requests per second, per the public usage policy
)

// NominatimClient geocodes against an OpenStreetMap Nominatim server.
type NominatimClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewNominatimClient creates a client. Empty baseURL and userAgent use the
// public server and the default agent.
func NewNominatimClient(client *http.Client, baseURL, userAgent string) *NominatimClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = nominatimURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &NominatimClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    client,
		limiter:   rate.NewLimiter(rate.Limit(nominatimRateLimit), 1),
	}
}

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (n *NominatimClient) Geocode(ctx context.Context, query string) (weather.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return weather.Location{}, ErrEmptyQuery
	}

	values := url.Values{}
	values.Set("format", "json")
	values.Set("limit", "1")
	values.Set("q", query)

	var places []nominatimPlace
	if err := n.get(ctx, "/search", values, &places); err != nil {
		return weather.Location{}, err
	}
	if len(places) == 0 {
		return weather.Location{}, fmt.Errorf("%w: %q", ErrNotFound, query)
	}

	top := places[0]
	lat, err := strconv.ParseFloat(top.Lat, 64)
	if err != nil {
		return weather.Location{}, fmt.Errorf("parse latitude %q: %w", top.Lat, err)
	}
	lon, err := strconv.ParseFloat(top.Lon, 64)
	if err != nil {
		return weather.Location{}, fmt.Errorf("parse longitude %q: %w", top.Lon, err)
	}

	return weather.Location{Latitude: lat, Longitude: lon, Name: top.DisplayName}, nil
}

func (n *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	values := url.Values{}
	values.Set("format", "json")
	values.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	values.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	values.Set("zoom", "14")

	var place nominatimPlace
	if err := n.get(ctx, "/reverse", values, &place); err != nil {
		return "", err
	}
	if place.Error != "" || place.DisplayName == "" {
		return "", fmt.Errorf("%w: %v,%v", ErrNotFound, lat, lon)
	}
	return place.DisplayName, nil
}

func (n *NominatimClient) get(ctx context.Context, path string, values url.Values, out any) error {
	u := n.baseURL + path + "?" + values.Encode()

	operation := func() error {
		if err := n.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", n.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("nominatim %s: %w", path, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("nominatim %s: status %d", path, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("nominatim %s: status %d", path, resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode nominatim %s: %w", path, err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, nominatimMaxRetry), ctx))
}
