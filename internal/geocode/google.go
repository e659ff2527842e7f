package geocode

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

// The geocoder package keeps its key in a global.
var googleMu sync.Mutex

// GoogleGeocoder uses the Google Maps Geocoding API. The underlying client
// is blocking; calls honour ctx by abandoning the result.
type GoogleGeocoder struct {
	apiKey string
}

func NewGoogleGeocoder(apiKey string) (*GoogleGeocoder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("google geocoder requires an API key")
	}
	return &GoogleGeocoder{apiKey: apiKey}, nil
}

type googleResult struct {
	loc weather.Location
	err error
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, query string) (weather.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return weather.Location{}, ErrEmptyQuery
	}

	return g.await(ctx, func() (weather.Location, error) {
		googleMu.Lock()
		geocoder.ApiKey = g.apiKey
		location, err := geocoder.Geocoding(geocoder.Address{Street: query})
		googleMu.Unlock()
		if err != nil {
			return weather.Location{}, fmt.Errorf("google geocode %q: %w", query, err)
		}
		if location.Latitude == 0 && location.Longitude == 0 {
			return weather.Location{}, fmt.Errorf("%w: %q", ErrNotFound, query)
		}
		return weather.Location{Latitude: location.Latitude, Longitude: location.Longitude, Name: query}, nil
	})
}

func (g *GoogleGeocoder) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	loc, err := g.await(ctx, func() (weather.Location, error) {
		googleMu.Lock()
		geocoder.ApiKey = g.apiKey
		addresses, err := geocoder.GeocodingReverse(geocoder.Location{Latitude: lat, Longitude: lon})
		googleMu.Unlock()
		if err != nil {
			return weather.Location{}, fmt.Errorf("google reverse geocode: %w", err)
		}
		if len(addresses) == 0 {
			return weather.Location{}, fmt.Errorf("%w: %v,%v", ErrNotFound, lat, lon)
		}
		name := addresses[0].FormattedAddress
		if name == "" {
			name = addresses[0].FormatAddress()
		}
		return weather.Location{Latitude: lat, Longitude: lon, Name: name}, nil
	})
	if err != nil {
		return "", err
	}
	return loc.Name, nil
}

func (g *GoogleGeocoder) await(ctx context.Context, call func() (weather.Location, error)) (weather.Location, error) {
	done := make(chan googleResult, 1)
	go func() {
		loc, err := call()
		done <- googleResult{loc: loc, err: err}
	}()

	select {
	case <-ctx.Done():
		return weather.Location{}, ctx.Err()
	case r := <-done:
		return r.loc, r.err
	}
}
