// Package geocode turns free-form place names into coordinates and back.
package geocode

import (
	"context"
	"errors"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

var (
	// ErrNotFound is returned when a query or coordinate resolves to nothing.
	ErrNotFound = errors.New("location not found")
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("empty geocode query")
)

// Geocoder resolves place names to locations and coordinates to names.
type Geocoder interface {
	// Geocode returns the best match for query, named after the match.
	Geocode(ctx context.Context, query string) (weather.Location, error)
	// Reverse returns a display name for the coordinates.
	Reverse(ctx context.Context, lat, lon float64) (string, error)
}
