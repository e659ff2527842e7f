package geocode

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

// CacheObserver is told whether each cache lookup hit.
type CacheObserver interface {
	CacheLookup(cache string, hit bool)
}

// Cached memoizes successful lookups of another Geocoder.
type Cached struct {
	next     Geocoder
	forward  *expirable.LRU[string, weather.Location]
	reverse  *expirable.LRU[string, string]
	observer CacheObserver
}

func NewCached(next Geocoder, size int, ttl time.Duration, observer CacheObserver) *Cached {
	if size <= 0 {
		size = 1000
	}
	return &Cached{
		next:     next,
		forward:  expirable.NewLRU[string, weather.Location](size, nil, ttl),
		reverse:  expirable.NewLRU[string, string](size, nil, ttl),
		observer: observer,
	}
}

func (c *Cached) Geocode(ctx context.Context, query string) (weather.Location, error) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if key == "" {
		return weather.Location{}, ErrEmptyQuery
	}
	if loc, ok := c.forward.Get(key); ok {
		c.observe("geocode_forward", true)
		return loc, nil
	}
	c.observe("geocode_forward", false)

	loc, err := c.next.Geocode(ctx, query)
	if err != nil {
		return weather.Location{}, err
	}
	c.forward.Add(key, loc)
	return loc, nil
}

func (c *Cached) Reverse(ctx context.Context, lat, lon float64) (string, error) {
	key := strconv.FormatFloat(lat, 'f', -1, 64) + ":" + strconv.FormatFloat(lon, 'f', -1, 64)
	if name, ok := c.reverse.Get(key); ok {
		c.observe("geocode_reverse", true)
		return name, nil
	}
	c.observe("geocode_reverse", false)

	name, err := c.next.Reverse(ctx, lat, lon)
	if err != nil {
		return "", err
	}
	c.reverse.Add(key, name)
	return name, nil
}

func (c *Cached) observe(cache string, hit bool) {
	if c.observer != nil {
		c.observer.CacheLookup(cache, hit)
	}
}
