package providers

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

// CacheObserver is told whether each cache lookup hit.
type CacheObserver interface {
	CacheLookup(cache string, hit bool)
}

// CachedBaseline wraps a BaselineEstimator with a short-lived LRU keyed by
// full-precision coordinates and day. Only successful readings are cached.
// It is safe for concurrent use.
type CachedBaseline struct {
	next     weather.BaselineEstimator
	cache    *expirable.LRU[string, weather.BaselineReading]
	observer CacheObserver
}

func NewCachedBaseline(next weather.BaselineEstimator, size int, ttl time.Duration, observer CacheObserver) *CachedBaseline {
	if size <= 0 {
		size = 256
	}
	return &CachedBaseline{
		next:     next,
		cache:    expirable.NewLRU[string, weather.BaselineReading](size, nil, ttl),
		observer: observer,
	}
}

func (c *CachedBaseline) Baseline(ctx context.Context, loc weather.Location, date time.Time) (weather.BaselineReading, error) {
	key := loc.Key() + "|" + weather.Day(date).Format(weather.DateLayout)

	if reading, ok := c.cache.Get(key); ok {
		c.observe(true)
		return reading, nil
	}
	c.observe(false)

	reading, err := c.next.Baseline(ctx, loc, date)
	if err != nil {
		return weather.BaselineReading{}, err
	}
	c.cache.Add(key, reading)
	return reading, nil
}

// Len reports how many readings are cached.
func (c *CachedBaseline) Len() int {
	return c.cache.Len()
}

func (c *CachedBaseline) observe(hit bool) {
	if c.observer != nil {
		c.observer.CacheLookup("baseline", hit)
	}
}
