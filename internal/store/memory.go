package store

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/i474232898/precip-ensemble/internal/weather"
)

var (
	// ErrNotFound is returned when no forecast record matches.
	ErrNotFound = errors.New("forecast record not found")
)

// DefaultHistoryLimit applies when callers pass a non-positive limit.
const DefaultHistoryLimit = 10

// locationHistory holds a time-ordered list of forecast records for a location.
type locationHistory struct {
	Records []weather.ForecastRecord
}

// MemoryStore is a concurrency-safe in-memory ResultStore.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*locationHistory
	byID map[string]weather.ForecastRecord

	// retention configuration
	maxHistory int           // max number of records per location
	maxAge     time.Duration // optional max age for records

	clock clockwork.Clock
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration, clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{
		data:       make(map[string]*locationHistory),
		byID:       make(map[string]weather.ForecastRecord),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		clock:      clock,
	}
}

// Save appends a new record for the result's location and enforces retention.
func (s *MemoryStore) Save(_ context.Context, result weather.EnsembleResult) (weather.ForecastRecord, error) {
	rec := weather.ForecastRecord{
		ID:        uuid.NewString(),
		CreatedAt: s.clock.Now().UTC(),
		Result:    result,
	}
	key := result.Location.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &locationHistory{}
		s.data[key] = history
	}

	history.Records = append(history.Records, rec)
	s.byID[rec.ID] = rec

	// Enforce retention by count.
	if s.maxHistory > 0 && len(history.Records) > s.maxHistory {
		over := len(history.Records) - s.maxHistory
		s.forget(history.Records[:over])
		history.Records = history.Records[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := rec.CreatedAt.Add(-s.maxAge)
		i := 0
		for ; i < len(history.Records); i++ {
			if !history.Records[i].CreatedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 {
			s.forget(history.Records[:i])
			history.Records = history.Records[i:]
		}
	}

	return rec, nil
}

func (s *MemoryStore) forget(recs []weather.ForecastRecord) {
	for _, r := range recs {
		delete(s.byID, r.ID)
	}
}

// Get returns the record with the given ID.
func (s *MemoryStore) Get(_ context.Context, id string) (weather.ForecastRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return weather.ForecastRecord{}, ErrNotFound
	}
	return rec, nil
}

// History returns up to limit records for a location, newest first.
func (s *MemoryStore) History(_ context.Context, loc weather.Location, limit int) ([]weather.ForecastRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[loc.Key()]
	if !ok {
		return []weather.ForecastRecord{}, nil
	}

	n := min(limit, len(history.Records))
	out := make([]weather.ForecastRecord, 0, n)
	for i := len(history.Records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, history.Records[i])
	}
	return out, nil
}

// Statistics aggregates every retained record.
func (s *MemoryStore) Statistics(_ context.Context) (weather.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		stats   weather.Statistics
		sumProb float64
		sumMM   float64
	)
	for _, history := range s.data {
		if len(history.Records) == 0 {
			continue
		}
		stats.UniqueLocations++
		for _, r := range history.Records {
			stats.TotalForecasts++
			sumProb += r.Result.Probability
			sumMM += r.Result.PrecipitationMM
		}
	}
	if stats.TotalForecasts > 0 {
		stats.AvgProbability = roundTo(sumProb/float64(stats.TotalForecasts), 3)
		stats.AvgPrecipitationMM = roundTo(sumMM/float64(stats.TotalForecasts), 2)
	}
	return stats, nil
}

// Close is a no-op; it lets MemoryStore stand in wherever a closable store is expected.
func (s *MemoryStore) Close() error { return nil }

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
