package weather

import (
	"context"
	"errors"
	"sync"
	"time"
)

// fakeBaseline serves fixed amounts keyed by calendar day.
type fakeBaseline struct {
	amounts map[string]float64
	errs    map[string]error
	dataset string

	mu    sync.Mutex
	calls []string
}

func newFakeBaseline(amounts map[string]float64) *fakeBaseline {
	return &fakeBaseline{amounts: amounts, errs: map[string]error{}, dataset: "test dataset"}
}

func (f *fakeBaseline) Baseline(_ context.Context, loc Location, date time.Time) (BaselineReading, error) {
	key := date.Format(DateLayout)

	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()

	if err, ok := f.errs[key]; ok {
		return BaselineReading{}, err
	}
	amount, ok := f.amounts[key]
	if !ok {
		return BaselineReading{}, &DataUnavailableError{Location: loc, Date: date}
	}
	return BaselineReading{
		AmountMM:   amount,
		Provenance: ProvenanceObserved,
		SourceDate: date,
		Dataset:    f.dataset,
	}, nil
}

func (f *fakeBaseline) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeLearned struct {
	result LearnedResult

	mu      sync.Mutex
	calls   int
	lastAvg float64
}

func (f *fakeLearned) Predict(_ context.Context, _ Location, _ time.Time, historicalAvg float64) LearnedResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastAvg = historicalAvg
	return f.result
}

type fakeStore struct {
	saved []EnsembleResult
	err   error
}

func (f *fakeStore) Save(_ context.Context, result EnsembleResult) (ForecastRecord, error) {
	if f.err != nil {
		return ForecastRecord{}, f.err
	}
	f.saved = append(f.saved, result)
	return ForecastRecord{ID: "rec-1", Result: result}, nil
}

func (f *fakeStore) History(_ context.Context, loc Location, limit int) ([]ForecastRecord, error) {
	var out []ForecastRecord
	for _, r := range f.saved {
		if r.Location.Equal(loc) {
			out = append(out, ForecastRecord{Result: r})
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Statistics(context.Context) (Statistics, error) {
	return Statistics{TotalForecasts: len(f.saved)}, nil
}

type fakePublisher struct {
	published []EnsembleResult
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, result EnsembleResult) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, result)
	return nil
}

var errBoom = errors.New("boom")

// yearsBack builds a day-keyed amount map for the same calendar day
// 1..len(amounts) years before date, in offset order.
func yearsBack(date time.Time, amounts ...float64) map[string]float64 {
	out := make(map[string]float64, len(amounts))
	for i, a := range amounts {
		past, ok := ShiftYears(date, -(i + 1))
		if ok {
			out[past.Format(DateLayout)] = a
		}
	}
	return out
}
