package weather

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// priorYearSlots fetches the baseline for the same calendar day 1..years
// years before date. Lookups run concurrently; the upstream client paces
// them. Slot i holds the amount for offset i+1, or nil when that day failed
// or does not exist.
func priorYearSlots(ctx context.Context, baseline BaselineEstimator, loc Location, date time.Time, years int, logger zerolog.Logger) []*float64 {
	slots := make([]*float64, years)

	g, gctx := errgroup.WithContext(ctx)
	for offset := 1; offset <= years; offset++ {
		past, ok := ShiftYears(date, -offset)
		if !ok {
			logger.Debug().Int("year_offset", offset).Msg("calendar day does not exist in prior year; skipping")
			continue
		}

		g.Go(func() error {
			reading, err := baseline.Baseline(gctx, loc, past)
			if err != nil {
				// Skip, do not retry; the remaining years still count.
				logger.Debug().Err(err).Str("date", past.Format(DateLayout)).Msg("historical lookup failed; skipping year")
				return nil
			}
			amount := reading.AmountMM
			slots[offset-1] = &amount
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

// present drops the empty slots, keeping offset order (one year back first).
func present(slots []*float64) []float64 {
	amounts := make([]float64, 0, len(slots))
	for _, v := range slots {
		if v != nil {
			amounts = append(amounts, *v)
		}
	}
	return amounts
}

// meanOrZero averages the finite amounts; with none it returns 0.
func meanOrZero(amounts []float64) float64 {
	finite := make([]float64, 0, len(amounts))
	for _, v := range amounts {
		if isFinite(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0
	}
	return stat.Mean(finite, nil)
}

// HistoricalAverage is the mean baseline amount for the same calendar day
// over the previous years. It is 0 when no year resolves.
func HistoricalAverage(ctx context.Context, baseline BaselineEstimator, loc Location, date time.Time, years int, logger zerolog.Logger) float64 {
	return meanOrZero(present(priorYearSlots(ctx, baseline, loc, date, years, logger)))
}
