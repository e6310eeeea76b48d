// Package barsource provides read access to stored bar series. A Source hands
// the session driver time-ordered bars for one symbol and timeframe; replay
// pacing (backtest vs live simulation) is the driver's business, so the same
// source backs both modes.
package barsource

import (
	"context"
	"time"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// Source is the read contract sessions replay from.
type Source interface {
	// Bars returns every bar for the symbol and timeframe within [from, to],
	// both bounds inclusive, ordered by time ascending. A range with no data
	// returns an empty slice, not an error.
	Bars(ctx context.Context, symbol string, timeframe types.Timeframe, from time.Time, to time.Time) ([]types.Bar, error)

	// Count returns the number of bars Bars would return for the same
	// arguments. Sessions use it for progress totals.
	Count(ctx context.Context, symbol string, timeframe types.Timeframe, from time.Time, to time.Time) (int, error)

	// Close releases the underlying store.
	Close() error
}

// checkMonotonic verifies bars are strictly increasing in time. Sources run it
// on every read so an ingest defect or an unordered store surfaces as a load
// error instead of a silent mis-replay.
func checkMonotonic(bars []types.Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return errors.Newf(errors.ErrCodeOutOfOrderData,
				"bar at index %d (%s) is not after its predecessor (%s)",
				i, bars[i].Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}
	}

	return nil
}
