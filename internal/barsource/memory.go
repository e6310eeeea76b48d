package barsource

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

type seriesKey struct {
	symbol    string
	timeframe types.Timeframe
}

// MemorySource keeps bar series in process. It backs tests and synthetic
// generator output while serving the same contract as the database sources.
type MemorySource struct {
	mu     sync.RWMutex
	series map[seriesKey][]types.Bar
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		mu:     sync.RWMutex{},
		series: make(map[seriesKey][]types.Bar),
	}
}

// Add stores bars under their own symbol and timeframe. Each series is kept
// sorted by time, so insertion order does not matter.
func (s *MemorySource) Add(bars ...types.Bar) {
	s.mu.Lock()
	defer s.mu.Unlock()

	touched := make(map[seriesKey]struct{})

	for _, bar := range bars {
		key := seriesKey{symbol: bar.Symbol, timeframe: bar.Timeframe}
		s.series[key] = append(s.series[key], bar)
		touched[key] = struct{}{}
	}

	for key := range touched {
		series := s.series[key]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Time.Before(series[j].Time)
		})
	}
}

// Bars implements Source.
func (s *MemorySource) Bars(_ context.Context, symbol string, timeframe types.Timeframe, from time.Time, to time.Time) ([]types.Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	window := s.window(symbol, timeframe, from, to)

	bars := make([]types.Bar, len(window))
	copy(bars, window)

	if err := checkMonotonic(bars); err != nil {
		return nil, err
	}

	return bars, nil
}

// Count implements Source.
func (s *MemorySource) Count(_ context.Context, symbol string, timeframe types.Timeframe, from time.Time, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.window(symbol, timeframe, from, to)), nil
}

// Close implements Source.
func (s *MemorySource) Close() error {
	return nil
}

// window returns the subslice of the series inside [from, to]. Callers hold
// the lock.
func (s *MemorySource) window(symbol string, timeframe types.Timeframe, from time.Time, to time.Time) []types.Bar {
	series := s.series[seriesKey{symbol: symbol, timeframe: timeframe}]

	lo := sort.Search(len(series), func(i int) bool {
		return !series[i].Time.Before(from)
	})
	hi := sort.Search(len(series), func(i int) bool {
		return series[i].Time.After(to)
	})

	if lo >= hi {
		return nil
	}

	return series[lo:hi]
}
