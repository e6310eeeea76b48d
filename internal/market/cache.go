// Package market provides the instrument cache: per symbol/timeframe bar
// series with incrementally maintained indicator values.
//
// A replay ensures its series and indicator specs once before stepping, then
// appends one bar per step. Reads address values by lag offset from the
// latest bar (0 = current, -1 = previous). The cache may be shared read-only
// across sessions; appending is owned by the session that introduced the
// series.
package market

import (
	"math"
	"sync"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/indicator"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// Field names one OHLCV component of a bar.
type Field string

const (
	FieldOpen   Field = "open"
	FieldHigh   Field = "high"
	FieldLow    Field = "low"
	FieldClose  Field = "close"
	FieldVolume Field = "volume"
)

// IsValid reports whether the field is one of the OHLCV components.
func (f Field) IsValid() bool {
	switch f {
	case FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume:
		return true
	}

	return false
}

// Key identifies one bar series.
type Key struct {
	Symbol    string
	Timeframe types.Timeframe
}

// series holds the bars and indicator values for one key. Indicator slices
// are parallel to bars; positions before warmup hold NaN.
type series struct {
	bars       []types.Bar
	indicators map[string][]float64
	calcs      []indicator.Calculator
}

// Cache is the instrument/indicator cache.
type Cache struct {
	registry indicator.Registry
	series   map[Key]*series
	ticks    map[string]types.Tick
	mu       sync.RWMutex
}

// NewCache creates an empty cache backed by the given indicator registry.
func NewCache(registry indicator.Registry) *Cache {
	return &Cache{
		registry: registry,
		series:   make(map[Key]*series),
		ticks:    make(map[string]types.Tick),
		mu:       sync.RWMutex{},
	}
}

// Ensure registers a series and constructs calculators for the given
// indicator specs. Calling Ensure again for the same series is additive:
// specs whose keys are already present are skipped, new calculators are
// caught up over the bars appended so far.
func (c *Cache) Ensure(symbol string, timeframe types.Timeframe, specs []indicator.Spec) error {
	if !timeframe.IsValid() {
		return errors.Newf(errors.ErrCodeInvalidTimeframe, "unsupported timeframe %q", timeframe)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key{Symbol: symbol, Timeframe: timeframe}

	s, ok := c.series[key]
	if !ok {
		s = &series{
			bars:       make([]types.Bar, 0, 1024),
			indicators: make(map[string][]float64),
			calcs:      nil,
		}
		c.series[key] = s
	}

	for _, spec := range specs {
		if _, exists := s.indicators[spec.Key]; exists {
			continue
		}

		calc, err := c.registry.New(spec)
		if err != nil {
			return errors.Wrapf(errors.ErrCodeIndicatorNotFound, err, "cannot build indicator %q for %s/%s", spec.Key, symbol, timeframe)
		}

		// Catch up over bars appended before this spec was ensured.
		values := make([]float64, 0, len(s.bars))
		for _, bar := range s.bars {
			values = append(values, calcValue(calc, bar))
		}

		s.calcs = append(s.calcs, calc)
		s.indicators[calc.Key()] = values
	}

	return nil
}

// Append adds the next bar to its series and advances every calculator by
// one step. Timestamps must be strictly increasing per series.
func (c *Cache) Append(bar types.Bar) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := Key{Symbol: bar.Symbol, Timeframe: bar.Timeframe}

	s, ok := c.series[key]
	if !ok {
		return errors.Newf(errors.ErrCodeSeriesNotFound, "series %s/%s was never ensured", bar.Symbol, bar.Timeframe)
	}

	if n := len(s.bars); n > 0 && !bar.Time.After(s.bars[n-1].Time) {
		return errors.Newf(errors.ErrCodeOutOfOrderData,
			"bar %s/%s at %s is not after previous bar at %s",
			bar.Symbol, bar.Timeframe, bar.Time.Format("2006-01-02 15:04:05"), s.bars[n-1].Time.Format("2006-01-02 15:04:05"))
	}

	s.bars = append(s.bars, bar)

	for _, calc := range s.calcs {
		s.indicators[calc.Key()] = append(s.indicators[calc.Key()], calcValue(calc, bar))
	}

	return nil
}

// SetTick stores the most recent tick for a symbol, for live-field reads.
func (c *Cache) SetTick(tick types.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ticks[tick.Symbol] = tick
}

// LastTick returns the most recent tick for a symbol, if any.
func (c *Cache) LastTick(symbol string) (types.Tick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	tick, ok := c.ticks[symbol]

	return tick, ok
}

// Len returns the number of bars appended to a series, 0 for unknown series.
func (c *Cache) Len(symbol string, timeframe types.Timeframe) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.series[Key{Symbol: symbol, Timeframe: timeframe}]
	if !ok {
		return 0
	}

	return len(s.bars)
}

// Has reports whether a series was ensured.
func (c *Cache) Has(symbol string, timeframe types.Timeframe) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.series[Key{Symbol: symbol, Timeframe: timeframe}]

	return ok
}

// LastBar returns the latest bar of a series.
func (c *Cache) LastBar(symbol string, timeframe types.Timeframe) (types.Bar, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, err := c.lookup(symbol, timeframe)
	if err != nil {
		return types.Bar{}, err
	}

	if len(s.bars) == 0 {
		return types.Bar{}, errors.NewDataUnavailableErrorf(symbol, "bar", 0, 0, "series %s/%s has no bars yet", symbol, timeframe)
	}

	return s.bars[len(s.bars)-1], nil
}

// Field returns one OHLCV component at a lag offset from the latest bar
// (offset 0 = latest, -1 = previous). A missing series is a fatal cache
// miss; an offset reaching before the first bar is a DataUnavailableError.
func (c *Cache) Field(symbol string, timeframe types.Timeframe, field Field, offset int) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, err := c.lookup(symbol, timeframe)
	if err != nil {
		return 0, err
	}

	if !field.IsValid() {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "unknown bar field %q", field)
	}

	bar, err := barAt(s, symbol, string(field), offset)
	if err != nil {
		return 0, err
	}

	switch field {
	case FieldOpen:
		return bar.Open, nil
	case FieldHigh:
		return bar.High, nil
	case FieldLow:
		return bar.Low, nil
	case FieldClose:
		return bar.Close, nil
	case FieldVolume:
		return bar.Volume, nil
	}

	return 0, errors.Newf(errors.ErrCodeInvalidParameter, "unknown bar field %q", field)
}

// Indicator returns an indicator value at a lag offset from the latest bar.
// Values inside the warmup window resolve as DataUnavailableError.
func (c *Cache) Indicator(symbol string, timeframe types.Timeframe, key string, offset int) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, err := c.lookup(symbol, timeframe)
	if err != nil {
		return 0, err
	}

	values, ok := s.indicators[key]
	if !ok {
		return 0, errors.NewDataUnavailableErrorf(symbol, key, offset, len(s.bars),
			"indicator %q was never ensured on %s/%s", key, symbol, timeframe)
	}

	idx := len(values) - 1 + offset
	if idx < 0 || idx >= len(values) {
		return 0, errors.NewDataUnavailableErrorf(symbol, key, offset, len(values),
			"offset %d reaches outside indicator history (len %d)", offset, len(values))
	}

	value := values[idx]
	if math.IsNaN(value) {
		return 0, errors.NewDataUnavailableErrorf(symbol, key, offset, len(values),
			"indicator %q not warm at offset %d", key, offset)
	}

	return value, nil
}

// lookup resolves a series under a held lock. A missing series is reported
// as a fatal cache miss, not as missing data.
func (c *Cache) lookup(symbol string, timeframe types.Timeframe) (*series, error) {
	s, ok := c.series[Key{Symbol: symbol, Timeframe: timeframe}]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeCacheMiss, "series %s/%s was never loaded", symbol, timeframe)
	}

	return s, nil
}

// barAt addresses a bar by lag offset from latest.
func barAt(s *series, symbol, key string, offset int) (types.Bar, error) {
	idx := len(s.bars) - 1 + offset
	if idx < 0 || idx >= len(s.bars) {
		return types.Bar{}, errors.NewDataUnavailableErrorf(symbol, key, offset, len(s.bars),
			"offset %d reaches outside bar history (len %d)", offset, len(s.bars))
	}

	return s.bars[idx], nil
}

// calcValue advances one calculator and maps warming-up to NaN.
func calcValue(calc indicator.Calculator, bar types.Bar) float64 {
	value, warm := calc.Update(bar)
	if !warm {
		return math.NaN()
	}

	return value
}
