// Package eval resolves condition operands against the market cache and
// evaluates condition groups into boolean results with a full per-leaf trace.
package eval

import (
	"time"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/graph"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/market"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// Resolver turns a single operand into a numeric value for the current step.
// Indicator operands resolve against the instrument their declaration named;
// unqualified market fields resolve against the execution instrument.
type Resolver struct {
	cache     *market.Cache
	declared  map[string]graph.DeclaredIndicator
	symbol    string
	timeframe types.Timeframe
}

// NewResolver binds a resolver to one strategy graph and its cache.
func NewResolver(cache *market.Cache, g *graph.Graph) *Resolver {
	return &Resolver{
		cache:     cache,
		declared:  g.DeclaredIndicators(),
		symbol:    g.Symbol,
		timeframe: g.Timeframe,
	}
}

// Resolve evaluates one operand. now is the step wall-clock, which is what
// currentTime operands read; bars never supply it. A DataUnavailableError
// return means the leaf fails closed; ErrCodeCacheMiss means the instrument
// was never loaded and the session must abort.
func (r *Resolver) Resolve(op graph.Operand, now time.Time) (float64, error) {
	switch op.Kind {
	case graph.OperandConstant:
		return op.Value, nil

	case graph.OperandCurrentTime:
		return timeValue(now, op.Unit)

	case graph.OperandIndicator:
		decl, ok := r.declared[op.Name]
		if !ok {
			// Load-time validation rejects undeclared references; reaching
			// this means graph and cache went out of sync.
			return 0, errors.Newf(errors.ErrCodeConditionResolution, "indicator %q has no declaration", op.Name)
		}

		return r.cache.Indicator(decl.Symbol, decl.Timeframe, op.Name, op.Offset)

	case graph.OperandMarketField:
		field := market.Field(op.Field)
		if !field.IsValid() {
			return 0, errors.Newf(errors.ErrCodeConditionResolution, "unknown market field %q", op.Field)
		}

		symbol, timeframe := r.instrument(op)

		return r.cache.Field(symbol, timeframe, field, op.Offset)

	case graph.OperandLiveField:
		return r.resolveLive(op)
	}

	return 0, errors.Newf(errors.ErrCodeUnknownOperandKind, "unknown operand kind %q", op.Kind)
}

// resolveLive reads the current tick. Without a feed tick only ltp has a sane
// proxy: a bar-derived tick's LTP, or the latest close of the execution
// series. The other live fields have no bar equivalent and degrade as
// unavailable instead of reading fabricated zeros.
func (r *Resolver) resolveLive(op graph.Operand) (float64, error) {
	tick, ok := r.cache.LastTick(r.symbol)

	if ok && !tick.BarDerived {
		switch op.Field {
		case "ltp":
			return tick.LTP, nil
		case "bid":
			return tick.Bid, nil
		case "ask":
			return tick.Ask, nil
		case "volume":
			return tick.Volume, nil
		case "oi":
			return tick.OI, nil
		}

		return 0, errors.Newf(errors.ErrCodeConditionResolution, "unknown live field %q", op.Field)
	}

	switch op.Field {
	case "ltp":
		if ok {
			return tick.LTP, nil
		}

		bar, err := r.cache.LastBar(r.symbol, r.timeframe)
		if err != nil {
			return 0, err
		}

		return bar.Close, nil

	case "bid", "ask", "volume", "oi":
		return 0, errors.NewDataUnavailableErrorf(r.symbol, op.Field, 0, 0, "live field %q requires a tick", op.Field)
	}

	return 0, errors.Newf(errors.ErrCodeConditionResolution, "unknown live field %q", op.Field)
}

// instrument resolves a market field operand's instrument, defaulting to the
// execution instrument.
func (r *Resolver) instrument(op graph.Operand) (string, types.Timeframe) {
	symbol := op.Symbol
	if symbol == "" {
		symbol = r.symbol
	}

	timeframe := op.Timeframe
	if timeframe == "" {
		timeframe = r.timeframe
	}

	return symbol, timeframe
}

// timeValue renders the step wall-clock in the requested unit.
func timeValue(now time.Time, unit graph.TimeUnit) (float64, error) {
	switch unit {
	case graph.TimeUnitHour:
		return float64(now.Hour()), nil
	case graph.TimeUnitMinute:
		return float64(now.Minute()), nil
	case graph.TimeUnitHHMM:
		return float64(now.Hour()*100 + now.Minute()), nil
	case graph.TimeUnitUnix:
		return float64(now.Unix()), nil
	}

	return 0, errors.Newf(errors.ErrCodeConditionResolution, "unknown time unit %q", unit)
}
