// Package indicator provides streaming technical-indicator calculators.
//
// Calculators consume bars one at a time and produce one value per bar in
// O(1) amortized time, so a series can be kept warm while a replay appends
// bars without ever recomputing history.
package indicator

import (
	"fmt"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// Spec describes one named, parameterized indicator to keep warm on a series,
// as declared by an indicator node.
type Spec struct {
	// Name selects the calculator family, e.g. "ema".
	Name string `json:"name"`
	// Key is the series key conditions reference, e.g. "ema_21".
	Key string `json:"key"`
	// Params are family-specific parameters, e.g. {"period": 21}.
	Params Params `json:"params,omitempty"`
}

// Calculator consumes bars in order and produces one value per bar.
// Implementations keep whatever running state they need; they are not safe
// for concurrent use.
type Calculator interface {
	// Key returns the series key this calculator writes.
	Key() string
	// Update consumes the next bar and returns the indicator value for it.
	// The boolean is false while the calculator is still warming up, in
	// which case the value must be ignored.
	Update(bar types.Bar) (float64, bool)
	// WarmupPeriod returns the number of bars required before Update starts
	// returning valid values.
	WarmupPeriod() int
}

// Params are the raw indicator parameters as parsed from strategy JSON.
type Params map[string]any

// Int returns the named integer parameter. JSON numbers decode as float64,
// so both int and float64 encodings are accepted.
func (p Params) Int(name string) (int, error) {
	raw, ok := p[name]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeMissingParameter, "missing indicator parameter %q", name)
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		if v != float64(int(v)) {
			return 0, errors.Newf(errors.ErrCodeInvalidParameter, "indicator parameter %q must be an integer, got %v", name, v)
		}

		return int(v), nil
	default:
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "indicator parameter %q has invalid type %T", name, raw)
	}
}

// IntOr returns the named integer parameter, or fallback when absent.
func (p Params) IntOr(name string, fallback int) (int, error) {
	if _, ok := p[name]; !ok {
		return fallback, nil
	}

	return p.Int(name)
}

// period extracts and validates the common "period" parameter.
func (p Params) period() (int, error) {
	period, err := p.Int("period")
	if err != nil {
		return 0, err
	}

	if period <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	return period, nil
}

// DefaultKey builds the conventional series key for a family and period,
// e.g. DefaultKey("ema", 21) == "ema_21".
func DefaultKey(name string, period int) string {
	return fmt.Sprintf("%s_%d", name, period)
}
