package indicator

import "github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"

// EMA is a streaming exponential moving average over closing prices, seeded
// with the simple average of the first period closes.
type EMA struct {
	key      string
	period   int
	mult     float64
	seedSum  float64
	value    float64
	count    int
}

// NewEMA creates an EMA calculator. Expected parameters: period (int > 0).
func NewEMA(spec Spec) (Calculator, error) {
	period, err := spec.Params.period()
	if err != nil {
		return nil, err
	}

	key := spec.Key
	if key == "" {
		key = DefaultKey("ema", period)
	}

	return &EMA{
		key:    key,
		period: period,
		mult:   2.0 / float64(period+1),
	}, nil
}

// Key returns the series key this calculator writes.
func (e *EMA) Key() string {
	return e.key
}

// WarmupPeriod returns the number of bars required before values are valid.
func (e *EMA) WarmupPeriod() int {
	return e.period
}

// Update consumes the next bar.
func (e *EMA) Update(bar types.Bar) (float64, bool) {
	e.count++

	switch {
	case e.count < e.period:
		e.seedSum += bar.Close

		return 0, false
	case e.count == e.period:
		e.seedSum += bar.Close
		e.value = e.seedSum / float64(e.period)
	default:
		e.value = (bar.Close-e.value)*e.mult + e.value
	}

	return e.value, true
}
