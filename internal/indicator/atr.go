package indicator

import (
	"math"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

// ATR is a streaming average true range using Wilder's smoothing.
type ATR struct {
	key       string
	period    int
	prevClose float64
	seedSum   float64
	value     float64
	count     int
}

// NewATR creates an ATR calculator. Expected parameters: period (int > 0).
func NewATR(spec Spec) (Calculator, error) {
	period, err := spec.Params.period()
	if err != nil {
		return nil, err
	}

	key := spec.Key
	if key == "" {
		key = DefaultKey("atr", period)
	}

	return &ATR{
		key:    key,
		period: period,
	}, nil
}

// Key returns the series key this calculator writes.
func (a *ATR) Key() string {
	return a.key
}

// WarmupPeriod returns the number of bars required before values are valid.
func (a *ATR) WarmupPeriod() int {
	return a.period
}

// Update consumes the next bar. The first bar's true range is high-low since
// there is no prior close.
func (a *ATR) Update(bar types.Bar) (float64, bool) {
	trueRange := bar.High - bar.Low
	if a.count > 0 {
		trueRange = math.Max(trueRange, math.Max(
			math.Abs(bar.High-a.prevClose),
			math.Abs(bar.Low-a.prevClose),
		))
	}

	a.prevClose = bar.Close
	a.count++

	switch {
	case a.count < a.period:
		a.seedSum += trueRange

		return 0, false
	case a.count == a.period:
		a.seedSum += trueRange
		a.value = a.seedSum / float64(a.period)
	default:
		a.value = (a.value*float64(a.period-1) + trueRange) / float64(a.period)
	}

	return a.value, true
}
