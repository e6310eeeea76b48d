package indicator

import "github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"

// RSI is a streaming relative strength index using Wilder's smoothing.
type RSI struct {
	key       string
	period    int
	prevClose float64
	avgGain   float64
	avgLoss   float64
	count     int
}

// NewRSI creates an RSI calculator. Expected parameters: period (int > 0).
func NewRSI(spec Spec) (Calculator, error) {
	period, err := spec.Params.period()
	if err != nil {
		return nil, err
	}

	key := spec.Key
	if key == "" {
		key = DefaultKey("rsi", period)
	}

	return &RSI{
		key:    key,
		period: period,
	}, nil
}

// Key returns the series key this calculator writes.
func (r *RSI) Key() string {
	return r.key
}

// WarmupPeriod returns the number of bars required before values are valid.
// RSI needs period deltas, i.e. period+1 bars.
func (r *RSI) WarmupPeriod() int {
	return r.period + 1
}

// Update consumes the next bar. The first period deltas seed the averages
// with a simple mean; afterwards Wilder's smoothing keeps the update O(1).
func (r *RSI) Update(bar types.Bar) (float64, bool) {
	r.count++

	if r.count == 1 {
		r.prevClose = bar.Close

		return 0, false
	}

	delta := bar.Close - r.prevClose
	r.prevClose = bar.Close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	switch {
	case r.count <= r.period:
		r.avgGain += gain
		r.avgLoss += loss

		return 0, false
	case r.count == r.period+1:
		r.avgGain = (r.avgGain + gain) / float64(r.period)
		r.avgLoss = (r.avgLoss + loss) / float64(r.period)
	default:
		r.avgGain = (r.avgGain*float64(r.period-1) + gain) / float64(r.period)
		r.avgLoss = (r.avgLoss*float64(r.period-1) + loss) / float64(r.period)
	}

	if r.avgLoss == 0 {
		return 100, true
	}

	rs := r.avgGain / r.avgLoss

	return 100 - 100/(1+rs), true
}
