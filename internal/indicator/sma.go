package indicator

import "github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"

// SMA is a streaming simple moving average over closing prices.
type SMA struct {
	key    string
	period int
	window []float64
	sum    float64
	head   int
	count  int
}

// NewSMA creates an SMA calculator. Expected parameters: period (int > 0).
func NewSMA(spec Spec) (Calculator, error) {
	period, err := spec.Params.period()
	if err != nil {
		return nil, err
	}

	key := spec.Key
	if key == "" {
		key = DefaultKey("sma", period)
	}

	return &SMA{
		key:    key,
		period: period,
		window: make([]float64, period),
	}, nil
}

// Key returns the series key this calculator writes.
func (s *SMA) Key() string {
	return s.key
}

// WarmupPeriod returns the number of bars required before values are valid.
func (s *SMA) WarmupPeriod() int {
	return s.period
}

// Update consumes the next bar. The ring buffer keeps the last period closes
// and a running sum, so each update is O(1).
func (s *SMA) Update(bar types.Bar) (float64, bool) {
	s.sum += bar.Close - s.window[s.head]
	s.window[s.head] = bar.Close
	s.head = (s.head + 1) % s.period

	if s.count < s.period {
		s.count++
	}

	if s.count < s.period {
		return 0, false
	}

	return s.sum / float64(s.period), true
}
