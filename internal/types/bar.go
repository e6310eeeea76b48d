package types

import "time"

// Timeframe identifies the aggregation interval of a bar series.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Duration returns the wall-clock length of one bar of this timeframe.
// Returns 0 for unknown timeframes.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe1m:
		return time.Minute
	case Timeframe3m:
		return 3 * time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe30m:
		return 30 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	}

	return 0
}

// IsValid reports whether the timeframe is one of the supported intervals.
func (t Timeframe) IsValid() bool {
	return t.Duration() > 0
}

// Bar is a single OHLCV candle for one symbol and timeframe.
type Bar struct {
	Symbol    string    `json:"symbol" csv:"symbol"`
	Timeframe Timeframe `json:"timeframe" csv:"timeframe"`
	Time      time.Time `json:"time" csv:"time"`
	Open      float64   `json:"open" csv:"open"`
	High      float64   `json:"high" csv:"high"`
	Low       float64   `json:"low" csv:"low"`
	Close     float64   `json:"close" csv:"close"`
	Volume    float64   `json:"volume" csv:"volume"`
}

// Tick is a single trade/quote update for one symbol. LTP is the last traded
// price; OI is open interest (zero for non-derivative symbols).
type Tick struct {
	Symbol string    `json:"symbol"`
	Time   time.Time `json:"time"`
	LTP    float64   `json:"ltp"`
	Volume float64   `json:"volume"`
	OI     float64   `json:"oi"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	// BarDerived marks a tick synthesized from a bar close rather than
	// received from a feed. Only LTP carries data on such ticks.
	BarDerived bool `json:"bar_derived,omitempty"`
}
