package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

type ATRTestSuite struct {
	suite.Suite
}

func TestATRSuite(t *testing.T) {
	suite.Run(t, new(ATRTestSuite))
}

// hlcBars builds bars from high/low/close triples.
func (suite *ATRTestSuite) hlcBars(triples ...[3]float64) []types.Bar {
	bars := make([]types.Bar, 0, len(triples))
	base := time.Date(2024, 6, 14, 9, 15, 0, 0, time.UTC)

	for i, t := range triples {
		bars = append(bars, types.Bar{
			Symbol:    "NIFTY",
			Timeframe: types.Timeframe5m,
			Time:      base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      t[2],
			High:      t[0],
			Low:       t[1],
			Close:     t[2],
			Volume:    1000,
		})
	}

	return bars
}

func (suite *ATRTestSuite) TestTrueRangeSeedAndSmoothing() {
	calc, err := NewATR(Spec{Name: "atr", Params: Params{"period": 2}})
	suite.Require().NoError(err)

	bars := suite.hlcBars(
		[3]float64{12, 10, 11}, // TR = 2 (no prior close)
		[3]float64{13, 11, 12}, // TR = max(2, |13-11|, |11-11|) = 2
		[3]float64{15, 12, 14}, // TR = max(3, |15-12|, |12-12|) = 3
		[3]float64{14, 13, 13}, // TR = max(1, |14-14|, |13-14|) = 1
	)

	_, warm := calc.Update(bars[0])
	suite.False(warm)

	// Seed = (2+2)/2 = 2
	value, warm := calc.Update(bars[1])
	suite.True(warm)
	suite.InDelta(2.0, value, 1e-9)

	// Wilder: (2*1+3)/2 = 2.5
	value, warm = calc.Update(bars[2])
	suite.True(warm)
	suite.InDelta(2.5, value, 1e-9)

	// (2.5*1+1)/2 = 1.75
	value, warm = calc.Update(bars[3])
	suite.True(warm)
	suite.InDelta(1.75, value, 1e-9)
}

func (suite *ATRTestSuite) TestGapUsesPrevClose() {
	calc, err := NewATR(Spec{Name: "atr", Params: Params{"period": 1}})
	suite.Require().NoError(err)

	bars := suite.hlcBars(
		[3]float64{102, 100, 101},
		// Gap up: high-low = 2 but |high-prevClose| = 9
		[3]float64{110, 108, 109},
	)

	_, warm := calc.Update(bars[0])
	suite.True(warm)

	value, warm := calc.Update(bars[1])
	suite.True(warm)
	suite.InDelta(9.0, value, 1e-9)
}

func (suite *ATRTestSuite) TestNeverNegative() {
	calc, err := NewATR(Spec{Name: "atr", Params: Params{"period": 3}})
	suite.Require().NoError(err)

	bars := suite.hlcBars(
		[3]float64{100, 99, 99.5},
		[3]float64{100.5, 99.25, 100},
		[3]float64{101, 100, 100.75},
		[3]float64{101.5, 100.5, 101},
		[3]float64{102, 101, 101.5},
	)

	for _, bar := range bars {
		if value, warm := calc.Update(bar); warm {
			suite.Greater(value, 0.0)
		}
	}
}
