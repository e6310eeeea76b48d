package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type RSITestSuite struct {
	suite.Suite
}

func TestRSISuite(t *testing.T) {
	suite.Run(t, new(RSITestSuite))
}

func (suite *RSITestSuite) TestWilderSmoothing() {
	calc, err := NewRSI(Spec{Name: "rsi", Params: Params{"period": 2}})
	suite.Require().NoError(err)

	bars := closeBars(10, 11, 10, 11, 12)

	_, warm := calc.Update(bars[0])
	suite.False(warm)

	_, warm = calc.Update(bars[1])
	suite.False(warm)

	// Seed after 2 deltas: avgGain=0.5, avgLoss=0.5 -> RS=1 -> RSI=50
	value, warm := calc.Update(bars[2])
	suite.True(warm)
	suite.InDelta(50.0, value, 1e-9)

	// avgGain=(0.5+1)/2=0.75, avgLoss=0.25 -> RS=3 -> RSI=75
	value, warm = calc.Update(bars[3])
	suite.True(warm)
	suite.InDelta(75.0, value, 1e-9)

	// avgGain=0.875, avgLoss=0.125 -> RS=7 -> RSI=87.5
	value, warm = calc.Update(bars[4])
	suite.True(warm)
	suite.InDelta(87.5, value, 1e-9)
}

func (suite *RSITestSuite) TestAllGainsIsHundred() {
	calc, err := NewRSI(Spec{Name: "rsi", Params: Params{"period": 3}})
	suite.Require().NoError(err)

	var value float64
	var warm bool
	for _, bar := range closeBars(1, 2, 3, 4, 5, 6) {
		value, warm = calc.Update(bar)
	}

	suite.True(warm)
	suite.InDelta(100.0, value, 1e-9)
}

func (suite *RSITestSuite) TestWarmupLength() {
	calc, err := NewRSI(Spec{Name: "rsi", Params: Params{"period": 14}})
	suite.Require().NoError(err)
	suite.Equal(15, calc.WarmupPeriod())

	bars := closeBars(make([]float64, 20)...)
	for i := range bars {
		bars[i].Close = float64(100 + i%3)
	}

	for i, bar := range bars {
		_, warm := calc.Update(bar)
		suite.Equal(i >= 14, warm, "bar %d", i)
	}
}

func (suite *RSITestSuite) TestBoundedBetweenZeroAndHundred() {
	calc, err := NewRSI(Spec{Name: "rsi", Params: Params{"period": 5}})
	suite.Require().NoError(err)

	closes := []float64{100, 92, 105, 98, 110, 84, 120, 77, 130, 70, 140, 65}
	for _, bar := range closeBars(closes...) {
		if value, warm := calc.Update(bar); warm {
			suite.GreaterOrEqual(value, 0.0)
			suite.LessOrEqual(value, 100.0)
		}
	}
}
