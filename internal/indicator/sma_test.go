package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type SMATestSuite struct {
	suite.Suite
}

func TestSMASuite(t *testing.T) {
	suite.Run(t, new(SMATestSuite))
}

func (suite *SMATestSuite) TestWarmupAndValues() {
	calc, err := NewSMA(Spec{Name: "sma", Params: Params{"period": 3}})
	suite.Require().NoError(err)

	bars := closeBars(1, 2, 3, 4, 5)

	_, warm := calc.Update(bars[0])
	suite.False(warm)

	_, warm = calc.Update(bars[1])
	suite.False(warm)

	value, warm := calc.Update(bars[2])
	suite.True(warm)
	suite.InDelta(2.0, value, 1e-9)

	value, warm = calc.Update(bars[3])
	suite.True(warm)
	suite.InDelta(3.0, value, 1e-9)

	value, warm = calc.Update(bars[4])
	suite.True(warm)
	suite.InDelta(4.0, value, 1e-9)
}

func (suite *SMATestSuite) TestPeriodOne() {
	calc, err := NewSMA(Spec{Name: "sma", Params: Params{"period": 1}})
	suite.Require().NoError(err)

	for _, bar := range closeBars(10, 20, 30) {
		value, warm := calc.Update(bar)
		suite.True(warm)
		suite.InDelta(bar.Close, value, 1e-9)
	}
}

func (suite *SMATestSuite) TestMatchesNaiveRecompute() {
	calc, err := NewSMA(Spec{Name: "sma", Params: Params{"period": 4}})
	suite.Require().NoError(err)

	closes := []float64{10.5, 11.25, 9.75, 10.0, 12.5, 13.0, 11.75, 12.25, 14.0, 13.5}
	bars := closeBars(closes...)

	for i, bar := range bars {
		value, warm := calc.Update(bar)

		if i < 3 {
			suite.False(warm)

			continue
		}

		var sum float64
		for _, c := range closes[i-3 : i+1] {
			sum += c
		}

		suite.True(warm)
		suite.InDelta(sum/4, value, 1e-9, "bar %d", i)
	}
}
