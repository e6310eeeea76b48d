package indicator

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type EMATestSuite struct {
	suite.Suite
}

func TestEMASuite(t *testing.T) {
	suite.Run(t, new(EMATestSuite))
}

func (suite *EMATestSuite) TestSeededWithSimpleAverage() {
	calc, err := NewEMA(Spec{Name: "ema", Params: Params{"period": 3}})
	suite.Require().NoError(err)

	bars := closeBars(1, 2, 3, 4, 5)

	_, warm := calc.Update(bars[0])
	suite.False(warm)

	_, warm = calc.Update(bars[1])
	suite.False(warm)

	// Seed = (1+2+3)/3 = 2
	value, warm := calc.Update(bars[2])
	suite.True(warm)
	suite.InDelta(2.0, value, 1e-9)

	// k = 2/(3+1) = 0.5; (4-2)*0.5+2 = 3
	value, warm = calc.Update(bars[3])
	suite.True(warm)
	suite.InDelta(3.0, value, 1e-9)

	// (5-3)*0.5+3 = 4
	value, warm = calc.Update(bars[4])
	suite.True(warm)
	suite.InDelta(4.0, value, 1e-9)
}

func (suite *EMATestSuite) TestConvergesTowardsConstantSeries() {
	calc, err := NewEMA(Spec{Name: "ema", Params: Params{"period": 5}})
	suite.Require().NoError(err)

	closes := make([]float64, 60)
	for i := range closes {
		if i < 5 {
			closes[i] = 50
		} else {
			closes[i] = 100
		}
	}

	var last float64
	for _, bar := range closeBars(closes...) {
		if value, warm := calc.Update(bar); warm {
			last = value
		}
	}

	// After 55 bars at 100 the EMA must be within a tick of 100.
	suite.InDelta(100.0, last, 0.01)
}
