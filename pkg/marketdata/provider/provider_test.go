package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

type ProviderFactoryTestSuite struct {
	suite.Suite
}

func TestProviderFactorySuite(t *testing.T) {
	suite.Run(t, new(ProviderFactoryTestSuite))
}

func (suite *ProviderFactoryTestSuite) TestNewBinance() {
	provider, err := New(ProviderBinance, "")
	suite.NoError(err)
	suite.IsType(&BinanceClient{}, provider)
}

func (suite *ProviderFactoryTestSuite) TestNewPolygon() {
	provider, err := New(ProviderPolygon, "test-api-key")
	suite.NoError(err)
	suite.IsType(&PolygonClient{}, provider)
}

func (suite *ProviderFactoryTestSuite) TestNewPolygonWithoutKey() {
	provider, err := New(ProviderPolygon, "")
	suite.Error(err)
	suite.Nil(provider)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ProviderFactoryTestSuite) TestNewUnknownProvider() {
	provider, err := New(ProviderType("bloomberg"), "")
	suite.Error(err)
	suite.Nil(provider)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidProvider))
	suite.Contains(err.Error(), "bloomberg")
}

func (suite *ProviderFactoryTestSuite) TestEstimatedBars() {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		start     time.Time
		end       time.Time
		timeframe types.Timeframe
		want      float64
	}{
		{"one hour of minutes", start, start.Add(time.Hour), types.Timeframe1m, 60},
		{"one day of hours", start, start.Add(24 * time.Hour), types.Timeframe1h, 24},
		{"window shorter than a bar", start, start.Add(time.Second), types.Timeframe1m, 1},
		{"end before start", start, start.Add(-time.Hour), types.Timeframe1m, 1},
		{"unknown timeframe", start, start.Add(time.Hour), types.Timeframe("2m"), 1},
	}

	for _, test := range tests {
		suite.Equal(test.want, estimatedBars(test.start, test.end, test.timeframe), test.name)
	}
}
