package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/indicator"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

type CacheTestSuite struct {
	suite.Suite

	cache *Cache
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func (suite *CacheTestSuite) SetupTest() {
	suite.cache = NewCache(indicator.DefaultRegistry())
}

func (suite *CacheTestSuite) bars(closes ...float64) []types.Bar {
	bars := make([]types.Bar, 0, len(closes))
	base := time.Date(2024, 6, 14, 9, 15, 0, 0, time.UTC)

	for i, c := range closes {
		bars = append(bars, types.Bar{
			Symbol:    "NIFTY",
			Timeframe: types.Timeframe5m,
			Time:      base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      c,
			High:      c + 1,
			Low:       c - 1,
			Close:     c,
			Volume:    1000,
		})
	}

	return bars
}

func (suite *CacheTestSuite) ensureAndAppend(closes ...float64) {
	suite.Require().NoError(suite.cache.Ensure("NIFTY", types.Timeframe5m, nil))

	for _, bar := range suite.bars(closes...) {
		suite.Require().NoError(suite.cache.Append(bar))
	}
}

func (suite *CacheTestSuite) TestFieldOffsets() {
	suite.ensureAndAppend(10, 20, 30)

	latest, err := suite.cache.Field("NIFTY", types.Timeframe5m, FieldClose, 0)
	suite.NoError(err)
	suite.Equal(30.0, latest)

	// Close series [10,20,30]: offset -1 from the latest index must be 20.
	prev, err := suite.cache.Field("NIFTY", types.Timeframe5m, FieldClose, -1)
	suite.NoError(err)
	suite.Equal(20.0, prev)

	first, err := suite.cache.Field("NIFTY", types.Timeframe5m, FieldClose, -2)
	suite.NoError(err)
	suite.Equal(10.0, first)
}

func (suite *CacheTestSuite) TestFieldComponents() {
	suite.ensureAndAppend(100)

	high, err := suite.cache.Field("NIFTY", types.Timeframe5m, FieldHigh, 0)
	suite.NoError(err)
	suite.Equal(101.0, high)

	low, err := suite.cache.Field("NIFTY", types.Timeframe5m, FieldLow, 0)
	suite.NoError(err)
	suite.Equal(99.0, low)

	volume, err := suite.cache.Field("NIFTY", types.Timeframe5m, FieldVolume, 0)
	suite.NoError(err)
	suite.Equal(1000.0, volume)
}

func (suite *CacheTestSuite) TestOffsetBeforeFirstBarIsDataUnavailable() {
	suite.ensureAndAppend(10)

	_, err := suite.cache.Field("NIFTY", types.Timeframe5m, FieldClose, -1)
	suite.Error(err)
	suite.True(errors.IsDataUnavailableError(err))
}

func (suite *CacheTestSuite) TestOffsetOnEmptySeriesIsDataUnavailable() {
	suite.Require().NoError(suite.cache.Ensure("NIFTY", types.Timeframe5m, nil))

	_, err := suite.cache.Field("NIFTY", types.Timeframe5m, FieldClose, 0)
	suite.Error(err)
	suite.True(errors.IsDataUnavailableError(err))
}

func (suite *CacheTestSuite) TestMissingSeriesIsFatalCacheMiss() {
	_, err := suite.cache.Field("BANKNIFTY", types.Timeframe5m, FieldClose, 0)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeCacheMiss))
	suite.False(errors.IsDataUnavailableError(err))

	_, err = suite.cache.Indicator("BANKNIFTY", types.Timeframe5m, "ema_21", 0)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeCacheMiss))
}

func (suite *CacheTestSuite) TestAppendWithoutEnsure() {
	err := suite.cache.Append(suite.bars(10)[0])
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSeriesNotFound))
}

func (suite *CacheTestSuite) TestAppendRejectsOutOfOrder() {
	suite.ensureAndAppend(10, 20)

	stale := suite.bars(30)[0] // timestamp equals the first bar
	err := suite.cache.Append(stale)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeOutOfOrderData))

	// Length unchanged after the rejected append.
	suite.Equal(2, suite.cache.Len("NIFTY", types.Timeframe5m))
}

func (suite *CacheTestSuite) TestIndicatorWarmupAndValues() {
	specs := []indicator.Spec{{Name: "sma", Key: "sma_2", Params: indicator.Params{"period": 2}}}
	suite.Require().NoError(suite.cache.Ensure("NIFTY", types.Timeframe5m, specs))

	for _, bar := range suite.bars(10, 20, 30) {
		suite.Require().NoError(suite.cache.Append(bar))
	}

	// First bar is inside warmup: unavailable even though the slot exists.
	_, err := suite.cache.Indicator("NIFTY", types.Timeframe5m, "sma_2", -2)
	suite.Error(err)
	suite.True(errors.IsDataUnavailableError(err))

	prev, err := suite.cache.Indicator("NIFTY", types.Timeframe5m, "sma_2", -1)
	suite.NoError(err)
	suite.InDelta(15.0, prev, 1e-9)

	latest, err := suite.cache.Indicator("NIFTY", types.Timeframe5m, "sma_2", 0)
	suite.NoError(err)
	suite.InDelta(25.0, latest, 1e-9)
}

func (suite *CacheTestSuite) TestUnknownIndicatorKeyIsDataUnavailable() {
	suite.ensureAndAppend(10, 20)

	_, err := suite.cache.Indicator("NIFTY", types.Timeframe5m, "ema_21", 0)
	suite.Error(err)
	suite.True(errors.IsDataUnavailableError(err))
}

func (suite *CacheTestSuite) TestEnsureIsAdditiveWithCatchUp() {
	suite.ensureAndAppend(10, 20, 30)

	// Ensure a new indicator after bars already exist: it must be caught up.
	specs := []indicator.Spec{{Name: "sma", Key: "sma_2", Params: indicator.Params{"period": 2}}}
	suite.Require().NoError(suite.cache.Ensure("NIFTY", types.Timeframe5m, specs))

	latest, err := suite.cache.Indicator("NIFTY", types.Timeframe5m, "sma_2", 0)
	suite.NoError(err)
	suite.InDelta(25.0, latest, 1e-9)

	// Re-ensuring the same spec is a no-op.
	suite.Require().NoError(suite.cache.Ensure("NIFTY", types.Timeframe5m, specs))
	suite.Equal(3, suite.cache.Len("NIFTY", types.Timeframe5m))
}

func (suite *CacheTestSuite) TestEnsureRejectsUnknownFamily() {
	specs := []indicator.Spec{{Name: "supertrend", Key: "st_10", Params: indicator.Params{"period": 10}}}
	err := suite.cache.Ensure("NIFTY", types.Timeframe5m, specs)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeIndicatorNotFound))
}

func (suite *CacheTestSuite) TestEnsureRejectsInvalidTimeframe() {
	err := suite.cache.Ensure("NIFTY", types.Timeframe("7m"), nil)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTimeframe))
}

func (suite *CacheTestSuite) TestLastBar() {
	suite.ensureAndAppend(10, 20)

	bar, err := suite.cache.LastBar("NIFTY", types.Timeframe5m)
	suite.NoError(err)
	suite.Equal(20.0, bar.Close)
}

func (suite *CacheTestSuite) TestTicks() {
	_, ok := suite.cache.LastTick("NIFTY")
	suite.False(ok)

	tick := types.Tick{Symbol: "NIFTY", Time: time.Now(), LTP: 22501.5}
	suite.cache.SetTick(tick)

	got, ok := suite.cache.LastTick("NIFTY")
	suite.True(ok)
	suite.Equal(22501.5, got.LTP)
}

func (suite *CacheTestSuite) TestHasAndLen() {
	suite.False(suite.cache.Has("NIFTY", types.Timeframe5m))
	suite.Equal(0, suite.cache.Len("NIFTY", types.Timeframe5m))

	suite.ensureAndAppend(10)

	suite.True(suite.cache.Has("NIFTY", types.Timeframe5m))
	suite.Equal(1, suite.cache.Len("NIFTY", types.Timeframe5m))
}
