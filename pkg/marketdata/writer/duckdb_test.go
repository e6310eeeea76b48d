package writer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/barsource"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

type DuckDBWriterTestSuite struct {
	suite.Suite

	logger *logger.Logger
	day    time.Time
}

func TestDuckDBWriterSuite(t *testing.T) {
	suite.Run(t, new(DuckDBWriterTestSuite))
}

func (suite *DuckDBWriterTestSuite) SetupSuite() {
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{}
	config.ErrorOutputPaths = []string{}

	zapLogger, err := config.Build()
	suite.Require().NoError(err)

	suite.logger = &logger.Logger{Logger: zapLogger}
	suite.day = time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC)
}

func (suite *DuckDBWriterTestSuite) makeBar(symbol string, timeframe types.Timeframe, at time.Time, closePrice float64) types.Bar {
	return types.Bar{
		Symbol:    symbol,
		Timeframe: timeframe,
		Time:      at,
		Open:      closePrice - 1,
		High:      closePrice + 1,
		Low:       closePrice - 2,
		Close:     closePrice,
		Volume:    1000,
	}
}

// ingest writes the given closes as consecutive 1m bars through a fresh
// writer and commits them.
func (suite *DuckDBWriterTestSuite) ingest(path string, symbol string, from time.Time, to time.Time, closes ...float64) {
	barWriter := NewDuckDBWriter(path, symbol, types.Timeframe1m, from, to)
	suite.Require().NoError(barWriter.Initialize())

	for i, closePrice := range closes {
		bar := suite.makeBar(symbol, types.Timeframe1m, from.Add(time.Duration(i)*time.Minute), closePrice)
		suite.Require().NoError(barWriter.Write(bar))
	}

	outputPath, err := barWriter.Finalize()
	suite.Require().NoError(err)
	suite.Equal(path, outputPath)
	suite.Require().NoError(barWriter.Close())
}

// readBars opens the database the way the engine does and returns the stored
// bars for the window.
func (suite *DuckDBWriterTestSuite) readBars(path string, symbol string, timeframe types.Timeframe, from time.Time, to time.Time) []types.Bar {
	source, err := barsource.NewDuckDBSource(path, suite.logger)
	suite.Require().NoError(err)

	defer source.Close()

	bars, err := source.Bars(context.Background(), symbol, timeframe, from, to)
	suite.Require().NoError(err)

	return bars
}

func (suite *DuckDBWriterTestSuite) TestRoundTrip() {
	path := filepath.Join(suite.T().TempDir(), "bars.duckdb")
	window := suite.day.Add(time.Hour)

	suite.ingest(path, "NIFTY", suite.day, window, 100, 101, 102)

	bars := suite.readBars(path, "NIFTY", types.Timeframe1m, suite.day, window)
	suite.Require().Len(bars, 3)

	first := bars[0]
	suite.Equal("NIFTY", first.Symbol)
	suite.Equal(types.Timeframe1m, first.Timeframe)
	suite.True(first.Time.Equal(suite.day))
	suite.InDelta(99.0, first.Open, 0.001)
	suite.InDelta(101.0, first.High, 0.001)
	suite.InDelta(98.0, first.Low, 0.001)
	suite.InDelta(100.0, first.Close, 0.001)
	suite.InDelta(1000.0, first.Volume, 0.001)

	suite.True(bars[2].Time.Equal(suite.day.Add(2 * time.Minute)))
	suite.InDelta(102.0, bars[2].Close, 0.001)
}

func (suite *DuckDBWriterTestSuite) TestReingestReplacesWindow() {
	path := filepath.Join(suite.T().TempDir(), "bars.duckdb")
	window := suite.day.Add(time.Hour)

	suite.ingest(path, "NIFTY", suite.day, window, 10, 11, 12)
	suite.ingest(path, "NIFTY", suite.day, window, 20, 21, 22)

	bars := suite.readBars(path, "NIFTY", types.Timeframe1m, suite.day, window)
	suite.Require().Len(bars, 3)
	suite.InDelta(20.0, bars[0].Close, 0.001)
	suite.InDelta(21.0, bars[1].Close, 0.001)
	suite.InDelta(22.0, bars[2].Close, 0.001)
}

func (suite *DuckDBWriterTestSuite) TestDeleteIsScopedToWindow() {
	path := filepath.Join(suite.T().TempDir(), "bars.duckdb")
	day2 := suite.day.Add(24 * time.Hour)

	suite.ingest(path, "NIFTY", suite.day, suite.day.Add(time.Hour), 100)
	suite.ingest(path, "NIFTY", day2, day2.Add(time.Hour), 200)

	bars := suite.readBars(path, "NIFTY", types.Timeframe1m, suite.day, day2.Add(time.Hour))
	suite.Require().Len(bars, 2)
	suite.InDelta(100.0, bars[0].Close, 0.001)
	suite.InDelta(200.0, bars[1].Close, 0.001)
}

func (suite *DuckDBWriterTestSuite) TestDeleteIsScopedToSymbol() {
	path := filepath.Join(suite.T().TempDir(), "bars.duckdb")
	window := suite.day.Add(time.Hour)

	suite.ingest(path, "NIFTY", suite.day, window, 100)
	suite.ingest(path, "BANKNIFTY", suite.day, window, 200)

	suite.Len(suite.readBars(path, "NIFTY", types.Timeframe1m, suite.day, window), 1)
	suite.Len(suite.readBars(path, "BANKNIFTY", types.Timeframe1m, suite.day, window), 1)
}

func (suite *DuckDBWriterTestSuite) TestCloseWithoutFinalizeDiscards() {
	path := filepath.Join(suite.T().TempDir(), "bars.duckdb")
	window := suite.day.Add(time.Hour)

	barWriter := NewDuckDBWriter(path, "NIFTY", types.Timeframe1m, suite.day, window)
	suite.Require().NoError(barWriter.Initialize())
	suite.Require().NoError(barWriter.Write(suite.makeBar("NIFTY", types.Timeframe1m, suite.day, 100)))
	suite.Require().NoError(barWriter.Close())

	suite.Empty(suite.readBars(path, "NIFTY", types.Timeframe1m, suite.day, window))
}

func (suite *DuckDBWriterTestSuite) TestWriteBeforeInitialize() {
	barWriter := NewDuckDBWriter(filepath.Join(suite.T().TempDir(), "bars.duckdb"), "NIFTY", types.Timeframe1m, suite.day, suite.day.Add(time.Hour))

	err := barWriter.Write(suite.makeBar("NIFTY", types.Timeframe1m, suite.day, 100))
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataWriteFailed))
	suite.Contains(err.Error(), "not initialized")
}

func (suite *DuckDBWriterTestSuite) TestFinalizeBeforeInitialize() {
	barWriter := NewDuckDBWriter(filepath.Join(suite.T().TempDir(), "bars.duckdb"), "NIFTY", types.Timeframe1m, suite.day, suite.day.Add(time.Hour))

	_, err := barWriter.Finalize()
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataWriteFailed))
}

func (suite *DuckDBWriterTestSuite) TestCreatesMissingDataDirectory() {
	path := filepath.Join(suite.T().TempDir(), "nested", "data", "bars.duckdb")
	window := suite.day.Add(time.Hour)

	suite.ingest(path, "NIFTY", suite.day, window, 100)
	suite.Len(suite.readBars(path, "NIFTY", types.Timeframe1m, suite.day, window), 1)
}

func (suite *DuckDBWriterTestSuite) TestOutputPath() {
	path := filepath.Join(suite.T().TempDir(), "bars.duckdb")
	barWriter := NewDuckDBWriter(path, "NIFTY", types.Timeframe1m, suite.day, suite.day.Add(time.Hour))
	suite.Equal(path, barWriter.OutputPath())
}
