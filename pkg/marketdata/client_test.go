package marketdata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/marketdata/provider"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/marketdata/writer"
)

// stubProvider records the arguments Download was called with.
type stubProvider struct {
	writer       writer.BarWriter
	gotTicker    string
	gotStart     time.Time
	gotEnd       time.Time
	gotTimeframe types.Timeframe
	path         string
	downloadErr  error
}

func (s *stubProvider) ConfigWriter(w writer.BarWriter) {
	s.writer = w
}

func (s *stubProvider) Download(_ context.Context, ticker string, start time.Time, end time.Time, timeframe types.Timeframe, _ provider.OnProgress) (string, error) {
	s.gotTicker = ticker
	s.gotStart = start
	s.gotEnd = end
	s.gotTimeframe = timeframe

	return s.path, s.downloadErr
}

type ClientTestSuite struct {
	suite.Suite

	logger *logger.Logger
	start  time.Time
	end    time.Time
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (suite *ClientTestSuite) SetupSuite() {
	config := zap.NewDevelopmentConfig()
	config.OutputPaths = []string{}
	config.ErrorOutputPaths = []string{}

	zapLogger, err := config.Build()
	suite.Require().NoError(err)

	suite.logger = &logger.Logger{Logger: zapLogger}
	suite.start = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	suite.end = suite.start.Add(24 * time.Hour)
}

func (suite *ClientTestSuite) binanceConfig() ClientConfig {
	return ClientConfig{
		Provider: provider.ProviderBinance,
		Writer:   WriterDuckDB,
		DataPath: filepath.Join(suite.T().TempDir(), "bars.duckdb"),
	}
}

func (suite *ClientTestSuite) TestNewClientBinance() {
	client, err := NewClient(suite.binanceConfig(), suite.logger)
	suite.NoError(err)
	suite.NotNil(client)
}

func (suite *ClientTestSuite) TestNewClientPolygonRequiresAPIKey() {
	config := suite.binanceConfig()
	config.Provider = provider.ProviderPolygon

	client, err := NewClient(config, suite.logger)
	suite.Error(err)
	suite.Nil(client)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ClientTestSuite) TestNewClientPolygonWithAPIKey() {
	config := suite.binanceConfig()
	config.Provider = provider.ProviderPolygon
	config.PolygonAPIKey = "test-api-key"

	client, err := NewClient(config, suite.logger)
	suite.NoError(err)
	suite.NotNil(client)
}

func (suite *ClientTestSuite) TestNewClientRejectsUnknownProvider() {
	config := suite.binanceConfig()
	config.Provider = provider.ProviderType("bloomberg")

	_, err := NewClient(config, suite.logger)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ClientTestSuite) TestNewClientRejectsUnknownWriter() {
	config := suite.binanceConfig()
	config.Writer = WriterType("parquet")

	_, err := NewClient(config, suite.logger)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ClientTestSuite) TestNewClientRequiresDataPath() {
	config := suite.binanceConfig()
	config.DataPath = ""

	_, err := NewClient(config, suite.logger)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ClientTestSuite) TestDownloadValidatesParams() {
	client, err := NewClient(suite.binanceConfig(), suite.logger)
	suite.Require().NoError(err)

	// Missing ticker.
	_, err = client.Download(context.Background(), DownloadParams{
		Timeframe: types.Timeframe1m,
		From:      suite.start,
		To:        suite.end,
	}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	// Missing range start.
	_, err = client.Download(context.Background(), DownloadParams{
		Ticker:    "BTCUSDT",
		Timeframe: types.Timeframe1m,
		To:        suite.end,
	}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	// End not after start.
	_, err = client.Download(context.Background(), DownloadParams{
		Ticker:    "BTCUSDT",
		Timeframe: types.Timeframe1m,
		From:      suite.start,
		To:        suite.start,
	}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	// Unknown timeframe.
	_, err = client.Download(context.Background(), DownloadParams{
		Ticker:    "BTCUSDT",
		Timeframe: types.Timeframe("2m"),
		From:      suite.start,
		To:        suite.end,
	}, nil)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidTimespan))
}

func (suite *ClientTestSuite) TestDownloadForwardsToProvider() {
	config := suite.binanceConfig()
	client, err := NewClient(config, suite.logger)
	suite.Require().NoError(err)

	stub := &stubProvider{path: config.DataPath}
	client.provider = stub

	params := DownloadParams{
		Ticker:    "BTCUSDT",
		Timeframe: types.Timeframe5m,
		From:      suite.start,
		To:        suite.end,
	}

	path, err := client.Download(context.Background(), params, nil)
	suite.NoError(err)
	suite.Equal(config.DataPath, path)
	suite.Equal("BTCUSDT", stub.gotTicker)
	suite.Equal(types.Timeframe5m, stub.gotTimeframe)
	suite.True(stub.gotStart.Equal(suite.start))
	suite.True(stub.gotEnd.Equal(suite.end))

	duckdbWriter, ok := stub.writer.(*writer.DuckDBWriter)
	suite.Require().True(ok)
	suite.Equal(config.DataPath, duckdbWriter.OutputPath())
}

func (suite *ClientTestSuite) TestDownloadPropagatesProviderError() {
	client, err := NewClient(suite.binanceConfig(), suite.logger)
	suite.Require().NoError(err)

	client.provider = &stubProvider{
		downloadErr: errors.New(errors.ErrCodeMarketDataFetchFailed, "exchange unreachable"),
	}

	_, err = client.Download(context.Background(), DownloadParams{
		Ticker:    "BTCUSDT",
		Timeframe: types.Timeframe1m,
		From:      suite.start,
		To:        suite.end,
	}, nil)
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeMarketDataFetchFailed))
}
