// Package marketdata downloads historical bars from external providers and
// stores them in the DuckDB database the engine reads its bars from.
package marketdata

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/marketdata/provider"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/marketdata/writer"
)

// WriterType identifies a bar writer backend.
type WriterType string

const (
	WriterDuckDB WriterType = "duckdb"
)

// ClientConfig holds the configuration for the market data client.
type ClientConfig struct {
	Provider provider.ProviderType `validate:"required,oneof=binance polygon"`
	Writer   WriterType            `validate:"required,oneof=duckdb"`
	// DataPath is the DuckDB database file bars are ingested into, the same
	// file the engine's duckdb bar source is pointed at.
	DataPath      string `validate:"required"`
	PolygonAPIKey string `validate:"required_if=Provider polygon"`
}

// DownloadParams holds the parameters for one download request.
type DownloadParams struct {
	Ticker    string          `validate:"required"`
	Timeframe types.Timeframe `validate:"required"`
	From      time.Time       `validate:"required"`
	To        time.Time       `validate:"required,gtfield=From"`
}

// Client ties a provider to a writer: it downloads bars from the configured
// provider and persists them through the configured writer backend.
type Client struct {
	provider provider.Provider
	config   ClientConfig
	validate *validator.Validate
	log      *logger.Logger
}

// NewClient creates a market data client with the given configuration.
func NewClient(config ClientConfig, log *logger.Logger) (*Client, error) {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid market data client configuration", err)
	}

	marketProvider, err := provider.New(config.Provider, config.PolygonAPIKey)
	if err != nil {
		return nil, err
	}

	return &Client{
		provider: marketProvider,
		config:   config,
		validate: validate,
		log:      log,
	}, nil
}

// Download fetches bars for the given parameters and stores them. It returns
// the path of the store the bars were written to. onProgress may be nil.
func (c *Client) Download(ctx context.Context, params DownloadParams, onProgress provider.OnProgress) (string, error) {
	if err := c.validate.Struct(params); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidParameter, "invalid download parameters", err)
	}

	if !params.Timeframe.IsValid() {
		return "", errors.Newf(errors.ErrCodeInvalidTimespan, "unsupported timeframe %q", params.Timeframe)
	}

	barWriter, err := c.newWriter(params)
	if err != nil {
		return "", err
	}

	defer func() {
		if err := barWriter.Close(); err != nil {
			c.log.Warn("failed to close market data writer", zap.Error(err))
		}
	}()

	c.provider.ConfigWriter(barWriter)

	path, err := c.provider.Download(ctx, params.Ticker, params.From, params.To, params.Timeframe, onProgress)
	if err != nil {
		return "", err
	}

	c.log.Info("market data ingested",
		zap.String("ticker", params.Ticker),
		zap.String("timeframe", string(params.Timeframe)),
		zap.Time("from", params.From),
		zap.Time("to", params.To),
		zap.String("path", path))

	return path, nil
}

// newWriter builds the writer backend for one download window.
func (c *Client) newWriter(params DownloadParams) (writer.BarWriter, error) {
	switch c.config.Writer {
	case WriterDuckDB:
		return writer.NewDuckDBWriter(c.config.DataPath, params.Ticker, params.Timeframe, params.From, params.To), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported writer type %q", c.config.Writer)
	}
}
