package provider

import (
	"context"
	"time"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/marketdata/writer"
)

// ProviderType identifies a market data provider.
type ProviderType string

const (
	ProviderBinance ProviderType = "binance"
	ProviderPolygon ProviderType = "polygon"
)

// OnProgress reports download progress. current counts bars written so far
// and total is the estimated bar count for the requested window, so the two
// can drive a progress bar directly.
type OnProgress = func(current float64, total float64, message string)

// Provider downloads historical bars from an external market data source.
type Provider interface {
	// ConfigWriter sets the destination the downloaded bars are written to.
	ConfigWriter(w writer.BarWriter)
	// Download fetches bars for ticker between start and end at the given
	// timeframe and writes them through the configured writer. It returns
	// the writer's output path. Cancel the context to abort the download.
	Download(ctx context.Context, ticker string, start time.Time, end time.Time, timeframe types.Timeframe, onProgress OnProgress) (path string, err error)
}

// New creates a provider of the given type. apiKey is required for polygon
// and ignored for binance.
func New(providerType ProviderType, apiKey string) (Provider, error) {
	switch providerType {
	case ProviderBinance:
		return NewBinanceClient()
	case ProviderPolygon:
		return NewPolygonClient(apiKey)
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidProvider, "unsupported market data provider %q", providerType)
	}
}

// estimatedBars approximates how many bars the window contains. It assumes a
// continuous market, so for instruments with trading hours it overestimates;
// the value only feeds progress reporting.
func estimatedBars(start time.Time, end time.Time, timeframe types.Timeframe) float64 {
	duration := timeframe.Duration()
	if duration <= 0 || !end.After(start) {
		return 1
	}

	bars := float64(end.Sub(start) / duration)
	if bars < 1 {
		return 1
	}

	return bars
}
