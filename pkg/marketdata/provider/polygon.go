package provider

import (
	"context"
	"fmt"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/marketdata/writer"
)

// polygonPageLimit is the maximum aggregates-per-page the Polygon API
// accepts; the iterator pages transparently beyond it.
const polygonPageLimit = 50000

// PolygonAPIClient is the slice of the Polygon REST client the downloader
// uses. It exists so tests can substitute a fake API.
type PolygonAPIClient interface {
	ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator
}

// PolygonAggsIterator mirrors the aggregate iterator returned by the Polygon
// client.
type PolygonAggsIterator interface {
	Next() bool
	Item() models.Agg
	Err() error
}

// polygonAPIAdapter adapts *polygon.Client to PolygonAPIClient.
type polygonAPIAdapter struct {
	client *polygon.Client
}

func (a *polygonAPIAdapter) ListAggs(ctx context.Context, params *models.ListAggsParams, options ...models.RequestOption) PolygonAggsIterator {
	return a.client.ListAggs(ctx, params, options...)
}

// PolygonClient downloads aggregate bars from Polygon.io. All Polygon
// endpoints require an API key.
type PolygonClient struct {
	apiClient PolygonAPIClient
	writer    writer.BarWriter
}

// NewPolygonClient creates a Polygon provider authenticated with apiKey.
func NewPolygonClient(apiKey string) (Provider, error) {
	if apiKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfiguration, "apiKey is required for the polygon provider")
	}

	return NewPolygonClientWithAPI(&polygonAPIAdapter{client: polygon.New(apiKey)}), nil
}

// NewPolygonClientWithAPI creates a Polygon provider backed by the given API
// client. Tests use this to inject a fake.
func NewPolygonClientWithAPI(apiClient PolygonAPIClient) *PolygonClient {
	return &PolygonClient{
		apiClient: apiClient,
		writer:    nil,
	}
}

// ConfigWriter implements Provider.
func (c *PolygonClient) ConfigWriter(w writer.BarWriter) {
	c.writer = w
}

// Download fetches aggregates for the given ticker and window and writes
// them as bars. The Polygon iterator handles pagination internally.
func (c *PolygonClient) Download(ctx context.Context, ticker string, start time.Time, end time.Time, timeframe types.Timeframe, onProgress OnProgress) (string, error) {
	multiplier, timespan, err := polygonSpan(timeframe)
	if err != nil {
		return "", err
	}

	if c.writer == nil {
		return "", errors.New(errors.ErrCodeInvalidConfiguration, "no writer configured")
	}

	if err := c.writer.Initialize(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to initialize writer", err)
	}

	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     ticker,
		Multiplier: multiplier,
		Timespan:   timespan,
		From:       models.Millis(start),
		To:         models.Millis(end),
	}.WithLimit(polygonPageLimit)

	var (
		aggs    = c.apiClient.ListAggs(ctx, params)
		total   = estimatedBars(start, end, timeframe)
		written float64
	)

	for aggs.Next() {
		agg := aggs.Item()
		bar := types.Bar{
			Symbol:    ticker,
			Timeframe: timeframe,
			Time:      time.Time(agg.Timestamp).UTC(),
			Open:      agg.Open,
			High:      agg.High,
			Low:       agg.Low,
			Close:     agg.Close,
			Volume:    agg.Volume,
		}

		if err := c.writer.Write(bar); err != nil {
			return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write bar", err)
		}

		written++

		if onProgress != nil {
			onProgress(written, total, fmt.Sprintf("downloading %s aggregates from Polygon", ticker))
		}
	}

	if err := aggs.Err(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to list aggregates from Polygon", err)
	}

	path, err := c.writer.Finalize()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to finalize writer", err)
	}

	return path, nil
}

// polygonSpan converts an engine timeframe to the multiplier and timespan
// pair the Polygon aggregates API expects.
func polygonSpan(timeframe types.Timeframe) (int, models.Timespan, error) {
	switch timeframe {
	case types.Timeframe1m:
		return 1, models.Minute, nil
	case types.Timeframe3m:
		return 3, models.Minute, nil
	case types.Timeframe5m:
		return 5, models.Minute, nil
	case types.Timeframe15m:
		return 15, models.Minute, nil
	case types.Timeframe30m:
		return 30, models.Minute, nil
	case types.Timeframe1h:
		return 1, models.Hour, nil
	case types.Timeframe4h:
		return 4, models.Hour, nil
	case types.Timeframe1d:
		return 1, models.Day, nil
	default:
		return 0, "", errors.Newf(errors.ErrCodeInvalidTimespan, "unsupported timeframe %q", timeframe)
	}
}
