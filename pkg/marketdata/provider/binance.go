package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/marketdata/writer"
)

// binancePageLimit is the number of klines the Binance REST API returns per
// request by default. A response shorter than this is the last page.
const binancePageLimit = 500

// BinanceAPIClient is the slice of the Binance REST client the downloader
// uses. It exists so tests can substitute a fake API.
type BinanceAPIClient interface {
	NewKlinesService() BinanceKlinesService
}

// BinanceKlinesService mirrors the chainable kline request builder of the
// Binance client.
type BinanceKlinesService interface {
	Symbol(symbol string) BinanceKlinesService
	Interval(interval string) BinanceKlinesService
	StartTime(startTime int64) BinanceKlinesService
	EndTime(endTime int64) BinanceKlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// binanceAPIAdapter adapts *binance.Client to BinanceAPIClient.
type binanceAPIAdapter struct {
	client *binance.Client
}

func (a *binanceAPIAdapter) NewKlinesService() BinanceKlinesService {
	return &binanceKlinesAdapter{service: a.client.NewKlinesService()}
}

type binanceKlinesAdapter struct {
	service *binance.KlinesService
}

func (a *binanceKlinesAdapter) Symbol(symbol string) BinanceKlinesService {
	a.service.Symbol(symbol)

	return a
}

func (a *binanceKlinesAdapter) Interval(interval string) BinanceKlinesService {
	a.service.Interval(interval)

	return a
}

func (a *binanceKlinesAdapter) StartTime(startTime int64) BinanceKlinesService {
	a.service.StartTime(startTime)

	return a
}

func (a *binanceKlinesAdapter) EndTime(endTime int64) BinanceKlinesService {
	a.service.EndTime(endTime)

	return a
}

func (a *binanceKlinesAdapter) Do(ctx context.Context) ([]*binance.Kline, error) {
	return a.service.Do(ctx)
}

// BinanceClient downloads spot-market klines from Binance. The public kline
// endpoint needs no API key.
type BinanceClient struct {
	apiClient BinanceAPIClient
	writer    writer.BarWriter
}

// NewBinanceClient creates a Binance provider backed by the public REST API.
func NewBinanceClient() (Provider, error) {
	return NewBinanceClientWithAPI(&binanceAPIAdapter{client: binance.NewClient("", "")}), nil
}

// NewBinanceClientWithAPI creates a Binance provider backed by the given API
// client. Tests use this to inject a fake.
func NewBinanceClientWithAPI(apiClient BinanceAPIClient) *BinanceClient {
	return &BinanceClient{
		apiClient: apiClient,
		writer:    nil,
	}
}

// ConfigWriter implements Provider.
func (c *BinanceClient) ConfigWriter(w writer.BarWriter) {
	c.writer = w
}

// Download fetches klines for the given ticker and window and writes them as
// bars. Binance caps each response at 500 klines, so the request is paginated
// using the close time of the last kline as the next cursor. The timeframe
// names used by the engine ("1m", "5m", "1h", ...) are valid Binance interval
// strings, so the timeframe maps to the API interval directly.
func (c *BinanceClient) Download(ctx context.Context, ticker string, start time.Time, end time.Time, timeframe types.Timeframe, onProgress OnProgress) (string, error) {
	if !timeframe.IsValid() {
		return "", errors.Newf(errors.ErrCodeInvalidTimespan, "unsupported timeframe %q", timeframe)
	}

	if c.writer == nil {
		return "", errors.New(errors.ErrCodeInvalidConfiguration, "writer is not configured")
	}

	if err := c.writer.Initialize(); err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to initialize writer", err)
	}

	var (
		endMillis = end.UnixMilli()
		cursor    = start.UnixMilli()
		total     = estimatedBars(start, end, timeframe)
		written   float64
	)

	for {
		klines, err := c.apiClient.NewKlinesService().
			Symbol(ticker).
			Interval(string(timeframe)).
			StartTime(cursor).
			EndTime(endMillis).
			Do(ctx)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from Binance", err)
		}

		count, err := writeKlines(c.writer, ticker, timeframe, klines)
		written += float64(count)

		if err != nil {
			return "", err
		}

		if onProgress != nil {
			onProgress(written, total, fmt.Sprintf("downloading %s klines from Binance", ticker))
		}

		// A short page is the last one.
		if len(klines) < binancePageLimit {
			break
		}

		// Resume just past the last kline to avoid refetching it.
		cursor = klines[len(klines)-1].CloseTime + 1
		if cursor >= endMillis {
			break
		}
	}

	path, err := c.writer.Finalize()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to finalize writer", err)
	}

	return path, nil
}

// writeKlines converts a page of klines to bars and writes them. It returns
// the number of bars written, which may be short of len(klines) on error.
func writeKlines(w writer.BarWriter, ticker string, timeframe types.Timeframe, klines []*binance.Kline) (int, error) {
	for i, kline := range klines {
		bar, err := klineToBar(ticker, timeframe, kline)
		if err != nil {
			return i, err
		}

		if err := w.Write(bar); err != nil {
			return i, errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to write bar", err)
		}
	}

	return len(klines), nil
}

// klineToBar converts one Binance kline to a bar. The kline's open time
// becomes the bar time, matching how the engine stamps bars at interval
// start.
func klineToBar(ticker string, timeframe types.Timeframe, kline *binance.Kline) (types.Bar, error) {
	bar := types.Bar{
		Symbol:    ticker,
		Timeframe: timeframe,
		Time:      time.UnixMilli(kline.OpenTime).UTC(),
	}

	fields := []struct {
		name  string
		value string
		dst   *float64
	}{
		{"open", kline.Open, &bar.Open},
		{"high", kline.High, &bar.High},
		{"low", kline.Low, &bar.Low},
		{"close", kline.Close, &bar.Close},
		{"volume", kline.Volume, &bar.Volume},
	}

	for _, field := range fields {
		parsed, err := strconv.ParseFloat(field.value, 64)
		if err != nil {
			return types.Bar{}, errors.Wrapf(errors.ErrCodeMarketDataParseFailed, err,
				"bad %s value %q in %s kline at %s", field.name, field.value, ticker, bar.Time.Format(time.RFC3339))
		}

		*field.dst = parsed
	}

	return bar, nil
}
