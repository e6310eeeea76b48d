// The ingest command fills the DuckDB bar store the engine reads from, either
// by downloading history from a market data provider or by generating
// synthetic bars for local experiments.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap/zapcore"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/mocks"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/marketdata"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/marketdata/provider"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/marketdata/writer"
)

func main() {
	cmd := &cli.Command{
		Name:  "ingest",
		Usage: "Load historical bars into the engine's bar store",
		Commands: []*cli.Command{
			downloadCommand(),
			generateCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func downloadCommand() *cli.Command {
	return &cli.Command{
		Name:  "download",
		Usage: "Download historical bars from a provider",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ticker",
				Aliases:  []string{"t"},
				Usage:    "Ticker symbol to download",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "timeframe",
				Aliases: []string{"f"},
				Usage:   "Bar timeframe (1m, 5m, 15m, 1h, ...)",
				Value:   string(types.Timeframe1m),
			},
			&cli.TimestampFlag{
				Name:     "start",
				Aliases:  []string{"s"},
				Usage:    "Start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.TimestampFlag{
				Name:    "end",
				Aliases: []string{"e"},
				Usage:   "End date in `YYYY-MM-DD` format. Defaults to today.",
				Value:   time.Now().UTC(),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.StringFlag{
				Name:    "provider",
				Aliases: []string{"p"},
				Usage:   fmt.Sprintf("Data provider (%s)", strings.Join(marketdata.SupportedProviders(), ", ")),
				Value:   string(provider.ProviderBinance),
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the DuckDB bars database",
				Value:   "data/bars.duckdb",
			},
		},
		Action: downloadAction,
	}
}

func downloadAction(ctx context.Context, cmd *cli.Command) error {
	appLogger, err := logger.NewLoggerWithLevel(zapcore.WarnLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	client, err := marketdata.NewClient(marketdata.ClientConfig{
		Provider:      provider.ProviderType(cmd.String("provider")),
		Writer:        marketdata.WriterDuckDB,
		DataPath:      cmd.String("data"),
		PolygonAPIKey: os.Getenv("POLYGON_API_KEY"),
	}, appLogger)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar

	path, err := client.Download(ctx, marketdata.DownloadParams{
		Ticker:    cmd.String("ticker"),
		Timeframe: types.Timeframe(cmd.String("timeframe")),
		From:      cmd.Timestamp("start"),
		To:        cmd.Timestamp("end"),
	}, func(current, total float64, message string) {
		if bar == nil {
			bar = progressbar.NewOptions(int(total),
				progressbar.OptionSetDescription(message),
				progressbar.OptionShowCount())
		}

		_ = bar.Set(int(current))
	})
	if err != nil {
		return err
	}

	if bar != nil {
		_ = bar.Finish()
	}

	fmt.Printf("\nBars written to %s\n", path)

	return nil
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate synthetic bars into the bar store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "symbol",
				Aliases: []string{"t"},
				Usage:   "Symbol to stamp on generated bars",
				Value:   "TEST",
			},
			&cli.StringFlag{
				Name:    "timeframe",
				Aliases: []string{"f"},
				Usage:   "Bar timeframe (1m, 5m, 15m, 1h, ...)",
				Value:   string(types.Timeframe1m),
			},
			&cli.TimestampFlag{
				Name:    "start",
				Aliases: []string{"s"},
				Usage:   "Open time of the first bar in `YYYY-MM-DD` format",
				Value:   time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Number of bars to generate",
				Value:   10000,
			},
			&cli.IntFlag{
				Name:  "seed",
				Usage: "Random seed; the same seed always yields the same bars",
				Value: 42,
			},
			&cli.FloatFlag{
				Name:  "price",
				Usage: "Starting price",
				Value: 100,
			},
			&cli.FloatFlag{
				Name:  "volatility",
				Usage: "Per-bar price movement factor (0.002 = 0.2%)",
				Value: 0.002,
			},
			&cli.FloatFlag{
				Name:  "trend",
				Usage: "Drift factor, negative for bearish",
				Value: 0,
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the DuckDB bars database",
				Value:   "data/bars.duckdb",
			},
		},
		Action: generateAction,
	}
}

func generateAction(_ context.Context, cmd *cli.Command) error {
	timeframe := types.Timeframe(cmd.String("timeframe"))
	if !timeframe.IsValid() {
		return fmt.Errorf("unsupported timeframe %q", cmd.String("timeframe"))
	}

	generator := mocks.NewDataGenerator(cmd.Int("seed"))

	bars := generator.Generate(mocks.GeneratorConfig{
		Symbol:         cmd.String("symbol"),
		Timeframe:      timeframe,
		StartTime:      cmd.Timestamp("start").UTC(),
		Count:          int(cmd.Int("count")),
		InitialPrice:   cmd.Float("price"),
		Volatility:     cmd.Float("volatility"),
		Trend:          cmd.Float("trend"),
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	})

	if len(bars) == 0 {
		return fmt.Errorf("nothing to generate")
	}

	barWriter := writer.NewDuckDBWriter(cmd.String("data"), cmd.String("symbol"), timeframe,
		bars[0].Time, bars[len(bars)-1].Time)
	defer barWriter.Close()

	if err := barWriter.Initialize(); err != nil {
		return err
	}

	progress := progressbar.Default(int64(len(bars)))

	for _, bar := range bars {
		if err := barWriter.Write(bar); err != nil {
			return err
		}

		_ = progress.Add(1)
	}

	path, err := barWriter.Finalize()
	if err != nil {
		return err
	}

	_ = progress.Finish()

	fmt.Printf("\n%d bars written to %s\n", len(bars), path)

	return nil
}
