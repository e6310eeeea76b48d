// The backtest command runs one strategy document against a local DuckDB bar
// store without the API server, printing progress and a metrics summary.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap/zapcore"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/barsource"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/engine"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/graph"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/indicator"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/market"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/output"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

func main() {
	cmd := &cli.Command{
		Name:  "backtest",
		Usage: "Run one strategy against a local bar store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "strategy",
				Aliases:  []string{"s"},
				Usage:    "Path to the strategy graph JSON document",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   "Path to the DuckDB bars database",
				Value:   "data/bars.duckdb",
			},
			&cli.TimestampFlag{
				Name:     "from",
				Usage:    "Replay start date in `YYYY-MM-DD` format",
				Required: true,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.TimestampFlag{
				Name:     "to",
				Usage:    "Replay end date in `YYYY-MM-DD` format. Defaults to today.",
				Value:    time.Now().UTC(),
				Required: false,
				Config: cli.TimestampConfig{
					Layouts: []string{"2006-01-02", time.RFC3339},
				},
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Directory session output is written under",
				Value:   "output",
			},
			&cli.FloatFlag{
				Name:  "slippage",
				Usage: "Absolute slippage charged per round trip",
				Value: 0,
			},
			&cli.FloatFlag{
				Name:  "commission",
				Usage: "Absolute commission charged per round trip",
				Value: 0,
			},
		},
		Action: backtestAction,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	strategyPath := cmd.String("strategy")

	raw, err := os.ReadFile(strategyPath)
	if err != nil {
		return fmt.Errorf("failed to read strategy document: %w", err)
	}

	g, findings, err := graph.Load(raw)
	if err != nil {
		return err
	}

	if graph.HasErrors(findings) {
		for _, finding := range findings {
			fmt.Fprintf(os.Stderr, "validation: %s\n", finding.Error())
		}

		return fmt.Errorf("strategy %s failed validation", strategyPath)
	}

	for _, finding := range findings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", finding.Error())
	}

	if g.StrategyID == "" {
		g.StrategyID = strings.TrimSuffix(filepath.Base(strategyPath), ".json")
	}

	// Keep the progress bar readable: only warnings and above go to stdout.
	appLogger, err := logger.NewLoggerWithLevel(zapcore.WarnLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	source, err := barsource.NewDuckDBSource(cmd.String("data"), appLogger)
	if err != nil {
		return err
	}
	defer source.Close()

	sessionID := uuid.NewString()
	dir := output.SessionDir(cmd.String("output"), g.StrategyID, sessionID)

	sink, err := output.NewBatchSink(dir)
	if err != nil {
		return err
	}
	defer sink.Close()

	var bar *progressbar.ProgressBar

	driver, err := engine.NewDriver(engine.Config{
		SessionID:  sessionID,
		StrategyID: g.StrategyID,
		Mode:       types.SessionModeBacktest,
		From:       cmd.Timestamp("from"),
		To:         cmd.Timestamp("to"),
		Costs: engine.Costs{
			Slippage:   cmd.Float("slippage"),
			Commission: cmd.Float("commission"),
		},
	}, g, source, market.NewCache(indicator.DefaultRegistry()), sink, appLogger, engine.Callbacks{
		OnProgress: func(completed, total int64) {
			if bar == nil {
				bar = progressbar.Default(total)
			}

			_ = bar.Set64(completed)
		},
	})
	if err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := driver.Run(runCtx); err != nil {
		return err
	}

	if bar != nil {
		_ = bar.Finish()
	}

	printSummary(driver.Metrics(), dir)

	return nil
}

func printSummary(metrics types.Metrics, dir string) {
	fmt.Println()
	fmt.Printf("Backtest %s (%s)\n", metrics.SessionID, metrics.StrategyID)
	fmt.Printf("  Trades:        %d (%d won / %d lost)\n",
		metrics.TotalTrades, metrics.WinningTrades, metrics.LosingTrades)
	fmt.Printf("  Win rate:      %.1f%%\n", metrics.WinRate*100)
	fmt.Printf("  Net P&L:       %.2f\n", metrics.PnL.NetPnL)
	fmt.Printf("  Gross profit:  %.2f\n", metrics.PnL.GrossProfit)
	fmt.Printf("  Gross loss:    %.2f\n", metrics.PnL.GrossLoss)
	fmt.Printf("  Max drawdown:  %.2f\n", metrics.PnL.MaxDrawdown)
	fmt.Printf("  Output:        %s\n", dir)
}
