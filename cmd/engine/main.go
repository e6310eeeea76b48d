// The engine command runs the strategy execution engine's HTTP API: session
// start/poll/stop plus SSE and websocket event streams.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/barsource"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/config"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/server"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/session"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/strategystore"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cmd := &cli.Command{
		Name:  "engine",
		Usage: "Condition-graph strategy execution engine",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the HTTP API server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the engine config YAML; defaults apply when omitted",
					},
					&cli.StringFlag{
						Name:    "bind",
						Aliases: []string{"b"},
						Usage:   "Listen address override (host:port)",
					},
				},
				Action: serveAction,
			},
			{
				Name:  "schema",
				Usage: "Write the engine config JSON schema and a sample config",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "dir",
						Aliases: []string{"d"},
						Usage:   "Directory to write schema and sample config into",
						Value:   "config",
					},
				},
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// serveAction wires config, bar source, strategy store, session manager and
// HTTP server, then blocks until SIGINT/SIGTERM.
func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	if bind := cmd.String("bind"); bind != "" {
		cfg.Server.Bind = bind
	}

	appLogger, err := logger.NewLoggerWithLevel(logger.ParseLevel(cfg.LogLevel))
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer appLogger.Sync()

	source, err := openBarSource(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer source.Close()

	store := openStrategyStore(cfg)
	manager := session.NewManager(cfg, store, source, appLogger)
	api := server.New(cfg, manager, appLogger)

	if err := api.Start(""); err != nil {
		return err
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-runCtx.Done()

	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := api.Stop(shutdownCtx); err != nil {
		appLogger.Error("http shutdown failed", zap.Error(err))
	}

	if err := manager.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("session shutdown incomplete", zap.Error(err))

		return err
	}

	return nil
}

// schemaAction writes the config JSON schema next to a sample YAML config, so
// editors with a yaml-language-server pick up completion for the config file.
func schemaAction(_ context.Context, cmd *cli.Command) error {
	dir := cmd.String("dir")

	cfg := config.DefaultConfig()

	schemaJSON, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	schemaName := "engine-config.json"
	schemaPath := filepath.Join(dir, schemaName)

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0o644); err != nil {
		return fmt.Errorf("failed to write schema: %w", err)
	}

	samplePath := filepath.Join(dir, "engine-config.yaml")
	if _, err := os.Stat(samplePath); os.IsNotExist(err) {
		yamlBytes, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal sample config: %w", err)
		}

		yamlBytes = append([]byte("# yaml-language-server: $schema="+schemaName+"\n"), yamlBytes...)

		if err := os.WriteFile(samplePath, yamlBytes, 0o644); err != nil {
			return fmt.Errorf("failed to write sample config: %w", err)
		}

		log.Printf("Sample config generated at %s", samplePath)
	}

	log.Printf("Schema generated at %s", schemaPath)

	return nil
}

func loadConfig(path string) (*config.EngineConfig, error) {
	if path == "" {
		cfg := config.DefaultConfig()

		return &cfg, nil
	}

	return config.LoadFile(path)
}

// openBarSource builds the configured bar store backend. Validation already
// guaranteed exactly one backend is set.
func openBarSource(ctx context.Context, cfg *config.EngineConfig, log *logger.Logger) (barsource.Source, error) {
	if cfg.Data.DuckDBPath.IsSome() {
		return barsource.NewDuckDBSource(cfg.Data.DuckDBPath.Unwrap(), log)
	}

	return barsource.NewClickHouseSource(ctx, cfg.Data.ClickHouseDSN.Unwrap(), log)
}

func openStrategyStore(cfg *config.EngineConfig) strategystore.Store {
	if cfg.Strategies.Dir.IsSome() {
		return strategystore.NewDirStore(cfg.Strategies.Dir.Unwrap())
	}

	return strategystore.NewHTTPStore(cfg.Strategies.HTTPBase.Unwrap(), 10*time.Second)
}
