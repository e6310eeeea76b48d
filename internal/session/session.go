// Package session owns the lifecycle of engine sessions: starting a driver
// per request, one goroutine per session, polling published snapshots,
// cooperative stops and event stream fan-out. Sessions share nothing mutable;
// each gets its own market cache, sink and driver, reading from a shared
// read-only bar source.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/barsource"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/config"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/engine"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/graph"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/indicator"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/market"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/output"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/strategystore"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// BacktestRequest asks for a full-speed replay of a date range.
type BacktestRequest struct {
	StrategyID string
	// Symbols optionally cross-checks the strategy's execution instrument;
	// a request naming symbols the strategy does not trade is rejected.
	Symbols []string
	// Timeframe optionally cross-checks the strategy's declared timeframe.
	Timeframe types.Timeframe
	From      time.Time
	To        time.Time
}

// LiveSimRequest asks for a real-time-scaled replay of one stored day.
type LiveSimRequest struct {
	StrategyID string
	// Day is the trading day to replay; the time of day is ignored.
	Day time.Time
	// Timeframe optionally cross-checks the strategy's declared timeframe.
	Timeframe types.Timeframe
	// SpeedMultiplier scales the replay speed; 0 uses the configured default.
	SpeedMultiplier float64
}

// session pairs a running driver with its stream hub and output sink.
type session struct {
	id     string
	driver *engine.Driver
	hub    *hub
	sink   output.Sink
	dir    string
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager starts, tracks and stops sessions. All methods are safe for
// concurrent use; polling reads the driver's lock-free snapshot.
type Manager struct {
	cfg    *config.EngineConfig
	store  strategystore.Store
	source barsource.Source
	log    *logger.Logger

	mu       sync.Mutex
	sessions map[string]*session
	order    []string
}

// NewManager creates a manager over a shared bar source and strategy store.
func NewManager(cfg *config.EngineConfig, store strategystore.Store, source barsource.Source, log *logger.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    store,
		source:   source,
		log:      log,
		mu:       sync.Mutex{},
		sessions: make(map[string]*session),
		order:    nil,
	}
}

// StartBacktest fetches and validates the strategy, then launches a BACKTEST
// session over [req.From, req.To]. The returned session id is immediately
// pollable.
func (m *Manager) StartBacktest(ctx context.Context, req BacktestRequest) (string, error) {
	if req.From.IsZero() || req.To.IsZero() {
		return "", errors.New(errors.ErrCodeInvalidParameter, "backtest requires both from and to")
	}

	if req.To.Before(req.From) {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "backtest range ends (%s) before it starts (%s)",
			req.To.Format(time.RFC3339), req.From.Format(time.RFC3339))
	}

	g, err := m.loadGraph(ctx, req.StrategyID)
	if err != nil {
		return "", err
	}

	if err := checkInstrument(g, req.Symbols, req.Timeframe); err != nil {
		return "", err
	}

	return m.launch(g, engine.Config{
		SessionID:       uuid.NewString(),
		StrategyID:      req.StrategyID,
		Mode:            types.SessionModeBacktest,
		From:            req.From,
		To:              req.To,
		SpeedMultiplier: 0,
		Costs:           m.costs(),
	})
}

// StartLiveSim fetches and validates the strategy, then launches a LIVE_SIM
// session replaying the requested day at the requested speed.
func (m *Manager) StartLiveSim(ctx context.Context, req LiveSimRequest) (string, error) {
	if req.Day.IsZero() {
		return "", errors.New(errors.ErrCodeInvalidParameter, "live simulation requires a date")
	}

	speed := req.SpeedMultiplier
	if speed == 0 {
		speed = m.cfg.Session.DefaultSpeedMultiplier
	}

	if speed < 1 || speed > m.cfg.Session.MaxSpeedMultiplier {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "speed multiplier %v outside [1, %v]",
			speed, m.cfg.Session.MaxSpeedMultiplier)
	}

	g, err := m.loadGraph(ctx, req.StrategyID)
	if err != nil {
		return "", err
	}

	if err := checkInstrument(g, nil, req.Timeframe); err != nil {
		return "", err
	}

	day := req.Day.UTC().Truncate(24 * time.Hour)

	return m.launch(g, engine.Config{
		SessionID:       uuid.NewString(),
		StrategyID:      req.StrategyID,
		Mode:            types.SessionModeLiveSim,
		From:            day,
		To:              day.AddDate(0, 0, 1).Add(-time.Nanosecond),
		SpeedMultiplier: speed,
		Costs:           m.costs(),
	})
}

// Snapshot returns the most recent published snapshot for the session.
func (m *Manager) Snapshot(sessionID string) (*types.Snapshot, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	return s.driver.Snapshot(), nil
}

// List returns a snapshot per known session, in start order.
func (m *Manager) List() []*types.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshots := make([]*types.Snapshot, 0, len(m.order))
	for _, id := range m.order {
		snapshots = append(snapshots, m.sessions[id].driver.Snapshot())
	}

	return snapshots
}

// Stop requests a cooperative stop. The driver finishes its in-flight step,
// closes open positions at the cutoff and flushes before going STOPPED.
func (m *Manager) Stop(sessionID string) error {
	s, err := m.lookup(sessionID)
	if err != nil {
		return err
	}

	if s.driver.Snapshot().Status.IsTerminal() {
		return errors.Newf(errors.ErrCodeSessionNotRunning, "session %s has already finished", sessionID)
	}

	s.cancel()

	return nil
}

// Subscribe attaches to the session's live event stream. The returned cancel
// function must be called when the consumer goes away. Subscribing to a
// finished session yields an already-closed channel.
func (m *Manager) Subscribe(sessionID string) (<-chan types.Event, func(), error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, nil, err
	}

	events, cancel := s.hub.subscribe()

	return events, cancel, nil
}

// OutputDir returns the directory the session writes its documents into.
func (m *Manager) OutputDir(sessionID string) (string, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return "", err
	}

	return s.dir, nil
}

// Shutdown stops every session and waits for their goroutines to exit, or
// until ctx is done.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()

	waits := make([]chan struct{}, 0, len(m.sessions))

	for _, s := range m.sessions {
		s.cancel()
		waits = append(waits, s.done)
	}

	m.mu.Unlock()

	for _, done := range waits {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// loadGraph fetches the strategy document and validates it into a graph.
// Error-severity findings reject the request before any session exists.
func (m *Manager) loadGraph(ctx context.Context, strategyID string) (*graph.Graph, error) {
	if strategyID == "" {
		return nil, errors.New(errors.ErrCodeInvalidParameter, "strategy id is required")
	}

	raw, err := m.store.Fetch(ctx, strategyID)
	if err != nil {
		return nil, err
	}

	g, findings, err := graph.Load(raw)
	if err != nil {
		return nil, err
	}

	if graph.HasErrors(findings) {
		messages := make([]string, 0, len(findings))
		for _, finding := range findings {
			messages = append(messages, finding.Error())
		}

		return nil, errors.Newf(errors.ErrCodeInvalidGraph, "strategy %s failed validation: %s",
			strategyID, strings.Join(messages, "; "))
	}

	for _, finding := range findings {
		m.log.Warn("strategy validation warning",
			zap.String("strategy_id", strategyID),
			zap.String("finding", finding.Error()),
		)
	}

	if g.StrategyID == "" {
		g.StrategyID = strategyID
	}

	return g, nil
}

// launch registers the session under the concurrency limit and starts its
// goroutine. The limit counts RUNNING sessions only; finished sessions stay
// pollable without holding a slot.
func (m *Manager) launch(g *graph.Graph, cfg engine.Config) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if running := m.runningLocked(); running >= m.cfg.Session.MaxConcurrent {
		return "", errors.Newf(errors.ErrCodeSessionLimitReached, "%d sessions already running (limit %d)",
			running, m.cfg.Session.MaxConcurrent)
	}

	dir := output.SessionDir(m.cfg.Output.Root, cfg.StrategyID, cfg.SessionID)

	var (
		sink output.Sink
		err  error
	)

	if cfg.Mode == types.SessionModeLiveSim {
		sink, err = output.NewIncrementalSink(dir)
	} else {
		sink, err = output.NewBatchSink(dir)
	}

	if err != nil {
		return "", err
	}

	streamHub := newHub(m.cfg.Session.EventBuffer)
	cache := market.NewCache(indicator.DefaultRegistry())

	driver, err := engine.NewDriver(cfg, g, m.source, cache, sink, m.log, engine.Callbacks{
		OnEvent:    streamHub.publish,
		OnProgress: nil,
	})
	if err != nil {
		sink.Close()

		return "", err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	s := &session{
		id:     cfg.SessionID,
		driver: driver,
		hub:    streamHub,
		sink:   sink,
		dir:    dir,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.sessions[cfg.SessionID] = s
	m.order = append(m.order, cfg.SessionID)

	m.log.Info("session started",
		zap.String("session_id", cfg.SessionID),
		zap.String("strategy_id", cfg.StrategyID),
		zap.String("mode", string(cfg.Mode)),
		zap.String("output_dir", dir),
	)

	go m.run(s, runCtx)

	return cfg.SessionID, nil
}

// run is the per-session goroutine: drive to completion, then release the
// sink and end the event stream.
func (m *Manager) run(s *session, ctx context.Context) {
	defer close(s.done)
	defer s.cancel()

	if err := s.driver.Run(ctx); err != nil {
		m.log.Error("session aborted",
			zap.String("session_id", s.id),
			zap.Error(err),
		)
	}

	if err := s.sink.Close(); err != nil {
		m.log.Error("failed to close session output",
			zap.String("session_id", s.id),
			zap.Error(err),
		)
	}

	s.hub.close()
}

func (m *Manager) lookup(sessionID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeSessionNotFound, "no session %s", sessionID)
	}

	return s, nil
}

// runningLocked counts non-terminal sessions. Callers hold the lock.
func (m *Manager) runningLocked() int {
	running := 0

	for _, s := range m.sessions {
		if !s.driver.Snapshot().Status.IsTerminal() {
			running++
		}
	}

	return running
}

func (m *Manager) costs() engine.Costs {
	return engine.Costs{
		Slippage:   m.cfg.Costs.Slippage,
		Commission: m.cfg.Costs.Commission,
	}
}

// checkInstrument rejects requests whose optional symbol/timeframe hints
// disagree with what the strategy actually trades.
func checkInstrument(g *graph.Graph, symbols []string, timeframe types.Timeframe) error {
	if len(symbols) > 0 {
		found := false

		for _, symbol := range symbols {
			if symbol == g.Symbol {
				found = true

				break
			}
		}

		if !found {
			return errors.Newf(errors.ErrCodeInvalidParameter, "strategy trades %s, not %s",
				g.Symbol, strings.Join(symbols, ","))
		}
	}

	if timeframe != "" && timeframe != g.Timeframe {
		return errors.Newf(errors.ErrCodeInvalidParameter, "strategy runs on %s bars, not %s",
			g.Timeframe, timeframe)
	}

	return nil
}
