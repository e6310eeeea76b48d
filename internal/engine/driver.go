// Package engine drives one strategy graph over one bar range: the step
// loop, the entry-node state machine, position fills with P&L, and the
// diagnostic event stream. One Driver serves one session; drivers never
// share mutable state, so sessions are isolated by construction.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/barsource"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/eval"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/graph"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/market"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/output"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// Costs is the flat per-trade cost model subtracted from each round trip.
type Costs struct {
	Slippage   float64
	Commission float64
}

// Config parameterizes one driver run.
type Config struct {
	// SessionID scopes every output record. Replaying with the same session id
	// over the same graph and bars reproduces the output byte for byte.
	SessionID  string
	StrategyID string
	Mode       types.SessionMode
	// From/To bound the replay, both inclusive.
	From time.Time
	To   time.Time
	// SpeedMultiplier scales LIVE_SIM pacing; ignored for backtests.
	SpeedMultiplier float64
	Costs           Costs
}

// Callbacks are optional per-run hooks. Both are invoked from the step
// goroutine and must not block.
type Callbacks struct {
	// OnEvent receives every diagnostic event after it reached the sink.
	OnEvent func(event types.Event)
	// OnProgress is called once per completed step.
	OnProgress func(completed int64, total int64)
}

// Driver replays one strategy over one data range. Construct with NewDriver,
// run once with Run. Snapshot and Metrics are safe to call from other
// goroutines at any time.
type Driver struct {
	cfg       Config
	graph     *graph.Graph
	source    barsource.Source
	cache     *market.Cache
	sink      output.Sink
	evaluator *eval.Evaluator
	log       *logger.Logger
	callbacks Callbacks

	snapshot atomic.Pointer[types.Snapshot]
	metrics  atomic.Pointer[types.Metrics]

	// Step-loop state below is owned by the Run goroutine.
	entries    map[string]*entryState
	entryOrder []string
	parked     map[string]bool
	trades     []types.Trade
	counters   types.Counters
	eventSeq   int64
	stepIndex  int64
	totalSteps int64
	now        time.Time
	lastBar    types.Bar
	hasBar     bool
	startedAt  time.Time
}

// NewDriver wires a driver for one session. The cache must already be backed
// by a registry that knows every indicator the graph declares; series are
// ensured and filled by Run.
func NewDriver(
	cfg Config,
	g *graph.Graph,
	source barsource.Source,
	cache *market.Cache,
	sink output.Sink,
	log *logger.Logger,
	callbacks Callbacks,
) (*Driver, error) {
	if cfg.SessionID == "" {
		return nil, errors.New(errors.ErrCodeEngineInitFailed, "session id is required")
	}

	if !cfg.Mode.IsValid() {
		return nil, errors.Newf(errors.ErrCodeEngineInitFailed, "unsupported session mode %q", cfg.Mode)
	}

	if cfg.To.Before(cfg.From) {
		return nil, errors.Newf(errors.ErrCodeEngineInitFailed,
			"replay range ends (%s) before it starts (%s)",
			cfg.To.Format(time.RFC3339), cfg.From.Format(time.RFC3339))
	}

	if cfg.Mode == types.SessionModeLiveSim && cfg.SpeedMultiplier <= 0 {
		return nil, errors.Newf(errors.ErrCodeEngineInitFailed,
			"live simulation requires a positive speed multiplier, got %v", cfg.SpeedMultiplier)
	}

	d := &Driver{
		cfg:       cfg,
		graph:     g,
		source:    source,
		cache:     cache,
		sink:      sink,
		evaluator: eval.NewEvaluator(eval.NewResolver(cache, g), log),
		log:       log,
		callbacks: callbacks,
		entries:   make(map[string]*entryState),
		now:       cfg.From,
	}

	for _, node := range g.NodesOfType(graph.NodeTypeEntry) {
		d.entries[node.ID] = &entryState{node: node}
		d.entryOrder = append(d.entryOrder, node.ID)
	}

	d.publish(types.SessionStatusRunning, "")

	return d, nil
}

// Run executes the replay until the range is exhausted, the context is
// cancelled (cooperative stop) or a fatal error aborts the session. The
// in-flight step always completes; open positions are closed at cutoff on
// every non-error shutdown so the output never carries half a step.
func (d *Driver) Run(ctx context.Context) error {
	d.startedAt = time.Now().UTC()

	execution, secondaries, err := d.loadSeries(ctx)
	if err != nil {
		return d.fail(err)
	}

	d.totalSteps = int64(len(execution))

	d.log.Info("session replay starting",
		zap.String("session_id", d.cfg.SessionID),
		zap.String("strategy_id", d.cfg.StrategyID),
		zap.String("mode", string(d.cfg.Mode)),
		zap.Int64("total_steps", d.totalSteps),
	)

	started := d.lifecycleEvent(types.EventKindSessionStarted,
		fmt.Sprintf("replaying %d bars of %s/%s", d.totalSteps, d.graph.Symbol, d.graph.Timeframe))
	if err := d.emit(started); err != nil {
		return d.fail(err)
	}

	d.publish(types.SessionStatusRunning, "")

	for i, bar := range execution {
		if ctx.Err() != nil {
			return d.shutdown(types.SessionStatusStopped, types.EventKindSessionStopped, "session stopped")
		}

		if err := d.step(bar, secondaries); err != nil {
			return d.fail(err)
		}

		d.stepIndex++
		d.counters.BarsProcessed++
		d.publish(types.SessionStatusRunning, "")

		if d.callbacks.OnProgress != nil {
			d.callbacks.OnProgress(d.stepIndex, d.totalSteps)
		}

		if d.cfg.Mode == types.SessionModeLiveSim && i+1 < len(execution) {
			if err := d.pace(ctx, bar.Time, execution[i+1].Time); err != nil {
				return d.shutdown(types.SessionStatusStopped, types.EventKindSessionStopped, "session stopped")
			}
		}
	}

	return d.shutdown(types.SessionStatusCompleted, types.EventKindSessionFinished, "data range exhausted")
}

// Snapshot returns the most recently committed session snapshot. Readers
// never block the step loop.
func (d *Driver) Snapshot() *types.Snapshot {
	return d.snapshot.Load()
}

// Metrics returns the most recently computed session metrics, zero before the
// first trade closes.
func (d *Driver) Metrics() types.Metrics {
	if m := d.metrics.Load(); m != nil {
		return *m
	}

	return types.Metrics{}
}

// seriesCursor walks one secondary instrument's bars as the execution clock
// passes their timestamps.
type seriesCursor struct {
	bars []types.Bar
	next int
}

// loadSeries ensures every instrument the graph requires and fetches its bars
// for the replay range. The first requirement is always the execution
// instrument, which drives the clock; the rest are appended as the clock
// reaches them.
func (d *Driver) loadSeries(ctx context.Context) ([]types.Bar, []*seriesCursor, error) {
	var (
		execution   []types.Bar
		secondaries []*seriesCursor
	)

	for i, req := range d.graph.Requirements() {
		if err := d.cache.Ensure(req.Symbol, req.Timeframe, req.Specs); err != nil {
			return nil, nil, err
		}

		bars, err := d.source.Bars(ctx, req.Symbol, req.Timeframe, d.cfg.From, d.cfg.To)
		if err != nil {
			return nil, nil, err
		}

		d.log.Debug("series loaded",
			zap.String("session_id", d.cfg.SessionID),
			zap.String("symbol", req.Symbol),
			zap.String("timeframe", string(req.Timeframe)),
			zap.Int("bars", len(bars)),
		)

		if i == 0 {
			execution = bars

			continue
		}

		secondaries = append(secondaries, &seriesCursor{bars: bars})
	}

	if len(execution) == 0 {
		d.log.Warn("execution series is empty, session will complete with zero steps",
			zap.String("session_id", d.cfg.SessionID),
			zap.String("symbol", d.graph.Symbol),
			zap.String("timeframe", string(d.graph.Timeframe)),
		)
	}

	return execution, secondaries, nil
}

// pace sleeps the scaled step interval between LIVE_SIM steps. The interval
// is the distance to the next bar, clamped to one timeframe so session gaps
// (overnight, weekends) do not stall the replay.
func (d *Driver) pace(ctx context.Context, current, next time.Time) error {
	interval := next.Sub(current)
	if limit := d.graph.Timeframe.Duration(); interval > limit {
		interval = limit
	}

	timer := time.NewTimer(time.Duration(float64(interval) / d.cfg.SpeedMultiplier))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// shutdown finalizes a non-error run: cutoff-close whatever is still open,
// refresh metrics, flush the sink and commit the terminal snapshot.
func (d *Driver) shutdown(status types.SessionStatus, kind types.EventKind, message string) error {
	if err := d.closeAtCutoff(); err != nil {
		return d.fail(err)
	}

	if err := d.refreshMetrics(); err != nil {
		return d.fail(err)
	}

	if err := d.emit(d.lifecycleEvent(kind, message)); err != nil {
		return d.fail(err)
	}

	if err := d.sink.Flush(); err != nil {
		return d.fail(err)
	}

	d.publish(status, "")

	d.log.Info("session finished",
		zap.String("session_id", d.cfg.SessionID),
		zap.String("status", string(status)),
		zap.Int64("steps", d.stepIndex),
		zap.Int("trades", len(d.trades)),
	)

	return nil
}

// fail aborts the session with ERROR status. Output flushed so far stays on
// disk: partial results of an aborted session remain inspectable.
func (d *Driver) fail(cause error) error {
	d.log.Error("session aborted",
		zap.String("session_id", d.cfg.SessionID),
		zap.Error(cause),
	)

	event := d.lifecycleEvent(types.EventKindSessionError, cause.Error())
	if err := d.emit(event); err != nil {
		d.log.Error("failed to record session error event", zap.Error(err))
	}

	if err := d.sink.Flush(); err != nil {
		d.log.Error("failed to flush output after abort", zap.Error(err))
	}

	d.publish(types.SessionStatusError, cause.Error())

	return cause
}

// publish commits an immutable snapshot of the session. Pollers read it
// lock-free and never observe a partially applied step.
func (d *Driver) publish(status types.SessionStatus, reason string) {
	snap := &types.Snapshot{
		SessionID:        d.cfg.SessionID,
		StrategyID:       d.cfg.StrategyID,
		Mode:             d.cfg.Mode,
		Status:           status,
		StartedAt:        d.startedAt,
		CurrentTimestamp: d.now,
		StepIndex:        d.stepIndex,
		TotalSteps:       d.totalSteps,
		NodeStates:       make(map[string]types.NodeState, len(d.entryOrder)),
		Counters:         d.counters,
		LastEventSeq:     d.eventSeq,
		Error:            reason,
	}

	if m := d.metrics.Load(); m != nil {
		snap.RealizedPnL = m.PnL.NetPnL
	}

	if d.cfg.Mode == types.SessionModeLiveSim {
		snap.SpeedMultiplier = d.cfg.SpeedMultiplier
	}

	if d.totalSteps > 0 {
		snap.Progress = float64(d.stepIndex) / float64(d.totalSteps) * 100
	}

	for _, id := range d.entryOrder {
		state := d.entries[id]
		snap.NodeStates[id] = state.current()

		for _, open := range state.open {
			snap.OpenPositions = append(snap.OpenPositions, *open.position)
		}
	}

	d.snapshot.Store(snap)
}
