package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/barsource"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/config"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/output"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/strategystore"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// momentumStrategy is a minimal valid document: buy when close > 100, exit
// when close < 5, one entry.
const momentumStrategy = `{
  "schemaVersion": "1.4.0",
  "strategyId": "momentum",
  "symbol": "NIFTY",
  "timeframe": "1m",
  "nodes": [
    {"id": "start", "type": "start", "data": {}},
    {"id": "sig", "type": "entrySignal", "data": {"conditions": {"logic": "AND", "conditions": [
      {"lhs": {"kind": "marketField", "field": "close"}, "operator": ">", "rhs": {"kind": "constant", "value": 100}}
    ]}}},
    {"id": "leg", "type": "entry", "data": {"maxEntries": 1, "side": "BUY", "quantity": 1}},
    {"id": "close-leg", "type": "exit", "data": {"conditions": {"logic": "AND", "conditions": [
      {"lhs": {"kind": "marketField", "field": "close"}, "operator": "<", "rhs": {"kind": "constant", "value": 5}}
    ]}}}
  ],
  "edges": [
    {"source": "start", "target": "sig"},
    {"source": "sig", "target": "leg"},
    {"source": "leg", "target": "close-leg"}
  ]
}`

type SessionTestSuite struct {
	suite.Suite
	manager *Manager
	cfg     config.EngineConfig
	day     time.Time
	root    string
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func (suite *SessionTestSuite) SetupTest() {
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.OutputPaths = []string{}
	zapLogger, err := zapConfig.Build()
	suite.Require().NoError(err)

	base := suite.T().TempDir()
	strategies := filepath.Join(base, "strategies")
	suite.Require().NoError(os.MkdirAll(strategies, 0755))
	suite.Require().NoError(os.WriteFile(filepath.Join(strategies, "momentum.json"), []byte(momentumStrategy), 0644))

	suite.root = filepath.Join(base, "output")
	suite.day = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	source := barsource.NewMemorySource()
	start := suite.day.Add(9*time.Hour + 15*time.Minute)

	for i, c := range []float64{10, 105, 1, 10} {
		source.Add(types.Bar{
			Symbol:    "NIFTY",
			Timeframe: types.Timeframe1m,
			Time:      start.Add(time.Duration(i) * time.Minute),
			Open:      c - 1,
			High:      c + 1,
			Low:       c - 2,
			Close:     c,
			Volume:    100,
		})
	}

	suite.cfg = config.DefaultConfig()
	suite.cfg.Output.Root = suite.root
	suite.cfg.Session.EventBuffer = 64

	suite.manager = NewManager(&suite.cfg, strategystore.NewDirStore(strategies), source, &logger.Logger{Logger: zapLogger})
}

func (suite *SessionTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	suite.NoError(suite.manager.Shutdown(ctx))
}

func (suite *SessionTestSuite) waitTerminal(sessionID string) *types.Snapshot {
	deadline := time.Now().Add(5 * time.Second)

	for {
		snap, err := suite.manager.Snapshot(sessionID)
		suite.Require().NoError(err)

		if snap.Status.IsTerminal() {
			return snap
		}

		suite.Require().True(time.Now().Before(deadline), "session %s still %s", sessionID, snap.Status)
		time.Sleep(2 * time.Millisecond)
	}
}

func (suite *SessionTestSuite) backtestWindow() (time.Time, time.Time) {
	return suite.day, suite.day.Add(24 * time.Hour)
}

func (suite *SessionTestSuite) TestBacktestLifecycle() {
	from, to := suite.backtestWindow()

	id, err := suite.manager.StartBacktest(context.Background(), BacktestRequest{
		StrategyID: "momentum",
		From:       from,
		To:         to,
	})
	suite.Require().NoError(err)
	suite.Require().NotEmpty(id)

	snap := suite.waitTerminal(id)
	suite.Equal(types.SessionStatusCompleted, snap.Status)
	suite.Equal("momentum", snap.StrategyID)
	suite.Equal(types.SessionModeBacktest, snap.Mode)
	suite.Equal(1, snap.Counters.EntriesOpened)
	suite.Equal(1, snap.Counters.ExitsClosed)

	dir, err := suite.manager.OutputDir(id)
	suite.Require().NoError(err)
	suite.Equal(output.SessionDir(suite.root, "momentum", id), dir)

	raw, err := os.ReadFile(filepath.Join(dir, output.TradesFile))
	suite.Require().NoError(err)

	var trades []types.Trade
	suite.Require().NoError(json.Unmarshal(raw, &trades))
	suite.Require().Len(trades, 1)
	suite.Equal("leg", trades[0].EntryNodeID)
}

func (suite *SessionTestSuite) TestUnknownStrategy() {
	from, to := suite.backtestWindow()

	_, err := suite.manager.StartBacktest(context.Background(), BacktestRequest{
		StrategyID: "missing",
		From:       from,
		To:         to,
	})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyNotFound))
}

func (suite *SessionTestSuite) TestInvalidGraphRejected() {
	broken := `{"schemaVersion": "1.4.0", "symbol": "NIFTY", "timeframe": "1m", "nodes": [], "edges": []}`
	path := filepath.Join(filepath.Dir(suite.root), "strategies", "broken.json")
	suite.Require().NoError(os.WriteFile(path, []byte(broken), 0644))

	from, to := suite.backtestWindow()

	_, err := suite.manager.StartBacktest(context.Background(), BacktestRequest{
		StrategyID: "broken",
		From:       from,
		To:         to,
	})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidGraph))

	// A rejected request leaves no session behind.
	suite.Empty(suite.manager.List())
}

func (suite *SessionTestSuite) TestRequestValidation() {
	from, to := suite.backtestWindow()

	_, err := suite.manager.StartBacktest(context.Background(), BacktestRequest{StrategyID: "momentum"})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = suite.manager.StartBacktest(context.Background(), BacktestRequest{
		StrategyID: "momentum",
		From:       to,
		To:         from,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = suite.manager.StartBacktest(context.Background(), BacktestRequest{
		StrategyID: "momentum",
		Symbols:    []string{"BANKNIFTY"},
		From:       from,
		To:         to,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = suite.manager.StartBacktest(context.Background(), BacktestRequest{
		StrategyID: "momentum",
		Timeframe:  types.Timeframe5m,
		From:       from,
		To:         to,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = suite.manager.StartLiveSim(context.Background(), LiveSimRequest{StrategyID: "momentum"})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = suite.manager.StartLiveSim(context.Background(), LiveSimRequest{
		StrategyID:      "momentum",
		Day:             suite.day,
		SpeedMultiplier: suite.cfg.Session.MaxSpeedMultiplier + 1,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))

	_, err = suite.manager.StartLiveSim(context.Background(), LiveSimRequest{
		StrategyID:      "momentum",
		Day:             suite.day,
		Timeframe:       types.Timeframe15m,
		SpeedMultiplier: 1,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *SessionTestSuite) TestLookupUnknownSession() {
	_, err := suite.manager.Snapshot("nope")
	suite.True(errors.HasCode(err, errors.ErrCodeSessionNotFound))

	suite.True(errors.HasCode(suite.manager.Stop("nope"), errors.ErrCodeSessionNotFound))

	_, _, err = suite.manager.Subscribe("nope")
	suite.True(errors.HasCode(err, errors.ErrCodeSessionNotFound))
}

func (suite *SessionTestSuite) TestLiveSimStopAndStream() {
	// Speed 1 paces a 1m-bar day in real time, so the session stays RUNNING
	// until stopped.
	id, err := suite.manager.StartLiveSim(context.Background(), LiveSimRequest{
		StrategyID:      "momentum",
		Day:             suite.day.Add(3 * time.Hour), // time of day is ignored
		SpeedMultiplier: 1,
	})
	suite.Require().NoError(err)

	events, cancel, err := suite.manager.Subscribe(id)
	suite.Require().NoError(err)
	defer cancel()

	collected := make(chan []types.Event, 1)

	go func() {
		var all []types.Event
		for event := range events {
			all = append(all, event)
		}

		collected <- all
	}()

	// Wait for the first step to land so the stop happens mid-session.
	deadline := time.Now().Add(5 * time.Second)

	for {
		snap, err := suite.manager.Snapshot(id)
		suite.Require().NoError(err)

		if snap.StepIndex >= 1 {
			suite.Equal(types.SessionStatusRunning, snap.Status)
			suite.Equal(1.0, snap.SpeedMultiplier)

			break
		}

		suite.Require().True(time.Now().Before(deadline), "first step never landed")
		time.Sleep(2 * time.Millisecond)
	}

	suite.Require().NoError(suite.manager.Stop(id))

	snap := suite.waitTerminal(id)
	suite.Equal(types.SessionStatusStopped, snap.Status)

	// The hub closes once the driver goroutine finishes, ending the stream.
	select {
	case all := <-collected:
		stopped := false

		for _, event := range all {
			if event.Kind == types.EventKindSessionStopped {
				stopped = true
			}
		}

		suite.True(stopped, "subscriber should observe the stop event")
	case <-time.After(5 * time.Second):
		suite.Fail("event stream never closed")
	}

	// A second stop is a no-op error, and late subscribers get a closed
	// stream immediately.
	suite.True(errors.HasCode(suite.manager.Stop(id), errors.ErrCodeSessionNotRunning))

	late, lateCancel, err := suite.manager.Subscribe(id)
	suite.Require().NoError(err)
	defer lateCancel()

	_, open := <-late
	suite.False(open)
}

func (suite *SessionTestSuite) TestConcurrencyLimit() {
	suite.cfg.Session.MaxConcurrent = 1

	blocker, err := suite.manager.StartLiveSim(context.Background(), LiveSimRequest{
		StrategyID:      "momentum",
		Day:             suite.day,
		SpeedMultiplier: 1,
	})
	suite.Require().NoError(err)

	from, to := suite.backtestWindow()

	_, err = suite.manager.StartBacktest(context.Background(), BacktestRequest{
		StrategyID: "momentum",
		From:       from,
		To:         to,
	})
	suite.Require().Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeSessionLimitReached))

	suite.Require().NoError(suite.manager.Stop(blocker))
	suite.waitTerminal(blocker)

	// Finished sessions stay pollable but release their slot.
	id, err := suite.manager.StartBacktest(context.Background(), BacktestRequest{
		StrategyID: "momentum",
		From:       from,
		To:         to,
	})
	suite.Require().NoError(err)
	suite.waitTerminal(id)

	suite.Len(suite.manager.List(), 2)
}

func (suite *SessionTestSuite) TestListPreservesStartOrder() {
	from, to := suite.backtestWindow()

	first, err := suite.manager.StartBacktest(context.Background(), BacktestRequest{
		StrategyID: "momentum",
		From:       from,
		To:         to,
	})
	suite.Require().NoError(err)
	suite.waitTerminal(first)

	second, err := suite.manager.StartBacktest(context.Background(), BacktestRequest{
		StrategyID: "momentum",
		From:       from,
		To:         to,
	})
	suite.Require().NoError(err)
	suite.waitTerminal(second)

	list := suite.manager.List()
	suite.Require().Len(list, 2)
	suite.Equal(first, list[0].SessionID)
	suite.Equal(second, list[1].SessionID)
}

func (suite *SessionTestSuite) TestDefaultSpeedApplied() {
	id, err := suite.manager.StartLiveSim(context.Background(), LiveSimRequest{
		StrategyID: "momentum",
		Day:        suite.day,
	})
	suite.Require().NoError(err)

	snap, err := suite.manager.Snapshot(id)
	suite.Require().NoError(err)
	suite.Equal(suite.cfg.Session.DefaultSpeedMultiplier, snap.SpeedMultiplier)

	suite.Require().NoError(suite.manager.Stop(id))
	suite.waitTerminal(id)
}

func (suite *SessionTestSuite) TestHubDropsOldestForSlowSubscriber() {
	h := newHub(2)

	events, cancel := h.subscribe()
	defer cancel()

	for seq := int64(1); seq <= 5; seq++ {
		h.publish(types.Event{Seq: seq})
	}

	// Buffer of two keeps only the newest two events.
	first := <-events
	second := <-events
	suite.Equal(int64(4), first.Seq)
	suite.Equal(int64(5), second.Seq)

	select {
	case extra := <-events:
		suite.Failf("unexpected buffered event", "seq %d", extra.Seq)
	default:
	}

	h.close()

	_, open := <-events
	suite.False(open)

	lateEvents, lateCancel := h.subscribe()
	defer lateCancel()

	_, open = <-lateEvents
	suite.False(open)
}
