package engine

import (
	"fmt"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/eval"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/graph"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

// step advances the session by one bar of the execution series. Order within
// a step is fixed: append data, evaluate exits, evaluate entry gates, then
// re-entry gates. An entry node whose position closed this step sits out the
// rest of the step and re-enters next bar at the earliest, unless the graph
// carries an explicit exit -> entry edge that re-arms it immediately.
func (d *Driver) step(bar types.Bar, secondaries []*seriesCursor) error {
	d.now = bar.Time
	d.parked = nil

	if err := d.cache.Append(bar); err != nil {
		return err
	}

	for _, cursor := range secondaries {
		for cursor.next < len(cursor.bars) && !cursor.bars[cursor.next].Time.After(bar.Time) {
			if err := d.cache.Append(cursor.bars[cursor.next]); err != nil {
				return err
			}

			cursor.next++
		}
	}

	if d.cfg.Mode == types.SessionModeLiveSim {
		// A stored day has no tick feed; synthesize one from the bar close so
		// ltp operands stay resolvable at simulation time. The tick is marked
		// bar-derived: bid/ask/volume/oi have no bar equivalent and must stay
		// unavailable rather than read as fabricated zeros.
		d.cache.SetTick(types.Tick{
			Symbol:     bar.Symbol,
			Time:       bar.Time,
			LTP:        bar.Close,
			BarDerived: true,
		})
	}

	d.lastBar = bar
	d.hasBar = true

	if err := d.evaluateExits(bar); err != nil {
		return err
	}

	if err := d.evaluateEntrySignals(bar); err != nil {
		return err
	}

	return d.evaluateReEntrySignals(bar)
}

// evaluateExits runs every exit node that currently guards at least one open
// position. A true condition closes all bound open positions at this bar's
// close.
func (d *Driver) evaluateExits(bar types.Bar) error {
	for _, node := range d.graph.NodesOfType(graph.NodeTypeExit) {
		open := d.openBoundTo(node.ID)
		if len(open) == 0 {
			continue
		}

		trace, err := d.evaluate(node)
		if err != nil {
			return err
		}

		if !trace.Result {
			continue
		}

		for _, position := range open {
			if err := d.closePosition(position, node, bar.Close, trace); err != nil {
				return err
			}
		}
	}

	return nil
}

// evaluateEntrySignals runs every entry gate whose entry node holds no open
// position. A gate firing on a spent budget is an expected steady state, not
// an error: it records an entry_skipped event and moves on.
func (d *Driver) evaluateEntrySignals(bar types.Bar) error {
	for _, node := range d.graph.NodesOfType(graph.NodeTypeEntrySignal) {
		entryID, ok := d.graph.BoundEntry(node.ID)
		if !ok {
			continue
		}

		state := d.entries[entryID]
		if len(state.open) > 0 || d.parked[entryID] {
			continue
		}

		trace, err := d.evaluate(node)
		if err != nil {
			return err
		}

		if !trace.Result {
			continue
		}

		if state.exhausted() {
			d.counters.EntriesSkipped++

			event := d.stepEvent(types.EventKindEntrySkipped, node)
			event.Message = fmt.Sprintf("entry budget spent (%d/%d), signal ignored", state.used, state.budget())

			if err := d.emit(event); err != nil {
				return err
			}

			continue
		}

		if err := d.openPosition(state, node, bar.Close, trace); err != nil {
			return err
		}
	}

	return nil
}

// evaluateReEntrySignals runs every re-entry gate whose target entry node is
// flat, has entered at least once before and still has budget left. Exhausted
// targets are terminal: the gate is not even evaluated.
func (d *Driver) evaluateReEntrySignals(bar types.Bar) error {
	for _, node := range d.graph.NodesOfType(graph.NodeTypeReEntrySignal) {
		entryID, ok := d.graph.ReEntryTarget(node.ID)
		if !ok {
			continue
		}

		state := d.entries[entryID]
		if len(state.open) > 0 || d.parked[entryID] || state.used == 0 || state.exhausted() {
			continue
		}

		trace, err := d.evaluate(node)
		if err != nil {
			return err
		}

		if !trace.Result {
			continue
		}

		if err := d.openPosition(state, node, bar.Close, trace); err != nil {
			return err
		}
	}

	return nil
}

// evaluate runs one node's condition group and records the evaluation event.
// Degraded leaves are surfaced as a data_degraded event; only a cache miss
// escapes as an error, which aborts the session.
func (d *Driver) evaluate(node *graph.Node) (eval.Trace, error) {
	trace, err := d.evaluator.Evaluate(node.Data.Conditions, d.now)
	if err != nil {
		return eval.Trace{}, err
	}

	d.counters.NodesEvaluated++

	event := d.stepEvent(types.EventKindNodeEvaluated, node)
	event.Result = optional.Some(trace.Result)
	event.Message = trace.Summary
	event.Detail = trace

	if err := d.emit(event); err != nil {
		return eval.Trace{}, err
	}

	if degraded := trace.DegradedLeaves(); len(degraded) > 0 {
		d.counters.DegradedLeaves += int64(len(degraded))

		event := d.stepEvent(types.EventKindDataDegraded, node)
		event.Message = fmt.Sprintf("%d condition leaf(s) resolved false on unavailable data", len(degraded))
		event.Detail = degraded

		if err := d.emit(event); err != nil {
			return eval.Trace{}, err
		}
	}

	return trace, nil
}

// openPosition fills a new position at the current bar close and transitions
// the entry node. Crossing the budget line emits the sticky node_exhausted
// transition exactly once.
func (d *Driver) openPosition(state *entryState, gate *graph.Node, fillPrice float64, trace eval.Trace) error {
	entry := state.node
	reEntryNum := state.used

	position := &types.Position{
		PositionID:  d.positionID(entry.ID, reEntryNum),
		EntryNodeID: entry.ID,
		ReEntryNum:  reEntryNum,
		Symbol:      d.graph.Symbol,
		Side:        entry.Data.Side,
		OptionType:  entry.Data.OptionType,
		EntryTime:   d.now,
		EntryPrice:  fillPrice,
		Quantity:    entry.Data.Quantity,
		Multiplier:  entry.Data.Multiplier,
		Scale:       entry.Data.Scale,
		Status:      types.PositionStatusOpen,
		EntryTrigger: types.TriggerSnapshot{
			NodeID:   gate.ID,
			Time:     d.now,
			Summary:  trace.Summary,
			Values:   trace.Values,
			Degraded: trace.DegradedLeaves(),
		},
	}

	state.used++
	state.open = append(state.open, &openPosition{position: position, openedStep: d.stepIndex})

	if reEntryNum == 0 {
		d.counters.EntriesOpened++
	} else {
		d.counters.ReEntriesOpened++
	}

	if err := d.sink.WritePosition(*position); err != nil {
		return err
	}

	event := d.stepEvent(types.EventKindPositionOpened, entry)
	event.Message = fmt.Sprintf("%s %v %s @ %v (entry %d/%d)",
		position.Side, position.Quantity, position.Symbol, fillPrice, state.used, state.budget())
	event.Detail = *position

	if err := d.emit(event); err != nil {
		return err
	}

	d.log.Debug("position opened",
		zap.String("session_id", d.cfg.SessionID),
		zap.String("position_id", position.PositionID),
		zap.String("entry_node", entry.ID),
		zap.Int("re_entry_num", reEntryNum),
		zap.Float64("price", fillPrice),
	)

	if state.exhausted() {
		event := d.stepEvent(types.EventKindNodeExhausted, entry)
		event.Message = fmt.Sprintf("entry budget spent (%d/%d)", state.used, state.budget())

		if err := d.emit(event); err != nil {
			return err
		}
	}

	return nil
}

// closePosition finalizes one position at the given exit fill. The position
// record is upserted, the round trip becomes a trade and metrics are
// recomputed so incremental sinks always show near-current totals.
func (d *Driver) closePosition(open *openPosition, exitNode *graph.Node, fillPrice float64, trace eval.Trace) error {
	position := open.position

	position.Status = types.PositionStatusClosed
	position.ExitTime = optional.Some(d.now)
	position.ExitPrice = optional.Some(fillPrice)
	position.ExitNodeID = exitNode.ID
	position.ExitTrigger = optional.Some(types.TriggerSnapshot{
		NodeID:   exitNode.ID,
		Time:     d.now,
		Summary:  trace.Summary,
		Values:   trace.Values,
		Degraded: trace.DegradedLeaves(),
	})

	pnl := types.ComputePnL(
		position.EntryPrice, fillPrice, position.Side,
		position.Quantity, position.Multiplier, position.Scale,
		d.cfg.Costs.Slippage, d.cfg.Costs.Commission,
	)
	position.PnL = optional.Some(pnl)

	d.entries[position.EntryNodeID].remove(position.PositionID)
	d.counters.ExitsClosed++

	// The node sits out the rest of this step so a close cannot silently
	// chain into a same-bar reopen. An explicit exit -> entry edge opts in.
	if !d.graph.HasEdge(exitNode.ID, position.EntryNodeID) {
		if d.parked == nil {
			d.parked = make(map[string]bool)
		}

		d.parked[position.EntryNodeID] = true
	}

	if err := d.sink.WritePosition(*position); err != nil {
		return err
	}

	trade := d.tradeFrom(position, open.openedStep, false)
	d.trades = append(d.trades, trade)

	if err := d.sink.WriteTrade(trade); err != nil {
		return err
	}

	if err := d.refreshMetrics(); err != nil {
		return err
	}

	event := d.stepEvent(types.EventKindPositionClosed, exitNode)
	event.Message = fmt.Sprintf("closed %s @ %v, pnl %v", position.PositionID, fillPrice, pnl)
	event.Detail = *position

	if err := d.emit(event); err != nil {
		return err
	}

	d.log.Debug("position closed",
		zap.String("session_id", d.cfg.SessionID),
		zap.String("position_id", position.PositionID),
		zap.String("exit_node", exitNode.ID),
		zap.Float64("price", fillPrice),
		zap.Float64("pnl", pnl),
	)

	return nil
}

// closeAtCutoff marks every still-open position to the last known price when
// the session ends. Cutoff closes are bookkeeping, not exit signals: they
// carry no exit trigger and do not count as exit closes.
func (d *Driver) closeAtCutoff() error {
	mark, ok := d.markPrice()

	for _, id := range d.entryOrder {
		state := d.entries[id]

		for _, open := range state.open {
			if !ok {
				d.log.Warn("no mark price for cutoff close, leaving position open",
					zap.String("position_id", open.position.PositionID))

				continue
			}

			position := open.position

			position.Status = types.PositionStatusClosedAtCutoff
			position.ExitTime = optional.Some(d.now)
			position.ExitPrice = optional.Some(mark)
			position.PnL = optional.Some(types.ComputePnL(
				position.EntryPrice, mark, position.Side,
				position.Quantity, position.Multiplier, position.Scale,
				d.cfg.Costs.Slippage, d.cfg.Costs.Commission,
			))

			if err := d.sink.WritePosition(*position); err != nil {
				return err
			}

			trade := d.tradeFrom(position, open.openedStep, true)
			d.trades = append(d.trades, trade)

			if err := d.sink.WriteTrade(trade); err != nil {
				return err
			}

			event := d.lifecycleEvent(types.EventKindPositionClosed,
				fmt.Sprintf("closed %s at cutoff @ %v", position.PositionID, mark))
			event.NodeID = position.EntryNodeID
			event.NodeType = string(graph.NodeTypeEntry)
			event.Detail = *position

			if err := d.emit(event); err != nil {
				return err
			}
		}

		state.open = nil
	}

	return nil
}

// markPrice is the price cutoff closes settle at: the freshest tick when one
// exists, otherwise the last appended close of the execution series.
func (d *Driver) markPrice() (float64, bool) {
	if tick, ok := d.cache.LastTick(d.graph.Symbol); ok {
		return tick.LTP, true
	}

	if d.hasBar {
		return d.lastBar.Close, true
	}

	return 0, false
}

// refreshMetrics recomputes session metrics from the trades so far. The
// generation timestamp is engine time, keeping replays reproducible.
func (d *Driver) refreshMetrics() error {
	metrics := types.ComputeMetrics(d.cfg.SessionID, d.cfg.StrategyID, d.now, d.trades)
	d.metrics.Store(&metrics)

	return d.sink.UpdateMetrics(metrics)
}
