package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/graph"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

// openPosition pairs an open position with the step it was filled on, so the
// resulting trade can report its holding length in bars.
type openPosition struct {
	position   *types.Position
	openedStep int64
}

// entryState tracks one entry node through the session. used never
// decrements, which is what makes EXHAUSTED sticky.
type entryState struct {
	node *graph.Node
	// used counts every position this node has opened, the first entry
	// included.
	used int
	// open holds the node's currently open positions in fill order.
	open []*openPosition
}

// budget is the node's entry cap. Load-time validation guarantees a value.
func (s *entryState) budget() int {
	return s.node.Data.MaxEntries.TakeOr(1)
}

// exhausted reports whether the entry budget is spent.
func (s *entryState) exhausted() bool {
	return s.used >= s.budget()
}

// current derives the published node state. A spent budget reports EXHAUSTED
// even while the final position is still open; exits act on open positions,
// not on node states, so nothing is lost.
func (s *entryState) current() types.NodeState {
	switch {
	case s.exhausted():
		return types.NodeStateExhausted
	case len(s.open) > 0:
		return types.NodeStateActive
	default:
		return types.NodeStateIdle
	}
}

// remove drops one position from the open book, preserving fill order.
func (s *entryState) remove(positionID string) {
	kept := s.open[:0]

	for _, open := range s.open {
		if open.position.PositionID != positionID {
			kept = append(kept, open)
		}
	}

	s.open = kept
}

// openBoundTo collects the open positions an exit node guards, in entry
// binding order then fill order. Both orders are deterministic, so close
// sequences replay identically.
func (d *Driver) openBoundTo(exitID string) []*openPosition {
	var bound []*openPosition

	for _, entryID := range d.graph.ExitBindings(exitID) {
		state, ok := d.entries[entryID]
		if !ok {
			continue
		}

		bound = append(bound, state.open...)
	}

	return bound
}

// tradeFrom derives the round-trip record of a just-closed position.
func (d *Driver) tradeFrom(position *types.Position, openedStep int64, cutoff bool) types.Trade {
	return types.Trade{
		TradeID:     d.tradeID(position.PositionID),
		PositionID:  position.PositionID,
		EntryNodeID: position.EntryNodeID,
		ExitNodeID:  position.ExitNodeID,
		ReEntryNum:  position.ReEntryNum,
		Symbol:      position.Symbol,
		Side:        position.Side,
		OptionType:  position.OptionType,
		Quantity:    position.Quantity,
		Multiplier:  position.Multiplier,
		Scale:       position.Scale,
		EntryTime:   position.EntryTime,
		EntryPrice:  position.EntryPrice,
		ExitTime:    position.ExitTime.TakeOr(d.now),
		ExitPrice:   position.ExitPrice.TakeOr(0),
		HoldingBars: d.stepIndex - openedStep,
		PnL:         position.PnL.TakeOr(0),
		CutoffClose: cutoff,
	}
}

// stepEvent builds the next event of the session's ordered stream, stamped
// with the current step.
func (d *Driver) stepEvent(kind types.EventKind, node *graph.Node) types.Event {
	event := d.nextEvent(kind)
	event.StepIndex = d.stepIndex
	event.NodeID = node.ID
	event.NodeType = string(node.Type)

	return event
}

// lifecycleEvent builds an event outside the step loop (session start/end,
// cutoff closes); its step index is -1.
func (d *Driver) lifecycleEvent(kind types.EventKind, message string) types.Event {
	event := d.nextEvent(kind)
	event.StepIndex = -1
	event.Message = message

	return event
}

func (d *Driver) nextEvent(kind types.EventKind) types.Event {
	d.eventSeq++

	return types.Event{
		ID:        d.eventID(d.eventSeq),
		SessionID: d.cfg.SessionID,
		Seq:       d.eventSeq,
		Time:      d.now,
		Kind:      kind,
	}
}

// emit appends one event to the sink and fans it out to the session's
// subscriber callback.
func (d *Driver) emit(event types.Event) error {
	if err := d.sink.WriteEvent(event); err != nil {
		return err
	}

	if d.callbacks.OnEvent != nil {
		d.callbacks.OnEvent(event)
	}

	return nil
}

// Identifiers are name-based UUIDs derived from the session id and a stable
// path, so replaying a session reproduces every id and with it the output
// bytes.

func (d *Driver) eventID(seq int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/event/%d", d.cfg.SessionID, seq))).String()
}

func (d *Driver) positionID(entryNodeID string, reEntryNum int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/position/%s/%d", d.cfg.SessionID, entryNodeID, reEntryNum))).String()
}

func (d *Driver) tradeID(positionID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/trade/%s", d.cfg.SessionID, positionID))).String()
}
