package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// Side is the direction of a position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Direction returns +1 for a buy position and -1 for a sell position.
func (s Side) Direction() float64 {
	if s == SideSell {
		return -1
	}

	return 1
}

// IsValid reports whether the side is one of the supported values.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// OptionType distinguishes call/put legs for option instruments.
// Empty for non-option instruments.
type OptionType string

const (
	OptionTypeCall OptionType = "CE"
	OptionTypePut  OptionType = "PE"
	OptionTypeNone OptionType = ""
)

// PositionStatus is the lifecycle state of a position.
type PositionStatus string

const (
	// PositionStatusOpen means the position has been entered and not yet exited.
	PositionStatusOpen PositionStatus = "OPEN"
	// PositionStatusClosed means an exit condition closed the position.
	PositionStatusClosed PositionStatus = "CLOSED"
	// PositionStatusClosedAtCutoff means the session ended with the position
	// still open; it was marked to the last known price.
	PositionStatusClosedAtCutoff PositionStatus = "CLOSED_AT_CUTOFF"
)

// IsClosed reports whether the position has been finalized, either by an exit
// condition or by the end-of-session cutoff.
func (s PositionStatus) IsClosed() bool {
	return s == PositionStatusClosed || s == PositionStatusClosedAtCutoff
}

// TriggerSnapshot records the resolved operand values of the condition that
// opened or closed a position, so a trade is explainable after the fact
// without replaying the session.
type TriggerSnapshot struct {
	// NodeID is the signal/exit node whose condition fired.
	NodeID string `json:"node_id"`
	// Time is the engine timestamp at which the condition was evaluated.
	Time time.Time `json:"time"`
	// Summary is a one-line rendering of the condition with resolved values,
	// e.g. "rsi_14[-1] (28.43) < 30".
	Summary string `json:"summary,omitempty"`
	// Values maps operand descriptions to their resolved numeric values.
	Values map[string]float64 `json:"values,omitempty"`
	// Degraded lists operands that failed to resolve and were treated as
	// false leaves (insufficient history or type mismatch).
	Degraded []string `json:"degraded,omitempty"`
}

// Position is one entered leg owned by an entry node. Positions are created
// when an entry gate fires and are closed, never deleted.
type Position struct {
	// PositionID uniquely identifies the position within a session.
	PositionID string `json:"position_id"`
	// EntryNodeID is the entry node that opened this position.
	EntryNodeID string `json:"entry_node_id"`
	// ReEntryNum is 0 for the node's first entry and increments by one for
	// each subsequent re-entry on the same node.
	ReEntryNum int `json:"re_entry_num"`
	// Symbol is the traded instrument.
	Symbol string `json:"symbol"`
	// Side is the position direction.
	Side Side `json:"side"`
	// OptionType is CE/PE for option legs, empty otherwise.
	OptionType OptionType `json:"option_type,omitempty"`
	// EntryTime is the engine timestamp of the opening step.
	EntryTime time.Time `json:"entry_time"`
	// EntryPrice is the fill price of the entry.
	EntryPrice float64 `json:"entry_price"`
	// Quantity is the number of units entered.
	Quantity float64 `json:"quantity"`
	// Multiplier is the contract multiplier (lot size for derivatives).
	Multiplier float64 `json:"multiplier"`
	// Scale is an additional position-sizing factor applied to P&L.
	Scale float64 `json:"scale"`
	// ExitTime is set when the position is closed.
	ExitTime optional.Option[time.Time] `json:"exit_time,omitempty"`
	// ExitPrice is set when the position is closed.
	ExitPrice optional.Option[float64] `json:"exit_price,omitempty"`
	// ExitNodeID is the exit node that closed the position, empty while open
	// and for cutoff closes.
	ExitNodeID string `json:"exit_node_id,omitempty"`
	// PnL is the realized profit and loss, set when the position is closed.
	PnL optional.Option[float64] `json:"pnl,omitempty"`
	// Status is the lifecycle state.
	Status PositionStatus `json:"status"`
	// EntryTrigger is the diagnostic snapshot of the condition that opened
	// the position.
	EntryTrigger TriggerSnapshot `json:"entry_trigger"`
	// ExitTrigger is the diagnostic snapshot of the condition that closed
	// the position, present only for CLOSED positions.
	ExitTrigger optional.Option[TriggerSnapshot] `json:"exit_trigger,omitempty"`
}

// IsOpen reports whether the position has not been closed yet.
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}
