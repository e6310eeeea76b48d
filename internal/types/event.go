package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// EventKind classifies step-level diagnostic events.
type EventKind string

const (
	// EventKindSessionStarted is emitted once when the driver begins stepping.
	EventKindSessionStarted EventKind = "session_started"
	// EventKindSessionFinished is emitted when the data range is exhausted.
	EventKindSessionFinished EventKind = "session_finished"
	// EventKindSessionStopped is emitted after a cooperative stop completes.
	EventKindSessionStopped EventKind = "session_stopped"
	// EventKindSessionError is emitted when the session aborts fatally.
	EventKindSessionError EventKind = "session_error"
	// EventKindNodeEvaluated records one node's condition evaluation:
	// trigger type, resolved inputs and boolean result.
	EventKindNodeEvaluated EventKind = "node_evaluated"
	// EventKindPositionOpened records an entry or re-entry fill.
	EventKindPositionOpened EventKind = "position_opened"
	// EventKindPositionClosed records an exit or cutoff fill.
	EventKindPositionClosed EventKind = "position_closed"
	// EventKindEntrySkipped records a true entry gate that opened nothing,
	// e.g. because the node's entry budget is already spent.
	EventKindEntrySkipped EventKind = "entry_skipped"
	// EventKindNodeExhausted records the sticky transition to EXHAUSTED.
	EventKindNodeExhausted EventKind = "node_exhausted"
	// EventKindDataDegraded records a leaf that resolved to false because its
	// operand could not be resolved.
	EventKindDataDegraded EventKind = "data_degraded"
)

// Event is one diagnostic record in a session's append-only event stream.
// Events are ordered by Seq within a session.
type Event struct {
	// ID uniquely identifies the event.
	ID string `json:"id"`
	// SessionID is the owning session.
	SessionID string `json:"session_id,omitempty"`
	// Seq increases monotonically per session, starting at 1.
	Seq int64 `json:"seq"`
	// StepIndex is the zero-based step at which the event was emitted, -1 for
	// events outside the step loop (session start/end).
	StepIndex int64 `json:"step_index"`
	// Time is the engine timestamp of the step, or wall clock for lifecycle
	// events.
	Time time.Time `json:"time"`
	// Kind classifies the event.
	Kind EventKind `json:"kind"`
	// NodeID/NodeType identify the graph node the event concerns, when any.
	NodeID   string `json:"node_id,omitempty"`
	NodeType string `json:"node_type,omitempty"`
	// Result is the boolean outcome for node_evaluated events.
	Result optional.Option[bool] `json:"result,omitempty"`
	// Message is a human-readable one-liner.
	Message string `json:"message,omitempty"`
	// Detail carries kind-specific payload (evaluation trace, position, ...).
	Detail any `json:"detail,omitempty"`
}
