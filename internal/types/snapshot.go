package types

import "time"

// SessionMode selects how the driver paces its step loop.
type SessionMode string

const (
	// SessionModeBacktest replays bars as fast as the cache can supply them.
	SessionModeBacktest SessionMode = "BACKTEST"
	// SessionModeLiveSim replays bars at real-time speed scaled by the
	// session's speed multiplier.
	SessionModeLiveSim SessionMode = "LIVE_SIM"
)

// IsValid reports whether the mode is one of the supported values.
func (m SessionMode) IsValid() bool {
	return m == SessionModeBacktest || m == SessionModeLiveSim
}

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "RUNNING"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusStopped   SessionStatus = "STOPPED"
	SessionStatusError     SessionStatus = "ERROR"
)

// IsTerminal reports whether the session has finished stepping.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusStopped || s == SessionStatusError
}

// NodeState is the entry-node state machine position.
type NodeState string

const (
	// NodeStateIdle means no open position, awaiting a trigger.
	NodeStateIdle NodeState = "IDLE"
	// NodeStateActive means the node has at least one open position.
	NodeStateActive NodeState = "ACTIVE"
	// NodeStateExhausted means the entry budget is spent. Sticky for the
	// remainder of the session.
	NodeStateExhausted NodeState = "EXHAUSTED"
)

// Counters aggregates per-session step counters.
type Counters struct {
	// BarsProcessed is the number of steps completed.
	BarsProcessed int64 `json:"bars_processed"`
	// NodesEvaluated is the number of node condition evaluations performed.
	NodesEvaluated int64 `json:"nodes_evaluated"`
	// EntriesOpened counts positions opened with reEntryNum == 0.
	EntriesOpened int `json:"entries_opened"`
	// ReEntriesOpened counts positions opened with reEntryNum > 0.
	ReEntriesOpened int `json:"re_entries_opened"`
	// ExitsClosed counts positions closed by exit conditions.
	ExitsClosed int `json:"exits_closed"`
	// EntriesSkipped counts true entry gates ignored due to spent budgets.
	EntriesSkipped int `json:"entries_skipped"`
	// DegradedLeaves counts condition leaves that resolved to false because
	// their operands were unavailable or mistyped.
	DegradedLeaves int64 `json:"degraded_leaves"`
}

// Snapshot is the immutable view of a session published after every step.
// Pollers read the most recent snapshot without blocking the step loop.
type Snapshot struct {
	SessionID  string        `json:"session_id"`
	StrategyID string        `json:"strategy_id"`
	Mode       SessionMode   `json:"mode"`
	Status     SessionStatus `json:"status"`
	// SpeedMultiplier is the live-sim replay speed, 0 for backtests.
	SpeedMultiplier float64   `json:"speed_multiplier,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	// CurrentTimestamp is the engine time of the last completed step.
	CurrentTimestamp time.Time `json:"current_timestamp"`
	// StepIndex is the number of completed steps.
	StepIndex int64 `json:"step_index"`
	// TotalSteps is the known length of the replay, 0 when open-ended.
	TotalSteps int64 `json:"total_steps,omitempty"`
	// Progress is percent complete in [0,100]; 0 when TotalSteps is unknown.
	Progress float64 `json:"progress"`
	// NodeStates maps entry node IDs to their state machine position.
	NodeStates map[string]NodeState `json:"node_states"`
	// OpenPositions are the currently open positions across all entry nodes.
	OpenPositions []Position `json:"open_positions"`
	// Counters aggregates step counters up to this snapshot.
	Counters Counters `json:"counters"`
	// RealizedPnL is the net P&L of all closed trades so far.
	RealizedPnL float64 `json:"realized_pnl"`
	// LastEventSeq is the Seq of the most recently emitted event.
	LastEventSeq int64 `json:"last_event_seq"`
	// Error is the structured reason when Status == ERROR.
	Error string `json:"error,omitempty"`
}
