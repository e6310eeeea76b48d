package main

import (
	"time"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
)

// SessionsMsg carries a fresh session list from the engine API.
type SessionsMsg struct {
	Sessions []types.Snapshot
}

// FetchErrMsg indicates a failed poll of the engine API.
type FetchErrMsg struct {
	Err error
}

// TickMsg schedules the next poll.
type TickMsg time.Time
