// Package output persists one session's positions, trades, metrics and
// diagnostic events to its output directory. Two sinks implement the same
// contract: BatchSink accumulates in memory and writes once at flush,
// IncrementalSink writes through on every update so a concurrent poller
// always sees near-current state.
package output

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// File names inside a session's output directory.
const (
	PositionsFile = "positions.json"
	TradesFile    = "trades.json"
	MetricsFile   = "metrics.json"
	EventsFile    = "events.jsonl"
)

// Sink persists session output. Single-writer: exactly one driver goroutine
// calls the write methods; readers only ever open the files.
type Sink interface {
	// WritePosition upserts a position by its id. Called once when a
	// position opens and again when it closes.
	WritePosition(position types.Position) error
	// WriteTrade appends a completed round trip.
	WriteTrade(trade types.Trade) error
	// UpdateMetrics replaces the session metrics.
	UpdateMetrics(metrics types.Metrics) error
	// WriteEvent appends one diagnostic event. Append-only.
	WriteEvent(event types.Event) error
	// Flush persists everything buffered so far. Idempotent.
	Flush() error
	// Close flushes and releases file handles.
	Close() error
}

// SessionDir returns the output directory for one session.
func SessionDir(root, strategyID, sessionID string) string {
	return filepath.Join(root, strategyID, sessionID)
}

// positionLedger keeps positions upserted by id in first-write order, so a
// replayed session produces byte-identical files.
type positionLedger struct {
	order []string
	byID  map[string]types.Position
}

func newPositionLedger() *positionLedger {
	return &positionLedger{
		order: nil,
		byID:  make(map[string]types.Position),
	}
}

func (l *positionLedger) upsert(position types.Position) {
	if _, seen := l.byID[position.PositionID]; !seen {
		l.order = append(l.order, position.PositionID)
	}

	l.byID[position.PositionID] = position
}

func (l *positionLedger) snapshot() []types.Position {
	positions := make([]types.Position, 0, len(l.order))
	for _, id := range l.order {
		positions = append(positions, l.byID[id])
	}

	return positions
}

// encodeJSON renders a stable, human-inspectable document.
func encodeJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEncodeFailed, "failed to encode output document", err)
	}

	return append(data, '\n'), nil
}

// writeFileAtomic writes via a temp file and rename, so a reader never
// observes a partially written document.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(errors.ErrCodeOutputWriteFailed, err, "failed to write %s", filepath.Base(path))
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(errors.ErrCodeOutputWriteFailed, err, "failed to replace %s", filepath.Base(path))
	}

	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeOutputDirFailed, "failed to create output directory", err)
	}

	return nil
}
