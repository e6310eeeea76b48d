package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// IncrementalSink writes through on every update: positions, trades and
// metrics are rewritten atomically so a concurrent poller always parses a
// complete document, and events append to events.jsonl as they happen.
// Partial output from an aborted session stays valid and inspectable.
type IncrementalSink struct {
	dir       string
	positions *positionLedger
	trades    []types.Trade
	events    *os.File
	mu        sync.Mutex
}

// NewIncrementalSink creates the sink, its directory and a fresh event log.
func NewIncrementalSink(dir string) (*IncrementalSink, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	events, err := os.OpenFile(filepath.Join(dir, EventsFile), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to open event log", err)
	}

	s := &IncrementalSink{
		dir:       dir,
		positions: newPositionLedger(),
		trades:    nil,
		events:    events,
		mu:        sync.Mutex{},
	}

	// Seed empty documents so a poller arriving before the first step still
	// parses every file.
	if err := s.seed(); err != nil {
		events.Close()

		return nil, err
	}

	return s, nil
}

func (s *IncrementalSink) seed() error {
	empty, err := encodeJSON(make([]types.Position, 0))
	if err != nil {
		return err
	}

	if err := writeFileAtomic(filepath.Join(s.dir, PositionsFile), empty); err != nil {
		return err
	}

	emptyTrades, err := encodeJSON(make([]types.Trade, 0))
	if err != nil {
		return err
	}

	if err := writeFileAtomic(filepath.Join(s.dir, TradesFile), emptyTrades); err != nil {
		return err
	}

	metrics, err := encodeJSON(types.Metrics{})
	if err != nil {
		return err
	}

	return writeFileAtomic(filepath.Join(s.dir, MetricsFile), metrics)
}

// WritePosition upserts the position and rewrites positions.json.
func (s *IncrementalSink) WritePosition(position types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions.upsert(position)

	doc, err := encodeJSON(s.positions.snapshot())
	if err != nil {
		return err
	}

	return writeFileAtomic(filepath.Join(s.dir, PositionsFile), doc)
}

// WriteTrade appends the trade and rewrites trades.json.
func (s *IncrementalSink) WriteTrade(trade types.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, trade)

	doc, err := encodeJSON(s.trades)
	if err != nil {
		return err
	}

	return writeFileAtomic(filepath.Join(s.dir, TradesFile), doc)
}

// UpdateMetrics rewrites metrics.json.
func (s *IncrementalSink) UpdateMetrics(metrics types.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := encodeJSON(metrics)
	if err != nil {
		return err
	}

	return writeFileAtomic(filepath.Join(s.dir, MetricsFile), doc)
}

// WriteEvent appends one line to events.jsonl immediately.
func (s *IncrementalSink) WriteEvent(event types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events == nil {
		return errors.New(errors.ErrCodeOutputWriteFailed, "event log is closed")
	}

	line, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(errors.ErrCodeEncodeFailed, "failed to encode event", err)
	}

	if _, err := s.events.Write(append(line, '\n')); err != nil {
		return errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to append event", err)
	}

	return nil
}

// Flush syncs the event log. Document files are already on disk.
func (s *IncrementalSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events == nil {
		return nil
	}

	if err := s.events.Sync(); err != nil {
		return errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to sync event log", err)
	}

	return nil
}

// Close syncs and closes the event log.
func (s *IncrementalSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events == nil {
		return nil
	}

	if err := s.events.Sync(); err != nil {
		s.events.Close()
		s.events = nil

		return errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to sync event log", err)
	}

	if err := s.events.Close(); err != nil {
		s.events = nil

		return errors.Wrap(errors.ErrCodeOutputWriteFailed, "failed to close event log", err)
	}

	s.events = nil

	return nil
}

// Dir returns the sink's output directory.
func (s *IncrementalSink) Dir() string {
	return s.dir
}
