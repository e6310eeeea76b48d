package output

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// BatchSink accumulates everything in memory and writes the output directory
// once on Flush. Used for backtests, where write amplification matters more
// than mid-run visibility.
type BatchSink struct {
	dir       string
	positions *positionLedger
	trades    []types.Trade
	metrics   types.Metrics
	events    []types.Event
	mu        sync.Mutex
}

// NewBatchSink creates a batch sink writing into dir.
func NewBatchSink(dir string) (*BatchSink, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}

	return &BatchSink{
		dir:       dir,
		positions: newPositionLedger(),
		trades:    nil,
		metrics:   types.Metrics{},
		events:    nil,
		mu:        sync.Mutex{},
	}, nil
}

// WritePosition upserts a position in memory.
func (s *BatchSink) WritePosition(position types.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.positions.upsert(position)

	return nil
}

// WriteTrade appends a trade in memory.
func (s *BatchSink) WriteTrade(trade types.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, trade)

	return nil
}

// UpdateMetrics replaces the buffered metrics.
func (s *BatchSink) UpdateMetrics(metrics types.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics = metrics

	return nil
}

// WriteEvent appends an event in memory.
func (s *BatchSink) WriteEvent(event types.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)

	return nil
}

// Flush writes the whole output directory. Idempotent: a second flush
// overwrites with identical content.
func (s *BatchSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	positionsDoc, err := encodeJSON(s.positions.snapshot())
	if err != nil {
		return err
	}

	trades := s.trades
	if trades == nil {
		trades = make([]types.Trade, 0)
	}

	tradesDoc, err := encodeJSON(trades)
	if err != nil {
		return err
	}

	metricsDoc, err := encodeJSON(s.metrics)
	if err != nil {
		return err
	}

	var events bytes.Buffer

	for _, event := range s.events {
		line, err := json.Marshal(event)
		if err != nil {
			return errors.Wrap(errors.ErrCodeEncodeFailed, "failed to encode event", err)
		}

		events.Write(line)
		events.WriteByte('\n')
	}

	if err := writeFileAtomic(filepath.Join(s.dir, PositionsFile), positionsDoc); err != nil {
		return err
	}

	if err := writeFileAtomic(filepath.Join(s.dir, TradesFile), tradesDoc); err != nil {
		return err
	}

	if err := writeFileAtomic(filepath.Join(s.dir, MetricsFile), metricsDoc); err != nil {
		return err
	}

	return writeFileAtomic(filepath.Join(s.dir, EventsFile), events.Bytes())
}

// Close flushes the buffered output.
func (s *BatchSink) Close() error {
	return s.Flush()
}

// Dir returns the sink's output directory.
func (s *BatchSink) Dir() string {
	return s.dir
}
