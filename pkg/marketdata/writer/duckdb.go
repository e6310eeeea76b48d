package writer

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/barsource"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// DuckDBWriter writes bars into the bars table of a DuckDB database file, the
// same table the engine's DuckDB bar source reads. All writes happen inside a
// single transaction that Finalize commits, so a failed download leaves the
// database untouched.
//
// The writer is scoped to one download window. Initialize deletes any bars
// already stored for the window's symbol, timeframe and time range, which
// makes re-running a download idempotent instead of duplicating rows.
type DuckDBWriter struct {
	db   *sql.DB
	tx   *sql.Tx
	stmt *sql.Stmt

	path      string
	symbol    string
	timeframe types.Timeframe
	from      time.Time
	to        time.Time
}

var _ BarWriter = (*DuckDBWriter)(nil)

// NewDuckDBWriter creates a writer targeting the database file at path,
// scoped to the given symbol, timeframe and time range.
func NewDuckDBWriter(path string, symbol string, timeframe types.Timeframe, from time.Time, to time.Time) *DuckDBWriter {
	return &DuckDBWriter{
		path:      path,
		symbol:    symbol,
		timeframe: timeframe,
		from:      from.UTC(),
		to:        to.UTC(),
	}
}

// Initialize opens the database, ensures the bars table exists, begins the
// download transaction and clears any previously ingested bars for this
// writer's window.
func (w *DuckDBWriter) Initialize() (err error) {
	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to create data directory %s", dir)
		}
	}

	w.db, err = sql.Open("duckdb", w.path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeMarketDataWriteFailed, err, "failed to open duckdb database %s", w.path)
	}

	if err := barsource.EnsureSchema(w.db); err != nil {
		w.db.Close()
		w.db = nil

		return err
	}

	w.tx, err = w.db.Begin()
	if err != nil {
		w.db.Close()
		w.db = nil

		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to begin transaction", err)
	}

	_, err = w.tx.Exec(
		`DELETE FROM bars WHERE symbol = ? AND timeframe = ? AND time >= ? AND time <= ?`,
		w.symbol, string(w.timeframe), w.from, w.to,
	)
	if err != nil {
		w.tx.Rollback()
		w.tx = nil
		w.db.Close()
		w.db = nil

		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to clear existing bars for window", err)
	}

	w.stmt, err = w.tx.Prepare(`
		INSERT INTO bars (symbol, timeframe, time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		w.tx.Rollback()
		w.tx = nil
		w.db.Close()
		w.db = nil

		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to prepare insert statement", err)
	}

	return nil
}

// Write inserts a single bar using the prepared statement within the
// download transaction.
func (w *DuckDBWriter) Write(bar types.Bar) error {
	if w.stmt == nil {
		return errors.New(errors.ErrCodeMarketDataWriteFailed, "writer is not initialized")
	}

	_, err := w.stmt.Exec(
		bar.Symbol,
		string(bar.Timeframe),
		bar.Time.UTC(),
		bar.Open,
		bar.High,
		bar.Low,
		bar.Close,
		bar.Volume,
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to insert bar", err)
	}

	return nil
}

// Finalize commits the download transaction, making the bars visible to
// readers of the database file.
func (w *DuckDBWriter) Finalize() (string, error) {
	if w.tx == nil {
		return "", errors.New(errors.ErrCodeMarketDataWriteFailed, "writer is not initialized or already finalized")
	}

	if err := w.tx.Commit(); err != nil {
		w.tx.Rollback()
		w.tx = nil

		return "", errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to commit transaction", err)
	}

	// The prepared statement belongs to the committed transaction.
	w.tx = nil
	w.stmt = nil

	return w.path, nil
}

// Close releases the writer's resources. If Finalize was not called the
// pending transaction is rolled back, discarding the downloaded bars.
func (w *DuckDBWriter) Close() error {
	var firstErr error

	if w.stmt != nil {
		if err := w.stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		w.stmt = nil
	}

	if w.tx != nil {
		if err := w.tx.Rollback(); err != nil && err != sql.ErrTxDone && firstErr == nil {
			firstErr = err
		}

		w.tx = nil
	}

	if w.db != nil {
		if err := w.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}

		w.db = nil
	}

	if firstErr != nil {
		return errors.Wrap(errors.ErrCodeMarketDataWriteFailed, "failed to close writer", firstErr)
	}

	return nil
}

// OutputPath returns the database file path this writer targets.
func (w *DuckDBWriter) OutputPath() string {
	return w.path
}
