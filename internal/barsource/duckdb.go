package barsource

import (
	"context"
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// DuckDBSource reads bars from the DuckDB file the ingest tool maintains.
type DuckDBSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

var _ Source = (*DuckDBSource)(nil)

// EnsureSchema creates the bars table when it does not exist. The ingest
// writer calls this before its first insert; sources call it on open so a
// database the ingest tool never filled reads as empty instead of erroring
// on a missing table.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			time TIMESTAMP NOT NULL,
			open DOUBLE NOT NULL,
			high DOUBLE NOT NULL,
			low DOUBLE NOT NULL,
			close DOUBLE NOT NULL,
			volume DOUBLE NOT NULL
		)
	`)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to create bars table", err)
	}

	return nil
}

// NewDuckDBSource opens the DuckDB database at path.
func NewDuckDBSource(path string, logger *logger.Logger) (*DuckDBSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb database", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()

		return nil, err
	}

	return &DuckDBSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Bars implements Source.
func (d *DuckDBSource) Bars(ctx context.Context, symbol string, timeframe types.Timeframe, from time.Time, to time.Time) ([]types.Bar, error) {
	d.logger.Debug("Reading bars from DuckDB",
		zap.String("symbol", symbol),
		zap.String("timeframe", string(timeframe)),
		zap.Time("from", from),
		zap.Time("to", to))

	query, args, err := d.sq.
		Select("time", "open", "high", "low", "close", "volume").
		From("bars").
		Where(squirrel.And{
			squirrel.Eq{"symbol": symbol},
			squirrel.Eq{"timeframe": string(timeframe)},
			squirrel.GtOrEq{"time": from},
			squirrel.LtOrEq{"time": to},
		}).
		OrderBy("time ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build bars query", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query bars", err)
	}
	defer rows.Close()

	bars := make([]types.Bar, 0, 1024)

	for rows.Next() {
		var (
			timestamp                      time.Time
			open, high, low, close, volume float64
		)

		if err := rows.Scan(&timestamp, &open, &high, &low, &close, &volume); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar row", err)
		}

		bars = append(bars, types.Bar{
			Symbol:    symbol,
			Timeframe: timeframe,
			Time:      timestamp.UTC(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate bar rows", err)
	}

	if err := checkMonotonic(bars); err != nil {
		return nil, err
	}

	return bars, nil
}

// Count implements Source.
func (d *DuckDBSource) Count(ctx context.Context, symbol string, timeframe types.Timeframe, from time.Time, to time.Time) (int, error) {
	query, args, err := d.sq.
		Select("COUNT(*)").
		From("bars").
		Where(squirrel.And{
			squirrel.Eq{"symbol": symbol},
			squirrel.Eq{"timeframe": string(timeframe)},
			squirrel.GtOrEq{"time": from},
			squirrel.LtOrEq{"time": to},
		}).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count bars", err)
	}

	return count, nil
}

// Close implements Source.
func (d *DuckDBSource) Close() error {
	if d.db != nil {
		return d.db.Close()
	}

	return nil
}
