package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"PolyChannel/internal/domain/errs"
	"PolyChannel/internal/domain/models"
	domrepo "PolyChannel/internal/domain/repository"
	applogger "PolyChannel/pkg/logger"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHCandleStore implements CandleSource over a ClickHouse candle table
// with columns (symbol, interval, bucket, open, high, low, close, volume).
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleStore(db *sql.DB, table string, l *applogger.Logger) (*CHCandleStore, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid candle table name %q", table)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHCandleStore{db: db, table: table, l: l.Component("clickhouse_candles")}, nil
}

func (s *CHCandleStore) Name() string { return "clickhouse" }

// CandleTableDDL returns the CREATE statement for the candle table.
func CandleTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        symbol   LowCardinality(String),
        interval LowCardinality(String),
        bucket   DateTime64(3, 'UTC'),
        open     Float64,
        high     Float64,
        low      Float64,
        close    Float64,
        volume   Float64
    ) ENGINE = ReplacingMergeTree ORDER BY (symbol, interval, bucket)`, table)
}

func (s *CHCandleStore) FetchCandles(ctx context.Context, symbol string, interval domrepo.Interval, from, to time.Time) ([]models.Candle, error) {
	start := time.Now()
	const qtpl = `
        SELECT bucket, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND interval = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, s.table), symbol, string(interval), from, to)
	if err != nil {
		s.l.Error("get_candles query error",
			applogger.String("symbol", symbol),
			applogger.String("interval", string(interval)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%w: clickhouse query: %v", errs.ErrDataUnavailable, err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 1024)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("%w: scan candle: %v", errs.ErrDataUnavailable, err)
		}
		c.Bucket = c.Bucket.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", errs.ErrDataUnavailable, err)
	}

	s.l.Debug("get_candles ok",
		applogger.String("symbol", symbol),
		applogger.String("interval", string(interval)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}
