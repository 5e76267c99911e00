package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	pkgch "FxSignal/pkg/clickhouse"
	applogger "FxSignal/pkg/logger"
)

// CHBarStore keeps OHLCV bars in ClickHouse, one table for every timeframe.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client) *CHBarStore {
	return NewCHBarStoreDB(ch.DB(), ch.Database())
}

// NewCHBarStoreDB builds the store over an existing handle.
func NewCHBarStoreDB(db *sql.DB, database string) *CHBarStore {
	return &CHBarStore{db: db, table: database + ".bars"}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHBarStore) Bars(ctx context.Context, symbol string, tf domrepo.Timeframe, until time.Time) ([]models.PriceBar, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT time, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND tf = ?`, s.table)
	args := []interface{}{symbol, string(tf)}
	if !until.IsZero() {
		q += " AND time <= ?"
		args = append(args, until)
	}
	q += " ORDER BY time ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logErr("clickhouse.bars.query", symbol, tf, err)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, 1024)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			s.logErr("clickhouse.bars.scan", symbol, tf, err)
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		s.logErr("clickhouse.bars.rows", symbol, tf, err)
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no bars for %s %s", models.ErrMissingArtifact, symbol, tf)
	}
	if s.l != nil {
		s.l.Debug("clickhouse.bars.ok",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

// AppendBars inserts in chunks; ReplacingMergeTree folds re-sent bars.
func (s *CHBarStore) AppendBars(ctx context.Context, bars []models.SymbolBar) error {
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, b := range bars[start:end] {
			if b.Symbol == "" || b.Time.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, b.Symbol, b.Timeframe, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, tf, time, open, high, low, close, volume) VALUES %s", s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert bars: %w", err)
		}
	}
	return nil
}

func (s *CHBarStore) logErr(msg, symbol string, tf domrepo.Timeframe, err error) {
	if s.l == nil {
		return
	}
	s.l.Error(msg,
		applogger.String("table", s.table),
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Error(err),
	)
}

// ClickHouseSchema returns the idempotent DDL for the bars and decisions tables.
func ClickHouseSchema(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.bars (
            symbol LowCardinality(String),
            tf LowCardinality(String),
            time DateTime64(3, 'UTC'),
            open Float64, high Float64, low Float64, close Float64, volume Float64
        ) ENGINE = ReplacingMergeTree ORDER BY (symbol, tf, time)`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.decisions (
            run_id String,
            symbol LowCardinality(String),
            tf LowCardinality(String),
            time DateTime64(3, 'UTC'),
            side LowCardinality(String),
            status LowCardinality(String),
            confidence Float64,
            price Float64,
            atr Float64,
            p_short Float64, p_no Float64, p_long Float64,
            trend_up UInt8,
            payload String,
            inserted_at DateTime DEFAULT now()
        ) ENGINE = MergeTree ORDER BY (symbol, tf, time)`, database),
	}
}

var (
	_ domrepo.BarStore  = (*CHBarStore)(nil)
	_ domrepo.BarWriter = (*CHBarStore)(nil)
)
