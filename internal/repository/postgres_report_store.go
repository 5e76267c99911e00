package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS meta_signals (
		run_id TEXT PRIMARY KEY,
		generated_at TIMESTAMPTZ NOT NULL,
		recommended_pair TEXT NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS backtest_reports (
		run_id TEXT PRIMARY KEY,
		generated_at TIMESTAMPTZ NOT NULL,
		final_balance DOUBLE PRECISION NOT NULL,
		total_trades INTEGER NOT NULL,
		payload JSONB NOT NULL
	)`,
}

// OpenPostgres connects, pings and applies the report schema.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	for _, stmt := range postgresSchema {
		if _, err := db.ExecContext(pctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("postgres schema: %w", err)
		}
	}
	return db, nil
}

// PGReportStore keeps meta rankings and backtest reports in Postgres.
type PGReportStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewPGReportStore(db *sqlx.DB, timeout time.Duration) *PGReportStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PGReportStore{db: db, timeout: timeout}
}

func (r *PGReportStore) SaveMetaSignal(ctx context.Context, m models.MetaSignal) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode meta signal: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO meta_signals (run_id, generated_at, recommended_pair, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			recommended_pair = EXCLUDED.recommended_pair,
			payload = EXCLUDED.payload`,
		m.RunID, m.GeneratedAt, m.RecommendedPair, payload)
	if err != nil {
		return fmt.Errorf("upsert meta signal: %w", err)
	}
	return nil
}

func (r *PGReportStore) SaveBacktestReport(ctx context.Context, rep models.BacktestReport) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	payload, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode backtest report: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO backtest_reports (run_id, generated_at, final_balance, total_trades, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			generated_at = EXCLUDED.generated_at,
			final_balance = EXCLUDED.final_balance,
			total_trades = EXCLUDED.total_trades,
			payload = EXCLUDED.payload`,
		rep.RunID, rep.GeneratedAt, rep.FinalBalance, rep.TotalTrades, payload)
	if err != nil {
		return fmt.Errorf("upsert backtest report: %w", err)
	}
	return nil
}

// LatestBacktestReport returns nil, nil when no report was stored yet.
func (r *PGReportStore) LatestBacktestReport(ctx context.Context) (*models.BacktestReport, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var row struct {
		Payload []byte `db:"payload"`
	}
	err := r.db.GetContext(ctx, &row, `SELECT payload FROM backtest_reports ORDER BY generated_at DESC LIMIT 1`)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest backtest report: %w", err)
	}
	var rep models.BacktestReport
	if err := json.Unmarshal(row.Payload, &rep); err != nil {
		return nil, fmt.Errorf("decode backtest report: %w", err)
	}
	return &rep, nil
}

var _ domrepo.ReportStore = (*PGReportStore)(nil)
