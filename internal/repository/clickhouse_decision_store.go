package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	pkgch "FxSignal/pkg/clickhouse"
)

// CHDecisionStore appends every decision of a cycle to ClickHouse. Scalar
// columns serve ad-hoc queries; payload keeps the full document row.
type CHDecisionStore struct {
	db    *sql.DB
	table string
}

func NewCHDecisionStore(ch *pkgch.Client) *CHDecisionStore {
	return NewCHDecisionStoreDB(ch.DB(), ch.Database())
}

func NewCHDecisionStoreDB(db *sql.DB, database string) *CHDecisionStore {
	return &CHDecisionStore{db: db, table: database + ".decisions"}
}

func (s *CHDecisionStore) SaveDecisions(ctx context.Context, runID string, decisions []models.SignalDecision) error {
	if len(decisions) == 0 {
		return nil
	}
	values := make([]string, 0, len(decisions))
	args := make([]interface{}, 0, len(decisions)*14)
	for _, d := range decisions {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode decision %s %s: %w", d.Symbol, d.Timeframe, err)
		}
		var trend uint8
		if d.TrendUp {
			trend = 1
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			runID, d.Symbol, d.Timeframe, d.Time,
			string(d.Side), string(d.Status), d.Confidence,
			d.Price, d.ATR,
			d.Probabilities.Short, d.Probabilities.No, d.Probabilities.Long,
			trend, string(payload),
		)
	}
	q := fmt.Sprintf(`INSERT INTO %s (run_id, symbol, tf, time, side, status, confidence, price, atr, p_short, p_no, p_long, trend_up, payload) VALUES %s`,
		s.table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("insert decisions: %w", err)
	}
	return nil
}

// LatestDecisions returns newest first. Empty symbol or tf matches all.
func (s *CHDecisionStore) LatestDecisions(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.SignalDecision, error) {
	var where []string
	var args []interface{}
	if symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, symbol)
	}
	if tf != "" {
		where = append(where, "tf = ?")
		args = append(args, string(tf))
	}
	q := fmt.Sprintf("SELECT payload FROM %s", s.table)
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY time DESC, inserted_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []models.SignalDecision
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		var d models.SignalDecision
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("decode decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

var _ domrepo.DecisionStore = (*CHDecisionStore)(nil)
