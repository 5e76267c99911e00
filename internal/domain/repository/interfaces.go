package repository

import (
	"context"
	"time"

	"FxSignal/internal/domain/models"
)

// BarStore provides read access to OHLCV series.
type BarStore interface {
	// Bars returns bars with time <= until in ascending order; a zero until
	// means no upper bound. A missing series is models.ErrMissingArtifact.
	Bars(ctx context.Context, symbol string, tf Timeframe, until time.Time) ([]models.PriceBar, error)
}

// ArtifactStore resolves per-(symbol, timeframe) classifier metadata. A
// missing artifact is models.ErrMissingArtifact.
type ArtifactStore interface {
	ClassifierMeta(ctx context.Context, symbol string, tf Timeframe) (models.ClassifierMeta, error)
}

// BarWriter persists bars arriving from the ingest stream.
type BarWriter interface {
	AppendBars(ctx context.Context, bars []models.SymbolBar) error
}

// DecisionStore keeps decision history for reporting.
type DecisionStore interface {
	SaveDecisions(ctx context.Context, runID string, decisions []models.SignalDecision) error
	LatestDecisions(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.SignalDecision, error)
}

// ReportStore persists meta rankings and backtest reports.
type ReportStore interface {
	SaveMetaSignal(ctx context.Context, m models.MetaSignal) error
	SaveBacktestReport(ctx context.Context, r models.BacktestReport) error
	LatestBacktestReport(ctx context.Context) (*models.BacktestReport, error)
}

// OutputSink writes the JSON documents other tools read from disk.
type OutputSink interface {
	WriteSignals(ctx context.Context, doc models.SignalsDocument) error
	WriteHistory(ctx context.Context, day time.Time, doc models.SignalsDocument) error
	WriteMetaSignal(ctx context.Context, m models.MetaSignal) error
	WriteBacktestReport(ctx context.Context, r models.BacktestReport) error
}

// OutputReader reads back what an OutputSink wrote. Absent documents are
// models.ErrMissingArtifact.
type OutputReader interface {
	ReadSignals(ctx context.Context) (models.SignalsDocument, error)
	HistoryDays(ctx context.Context) ([]string, error)
	ReadHistory(ctx context.Context, day string) (models.SignalsDocument, error)
	ReadMetaSignal(ctx context.Context) (models.MetaSignal, error)
	ReadBacktestReport(ctx context.Context) (models.BacktestReport, error)
}

// Publisher fans cycle results out to downstream consumers.
type Publisher interface {
	PublishDecisions(ctx context.Context, doc models.SignalsDocument) error
	PublishMetaSignal(ctx context.Context, m models.MetaSignal) error
	Close() error
}

type Metrics interface {
	RecordUnit(stage, outcome string)
	RecordCycle(stage string, seconds float64)
	RecordActiveSignals(n int)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
}
