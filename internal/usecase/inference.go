package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	domsvc "FxSignal/internal/domain/service"
	"FxSignal/internal/services/features"
	"FxSignal/internal/services/signal"
	"FxSignal/pkg/config"
	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/metrics"
)

const stageInference = "inference"

// InferenceCycle evaluates every configured (symbol, timeframe) unit and
// collects the decisions into one signals document.
type InferenceCycle struct {
	bars      domrepo.BarStore
	artifacts domrepo.ArtifactStore
	clf       domsvc.Classifier
	cfg       *config.Config

	sink      domrepo.OutputSink
	decisions domrepo.DecisionStore
	pub       domrepo.Publisher
	metrics   domrepo.Metrics

	unitTimeout time.Duration
	now         func() time.Time
	l           *applogger.Logger
}

func NewInferenceCycle(bars domrepo.BarStore, artifacts domrepo.ArtifactStore, clf domsvc.Classifier, cfg *config.Config) *InferenceCycle {
	return &InferenceCycle{
		bars:        bars,
		artifacts:   artifacts,
		clf:         clf,
		cfg:         cfg,
		metrics:     metrics.Nop{},
		unitTimeout: 30 * time.Second,
		now:         time.Now,
	}
}

func (uc *InferenceCycle) SetLogger(l *applogger.Logger) { uc.l = l }

func (uc *InferenceCycle) SetMetrics(m domrepo.Metrics) {
	if m != nil {
		uc.metrics = m
	}
}

// SetOutputs wires where a published document goes. Any of them may be nil.
func (uc *InferenceCycle) SetOutputs(sink domrepo.OutputSink, decisions domrepo.DecisionStore, pub domrepo.Publisher) {
	uc.sink, uc.decisions, uc.pub = sink, decisions, pub
}

// EvalOptions narrows one evaluation. A zero Until uses every bar; a nil
// Threshold uses thresholds.prob.
type EvalOptions struct {
	Until     time.Time
	Threshold *float64
	Date      string
	Timezone  string
}

type unitResult struct {
	symbol string
	tf     string
	dec    models.SignalDecision
	err    error
}

// Evaluate fans out one goroutine per unit and waits for all of them. Units
// with missing artifacts or too little data are skipped; the document holds
// whatever succeeded, ordered by symbol then timeframe.
func (uc *InferenceCycle) Evaluate(ctx context.Context, opts EvalOptions) (models.SignalsDocument, error) {
	start := uc.now()
	threshold := uc.cfg.Thresholds.Prob
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}

	ch := make(chan unitResult, len(uc.cfg.Symbols)*len(uc.cfg.Timeframes))
	var wg sync.WaitGroup
	for _, sym := range uc.cfg.Symbols {
		for _, tf := range uc.cfg.TimeframeNames() {
			wg.Add(1)
			go func(sym, tf string) {
				defer wg.Done()
				uctx, cancel := context.WithTimeout(ctx, uc.unitTimeout)
				defer cancel()
				dec, err := uc.evaluateUnit(uctx, sym, tf, opts.Until, threshold)
				ch <- unitResult{symbol: sym, tf: tf, dec: dec, err: err}
			}(sym, tf)
		}
	}
	go func() { wg.Wait(); close(ch) }()

	doc := models.SignalsDocument{
		RunID:       uuid.NewString(),
		Date:        opts.Date,
		Timezone:    opts.Timezone,
		GeneratedAt: uc.now().UTC(),
		Disclaimer:  uc.cfg.Output.Disclaimer,
		Signals:     []models.SignalDecision{},
	}
	if doc.Date == "" {
		doc.Date = doc.GeneratedAt.Format("2006-01-02")
	}
	if doc.Timezone == "" {
		doc.Timezone = uc.cfg.Output.Timezone
	}

	var failed int
	for r := range ch {
		if r.err != nil {
			uc.recordFailure(r)
			if !skippable(r.err) {
				failed++
			}
			continue
		}
		uc.metrics.RecordUnit(stageInference, "ok")
		doc.Signals = append(doc.Signals, r.dec)
	}
	if err := ctx.Err(); err != nil {
		return doc, err
	}

	sort.Slice(doc.Signals, func(i, j int) bool {
		a, b := doc.Signals[i], doc.Signals[j]
		if a.Symbol != b.Symbol {
			return a.Symbol < b.Symbol
		}
		return a.Timeframe < b.Timeframe
	})

	uc.metrics.RecordCycle(stageInference, uc.now().Sub(start).Seconds())
	if uc.l != nil {
		uc.l.Info("inference.cycle",
			applogger.String("run_id", doc.RunID),
			applogger.Int("signals", len(doc.Signals)),
			applogger.Int("active", doc.ActiveCount()),
			applogger.Int("failed", failed),
			applogger.Duration("took", uc.now().Sub(start)))
	}
	return doc, nil
}

func (uc *InferenceCycle) recordFailure(r unitResult) {
	outcome := "error"
	switch {
	case errors.Is(r.err, models.ErrMissingArtifact):
		outcome = "missing_artifact"
	case errors.Is(r.err, models.ErrInsufficientData):
		outcome = "insufficient_data"
	case errors.Is(r.err, models.ErrFeatureSchemaMismatch):
		outcome = "schema_mismatch"
	}
	uc.metrics.RecordUnit(stageInference, outcome)
	skip := skippable(r.err)
	if !skip {
		uc.metrics.RecordError("inference_unit")
	}
	if uc.l == nil {
		return
	}
	fields := []applogger.Field{applogger.String("symbol", r.symbol), applogger.String("tf", r.tf), applogger.Error(r.err)}
	if skip {
		uc.l.Warn("inference.unit_skipped", fields...)
		return
	}
	uc.l.Error("inference.unit_failed", fields...)
}

func skippable(err error) bool {
	return errors.Is(err, models.ErrMissingArtifact) || errors.Is(err, models.ErrInsufficientData)
}

func (uc *InferenceCycle) evaluateUnit(ctx context.Context, symbol, tfName string, until time.Time, threshold float64) (models.SignalDecision, error) {
	tf := domrepo.Timeframe(tfName)
	tfc := uc.cfg.Timeframes[tfName]

	meta, err := uc.artifacts.ClassifierMeta(ctx, symbol, tf)
	if err != nil {
		return models.SignalDecision{}, err
	}
	bars, err := uc.bars.Bars(ctx, symbol, tf, until)
	if err != nil {
		return models.SignalDecision{}, err
	}
	rows := features.Build(bars)
	if len(rows) < meta.SeqLen+1 {
		return models.SignalDecision{}, fmt.Errorf("%w: %s %s has %d feature rows, need %d",
			models.ErrInsufficientData, symbol, tfName, len(rows), meta.SeqLen+1)
	}
	window, err := Window(rows[len(rows)-meta.SeqLen:], meta.Features)
	if err != nil {
		return models.SignalDecision{}, fmt.Errorf("%s %s: %w", symbol, tfName, err)
	}
	pv, err := uc.clf.Classify(ctx, symbol, tfName, window)
	if err != nil {
		return models.SignalDecision{}, err
	}

	last := rows[len(rows)-1]
	return signal.Decide(signal.Input{
		Symbol:        symbol,
		Timeframe:     tfName,
		Time:          last.Time.UTC(),
		Probabilities: pv,
		TrendUp:       last.TrendUp(),
		Threshold:     threshold,
		Price:         last.Close,
		Volatility:    last.ATR(),
		Params:        signal.Params{SLMult: tfc.SLMult, TP1Mult: tfc.TP1Mult, TP2Mult: tfc.TP2Mult},
	}), nil
}

// Window projects rows onto columns, oldest row first.
func Window(rows []models.FeatureRow, columns []string) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		vec := make([]float64, len(columns))
		for j, c := range columns {
			v, ok := r.Get(c)
			if !ok {
				return nil, fmt.Errorf("%w: column %q not produced by the feature pipeline", models.ErrFeatureSchemaMismatch, c)
			}
			vec[j] = v
		}
		out[i] = vec
	}
	return out, nil
}

// Run evaluates the latest bars and publishes the result.
func (uc *InferenceCycle) Run(ctx context.Context, threshold *float64) (models.SignalsDocument, error) {
	doc, err := uc.Evaluate(ctx, EvalOptions{Threshold: threshold})
	if err != nil {
		return doc, err
	}
	return doc, uc.Publish(ctx, doc)
}

// Publish writes doc to signals.json, then the decision store and the
// publisher when configured. The file write is the only hard failure.
func (uc *InferenceCycle) Publish(ctx context.Context, doc models.SignalsDocument) error {
	uc.metrics.RecordActiveSignals(doc.ActiveCount())
	if uc.sink != nil {
		if err := uc.sink.WriteSignals(ctx, doc); err != nil {
			uc.metrics.RecordError("write_signals")
			return fmt.Errorf("write signals: %w", err)
		}
	}
	uc.saveAndPublish(ctx, doc)
	return nil
}

func (uc *InferenceCycle) saveAndPublish(ctx context.Context, doc models.SignalsDocument) {
	if uc.decisions != nil && len(doc.Signals) > 0 {
		if err := uc.decisions.SaveDecisions(ctx, doc.RunID, doc.Signals); err != nil {
			uc.metrics.RecordError("save_decisions")
			if uc.l != nil {
				uc.l.Error("inference.save_decisions", applogger.String("run_id", doc.RunID), applogger.Error(err))
			}
		}
	}
	if uc.pub != nil {
		if err := uc.pub.PublishDecisions(ctx, doc); err != nil {
			uc.metrics.RecordError("publish_decisions")
			if uc.l != nil {
				uc.l.Error("inference.publish", applogger.String("run_id", doc.RunID), applogger.Error(err))
			}
		}
	}
}

// SaveHistory writes a replayed day and appends its decisions to the
// decision store. Replays are not published.
func (uc *InferenceCycle) SaveHistory(ctx context.Context, day time.Time, doc models.SignalsDocument) error {
	if uc.sink != nil {
		if err := uc.sink.WriteHistory(ctx, day, doc); err != nil {
			uc.metrics.RecordError("write_history")
			return fmt.Errorf("write history %s: %w", doc.Date, err)
		}
	}
	if uc.decisions != nil && len(doc.Signals) > 0 {
		if err := uc.decisions.SaveDecisions(ctx, doc.RunID, doc.Signals); err != nil {
			uc.metrics.RecordError("save_decisions")
			if uc.l != nil {
				uc.l.Error("history.save_decisions", applogger.String("day", doc.Date), applogger.Error(err))
			}
		}
	}
	return nil
}
