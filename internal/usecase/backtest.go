package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	"FxSignal/internal/services/backtest"
	"FxSignal/pkg/config"
	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/metrics"
)

const stageBacktest = "backtest"

// Backtest simulates the ACTIVE signals of every replayed day and writes the
// report.
type Backtest struct {
	reader  domrepo.OutputReader
	sink    domrepo.OutputSink
	bars    domrepo.BarStore
	reports domrepo.ReportStore
	cfg     *config.Config
	metrics domrepo.Metrics
	now     func() time.Time
	l       *applogger.Logger
}

// NewBacktest takes an optional bar store; without one every trade falls back
// to the seeded confidence draw.
func NewBacktest(reader domrepo.OutputReader, sink domrepo.OutputSink, bars domrepo.BarStore, cfg *config.Config) *Backtest {
	return &Backtest{reader: reader, sink: sink, bars: bars, cfg: cfg, metrics: metrics.Nop{}, now: time.Now}
}

func (uc *Backtest) SetLogger(l *applogger.Logger) { uc.l = l }

func (uc *Backtest) SetMetrics(m domrepo.Metrics) {
	if m != nil {
		uc.metrics = m
	}
}

func (uc *Backtest) SetReportStore(r domrepo.ReportStore) { uc.reports = r }

func (uc *Backtest) Run(ctx context.Context) (models.BacktestReport, error) {
	start := uc.now()
	dayKeys, err := uc.reader.HistoryDays(ctx)
	if err != nil {
		return models.BacktestReport{}, fmt.Errorf("list history: %w", err)
	}
	if len(dayKeys) == 0 {
		return models.BacktestReport{}, fmt.Errorf("%w: no history days to backtest", models.ErrMissingArtifact)
	}

	days := make([]backtest.Day, 0, len(dayKeys))
	for _, k := range dayKeys {
		doc, err := uc.reader.ReadHistory(ctx, k)
		if err != nil {
			if errors.Is(err, models.ErrMissingArtifact) {
				continue
			}
			return models.BacktestReport{}, fmt.Errorf("read history %s: %w", k, err)
		}
		days = append(days, backtest.Day{Date: k, Signals: doc.Signals})
	}

	bcfg := backtest.Config{
		InitialBalance: uc.cfg.Backtest.InitialBalance,
		RiskPerTrade:   uc.cfg.Backtest.RiskPerTrade,
		RewardRatio:    uc.cfg.Backtest.RewardRatio,
	}
	outcome := uc.outcome(ctx)
	res := backtest.Simulate(days, bcfg, outcome.decide)
	rep := backtest.BuildReport(res, bcfg, uc.cfg.Backtest.TradeLogLimit, uc.now())
	rep.RunID = uuid.NewString()

	if uc.sink != nil {
		if err := uc.sink.WriteBacktestReport(ctx, rep); err != nil {
			uc.metrics.RecordError("write_backtest")
			return rep, fmt.Errorf("write backtest report: %w", err)
		}
	}
	if uc.reports != nil {
		if err := uc.reports.SaveBacktestReport(ctx, rep); err != nil {
			uc.metrics.RecordError("save_backtest")
			if uc.l != nil {
				uc.l.Error("backtest.save", applogger.String("run_id", rep.RunID), applogger.Error(err))
			}
		}
	}

	uc.metrics.RecordCycle(stageBacktest, uc.now().Sub(start).Seconds())
	if uc.l != nil {
		uc.l.Info("backtest.done",
			applogger.String("run_id", rep.RunID),
			applogger.Int("days", rep.Days),
			applogger.Int("trades", rep.TotalTrades),
			applogger.Int("path_resolved", outcome.resolved),
			applogger.Float64("final_balance", rep.FinalBalance))
	}
	return rep, nil
}

// pathOutcome resolves trades against the bars after each signal, falling
// back to a seeded draw when the path never reaches SL or TP1.
type pathOutcome struct {
	ctx      context.Context
	bars     domrepo.BarStore
	fallback backtest.OutcomeFunc
	l        *applogger.Logger
	resolved int
	cache    map[string][]models.PriceBar
}

func (uc *Backtest) outcome(ctx context.Context) *pathOutcome {
	return &pathOutcome{
		ctx:      ctx,
		bars:     uc.bars,
		fallback: backtest.ConfidenceOutcome(uc.cfg.Backtest.Seed),
		l:        uc.l,
		cache:    map[string][]models.PriceBar{},
	}
}

func (p *pathOutcome) decide(day string, s models.SignalDecision) bool {
	if p.bars != nil {
		series := p.series(s.Symbol, s.Timeframe)
		i := sort.Search(len(series), func(i int) bool { return series[i].Time.After(s.Time) })
		lv := s.Primary
		if lv.Side == "" {
			lv.Side = s.Side
		}
		if win, ok := backtest.PathOutcome(lv, series[i:]); ok {
			p.resolved++
			return win
		}
	}
	return p.fallback(day, s)
}

func (p *pathOutcome) series(symbol, tf string) []models.PriceBar {
	key := symbol + "_" + tf
	if bars, ok := p.cache[key]; ok {
		return bars
	}
	bars, err := p.bars.Bars(p.ctx, symbol, domrepo.Timeframe(tf), time.Time{})
	if err != nil {
		if p.l != nil {
			p.l.Warn("backtest.bars_unavailable",
				applogger.String("symbol", symbol),
				applogger.String("tf", tf),
				applogger.Error(err))
		}
		bars = nil
	}
	p.cache[key] = bars
	return bars
}
