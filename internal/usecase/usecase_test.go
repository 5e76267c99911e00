package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	"FxSignal/pkg/config"
	"FxSignal/pkg/util"
)

var testFeatures = []string{"Close", "RSI14", "ATR14", "TrendUp"}

func testConfig(symbols ...string) *config.Config {
	var c config.Config
	c.Symbols = symbols
	c.Timeframes = map[string]config.TimeframeConfig{
		"H4": {SeqLen: 20, Horizon: 6, ATRMult: 1, SLMult: 1.5, TP1Mult: 1.5, TP2Mult: 3},
	}
	c.Thresholds.Prob = 0.6
	c.Output.Timezone = "Europe/Berlin"
	c.Output.Disclaimer = "not advice"
	c.Backtest.InitialBalance = 10000
	c.Backtest.RiskPerTrade = 0.02
	c.Backtest.RewardRatio = 1.5
	c.Backtest.TradeLogLimit = 100
	c.Backtest.Seed = 42
	c.Labels.LookaheadHours = 24
	return &c
}

// trendBars rises steadily so EMA20 > EMA50 on the last rows.
func trendBars(n int, start time.Time, step time.Duration) []models.PriceBar {
	bars := make([]models.PriceBar, n)
	prev := 1.1
	for i := 0; i < n; i++ {
		c := 1.1 + 0.005*math.Sin(float64(i)/4) + 0.001*float64(i)
		bars[i] = models.PriceBar{
			Time:   start.Add(time.Duration(i) * step),
			Open:   prev,
			High:   math.Max(prev, c) + 0.002,
			Low:    math.Min(prev, c) - 0.002,
			Close:  c,
			Volume: 100 + float64(i%5),
		}
		prev = c
	}
	return bars
}

type fakeBars struct {
	series map[string][]models.PriceBar
	calls  int
	mu     sync.Mutex
}

func (f *fakeBars) Bars(_ context.Context, symbol string, tf domrepo.Timeframe, until time.Time) ([]models.PriceBar, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	bars, ok := f.series[symbol+"_"+string(tf)]
	if !ok {
		return nil, fmt.Errorf("%w: %s_%s", models.ErrMissingArtifact, symbol, tf)
	}
	if until.IsZero() {
		return bars, nil
	}
	var out []models.PriceBar
	for _, b := range bars {
		if !b.Time.After(until) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeBars) AppendBars(_ context.Context, bars []models.SymbolBar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.series == nil {
		f.series = map[string][]models.PriceBar{}
	}
	for _, b := range bars {
		k := b.Symbol + "_" + b.Timeframe
		f.series[k] = append(f.series[k], b.PriceBar)
	}
	return nil
}

type fakeArtifacts map[string]models.ClassifierMeta

func (f fakeArtifacts) ClassifierMeta(_ context.Context, symbol string, tf domrepo.Timeframe) (models.ClassifierMeta, error) {
	m, ok := f[symbol+"_"+string(tf)]
	if !ok {
		return m, fmt.Errorf("%w: meta %s_%s", models.ErrMissingArtifact, symbol, tf)
	}
	return m, nil
}

type fakeClassifier struct {
	mu      sync.Mutex
	pv      models.ProbabilityVector
	err     map[string]error
	windows map[string][][]float64
}

func (f *fakeClassifier) Classify(_ context.Context, symbol, tf string, window [][]float64) (models.ProbabilityVector, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.windows == nil {
		f.windows = map[string][][]float64{}
	}
	f.windows[symbol+"_"+tf] = window
	if err := f.err[symbol]; err != nil {
		return models.ProbabilityVector{}, err
	}
	return f.pv, nil
}

// memOutput is an in-memory OutputSink and OutputReader.
type memOutput struct {
	mu       sync.Mutex
	signals  *models.SignalsDocument
	history  map[string]models.SignalsDocument
	meta     *models.MetaSignal
	report   *models.BacktestReport
	writeErr error
}

func newMemOutput() *memOutput { return &memOutput{history: map[string]models.SignalsDocument{}} }

func (m *memOutput) WriteSignals(_ context.Context, doc models.SignalsDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.signals = &doc
	return nil
}

func (m *memOutput) WriteHistory(_ context.Context, day time.Time, doc models.SignalsDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[util.DayKey(day)] = doc
	return nil
}

func (m *memOutput) WriteMetaSignal(_ context.Context, ms models.MetaSignal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.meta = &ms
	return nil
}

func (m *memOutput) WriteBacktestReport(_ context.Context, r models.BacktestReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.report = &r
	return nil
}

func (m *memOutput) ReadSignals(context.Context) (models.SignalsDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.signals == nil {
		return models.SignalsDocument{}, models.ErrMissingArtifact
	}
	return *m.signals, nil
}

func (m *memOutput) HistoryDays(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.history))
	for k := range m.history {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memOutput) ReadHistory(_ context.Context, day string) (models.SignalsDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.history[day]
	if !ok {
		return doc, models.ErrMissingArtifact
	}
	return doc, nil
}

func (m *memOutput) ReadMetaSignal(context.Context) (models.MetaSignal, error) {
	if m.meta == nil {
		return models.MetaSignal{}, models.ErrMissingArtifact
	}
	return *m.meta, nil
}

func (m *memOutput) ReadBacktestReport(context.Context) (models.BacktestReport, error) {
	if m.report == nil {
		return models.BacktestReport{}, models.ErrMissingArtifact
	}
	return *m.report, nil
}

type fakeDecisions struct {
	mu    sync.Mutex
	saved map[string][]models.SignalDecision
}

func (f *fakeDecisions) SaveDecisions(_ context.Context, runID string, d []models.SignalDecision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string][]models.SignalDecision{}
	}
	f.saved[runID] = d
	return nil
}

func (f *fakeDecisions) LatestDecisions(context.Context, string, domrepo.Timeframe, int) ([]models.SignalDecision, error) {
	return nil, nil
}

type fakePublisher struct {
	docs  []models.SignalsDocument
	metas []models.MetaSignal
	err   error
}

func (p *fakePublisher) PublishDecisions(_ context.Context, doc models.SignalsDocument) error {
	p.docs = append(p.docs, doc)
	return p.err
}

func (p *fakePublisher) PublishMetaSignal(_ context.Context, m models.MetaSignal) error {
	p.metas = append(p.metas, m)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

type fakeReports struct {
	metas   []models.MetaSignal
	reports []models.BacktestReport
}

func (r *fakeReports) SaveMetaSignal(_ context.Context, m models.MetaSignal) error {
	r.metas = append(r.metas, m)
	return nil
}

func (r *fakeReports) SaveBacktestReport(_ context.Context, rep models.BacktestReport) error {
	r.reports = append(r.reports, rep)
	return nil
}

func (r *fakeReports) LatestBacktestReport(context.Context) (*models.BacktestReport, error) {
	if len(r.reports) == 0 {
		return nil, nil
	}
	return &r.reports[len(r.reports)-1], nil
}

type recordingMetrics struct {
	mu     sync.Mutex
	units  map[string]int
	errors map[string]int
	prices map[string]float64
	active int
	cycles int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{units: map[string]int{}, errors: map[string]int{}, prices: map[string]float64{}}
}

func (r *recordingMetrics) RecordUnit(stage, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[stage+"/"+outcome]++
}

func (r *recordingMetrics) RecordCycle(string, float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
}

func (r *recordingMetrics) RecordActiveSignals(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = n
}

func (r *recordingMetrics) RecordLastPrice(symbol string, price float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices[symbol] = price
}

func (r *recordingMetrics) RecordError(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[kind]++
}

var errBoom = errors.New("boom")
