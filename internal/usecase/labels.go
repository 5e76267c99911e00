package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	"FxSignal/internal/services/meta"
	"FxSignal/pkg/config"
	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/util"
)

// LabelTimeframe is the series currency-strength targets are measured on.
const LabelTimeframe domrepo.Timeframe = domrepo.TFD1

// DatasetRow is one replayed day: flattened signal features plus the
// per-currency targets that could be measured.
type DatasetRow struct {
	Date     string
	Features models.FlatFeatureRecord
	Targets  map[string]float64
}

// LabelGenerator joins replayed signal history with realised currency
// strength to build the meta-model training set.
type LabelGenerator struct {
	reader domrepo.OutputReader
	bars   domrepo.BarStore
	cfg    *config.Config
	l      *applogger.Logger
}

func NewLabelGenerator(reader domrepo.OutputReader, bars domrepo.BarStore, cfg *config.Config) *LabelGenerator {
	return &LabelGenerator{reader: reader, bars: bars, cfg: cfg}
}

func (uc *LabelGenerator) SetLogger(l *applogger.Logger) { uc.l = l }

// Rows builds one row per history day with at least one signal and at least
// one measurable target, in date order.
func (uc *LabelGenerator) Rows(ctx context.Context) ([]DatasetRow, error) {
	series := map[string][]models.PriceBar{}
	for _, sym := range uc.cfg.Symbols {
		bars, err := uc.bars.Bars(ctx, sym, LabelTimeframe, time.Time{})
		if err != nil {
			if errors.Is(err, models.ErrMissingArtifact) {
				continue
			}
			return nil, fmt.Errorf("load %s %s: %w", sym, LabelTimeframe, err)
		}
		series[sym] = bars
	}

	days, err := uc.reader.HistoryDays(ctx)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	lookahead := time.Duration(uc.cfg.Labels.LookaheadHours) * time.Hour

	var rows []DatasetRow
	for _, day := range days {
		doc, err := uc.reader.ReadHistory(ctx, day)
		if err != nil {
			if errors.Is(err, models.ErrMissingArtifact) {
				continue
			}
			return nil, fmt.Errorf("read history %s: %w", day, err)
		}
		if len(doc.Signals) == 0 {
			continue
		}
		at, err := util.ParseDay(day)
		if err != nil {
			return nil, err
		}
		targets := meta.StrengthLabels(at, lookahead, series)
		if len(targets) == 0 {
			continue
		}
		rows = append(rows, DatasetRow{Date: day, Features: meta.Flatten(doc.Signals), Targets: targets})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
	return rows, nil
}

// Run writes the dataset as CSV: date, the union of feature keys, then one
// {CUR}_target column per currency. Absent values are empty cells.
func (uc *LabelGenerator) Run(ctx context.Context, w io.Writer) (int, error) {
	rows, err := uc.Rows(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: no labelled history rows", models.ErrInsufficientData)
	}
	if err := WriteDataset(w, rows, meta.Currencies(uc.cfg.Symbols)); err != nil {
		return 0, err
	}
	if uc.l != nil {
		uc.l.Info("labels.written", applogger.Int("rows", len(rows)))
	}
	return len(rows), nil
}

func WriteDataset(w io.Writer, rows []DatasetRow, currencies []string) error {
	keySet := map[string]struct{}{}
	for _, r := range rows {
		for k := range r.Features {
			keySet[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cw := csv.NewWriter(w)
	header := append([]string{"date"}, keys...)
	for _, c := range currencies {
		header = append(header, c+"_target")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, r.Date)
		for _, k := range keys {
			rec = append(rec, cell(r.Features, k))
		}
		for _, c := range currencies {
			rec = append(rec, cell(r.Targets, c))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func cell(m map[string]float64, k string) string {
	v, ok := m[k]
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
