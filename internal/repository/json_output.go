package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	"FxSignal/pkg/util"
)

const (
	signalsFile  = "signals.json"
	metaFile     = "meta_signal.json"
	backtestFile = "backtest_report.json"
	historyDir   = "history"
)

// JSONOutput writes cycle documents under one outputs directory:
//
//	signals.json, meta_signal.json, backtest_report.json,
//	history/YYYY-MM-DD/signals.json
type JSONOutput struct {
	dir string
}

func NewJSONOutput(dir string) *JSONOutput { return &JSONOutput{dir: dir} }

func (o *JSONOutput) WriteSignals(_ context.Context, doc models.SignalsDocument) error {
	return writeJSON(filepath.Join(o.dir, signalsFile), doc)
}

func (o *JSONOutput) WriteHistory(_ context.Context, day time.Time, doc models.SignalsDocument) error {
	return writeJSON(filepath.Join(o.dir, historyDir, util.DayKey(day), signalsFile), doc)
}

func (o *JSONOutput) WriteMetaSignal(_ context.Context, m models.MetaSignal) error {
	return writeJSON(filepath.Join(o.dir, metaFile), m)
}

func (o *JSONOutput) WriteBacktestReport(_ context.Context, r models.BacktestReport) error {
	return writeJSON(filepath.Join(o.dir, backtestFile), r)
}

func (o *JSONOutput) ReadSignals(_ context.Context) (models.SignalsDocument, error) {
	var doc models.SignalsDocument
	return doc, readJSON(filepath.Join(o.dir, signalsFile), &doc)
}

// HistoryDays lists the YYYY-MM-DD directories holding a signals document,
// oldest first.
func (o *JSONOutput) HistoryDays(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(o.dir, historyDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list history: %w", err)
	}
	var days []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := util.ParseDay(e.Name()); err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(o.dir, historyDir, e.Name(), signalsFile)); err != nil {
			continue
		}
		days = append(days, e.Name())
	}
	sort.Strings(days)
	return days, nil
}

func (o *JSONOutput) ReadHistory(_ context.Context, day string) (models.SignalsDocument, error) {
	var doc models.SignalsDocument
	return doc, readJSON(filepath.Join(o.dir, historyDir, day, signalsFile), &doc)
}

func (o *JSONOutput) ReadMetaSignal(_ context.Context) (models.MetaSignal, error) {
	var m models.MetaSignal
	return m, readJSON(filepath.Join(o.dir, metaFile), &m)
}

func (o *JSONOutput) ReadBacktestReport(_ context.Context) (models.BacktestReport, error) {
	var r models.BacktestReport
	return r, readJSON(filepath.Join(o.dir, backtestFile), &r)
}

// writeJSON writes through a temp file so readers never see a partial document.
func writeJSON(path string, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func readJSON(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", models.ErrMissingArtifact, path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

var (
	_ domrepo.OutputSink   = (*JSONOutput)(nil)
	_ domrepo.OutputReader = (*JSONOutput)(nil)
)
