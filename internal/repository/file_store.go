package repository

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/util"
)

var csvHeader = []string{"time", "Open", "High", "Low", "Close", "Volume"}

const csvTimeLayout = "2006-01-02 15:04:05"

// FileStore serves bars from {dir}/{symbol}_{tf}.csv and classifier metadata
// from {dir}/{symbol}_{tf}_meta.json.
type FileStore struct {
	dir string
	mu  sync.RWMutex
	l   *applogger.Logger
}

func NewFileStore(dir string) *FileStore { return &FileStore{dir: dir} }

// SetLogger injects a structured logger.
func (s *FileStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *FileStore) barPath(symbol string, tf domrepo.Timeframe) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%s.csv", symbol, tf))
}

func (s *FileStore) Bars(ctx context.Context, symbol string, tf domrepo.Timeframe, until time.Time) ([]models.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readFile(symbol, tf, until)
}

func (s *FileStore) readFile(symbol string, tf domrepo.Timeframe, until time.Time) ([]models.PriceBar, error) {
	path := s.barPath(symbol, tf)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", models.ErrMissingArtifact, path)
		}
		return nil, fmt.Errorf("open bars: %w", err)
	}
	defer f.Close()

	bars, err := readBars(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !until.IsZero() {
		cut := sort.Search(len(bars), func(i int) bool { return bars[i].Time.After(until) })
		bars = bars[:cut]
	}
	return bars, nil
}

// readBars parses the exporter CSV, keyed by header name, and returns bars in
// strictly increasing time. A repeated timestamp keeps the later row.
func readBars(r io.Reader) ([]models.PriceBar, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	head, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	idx := make(map[string]int, len(head))
	for i, h := range head {
		idx[h] = i
	}
	for _, h := range csvHeader {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("missing column %q", h)
		}
	}

	var out []models.PriceBar
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ts, ok := util.ParseTime(rec[idx["time"]])
		if !ok {
			return nil, fmt.Errorf("line %d: bad time %q", line, rec[idx["time"]])
		}
		b := models.PriceBar{Time: ts}
		for _, col := range []struct {
			name string
			dst  *float64
		}{{"Open", &b.Open}, {"High", &b.High}, {"Low", &b.Low}, {"Close", &b.Close}, {"Volume", &b.Volume}} {
			v, err := strconv.ParseFloat(rec[idx[col.name]], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d %s: %w", line, col.name, err)
			}
			*col.dst = v
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	dedup := out[:0]
	for _, b := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Time.Equal(b.Time) {
			dedup[n-1] = b
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup, nil
}

// AppendBars appends bars newer than each file's last row. Files are created
// with a header when absent.
func (s *FileStore) AppendBars(ctx context.Context, bars []models.SymbolBar) error {
	groups := make(map[string][]models.SymbolBar)
	for _, b := range bars {
		k := b.Symbol + "_" + b.Timeframe
		groups[k] = append(groups[k], b)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return err
		}
		sort.Slice(g, func(i, j int) bool { return g[i].Time.Before(g[j].Time) })
		tf := domrepo.Timeframe(g[0].Timeframe)
		existing, err := s.readFile(g[0].Symbol, tf, time.Time{})
		missing := errors.Is(err, models.ErrMissingArtifact)
		if err != nil && !missing {
			return err
		}
		var last time.Time
		if n := len(existing); n > 0 {
			last = existing[n-1].Time
		}
		if err := s.appendRows(s.barPath(g[0].Symbol, tf), missing, last, g); err != nil {
			return err
		}
	}
	return nil
}

func (s *FileStore) appendRows(path string, header bool, after time.Time, g []models.SymbolBar) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if header {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	written := 0
	for _, b := range g {
		if !after.IsZero() && !b.Time.After(after) {
			continue
		}
		after = b.Time
		if err := w.Write([]string{
			b.Time.UTC().Format(csvTimeLayout),
			formatFloat(b.Open), formatFloat(b.High), formatFloat(b.Low), formatFloat(b.Close), formatFloat(b.Volume),
		}); err != nil {
			return err
		}
		written++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if s.l != nil && written > 0 {
		s.l.Debug("bars.appended", applogger.String("path", path), applogger.Int("rows", written))
	}
	return nil
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func (s *FileStore) ClassifierMeta(_ context.Context, symbol string, tf domrepo.Timeframe) (models.ClassifierMeta, error) {
	var m models.ClassifierMeta
	path := filepath.Join(s.dir, fmt.Sprintf("%s_%s_meta.json", symbol, tf))
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return m, fmt.Errorf("%w: %s", models.ErrMissingArtifact, path)
		}
		return m, fmt.Errorf("read meta: %w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(m.Features) == 0 || m.SeqLen <= 0 {
		return m, fmt.Errorf("%w: %s has no features or seq_len", models.ErrMissingArtifact, path)
	}
	return m, nil
}

var (
	_ domrepo.BarStore      = (*FileStore)(nil)
	_ domrepo.BarWriter     = (*FileStore)(nil)
	_ domrepo.ArtifactStore = (*FileStore)(nil)
)
