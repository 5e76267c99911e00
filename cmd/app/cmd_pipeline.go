package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"FxSignal/internal/di"
	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/util"
)

var (
	inferSkipMeta bool

	historyFrom string
	historyTo   string
	historyDays int

	labelsOut string
)

var inferCmd = &cobra.Command{
	Use:   "infer",
	Short: "Run one inference cycle and write outputs/signals.json",
	RunE: func(cmd *cobra.Command, args []string) error {
		threshold, err := thresholdOverride(cmd)
		if err != nil {
			return err
		}
		return withPipeline(func(ctx context.Context, p *di.Pipeline) error {
			return runInfer(ctx, p, threshold)
		})(cmd, args)
	},
}

func runInfer(ctx context.Context, p *di.Pipeline, threshold *float64) error {
	doc, err := p.Cycle.Run(ctx, threshold)
	if err != nil {
		return err
	}
	p.Logger.Info("cli.infer",
		applogger.String("run_id", doc.RunID),
		applogger.Int("signals", len(doc.Signals)),
		applogger.Int("active", doc.ActiveCount()))
	if inferSkipMeta {
		return nil
	}
	if _, err := p.Meta.Run(ctx, doc); err != nil {
		p.Logger.Warn("cli.infer.meta_skipped", applogger.Error(err))
	}
	return nil
}

// thresholdOverride returns nil unless --threshold was given explicitly.
func thresholdOverride(cmd *cobra.Command) (*float64, error) {
	if !cmd.Flags().Changed("threshold") {
		return nil, nil
	}
	v, err := cmd.Flags().GetFloat64("threshold")
	if err != nil {
		return nil, err
	}
	if v < 0 || v > 1 {
		return nil, fmt.Errorf("threshold %v outside [0, 1]", v)
	}
	return &v, nil
}

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Rank currencies from the latest signals.json",
	RunE: withPipeline(func(ctx context.Context, p *di.Pipeline) error {
		ms, err := p.Meta.RunLatest(ctx)
		if err != nil {
			return err
		}
		p.Logger.Info("cli.meta",
			applogger.String("strongest", ms.StrongestCurrency),
			applogger.String("weakest", ms.WeakestCurrency),
			applogger.String("pair", ms.RecommendedPair))
		return nil
	}),
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Simulate trading the recorded history signals",
	RunE: withPipeline(func(ctx context.Context, p *di.Pipeline) error {
		rep, err := p.Backtest.Run(ctx)
		if err != nil {
			return err
		}
		p.Logger.Info("cli.backtest",
			applogger.Int("trades", rep.TotalTrades),
			applogger.Float64("final_balance", rep.FinalBalance),
			applogger.Float64("return_pct", rep.TotalReturnPct))
		return nil
	}),
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Replay inference for every day in a date range",
	Long: `Replays the inference cycle once per UTC day, using only bars up to the
end of that day, and writes outputs/history/YYYY-MM-DD/signals.json.
Without --from the range covers the last --days days up to --to (default today).`,
	RunE: withPipeline(func(ctx context.Context, p *di.Pipeline) error {
		from, to, err := historyRange(historyFrom, historyTo, historyDays, time.Now().UTC())
		if err != nil {
			return err
		}
		n, err := p.History.Run(ctx, from, to)
		if err != nil {
			return err
		}
		p.Logger.Info("cli.history", applogger.Int("days", n))
		return nil
	}),
}

var labelsCmd = &cobra.Command{
	Use:   "labels",
	Short: "Build the meta-model training dataset from history",
	RunE: withPipeline(func(ctx context.Context, p *di.Pipeline) error {
		out := labelsOut
		if out == "" {
			out = filepath.Join(p.Config.Paths.Data, "meta_dataset.csv")
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			return err
		}
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		n, err := p.Labels.Run(ctx, f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}
		p.Logger.Info("cli.labels", applogger.Int("rows", n), applogger.String("path", out))
		return nil
	}),
}

func init() {
	inferCmd.Flags().Float64("threshold", 0, "probability threshold override (default thresholds.prob)")
	inferCmd.Flags().BoolVar(&inferSkipMeta, "skip-meta", false, "do not run meta ranking after inference")

	historyCmd.Flags().StringVar(&historyFrom, "from", "", "first day, YYYY-MM-DD")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "last day, YYYY-MM-DD (default today)")
	historyCmd.Flags().IntVar(&historyDays, "days", 30, "range length when --from is not set")

	labelsCmd.Flags().StringVar(&labelsOut, "output", "", "dataset path (default {paths.data}/meta_dataset.csv)")
}

func historyRange(fromS, toS string, days int, now time.Time) (time.Time, time.Time, error) {
	to, err := dayOr(toS, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if fromS == "" {
		if days < 1 {
			return time.Time{}, time.Time{}, fmt.Errorf("--days must be >= 1")
		}
		return to.AddDate(0, 0, -(days - 1)), to, nil
	}
	from, err := util.ParseDay(fromS)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", util.DayKey(to), fromS)
	}
	return from, to, nil
}

func dayOr(s string, now time.Time) (time.Time, error) {
	if s == "" {
		y, m, d := now.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return util.ParseDay(s)
}
