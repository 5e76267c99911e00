package usecase

import (
	"context"
	"fmt"
	"time"

	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/util"
)

// HistoryReplay re-runs the inference cycle once per calendar day with bars
// cut at the end of that day.
type HistoryReplay struct {
	cycle *InferenceCycle
	l     *applogger.Logger
}

func NewHistoryReplay(cycle *InferenceCycle) *HistoryReplay {
	return &HistoryReplay{cycle: cycle}
}

func (uc *HistoryReplay) SetLogger(l *applogger.Logger) { uc.l = l }

// Run replays [from, to] and returns how many days were written.
func (uc *HistoryReplay) Run(ctx context.Context, from, to time.Time) (int, error) {
	if to.Before(from) {
		return 0, fmt.Errorf("history: to %s is before from %s", util.DayKey(to), util.DayKey(from))
	}
	written := 0
	for _, day := range util.DayRange(from, to) {
		doc, err := uc.cycle.Evaluate(ctx, EvalOptions{
			Until:    util.EndOfDay(day),
			Date:     util.DayKey(day),
			Timezone: "UTC",
		})
		if err != nil {
			return written, fmt.Errorf("replay %s: %w", util.DayKey(day), err)
		}
		if err := uc.cycle.SaveHistory(ctx, day, doc); err != nil {
			return written, err
		}
		written++
		if uc.l != nil {
			uc.l.Debug("history.day",
				applogger.String("day", doc.Date),
				applogger.Int("signals", len(doc.Signals)),
				applogger.Int("active", doc.ActiveCount()))
		}
	}
	if uc.l != nil {
		uc.l.Info("history.done",
			applogger.String("from", util.DayKey(from)),
			applogger.String("to", util.DayKey(to)),
			applogger.Int("days", written))
	}
	return written, nil
}
