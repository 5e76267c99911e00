package usecase

import (
	"context"
	"fmt"
	"time"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
)

// BarsUseCase serves raw bar windows to the API.
type BarsUseCase struct {
	store domrepo.BarStore
}

func NewBarsUseCase(store domrepo.BarStore) *BarsUseCase {
	return &BarsUseCase{store: store}
}

type GetBarsParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	From      time.Time
	To        time.Time
	Limit     int
}

type GetBarsResult struct {
	Symbol    string            `json:"symbol"`
	Timeframe string            `json:"tf"`
	Count     int               `json:"count"`
	Bars      []models.PriceBar `json:"bars"`
}

// GetBars returns at most Limit bars in [From, To], keeping the most recent.
// Zero bounds are open.
func (uc *BarsUseCase) GetBars(ctx context.Context, p GetBarsParams) (*GetBarsResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 500
	}
	if p.Limit > 5000 {
		p.Limit = 5000
	}

	bars, err := uc.store.Bars(ctx, p.Symbol, p.Timeframe, p.To)
	if err != nil {
		return nil, fmt.Errorf("get bars: %w", err)
	}
	if !p.From.IsZero() {
		i := 0
		for i < len(bars) && bars[i].Time.Before(p.From) {
			i++
		}
		bars = bars[i:]
	}
	if len(bars) > p.Limit {
		bars = bars[len(bars)-p.Limit:]
	}
	return &GetBarsResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		Count:     len(bars),
		Bars:      bars,
	}, nil
}
