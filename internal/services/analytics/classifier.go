package analytics

import (
	"context"
	"fmt"

	"FxSignal/internal/domain/models"
	domsvc "FxSignal/internal/domain/service"
)

type HTTPClassifier struct{ base *HTTPServiceBase }

func NewHTTPClassifier(base *HTTPServiceBase) *HTTPClassifier { return &HTTPClassifier{base: base} }

type classifyRequest struct {
	Symbol string      `json:"symbol"`
	TF     string      `json:"tf"`
	Window [][]float64 `json:"window"`
}

type classifyResponse struct {
	Short *float64 `json:"short"`
	No    *float64 `json:"no"`
	Long  *float64 `json:"long"`
}

func (c *HTTPClassifier) Classify(ctx context.Context, symbol, tf string, window [][]float64) (models.ProbabilityVector, error) {
	var out models.ProbabilityVector
	var cr classifyResponse
	path := fmt.Sprintf("/classify/%s/%s", symbol, tf)
	if err := c.base.PostJSONWithRetry(ctx, path, classifyRequest{Symbol: symbol, TF: tf, Window: window}, &cr, 3); err != nil {
		return out, fmt.Errorf("classify %s %s: %w", symbol, tf, err)
	}
	if cr.Short == nil || cr.No == nil || cr.Long == nil {
		return out, fmt.Errorf("classify %s %s: incomplete probability vector", symbol, tf)
	}
	out.Short, out.No, out.Long = *cr.Short, *cr.No, *cr.Long
	return out, nil
}

var _ domsvc.Classifier = (*HTTPClassifier)(nil)
