package analytics

import (
	"context"
	"fmt"
	"strings"

	domsvc "FxSignal/internal/domain/service"
	"FxSignal/internal/services/meta"
)

// HTTPRegressor calls a per-currency regression endpoint on the model server.
type HTTPRegressor struct {
	base     *HTTPServiceBase
	currency string
	path     string
}

type predictRequest struct {
	Currency string    `json:"currency"`
	Features []float64 `json:"features"`
}

type predictResponse struct {
	Prediction *float64 `json:"prediction"`
}

func (r *HTTPRegressor) Predict(ctx context.Context, features []float64) (float64, error) {
	var pr predictResponse
	if err := r.base.PostJSONWithRetry(ctx, r.path, predictRequest{Currency: r.currency, Features: features}, &pr, 3); err != nil {
		return 0, fmt.Errorf("predict %s: %w", r.currency, err)
	}
	if pr.Prediction == nil {
		return 0, fmt.Errorf("predict %s: empty prediction", r.currency)
	}
	return *pr.Prediction, nil
}

var _ domsvc.Regressor = (*HTTPRegressor)(nil)

// RemoteFactory binds manifest endpoints to the shared model-server base.
// A nil result means no model server is configured.
func RemoteFactory(base *HTTPServiceBase) meta.RemoteFactory {
	if !base.Configured() {
		return nil
	}
	return func(currency, endpoint string) (domsvc.Regressor, error) {
		if endpoint == "" {
			endpoint = "/predict/" + currency
		}
		if !strings.HasPrefix(endpoint, "/") {
			return nil, fmt.Errorf("remote endpoint %q must be a path", endpoint)
		}
		return &HTTPRegressor{base: base, currency: currency, path: endpoint}, nil
	}
}
