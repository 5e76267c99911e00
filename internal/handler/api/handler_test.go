package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FxSignal/internal/domain/models"
	"FxSignal/internal/repository"
	icache "FxSignal/internal/service/cache"
	"FxSignal/internal/service/pricebook"
	"FxSignal/internal/service/ratelimit"
	"FxSignal/internal/usecase"
	"FxSignal/pkg/config"
)

var t0 = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func do(t *testing.T, e *echo.Echo, method, target string, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func sig(symbol, tf string, status models.Status) models.SignalDecision {
	return models.SignalDecision{Symbol: symbol, Timeframe: tf, Time: t0, Price: 1.1, Side: models.SideLong, Status: status}
}

type fakeReports struct{ latest *models.BacktestReport }

func (f *fakeReports) SaveMetaSignal(context.Context, models.MetaSignal) error         { return nil }
func (f *fakeReports) SaveBacktestReport(context.Context, models.BacktestReport) error { return nil }
func (f *fakeReports) LatestBacktestReport(context.Context) (*models.BacktestReport, error) {
	return f.latest, nil
}

func fixture(t *testing.T) (*echo.Echo, *Handler, *repository.JSONOutput) {
	t.Helper()
	out := repository.NewJSONOutput(t.TempDir())
	require.NoError(t, out.WriteSignals(context.Background(), models.SignalsDocument{
		Date: "2024-01-15",
		Signals: []models.SignalDecision{
			sig("EURUSD", "H4", models.StatusActive),
			sig("EURUSD", "H1", models.StatusWatchlist),
			sig("GBPUSD", "H4", models.StatusActive),
		},
	}))
	bars := repository.NewFileStore(t.TempDir())
	require.NoError(t, bars.AppendBars(context.Background(), []models.SymbolBar{
		{Symbol: "EURUSD", Timeframe: "H1", PriceBar: models.PriceBar{Time: t0, Open: 1, High: 1, Low: 1, Close: 1}},
		{Symbol: "EURUSD", Timeframe: "H1", PriceBar: models.PriceBar{Time: t0.Add(time.Hour), Open: 1, High: 1, Low: 1, Close: 1.01}},
	}))

	h := NewHandler(out, pricebook.New(), usecase.NewBarsUseCase(bars))
	h.SetCache(icache.NewTTLCache(), time.Minute)
	e := echo.New()
	h.RegisterRoutes(e)
	return e, h, out
}

func TestSignalsFilterAndCache(t *testing.T) {
	e, _, _ := fixture(t)

	rec, env := do(t, e, http.MethodGet, "/api/signals?symbol=eurusd&status=ACTIVE", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	var doc models.SignalsDocument
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	require.Len(t, doc.Signals, 1)
	assert.Equal(t, "H4", doc.Signals[0].Timeframe)

	rec, _ = do(t, e, http.MethodGet, "/api/signals?symbol=eurusd&status=ACTIVE", "")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestSignalsRejectsBadQuery(t *testing.T) {
	e, _, _ := fixture(t)
	rec, env := do(t, e, http.MethodGet, "/api/signals?tf=W1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, http.StatusBadRequest, env.Status)

	rec, _ = do(t, e, http.MethodGet, "/api/signals?date=15-01-2024", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignalsMissingHistoryDay(t *testing.T) {
	e, _, _ := fixture(t)
	rec, _ := do(t, e, http.MethodGet, "/api/signals?date=2023-01-01", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetaNotYetWritten(t *testing.T) {
	e, _, _ := fixture(t)
	rec, _ := do(t, e, http.MethodGet, "/api/meta", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBacktestFallsBackToStoreAndTrims(t *testing.T) {
	e, h, _ := fixture(t)
	h.SetStores(nil, &fakeReports{latest: &models.BacktestReport{
		RunID:    "r1",
		TradeLog: []models.Trade{{Symbol: "EURUSD"}, {Symbol: "GBPUSD"}, {Symbol: "USDJPY"}},
	}})

	rec, env := do(t, e, http.MethodGet, "/api/backtest?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rep models.BacktestReport
	require.NoError(t, json.Unmarshal(env.Data, &rep))
	assert.Equal(t, "r1", rep.RunID)
	assert.Len(t, rep.TradeLog, 2)
}

func TestPricesFromBook(t *testing.T) {
	e, h, _ := fixture(t)
	h.book.Update(pricebook.Quote{Symbol: "EURUSD", Timeframe: "H1", Price: 1.1, Time: t0})
	h.book.Update(pricebook.Quote{Symbol: "GBPUSD", Timeframe: "H1", Price: 1.3, Time: t0})

	_, env := do(t, e, http.MethodGet, "/api/prices?symbol=gbpusd", "")
	var qs []pricebook.Quote
	require.NoError(t, json.Unmarshal(env.Data, &qs))
	require.Len(t, qs, 1)
	assert.Equal(t, 1.3, qs[0].Price)
}

func TestBarsWindow(t *testing.T) {
	e, _, _ := fixture(t)
	rec, env := do(t, e, http.MethodGet, "/api/bars?symbol=EURUSD&tf=H1&limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res usecase.GetBarsResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.Equal(t, 1, res.Count)
	assert.Equal(t, 1.01, res.Bars[0].Close)

	rec, _ = do(t, e, http.MethodGet, "/api/bars?symbol=EURUSD&tf=H1&from=2024-01-16&to=2024-01-15", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/api/bars?symbol=USDCHF&tf=H1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCycleInvalidatesCache(t *testing.T) {
	e, h, out := fixture(t)
	var cfg config.Config
	cfg.Output.Timezone = "UTC"
	cycle := usecase.NewInferenceCycle(nil, nil, nil, &cfg)
	cycle.SetOutputs(out, nil, nil)
	h.SetPipeline(cycle, usecase.NewMetaRanking(nil, out, out))

	rec, _ := do(t, e, http.MethodGet, "/api/signals", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, e, http.MethodPost, "/api/cycle", `{"threshold":0.7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.CycleResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 0, res.Signals)
	assert.NotEmpty(t, res.MetaError)

	rec, env = do(t, e, http.MethodGet, "/api/signals", "")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	var doc models.SignalsDocument
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	assert.Equal(t, res.RunID, doc.RunID)
}

func TestCycleRejectsBadThreshold(t *testing.T) {
	e, h, _ := fixture(t)
	h.SetPipeline(usecase.NewInferenceCycle(nil, nil, nil, &config.Config{}), nil)
	rec, _ := do(t, e, http.MethodPost, "/api/cycle", `{"threshold":1.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitPerRoute(t *testing.T) {
	e, h, _ := fixture(t)
	h.SetLimiter(ratelimit.New(0.001, 1))

	rec, _ := do(t, e, http.MethodGet, "/api/prices", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, e, http.MethodGet, "/api/prices", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	rec, _ = do(t, e, http.MethodGet, "/api/meta", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
