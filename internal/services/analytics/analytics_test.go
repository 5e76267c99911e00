package analytics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FxSignal/pkg/config"
)

func testBase(url string) *HTTPServiceBase {
	var c config.Config
	c.ModelServer.URL = url
	c.ModelServer.Timeout = time.Second
	c.ModelServer.RatePerSecond = 1000
	c.ModelServer.Burst = 100
	c.ModelServer.BreakerTimeout = time.Minute
	c.ModelServer.MaxFailures = 2
	return NewHTTPServiceBase(&c)
}

type countingObserver struct{ ok, failed int32 }

func (o *countingObserver) ObserveModelCall(_ string, _ float64, ok bool) {
	if ok {
		atomic.AddInt32(&o.ok, 1)
	} else {
		atomic.AddInt32(&o.failed, 1)
	}
}

func TestClassifierPostsWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify/EURUSD/H4", r.URL.Path)
		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "EURUSD", req.Symbol)
		assert.Len(t, req.Window, 2)
		_, _ = w.Write([]byte(`{"short":0.1,"no":0.2,"long":0.7}`))
	}))
	defer srv.Close()

	base := testBase(srv.URL)
	obs := &countingObserver{}
	base.SetObserver(obs)

	pv, err := NewHTTPClassifier(base).Classify(context.Background(), "EURUSD", "H4", [][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, 0.7, pv.Long)
	assert.Equal(t, 0.1, pv.Short)
	assert.EqualValues(t, 1, obs.ok)
}

func TestClassifierRejectsPartialVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"short":0.1,"long":0.7}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClassifier(testBase(srv.URL)).Classify(context.Background(), "EURUSD", "H4", nil)
	assert.ErrorContains(t, err, "incomplete")
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	base := testBase(srv.URL)
	err := base.PostJSONWithRetry(context.Background(), "/x", map[string]int{}, nil, 5)
	require.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestRateLimitIsSharedAcrossPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"short":0.1,"no":0.2,"long":0.7}`))
	}))
	defer srv.Close()

	var c config.Config
	c.ModelServer.URL = srv.URL
	c.ModelServer.Timeout = time.Second
	c.ModelServer.RatePerSecond = 0.001
	c.ModelServer.Burst = 1
	base := NewHTTPServiceBase(&c)
	clf := NewHTTPClassifier(base)

	_, err := clf.Classify(context.Background(), "EURUSD", "H4", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = base.PostJSON(ctx, "/classify/GBPUSD/H1", classifyRequest{Symbol: "GBPUSD", TF: "H1"}, &classifyResponse{})
	assert.ErrorContains(t, err, "rate limit")
	assert.Equal(t, 1, base.limiter.Keys())
}

func TestUnconfiguredBase(t *testing.T) {
	base := testBase("")
	assert.False(t, base.Configured())
	assert.Nil(t, RemoteFactory(base))
	assert.Error(t, base.PostJSON(context.Background(), "/x", nil, nil))
}

func TestRemoteRegressor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict/EUR", r.URL.Path)
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []float64{0.5, 1}, req.Features)
		_, _ = w.Write([]byte(`{"prediction":0.0042}`))
	}))
	defer srv.Close()

	factory := RemoteFactory(testBase(srv.URL))
	require.NotNil(t, factory)

	reg, err := factory("EUR", "")
	require.NoError(t, err)
	got, err := reg.Predict(context.Background(), []float64{0.5, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0042, got)

	_, err = factory("EUR", "http://elsewhere/predict")
	assert.Error(t, err)
}
