package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/internal/repository"
	"github.com/prateek8731/Market-Monitor/internal/services/backtest"
	"github.com/prateek8731/Market-Monitor/internal/usecase"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
)

type stubSource struct {
	bars       []models.PriceBar
	price      float64
	quoteErr   error
	quoteCalls int32
}

func (s *stubSource) GetHistorical(context.Context, string, int) ([]models.PriceBar, error) {
	return s.bars, nil
}

func (s *stubSource) GetQuote(_ context.Context, ticker string) (models.Quote, error) {
	atomic.AddInt32(&s.quoteCalls, 1)
	return models.Quote{Ticker: ticker, Price: s.price, Source: "stub"}, s.quoteErr
}

func (s *stubSource) GetInsiderTrades(context.Context, string) ([]models.InsiderTransaction, error) {
	return nil, fmt.Errorf("insiders: %w", models.ErrDataUnavailable)
}

func (s *stubSource) FetchNews(context.Context) ([]models.NewsItem, error) { return nil, nil }

type stubRegression struct{ err error }

func (r stubRegression) RunFullPipeline(_ context.Context, bars []models.PriceBar, h int) (models.RegressionResult, error) {
	if r.err != nil {
		return models.RegressionResult{}, r.err
	}
	return models.RegressionResult{Horizon: h, PredPct: 3.5, TrainRows: len(bars)}, nil
}

type stubClassifier struct{}

func (stubClassifier) Train(context.Context, []models.PriceBar, int, float64) (map[string]float64, error) {
	return map[string]float64{"accuracy": 0.6}, nil
}

func (stubClassifier) PredictFromSignals(_ context.Context, _ []models.PriceBar, h int) (models.ClassifierResult, error) {
	return models.ClassifierResult{Horizon: h, ProbPos: 0.7, Available: true}, nil
}

func risingBars(n int) []models.PriceBar {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = models.PriceBar{Date: base.AddDate(0, 0, i), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1000}
	}
	return out
}

func newTestServer(t *testing.T, src *stubSource, reg stubRegression, opts ...HandlerOption) *echo.Echo {
	t.Helper()
	store, err := repository.NewSQLitePortfolioStore(":memory:", 1000, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Init(context.Background()))

	agg := usecase.NewSignalAggregator(src, reg, stubClassifier{}, backtest.NewEngine(), nil)
	early := usecase.NewEarlySignalsUseCase(src, nil, reg, stubClassifier{}, nil, nil, nil, usecase.EarlySignalsConfig{}, nil)
	portfolio := usecase.NewPortfolioUseCase(store, src, nil)
	retrain := usecase.NewRetrainUseCase(src, stubClassifier{}, nil, usecase.DefaultRetrainConfig(), nil)

	e := echo.New()
	NewMonitorHandler(nil, agg, early, portfolio, retrain, opts...).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	data, ok := decode(t, rec)["data"].([]interface{})
	require.True(t, ok, rec.Body.String())
	require.NotEmpty(t, data)
	return data[0].(map[string]interface{})["code"].(string)
}

func TestQuote_CachesPerProviderAndTicker(t *testing.T) {
	src := &stubSource{price: 101.5}
	e := newTestServer(t, src, stubRegression{}, WithQuoteCache(time.Minute))

	rec := do(e, http.MethodGet, "/api/quote?ticker=AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "AAPL", data["ticker"])

	rec = do(e, http.MethodGet, "/api/quote?ticker=AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.quoteCalls))

	rec = do(e, http.MethodGet, "/api/quote?ticker=AAPL&provider=alphavantage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.quoteCalls))
}

func TestQuote_RateLimitedPerClient(t *testing.T) {
	e := newTestServer(t, &stubSource{price: 1}, stubRegression{}, WithRateLimit(1, 1))

	require.Equal(t, http.StatusOK, do(e, http.MethodGet, "/api/quote?ticker=MSFT", "").Code)
	rec := do(e, http.MethodGet, "/api/quote?ticker=MSFT", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestQuote_ValidationAndOutage(t *testing.T) {
	e := newTestServer(t, &stubSource{quoteErr: fmt.Errorf("quote: %w", models.ErrDataUnavailable)}, stubRegression{})

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/quote", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/quote?ticker=AAPL&provider=yahoo", "").Code)

	rec := do(e, http.MethodGet, "/api/quote?ticker=AAPL", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "ERR_DATA_UNAVAILABLE", errorCode(t, rec))
}

func TestHistory_EmptyIsNotAnError(t *testing.T) {
	e := newTestServer(t, &stubSource{}, stubRegression{})

	rec := do(e, http.MethodGet, "/api/history?ticker=AAPL&days=30", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["total"])
	assert.Equal(t, []interface{}{}, data["rows"])
}

func TestSignal(t *testing.T) {
	e := newTestServer(t, &stubSource{bars: risingBars(200)}, stubRegression{})

	rec := do(e, http.MethodGet, "/api/signal?ticker=NVDA&horizon=3", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "NVDA", data["ticker"])
	assert.Equal(t, "BUY", data["recommendation"])

	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/api/signal?ticker=NVDA&horizon=4", "").Code)
}

func TestSignal_ErrorMapping(t *testing.T) {
	e := newTestServer(t, &stubSource{}, stubRegression{})
	rec := do(e, http.MethodGet, "/api/signal?ticker=NVDA", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "ERR_INSUFFICIENT_DATA", errorCode(t, rec))

	e = newTestServer(t, &stubSource{bars: risingBars(200)}, stubRegression{err: fmt.Errorf("columns: %w", models.ErrSchemaMismatch)})
	rec = do(e, http.MethodGet, "/api/signal?ticker=NVDA", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ERR_SCHEMA_MISMATCH", errorCode(t, rec))
}

func TestBacktest(t *testing.T) {
	e := newTestServer(t, &stubSource{bars: risingBars(120)}, stubRegression{})

	rec := do(e, http.MethodPost, "/api/backtest", `{"ticker":"SPY","strategy":"buy_hold","initial_capital":1000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(e, http.MethodPost, "/api/backtest", `{"ticker":"SPY","short":50,"long":20}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEarly_DegradesInsteadOfFailing(t *testing.T) {
	e := newTestServer(t, &stubSource{bars: risingBars(200)}, stubRegression{})

	rec := do(e, http.MethodGet, "/api/early?ticker=TSLA", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, "TSLA", data["ticker"])
	errs := data["errors"].(map[string]interface{})
	assert.Contains(t, errs, usecase.SignalInsiders)
}

func TestOrdersAndPortfolio(t *testing.T) {
	e := newTestServer(t, &stubSource{price: 100}, stubRegression{})

	rec := do(e, http.MethodPost, "/api/orders", `{"symbol":"AAPL","side":"BUY","qty":5}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(e, http.MethodPost, "/api/orders", `{"symbol":"AAPL","side":"BUY","qty":50}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_INSUFFICIENT_FUNDS", errorCode(t, rec))

	rec = do(e, http.MethodPost, "/api/orders", `{"symbol":"MSFT","side":"SELL","qty":1}`)
	assert.Equal(t, "ERR_INSUFFICIENT_POSITION", errorCode(t, rec))

	rec = do(e, http.MethodGet, "/api/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.InDelta(t, 500.0, data["balance"], 1e-9)

	rec = do(e, http.MethodGet, "/api/trades?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decode(t, rec)["data"].(map[string]interface{})["total"])
}

func TestRetrain_RunsInlineWithoutQueue(t *testing.T) {
	e := newTestServer(t, &stubSource{bars: risingBars(300)}, stubRegression{})

	rec := do(e, http.MethodPost, "/api/retrain", `{"ticker":"AAPL"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decode(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, false, data["queued"])
	assert.Equal(t, "AAPL", data["ticker"])
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, &stubSource{}, stubRegression{},
		WithHealthCheck("sqlite", func(context.Context) error { return nil }),
		WithHealthCheck("clickhouse", func(context.Context) error { return errors.New("dial tcp: refused") }),
	)
	rec := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	checks := decode(t, rec)["data"].(map[string]interface{})["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["sqlite"])
	assert.Contains(t, checks["clickhouse"], "refused")
}

func TestToAppError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("x: %w", models.ErrInvalidArgument), http.StatusBadRequest},
		{fmt.Errorf("x: %w", models.ErrInsufficientData), http.StatusUnprocessableEntity},
		{fmt.Errorf("x: %w", models.ErrDataUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("x: %w", models.ErrSchemaMismatch), http.StatusInternalServerError},
		{xhttp.TooManyRequestsError("slow down"), http.StatusTooManyRequests},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, toAppError(tc.err).Status, tc.err.Error())
	}
}

var _ domrepo.MarketDataSource = (*stubSource)(nil)
