package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	icache "github.com/prateek8731/Market-Monitor/internal/service/cache"
	"github.com/prateek8731/Market-Monitor/internal/service/metrics"
	"github.com/prateek8731/Market-Monitor/internal/service/ratelimit"
	"github.com/prateek8731/Market-Monitor/internal/usecase"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
	xlogger "github.com/prateek8731/Market-Monitor/pkg/logger"
	xutil "github.com/prateek8731/Market-Monitor/pkg/util"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type HandlerOption func(*MonitorHandler)

// WithQuoteCache caches quotes per (provider, ticker) for ttl; ttl <= 0 disables it.
func WithQuoteCache(ttl time.Duration) HandlerOption {
	return func(h *MonitorHandler) { h.quoteTTL = ttl }
}

// WithRateLimit bounds quote requests per client IP.
func WithRateLimit(perMinute, burst int) HandlerOption {
	return func(h *MonitorHandler) { h.rl = ratelimit.New(perMinute, burst) }
}

func WithHealthCheck(name string, fn HealthCheck) HandlerOption {
	return func(h *MonitorHandler) { h.health[name] = fn }
}

// MonitorHandler serves the market monitor API over echo.
type MonitorHandler struct {
	logger    *xlogger.Logger
	agg       *usecase.SignalAggregator
	early     *usecase.EarlySignalsUseCase
	portfolio *usecase.PortfolioUseCase
	retrain   *usecase.RetrainUseCase

	quotes   *icache.TTLCache[models.Quote]
	quoteTTL time.Duration
	rl       *ratelimit.Limiter
	health   map[string]HealthCheck
}

func NewMonitorHandler(
	logger *xlogger.Logger,
	agg *usecase.SignalAggregator,
	early *usecase.EarlySignalsUseCase,
	portfolio *usecase.PortfolioUseCase,
	retrain *usecase.RetrainUseCase,
	opts ...HandlerOption,
) *MonitorHandler {
	metrics.Register()
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &MonitorHandler{
		logger:    logger,
		agg:       agg,
		early:     early,
		portfolio: portfolio,
		retrain:   retrain,
		quotes:    icache.NewTTLCache[models.Quote](10000),
		quoteTTL:  15 * time.Second,
		rl:        ratelimit.New(120, 10),
		health:    map[string]HealthCheck{},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *MonitorHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.GET("/quote", h.observe("quote", h.Quote))
	g.GET("/history", h.observe("history", h.History))
	g.GET("/signal", h.observe("signal", h.Signal))
	g.GET("/probability", h.observe("probability", h.Probability))
	g.POST("/classifier/train", h.observe("train", h.Train))
	g.POST("/backtest", h.observe("backtest", h.Backtest))
	g.GET("/early", h.observe("early", h.Early))
	g.GET("/portfolio", h.observe("portfolio", h.Portfolio))
	g.GET("/trades", h.observe("trades", h.Trades))
	g.POST("/orders", h.observe("orders", h.PlaceOrder))
	g.POST("/retrain", h.observe("retrain", h.Retrain))
}

// observe records endpoint latency and the response status of failed calls.
func (h *MonitorHandler) observe(endpoint string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		if status := c.Response().Status; status >= http.StatusBadRequest {
			metrics.EndpointErrors.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
		}
		return err
	}
}

func (h *MonitorHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	fields := []xlogger.Field{xlogger.String("op", op), xlogger.Error(err)}
	if appErr.Status >= http.StatusInternalServerError && appErr.Status != http.StatusServiceUnavailable {
		h.logger.Error("monitor request failed", fields...)
	} else {
		h.logger.Warn("monitor request degraded", fields...)
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func (h *MonitorHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	checks := make(map[string]string, len(h.health))
	status := http.StatusOK
	for name, fn := range h.health {
		if err := fn(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	return xhttp.DataResponse(c, status, map[string]interface{}{"status": http.StatusText(status), "checks": checks})
}

func (h *MonitorHandler) Quote(c echo.Context) error {
	req := &models.QuoteRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP() + ":quote") {
		h.logger.Warn("quote rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limited"))
	}

	provider := domrepo.NormalizeProvider(req.Provider)
	key := string(provider) + ":" + xutil.NormalizeTicker(req.Ticker)
	if q, ok := h.quotes.Get(key); ok && h.quoteTTL > 0 {
		c.Response().Header().Set("X-Cache", "HIT")
		return xhttp.SuccessResponse(c, q)
	}
	q, err := h.agg.Quote(c.Request().Context(), req.Ticker, provider)
	if err != nil {
		return h.fail(c, "quote", err)
	}
	if h.quoteTTL > 0 {
		h.quotes.Set(key, q, h.quoteTTL)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age="+strconv.Itoa(int(h.quoteTTL.Seconds())))
	return xhttp.SuccessResponse(c, q)
}

func (h *MonitorHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	bars, err := h.agg.History(c.Request().Context(), req.Ticker, req.Days)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, bars, int64(len(bars)))
}

func (h *MonitorHandler) Signal(c echo.Context) error {
	req := &models.SignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.agg.Signal(c.Request().Context(), usecase.SignalParams{
		Ticker:        req.Ticker,
		Horizon:       req.Horizon,
		Lookback:      req.Lookback,
		BuyThreshold:  req.BuyThreshold,
		SellThreshold: req.SellThreshold,
	})
	if err != nil {
		return h.fail(c, "signal", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MonitorHandler) Probability(c echo.Context) error {
	req := &models.ProbabilityRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.agg.Probability(c.Request().Context(), req.Ticker, req.Horizon, req.Days)
	if err != nil {
		return h.fail(c, "probability", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MonitorHandler) Train(c echo.Context) error {
	req := &models.TrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	m, err := h.agg.Train(c.Request().Context(), req.Ticker, req.Horizon, req.Threshold, req.Days)
	if err != nil {
		return h.fail(c, "train", err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"ticker":  req.Ticker,
		"horizon": req.Horizon,
		"metrics": m,
	})
}

func (h *MonitorHandler) Backtest(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.agg.Backtest(c.Request().Context(), usecase.BacktestParams{
		Ticker:         req.Ticker,
		Days:           req.Days,
		InitialCapital: req.InitialCapital,
		Strategy:       req.Strategy,
		Short:          req.Short,
		Long:           req.Long,
	})
	if err != nil {
		return h.fail(c, "backtest", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MonitorHandler) Early(c echo.Context) error {
	req := &models.EarlyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.early.GetEarlySignals(c.Request().Context(), req.Ticker, req.CIK)
	if err != nil {
		return h.fail(c, "early", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *MonitorHandler) Portfolio(c echo.Context) error {
	snap, err := h.portfolio.Snapshot(c.Request().Context())
	if err != nil {
		return h.fail(c, "portfolio", err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *MonitorHandler) Trades(c echo.Context) error {
	limit := xutil.ParseIntDefault(c.QueryParam("limit"), 0)
	trades, err := h.portfolio.Trades(c.Request().Context(), limit)
	if err != nil {
		return h.fail(c, "trades", err)
	}
	return xhttp.ListResponse(c, trades, int64(len(trades)))
}

func (h *MonitorHandler) PlaceOrder(c echo.Context) error {
	req := &models.OrderRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	t, err := h.portfolio.PlaceMarketOrder(c.Request().Context(), req.Symbol, models.Side(req.Side), req.Qty)
	if err != nil {
		return h.fail(c, "orders", err)
	}
	return xhttp.CreatedResponse(c, t)
}

func (h *MonitorHandler) Retrain(c echo.Context) error {
	req := &models.RetrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.retrain.Submit(c.Request().Context(), req.Ticker, req.Days)
	if err != nil {
		return h.fail(c, "retrain", err)
	}
	if res.Queued {
		return xhttp.DataResponse(c, http.StatusAccepted, res)
	}
	return xhttp.SuccessResponse(c, res)
}

var _ xhttp.Handler = (*MonitorHandler)(nil)
