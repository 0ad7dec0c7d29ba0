package backtest

import (
	"fmt"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	domsvc "github.com/prateek8731/Market-Monitor/internal/domain/service"
)

// Engine replays a strategy day by day, filling all-in or all-out at the close.
type Engine struct {
	feeBps  float64
	metrics repository.Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFeeBps charges a proportional fee, in basis points, on each fill.
func WithFeeBps(bps float64) EngineOption { return func(e *Engine) { e.feeBps = bps } }

// WithMetrics counts runs per strategy.
func WithMetrics(m repository.Metrics) EngineOption { return func(e *Engine) { e.metrics = m } }

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run walks bars in order. The strategy sees bars[:i+1] with capacity i+1, so day i
// cannot reach later prices. The equity curve has exactly one point per input bar.
func (e *Engine) Run(bars []models.PriceBar, strategy domsvc.Strategy, initialCapital float64) (models.BacktestResult, error) {
	if len(bars) == 0 {
		return models.BacktestResult{}, fmt.Errorf("backtest: empty series: %w", models.ErrInsufficientData)
	}
	if strategy == nil {
		return models.BacktestResult{}, fmt.Errorf("backtest: nil strategy: %w", models.ErrInvalidArgument)
	}
	if initialCapital <= 0 {
		return models.BacktestResult{}, fmt.Errorf("backtest: initial capital %v: %w", initialCapital, models.ErrInvalidArgument)
	}

	fee := e.feeBps / 10000
	cash, shares := initialCapital, 0.0
	pos := models.Flat
	trades := 0
	peak, maxDD := initialCapital, 0.0
	curve := make([]models.EquityPoint, len(bars))

	for i := range bars {
		price := bars[i].Close
		want := strategy.Signal(bars[: i+1 : i+1])
		if want != pos && price > 0 {
			switch want {
			case models.Long:
				shares = cash * (1 - fee) / price
				cash = 0
			default:
				cash = shares * price * (1 - fee)
				shares = 0
			}
			pos = want
			trades++
		}

		equity := cash + shares*price
		if equity > peak {
			peak = equity
		}
		if peak > 0 {
			if dd := (peak - equity) / peak; dd > maxDD {
				maxDD = dd
			}
		}
		curve[i] = models.EquityPoint{Date: bars[i].Date, Equity: equity, Position: pos}
	}

	if e.metrics != nil {
		e.metrics.RecordBacktest(strategy.Name())
	}
	final := curve[len(curve)-1].Equity
	return models.BacktestResult{
		Strategy:       strategy.Name(),
		InitialCapital: initialCapital,
		FinalEquity:    final,
		TotalReturn:    final/initialCapital - 1,
		MaxDrawdown:    maxDD,
		Trades:         trades,
		EquityCurve:    curve,
	}, nil
}

var _ domsvc.Backtester = (*Engine)(nil)
