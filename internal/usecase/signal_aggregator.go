package usecase

import (
	"context"
	"fmt"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	domsvc "github.com/prateek8731/Market-Monitor/internal/domain/service"
	"github.com/prateek8731/Market-Monitor/internal/services/backtest"
	"github.com/prateek8731/Market-Monitor/internal/services/predict"
	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
	xutil "github.com/prateek8731/Market-Monitor/pkg/util"
)

// SignalAggregator runs the model-facing operations for one ticker: history, forecast,
// probability, training and backtest. Each call fetches its own history.
type SignalAggregator struct {
	src domrepo.MarketDataSource
	reg domsvc.PctPredictor
	clf domsvc.ProbabilityPredictor
	bt  domsvc.Backtester
	l   *applogger.Logger
}

func NewSignalAggregator(src domrepo.MarketDataSource, reg domsvc.PctPredictor, clf domsvc.ProbabilityPredictor, bt domsvc.Backtester, l *applogger.Logger) *SignalAggregator {
	if l == nil {
		l = applogger.Nop()
	}
	return &SignalAggregator{src: src, reg: reg, clf: clf, bt: bt, l: l}
}

// History returns daily bars oldest first. An outage yields an empty slice, not an error.
func (a *SignalAggregator) History(ctx context.Context, ticker string, days int) ([]models.PriceBar, error) {
	bars, err := a.src.GetHistorical(ctx, xutil.NormalizeTicker(ticker), days)
	if err != nil {
		return nil, err
	}
	if bars == nil {
		bars = []models.PriceBar{}
	}
	return bars, nil
}

// Quote consults provider first when the source supports vendor preference.
func (a *SignalAggregator) Quote(ctx context.Context, ticker string, provider domrepo.Provider) (models.Quote, error) {
	src := a.src
	if sel, ok := a.src.(domrepo.ProviderSelector); ok && provider != "" {
		src = sel.Prefer(provider)
	}
	return src.GetQuote(ctx, xutil.NormalizeTicker(ticker))
}

type SignalParams struct {
	Ticker        string
	Horizon       int
	Lookback      int
	BuyThreshold  float64
	SellThreshold float64
}

// Signal runs the regression pipeline and attaches a BUY/SELL/HOLD recommendation.
func (a *SignalAggregator) Signal(ctx context.Context, p SignalParams) (models.RegressionResult, error) {
	ticker := xutil.NormalizeTicker(p.Ticker)
	bars, err := a.history(ctx, ticker, p.Lookback)
	if err != nil {
		return models.RegressionResult{}, err
	}
	res, err := a.reg.RunFullPipeline(ctx, bars, p.Horizon)
	if err != nil {
		return models.RegressionResult{}, fmt.Errorf("signal %s: %w", ticker, err)
	}
	res.Ticker = ticker
	res.Recommend = predict.Recommend(res.PredPct, p.BuyThreshold, p.SellThreshold)
	return res, nil
}

// Probability never fails on missing data; the classifier degrades to a neutral result.
func (a *SignalAggregator) Probability(ctx context.Context, ticker string, horizon, days int) (models.ClassifierResult, error) {
	bars, err := a.src.GetHistorical(ctx, xutil.NormalizeTicker(ticker), days)
	if err != nil {
		return models.ClassifierResult{}, err
	}
	return a.clf.PredictFromSignals(ctx, bars, horizon)
}

func (a *SignalAggregator) Train(ctx context.Context, ticker string, horizon int, threshold float64, days int) (map[string]float64, error) {
	ticker = xutil.NormalizeTicker(ticker)
	bars, err := a.history(ctx, ticker, days)
	if err != nil {
		return nil, err
	}
	m, err := a.clf.Train(ctx, bars, horizon, threshold)
	if err != nil {
		return nil, fmt.Errorf("train %s: %w", ticker, err)
	}
	return m, nil
}

type BacktestParams struct {
	Ticker         string
	Days           int
	InitialCapital float64
	Strategy       string
	Short          int
	Long           int
}

func (a *SignalAggregator) Backtest(ctx context.Context, p BacktestParams) (models.BacktestResult, error) {
	strategy, err := backtest.ByName(p.Strategy, p.Short, p.Long)
	if err != nil {
		return models.BacktestResult{}, err
	}
	ticker := xutil.NormalizeTicker(p.Ticker)
	bars, err := a.history(ctx, ticker, p.Days)
	if err != nil {
		return models.BacktestResult{}, err
	}
	res, err := a.bt.Run(bars, strategy, p.InitialCapital)
	if err != nil {
		return models.BacktestResult{}, fmt.Errorf("backtest %s: %w", ticker, err)
	}
	a.l.Debug("backtest done",
		applogger.Ticker(ticker),
		applogger.String("strategy", res.Strategy),
		applogger.Float64("total_return", res.TotalReturn),
		applogger.Int("trades", res.Trades),
	)
	return res, nil
}

// history fetches bars and turns an empty series into InsufficientData.
func (a *SignalAggregator) history(ctx context.Context, ticker string, days int) ([]models.PriceBar, error) {
	bars, err := a.src.GetHistorical(ctx, ticker, days)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: historical data unavailable: %w", ticker, models.ErrInsufficientData)
	}
	return bars, nil
}
