package predict

import (
	"context"
	"fmt"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domsvc "github.com/prateek8731/Market-Monitor/internal/domain/service"
	"github.com/prateek8731/Market-Monitor/internal/services/features"
	"github.com/prateek8731/Market-Monitor/internal/services/ml"
	"github.com/prateek8731/Market-Monitor/pkg/logger"
)

// RegressionConfig controls the baseline percent-change predictor.
type RegressionConfig struct {
	Trees      int
	Seed       int64
	TestSize   float64
	SplitMode  ml.SplitMode
	RecentBars int
	Workers    int
}

// Regression is the baseline predictor. Each call trains a fresh forest; nothing is cached.
type Regression struct {
	cfg  RegressionConfig
	opts options
}

func NewRegression(cfg RegressionConfig, opts ...Option) *Regression {
	if cfg.TestSize <= 0 {
		cfg.TestSize = 0.2
	}
	if cfg.RecentBars <= 0 {
		cfg.RecentBars = 60
	}
	if cfg.SplitMode == "" {
		cfg.SplitMode = ml.SplitRandom
	}
	return &Regression{cfg: cfg, opts: buildOptions(opts)}
}

// RunFullPipeline featurizes, labels, splits, fits, evaluates and forecasts the last row.
func (r *Regression) RunFullPipeline(ctx context.Context, bars []models.PriceBar, horizon int) (models.RegressionResult, error) {
	var res models.RegressionResult
	if len(bars) == 0 {
		return res, fmt.Errorf("regression: empty series: %w", models.ErrInsufficientData)
	}
	m, err := features.Build(bars)
	if err != nil {
		return res, fmt.Errorf("regression: %w", err)
	}
	labels, err := features.BuildLabels(bars, horizon)
	if err != nil {
		return res, fmt.Errorf("regression: %w", err)
	}
	x := features.Align(m, labels)
	y := labels.Regression()

	train, test, err := ml.Split(r.cfg.SplitMode, len(x), r.cfg.TestSize, r.cfg.Seed)
	if err != nil {
		return res, fmt.Errorf("regression split: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	start := time.Now()
	forest, err := ml.FitRegressor(ml.Rows(x, train), ml.Values(y, train), ml.Config{
		Trees:   r.cfg.Trees,
		Seed:    r.cfg.Seed,
		Workers: r.cfg.Workers,
	})
	if err != nil {
		return res, fmt.Errorf("regression fit: %w", err)
	}
	r.opts.recordTraining(string(ml.KindRegressor), time.Since(start).Seconds())

	yTest := ml.Values(y, test)
	pred, err := forest.PredictAll(ml.Rows(x, test))
	if err != nil {
		return res, fmt.Errorf("regression evaluate: %w", err)
	}
	pct, err := forest.Predict(m.Last())
	if err != nil {
		return res, fmt.Errorf("regression predict: %w", err)
	}
	r.opts.recordPrediction(string(ml.KindRegressor))

	res = models.RegressionResult{
		Horizon: horizon,
		PredPct: pct,
		Metrics: map[string]float64{
			"mae": ml.MAE(yTest, pred),
			"r2":  ml.R2(yTest, pred),
		},
		RecentSeries: recent(bars, r.cfg.RecentBars),
		TrainRows:    len(train),
		TestRows:     len(test),
		RealizedVol:  features.RealizedVolatility(features.ComputeLogReturns(bars), 20, features.TradingDaysPerYear),
	}
	r.opts.log.Debug("regression pipeline done",
		logger.Int("horizon", horizon),
		logger.Int("rows", len(x)),
		logger.Float64("pred_pct", pct),
		logger.Duration("took", time.Since(start)),
	)
	return res, nil
}

func recent(bars []models.PriceBar, n int) []models.PriceBar {
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return append([]models.PriceBar(nil), bars...)
}

// Recommend maps a percent-change forecast onto BUY/SELL/HOLD.
func Recommend(pct, buyAt, sellAt float64) models.Recommendation {
	switch {
	case pct >= buyAt:
		return models.RecommendBuy
	case pct <= sellAt:
		return models.RecommendSell
	default:
		return models.RecommendHold
	}
}

var _ domsvc.PctPredictor = (*Regression)(nil)
