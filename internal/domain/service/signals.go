package service

import (
	"context"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

// PctPredictor forecasts percent change over a horizon from a daily series.
type PctPredictor interface {
	RunFullPipeline(ctx context.Context, bars []models.PriceBar, horizon int) (models.RegressionResult, error)
}

// ProbabilityPredictor estimates the probability that the forward return exceeds a threshold.
type ProbabilityPredictor interface {
	Train(ctx context.Context, bars []models.PriceBar, horizon int, threshold float64) (map[string]float64, error)
	PredictFromSignals(ctx context.Context, bars []models.PriceBar, horizon int) (models.ClassifierResult, error)
}

// Strategy maps the history seen so far (inclusive of today) to today's position.
type Strategy interface {
	Name() string
	Signal(history []models.PriceBar) models.Position
}

// Backtester replays a strategy over a price series.
type Backtester interface {
	Run(bars []models.PriceBar, strategy Strategy, initialCapital float64) (models.BacktestResult, error)
}
