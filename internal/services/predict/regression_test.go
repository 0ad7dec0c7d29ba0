package predict

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/services/ml"
)

func TestRegression_InsufficientData(t *testing.T) {
	r := NewRegression(RegressionConfig{Trees: 5, Seed: 42})
	for _, bars := range [][]models.PriceBar{nil, randomWalk(30, 1), randomWalk(52, 1)} {
		_, err := r.RunFullPipeline(context.Background(), bars, 3)
		require.Error(t, err)
		assert.True(t, errors.Is(err, models.ErrInsufficientData), "len=%d", len(bars))
	}
}

func TestRegression_Pipeline(t *testing.T) {
	m := newCountingMetrics()
	r := NewRegression(RegressionConfig{Trees: 10, Seed: 42}, WithMetrics(m))
	bars := randomWalk(200, 3)

	res, err := r.RunFullPipeline(context.Background(), bars, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Horizon)
	assert.Equal(t, 198, res.TrainRows+res.TestRows)
	assert.Equal(t, 40, res.TestRows)
	assert.Len(t, res.RecentSeries, 60)
	assert.Equal(t, bars[len(bars)-1], res.RecentSeries[59])
	assert.Contains(t, res.Metrics, "mae")
	assert.Contains(t, res.Metrics, "r2")
	assert.False(t, math.IsNaN(res.PredPct))
	assert.GreaterOrEqual(t, res.Metrics["mae"], 0.0)
	assert.Greater(t, res.RealizedVol, 0.0)
	assert.Equal(t, 1, m.trained(string(ml.KindRegressor)))
}

func TestRegression_Deterministic(t *testing.T) {
	bars := randomWalk(150, 9)
	a, err := NewRegression(RegressionConfig{Trees: 8, Seed: 42, Workers: 1}).RunFullPipeline(context.Background(), bars, 3)
	require.NoError(t, err)
	b, err := NewRegression(RegressionConfig{Trees: 8, Seed: 42, Workers: 4}).RunFullPipeline(context.Background(), bars, 3)
	require.NoError(t, err)

	assert.Equal(t, math.Float64bits(a.PredPct), math.Float64bits(b.PredPct))
	assert.Equal(t, a.Metrics, b.Metrics)
}

func TestRegression_ChronologicalSplitHoldsOutTail(t *testing.T) {
	r := NewRegression(RegressionConfig{Trees: 5, Seed: 42, SplitMode: ml.SplitChronological})
	res, err := r.RunFullPipeline(context.Background(), randomWalk(120, 4), 1)
	require.NoError(t, err)
	assert.Equal(t, 24, res.TestRows)
}

func TestRecommend(t *testing.T) {
	assert.Equal(t, models.RecommendBuy, Recommend(2.0, 2, -2))
	assert.Equal(t, models.RecommendSell, Recommend(-3.5, 2, -2))
	assert.Equal(t, models.RecommendHold, Recommend(0.4, 2, -2))
}
