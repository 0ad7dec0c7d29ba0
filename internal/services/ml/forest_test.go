package ml

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

func stepData(n int) ([][]float64, []float64, []int) {
	rng := rand.New(rand.NewSource(7))
	x := make([][]float64, n)
	y := make([]float64, n)
	c := make([]int, n)
	for i := range x {
		a, b := rng.Float64(), rng.Float64()
		x[i] = []float64{a, b, rng.Float64()}
		if a > 0.5 {
			y[i] = 10 + b
			c[i] = 1
		} else {
			y[i] = -10 + b
		}
	}
	return x, y, c
}

func TestTree_Predict(t *testing.T) {
	tr := Tree{Nodes: []Node{
		{Feature: 0, Threshold: 1.5, Left: 1, Right: 2},
		{Feature: leaf, Value: -1},
		{Feature: leaf, Value: 1},
	}}
	assert.Equal(t, -1.0, tr.Predict([]float64{1}))
	assert.Equal(t, 1.0, tr.Predict([]float64{2}))
	assert.Equal(t, 0.0, (&Tree{}).Predict([]float64{2}))
}

func TestFitRegressor_LearnsStep(t *testing.T) {
	x, y, _ := stepData(300)
	f, err := FitRegressor(x, y, Config{Trees: 30, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, KindRegressor, f.Kind)

	hi, err := f.Predict([]float64{0.9, 0.5, 0.5})
	require.NoError(t, err)
	lo, err := f.Predict([]float64{0.1, 0.5, 0.5})
	require.NoError(t, err)
	assert.Greater(t, hi, 5.0)
	assert.Less(t, lo, -5.0)
}

func TestFitClassifier_Probabilities(t *testing.T) {
	x, _, c := stepData(300)
	f, err := FitClassifier(x, c, Config{Trees: 50, Seed: 42})
	require.NoError(t, err)

	probs, err := f.PredictAll([][]float64{{0.95, 0.2, 0.2}, {0.05, 0.2, 0.2}})
	require.NoError(t, err)
	for _, p := range probs {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
	assert.Greater(t, probs[0], 0.7)
	assert.Less(t, probs[1], 0.3)
}

func TestFit_Deterministic(t *testing.T) {
	x, y, _ := stepData(200)
	a, err := FitRegressor(x, y, Config{Trees: 20, Seed: 42, Workers: 1})
	require.NoError(t, err)
	b, err := FitRegressor(x, y, Config{Trees: 20, Seed: 42, Workers: 8})
	require.NoError(t, err)

	ja, _ := json.Marshal(a)
	jb, _ := json.Marshal(b)
	assert.Equal(t, string(ja), string(jb))
}

func TestForest_JSONRoundTripPredicts(t *testing.T) {
	x, y, _ := stepData(100)
	f, err := FitRegressor(x, y, Config{Trees: 5, Seed: 1})
	require.NoError(t, err)
	blob, err := json.Marshal(f)
	require.NoError(t, err)
	var g Forest
	require.NoError(t, json.Unmarshal(blob, &g))

	for _, row := range x[:10] {
		pf, _ := f.Predict(row)
		pg, _ := g.Predict(row)
		assert.Equal(t, pf, pg)
	}
}

func TestForest_Errors(t *testing.T) {
	_, err := FitRegressor(nil, nil, Config{})
	assert.True(t, errors.Is(err, models.ErrInsufficientData))

	_, err = FitRegressor([][]float64{{1}}, []float64{1, 2}, Config{})
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))

	_, err = FitClassifier([][]float64{{1}}, []int{2}, Config{})
	assert.True(t, errors.Is(err, models.ErrInvalidArgument))

	f, err := FitRegressor([][]float64{{1, 2}, {2, 3}}, []float64{1, 2}, Config{Trees: 2})
	require.NoError(t, err)
	_, err = f.Predict([]float64{1})
	assert.True(t, errors.Is(err, models.ErrSchemaMismatch))
}
