package ml

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

func TestRegressionMetrics(t *testing.T) {
	y := []float64{1, 2, 3, 4}
	assert.Equal(t, 0.0, MAE(y, y))
	assert.Equal(t, 1.0, R2(y, y))
	assert.InDelta(t, 0.5, MAE(y, []float64{1.5, 2.5, 3.5, 4.5}), 1e-12)
	assert.InDelta(t, 0.0, R2(y, []float64{2.5, 2.5, 2.5, 2.5}), 1e-12)

	flat := []float64{2, 2}
	assert.Equal(t, 1.0, R2(flat, flat))
	assert.Equal(t, 0.0, R2(flat, []float64{1, 3}))
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.75, Accuracy([]int{1, 0, 1, 0}, []float64{0.9, 0.1, 0.6, 0.7}))
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}

func TestROCAUC(t *testing.T) {
	auc, err := ROCAUC([]int{0, 0, 1, 1}, []float64{0.1, 0.4, 0.35, 0.8})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, auc, 1e-12)

	auc, err = ROCAUC([]int{0, 1}, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, auc, 1e-12)

	auc, err = ROCAUC([]int{0, 0, 1}, []float64{0.1, 0.2, 0.9})
	require.NoError(t, err)
	assert.Equal(t, 1.0, auc)

	_, err = ROCAUC([]int{1, 1}, []float64{0.2, 0.3})
	assert.True(t, errors.Is(err, models.ErrInsufficientData))
}
