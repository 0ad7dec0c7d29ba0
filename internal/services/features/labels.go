package features

import (
	"fmt"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

// MinRows is the fewest labelled rows a model may train on.
const MinRows = 50

// Labels holds forward returns for rows 0..n-h-1 of a series.
type Labels struct {
	Horizon int
	Returns []float64
}

// Len returns the number of labelled rows.
func (l Labels) Len() int { return len(l.Returns) }

// BuildLabels computes future_return[i] = close[i+h]/close[i] - 1 and drops rows whose
// target lies past the end of the series.
func BuildLabels(bars []models.PriceBar, horizon int) (Labels, error) {
	if horizon < 1 {
		return Labels{}, fmt.Errorf("horizon %d: %w", horizon, models.ErrInvalidArgument)
	}
	n := len(bars) - horizon
	if n < MinRows {
		if n < 0 {
			n = 0
		}
		return Labels{}, fmt.Errorf("%d labelled rows, need %d: %w", n, MinRows, models.ErrInsufficientData)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		cur := bars[i].Close
		if cur == 0 {
			continue
		}
		out[i] = bars[i+horizon].Close/cur - 1
	}
	return Labels{Horizon: horizon, Returns: out}, nil
}

// Regression returns the percent-change targets.
func (l Labels) Regression() []float64 {
	out := make([]float64, len(l.Returns))
	for i, r := range l.Returns {
		out[i] = r * 100
	}
	return out
}

// Classification returns 1 where the forward return exceeds threshold, else 0.
func (l Labels) Classification(threshold float64) []int {
	out := make([]int, len(l.Returns))
	for i, r := range l.Returns {
		if r > threshold {
			out[i] = 1
		}
	}
	return out
}

// Align trims the feature matrix to the labelled rows.
func Align(m Matrix, l Labels) [][]float64 {
	return m.Rows[:l.Len()]
}
