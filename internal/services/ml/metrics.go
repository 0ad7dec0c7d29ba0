package ml

import (
	"fmt"
	"math"
	"sort"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

// MAE is the mean absolute error.
func MAE(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	s := 0.0
	for i := range yTrue {
		s += math.Abs(yTrue[i] - yPred[i])
	}
	return s / float64(len(yTrue))
}

// R2 is the coefficient of determination. A constant target scores 1 when predicted
// exactly and 0 otherwise.
func R2(yTrue, yPred []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range yTrue {
		mean += v
	}
	mean /= float64(len(yTrue))
	ssRes, ssTot := 0.0, 0.0
	for i := range yTrue {
		d := yTrue[i] - yPred[i]
		ssRes += d * d
		m := yTrue[i] - mean
		ssTot += m * m
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1
		}
		return 0
	}
	return 1 - ssRes/ssTot
}

// Accuracy of probabilities thresholded at 0.5 against 0/1 labels.
func Accuracy(yTrue []int, prob []float64) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	hit := 0
	for i, y := range yTrue {
		pred := 0
		if prob[i] > 0.5 {
			pred = 1
		}
		if pred == y {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue))
}

// ROCAUC is the area under the ROC curve via the rank-sum statistic, averaging tied ranks.
func ROCAUC(yTrue []int, score []float64) (float64, error) {
	n := len(yTrue)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return score[idx[a]] < score[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && score[idx[j+1]] == score[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	pos, neg := 0, 0
	rankSum := 0.0
	for i, y := range yTrue {
		if y == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0, fmt.Errorf("roc auc needs both classes: %w", models.ErrInsufficientData)
	}
	return (rankSum - float64(pos*(pos+1))/2) / float64(pos*neg), nil
}
