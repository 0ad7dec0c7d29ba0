package ml

import (
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

// Kind of estimator a forest was fitted as.
type Kind string

const (
	KindRegressor  Kind = "regressor"
	KindClassifier Kind = "classifier"
)

// Config controls forest fitting. Zero values fall back to per-kind defaults.
type Config struct {
	Trees          int   `json:"trees" yaml:"trees"`
	MaxDepth       int   `json:"max_depth" yaml:"max_depth"`
	MinSamplesLeaf int   `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MaxFeatures    int   `json:"max_features" yaml:"max_features"`
	Seed           int64 `json:"seed" yaml:"seed"`
	Workers        int   `json:"-" yaml:"workers"`
}

// Forest is a bagged ensemble of CART trees. Classifier output is the positive-class probability.
type Forest struct {
	Kind      Kind   `json:"kind"`
	NFeatures int    `json:"n_features"`
	Trees     []Tree `json:"trees"`
}

// FitRegressor fits a random forest regressor (all features considered per split).
func FitRegressor(x [][]float64, y []float64, cfg Config) (*Forest, error) {
	if err := checkShape(x, len(y)); err != nil {
		return nil, err
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = len(x[0])
	}
	return fit(KindRegressor, x, y, cfg), nil
}

// FitClassifier fits a binary random forest classifier (sqrt of the features per split).
func FitClassifier(x [][]float64, y []int, cfg Config) (*Forest, error) {
	if err := checkShape(x, len(y)); err != nil {
		return nil, err
	}
	yf := make([]float64, len(y))
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("label %d at row %d: %w", v, i, models.ErrInvalidArgument)
		}
		yf[i] = float64(v)
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 200
	}
	if cfg.MaxFeatures <= 0 {
		cfg.MaxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(len(x[0]))))))
	}
	return fit(KindClassifier, x, yf, cfg), nil
}

func checkShape(x [][]float64, ny int) error {
	if len(x) == 0 {
		return fmt.Errorf("fit on empty matrix: %w", models.ErrInsufficientData)
	}
	if len(x) != ny {
		return fmt.Errorf("%d rows but %d targets: %w", len(x), ny, models.ErrInvalidArgument)
	}
	if len(x[0]) == 0 {
		return fmt.Errorf("fit with no features: %w", models.ErrInvalidArgument)
	}
	return nil
}

func fit(kind Kind, x [][]float64, y []float64, cfg Config) *Forest {
	if cfg.MinSamplesLeaf <= 0 {
		cfg.MinSamplesLeaf = 1
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	params := treeParams{maxDepth: cfg.MaxDepth, minSamplesLeaf: cfg.MinSamplesLeaf, maxFeatures: cfg.MaxFeatures}

	// Per-tree seeds are drawn up front so results do not depend on scheduling.
	master := rand.New(rand.NewSource(cfg.Seed))
	seeds := make([]int64, cfg.Trees)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	trees := make([]Tree, cfg.Trees)
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i := range trees {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			rng := rand.New(rand.NewSource(seeds[i]))
			trees[i] = growTree(x, y, bootstrap(len(x), rng), params, rng)
		}(i)
	}
	wg.Wait()
	return &Forest{Kind: kind, NFeatures: len(x[0]), Trees: trees}
}

func bootstrap(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}

// Predict averages the tree outputs for one feature row.
func (f *Forest) Predict(x []float64) (float64, error) {
	if len(x) != f.NFeatures {
		return 0, fmt.Errorf("row has %d features, forest expects %d: %w", len(x), f.NFeatures, models.ErrSchemaMismatch)
	}
	if len(f.Trees) == 0 {
		return 0, nil
	}
	sum := 0.0
	for i := range f.Trees {
		sum += f.Trees[i].Predict(x)
	}
	return sum / float64(len(f.Trees)), nil
}

// PredictAll predicts every row of x.
func (f *Forest) PredictAll(x [][]float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, row := range x {
		v, err := f.Predict(row)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
