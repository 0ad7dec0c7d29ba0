package predict

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domsvc "github.com/prateek8731/Market-Monitor/internal/domain/service"
	"github.com/prateek8731/Market-Monitor/internal/services/features"
	"github.com/prateek8731/Market-Monitor/internal/services/ml"
	"github.com/prateek8731/Market-Monitor/pkg/logger"
)

// ClassifierConfig controls the probability-of-positive-return model.
type ClassifierConfig struct {
	Trees     int
	Seed      int64
	TestSize  float64
	Threshold float64 // used by lazy training
	Workers   int
}

// Classifier trains artifacts into an ArtifactStore and predicts from them.
type Classifier struct {
	cfg   ClassifierConfig
	store *ArtifactStore
	opts  options

	lazyMu sync.Mutex
	failed map[seriesKey]struct{}
}

// seriesKey identifies one input series for a key; a failed lazy fit is not
// repeated for the same series, while any other series still gets trained.
type seriesKey struct {
	key         ArtifactKey
	first, last time.Time
	n           int
}

const maxFailedSeries = 1024

func newSeriesKey(key ArtifactKey, bars []models.PriceBar) seriesKey {
	sk := seriesKey{key: key, n: len(bars)}
	if len(bars) > 0 {
		sk.first, sk.last = bars[0].Date, bars[len(bars)-1].Date
	}
	return sk
}

func NewClassifier(cfg ClassifierConfig, store *ArtifactStore, opts ...Option) *Classifier {
	if cfg.TestSize <= 0 {
		cfg.TestSize = 0.2
	}
	if store == nil {
		store = NewArtifactStore()
	}
	return &Classifier{cfg: cfg, store: store, opts: buildOptions(opts), failed: map[seriesKey]struct{}{}}
}

// Train fits a classifier on a stratified split, binds the artifact and returns held-out metrics.
func (c *Classifier) Train(ctx context.Context, bars []models.PriceBar, horizon int, threshold float64) (map[string]float64, error) {
	m, err := features.Build(bars)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	labels, err := features.BuildLabels(bars, horizon)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}
	x := features.Align(m, labels)
	y := labels.Classification(threshold)

	train, test, err := ml.StratifiedSplit(y, c.cfg.TestSize, c.cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("classifier split: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	forest, err := ml.FitClassifier(ml.Rows(x, train), ml.Values(y, train), ml.Config{
		Trees:   c.cfg.Trees,
		Seed:    c.cfg.Seed,
		Workers: c.cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("classifier fit: %w", err)
	}
	took := time.Since(start)
	c.opts.recordTraining(string(ml.KindClassifier), took.Seconds())

	yTest := ml.Values(y, test)
	prob, err := forest.PredictAll(ml.Rows(x, test))
	if err != nil {
		return nil, fmt.Errorf("classifier evaluate: %w", err)
	}
	auc, err := ml.ROCAUC(yTest, prob)
	if err != nil {
		return nil, fmt.Errorf("classifier evaluate: %w", err)
	}
	metrics := map[string]float64{
		"accuracy": ml.Accuracy(yTest, prob),
		"roc_auc":  auc,
	}

	a := &Artifact{
		Schema:    m.Schema,
		Horizon:   horizon,
		Threshold: threshold,
		Forest:    forest,
		Metrics:   metrics,
		TrainedAt: time.Now().UTC(),
	}
	if err := c.store.Put(ctx, a); err != nil {
		c.opts.log.Warn("classifier artifact not persisted", logger.String("key", a.Key().String()), logger.Error(err))
	}
	c.opts.log.Info("classifier trained",
		logger.Int("horizon", horizon),
		logger.Float64("threshold", threshold),
		logger.Int("train_rows", len(train)),
		logger.Float64("accuracy", metrics["accuracy"]),
		logger.Float64("roc_auc", auc),
		logger.Duration("took", took),
	)
	return copyMetrics(metrics), nil
}

// PredictFromSignals returns the positive-class probability for the latest row. Without a bound
// artifact it trains lazily; a successful fit binds the key, and an untrainable series yields a
// neutral, unavailable result.
func (c *Classifier) PredictFromSignals(ctx context.Context, bars []models.PriceBar, horizon int) (models.ClassifierResult, error) {
	m, err := features.Build(bars)
	if err != nil {
		return neutral(horizon, err), nil
	}
	key := ArtifactKey{Kind: ml.KindClassifier, Schema: m.Schema.Fingerprint(), Horizon: horizon}

	a, ok := c.store.Get(ctx, key)
	if !ok {
		a, err = c.lazyTrain(ctx, key, bars)
		if err != nil {
			if models.IsDegradable(err) || errors.Is(err, models.ErrInvalidArgument) {
				return neutral(horizon, err), nil
			}
			return models.ClassifierResult{}, err
		}
	}

	p, err := a.Predict(m.Schema, m.Last())
	if err != nil {
		return models.ClassifierResult{}, fmt.Errorf("classifier predict: %w", err)
	}
	c.opts.recordPrediction(string(ml.KindClassifier))
	return models.ClassifierResult{
		Horizon:   horizon,
		ProbPos:   p,
		Metrics:   copyMetrics(a.Metrics),
		Available: true,
	}, nil
}

func (c *Classifier) lazyTrain(ctx context.Context, key ArtifactKey, bars []models.PriceBar) (*Artifact, error) {
	c.lazyMu.Lock()
	defer c.lazyMu.Unlock()

	if a, ok := c.store.Get(ctx, key); ok {
		return a, nil
	}
	sk := newSeriesKey(key, bars)
	if _, ok := c.failed[sk]; ok {
		return nil, fmt.Errorf("no artifact for %s, series of %d bars already failed to train: %w", key, sk.n, models.ErrInsufficientData)
	}

	if _, err := c.Train(ctx, bars, key.Horizon, c.cfg.Threshold); err != nil {
		if len(c.failed) >= maxFailedSeries {
			c.failed = map[seriesKey]struct{}{}
		}
		c.failed[sk] = struct{}{}
		return nil, err
	}
	a, ok := c.store.Get(ctx, key)
	if !ok {
		return nil, fmt.Errorf("artifact %s missing after training: %w", key, models.ErrSchemaMismatch)
	}
	return a, nil
}

// Store exposes the artifact store the classifier binds into.
func (c *Classifier) Store() *ArtifactStore { return c.store }

func neutral(horizon int, reason error) models.ClassifierResult {
	return models.ClassifierResult{
		Horizon: horizon,
		ProbPos: 0,
		Metrics: map[string]float64{},
		Reason:  reason.Error(),
	}
}

func copyMetrics(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

var _ domsvc.ProbabilityPredictor = (*Classifier)(nil)
