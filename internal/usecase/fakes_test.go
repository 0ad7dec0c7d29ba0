package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
)

type fakeSource struct {
	bars     []models.PriceBar
	histErr  error
	quote    models.Quote
	quoteErr error
	insiders []models.InsiderTransaction
	insErr   error
	news     []models.NewsItem
	newsErr  error

	preferred domrepo.Provider
	histCalls int32
}

func (f *fakeSource) GetHistorical(context.Context, string, int) ([]models.PriceBar, error) {
	atomic.AddInt32(&f.histCalls, 1)
	return f.bars, f.histErr
}

func (f *fakeSource) GetQuote(_ context.Context, ticker string) (models.Quote, error) {
	q := f.quote
	q.Ticker = ticker
	return q, f.quoteErr
}

func (f *fakeSource) GetInsiderTrades(context.Context, string) ([]models.InsiderTransaction, error) {
	return f.insiders, f.insErr
}

func (f *fakeSource) FetchNews(context.Context) ([]models.NewsItem, error) {
	return f.news, f.newsErr
}

func (f *fakeSource) Prefer(p domrepo.Provider) domrepo.MarketDataSource {
	f.preferred = p
	return f
}

type fakeRegression struct {
	pct float64
	err error
}

func (r *fakeRegression) RunFullPipeline(_ context.Context, bars []models.PriceBar, horizon int) (models.RegressionResult, error) {
	if r.err != nil {
		return models.RegressionResult{}, r.err
	}
	return models.RegressionResult{Horizon: horizon, PredPct: r.pct, TrainRows: len(bars)}, nil
}

type fakeClassifier struct {
	res      models.ClassifierResult
	metrics  map[string]float64
	trainErr error
	trained  int32

	mu        sync.Mutex
	threshold float64
}

func (c *fakeClassifier) Train(_ context.Context, _ []models.PriceBar, _ int, threshold float64) (map[string]float64, error) {
	atomic.AddInt32(&c.trained, 1)
	c.mu.Lock()
	c.threshold = threshold
	c.mu.Unlock()
	return c.metrics, c.trainErr
}

func retrainConfig(tickers ...string) RetrainConfig {
	cfg := DefaultRetrainConfig()
	cfg.Tickers = tickers
	return cfg
}

func (c *fakeClassifier) PredictFromSignals(_ context.Context, _ []models.PriceBar, horizon int) (models.ClassifierResult, error) {
	r := c.res
	r.Horizon = horizon
	return r, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []models.Alert
	result []models.DeliveryStatus
}

func (n *recordingNotifier) SendAll(_ context.Context, a models.Alert) []models.DeliveryStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return n.result
}

type recordingSignalPublisher struct {
	mu   sync.Mutex
	sent []*models.EarlySignals
	err  error
}

func (p *recordingSignalPublisher) PublishSignal(_ context.Context, s *models.EarlySignals) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, s)
	return p.err
}

func (p *recordingSignalPublisher) Close() error { return nil }

type degradeCounter struct {
	domrepo.Metrics
	mu       sync.Mutex
	degraded map[string]int
}

func newDegradeCounter() *degradeCounter { return &degradeCounter{degraded: map[string]int{}} }

func (m *degradeCounter) RecordDegraded(signal string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.degraded[signal]++
}

func bars(n int) []models.PriceBar {
	out := make([]models.PriceBar, n)
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		c := 100 + float64(i%7)
		out[i] = models.PriceBar{Date: d.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	return out
}
