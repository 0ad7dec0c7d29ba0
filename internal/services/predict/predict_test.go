package predict

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

func randomWalk(n int, seed int64) []models.PriceBar {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, n)
	price := 100.0
	for i := range out {
		price *= 1 + rng.NormFloat64()*0.02
		out[i] = models.PriceBar{
			Date:   start.AddDate(0, 0, i),
			Open:   price,
			High:   price * 1.01,
			Low:    price * 0.99,
			Close:  price,
			Volume: int64(1e6 + rng.Intn(5e5)),
		}
	}
	return out
}

func steadyRise(n int) []models.PriceBar {
	bars := randomWalk(n, 1)
	for i := range bars {
		bars[i].Close = 100 * math.Pow(1.02, float64(i))
	}
	return bars
}

type countingMetrics struct {
	mu          sync.Mutex
	trainings   map[string]int
	predictions map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{trainings: map[string]int{}, predictions: map[string]int{}}
}

func (m *countingMetrics) RecordProviderRequest(string, string) {}
func (m *countingMetrics) RecordProviderError(string, string)   {}
func (m *countingMetrics) RecordDegraded(string)                {}
func (m *countingMetrics) RecordBacktest(string)                {}
func (m *countingMetrics) RecordAlert(string, bool)             {}

func (m *countingMetrics) RecordTraining(kind string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainings[kind]++
}

func (m *countingMetrics) RecordPrediction(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions[kind]++
}

func (m *countingMetrics) trained(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trainings[kind]
}

type memPersister struct {
	mu    sync.Mutex
	blobs map[string][]byte
	loads int
}

func newMemPersister() *memPersister { return &memPersister{blobs: map[string][]byte{}} }

func (p *memPersister) Save(_ context.Context, key string, blob []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (p *memPersister) Load(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loads++
	b, ok := p.blobs[key]
	return b, ok, nil
}
