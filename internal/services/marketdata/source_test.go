package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/pkg/cache"
)

type fakeProvider struct {
	name   string
	bars   []models.PriceBar
	quote  *models.Quote
	txs    []models.InsiderTransaction
	err    error
	mu     sync.Mutex
	histN  int
	quoteN int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetHistorical(context.Context, string, int) ([]models.PriceBar, error) {
	f.mu.Lock()
	f.histN++
	f.mu.Unlock()
	return f.bars, f.err
}

func (f *fakeProvider) GetQuote(_ context.Context, ticker string) (models.Quote, error) {
	f.mu.Lock()
	f.quoteN++
	f.mu.Unlock()
	if f.quote == nil {
		return models.Quote{}, errors.Join(models.ErrDataUnavailable, f.err)
	}
	q := *f.quote
	q.Ticker = ticker
	return q, nil
}

func (f *fakeProvider) GetInsiderTrades(context.Context, string) ([]models.InsiderTransaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.txs, nil
}

type degradedMetrics struct {
	repository.Metrics
	degraded []string
}

func (m *degradedMetrics) RecordDegraded(signal string) { m.degraded = append(m.degraded, signal) }

func sampleBars(n int) []models.PriceBar {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]models.PriceBar, n)
	for i := range out {
		out[i] = models.PriceBar{Date: start.AddDate(0, 0, i), Close: float64(100 + i), Volume: 10}
	}
	return out
}

func TestFallbackSource_HistoricalFallsThrough(t *testing.T) {
	down := &fakeProvider{name: "finnhub", err: models.ErrDataUnavailable}
	up := &fakeProvider{name: "alphavantage", bars: sampleBars(3)}

	src := NewFallbackSource([]Provider{down, up}, nil)
	bars, err := src.GetHistorical(context.Background(), " aapl ", 10)
	require.NoError(t, err)
	assert.Len(t, bars, 3)
	assert.Equal(t, 1, down.histN)
}

func TestFallbackSource_HistoricalSortedAndDeduplicated(t *testing.T) {
	raw := sampleBars(4)
	dup := raw[1]
	dup.Date = dup.Date.Add(16 * time.Hour)
	dup.Close = 999
	shuffled := []models.PriceBar{raw[3], raw[1], raw[0], dup, raw[2]}
	p := &fakeProvider{name: "finnhub", bars: shuffled}

	bars, err := NewFallbackSource([]Provider{p}, nil).GetHistorical(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	require.Len(t, bars, 4)
	for i := 1; i < len(bars); i++ {
		assert.True(t, bars[i].Date.After(bars[i-1].Date))
	}
	assert.Equal(t, 999.0, bars[1].Close, "later duplicate wins")
	assert.Equal(t, raw[3].Date, shuffled[0].Date, "provider slice untouched")
}

func TestFallbackSource_HistoricalOutageIsEmpty(t *testing.T) {
	m := &degradedMetrics{}
	src := NewFallbackSource([]Provider{
		&fakeProvider{name: "finnhub", err: models.ErrDataUnavailable},
		&fakeProvider{name: "alphavantage"},
	}, nil, WithMetrics(m))

	bars, err := src.GetHistorical(context.Background(), "AAPL", 10)
	require.NoError(t, err)
	assert.Empty(t, bars)
	assert.Equal(t, []string{"history"}, m.degraded)

	bars, err = src.GetHistorical(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestFallbackSource_QuoteExhausted(t *testing.T) {
	src := NewFallbackSource([]Provider{
		&fakeProvider{name: "finnhub", err: errors.New("boom")},
		&fakeProvider{name: "alphavantage", err: errors.New("throttled")},
	}, nil)

	_, err := src.GetQuote(context.Background(), "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.Contains(t, err.Error(), "throttled")

	_, err = src.GetQuote(context.Background(), "  ")
	assert.ErrorIs(t, err, models.ErrInvalidArgument)

	_, err = NewFallbackSource(nil, nil).GetInsiderTrades(context.Background(), "AAPL")
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestFallbackSource_Prefer(t *testing.T) {
	fh := &fakeProvider{name: "finnhub", quote: &models.Quote{Price: 1, Source: "finnhub"}}
	av := &fakeProvider{name: "alphavantage", quote: &models.Quote{Price: 2, Source: "alphavantage"}}
	src := NewFallbackSource([]Provider{fh, av}, nil)

	q, err := src.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "finnhub", q.Source)

	q, err = src.Prefer(repository.ProviderAlphaVantage).GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "alphavantage", q.Source)
	assert.Equal(t, 1, fh.quoteN, "original order untouched")
}

func TestCachedSource_CachesNonEmptyHistory(t *testing.T) {
	up := &fakeProvider{name: "finnhub", bars: sampleBars(5)}
	mem := cache.NewMemoryCache(0)
	defer mem.Close()

	src := NewCachedSource(NewFallbackSource([]Provider{up}, nil), mem, time.Minute, "finnhub", nil)
	for i := 0; i < 3; i++ {
		bars, err := src.GetHistorical(context.Background(), "AAPL", 30)
		require.NoError(t, err)
		require.Len(t, bars, 5)
		assert.Equal(t, 104.0, bars[4].Close)
	}
	assert.Equal(t, 1, up.histN)

	_, err := src.GetHistorical(context.Background(), "AAPL", 60)
	require.NoError(t, err)
	assert.Equal(t, 2, up.histN, "days is part of the key")
}

func TestCachedSource_EmptyNotCached(t *testing.T) {
	up := &fakeProvider{name: "finnhub"}
	mem := cache.NewMemoryCache(0)
	defer mem.Close()

	src := NewCachedSource(NewFallbackSource([]Provider{up}, nil), mem, time.Minute, "finnhub", nil)
	_, _ = src.GetHistorical(context.Background(), "AAPL", 30)
	_, _ = src.GetHistorical(context.Background(), "AAPL", 30)
	assert.Equal(t, 2, up.histN)
}

type memBarStore struct {
	mu   sync.Mutex
	bars map[string][]models.PriceBar
}

func (s *memBarStore) Init(context.Context) error   { return nil }
func (s *memBarStore) Health(context.Context) error { return nil }
func (s *memBarStore) Close() error                 { return nil }

func (s *memBarStore) StoreBars(_ context.Context, ticker string, bars []models.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[ticker] = append([]models.PriceBar(nil), bars...)
	return nil
}

func (s *memBarStore) GetBars(_ context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PriceBar
	for _, b := range s.bars[ticker] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func TestStoreBackedSource_ServesStoredBarsOnOutage(t *testing.T) {
	up := &fakeProvider{name: "finnhub", bars: sampleBars(4)}
	store := &memBarStore{bars: map[string][]models.PriceBar{}}
	now := func() time.Time { return time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC) }

	src := NewStoreBackedSource(NewFallbackSource([]Provider{up}, nil), store, WithClock(now))
	bars, err := src.GetHistorical(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	require.Len(t, bars, 4)
	require.Len(t, store.bars["AAPL"], 4)

	up.bars = nil
	bars, err = src.GetHistorical(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	assert.Len(t, bars, 4)
}

func TestFallbackSource_NewsFromFinnhub(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "general", r.URL.Query().Get("category"))
		_, _ = w.Write([]byte(`[{"datetime":1710460800,"headline":"Chip merger","source":"Reuters","url":"https://x"}]`))
	}))
	defer srv.Close()

	src := NewFallbackSource(nil, NewFinnhub(srv.URL, "k", 0, 1, time.Second))
	items, err := src.FetchNews(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Chip merger", items[0].Title)
	assert.Equal(t, "Finnhub Reuters", items[0].Source)
}
