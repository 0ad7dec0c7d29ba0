package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/pkg/cache"
)

func TestBuildBarInsert(t *testing.T) {
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := []models.PriceBar{
		{Date: d, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 100},
		{},
		{Date: d.AddDate(0, 0, 1), Open: 1.5, High: 2.5, Low: 1, Close: 2, Volume: 200},
	}
	q, args := buildBarInsert("market.daily_bars", "AAPL", "provider", bars)

	assert.True(t, strings.HasPrefix(q, "INSERT INTO market.daily_bars (ticker, date, open, high, low, close, volume, source) VALUES "))
	assert.Equal(t, 2, strings.Count(q, "(?, ?, ?, ?, ?, ?, ?, ?)"), "zero-date bar is skipped")
	require.Len(t, args, 16)
	assert.Equal(t, "AAPL", args[0])
	assert.Equal(t, d, args[1])
	assert.Equal(t, int64(200), args[14])
	assert.Equal(t, "provider", args[15])
}

func TestBarSchema(t *testing.T) {
	stmts := BarSchema("market.daily_bars")
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS market.daily_bars")
	assert.Contains(t, stmts[0], "ReplacingMergeTree")
	assert.Contains(t, stmts[0], "ORDER BY (ticker, date)")
}

func TestCHBarStore_StoreEmptyIsNoop(t *testing.T) {
	s := newCHBarStore(nil, defaultBarTable, nil)
	assert.NoError(t, s.StoreBars(context.Background(), "AAPL", nil))
}

type capturePublisher struct {
	topic string
	key   []byte
	value interface{}
	err   error
}

func (p *capturePublisher) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func TestKafkaSignalPublisher(t *testing.T) {
	pub := &capturePublisher{}
	sp := newSignalPublisher(pub, "market.signals")

	sig := &models.EarlySignals{Ticker: "NVDA", Composite: models.CompositeSignal{Score: 11, Band: models.BandHigh}}
	require.NoError(t, sp.PublishSignal(context.Background(), sig))
	assert.Equal(t, "market.signals", pub.topic)
	assert.Equal(t, "NVDA", string(pub.key))
	assert.Same(t, sig, pub.value)

	pub.err = errors.New("broker down")
	assert.Error(t, sp.PublishSignal(context.Background(), sig))
	assert.NoError(t, sp.PublishSignal(context.Background(), nil))
	assert.NoError(t, sp.Close())
}

func TestCacheArtifactPersister(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(0)
	defer mc.Close()
	p := NewCacheArtifactPersister(mc, time.Hour)

	_, found, err := p.Load(ctx, "classifier:abc:3")
	require.NoError(t, err)
	assert.False(t, found)

	blob := []byte(`{"kind":"classifier","horizon":3}`)
	require.NoError(t, p.Save(ctx, "classifier:abc:3", blob))

	got, found, err := p.Load(ctx, "classifier:abc:3")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, blob, got)
}
