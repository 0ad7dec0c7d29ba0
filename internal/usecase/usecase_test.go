package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/internal/repository"
	"github.com/prateek8731/Market-Monitor/internal/services/alerts"
	"github.com/prateek8731/Market-Monitor/internal/services/backtest"
	"github.com/prateek8731/Market-Monitor/pkg/queue"
)

func TestSignalAggregator_SignalRecommends(t *testing.T) {
	agg := NewSignalAggregator(&fakeSource{bars: bars(200)}, &fakeRegression{pct: 3.5}, &fakeClassifier{}, backtest.NewEngine(), nil)

	res, err := agg.Signal(context.Background(), SignalParams{Ticker: "aapl", Horizon: 2, Lookback: 180, BuyThreshold: 2, SellThreshold: -2})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", res.Ticker)
	assert.Equal(t, models.RecommendBuy, res.Recommend)
}

func TestSignalAggregator_EmptyHistoryIsInsufficient(t *testing.T) {
	agg := NewSignalAggregator(&fakeSource{}, &fakeRegression{}, &fakeClassifier{}, backtest.NewEngine(), nil)

	_, err := agg.Signal(context.Background(), SignalParams{Ticker: "AAPL", Horizon: 2, Lookback: 180})
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	_, err = agg.Train(context.Background(), "AAPL", 3, 0.01, 1000)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	_, err = agg.Backtest(context.Background(), BacktestParams{Ticker: "AAPL", Days: 100, InitialCapital: 1000, Strategy: "buy_hold"})
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	h, err := agg.History(context.Background(), "AAPL", 30)
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Empty(t, h)
}

func TestSignalAggregator_QuotePrefersProvider(t *testing.T) {
	src := &fakeSource{quote: models.Quote{Price: 10}}
	agg := NewSignalAggregator(src, &fakeRegression{}, &fakeClassifier{}, backtest.NewEngine(), nil)

	q, err := agg.Quote(context.Background(), "msft", domrepo.ProviderAlphaVantage)
	require.NoError(t, err)
	assert.Equal(t, "MSFT", q.Ticker)
	assert.Equal(t, domrepo.ProviderAlphaVantage, src.preferred)
}

func TestSignalAggregator_Backtest(t *testing.T) {
	agg := NewSignalAggregator(&fakeSource{bars: bars(120)}, &fakeRegression{}, &fakeClassifier{}, backtest.NewEngine(), nil)

	res, err := agg.Backtest(context.Background(), BacktestParams{Ticker: "SPY", Days: 120, InitialCapital: 1000, Strategy: "sma", Short: 5, Long: 20})
	require.NoError(t, err)
	assert.Len(t, res.EquityCurve, 120)

	_, err = agg.Backtest(context.Background(), BacktestParams{Ticker: "SPY", Strategy: "momentum"})
	assert.ErrorIs(t, err, models.ErrInvalidArgument)
}

func TestRetrain_SuccessNotifies(t *testing.T) {
	clf := &fakeClassifier{metrics: map[string]float64{"accuracy": 0.61, "roc_auc": 0.58}}
	n := &recordingNotifier{}
	uc := NewRetrainUseCase(&fakeSource{bars: bars(300)}, clf, n, DefaultRetrainConfig(), nil)

	res, err := uc.Retrain(context.Background(), "nvda", 0)
	require.NoError(t, err)
	assert.Equal(t, "NVDA", res.Ticker)
	assert.Equal(t, 300, res.Bars)
	assert.Equal(t, 3, res.Horizon)
	assert.Equal(t, 0.01, res.Threshold)
	assert.False(t, res.Queued)
	require.Len(t, n.alerts, 1)
	assert.Equal(t, "retrain", n.alerts[0].Kind)
	assert.Equal(t, "accuracy=0.6100 roc_auc=0.5800", n.alerts[0].Body)
	assert.Equal(t, 0.61, n.alerts[0].Fields["accuracy"])
}

func TestRetrain_ZeroThresholdIsKept(t *testing.T) {
	clf := &fakeClassifier{metrics: map[string]float64{"accuracy": 0.5}}
	cfg := DefaultRetrainConfig()
	cfg.Threshold = 0
	uc := NewRetrainUseCase(&fakeSource{bars: bars(300)}, clf, nil, cfg, nil)

	res, err := uc.Retrain(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Threshold)
	assert.Equal(t, 0.0, clf.threshold)

	uc = NewRetrainUseCase(&fakeSource{bars: bars(300)}, clf, nil, RetrainConfig{}, nil)
	res, err = uc.Retrain(context.Background(), "AAPL", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Horizon)
	assert.Equal(t, 1000, uc.cfg.Days)
}

func TestRetrain_FailureNotifies(t *testing.T) {
	n := &recordingNotifier{}
	uc := NewRetrainUseCase(&fakeSource{}, &fakeClassifier{}, n, DefaultRetrainConfig(), nil)

	_, err := uc.Retrain(context.Background(), "NVDA", 1000)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	require.Len(t, n.alerts, 1)
	assert.Equal(t, "retrain_failed", n.alerts[0].Kind)
}

func TestRetrainAll_JoinsFailures(t *testing.T) {
	clf := &fakeClassifier{trainErr: models.ErrInsufficientData}
	uc := NewRetrainUseCase(&fakeSource{bars: bars(100)}, clf, nil, retrainConfig("A", "B"), nil)

	err := uc.RetrainAll(context.Background())
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	assert.Equal(t, int32(2), clf.trained)
}

type captureQueue struct {
	msgType string
	payload interface{}
}

func (q *captureQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	q.msgType, q.payload = msgType, payload
	return nil
}

func TestRetrain_SubmitEnqueuesAndJobRuns(t *testing.T) {
	clf := &fakeClassifier{metrics: map[string]float64{"accuracy": 0.5}}
	q := &captureQueue{}
	uc := NewRetrainUseCase(&fakeSource{bars: bars(300)}, clf, nil, DefaultRetrainConfig(), nil).WithQueue(q)

	res, err := uc.Submit(context.Background(), "amd", 500)
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.Equal(t, RetrainJobType, q.msgType)
	assert.Equal(t, int32(0), clf.trained, "nothing trains until the job runs")

	// payload as it comes back from Redis
	raw, err := json.Marshal(q.payload)
	require.NoError(t, err)
	job := NewRetrainJob(uc)
	require.NoError(t, job.Handle(context.Background(), json.RawMessage(raw)))
	assert.Equal(t, int32(1), clf.trained)
}

func TestRetrainJob_DataShortfallIsFinal(t *testing.T) {
	job := NewRetrainJob(NewRetrainUseCase(&fakeSource{}, &fakeClassifier{}, nil, DefaultRetrainConfig(), nil))
	payload := json.RawMessage(`{"ticker":"X","days":100}`)
	err := job.Handle(context.Background(), payload)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
	assert.True(t, queue.IsPermanent(err))

	outage := NewRetrainJob(NewRetrainUseCase(&fakeSource{histErr: models.ErrDataUnavailable}, &fakeClassifier{}, nil, DefaultRetrainConfig(), nil))
	err = outage.Handle(context.Background(), payload)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.False(t, queue.IsPermanent(err))

	assert.True(t, queue.IsPermanent(job.Handle(context.Background(), json.RawMessage(`[1,2`))))
}

func signalMsg(t *testing.T, ticker string, band models.Band) []byte {
	t.Helper()
	b, err := json.Marshal(models.EarlySignals{Ticker: ticker, Composite: models.CompositeSignal{Score: 12, Band: band, InsiderBuy: 6}})
	require.NoError(t, err)
	return b
}

func TestAlertDispatcher(t *testing.T) {
	n := &recordingNotifier{result: []models.DeliveryStatus{{Channel: "webhook", Delivered: true}}}
	d := NewAlertDispatcher("market.signals", n, time.Hour, nil)
	ctx := context.Background()

	assert.Equal(t, "market.signals", d.Topic())
	require.NoError(t, d.Handle(ctx, signalMsg(t, "AMD", models.BandModerate)))
	assert.Empty(t, n.alerts)

	require.NoError(t, d.Handle(ctx, signalMsg(t, "AMD", models.BandHigh)))
	require.Len(t, n.alerts, 1)
	assert.Equal(t, "AMD early signal High", n.alerts[0].Subject)
	assert.Equal(t, 6, n.alerts[0].Fields["insider_buy"])

	require.NoError(t, d.Handle(ctx, signalMsg(t, "AMD", models.BandHigh)))
	assert.Len(t, n.alerts, 1, "cooldown suppresses repeats")

	assert.NoError(t, d.Handle(ctx, []byte("{not json")))
}

func TestAlertDispatcher_RetriesWhenAllChannelsFail(t *testing.T) {
	n := &recordingNotifier{result: []models.DeliveryStatus{
		{Channel: "webhook", Error: "502"},
		{Channel: "sms", Error: alerts.StatusNotConfigured},
	}}
	d := NewAlertDispatcher("market.signals", n, time.Hour, nil)
	assert.Error(t, d.Handle(context.Background(), signalMsg(t, "AMD", models.BandHigh)))

	n.result = []models.DeliveryStatus{{Channel: "sms", Error: alerts.StatusNotConfigured}}
	assert.NoError(t, d.Handle(context.Background(), signalMsg(t, "AMD", models.BandHigh)))
}

func TestPortfolio_PlaceMarketOrder(t *testing.T) {
	ctx := context.Background()
	store, err := repository.NewSQLitePortfolioStore(":memory:", 1000, nil)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Init(ctx))

	src := &fakeSource{quote: models.Quote{Price: 50}}
	uc := NewPortfolioUseCase(store, src, nil)

	tr, err := uc.PlaceMarketOrder(ctx, "t", models.SideBuy, 4)
	require.NoError(t, err)
	assert.Equal(t, "T", tr.Symbol)
	assert.Equal(t, 50.0, tr.Price)

	snap, err := uc.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 800.0, snap.Balance)
	require.Len(t, snap.Positions, 1)

	_, err = uc.PlaceMarketOrder(ctx, "T", models.SideBuy, 100)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	src.quote = models.Quote{}
	_, err = uc.PlaceMarketOrder(ctx, "T", models.SideSell, 1)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	src.quoteErr = errors.Join(models.ErrDataUnavailable, errors.New("finnhub down"))
	_, err = uc.PlaceMarketOrder(ctx, "T", models.SideSell, 1)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)

	trades, err := uc.Trades(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}
