package repository

import (
	"context"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

// MarketDataSource is the single entry point for upstream market data.
// GetHistorical tolerates provider outage by returning an empty series.
type MarketDataSource interface {
	GetHistorical(ctx context.Context, ticker string, days int) ([]models.PriceBar, error)
	GetQuote(ctx context.Context, ticker string) (models.Quote, error)
	GetInsiderTrades(ctx context.Context, ticker string) ([]models.InsiderTransaction, error)
	FetchNews(ctx context.Context) ([]models.NewsItem, error)
}

// NewsSource yields headlines from one feed or API.
type NewsSource interface {
	Name() string
	FetchNews(ctx context.Context) ([]models.NewsItem, error)
}

// FilingSource lists public regulatory filings for a company identifier.
type FilingSource interface {
	GetFilings(ctx context.Context, cik string) ([]models.Filing, error)
}

type PortfolioStore interface {
	Init(ctx context.Context) error // ensure tables and opening balance
	GetBalance(ctx context.Context) (float64, error)
	PlaceOrder(ctx context.Context, symbol string, side models.Side, qty, price float64) (models.Trade, error)
	ListPositions(ctx context.Context) ([]models.Holding, error)
	ListTrades(ctx context.Context, limit int) ([]models.Trade, error)
	Close() error
}

// AlertChannel delivers a notification. Failures are reported in the status, not as errors.
type AlertChannel interface {
	Name() string
	Send(ctx context.Context, alert models.Alert) models.DeliveryStatus
}

// BarStore is the durable warehouse of daily bars fetched from providers.
type BarStore interface {
	Init(ctx context.Context) error
	StoreBars(ctx context.Context, ticker string, bars []models.PriceBar) error
	GetBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error)
	Health(ctx context.Context) error
	Close() error
}

type SignalPublisher interface {
	PublishSignal(ctx context.Context, s *models.EarlySignals) error
	Close() error
}

// ArtifactPersister stores opaque model blobs. Load returns found=false on a miss.
type ArtifactPersister interface {
	Save(ctx context.Context, key string, blob []byte) error
	Load(ctx context.Context, key string) (blob []byte, found bool, err error)
}

type Metrics interface {
	RecordProviderRequest(provider, op string)
	RecordProviderError(provider, op string)
	RecordDegraded(signal string)
	RecordTraining(kind string, seconds float64)
	RecordPrediction(kind string)
	RecordBacktest(strategy string)
	RecordAlert(channel string, delivered bool)
}
