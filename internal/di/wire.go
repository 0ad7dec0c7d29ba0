//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/prateek8731/Market-Monitor/pkg/config"
	"github.com/prateek8731/Market-Monitor/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideBarStore,
		ProvideSignalPublisher,
		ProvidePortfolioStore,
		ProvideArtifactStore,

		// Services
		ProvideMarketDataSource,
		ProvideFilingSource,
		ProvideRegression,
		ProvideClassifier,
		ProvideBacktester,
		ProvideAlertChannels,
		ProvideRetrainQueue,

		// Use cases
		ProvideSignalAggregator,
		ProvideEarlySignals,
		ProvidePortfolioUseCase,
		ProvideRetrainUseCase,
		ProvideAlertDispatcher,
		ProvideScheduler,

		// Transport and lifecycle
		ProvideMonitorHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
