//go:build wireinject
// +build wireinject

package di

import (
	"NewsVol/pkg/config"
	"NewsVol/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideTracing,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisClient,
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories and collaborators
		ProvideAnalysisStore,
		ProvidePublisher,
		ProvideNewsSource,
		ProvidePriceSource,
		ProvideStreamHub,

		// Analytics
		ProvideScorer,
		ProvideForecaster,
		ProvideOrchestrator,

		// Use cases
		ProvideTickerAnalysis,
		ProvideKafkaRequestsHandler,
		ProvideQueue,
		ProvideScheduler,

		// Transport and application server
		ProvideAnalysisHandler,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
