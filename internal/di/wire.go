//go:build wireinject
// +build wireinject

package di

import (
	"PolyChannel/pkg/config"
	"PolyChannel/pkg/server"

	"github.com/google/wire"
)

var engineSet = wire.NewSet(
	// Observability
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,

	// Infrastructure clients
	ProvideClickHouseClient,
	ProvideKafkaProducer,
	ProvideCacheStore,

	// Market data
	ProvideSources,
	ProvideCandleCache,

	// Engine services
	ProvideIndicators,
	ProvideOptimizer,
	ProvideClassifier,
	ProvideCorrelation,

	// Use cases and sinks
	ProvidePipeline,
	ProvideAggregator,
	ProvideExporter,
	ProvideRunSink,
	ProvideRunPublisher,
	ProvideAnalysisUseCase,
	ProvideRunRequest,
)

// InitializeRunner wires the one-shot run command.
func InitializeRunner(cfg *config.Config) (*Runner, func(), error) {
	wire.Build(engineSet, ProvideRunner)
	return nil, nil, nil
}

// InitializeApp wires up all dependencies and returns the daemon.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(engineSet, ProvideScheduler, ProvideHTTPServer, ProvideApp)
	return nil, nil, nil
}
