//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"FxSignal/pkg/config"
	"FxSignal/pkg/server"
)

var coreSet = wire.NewSet(
	ProvideLogger,
	ProvideRegisterer,
	ProvideMetrics,
	ProvideModelCalls,

	ProvideClickHouseClient,
	ProvidePostgres,
	ProvideKafkaMetrics,
	ProvideKafkaProducer,

	ProvideFileStore,
	ProvideBarBackend,
	ProvideBarStore,
	ProvideArtifactStore,
	ProvideDecisionStore,
	ProvideReportStore,
	ProvidePublisher,
	ProvideOutput,
	ProvideOutputSink,
	ProvideOutputReader,

	ProvideModelBase,
	ProvideClassifier,
	ProvideRanker,

	ProvideInferenceCycle,
	ProvideMetaRanking,
)

// InitializePipeline wires the one-shot commands.
func InitializePipeline(cfg *config.Config) (*Pipeline, func(), error) {
	wire.Build(
		coreSet,
		ProvideBacktest,
		ProvideHistoryReplay,
		ProvideLabelGenerator,
		ProvidePipeline,
	)
	return nil, nil, nil
}

// InitializeApp wires serve mode.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideCache,
		ProvidePriceBook,
		ProvideBarsUseCase,
		ProvideHandler,
		ProvideHTTPServer,
		ProvideIngestBuffer,
		ProvideBarsHandler,
		ProvideKafkaConsumer,
		ProvideApp,
	)
	return nil, nil, nil
}
