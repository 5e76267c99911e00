package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"FxSignal/internal/domain/models"
	domrepo "FxSignal/internal/domain/repository"
	domsvc "FxSignal/internal/domain/service"
	"FxSignal/internal/handler/api"
	"FxSignal/internal/middleware"
	"FxSignal/internal/repository"
	icache "FxSignal/internal/service/cache"
	svcmetrics "FxSignal/internal/service/metrics"
	"FxSignal/internal/service/pricebook"
	"FxSignal/internal/service/ratelimit"
	"FxSignal/internal/services/analytics"
	"FxSignal/internal/services/meta"
	"FxSignal/internal/services/signal"
	"FxSignal/internal/usecase"
	pkgch "FxSignal/pkg/clickhouse"
	"FxSignal/pkg/config"
	xhttp "FxSignal/pkg/http"
	pkgkafka "FxSignal/pkg/kafka"
	applogger "FxSignal/pkg/logger"
	"FxSignal/pkg/metrics"
	"FxSignal/pkg/server"
)

// BarBackend is the bar store the process reads and the consumer appends to.
type BarBackend interface {
	domrepo.BarStore
	domrepo.BarWriter
}

// Pipeline holds the use cases behind the one-shot commands.
type Pipeline struct {
	Config   *config.Config
	Logger   *applogger.Logger
	Cycle    *usecase.InferenceCycle
	Meta     *usecase.MetaRanking
	Backtest *usecase.Backtest
	History  *usecase.HistoryReplay
	Labels   *usecase.LabelGenerator
}

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegisterer returns the default registry, or a private one when
// metrics are disabled so collectors still register but are never scraped.
func ProvideRegisterer(cfg *config.Config) prometheus.Registerer {
	if cfg.Metrics.Enabled {
		return prometheus.DefaultRegisterer
	}
	return prometheus.NewRegistry()
}

func ProvideMetrics(cfg *config.Config, reg prometheus.Registerer) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(reg)
}

func ProvideModelCalls(reg prometheus.Registerer) *svcmetrics.ModelCalls {
	return svcmetrics.NewModelCalls(reg)
}

// ProvideClickHouseClient connects and applies the schema. Nil when disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddr(ch.Host, ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithPool(10, 5),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, repository.ClickHouseSchema(ch.Database)); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse.ready", applogger.String("database", ch.Database))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse.close", applogger.Error(err))
		}
	}, nil
}

// ProvideFileStore serves CSV bars and classifier metadata from paths.data.
func ProvideFileStore(cfg *config.Config, l *applogger.Logger) *repository.FileStore {
	fs := repository.NewFileStore(cfg.Paths.Data)
	fs.SetLogger(l.Named("filestore"))
	return fs
}

// ProvideBarBackend prefers ClickHouse and falls back to the CSV files.
func ProvideBarBackend(cfg *config.Config, ch *pkgch.Client, fs *repository.FileStore, l *applogger.Logger) BarBackend {
	if ch == nil {
		return fs
	}
	s := repository.NewCHBarStore(ch)
	s.SetLogger(l.Named("chbars"))
	return s
}

func ProvideBarStore(b BarBackend) domrepo.BarStore { return b }

func ProvideArtifactStore(fs *repository.FileStore) domrepo.ArtifactStore { return fs }

func ProvideDecisionStore(cfg *config.Config, ch *pkgch.Client) domrepo.DecisionStore {
	if ch == nil {
		return nil
	}
	return repository.NewCHDecisionStore(ch)
}

// ProvidePostgres opens the report database. Nil when disabled.
func ProvidePostgres(cfg *config.Config, l *applogger.Logger) (*sqlx.DB, func(), error) {
	if !cfg.Postgres.Enabled {
		return nil, func() {}, nil
	}
	db, err := repository.OpenPostgres(context.Background(), cfg.Postgres.DSN)
	if err != nil {
		return nil, nil, err
	}
	l.Info("postgres.ready")
	return db, func() {
		if err := db.Close(); err != nil {
			l.Warn("postgres.close", applogger.Error(err))
		}
	}, nil
}

func ProvideReportStore(db *sqlx.DB) domrepo.ReportStore {
	if db == nil {
		return nil
	}
	return repository.NewPGReportStore(db, 10*time.Second)
}

// ProvideKafkaMetrics registers the producer and consumer collectors once.
func ProvideKafkaMetrics(reg prometheus.Registerer) *pkgkafka.Metrics {
	return pkgkafka.NewMetrics(reg)
}

// ProvideKafkaProducer builds the producer and routes aggregated warn/error
// logs to the logs topic. Nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, km *pkgkafka.Metrics, l *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	p, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(-1),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerMetrics(km),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Kafka.LogsTopic != "" {
		l.AttachCollector(&applogger.CollectorConfig{Topic: cfg.Kafka.LogsTopic, Publisher: p})
	}
	return p, func() {
		l.DetachCollector()
		if err := p.Close(); err != nil {
			l.Warn("kafka.producer.close", applogger.Error(err))
		}
	}, nil
}

func ProvidePublisher(cfg *config.Config, p *pkgkafka.Producer) domrepo.Publisher {
	if p == nil {
		return nil
	}
	return repository.NewKafkaPublisher(p, cfg.Kafka.SignalTopic, cfg.Kafka.MetaTopic)
}

func ProvideOutput(cfg *config.Config) *repository.JSONOutput {
	return repository.NewJSONOutput(cfg.Paths.Outputs)
}

func ProvideOutputSink(o *repository.JSONOutput) domrepo.OutputSink { return o }

func ProvideOutputReader(o *repository.JSONOutput) domrepo.OutputReader { return o }

func ProvideModelBase(cfg *config.Config, calls *svcmetrics.ModelCalls, l *applogger.Logger) *analytics.HTTPServiceBase {
	b := analytics.NewHTTPServiceBase(cfg)
	b.SetObserver(calls)
	b.SetLogger(l.Named("modelserver"))
	return b
}

func ProvideClassifier(b *analytics.HTTPServiceBase) domsvc.Classifier {
	return analytics.NewHTTPClassifier(b)
}

// ProvideRanker loads the currency manifests. Without any, ranking is
// disabled and the meta step reports a missing artifact.
func ProvideRanker(cfg *config.Config, b *analytics.HTTPServiceBase, l *applogger.Logger) (usecase.Ranker, error) {
	cms, err := meta.LoadModels(cfg.Paths.Models, analytics.RemoteFactory(b))
	if err != nil {
		if errors.Is(err, models.ErrMissingArtifact) {
			l.Warn("meta.models_missing", applogger.String("dir", cfg.Paths.Models))
			return nil, nil
		}
		return nil, fmt.Errorf("load meta models: %w", err)
	}
	lv := cfg.Meta.Levels
	e := meta.NewEngine(cms, signal.Params{SLMult: lv.SLMult, TP1Mult: lv.TP1Mult, TP2Mult: lv.TP2Mult})
	e.SetLogger(l.Named("meta"))
	return e, nil
}

func ProvideInferenceCycle(
	cfg *config.Config,
	bars domrepo.BarStore,
	artifacts domrepo.ArtifactStore,
	clf domsvc.Classifier,
	sink domrepo.OutputSink,
	decisions domrepo.DecisionStore,
	pub domrepo.Publisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.InferenceCycle {
	uc := usecase.NewInferenceCycle(bars, artifacts, clf, cfg)
	uc.SetOutputs(sink, decisions, pub)
	uc.SetMetrics(m)
	uc.SetLogger(l.Named("inference"))
	return uc
}

func ProvideMetaRanking(
	ranker usecase.Ranker,
	reader domrepo.OutputReader,
	sink domrepo.OutputSink,
	reports domrepo.ReportStore,
	pub domrepo.Publisher,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.MetaRanking {
	uc := usecase.NewMetaRanking(ranker, reader, sink)
	uc.SetStores(reports, pub)
	uc.SetMetrics(m)
	uc.SetLogger(l.Named("meta"))
	return uc
}

func ProvideBacktest(
	cfg *config.Config,
	reader domrepo.OutputReader,
	sink domrepo.OutputSink,
	bars domrepo.BarStore,
	reports domrepo.ReportStore,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Backtest {
	uc := usecase.NewBacktest(reader, sink, bars, cfg)
	uc.SetReportStore(reports)
	uc.SetMetrics(m)
	uc.SetLogger(l.Named("backtest"))
	return uc
}

func ProvideHistoryReplay(cycle *usecase.InferenceCycle, l *applogger.Logger) *usecase.HistoryReplay {
	uc := usecase.NewHistoryReplay(cycle)
	uc.SetLogger(l.Named("history"))
	return uc
}

func ProvideLabelGenerator(cfg *config.Config, reader domrepo.OutputReader, bars domrepo.BarStore, l *applogger.Logger) *usecase.LabelGenerator {
	uc := usecase.NewLabelGenerator(reader, bars, cfg)
	uc.SetLogger(l.Named("labels"))
	return uc
}

func ProvidePipeline(
	cfg *config.Config,
	l *applogger.Logger,
	cycle *usecase.InferenceCycle,
	ranking *usecase.MetaRanking,
	bt *usecase.Backtest,
	history *usecase.HistoryReplay,
	labels *usecase.LabelGenerator,
) *Pipeline {
	return &Pipeline{Config: cfg, Logger: l, Cycle: cycle, Meta: ranking, Backtest: bt, History: history, Labels: labels}
}

// ProvideCache uses Redis when enabled, otherwise an in-process TTL cache.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (icache.BytesCache, func(), error) {
	if !cfg.Redis.Enabled {
		return icache.NewTTLCache(), func() {}, nil
	}
	r := cfg.Redis
	cli := icache.NewRedisClient(icache.RedisConfig{Addr: r.Addr, Password: r.Password, DB: r.DB, Prefix: r.Prefix})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	l.Info("redis.ready", applogger.String("addr", r.Addr))
	return icache.NewRedisCache(cli, r.Prefix), func() {
		if err := cli.Close(); err != nil {
			l.Warn("redis.close", applogger.Error(err))
		}
	}, nil
}

func ProvidePriceBook() *pricebook.Book { return pricebook.New() }

func ProvideBarsUseCase(bars domrepo.BarStore) *usecase.BarsUseCase {
	return usecase.NewBarsUseCase(bars)
}

func ProvideHandler(
	cfg *config.Config,
	reader domrepo.OutputReader,
	book *pricebook.Book,
	bars *usecase.BarsUseCase,
	decisions domrepo.DecisionStore,
	reports domrepo.ReportStore,
	cycle *usecase.InferenceCycle,
	ranking *usecase.MetaRanking,
	cache icache.BytesCache,
	l *applogger.Logger,
) *api.Handler {
	h := api.NewHandler(reader, book, bars)
	h.SetStores(decisions, reports)
	h.SetPipeline(cycle, ranking)
	h.SetCache(cache, cfg.Server.CacheTTL)
	h.SetLimiter(ratelimit.New(cfg.Server.RatePerSecond, cfg.Server.Burst))
	h.SetLogger(l.Named("api"))
	return h
}

func ProvideHTTPServer(cfg *config.Config, h *api.Handler, reg prometheus.Registerer, l *applogger.Logger) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	gather, ok := reg.(prometheus.Gatherer)
	if !ok {
		gather = prometheus.DefaultGatherer
	}
	s := cfg.Server
	return xhttp.NewServer([]xhttp.Handler{h},
		xhttp.WithHost(s.Host),
		xhttp.WithPort(s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithCORS(true, s.CORSOrigins...),
		xhttp.WithMetrics(path, reg, gather),
		xhttp.WithLogger(l.Named("http")),
	)
}

// ProvideIngestBuffer fronts the bar backend for the consumer. Nil when
// Kafka is disabled.
func ProvideIngestBuffer(cfg *config.Config, backend BarBackend, m domrepo.Metrics, l *applogger.Logger) *middleware.IngestBuffer {
	if !cfg.Kafka.Enabled {
		return nil
	}
	c := cfg.Kafka.Consumer
	return middleware.NewIngestBuffer(backend, m,
		middleware.WithBufferSize(c.BufferSize),
		middleware.WithBackoff(c.BackoffMin, c.BackoffMax),
		middleware.WithLogger(l.Named("ingest")),
	)
}

func ProvideBarsHandler(cfg *config.Config, ingest *middleware.IngestBuffer, book *pricebook.Book, m domrepo.Metrics, l *applogger.Logger) *usecase.KafkaBarsHandler {
	if ingest == nil {
		return nil
	}
	h := usecase.NewKafkaBarsHandler(cfg.Kafka.BarsTopic, ingest, book, m)
	h.SetLogger(l.Named("bars"))
	return h
}

// ProvideKafkaConsumer builds the bars consumer. Nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, km *pkgkafka.Metrics, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	c := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(c.GroupID),
		pkgkafka.WithConsumerWorkers(c.Workers),
		pkgkafka.WithConsumerBufferSize(c.BufferSize),
		pkgkafka.WithConsumerRetry(c.RetryMax, c.BackoffMin, c.BackoffMax),
		pkgkafka.WithConsumerDLQ(c.DLQTopic),
		pkgkafka.WithConsumerMetrics(km),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	cl := l.Named("consumer")
	consumer.SetLogger(cl)
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.LogHook(cl, time.Second)))
	return consumer, nil
}

func ProvideApp(
	l *applogger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaBarsHandler,
	ingest *middleware.IngestBuffer,
) *server.App {
	var mh pkgkafka.MessageHandler
	if kh != nil {
		mh = kh
	}
	return server.New(l, srv, consumer, mh, ingest)
}
