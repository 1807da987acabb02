package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"PolyChannel/internal/domain/models"
	drepo "PolyChannel/internal/domain/repository"
	"PolyChannel/internal/exporter"
	"PolyChannel/internal/handler/api"
	internalrepo "PolyChannel/internal/repository"
	"PolyChannel/internal/service/binance"
	icache "PolyChannel/internal/service/cache"
	"PolyChannel/internal/service/finnhub"
	"PolyChannel/internal/service/ratelimit"
	"PolyChannel/internal/services/channel"
	"PolyChannel/internal/services/correlation"
	"PolyChannel/internal/services/indicators"
	"PolyChannel/internal/services/optimizer"
	"PolyChannel/internal/services/signal"
	"PolyChannel/internal/usecase"
	pkgcache "PolyChannel/pkg/cache"
	pkgch "PolyChannel/pkg/clickhouse"
	"PolyChannel/pkg/config"
	xhttp "PolyChannel/pkg/http"
	pkgkafka "PolyChannel/pkg/kafka"
	applogger "PolyChannel/pkg/logger"
	"PolyChannel/pkg/metrics"
	"PolyChannel/pkg/server"
)

// Sources groups the upstream market data adapters chosen by source.provider.
type Sources struct {
	Candles  drepo.CandleSource
	Universe drepo.UniverseSource
}

// Runner is the one-shot entry point used by the run command.
type Runner struct {
	UseCase *usecase.AnalysisUseCase
	Request usecase.RunRequest
	Logger  *applogger.Logger
}

// ProvideLogger builds the root logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
}

// ProvideRegistry creates the process registry with Go and process collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) drepo.Metrics {
	if !cfg.Metrics.Enabled {
		return drepo.NopMetrics{}
	}
	return metrics.New(reg)
}

// ProvideClickHouseClient creates a ClickHouse client and the tables the engine reads and writes.
// Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if !cfg.ClickHouse.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}
	stmts = append(stmts, internalrepo.DefaultRunTables(cfg.ClickHouse.Database).DDL()...)
	if cfg.Source.Provider == "clickhouse" {
		stmts = append(stmts, internalrepo.CandleTableDDL(cfg.Source.CandleTable))
	}
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCacheStore selects the candle cache backend.
func ProvideCacheStore(cfg *config.Config, l *applogger.Logger) (pkgcache.Store, func(), error) {
	var store pkgcache.Store
	switch cfg.Cache.Backend {
	case "redis", "layered":
		redisStore, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisAddr(cfg.Cache.Redis.Addr),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
			pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
			pkgcache.WithRedisPool(cfg.Cache.Redis.PoolSize, 2, cfg.Source.Timeout),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		store = redisStore
		if cfg.Cache.Backend == "layered" {
			store = pkgcache.NewLayeredCache(redisStore,
				pkgcache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
				pkgcache.WithLayeredMemoryTTL(cfg.Cache.MemoryTTL),
			)
		}
	default:
		store = pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	}
	l.Info("candle cache ready", applogger.String("backend", cfg.Cache.Backend))
	return store, func() {
		if err := store.Close(); err != nil {
			l.Warn("cache close error", applogger.Error(err))
		}
	}, nil
}

// ProvideSources builds the candle source and, where the provider can rank symbols, the universe.
func ProvideSources(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (Sources, error) {
	limiter := ratelimit.New(cfg.Source.RPS, cfg.Source.Burst)
	switch cfg.Source.Provider {
	case "finnhub":
		c := finnhub.New(cfg.Source.Finnhub.APIKey,
			finnhub.WithBaseURL(cfg.Source.Finnhub.BaseURL),
			finnhub.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Source.Timeout))),
			finnhub.WithLimiter(limiter),
			finnhub.WithLogger(l),
		)
		return Sources{Candles: c}, nil
	case "clickhouse":
		if ch == nil {
			return Sources{}, fmt.Errorf("clickhouse source requires clickhouse.enabled")
		}
		store, err := internalrepo.NewCHCandleStore(ch.DB(), cfg.Source.CandleTable, l)
		if err != nil {
			return Sources{}, err
		}
		return Sources{Candles: store}, nil
	default:
		c := binance.New(cfg.Source.Binance.APIKey, cfg.Source.Binance.SecretKey,
			binance.WithBaseURL(cfg.Source.Binance.BaseURL),
			binance.WithLimiter(limiter),
			binance.WithQuoteAsset(cfg.Engine.QuoteAsset),
			binance.WithTimeout(cfg.Source.Timeout),
			binance.WithLogger(l),
		)
		return Sources{Candles: c, Universe: c}, nil
	}
}

func ProvideCandleCache(cfg *config.Config, src Sources, store pkgcache.Store, m drepo.Metrics, l *applogger.Logger) *icache.CandleCache {
	return icache.New(src.Candles, store,
		icache.WithTTL(cfg.Cache.TTL),
		icache.WithMinCandles(cfg.Engine.MinCandles),
		icache.WithRetry(cfg.Source.Retries, cfg.Source.RetryBackoff),
		icache.WithFetchTimeout(cfg.Source.Timeout),
		icache.WithMetrics(m),
		icache.WithLogger(l),
	)
}

func ProvideIndicators(l *applogger.Logger) *indicators.Calculator {
	return indicators.New(indicators.WithLogger(l))
}

// ProvideOptimizer maps engine.search onto the optimizer, hinted at engine.degree and engine.kstd.
func ProvideOptimizer(cfg *config.Config, m drepo.Metrics, l *applogger.Logger) (*optimizer.Optimizer, error) {
	s := cfg.Engine.Search
	oc := optimizer.Config{
		Mode:   s.Mode,
		Budget: s.Budget,
		Bounds: optimizer.Bounds{
			DegreeMin: s.DegreeMin, DegreeMax: s.DegreeMax,
			KStdMin: s.KStdMin, KStdMax: s.KStdMax, KStdStep: s.KStdStep,
			LookbackMin: s.LookbackMin, LookbackMax: s.LookbackMax, LookbackStep: s.LookbackStep,
		},
	}
	oc.Hint.Degree = cfg.Engine.Degree
	oc.Hint.KStd = cfg.Engine.KStd

	obj, err := channel.NewObjective(cfg.Engine.Objective)
	if err != nil {
		return nil, err
	}
	return optimizer.New(oc, obj, optimizer.WithMetrics(m), optimizer.WithLogger(l))
}

func ProvideClassifier() *signal.Classifier {
	return signal.New()
}

func ProvideCorrelation(cfg *config.Config, l *applogger.Logger) (*correlation.Analyzer, error) {
	return correlation.New(
		correlation.WithMethod(models.CorrelationMethod(cfg.Correlation.Method)),
		correlation.WithThreshold(cfg.Correlation.Threshold),
		correlation.WithMinOverlap(cfg.Correlation.MinOverlap),
		correlation.WithLogger(l),
	)
}

func ProvidePipeline(
	candles *icache.CandleCache,
	ind *indicators.Calculator,
	opt *optimizer.Optimizer,
	cls *signal.Classifier,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.AssetPipeline {
	return usecase.NewAssetPipeline(candles, ind, opt, cls, m, l)
}

func ProvideAggregator(p *usecase.AssetPipeline, corr *correlation.Analyzer, m drepo.Metrics, l *applogger.Logger) *usecase.RunAggregator {
	return usecase.NewRunAggregator(p, corr, drepo.SystemClock{}, m, l)
}

func ProvideExporter(cfg *config.Config, l *applogger.Logger) *exporter.Exporter {
	return exporter.New(cfg.Export.OutputDirectory,
		exporter.WithRawData(cfg.Export.RawData),
		exporter.WithCharts(cfg.Export.Charts),
		exporter.WithLogger(l),
	)
}

// ProvideRunSink returns the ClickHouse sink, or nil when ClickHouse is disabled.
func ProvideRunSink(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) (drepo.RunSink, error) {
	if ch == nil {
		return nil, nil
	}
	sink, err := internalrepo.NewClickHouseRunSink(ch, internalrepo.DefaultRunTables(cfg.ClickHouse.Database), l)
	if err != nil {
		return nil, err
	}
	return sink, nil
}

// ProvideRunPublisher returns the Kafka publisher, or nil when Kafka is disabled.
func ProvideRunPublisher(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) (drepo.RunPublisher, func()) {
	if producer == nil {
		return nil, func() {}
	}
	pub := internalrepo.NewKafkaRunPublisher(producer, cfg.Kafka.Topic)
	return pub, func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close error", applogger.Error(err))
		}
	}
}

func ProvideAnalysisUseCase(
	agg *usecase.RunAggregator,
	exp *exporter.Exporter,
	src Sources,
	sink drepo.RunSink,
	pub drepo.RunPublisher,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.AnalysisUseCase {
	opts := []usecase.AnalysisOption{usecase.WithMetrics(m), usecase.WithLogger(l)}
	if src.Universe != nil {
		opts = append(opts, usecase.WithUniverse(src.Universe))
	}
	if sink != nil {
		opts = append(opts, usecase.WithRunSink(sink))
	}
	if pub != nil {
		opts = append(opts, usecase.WithRunPublisher(pub))
	}
	return usecase.NewAnalysisUseCase(agg, exp, opts...)
}

// ProvideRunRequest turns the engine section into the request used by scheduled and CLI runs.
func ProvideRunRequest(cfg *config.Config) (usecase.RunRequest, error) {
	iv, err := drepo.ParseInterval(cfg.Engine.Interval)
	if err != nil {
		return usecase.RunRequest{}, err
	}
	rc := usecase.DefaultRunConfig()
	rc.Interval = iv
	rc.LookbackDays = cfg.Engine.Days
	rc.Correlation = cfg.Correlation.Enabled
	rc.Seed = cfg.Engine.Search.Seed
	if cfg.Engine.Workers > 0 {
		rc.Workers = cfg.Engine.Workers
	}
	return usecase.RunRequest{Symbols: cfg.Engine.Symbols, TopN: cfg.Engine.TopN, Config: rc}, nil
}

func ProvideRunner(uc *usecase.AnalysisUseCase, req usecase.RunRequest, l *applogger.Logger) *Runner {
	return &Runner{UseCase: uc, Request: req, Logger: l}
}

func ProvideScheduler(cfg *config.Config, uc *usecase.AnalysisUseCase, req usecase.RunRequest, l *applogger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(uc, req, cfg.Schedule.Every, cfg.Schedule.RunOnStart, l)
}

func ProvideHTTPServer(cfg *config.Config, sched *usecase.Scheduler, reg *prometheus.Registry, l *applogger.Logger) *xhttp.Server {
	path := cfg.Metrics.Path
	if !cfg.Metrics.Enabled {
		path = ""
	}
	return xhttp.NewServer(api.NewRunsEchoHandler(l, sched),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(path, reg),
		xhttp.WithLogger(l),
	)
}

// ProvideApp creates the daemon.
func ProvideApp(cfg *config.Config, sched *usecase.Scheduler, srv *xhttp.Server, l *applogger.Logger) *server.App {
	return server.New(sched, srv, cfg.Server.ShutdownTimeout, l)
}
