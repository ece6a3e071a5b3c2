package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	domrepo "NewsVol/internal/domain/repository"
	"NewsVol/internal/handler/api"
	mid "NewsVol/internal/middleware"
	internalrepo "NewsVol/internal/repository"
	svcmetrics "NewsVol/internal/service/metrics"
	"NewsVol/internal/service/newsapi"
	"NewsVol/internal/service/ratelimit"
	"NewsVol/internal/service/rss"
	"NewsVol/internal/service/yahoo"
	"NewsVol/internal/services/analytics"
	"NewsVol/internal/services/news"
	"NewsVol/internal/services/sentiment"
	"NewsVol/internal/usecase"
	"NewsVol/pkg/cache"
	pkgch "NewsVol/pkg/clickhouse"
	"NewsVol/pkg/config"
	xhttp "NewsVol/pkg/http"
	pkgkafka "NewsVol/pkg/kafka"
	applogger "NewsVol/pkg/logger"
	"NewsVol/pkg/metrics"
	"NewsVol/pkg/queue"
	"NewsVol/pkg/server"
	"NewsVol/pkg/tracing"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:    cfg.Logger.Level,
		Format:   cfg.Logger.Format,
		Output:   cfg.Logger.Output,
		FilePath: cfg.Logger.FilePath,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideTracing installs the span exporter; a disabled config is a no-op.
func ProvideTracing(cfg *config.Config) (*tracing.Provider, error) {
	p, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Output:      cfg.Tracing.Output,
		FilePath:    cfg.Tracing.FilePath,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	return p, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	svcmetrics.Register()
	return metrics.New()
}

// ProvideRedisClient connects to Redis when the cache or the job queue needs it.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	needsRedis := cfg.Queue.Enabled ||
		(cfg.Cache.Enabled && (cfg.Cache.Type == "redis" || cfg.Cache.Type == "layered"))
	if !needsRedis {
		return nil, nil
	}
	client, err := cache.NewRedisClient(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisTimeouts(cfg.Redis.DialTimeout, cfg.Redis.ReadTimeout, cfg.Redis.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// ProvideCache returns the response cache. It also backs the scheduler locks,
// so an in-memory cache is returned even when response caching is off.
func ProvideCache(cfg *config.Config, client *redis.Client) cache.Service {
	if !cfg.Cache.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxEntries))
	}
	switch cfg.Cache.Type {
	case "redis":
		return cache.NewRedisCacheFromClient(client, "newsvol")
	case "layered":
		return cache.NewLayeredCache(cache.NewRedisCacheFromClient(client, "newsvol"), cfg.Cache.MaxEntries, time.Minute)
	default:
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxEntries))
	}
}

// ProvideClickHouseClient creates a ClickHouse client and the analysis tables.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(pkgch.Config{
		Host:             cfg.ClickHouse.Host,
		Port:             cfg.ClickHouse.Port,
		Database:         cfg.ClickHouse.Database,
		User:             cfg.ClickHouse.User,
		Password:         cfg.ClickHouse.Password,
		UseHTTP:          cfg.ClickHouse.UseHTTP,
		AsyncInsert:      cfg.ClickHouse.AsyncInsert,
		WaitForAsync:     cfg.ClickHouse.WaitForAsync,
		DialTimeout:      cfg.ClickHouse.DialTimeout,
		ReadTimeout:      cfg.ClickHouse.ReadTimeout,
		MaxExecutionTime: cfg.ClickHouse.MaxExecutionTime,
		MaxOpenConns:     cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:     cfg.ClickHouse.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideAnalysisStore returns nil when ClickHouse is disabled.
func ProvideAnalysisStore(ch *pkgch.Client, l *applogger.Logger) (domrepo.AnalysisStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHAnalysisStore(ch)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   cfg.Kafka.Producer.BatchBytes,
		Linger:       cfg.Kafka.Producer.Linger,
		Async:        cfg.Kafka.Producer.Async,
		HashByKey:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher publishes results to the results topic when Kafka is on.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.AnalysisPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.ResultsTopic)
}

// ProvideKafkaConsumer creates a consumer for the requests topic.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.RequestsTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l, pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    cfg.Kafka.Consumer.GroupID,
		Workers:    cfg.Kafka.Consumer.Workers,
		BufferSize: cfg.Kafka.Consumer.BufferSize,
		RetryMax:   cfg.Kafka.Consumer.RetryMax,
		BackoffMin: cfg.Kafka.Consumer.BackoffMin,
		BackoffMax: cfg.Kafka.Consumer.BackoffMax,
		DLQTopic:   cfg.Kafka.Consumer.DLQTopic,
		MinBytes:   cfg.Kafka.Consumer.MinBytes,
		MaxBytes:   cfg.Kafka.Consumer.MaxBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(
		pkgkafka.TracingHook{},
		pkgkafka.HookFuncs{Err: func(_ context.Context, topic string, _ kafka.Message, _ error) {
			svcmetrics.RequestFailures.WithLabelValues(topic).Inc()
		}},
	))
	return consumer, nil
}

// ProvideKafkaRequestsHandler runs analyses requested on the requests topic.
func ProvideKafkaRequestsHandler(cfg *config.Config, uc *usecase.TickerAnalysisUseCase, l *applogger.Logger) *usecase.KafkaRequestsHandler {
	return usecase.NewKafkaRequestsHandler(cfg.Kafka.RequestsTopic, uc, l)
}

// ProvideNewsSource picks the configured news provider and wraps it with the
// response cache.
func ProvideNewsSource(cfg *config.Config, c cache.Service, l *applogger.Logger) (domrepo.NewsSource, error) {
	var src domrepo.NewsSource
	switch cfg.News.Provider {
	case "rss":
		s, err := rss.New(cfg.News.RSS.FeedURLs, cfg.News.RSS.Timeout, l)
		if err != nil {
			return nil, fmt.Errorf("rss source: %w", err)
		}
		src = s
	default:
		s, err := newsapi.New(newsapi.Config{
			BaseURL:      cfg.News.NewsAPI.BaseURL,
			APIKey:       cfg.News.NewsAPI.APIKey,
			PageSize:     cfg.News.NewsAPI.PageSize,
			Timeout:      cfg.News.NewsAPI.Timeout,
			RPS:          cfg.News.NewsAPI.RPS,
			Burst:        cfg.News.NewsAPI.Burst,
			Retries:      cfg.News.NewsAPI.Retries,
			RetryBackoff: cfg.News.NewsAPI.RetryBackoff,
		})
		if err != nil {
			return nil, fmt.Errorf("newsapi source: %w", err)
		}
		src = s
	}
	if cfg.Cache.Enabled {
		src = internalrepo.NewCachedNewsSource(src, c, cfg.Cache.NewsTTL)
	}
	return src, nil
}

// ProvidePriceSource returns the Yahoo chart client, cached when enabled.
func ProvidePriceSource(cfg *config.Config, c cache.Service) domrepo.PriceSource {
	var src domrepo.PriceSource = yahoo.New(yahoo.Config{
		BaseURL:      cfg.Prices.Yahoo.BaseURL,
		UserAgent:    cfg.Prices.Yahoo.UserAgent,
		Timeout:      cfg.Prices.Yahoo.Timeout,
		RPS:          cfg.Prices.Yahoo.RPS,
		Burst:        cfg.Prices.Yahoo.Burst,
		Retries:      cfg.Prices.Yahoo.Retries,
		RetryBackoff: cfg.Prices.Yahoo.RetryBackoff,
	})
	if cfg.Cache.Enabled {
		src = internalrepo.NewCachedPriceSource(src, c, cfg.Cache.PricesTTL)
	}
	return src
}

// ProvideForecaster configures the GARCH(1,1) fit.
func ProvideForecaster(cfg *config.Config) *analytics.GarchForecaster {
	return analytics.NewGarchForecaster(
		analytics.WithMinObservations(cfg.Analysis.MinObservations),
		analytics.WithMaxIterations(cfg.Analysis.MaxIterations),
	)
}

// ProvideScorer returns the shared lexicon analyzer.
func ProvideScorer() (*sentiment.Analyzer, error) {
	if err := sentiment.Init(); err != nil {
		return nil, err
	}
	return sentiment.Default(), nil
}

// ProvideOrchestrator combines the news aggregator and the forecaster.
func ProvideOrchestrator(scorer *sentiment.Analyzer, forecaster *analytics.GarchForecaster) *usecase.AnalysisOrchestrator {
	return usecase.NewAnalysisOrchestrator(news.NewAggregator(scorer), forecaster)
}

// ProvideStreamHub returns nil when the WebSocket stream is disabled.
func ProvideStreamHub(cfg *config.Config, l *applogger.Logger) *api.StreamHub {
	if !cfg.Stream.Enabled {
		return nil
	}
	return api.NewStreamHub(l, api.StreamConfig{
		PingInterval: cfg.Stream.PingInterval,
		WriteTimeout: cfg.Stream.WriteTimeout,
		BufferSize:   cfg.Stream.BufferSize,
	})
}

// ProvideTickerAnalysis creates the fetch-and-analyse use case.
func ProvideTickerAnalysis(
	cfg *config.Config,
	newsSrc domrepo.NewsSource,
	prices domrepo.PriceSource,
	orch *usecase.AnalysisOrchestrator,
	store domrepo.AnalysisStore,
	pub domrepo.AnalysisPublisher,
	hub *api.StreamHub,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.TickerAnalysisUseCase {
	opts := []usecase.TickerAnalysisOption{
		usecase.WithStore(store),
		usecase.WithPublisher(pub),
		usecase.WithMetrics(m),
		usecase.WithLogger(l),
		usecase.WithTimeout(cfg.Analysis.Timeout),
	}
	if hub != nil {
		opts = append(opts, usecase.WithBroadcaster(hub))
	}
	return usecase.NewTickerAnalysisUseCase(newsSrc, prices, orch, opts...)
}

// ProvideQueue creates the Redis job queue with the analysis job registered.
func ProvideQueue(cfg *config.Config, client *redis.Client, uc *usecase.TickerAnalysisUseCase, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || client == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.MaxRetries,
		RetryDelay: cfg.Queue.RetryDelay,
		JobTimeout: cfg.Analysis.Timeout + 5*time.Second,
	}, client, queue.WithKeyPrefix(cfg.Queue.Name+":queue"))
	q.RegisterJob(usecase.NewAnalysisJob(uc))
	return q
}

// ProvideScheduler returns nil when the watchlist schedule is disabled.
func ProvideScheduler(cfg *config.Config, uc *usecase.TickerAnalysisUseCase, c cache.Service, l *applogger.Logger) (*usecase.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s, err := usecase.NewScheduler(usecase.ScheduleConfig{
		Cron:        cfg.Scheduler.Cron,
		Watchlist:   cfg.Scheduler.Watchlist,
		Concurrency: cfg.Scheduler.Concurrency,
		NewsLimit:   cfg.Analysis.NewsLimit,
		Horizon:     cfg.Analysis.Horizon,
		Lookback:    domrepo.NormalizeLookback(cfg.Analysis.Lookback),
	}, uc, c, l)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	return s, nil
}

// ProvideAnalysisHandler creates the HTTP API handler.
func ProvideAnalysisHandler(
	l *applogger.Logger,
	uc *usecase.TickerAnalysisUseCase,
	orch *usecase.AnalysisOrchestrator,
	scorer *sentiment.Analyzer,
	forecaster *analytics.GarchForecaster,
	prices domrepo.PriceSource,
	store domrepo.AnalysisStore,
	q *queue.RedisQueue,
) *api.AnalysisEchoHandler {
	deps := api.AnalysisHandlerDeps{
		Runner:     uc,
		Analyzer:   orch,
		Scorer:     scorer,
		Forecaster: forecaster,
		Prices:     prices,
		Store:      store,
	}
	if q != nil {
		deps.Jobs = q
	}
	return api.NewAnalysisEchoHandler(l, deps)
}

// ProvideHTTPServer mounts the API, the stream and the metrics endpoint.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, h *api.AnalysisEchoHandler, hub *api.StreamHub) *xhttp.Server {
	handlers := []xhttp.Handler{h}
	if hub != nil {
		handlers = append(handlers, hub)
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithLogger(l),
	}
	if cors := cfg.Server.CORS; cors.Enabled {
		opts = append(opts, xhttp.WithCORS(cors.AllowOrigins, cors.MaxAge))
	}
	if rl := cfg.Server.RateLimit; rl.RPS > 0 {
		limiter := ratelimit.New(rl.RPS, rl.Burst)
		opts = append(opts, xhttp.WithMiddleware(mid.RateLimit(limiter, cfg.Metrics.Path, "/api/health", "/ws/analysis")))
	}
	return xhttp.NewServer(handlers, opts...)
}

// ProvideApp assembles the application and attaches the log collector.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	tp *tracing.Provider,
	httpServer *xhttp.Server,
	hub *api.StreamHub,
	producer *pkgkafka.Producer,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaRequestsHandler,
	q *queue.RedisQueue,
	sched *usecase.Scheduler,
	c cache.Service,
	redisClient *redis.Client,
	ch *pkgch.Client,
) *server.App {
	comps := server.Components{
		HTTP:      httpServer,
		Queue:     q,
		Scheduler: sched,
		Stream:    hub,
		Tracing:   tp,
	}
	if consumer != nil {
		comps.Consumer = consumer
		comps.Requests = kh
	}

	if producer != nil {
		if cfg.Logger.Collector.Enabled {
			l.AddCollector(&applogger.CollectionConfig{
				Service:      cfg.Tracing.ServiceName,
				TimeInterval: cfg.Logger.Collector.FlushInterval,
				Topic:        cfg.Kafka.LogsTopic,
				Publisher:    producer,
			})
		}
		comps.Closers = append(comps.Closers, server.NamedCloser{Name: "kafka producer", Closer: producer})
	}
	// a redis-backed cache closes the shared client itself
	comps.Closers = append(comps.Closers, server.NamedCloser{Name: "cache", Closer: c})
	cacheOwnsRedis := cfg.Cache.Enabled && (cfg.Cache.Type == "redis" || cfg.Cache.Type == "layered")
	if redisClient != nil && !cacheOwnsRedis {
		comps.Closers = append(comps.Closers, server.NamedCloser{Name: "redis", Closer: redisClient})
	}
	if ch != nil {
		comps.Closers = append(comps.Closers, server.NamedCloser{Name: "clickhouse", Closer: ch})
	}
	return server.New(l, comps, cfg.Server.ShutdownTimeout)
}
