package di

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	domsvc "github.com/prateek8731/Market-Monitor/internal/domain/service"
	"github.com/prateek8731/Market-Monitor/internal/handler/api"
	internalrepo "github.com/prateek8731/Market-Monitor/internal/repository"
	"github.com/prateek8731/Market-Monitor/internal/services/alerts"
	"github.com/prateek8731/Market-Monitor/internal/services/backtest"
	"github.com/prateek8731/Market-Monitor/internal/services/marketdata"
	"github.com/prateek8731/Market-Monitor/internal/services/ml"
	"github.com/prateek8731/Market-Monitor/internal/services/predict"
	"github.com/prateek8731/Market-Monitor/internal/services/scoring"
	"github.com/prateek8731/Market-Monitor/internal/usecase"
	"github.com/prateek8731/Market-Monitor/pkg/cache"
	pkgch "github.com/prateek8731/Market-Monitor/pkg/clickhouse"
	"github.com/prateek8731/Market-Monitor/pkg/config"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
	pkgkafka "github.com/prateek8731/Market-Monitor/pkg/kafka"
	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
	"github.com/prateek8731/Market-Monitor/pkg/metrics"
	"github.com/prateek8731/Market-Monitor/pkg/queue"
	"github.com/prateek8731/Market-Monitor/pkg/scheduler"
	"github.com/prateek8731/Market-Monitor/pkg/server"
)

const serviceName = "market-monitor"

func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", serviceName), applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry,
// which is what the /metrics endpoint serves.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideRedisCache connects to Redis when enabled; nil otherwise.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	if _, _, err := net.SplitHostPort(cfg.Redis.Addr); err != nil {
		return nil, fmt.Errorf("redis addr %q: %w", cfg.Redis.Addr, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	rc, err := cache.NewRedisCache(ctx, cfg.Redis.Addr,
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(serviceName),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache layers an in-process LRU over Redis, or stays in-process when Redis is off.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(time.Minute, cache.WithMemoryMaxSize(cfg.Cache.MaxSize))
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MaxSize))
}

// ProvideClickHouseClient creates a ClickHouse client when enabled; nil otherwise.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
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
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideBarStore returns the ClickHouse bar warehouse with its schema applied, or nil.
func ProvideBarStore(ch *pkgch.Client, l *applogger.Logger) (repository.BarStore, error) {
	if ch == nil {
		return nil, nil
	}
	store := internalrepo.NewCHBarStore(ch, l)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := ch.InitSchema(ctx, nil); err != nil {
		return nil, fmt.Errorf("clickhouse database: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer when enabled and ships aggregated
// warn/error logs to the logs topic through it.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopics(cfg.Kafka.Producer.AutoCreate),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	if cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Service:        serviceName,
			Publisher:      producer,
		})
	}
	return producer, nil
}

// ProvideSignalPublisher publishes early signals to Kafka, or drops them when Kafka is off.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return internalrepo.NopSignalPublisher{}
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalsTopic)
}

// ProvideKafkaConsumer creates the alert consumer when Kafka is enabled; nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerStartOffset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(prometheus.DefaultRegisterer),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), pkgkafka.LoggingHook(l, 2*time.Second)))
	return consumer, nil
}

// ProvideMarketDataSource composes providers in the configured order, then the bar
// warehouse (when present), then the history cache.
func ProvideMarketDataSource(
	cfg *config.Config,
	c cache.Service,
	bars repository.BarStore,
	m repository.Metrics,
	l *applogger.Logger,
) repository.MarketDataSource {
	opts := []marketdata.Option{marketdata.WithMetrics(m), marketdata.WithLogger(l)}
	pc := cfg.Providers

	finnhub := marketdata.NewFinnhub(pc.Finnhub.BaseURL, pc.Finnhub.APIKey, pc.Finnhub.RateLimit, pc.Finnhub.Burst, pc.Timeout, opts...)
	alpha := marketdata.NewAlphaVantage(pc.AlphaVantage.BaseURL, pc.AlphaVantage.APIKey, pc.AlphaVantage.RateLimit, pc.AlphaVantage.Burst, pc.Timeout, opts...)
	byName := map[string]marketdata.Provider{
		string(repository.ProviderFinnhub):      finnhub,
		string(repository.ProviderAlphaVantage): alpha,
	}
	providers := make([]marketdata.Provider, 0, len(pc.Order))
	for _, name := range pc.Order {
		if p, ok := byName[name]; ok {
			providers = append(providers, p)
		}
	}

	rss := marketdata.NewRSSNews(cfg.News.Feeds, cfg.News.MaxEntries, pc.Timeout, opts...)
	news := marketdata.NewMultiNews(l, rss, finnhub)

	var src repository.MarketDataSource = marketdata.NewFallbackSource(providers, news, opts...)
	if bars != nil {
		src = marketdata.NewStoreBackedSource(src, bars, opts...)
	}
	return marketdata.NewCachedSource(src, c, cfg.Cache.HistoryTTL, "history", l)
}

func ProvideFilingSource(cfg *config.Config, m repository.Metrics, l *applogger.Logger) repository.FilingSource {
	return marketdata.NewEdgarClient(cfg.Edgar.BaseURL, cfg.Edgar.UserAgent, cfg.Edgar.Count, cfg.Providers.Timeout,
		marketdata.WithMetrics(m), marketdata.WithLogger(l))
}

// ProvideArtifactStore binds trained classifiers; persisted through the cache when enabled.
func ProvideArtifactStore(cfg *config.Config, c cache.Service, l *applogger.Logger) *predict.ArtifactStore {
	opts := []predict.StoreOption{predict.WithStoreLogger(l)}
	if cfg.Model.Persist {
		opts = append(opts, predict.WithPersister(internalrepo.NewCacheArtifactPersister(c, cfg.Cache.ArtifactTTL)))
	}
	return predict.NewArtifactStore(opts...)
}

func ProvideRegression(cfg *config.Config, m repository.Metrics, l *applogger.Logger) domsvc.PctPredictor {
	rc := cfg.Model.Regression
	return predict.NewRegression(predict.RegressionConfig{
		Trees:      rc.Trees,
		Seed:       rc.Seed,
		TestSize:   rc.TestSize,
		SplitMode:  ml.SplitMode(rc.SplitMode),
		RecentBars: rc.RecentBars,
		Workers:    cfg.Model.Workers,
	}, predict.WithMetrics(m), predict.WithLogger(l))
}

func ProvideClassifier(cfg *config.Config, store *predict.ArtifactStore, m repository.Metrics, l *applogger.Logger) domsvc.ProbabilityPredictor {
	cc := cfg.Model.Classifier
	return predict.NewClassifier(predict.ClassifierConfig{
		Trees:     cc.Trees,
		Seed:      cc.Seed,
		TestSize:  cc.TestSize,
		Threshold: cc.Threshold,
		Workers:   cfg.Model.Workers,
	}, store, predict.WithMetrics(m), predict.WithLogger(l))
}

func ProvideBacktester(cfg *config.Config, m repository.Metrics) domsvc.Backtester {
	return backtest.NewEngine(backtest.WithFeeBps(cfg.Backtest.FeeBps), backtest.WithMetrics(m))
}

// ProvideAlertChannels builds every channel; unconfigured ones report not_configured.
// Transient failures are retried per channel.
func ProvideAlertChannels(cfg *config.Config, producer *pkgkafka.Producer, m repository.Metrics, l *applogger.Logger) *alerts.MultiChannel {
	ac := cfg.Alerts
	var pub pkgkafka.Publisher
	if producer != nil {
		pub = producer
	}
	chans := []repository.AlertChannel{
		alerts.NewWebhookChannel(ac.Webhook.URL, ac.Timeout),
		alerts.NewEmailChannel(alerts.EmailConfig{
			Host: ac.SMTP.Host,
			Port: ac.SMTP.Port,
			User: ac.SMTP.User,
			Pass: ac.SMTP.Pass,
			From: ac.SMTP.From,
			To:   ac.SMTP.To,
		}, ac.Timeout),
		alerts.NewSMSChannel(alerts.TwilioConfig{
			BaseURL: ac.Twilio.BaseURL,
			SID:     ac.Twilio.SID,
			Token:   ac.Twilio.Token,
			From:    ac.Twilio.From,
			To:      ac.Twilio.To,
		}, ac.Timeout),
		alerts.NewTelegramChannel(ac.Telegram.BaseURL, ac.Telegram.Token, ac.Telegram.ChatID, ac.Timeout),
		alerts.NewKafkaChannel(pub, cfg.Kafka.AlertsTopic, ac.Timeout),
	}
	for i, ch := range chans {
		chans[i] = alerts.NewRetryChannel(ch, ac.Retries, ac.Backoff)
	}
	return alerts.NewMultiChannel(l, m, chans...)
}

func ProvidePortfolioStore(cfg *config.Config, l *applogger.Logger) (*internalrepo.SQLitePortfolioStore, error) {
	store, err := internalrepo.NewSQLitePortfolioStore(cfg.Portfolio.DBPath, cfg.Portfolio.InitialBalance, l)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("portfolio init: %w", err)
	}
	return store, nil
}

// ProvideRetrainQueue runs retrain jobs on Redis when Redis is enabled; nil otherwise.
func ProvideRetrainQueue(cfg *config.Config, rc *cache.RedisCache, l *applogger.Logger) *queue.RedisQueue {
	if rc == nil {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Retrain.Workers,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, rc.Client(), queue.ModeProducerConsumer, queue.WithKeyPrefix(RetrainQueuePrefix(cfg)))
}

// RetrainQueuePrefix is the Redis key prefix shared by the server's retrain
// workers and cmd/retrain -enqueue.
func RetrainQueuePrefix(cfg *config.Config) string {
	return serviceName + ":" + cfg.Retrain.Queue
}

func ProvideSignalAggregator(
	src repository.MarketDataSource,
	reg domsvc.PctPredictor,
	clf domsvc.ProbabilityPredictor,
	bt domsvc.Backtester,
	l *applogger.Logger,
) *usecase.SignalAggregator {
	return usecase.NewSignalAggregator(src, reg, clf, bt, l)
}

func ProvideEarlySignals(
	cfg *config.Config,
	src repository.MarketDataSource,
	filings repository.FilingSource,
	reg domsvc.PctPredictor,
	clf domsvc.ProbabilityPredictor,
	pub repository.SignalPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.EarlySignalsUseCase {
	keywords := cfg.News.Keywords
	if len(keywords) == 0 {
		keywords = scoring.DefaultKeywords
	}
	return usecase.NewEarlySignalsUseCase(src, filings, reg, clf, scoring.NewScorer(scoring.DefaultWeights), pub, m,
		usecase.EarlySignalsConfig{
			Horizon:    cfg.Model.Classifier.Horizon,
			Keywords:   keywords,
			NewsWindow: cfg.News.Window,
		}, l)
}

func ProvidePortfolioUseCase(store *internalrepo.SQLitePortfolioStore, src repository.MarketDataSource, l *applogger.Logger) *usecase.PortfolioUseCase {
	return usecase.NewPortfolioUseCase(store, src, l)
}

// ProvideRetrainUseCase routes submissions through the queue when one is available.
func ProvideRetrainUseCase(
	cfg *config.Config,
	src repository.MarketDataSource,
	clf domsvc.ProbabilityPredictor,
	notifier *alerts.MultiChannel,
	q *queue.RedisQueue,
	l *applogger.Logger,
) *usecase.RetrainUseCase {
	uc := usecase.NewRetrainUseCase(src, clf, notifier, usecase.RetrainConfig{
		Horizon:   cfg.Model.Classifier.Horizon,
		Threshold: cfg.Model.Classifier.Threshold,
		Days:      cfg.Retrain.Days,
		Tickers:   cfg.Retrain.Tickers,
	}, l)
	if q != nil {
		q.RegisterJob(usecase.NewRetrainJob(uc))
		uc.WithQueue(q)
	}
	return uc
}

// ProvideScheduler registers the periodic retrain when enabled; nil otherwise.
func ProvideScheduler(cfg *config.Config, uc *usecase.RetrainUseCase, l *applogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Retrain.Enabled {
		return nil, nil
	}
	s := scheduler.New(l, scheduler.WithTaskTimeout(2*time.Hour))
	if err := s.Register("retrain", cfg.Retrain.Cron, uc.RetrainAll); err != nil {
		return nil, err
	}
	return s, nil
}

func ProvideAlertDispatcher(cfg *config.Config, notifier *alerts.MultiChannel, l *applogger.Logger) *usecase.AlertDispatcher {
	return usecase.NewAlertDispatcher(cfg.Kafka.SignalsTopic, notifier, cfg.Alerts.Cooldown, l)
}

func ProvideMonitorHandler(
	cfg *config.Config,
	agg *usecase.SignalAggregator,
	early *usecase.EarlySignalsUseCase,
	portfolio *usecase.PortfolioUseCase,
	retrain *usecase.RetrainUseCase,
	portfolioStore *internalrepo.SQLitePortfolioStore,
	bars repository.BarStore,
	q *queue.RedisQueue,
	l *applogger.Logger,
) *api.MonitorHandler {
	opts := []api.HandlerOption{
		api.WithQuoteCache(cfg.Server.QuoteCacheTTL),
		api.WithRateLimit(cfg.Server.RatePerMinute, max(1, cfg.Server.RatePerMinute/6)),
		api.WithHealthCheck("portfolio", func(ctx context.Context) error {
			_, err := portfolioStore.GetBalance(ctx)
			return err
		}),
	}
	if bars != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", bars.Health))
	}
	if q != nil {
		opts = append(opts, api.WithHealthCheck("redis", q.Health))
	}
	return api.NewMonitorHandler(l, agg, early, portfolio, retrain, opts...)
}

func ProvideHTTPServer(cfg *config.Config, h *api.MonitorHandler, l *applogger.Logger) *xhttp.Server {
	path := ""
	if cfg.Metrics.Enabled {
		path = cfg.Metrics.Path
	}
	return xhttp.NewServer(h,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithSlowThreshold(cfg.Server.SlowRequest),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true),
		xhttp.WithMetricsPath(path),
		xhttp.WithLogger(l),
	)
}

// ProvideApp assembles the lifecycle. Optional pieces that are disabled arrive as nil
// and are skipped.
func ProvideApp(
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	dispatcher *usecase.AlertDispatcher,
	q *queue.RedisQueue,
	sched *scheduler.Scheduler,
	pub repository.SignalPublisher,
	producer *pkgkafka.Producer,
	ch *pkgch.Client,
	c cache.Service,
	portfolioStore *internalrepo.SQLitePortfolioStore,
) *server.App {
	opts := []server.AppOption{
		server.WithQueue(q),
		server.WithConsumer(consumer, dispatcher),
		server.WithScheduler(sched),
		server.WithHTTPServer(httpServer),
		server.WithCloser("portfolio", portfolioStore.Close),
		// the layered cache also closes the Redis client shared with the queue
		server.WithCloser("cache", c.Close),
	}
	if ch != nil {
		opts = append(opts, server.WithCloser("clickhouse", ch.Close))
	}
	if producer != nil {
		// signal publisher owns the producer
		opts = append(opts, server.WithCloser("kafka-producer", pub.Close))
		opts = append(opts, server.WithCloser("log-collector", func() error { l.RemoveCollector(); return nil }))
	}
	return server.New(l, opts...)
}
