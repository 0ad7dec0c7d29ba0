// Command retrain refits the probability classifier outside the server.
// With -ticker it retrains one symbol; otherwise every configured retrain ticker.
// With -enqueue the work is handed to the server's Redis retrain queue instead.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prateek8731/Market-Monitor/internal/di"
	"github.com/prateek8731/Market-Monitor/internal/usecase"
	"github.com/prateek8731/Market-Monitor/pkg/config"
	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
	"github.com/prateek8731/Market-Monitor/pkg/queue"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	ticker := flag.String("ticker", "", "symbol to retrain; empty retrains retrain.tickers")
	days := flag.Int("days", 0, "history window in days; 0 uses retrain.days")
	enqueue := flag.Bool("enqueue", false, "enqueue on the Redis retrain queue instead of training here")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	l, err := di.ProvideLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	rc, err := di.ProvideRedisCache(cfg)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	if *enqueue && rc == nil {
		log.Fatal("-enqueue needs redis.enabled")
	}
	c := di.ProvideCache(cfg, rc)

	m := di.ProvideMetrics()
	src := di.ProvideMarketDataSource(cfg, c, nil, m, l)
	clf := di.ProvideClassifier(cfg, di.ProvideArtifactStore(cfg, c, l), m, l)
	uc := di.ProvideRetrainUseCase(cfg, src, clf, di.ProvideAlertChannels(cfg, nil, m, l), nil, l)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tickers := cfg.Retrain.Tickers
	if *ticker != "" {
		tickers = []string{*ticker}
	}

	if *enqueue {
		err = submit(ctx, l, rc.Client(), di.RetrainQueuePrefix(cfg), uc, tickers, *days)
	} else {
		err = retrain(ctx, l, uc, tickers, *days)
	}
	_ = c.Close()
	if err != nil {
		l.Error("retrain failed", applogger.Error(err))
		os.Exit(1)
	}
}

func retrain(ctx context.Context, l *applogger.Logger, uc *usecase.RetrainUseCase, tickers []string, days int) error {
	var errs []error
	for _, t := range tickers {
		r, err := uc.Retrain(ctx, t, days)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		l.Info("retrained", applogger.Ticker(r.Ticker), applogger.Int("bars", r.Bars), applogger.Any("metrics", r.Metrics))
	}
	return errors.Join(errs...)
}

func submit(ctx context.Context, l *applogger.Logger, client *redis.Client, prefix string, uc *usecase.RetrainUseCase, tickers []string, days int) error {
	pub, err := queue.NewRedisPublisher(l, client, queue.WithKeyPrefix(prefix))
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pub.Stop(sctx)
	}()

	uc.WithQueue(pub)
	var errs []error
	for _, t := range tickers {
		if _, err := uc.Submit(ctx, t, days); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
