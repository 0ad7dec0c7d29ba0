package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	domsvc "github.com/prateek8731/Market-Monitor/internal/domain/service"
	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
	"github.com/prateek8731/Market-Monitor/pkg/queue"
	xutil "github.com/prateek8731/Market-Monitor/pkg/util"
)

// AlertNotifier fans an alert out to every configured channel.
type AlertNotifier interface {
	SendAll(ctx context.Context, alert models.Alert) []models.DeliveryStatus
}

// RetrainConfig is used as given except for non-positive Horizon and Days;
// Threshold 0 means "any positive return".
type RetrainConfig struct {
	Horizon   int
	Threshold float64
	Days      int
	Tickers   []string // scheduled set for RetrainAll
}

func DefaultRetrainConfig() RetrainConfig {
	return RetrainConfig{Horizon: 3, Threshold: 0.01, Days: 1000}
}

type RetrainResult struct {
	ID         string                  `json:"id"`
	Ticker     string                  `json:"ticker"`
	Horizon    int                     `json:"horizon"`
	Threshold  float64                 `json:"threshold"`
	Bars       int                     `json:"bars"`
	Metrics    map[string]float64      `json:"metrics,omitempty"`
	Took       time.Duration           `json:"took"`
	Queued     bool                    `json:"queued"`
	Deliveries []models.DeliveryStatus `json:"deliveries,omitempty"`
}

// RetrainUseCase refits the classifier for a ticker, swaps the bound artifact (the
// artifact store persists it) and notifies the alert channels of the outcome.
type RetrainUseCase struct {
	src      domrepo.MarketDataSource
	clf      domsvc.ProbabilityPredictor
	notifier AlertNotifier
	q        queue.Publisher
	cfg      RetrainConfig
	l        *applogger.Logger
}

func NewRetrainUseCase(src domrepo.MarketDataSource, clf domsvc.ProbabilityPredictor, notifier AlertNotifier, cfg RetrainConfig, l *applogger.Logger) *RetrainUseCase {
	def := DefaultRetrainConfig()
	if cfg.Horizon <= 0 {
		cfg.Horizon = def.Horizon
	}
	if cfg.Days <= 0 {
		cfg.Days = def.Days
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &RetrainUseCase{src: src, clf: clf, notifier: notifier, cfg: cfg, l: l.With(applogger.String("component", "retrain"))}
}

// WithQueue makes Submit enqueue jobs instead of running them inline.
func (uc *RetrainUseCase) WithQueue(q queue.Publisher) *RetrainUseCase {
	uc.q = q
	return uc
}

// Retrain runs one retrain synchronously. Failures are reported through the
// notifier as well as returned.
func (uc *RetrainUseCase) Retrain(ctx context.Context, ticker string, days int) (*RetrainResult, error) {
	ticker = xutil.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("ticker required: %w", models.ErrInvalidArgument)
	}
	if days <= 0 {
		days = uc.cfg.Days
	}
	res := &RetrainResult{ID: uuid.NewString(), Ticker: ticker, Horizon: uc.cfg.Horizon, Threshold: uc.cfg.Threshold}
	start := time.Now()

	bars, err := uc.src.GetHistorical(ctx, ticker, days)
	if err == nil && len(bars) == 0 {
		err = fmt.Errorf("historical data unavailable: %w", models.ErrInsufficientData)
	}
	if err == nil {
		res.Bars = len(bars)
		res.Metrics, err = uc.clf.Train(ctx, bars, uc.cfg.Horizon, uc.cfg.Threshold)
	}
	res.Took = time.Since(start)

	if err != nil {
		uc.l.Error("retrain failed", applogger.Ticker(ticker), applogger.Error(err))
		res.Deliveries = uc.notify(ctx, models.Alert{
			Kind:    "retrain_failed",
			Ticker:  ticker,
			Subject: fmt.Sprintf("%s classifier retrain failed", ticker),
			Body:    err.Error(),
		})
		return res, fmt.Errorf("retrain %s: %w", ticker, err)
	}

	uc.l.Info("retrain complete",
		applogger.Ticker(ticker),
		applogger.Int("bars", res.Bars),
		applogger.Any("metrics", res.Metrics),
		applogger.Duration("took", res.Took),
	)
	fields := make(map[string]any, len(res.Metrics)+2)
	for k, v := range res.Metrics {
		fields[k] = v
	}
	fields["horizon"] = res.Horizon
	fields["bars"] = res.Bars
	res.Deliveries = uc.notify(ctx, models.Alert{
		Kind:    "retrain",
		Ticker:  ticker,
		Subject: fmt.Sprintf("%s classifier retrained", ticker),
		Body:    formatMetrics(res.Metrics),
		Fields:  fields,
	})
	return res, nil
}

// Submit enqueues a retrain when a queue is configured, otherwise runs it inline.
func (uc *RetrainUseCase) Submit(ctx context.Context, ticker string, days int) (*RetrainResult, error) {
	ticker = xutil.NormalizeTicker(ticker)
	if uc.q == nil {
		return uc.Retrain(ctx, ticker, days)
	}
	p := RetrainPayload{ID: uuid.NewString(), Ticker: ticker, Days: days}
	if err := uc.q.Enqueue(ctx, RetrainJobType, p); err != nil {
		return nil, fmt.Errorf("enqueue retrain %s: %w", ticker, err)
	}
	uc.l.Info("retrain enqueued", applogger.Ticker(ticker), applogger.String("id", p.ID))
	return &RetrainResult{ID: p.ID, Ticker: ticker, Horizon: uc.cfg.Horizon, Threshold: uc.cfg.Threshold, Queued: true}, nil
}

// RetrainAll retrains every scheduled ticker in turn and joins the failures.
func (uc *RetrainUseCase) RetrainAll(ctx context.Context) error {
	var errs error
	for _, t := range uc.cfg.Tickers {
		if ctx.Err() != nil {
			return errors.Join(errs, ctx.Err())
		}
		if _, err := uc.Retrain(ctx, t, uc.cfg.Days); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	return errs
}

func (uc *RetrainUseCase) notify(ctx context.Context, a models.Alert) []models.DeliveryStatus {
	if uc.notifier == nil {
		return nil
	}
	return uc.notifier.SendAll(ctx, a)
}

func formatMetrics(m map[string]float64) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.4f", k, m[k]))
	}
	return strings.Join(parts, " ")
}

// RetrainJobType is the queue message type handled by RetrainJob.
const RetrainJobType = "retrain.classifier"

type RetrainPayload struct {
	ID     string `json:"id"`
	Ticker string `json:"ticker"`
	Days   int    `json:"days"`
}

// RetrainJob runs queued retrains. Data shortfalls are final; provider outages are retried.
type RetrainJob struct {
	uc *RetrainUseCase
}

func NewRetrainJob(uc *RetrainUseCase) *RetrainJob { return &RetrainJob{uc: uc} }

func (j *RetrainJob) Name() string { return "retrain" }
func (j *RetrainJob) Type() string { return RetrainJobType }

func (j *RetrainJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.Decode[RetrainPayload](payload)
	if err != nil {
		return err
	}
	_, err = j.uc.Retrain(ctx, p.Ticker, p.Days)
	if errors.Is(err, models.ErrInsufficientData) || errors.Is(err, models.ErrInvalidArgument) {
		return queue.Permanent(err)
	}
	return err
}

var _ queue.Job = (*RetrainJob)(nil)
