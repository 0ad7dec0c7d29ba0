package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	domsvc "github.com/prateek8731/Market-Monitor/internal/domain/service"
	"github.com/prateek8731/Market-Monitor/internal/services/scoring"
	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
	xutil "github.com/prateek8731/Market-Monitor/pkg/util"
)

// Signal names used as keys of EarlySignals.Errors.
const (
	SignalInsiders    = "insiders"
	SignalNews        = "news"
	SignalFilings     = "filings"
	SignalRegression  = "regression"
	SignalProbability = "probability"
)

type EarlySignalsConfig struct {
	Horizon    int           // regression and classifier horizon
	Days       int           // history window fed to the models
	Keywords   []string      // news buzz keywords; empty uses the defaults
	NewsWindow time.Duration // only headlines this recent count
	Timeout    time.Duration
}

// EarlySignalsUseCase gathers insider, news, filing and model signals concurrently and
// fuses them into one composite score. A failing source degrades only its own signal.
type EarlySignalsUseCase struct {
	src     domrepo.MarketDataSource
	filings domrepo.FilingSource
	reg     domsvc.PctPredictor
	clf     domsvc.ProbabilityPredictor
	scorer  *scoring.Scorer
	pub     domrepo.SignalPublisher
	metrics domrepo.Metrics
	cfg     EarlySignalsConfig
	l       *applogger.Logger
	now     func() time.Time
}

func NewEarlySignalsUseCase(
	src domrepo.MarketDataSource,
	filings domrepo.FilingSource,
	reg domsvc.PctPredictor,
	clf domsvc.ProbabilityPredictor,
	scorer *scoring.Scorer,
	pub domrepo.SignalPublisher,
	metrics domrepo.Metrics,
	cfg EarlySignalsConfig,
	l *applogger.Logger,
) *EarlySignalsUseCase {
	if cfg.Horizon <= 0 {
		cfg.Horizon = 3
	}
	if cfg.Days <= 0 {
		cfg.Days = 180
	}
	if cfg.NewsWindow <= 0 {
		cfg.NewsWindow = 72 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if scorer == nil {
		scorer = scoring.NewScorer(scoring.DefaultWeights)
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &EarlySignalsUseCase{
		src: src, filings: filings, reg: reg, clf: clf, scorer: scorer,
		pub: pub, metrics: metrics, cfg: cfg, l: l, now: time.Now,
	}
}

type signalItem struct {
	name string
	val  interface{}
	err  error
}

// GetEarlySignals computes the composite view for ticker. cik is optional and enables
// the regulatory filings lookup. Only a schema mismatch aborts the whole computation.
func (uc *EarlySignalsUseCase) GetEarlySignals(ctx context.Context, ticker, cik string) (*models.EarlySignals, error) {
	ticker = xutil.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("ticker required: %w", models.ErrInvalidArgument)
	}

	ctx, cancel := context.WithTimeout(ctx, uc.cfg.Timeout)
	defer cancel()

	res := &models.EarlySignals{
		Ticker:    ticker,
		Timestamp: uc.now().UTC(),
		Errors:    map[string]string{},
	}

	ch := make(chan signalItem, 5)
	var wg sync.WaitGroup
	run := func(name string, fn func() (interface{}, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := fn()
			ch <- signalItem{name, v, err}
		}()
	}

	run(SignalInsiders, func() (interface{}, error) {
		return uc.src.GetInsiderTrades(ctx, ticker)
	})
	run(SignalNews, func() (interface{}, error) {
		return uc.src.FetchNews(ctx)
	})
	if cik != "" && uc.filings != nil {
		run(SignalFilings, func() (interface{}, error) {
			return uc.filings.GetFilings(ctx, cik)
		})
	}

	// Both models share one history fetch.
	wg.Add(1)
	go func() {
		defer wg.Done()
		bars, err := uc.src.GetHistorical(ctx, ticker, uc.cfg.Days)
		if err == nil && len(bars) == 0 {
			err = fmt.Errorf("historical data unavailable: %w", models.ErrInsufficientData)
		}
		if err != nil {
			ch <- signalItem{SignalRegression, nil, err}
			ch <- signalItem{SignalProbability, nil, err}
			return
		}
		run(SignalRegression, func() (interface{}, error) {
			return uc.reg.RunFullPipeline(ctx, bars, uc.cfg.Horizon)
		})
		run(SignalProbability, func() (interface{}, error) {
			return uc.clf.PredictFromSignals(ctx, bars, uc.cfg.Horizon)
		})
	}()

	go func() { wg.Wait(); close(ch) }()

	var (
		insiders []models.InsiderTransaction
		news     []models.NewsItem
		fatal    error
	)
	for it := range ch {
		if it.err != nil {
			if errors.Is(it.err, models.ErrSchemaMismatch) {
				fatal = errors.Join(fatal, fmt.Errorf("%s: %w", it.name, it.err))
				continue
			}
			uc.degrade(res, it.name, it.err.Error())
			continue
		}
		switch it.name {
		case SignalInsiders:
			insiders = it.val.([]models.InsiderTransaction)
		case SignalNews:
			news = it.val.([]models.NewsItem)
		case SignalFilings:
			res.Filings = it.val.([]models.Filing)
		case SignalRegression:
			v := it.val.(models.RegressionResult)
			v.Ticker = ticker
			res.Regression = &v
		case SignalProbability:
			v := it.val.(models.ClassifierResult)
			res.Classifier = &v
			if !v.Available {
				uc.degrade(res, it.name, v.Reason)
			}
		}
	}
	if fatal != nil {
		uc.l.Error("early signals schema mismatch", applogger.Ticker(ticker), applogger.Error(fatal))
		return nil, fatal
	}

	buy, sell := scoring.InsiderTally(insiders)
	res.Insiders = insiders
	res.Headlines = len(news)
	in := scoring.Inputs{
		InsiderBuy:  buy,
		InsiderSell: sell,
		NewsBuzz:    scoring.NewsBuzz(news, uc.cfg.Keywords, uc.now(), uc.cfg.NewsWindow),
	}
	if res.Regression != nil {
		pct := res.Regression.PredPct
		in.ModelPct = &pct
	}
	composite, err := uc.scorer.Score(in)
	if err != nil {
		return nil, err
	}
	res.Composite = composite

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	uc.publish(ctx, res)
	return res, nil
}

func (uc *EarlySignalsUseCase) degrade(res *models.EarlySignals, name, reason string) {
	res.Errors[name] = reason
	if uc.metrics != nil {
		uc.metrics.RecordDegraded(name)
	}
	uc.l.Warn("early signal degraded",
		applogger.Ticker(res.Ticker),
		applogger.String("signal", name),
		applogger.String("reason", reason),
	)
}

// publish is best effort; the caller still gets the result when the broker is down.
func (uc *EarlySignalsUseCase) publish(ctx context.Context, res *models.EarlySignals) {
	if uc.pub == nil {
		return
	}
	if err := uc.pub.PublishSignal(ctx, res); err != nil {
		uc.l.Warn("publish early signal failed", applogger.Ticker(res.Ticker), applogger.Error(err))
	}
}
