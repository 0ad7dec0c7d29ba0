package marketdata

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/pkg/cache"
	"github.com/prateek8731/Market-Monitor/pkg/logger"
	"github.com/prateek8731/Market-Monitor/pkg/util"
)

// FallbackSource consults providers in order and returns the first usable answer.
type FallbackSource struct {
	providers []Provider
	news      repository.NewsSource
	opts      options
}

func NewFallbackSource(providers []Provider, news repository.NewsSource, opts ...Option) *FallbackSource {
	return &FallbackSource{providers: providers, news: news, opts: buildOptions(opts)}
}

// Prefer returns a copy that consults p before the configured order.
func (s *FallbackSource) Prefer(p repository.Provider) repository.MarketDataSource {
	ordered := make([]Provider, 0, len(s.providers))
	for _, pr := range s.providers {
		if pr.Name() == string(p) {
			ordered = append(ordered, pr)
		}
	}
	for _, pr := range s.providers {
		if pr.Name() != string(p) {
			ordered = append(ordered, pr)
		}
	}
	return &FallbackSource{providers: ordered, news: s.news, opts: s.opts}
}

// GetHistorical never fails on upstream outage; an empty series is returned instead.
func (s *FallbackSource) GetHistorical(ctx context.Context, ticker string, days int) ([]models.PriceBar, error) {
	ticker = util.NormalizeTicker(ticker)
	if ticker == "" || days <= 0 {
		return nil, nil
	}

	for _, p := range s.providers {
		bars, err := p.GetHistorical(ctx, ticker, days)
		if err != nil {
			s.opts.log.Warn("historical fetch failed",
				logger.Ticker(ticker),
				logger.String("provider", p.Name()),
				logger.Error(err),
			)
			continue
		}
		if len(bars) > 0 {
			return normalizeBars(bars), nil
		}
	}

	s.opts.log.Warn("no provider returned history", logger.Ticker(ticker), logger.Int("days", days))
	if s.opts.metrics != nil {
		s.opts.metrics.RecordDegraded("history")
	}
	return nil, nil
}

func (s *FallbackSource) GetQuote(ctx context.Context, ticker string) (models.Quote, error) {
	ticker = util.NormalizeTicker(ticker)
	if ticker == "" {
		return models.Quote{}, fmt.Errorf("quote: %w: empty ticker", models.ErrInvalidArgument)
	}
	var errs []error
	for _, p := range s.providers {
		q, err := p.GetQuote(ctx, ticker)
		if err == nil {
			return q, nil
		}
		errs = append(errs, err)
	}
	return models.Quote{}, exhausted("quote", errs)
}

func (s *FallbackSource) GetInsiderTrades(ctx context.Context, ticker string) ([]models.InsiderTransaction, error) {
	ticker = util.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("insider: %w: empty ticker", models.ErrInvalidArgument)
	}
	var errs []error
	for _, p := range s.providers {
		txs, err := p.GetInsiderTrades(ctx, ticker)
		if err == nil {
			return txs, nil
		}
		errs = append(errs, err)
	}
	return nil, exhausted("insider", errs)
}

func (s *FallbackSource) FetchNews(ctx context.Context) ([]models.NewsItem, error) {
	if s.news == nil {
		return nil, nil
	}
	return s.news.FetchNews(ctx)
}

func exhausted(op string, errs []error) error {
	if len(errs) == 0 {
		return fmt.Errorf("%s: %w: no providers configured", op, models.ErrDataUnavailable)
	}
	return fmt.Errorf("%s: %w", op, errors.Join(append([]error{models.ErrDataUnavailable}, errs...)...))
}

// CachedSource caches historical series per (provider set, ticker, days).
type CachedSource struct {
	repository.MarketDataSource
	cache  cache.Service
	ttl    time.Duration
	prefix string
	log    *logger.Logger
}

// NewCachedSource wraps inner. scope distinguishes provider sets sharing one cache.
func NewCachedSource(inner repository.MarketDataSource, c cache.Service, ttl time.Duration, scope string, log *logger.Logger) *CachedSource {
	if log == nil {
		log = logger.Nop()
	}
	return &CachedSource{
		MarketDataSource: inner,
		cache:            c,
		ttl:              ttl,
		prefix:           cache.Key("history", scope),
		log:              log,
	}
}

func (s *CachedSource) GetHistorical(ctx context.Context, ticker string, days int) ([]models.PriceBar, error) {
	ticker = util.NormalizeTicker(ticker)
	key := cache.Key(s.prefix, ticker, days)

	bars, _, err := cache.GetOrLoad(ctx, s.cache, key, s.ttl,
		func(ctx context.Context) ([]models.PriceBar, error) {
			return s.MarketDataSource.GetHistorical(ctx, ticker, days)
		},
		func(b []models.PriceBar) bool { return len(b) > 0 },
	)
	var cerr *cache.Error
	if errors.As(err, &cerr) {
		s.log.Warn("history cache unavailable", logger.String("key", key), logger.Error(cerr.Err))
		return bars, nil
	}
	return bars, err
}

func (s *CachedSource) Prefer(p repository.Provider) repository.MarketDataSource {
	sel, ok := s.MarketDataSource.(repository.ProviderSelector)
	if !ok {
		return s
	}
	return &CachedSource{MarketDataSource: sel.Prefer(p), cache: s.cache, ttl: s.ttl, prefix: s.prefix, log: s.log}
}

// StoreBackedSource records fetched bars in a BarStore and serves them when
// every upstream provider comes back empty.
type StoreBackedSource struct {
	repository.MarketDataSource
	store repository.BarStore
	opts  options
}

func NewStoreBackedSource(inner repository.MarketDataSource, store repository.BarStore, opts ...Option) *StoreBackedSource {
	return &StoreBackedSource{MarketDataSource: inner, store: store, opts: buildOptions(opts)}
}

func (s *StoreBackedSource) GetHistorical(ctx context.Context, ticker string, days int) ([]models.PriceBar, error) {
	ticker = util.NormalizeTicker(ticker)
	bars, err := s.MarketDataSource.GetHistorical(ctx, ticker, days)
	if err != nil {
		return nil, err
	}
	if len(bars) > 0 {
		if err := s.store.StoreBars(ctx, ticker, bars); err != nil {
			s.opts.log.Warn("store bars failed", logger.Ticker(ticker), logger.Error(err))
		}
		return bars, nil
	}
	if ticker == "" || days <= 0 {
		return nil, nil
	}

	from, to := util.DayRange(s.opts.now(), days)
	stored, err := s.store.GetBars(ctx, ticker, from, to)
	if err != nil {
		s.opts.log.Warn("stored bars unavailable", logger.Ticker(ticker), logger.Error(err))
		return nil, nil
	}
	if len(stored) > 0 {
		s.opts.log.Info("serving stored bars", logger.Ticker(ticker), logger.Int("bars", len(stored)))
	}
	return stored, nil
}

func (s *StoreBackedSource) Prefer(p repository.Provider) repository.MarketDataSource {
	sel, ok := s.MarketDataSource.(repository.ProviderSelector)
	if !ok {
		return s
	}
	return &StoreBackedSource{MarketDataSource: sel.Prefer(p), store: s.store, opts: s.opts}
}

// ProviderNames joins provider names for cache scoping.
func ProviderNames(ps []Provider) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.Name()
	}
	return strings.Join(names, "+")
}

var (
	_ repository.MarketDataSource = (*FallbackSource)(nil)
	_ repository.MarketDataSource = (*CachedSource)(nil)
	_ repository.MarketDataSource = (*StoreBackedSource)(nil)
	_ repository.ProviderSelector = (*FallbackSource)(nil)
	_ repository.ProviderSelector = (*CachedSource)(nil)
	_ repository.ProviderSelector = (*StoreBackedSource)(nil)
)
