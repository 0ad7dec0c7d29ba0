package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	xhttp "github.com/prateek8731/Market-Monitor/pkg/http"
	"github.com/prateek8731/Market-Monitor/pkg/logger"
)

// Provider is a single upstream vendor behind FallbackSource.
type Provider interface {
	Name() string
	GetHistorical(ctx context.Context, ticker string, days int) ([]models.PriceBar, error)
	GetQuote(ctx context.Context, ticker string) (models.Quote, error)
	GetInsiderTrades(ctx context.Context, ticker string) ([]models.InsiderTransaction, error)
}

type options struct {
	metrics repository.Metrics
	log     *logger.Logger
	now     func() time.Time
}

// Option configures a provider or source.
type Option func(*options)

// WithMetrics records provider request and error counters.
func WithMetrics(m repository.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(o *options) { o.log = l } }

// WithClock overrides the wall clock used for date windows.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

func buildOptions(opts []Option) options {
	o := options{log: logger.Nop(), now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o options) request(provider, op string) {
	if o.metrics != nil {
		o.metrics.RecordProviderRequest(provider, op)
	}
}

func (o options) failure(provider, op string) {
	if o.metrics != nil {
		o.metrics.RecordProviderError(provider, op)
	}
}

// HTTPProvider centralizes client construction, rate limiting and JSON GETs
// for the REST vendors.
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *xhttp.Client
	limiter *rate.Limiter
	opts    options
}

// NewHTTPProvider builds a vendor client. A non-positive rps disables throttling.
func NewHTTPProvider(name, baseURL, apiKey string, rps float64, burst int, timeout time.Duration, opts ...Option) *HTTPProvider {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &HTTPProvider{
		name:    name,
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout), xhttp.WithUserAgent("market-monitor/1.0")),
		limiter: rate.NewLimiter(limit, burst),
		opts:    buildOptions(opts),
	}
}

func (p *HTTPProvider) Name() string { return p.name }

// Configured reports whether an API key is present.
func (p *HTTPProvider) Configured() bool { return p.apiKey != "" }

// GetJSON issues a GET under baseURL+path and decodes the body into dest.
// Every failure is reported as ErrDataUnavailable.
func (p *HTTPProvider) GetJSON(ctx context.Context, op, path string, query map[string][]string, dest interface{}) error {
	if !p.Configured() {
		return fmt.Errorf("%s %s: %w: %w", p.name, op, models.ErrDataUnavailable, models.ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.limiter.Wait(ctx); err != nil {
		return p.fail(op, err)
	}

	p.opts.request(p.name, op)
	err := p.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         p.baseURL + path,
		QueryParams: query,
		Headers:     map[string]string{"Accept": xhttp.ContentTypeJSON},
	}, dest)
	if err != nil {
		return p.fail(op, err)
	}
	return nil
}

func (p *HTTPProvider) fail(op string, err error) error {
	p.opts.failure(p.name, op)
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		p.opts.log.Warn("provider status error",
			logger.String("provider", p.name),
			logger.String("op", op),
			logger.Int("status", se.Code),
		)
	}
	return fmt.Errorf("%s %s: %w: %w", p.name, op, models.ErrDataUnavailable, err)
}

func (p *HTTPProvider) unavailable(op, reason string) error {
	p.opts.failure(p.name, op)
	return fmt.Errorf("%s %s: %w: %s", p.name, op, models.ErrDataUnavailable, reason)
}
