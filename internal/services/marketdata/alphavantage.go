package marketdata

import (
	"context"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/pkg/util"
)

type avDaily struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"6. volume"`
}

type avSeries struct {
	Series map[string]avDaily `json:"Time Series (Daily)"`
	avNotice
}

type avGlobalQuote struct {
	Quote struct {
		Symbol    string `json:"01. symbol"`
		Open      string `json:"02. open"`
		High      string `json:"03. high"`
		Low       string `json:"04. low"`
		Price     string `json:"05. price"`
		LastDay   string `json:"07. latest trading day"`
		PrevClose string `json:"08. previous close"`
	} `json:"Global Quote"`
	avNotice
}

type avInsider struct {
	Date        string `json:"transaction_date"`
	Executive   string `json:"executive"`
	Acquisition string `json:"acquisition_or_disposal"`
	Shares      string `json:"shares"`
	SharePrice  string `json:"share_price"`
}

// avNotice captures the throttling and error envelopes AlphaVantage returns with HTTP 200.
type avNotice struct {
	Note        string `json:"Note"`
	Information string `json:"Information"`
	Error       string `json:"Error Message"`
}

func (n avNotice) message() string {
	switch {
	case n.Error != "":
		return n.Error
	case n.Note != "":
		return n.Note
	default:
		return n.Information
	}
}

// AlphaVantage is the AlphaVantage query client.
type AlphaVantage struct {
	*HTTPProvider
}

// NewAlphaVantage creates an AlphaVantage client.
func NewAlphaVantage(baseURL, apiKey string, rps float64, burst int, timeout time.Duration, opts ...Option) *AlphaVantage {
	return &AlphaVantage{HTTPProvider: NewHTTPProvider(string(repository.ProviderAlphaVantage), baseURL, apiKey, rps, burst, timeout, opts...)}
}

func (a *AlphaVantage) query(function, ticker string, extra ...string) map[string][]string {
	q := map[string][]string{
		"function": {function},
		"symbol":   {ticker},
		"apikey":   {a.apiKey},
	}
	for i := 0; i+1 < len(extra); i += 2 {
		q[extra[i]] = []string{extra[i+1]}
	}
	return q
}

func (a *AlphaVantage) GetHistorical(ctx context.Context, ticker string, days int) ([]models.PriceBar, error) {
	var raw avSeries
	if err := a.GetJSON(ctx, "daily", "", a.query("TIME_SERIES_DAILY_ADJUSTED", ticker, "outputsize", "full"), &raw); err != nil {
		return nil, err
	}
	if len(raw.Series) == 0 {
		if msg := raw.message(); msg != "" {
			return nil, a.unavailable("daily", msg)
		}
		return nil, nil
	}

	cutoff, _ := util.DayRange(a.opts.now(), days)
	bars := make([]models.PriceBar, 0, len(raw.Series))
	for day, v := range raw.Series {
		date, ok := util.ParseTime(day)
		if !ok || date.Before(cutoff) {
			continue
		}
		bars = append(bars, models.PriceBar{
			Date:   date,
			Open:   util.ParseFloatDefault(v.Open, 0),
			High:   util.ParseFloatDefault(v.High, 0),
			Low:    util.ParseFloatDefault(v.Low, 0),
			Close:  util.ParseFloatDefault(v.Close, 0),
			Volume: int64(util.ParseFloatDefault(v.Volume, 0)),
		})
	}
	return normalizeBars(bars), nil
}

func (a *AlphaVantage) GetQuote(ctx context.Context, ticker string) (models.Quote, error) {
	var raw avGlobalQuote
	if err := a.GetJSON(ctx, "quote", "", a.query("GLOBAL_QUOTE", ticker), &raw); err != nil {
		return models.Quote{}, err
	}
	if raw.Quote.Price == "" {
		msg := raw.message()
		if msg == "" {
			msg = "empty quote for " + ticker
		}
		return models.Quote{}, a.unavailable("quote", msg)
	}

	ts := util.ParseTimeDefault(raw.Quote.LastDay, a.opts.now().UTC())
	return models.Quote{
		Ticker:    ticker,
		Price:     util.ParseFloatDefault(raw.Quote.Price, 0),
		High:      util.ParseFloatDefault(raw.Quote.High, 0),
		Low:       util.ParseFloatDefault(raw.Quote.Low, 0),
		Open:      util.ParseFloatDefault(raw.Quote.Open, 0),
		PrevClose: util.ParseFloatDefault(raw.Quote.PrevClose, 0),
		Timestamp: ts,
		Source:    a.name,
	}, nil
}

func (a *AlphaVantage) GetInsiderTrades(ctx context.Context, ticker string) ([]models.InsiderTransaction, error) {
	var raw struct {
		Data []avInsider `json:"data"`
		avNotice
	}
	if err := a.GetJSON(ctx, "insider", "", a.query("INSIDER_TRANSACTIONS", ticker), &raw); err != nil {
		return nil, err
	}
	if raw.Data == nil {
		if msg := raw.message(); msg != "" {
			return nil, a.unavailable("insider", msg)
		}
	}

	out := make([]models.InsiderTransaction, 0, len(raw.Data))
	for _, r := range raw.Data {
		out = append(out, normalizeAlphaInsider(ticker, r))
	}
	sortTransactions(out)
	return out, nil
}

var _ Provider = (*AlphaVantage)(nil)
