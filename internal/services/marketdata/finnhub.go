package marketdata

import (
	"context"
	"strconv"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/internal/domain/repository"
	"github.com/prateek8731/Market-Monitor/pkg/util"
)

type finnhubQuote struct {
	Current   float64 `json:"c"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Open      float64 `json:"o"`
	PrevClose float64 `json:"pc"`
	Time      int64   `json:"t"`
}

type finnhubCandles struct {
	Status string    `json:"s"`
	Time   []int64   `json:"t"`
	Open   []float64 `json:"o"`
	High   []float64 `json:"h"`
	Low    []float64 `json:"l"`
	Close  []float64 `json:"c"`
	Volume []float64 `json:"v"`
}

type finnhubInsider struct {
	Name            string  `json:"name"`
	Share           float64 `json:"share"`
	Change          float64 `json:"change"`
	FilingDate      string  `json:"filingDate"`
	TransactionDate string  `json:"transactionDate"`
	TransactionCode string  `json:"transactionCode"`
	Price           float64 `json:"transactionPrice"`
}

type finnhubNews struct {
	Datetime int64  `json:"datetime"`
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
}

// Finnhub is the Finnhub REST client.
type Finnhub struct {
	*HTTPProvider
}

// NewFinnhub creates a Finnhub client.
func NewFinnhub(baseURL, apiKey string, rps float64, burst int, timeout time.Duration, opts ...Option) *Finnhub {
	return &Finnhub{HTTPProvider: NewHTTPProvider(string(repository.ProviderFinnhub), baseURL, apiKey, rps, burst, timeout, opts...)}
}

func (f *Finnhub) query(kv ...string) map[string][]string {
	q := map[string][]string{"token": {f.apiKey}}
	for i := 0; i+1 < len(kv); i += 2 {
		q[kv[i]] = []string{kv[i+1]}
	}
	return q
}

func (f *Finnhub) GetQuote(ctx context.Context, ticker string) (models.Quote, error) {
	var raw finnhubQuote
	if err := f.GetJSON(ctx, "quote", "/quote", f.query("symbol", ticker), &raw); err != nil {
		return models.Quote{}, err
	}
	// Finnhub answers unknown symbols with an all-zero payload.
	if raw.Current == 0 && raw.Time == 0 {
		return models.Quote{}, f.unavailable("quote", "empty quote for "+ticker)
	}
	return models.Quote{
		Ticker:    ticker,
		Price:     raw.Current,
		High:      raw.High,
		Low:       raw.Low,
		Open:      raw.Open,
		PrevClose: raw.PrevClose,
		Timestamp: time.Unix(raw.Time, 0).UTC(),
		Source:    f.name,
	}, nil
}

func (f *Finnhub) GetHistorical(ctx context.Context, ticker string, days int) ([]models.PriceBar, error) {
	from, to := util.DayRange(f.opts.now(), days)
	q := f.query(
		"symbol", ticker,
		"resolution", "D",
		"from", strconv.FormatInt(from.Unix(), 10),
		"to", strconv.FormatInt(to.Unix(), 10),
	)

	var raw finnhubCandles
	if err := f.GetJSON(ctx, "candle", "/stock/candle", q, &raw); err != nil {
		return nil, err
	}
	if raw.Status != "ok" {
		return nil, f.unavailable("candle", "status "+raw.Status)
	}

	n := len(raw.Time)
	if len(raw.Open) != n || len(raw.High) != n || len(raw.Low) != n || len(raw.Close) != n || len(raw.Volume) != n {
		return nil, f.unavailable("candle", "ragged candle arrays")
	}

	bars := make([]models.PriceBar, n)
	for i := 0; i < n; i++ {
		bars[i] = models.PriceBar{
			Date:   time.Unix(raw.Time[i], 0).UTC(),
			Open:   raw.Open[i],
			High:   raw.High[i],
			Low:    raw.Low[i],
			Close:  raw.Close[i],
			Volume: int64(raw.Volume[i]),
		}
	}
	return normalizeBars(bars), nil
}

func (f *Finnhub) GetInsiderTrades(ctx context.Context, ticker string) ([]models.InsiderTransaction, error) {
	var raw struct {
		Data []finnhubInsider `json:"data"`
	}
	if err := f.GetJSON(ctx, "insider", "/stock/insider-transactions", f.query("symbol", ticker), &raw); err != nil {
		return nil, err
	}

	out := make([]models.InsiderTransaction, 0, len(raw.Data))
	for _, r := range raw.Data {
		out = append(out, normalizeFinnhubInsider(ticker, r))
	}
	sortTransactions(out)
	return out, nil
}

// FetchNews returns general market headlines.
func (f *Finnhub) FetchNews(ctx context.Context) ([]models.NewsItem, error) {
	var raw []finnhubNews
	if err := f.GetJSON(ctx, "news", "/news", f.query("category", "general"), &raw); err != nil {
		return nil, err
	}
	out := make([]models.NewsItem, 0, len(raw))
	for _, n := range raw {
		item := models.NewsItem{Source: "Finnhub " + n.Source, Title: n.Headline, Link: n.URL}
		if n.Datetime > 0 {
			item.Published = time.Unix(n.Datetime, 0).UTC()
		}
		out = append(out, item)
	}
	return out, nil
}

var (
	_ Provider              = (*Finnhub)(nil)
	_ repository.NewsSource = (*Finnhub)(nil)
)
