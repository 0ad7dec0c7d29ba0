package marketdata

import (
	"math"
	"sort"
	"strings"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	"github.com/prateek8731/Market-Monitor/pkg/util"
)

// normalizeBars sorts bars by day and keeps the last bar seen for a repeated day.
func normalizeBars(bars []models.PriceBar) []models.PriceBar {
	if len(bars) < 2 {
		return bars
	}
	sorted := append([]models.PriceBar(nil), bars...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	out := sorted[:1]
	for _, b := range sorted[1:] {
		last := &out[len(out)-1]
		if util.TruncateDay(b.Date).Equal(util.TruncateDay(last.Date)) {
			*last = b
			continue
		}
		out = append(out, b)
	}
	return out
}

// finnhubDirection maps SEC transaction codes first (P purchase, S sale) and
// falls back to the sign of the share change.
func finnhubDirection(code string, change float64) models.Direction {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "P":
		return models.DirectionBuy
	case "S":
		return models.DirectionSell
	}
	switch {
	case change > 0:
		return models.DirectionBuy
	case change < 0:
		return models.DirectionSell
	default:
		return models.DirectionUnknown
	}
}

func alphaDirection(ad string) models.Direction {
	switch strings.ToUpper(strings.TrimSpace(ad)) {
	case "A":
		return models.DirectionBuy
	case "D":
		return models.DirectionSell
	default:
		return models.DirectionUnknown
	}
}

func normalizeFinnhubInsider(ticker string, r finnhubInsider) models.InsiderTransaction {
	date, ok := util.ParseTime(r.TransactionDate)
	if !ok {
		date, _ = util.ParseTime(r.FilingDate)
	}
	return models.InsiderTransaction{
		Ticker:    ticker,
		Insider:   r.Name,
		Direction: finnhubDirection(r.TransactionCode, r.Change),
		Shares:    math.Abs(r.Change),
		Price:     r.Price,
		Date:      date,
		Source:    "finnhub",
	}
}

func normalizeAlphaInsider(ticker string, r avInsider) models.InsiderTransaction {
	date, _ := util.ParseTime(r.Date)
	return models.InsiderTransaction{
		Ticker:    ticker,
		Insider:   r.Executive,
		Direction: alphaDirection(r.Acquisition),
		Shares:    math.Abs(util.ParseFloatDefault(r.Shares, 0)),
		Price:     util.ParseFloatDefault(r.SharePrice, 0),
		Date:      date,
		Source:    "alphavantage",
	}
}

// sortTransactions orders newest first.
func sortTransactions(txs []models.InsiderTransaction) {
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
}
