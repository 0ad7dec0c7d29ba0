package models

import "time"

// PriceBar is one trading day of OHLCV data.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Quote is the latest price snapshot for a ticker.
type Quote struct {
	Ticker    string    `json:"ticker"`
	Price     float64   `json:"price"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Open      float64   `json:"open"`
	PrevClose float64   `json:"prev_close,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Direction of an insider transaction after normalization.
type Direction string

const (
	DirectionBuy     Direction = "buy"
	DirectionSell    Direction = "sell"
	DirectionUnknown Direction = "unknown"
)

// InsiderTransaction is the canonical insider record shape, independent of provider.
type InsiderTransaction struct {
	Ticker    string    `json:"ticker"`
	Insider   string    `json:"insider"`
	Direction Direction `json:"direction"`
	Shares    float64   `json:"shares"`
	Price     float64   `json:"price,omitempty"`
	Date      time.Time `json:"date"`
	Source    string    `json:"source"`
}

// NewsItem is a headline from an RSS feed or news API.
type NewsItem struct {
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
}

// Filing is a public regulatory filing entry (e.g. SEC Form 4).
type Filing struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
}

// Closes extracts close prices in series order.
func Closes(bars []PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
