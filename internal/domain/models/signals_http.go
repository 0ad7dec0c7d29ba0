package models

// Requests for monitor HTTP endpoints. Defined in domain for consistency and reuse.

type QuoteRequest struct {
	Ticker   string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Provider string `query:"provider" json:"provider" default:"finnhub" validate:"oneof=finnhub alphavantage"`
}

type HistoryRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Days   int    `query:"days" json:"days" default:"365" validate:"gte=1,lte=5000"`
}

type SignalRequest struct {
	Ticker        string  `query:"ticker" json:"ticker" validate:"required,ticker"`
	Horizon       int     `query:"horizon" json:"horizon" default:"2" validate:"oneof=1 2 3 5 7"`
	Lookback      int     `query:"lookback" json:"lookback" default:"180" validate:"gte=60,lte=720"`
	BuyThreshold  float64 `query:"buy_threshold" json:"buy_threshold" default:"2"`
	SellThreshold float64 `query:"sell_threshold" json:"sell_threshold" default:"-2"`
}

type ProbabilityRequest struct {
	Ticker  string `query:"ticker" json:"ticker" validate:"required,ticker"`
	Horizon int    `query:"horizon" json:"horizon" default:"3" validate:"gte=1,lte=30"`
	Days    int    `query:"days" json:"days" default:"365" validate:"gte=60,lte=5000"`
}

type TrainRequest struct {
	Ticker    string  `json:"ticker" validate:"required,ticker"`
	Horizon   int     `json:"horizon" default:"3" validate:"gte=1,lte=30"`
	Threshold float64 `json:"threshold" default:"0.01" validate:"gte=-1,lte=1"`
	Days      int     `json:"days" default:"1000" validate:"gte=60,lte=5000"`
}

type BacktestRequest struct {
	Ticker         string  `json:"ticker" validate:"required,ticker"`
	Days           int     `json:"days" default:"2000" validate:"gte=1,lte=10000"`
	InitialCapital float64 `json:"initial_capital" default:"100000" validate:"gt=0"`
	Strategy       string  `json:"strategy" default:"sma" validate:"oneof=sma buy_hold"`
	Short          int     `json:"short" default:"20" validate:"gte=1"`
	Long           int     `json:"long" default:"50" validate:"gtfield=Short"`
}

type EarlyRequest struct {
	Ticker string `query:"ticker" json:"ticker" validate:"required,ticker"`
	CIK    string `query:"cik" json:"cik" validate:"omitempty,numeric,max=10"`
}

type OrderRequest struct {
	Symbol string  `json:"symbol" validate:"required,ticker"`
	Side   string  `json:"side" validate:"required,oneof=BUY SELL"`
	Qty    float64 `json:"qty" validate:"gt=0"`
}

type RetrainRequest struct {
	Ticker string `json:"ticker" validate:"required,ticker"`
	Days   int    `json:"days" default:"1000" validate:"gte=60,lte=5000"`
}
