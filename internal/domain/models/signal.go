package models

import "time"

// RegressionResult is the output of the baseline percent-change predictor.
type RegressionResult struct {
	Ticker       string             `json:"ticker,omitempty"`
	Horizon      int                `json:"horizon"`
	PredPct      float64            `json:"pred_pct"`
	Metrics      map[string]float64 `json:"metrics"`
	RecentSeries []PriceBar         `json:"recent_series"`
	TrainRows    int                `json:"train_rows"`
	TestRows     int                `json:"test_rows"`
	RealizedVol  float64            `json:"realized_vol"` // annualized, last 20 sessions
	Recommend    Recommendation     `json:"recommendation,omitempty"`
}

// Recommendation derived from a percent-change forecast.
type Recommendation string

const (
	RecommendBuy  Recommendation = "BUY"
	RecommendSell Recommendation = "SELL"
	RecommendHold Recommendation = "HOLD"
)

// ClassifierResult is the probability of a positive return over the horizon.
// Available is false when the model could not be trained and ProbPos is the neutral 0.
type ClassifierResult struct {
	Horizon   int                `json:"horizon"`
	ProbPos   float64            `json:"prob_pos"`
	Metrics   map[string]float64 `json:"metrics"`
	Available bool               `json:"available"`
	Reason    string             `json:"reason,omitempty"`
}

// Band is the three-tier composite recommendation.
type Band string

const (
	BandLow      Band = "Low"
	BandModerate Band = "Moderate"
	BandHigh     Band = "High"
)

// CompositeSignal fuses insider, news and model signals. Never persisted.
type CompositeSignal struct {
	InsiderBuy  int      `json:"insider_buy"`
	InsiderSell int      `json:"insider_sell"`
	NewsBuzz    int      `json:"news_buzz"`
	ModelPct    *float64 `json:"model_pct"`
	Score       float64  `json:"score"`
	Band        Band     `json:"band"`
}

// Position held by a backtest strategy on a given day.
type Position int

const (
	Flat Position = 0
	Long Position = 1
)

// EquityPoint is the portfolio value at the close of one day.
type EquityPoint struct {
	Date     time.Time `json:"date"`
	Equity   float64   `json:"equity"`
	Position Position  `json:"position"`
}

// BacktestResult summarizes a replayed strategy. len(EquityCurve) == len(input series).
type BacktestResult struct {
	Strategy       string        `json:"strategy"`
	InitialCapital float64       `json:"initial_capital"`
	FinalEquity    float64       `json:"final_equity"`
	TotalReturn    float64       `json:"total_return"`
	MaxDrawdown    float64       `json:"max_drawdown"`
	Trades         int           `json:"trades"`
	EquityCurve    []EquityPoint `json:"equity_curve"`
}
