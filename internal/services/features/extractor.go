package features

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

const maWindow = 10

// Schema is the ordered list of feature names produced by Build.
type Schema []string

// DefaultSchema is the feature layout emitted by Build.
var DefaultSchema = Schema{"ret1", "lag1", "lag2", "lag3", "lag4", "lag5", "ma10", "vol_ma10"}

// Fingerprint identifies the schema version; artifacts are bound to it.
func (s Schema) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.Join(s, ",")))
	return hex.EncodeToString(sum[:8])
}

// Equal reports whether both schemas list the same names in the same order.
func (s Schema) Equal(o Schema) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Matrix holds one feature row per input bar, aligned by index.
type Matrix struct {
	Schema Schema
	Rows   [][]float64
}

// Len returns the number of rows.
func (m Matrix) Len() int { return len(m.Rows) }

// Last returns the most recent feature row.
func (m Matrix) Last() []float64 {
	if len(m.Rows) == 0 {
		return nil
	}
	return m.Rows[len(m.Rows)-1]
}

// Named returns row i keyed by feature name.
func (m Matrix) Named(i int) map[string]float64 {
	out := make(map[string]float64, len(m.Schema))
	for j, name := range m.Schema {
		out[name] = m.Rows[i][j]
	}
	return out
}

// CheckOrder reports ErrInvalidArgument unless dates strictly ascend.
func CheckOrder(bars []models.PriceBar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Date.After(bars[i-1].Date) {
			return fmt.Errorf("bar %d (%s) not after %s: %w", i,
				bars[i].Date.Format("2006-01-02"), bars[i-1].Date.Format("2006-01-02"), models.ErrInvalidArgument)
		}
	}
	return nil
}

// Build turns an ascending daily series into n feature rows.
// Leading lags and ma10 are backward-filled, vol_ma10 is zero until its window is complete.
func Build(bars []models.PriceBar) (Matrix, error) {
	n := len(bars)
	if n == 0 {
		return Matrix{}, fmt.Errorf("build features: %w", models.ErrInsufficientData)
	}
	if err := CheckOrder(bars); err != nil {
		return Matrix{}, fmt.Errorf("build features: %w", err)
	}
	closes := models.Closes(bars)
	ma := closeMA(closes)
	vma := volumeMA(bars)

	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, 0, len(DefaultSchema))
		ret := 0.0
		if i > 0 && closes[i-1] != 0 {
			ret = closes[i]/closes[i-1] - 1
		}
		row = append(row, ret)
		for k := 1; k <= 5; k++ {
			j := i - k
			if j < 0 {
				j = 0
			}
			row = append(row, closes[j])
		}
		row = append(row, ma[i], vma[i])
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row[j] = 0
			}
		}
		rows[i] = row
	}
	return Matrix{Schema: DefaultSchema, Rows: rows}, nil
}

// closeMA is the rolling 10-day close mean. With a full window available, the leading
// rows take the first full value; shorter series keep the expanding partial mean.
func closeMA(closes []float64) []float64 {
	n := len(closes)
	out := make([]float64, n)
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= maWindow {
			sum -= closes[i-maWindow]
		}
		w := i + 1
		if w > maWindow {
			w = maWindow
		}
		out[i] = sum / float64(w)
	}
	if n >= maWindow {
		first := out[maWindow-1]
		for i := 0; i < maWindow-1; i++ {
			out[i] = first
		}
	}
	return out
}

func volumeMA(bars []models.PriceBar) []float64 {
	out := make([]float64, len(bars))
	sum := 0.0
	for i, b := range bars {
		sum += float64(b.Volume)
		if i >= maWindow {
			sum -= float64(bars[i-maWindow].Volume)
		}
		if i >= maWindow-1 {
			out[i] = sum / maWindow
		}
	}
	return out
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(bars)-1, or nil if insufficient data.
func ComputeLogReturns(bars []models.PriceBar) []float64 {
	if len(bars) < 2 {
		return nil
	}
	out := make([]float64, 0, len(bars)-1)
	for i := 1; i < len(bars); i++ {
		prev := bars[i-1].Close
		cur := bars[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// TradingDaysPerYear annualizes daily statistics.
const TradingDaysPerYear = 252

// RealizedVolatility computes annualized realized volatility over the latest window
// using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}
