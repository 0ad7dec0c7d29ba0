package scoring

import (
	"fmt"
	"math"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
)

// Inputs to the composite score. ModelPct is nil when no forecast is available.
type Inputs struct {
	InsiderBuy  int
	InsiderSell int
	NewsBuzz    int
	ModelPct    *float64
}

// Weights of each term. The model forecast is clamped to ±ModelClamp before weighting.
type Weights struct {
	InsiderBuy  float64
	InsiderSell float64
	NewsBuzz    float64
	Model       float64
	ModelClamp  float64
}

// DefaultWeights: 2*buy - sell + 0.2*buzz + 0.5*clamp(pct, -20, 20).
var DefaultWeights = Weights{InsiderBuy: 2, InsiderSell: 1, NewsBuzz: 0.2, Model: 0.5, ModelClamp: 20}

// Bands maps a score to its tier, highest first.
var Bands = []struct {
	MinScore float64
	Band     models.Band
}{
	{10, models.BandHigh},
	{2, models.BandModerate},
}

// DefaultBand is the tier for scores below every threshold.
const DefaultBand = models.BandLow

func mapBand(score float64) models.Band {
	for _, b := range Bands {
		if score >= b.MinScore {
			return b.Band
		}
	}
	return DefaultBand
}

// Scorer is pure and safe for concurrent use.
type Scorer struct {
	w Weights
}

func NewScorer(w Weights) *Scorer { return &Scorer{w: w} }

// Score fuses the heuristic counts and the optional forecast into one banded signal.
// A NaN or infinite forecast contributes nothing.
func (s *Scorer) Score(in Inputs) (models.CompositeSignal, error) {
	if in.InsiderBuy < 0 || in.InsiderSell < 0 || in.NewsBuzz < 0 {
		return models.CompositeSignal{}, fmt.Errorf("negative count in %+v: %w", in, models.ErrInvalidArgument)
	}
	score := s.w.InsiderBuy*float64(in.InsiderBuy) -
		s.w.InsiderSell*float64(in.InsiderSell) +
		s.w.NewsBuzz*float64(in.NewsBuzz)

	var pct *float64
	if in.ModelPct != nil && !math.IsNaN(*in.ModelPct) && !math.IsInf(*in.ModelPct, 0) {
		v := *in.ModelPct
		pct = &v
		score += s.w.Model * math.Max(-s.w.ModelClamp, math.Min(s.w.ModelClamp, v))
	}

	return models.CompositeSignal{
		InsiderBuy:  in.InsiderBuy,
		InsiderSell: in.InsiderSell,
		NewsBuzz:    in.NewsBuzz,
		ModelPct:    pct,
		Score:       score,
		Band:        mapBand(score),
	}, nil
}
