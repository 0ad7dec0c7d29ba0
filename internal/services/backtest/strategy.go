package backtest

import (
	"fmt"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domsvc "github.com/prateek8731/Market-Monitor/internal/domain/service"
)

// SMACrossover is long while the short close average sits above the long one,
// and flat until the long window is available.
type SMACrossover struct {
	Short int
	Long  int
}

func NewSMACrossover(short, long int) (SMACrossover, error) {
	if short < 1 || long <= short {
		return SMACrossover{}, fmt.Errorf("sma windows %d/%d: %w", short, long, models.ErrInvalidArgument)
	}
	return SMACrossover{Short: short, Long: long}, nil
}

func (s SMACrossover) Name() string { return fmt.Sprintf("sma_%d_%d", s.Short, s.Long) }

func (s SMACrossover) Signal(history []models.PriceBar) models.Position {
	if s.Long <= 0 || len(history) < s.Long {
		return models.Flat
	}
	if tailMean(history, s.Short) > tailMean(history, s.Long) {
		return models.Long
	}
	return models.Flat
}

func tailMean(bars []models.PriceBar, n int) float64 {
	sum := 0.0
	for _, b := range bars[len(bars)-n:] {
		sum += b.Close
	}
	return sum / float64(n)
}

// BuyAndHold is long from the first day.
type BuyAndHold struct{}

func (BuyAndHold) Name() string                             { return "buy_hold" }
func (BuyAndHold) Signal([]models.PriceBar) models.Position { return models.Long }

// StrategyFunc adapts a closure to the Strategy interface.
type StrategyFunc struct {
	Label string
	Fn    func(history []models.PriceBar) models.Position
}

func (f StrategyFunc) Name() string { return f.Label }

func (f StrategyFunc) Signal(history []models.PriceBar) models.Position { return f.Fn(history) }

// ByName resolves a strategy identifier from a request.
func ByName(name string, short, long int) (domsvc.Strategy, error) {
	switch name {
	case "sma", "":
		return NewSMACrossover(short, long)
	case "buy_hold":
		return BuyAndHold{}, nil
	default:
		return nil, fmt.Errorf("strategy %q: %w", name, models.ErrInvalidArgument)
	}
}

var (
	_ domsvc.Strategy = SMACrossover{}
	_ domsvc.Strategy = BuyAndHold{}
	_ domsvc.Strategy = StrategyFunc{}
)
