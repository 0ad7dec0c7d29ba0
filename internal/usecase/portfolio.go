package usecase

import (
	"context"
	"fmt"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
	xutil "github.com/prateek8731/Market-Monitor/pkg/util"
)

type PortfolioSnapshot struct {
	Balance   float64          `json:"balance"`
	Positions []models.Holding `json:"positions"`
}

// PortfolioUseCase fronts the paper-trading ledger and prices market orders from live quotes.
type PortfolioUseCase struct {
	store domrepo.PortfolioStore
	src   domrepo.MarketDataSource
	l     *applogger.Logger
}

func NewPortfolioUseCase(store domrepo.PortfolioStore, src domrepo.MarketDataSource, l *applogger.Logger) *PortfolioUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	return &PortfolioUseCase{store: store, src: src, l: l}
}

func (uc *PortfolioUseCase) Snapshot(ctx context.Context) (PortfolioSnapshot, error) {
	bal, err := uc.store.GetBalance(ctx)
	if err != nil {
		return PortfolioSnapshot{}, err
	}
	pos, err := uc.store.ListPositions(ctx)
	if err != nil {
		return PortfolioSnapshot{}, err
	}
	return PortfolioSnapshot{Balance: bal, Positions: pos}, nil
}

func (uc *PortfolioUseCase) Trades(ctx context.Context, limit int) ([]models.Trade, error) {
	return uc.store.ListTrades(ctx, limit)
}

// PlaceMarketOrder fills qty at the current quote. A missing or non-positive price is DataUnavailable.
func (uc *PortfolioUseCase) PlaceMarketOrder(ctx context.Context, symbol string, side models.Side, qty float64) (models.Trade, error) {
	symbol = xutil.NormalizeTicker(symbol)
	q, err := uc.src.GetQuote(ctx, symbol)
	if err != nil {
		return models.Trade{}, fmt.Errorf("price %s: %w", symbol, err)
	}
	if q.Price <= 0 {
		return models.Trade{}, fmt.Errorf("price %s: no live price: %w", symbol, models.ErrDataUnavailable)
	}
	t, err := uc.store.PlaceOrder(ctx, symbol, side, qty, q.Price)
	if err != nil {
		uc.l.Warn("paper order rejected",
			applogger.Ticker(symbol),
			applogger.String("side", string(side)),
			applogger.Float64("qty", qty),
			applogger.Error(err),
		)
		return models.Trade{}, err
	}
	return t, nil
}
