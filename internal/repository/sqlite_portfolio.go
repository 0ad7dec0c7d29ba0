package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
)

// qtyEpsilon absorbs float drift when a position is sold down to zero.
const qtyEpsilon = 1e-9

// SQLitePortfolioStore keeps the paper-trading ledger in a local SQLite file.
type SQLitePortfolioStore struct {
	db             *sql.DB
	initialBalance float64
	now            func() time.Time
	l              *applogger.Logger
}

// NewSQLitePortfolioStore opens (or creates) the database at path. Use
// ":memory:" for an ephemeral ledger.
func NewSQLitePortfolioStore(path string, initialBalance float64, l *applogger.Logger) (*SQLitePortfolioStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer; also keeps a :memory: database shared across calls
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &SQLitePortfolioStore{db: db, initialBalance: initialBalance, now: time.Now, l: l}, nil
}

func (s *SQLitePortfolioStore) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS account (
			id      INTEGER PRIMARY KEY CHECK (id = 1),
			balance REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			symbol    TEXT PRIMARY KEY,
			qty       REAL NOT NULL,
			avg_price REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id        TEXT PRIMARY KEY,
			ts        INTEGER NOT NULL,
			symbol    TEXT NOT NULL,
			side      TEXT NOT NULL,
			qty       REAL NOT NULL,
			price     REAL NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	// opening balance is written once; later Inits keep the existing ledger
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO account (id, balance) VALUES (1, ?)`, s.initialBalance); err != nil {
		return fmt.Errorf("seed balance: %w", err)
	}
	return nil
}

func (s *SQLitePortfolioStore) GetBalance(ctx context.Context) (float64, error) {
	var bal float64
	if err := s.db.QueryRowContext(ctx, `SELECT balance FROM account WHERE id = 1`).Scan(&bal); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

// PlaceOrder records a fill at price. BUY needs cash; SELL needs an open position.
func (s *SQLitePortfolioStore) PlaceOrder(ctx context.Context, symbol string, side models.Side, qty, price float64) (models.Trade, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" || qty <= 0 || price <= 0 || math.IsNaN(qty) || math.IsNaN(price) {
		return models.Trade{}, fmt.Errorf("place order: %w", models.ErrInvalidArgument)
	}
	if side != models.SideBuy && side != models.SideSell {
		return models.Trade{}, fmt.Errorf("place order: %w: side %q", models.ErrInvalidArgument, side)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Trade{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var balance float64
	if err := tx.QueryRowContext(ctx, `SELECT balance FROM account WHERE id = 1`).Scan(&balance); err != nil {
		return models.Trade{}, fmt.Errorf("read balance: %w", err)
	}

	var held, avg float64
	err = tx.QueryRowContext(ctx, `SELECT qty, avg_price FROM positions WHERE symbol = ?`, symbol).Scan(&held, &avg)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return models.Trade{}, fmt.Errorf("read position: %w", err)
	}

	notional := qty * price
	switch side {
	case models.SideBuy:
		if notional > balance+qtyEpsilon {
			return models.Trade{}, fmt.Errorf("buy %s: %w: need %.2f, have %.2f", symbol, models.ErrInsufficientFunds, notional, balance)
		}
		newQty := held + qty
		newAvg := (held*avg + notional) / newQty
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO positions (symbol, qty, avg_price) VALUES (?, ?, ?)
			 ON CONFLICT(symbol) DO UPDATE SET qty = excluded.qty, avg_price = excluded.avg_price`,
			symbol, newQty, newAvg); err != nil {
			return models.Trade{}, fmt.Errorf("upsert position: %w", err)
		}
		balance -= notional
	case models.SideSell:
		if qty > held+qtyEpsilon {
			return models.Trade{}, fmt.Errorf("sell %s: %w: hold %.4f", symbol, models.ErrInsufficientPosition, held)
		}
		if remaining := held - qty; remaining <= qtyEpsilon {
			_, err = tx.ExecContext(ctx, `DELETE FROM positions WHERE symbol = ?`, symbol)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE positions SET qty = ? WHERE symbol = ?`, remaining, symbol)
		}
		if err != nil {
			return models.Trade{}, fmt.Errorf("update position: %w", err)
		}
		balance += notional
	}

	if _, err := tx.ExecContext(ctx, `UPDATE account SET balance = ? WHERE id = 1`, balance); err != nil {
		return models.Trade{}, fmt.Errorf("update balance: %w", err)
	}

	trade := models.Trade{
		ID:        uuid.NewString(),
		Timestamp: s.now().UTC(),
		Symbol:    symbol,
		Side:      side,
		Qty:       qty,
		Price:     price,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO trades (id, ts, symbol, side, qty, price) VALUES (?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.Timestamp.UnixNano(), trade.Symbol, string(trade.Side), trade.Qty, trade.Price); err != nil {
		return models.Trade{}, fmt.Errorf("insert trade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Trade{}, fmt.Errorf("commit: %w", err)
	}
	s.l.Info("paper order filled",
		applogger.String("id", trade.ID),
		applogger.Ticker(symbol),
		applogger.String("side", string(side)),
		applogger.Float64("qty", qty),
		applogger.Float64("price", price),
	)
	return trade, nil
}

func (s *SQLitePortfolioStore) ListPositions(ctx context.Context) ([]models.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, qty, avg_price FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Holding, 0)
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Symbol, &h.Qty, &h.AvgPrice); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ListTrades returns fills oldest first; limit <= 0 returns all of them,
// otherwise the most recent limit fills.
func (s *SQLitePortfolioStore) ListTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	q := `SELECT id, ts, symbol, side, qty, price FROM trades ORDER BY ts ASC, rowid ASC`
	args := []interface{}{}
	if limit > 0 {
		q = `SELECT id, ts, symbol, side, qty, price FROM (
				SELECT rowid AS rid, * FROM trades ORDER BY ts DESC, rowid DESC LIMIT ?
			) ORDER BY ts ASC, rid ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	out := make([]models.Trade, 0)
	for rows.Next() {
		var (
			t    models.Trade
			ts   int64
			side string
		)
		if err := rows.Scan(&t.ID, &ts, &t.Symbol, &side, &t.Qty, &t.Price); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Timestamp = time.Unix(0, ts).UTC()
		t.Side = models.Side(side)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLitePortfolioStore) Close() error {
	return s.db.Close()
}

var _ domrepo.PortfolioStore = (*SQLitePortfolioStore)(nil)
