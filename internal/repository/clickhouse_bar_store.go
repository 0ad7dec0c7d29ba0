package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/prateek8731/Market-Monitor/internal/domain/models"
	domrepo "github.com/prateek8731/Market-Monitor/internal/domain/repository"
	pkgch "github.com/prateek8731/Market-Monitor/pkg/clickhouse"
	applogger "github.com/prateek8731/Market-Monitor/pkg/logger"
)

const (
	defaultBarTable = "daily_bars"
	barChunkSize    = 2000
)

// CHBarStore implements BarStore backed by ClickHouse. Rows are deduplicated
// per (ticker, date) by ReplacingMergeTree, so re-storing a window is safe.
type CHBarStore struct {
	db     *sql.DB
	table  string
	source string
	l      *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, l *applogger.Logger) *CHBarStore {
	return newCHBarStore(ch.DB(), ch.Table(defaultBarTable), l)
}

func newCHBarStore(db *sql.DB, table string, l *applogger.Logger) *CHBarStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHBarStore{db: db, table: table, source: "provider", l: l}
}

// BarSchema is the DDL applied by Init.
func BarSchema(table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			ticker      LowCardinality(String),
			date        Date,
			open        Float64,
			high        Float64,
			low         Float64,
			close       Float64,
			volume      Int64,
			source      LowCardinality(String),
			inserted_at DateTime DEFAULT now()
		) ENGINE = ReplacingMergeTree(inserted_at)
		ORDER BY (ticker, date)`, table),
	}
}

func (s *CHBarStore) Init(ctx context.Context) error {
	for _, stmt := range BarSchema(s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init bar schema: %w", err)
		}
	}
	return nil
}

func (s *CHBarStore) StoreBars(ctx context.Context, ticker string, bars []models.PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	start := time.Now()
	for from := 0; from < len(bars); from += barChunkSize {
		to := from + barChunkSize
		if to > len(bars) {
			to = len(bars)
		}
		q, args := buildBarInsert(s.table, ticker, s.source, bars[from:to])
		if len(args) == 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse store_bars error",
				applogger.String("table", s.table),
				applogger.Ticker(ticker),
				applogger.Error(err),
			)
			return fmt.Errorf("store bars: %w", err)
		}
	}
	s.l.Debug("clickhouse store_bars",
		applogger.Ticker(ticker),
		applogger.Int("rows", len(bars)),
		applogger.Duration("took", time.Since(start)),
	)
	return nil
}

// buildBarInsert renders one multi-row VALUES insert; bars with a zero date are skipped.
func buildBarInsert(table, ticker, source string, bars []models.PriceBar) (string, []interface{}) {
	values := make([]string, 0, len(bars))
	args := make([]interface{}, 0, len(bars)*8)
	for _, b := range bars {
		if b.Date.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, ticker, b.Date.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume, source)
	}
	q := fmt.Sprintf("INSERT INTO %s (ticker, date, open, high, low, close, volume, source) VALUES %s",
		table, strings.Join(values, ","))
	return q, args
}

func (s *CHBarStore) GetBars(ctx context.Context, ticker string, from, to time.Time) ([]models.PriceBar, error) {
	q := fmt.Sprintf(`
		SELECT date, open, high, low, close, volume
		FROM %s FINAL
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, ticker, from.UTC(), to.UTC())
	if err != nil {
		s.l.Error("clickhouse get_bars query error",
			applogger.String("table", s.table),
			applogger.Ticker(ticker),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out := make([]models.PriceBar, 0, 256)
	for rows.Next() {
		var b models.PriceBar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		b.Date = b.Date.UTC()
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *CHBarStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *CHBarStore) Close() error { return nil }

var _ domrepo.BarStore = (*CHBarStore)(nil)
