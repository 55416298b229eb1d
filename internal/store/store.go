// Package store persists the closed-trade ledger. The ledger is append-only
// and keyed by exchange order id, so replaying the same closure is a no-op.
// Aggregate statistics are always derived from the rows, never stored.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS closed_trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id TEXT NOT NULL UNIQUE,
    symbol TEXT NOT NULL,
    direction TEXT NOT NULL,
    pnl REAL NOT NULL,
    closed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_closed_trades_symbol ON closed_trades(symbol);
CREATE INDEX IF NOT EXISTS idx_closed_trades_closed_at ON closed_trades(closed_at);
`

// ClosedTrade is one immutable ledger entry.
type ClosedTrade struct {
	OrderID   string    `json:"order_id"`
	Symbol    string    `json:"symbol"`
	Direction string    `json:"direction"`
	PnL       float64   `json:"pnl"`
	ClosedAt  time.Time `json:"closed_at"`
}

// Stats are derived aggregates over the ledger.
type Stats struct {
	TotalPnL    float64 `json:"total_pnl"`
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"` // percent
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the ledger database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("store: database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers a single writer.
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts a closed trade. Returns false when a trade with the same
// order id was already recorded.
func (s *Store) Append(ctx context.Context, t ClosedTrade) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO closed_trades (order_id, symbol, direction, pnl, closed_at)
		VALUES (?, ?, ?, ?, ?)`,
		t.OrderID, t.Symbol, t.Direction, t.PnL, t.ClosedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("store: append trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns trades newest first, up to limit (0 means all).
func (s *Store) List(ctx context.Context, limit int) ([]ClosedTrade, error) {
	q := `SELECT order_id, symbol, direction, pnl, closed_at FROM closed_trades ORDER BY closed_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list trades: %w", err)
	}
	defer rows.Close()

	var out []ClosedTrade
	for rows.Next() {
		var t ClosedTrade
		var closedAt int64
		if err := rows.Scan(&t.OrderID, &t.Symbol, &t.Direction, &t.PnL, &closedAt); err != nil {
			return nil, err
		}
		t.ClosedAt = time.UnixMilli(closedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

// Stats derives aggregate performance from the ledger.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(pnl), 0),
		       COUNT(*),
		       COALESCE(SUM(CASE WHEN pnl > 0 THEN 1 ELSE 0 END), 0)
		FROM closed_trades`)

	var st Stats
	if err := row.Scan(&st.TotalPnL, &st.TotalTrades, &st.Wins); err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	st.Losses = st.TotalTrades - st.Wins
	if st.TotalTrades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.TotalTrades) * 100
	}
	return st, nil
}
