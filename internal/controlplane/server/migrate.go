package server

import (
	"context"
	"fmt"
	"time"
)

func (s *Server) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS markets (
  id INTEGER PRIMARY KEY,
  authority TEXT NOT NULL,
  collateral_asset TEXT NOT NULL,
  settlement_deadline INTEGER NOT NULL,
  is_settled INTEGER NOT NULL DEFAULT 0,
  winning_outcome TEXT NOT NULL DEFAULT '',
  total_collateral_locked INTEGER NOT NULL DEFAULT 0,
  metadata_url TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS trades (
  trade_id TEXT PRIMARY KEY,
  market_id INTEGER NOT NULL,
  token_type TEXT NOT NULL,
  taker_order_id INTEGER NOT NULL,
  maker_order_id INTEGER NOT NULL,
  taker TEXT NOT NULL,
  maker TEXT NOT NULL,
  taker_side TEXT NOT NULL,
  price INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  collateral_used INTEGER NOT NULL,
  ts TEXT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_market_ts ON trades(market_id, ts DESC);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
