package server

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/goclob/internal/events"
)

type TradeRow struct {
	TradeID        string `json:"trade_id"`
	MarketID       uint32 `json:"market_id"`
	TokenType      string `json:"token_type"`
	TakerOrderID   uint64 `json:"taker_order_id"`
	MakerOrderID   uint64 `json:"maker_order_id"`
	Taker          string `json:"taker"`
	Maker          string `json:"maker"`
	TakerSide      string `json:"taker_side"`
	Price          uint64 `json:"price"`
	Quantity       uint64 `json:"quantity"`
	CollateralUsed uint64 `json:"collateral_used"`
	Timestamp      string `json:"ts"`
}

func (s *Server) insertTrade(ctx context.Context, ev events.TradeExecutedEvent) error {
	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO trades (trade_id, market_id, token_type, taker_order_id, maker_order_id, taker, maker, taker_side, price, quantity, collateral_used, ts)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
`, ev.TradeID, ev.MarketID, string(ev.TokenType), ev.TakerOrderID, ev.MakerOrderID,
		ev.Taker, ev.Maker, string(ev.TakerSide), ev.Price, ev.Quantity, ev.CollateralUsed,
		ev.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *Server) listTrades(ctx context.Context, marketID uint32, limit int) ([]TradeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT trade_id, market_id, token_type, taker_order_id, maker_order_id, taker, maker, taker_side, price, quantity, collateral_used, ts
FROM trades WHERE market_id = ? ORDER BY ts DESC LIMIT ?
`, marketID, limit)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	out := make([]TradeRow, 0, limit)
	for rows.Next() {
		var t TradeRow
		if err := rows.Scan(&t.TradeID, &t.MarketID, &t.TokenType, &t.TakerOrderID, &t.MakerOrderID,
			&t.Taker, &t.Maker, &t.TakerSide, &t.Price, &t.Quantity, &t.CollateralUsed, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
