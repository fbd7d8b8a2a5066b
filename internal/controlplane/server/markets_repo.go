package server

import (
	"context"
	"fmt"
	"time"

	"github.com/betbot/goclob/internal/domain"
)

func (s *Server) upsertMarketRow(ctx context.Context, m *domain.Market) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO markets (id, authority, collateral_asset, settlement_deadline, is_settled, winning_outcome, total_collateral_locked, metadata_url, updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
  is_settled=excluded.is_settled,
  winning_outcome=excluded.winning_outcome,
  total_collateral_locked=excluded.total_collateral_locked,
  updated_at=excluded.updated_at
`, m.ID, m.Authority, m.CollateralAsset, m.SettlementDeadline,
		boolToInt(m.IsSettled), m.WinningOutcome.String(), m.TotalCollateralLocked,
		m.MetaDataURL, time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert market: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
