package market

import (
	"github.com/betbot/goclob/internal/domain"
	"github.com/betbot/goclob/internal/events"
	"github.com/betbot/goclob/internal/ledger"
	"github.com/betbot/goclob/pkg/logger"
	"github.com/betbot/goclob/pkg/marketmath"
)

// SetWinningOutcome 一次性结算状态迁移：{未结算} → {已结算(outcome)}。
//
// 结算同时永久撤销市场对两种 outcome token 的铸币权（单向能力
// 降级），此后 split 不可能再发生。winning_outcome 设置后不可变。
func (s *Service) SetWinningOutcome(marketID uint32, caller string, outcome domain.WinningOutcome) error {
	lock := s.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.loadMarket(marketID)
	if err != nil {
		return err
	}
	if !outcome.IsValid() {
		return domain.ErrInvalidWinningOutcome
	}
	if caller != m.Authority {
		return domain.ErrNotMarketAuthority
	}
	if m.IsSettled {
		return domain.ErrMarketAlreadySettled
	}
	if s.cfg.SettleBeforeDeadline && s.Now().Unix() >= m.SettlementDeadline {
		return domain.ErrMarketExpired
	}

	j := ledger.NewJournal(s.ledger)
	if err := j.RevokeMintAuthority(m.MintAuthority(), m.OutcomeYesAsset); err != nil {
		s.revert(j)
		return err
	}
	if err := j.RevokeMintAuthority(m.MintAuthority(), m.OutcomeNoAsset); err != nil {
		s.revert(j)
		return err
	}

	m.IsSettled = true
	m.WinningOutcome = outcome
	if err := s.store.Commit(m, nil); err != nil {
		s.revert(j)
		return err
	}
	logger.Infof("market settled: id=%d outcome=%s", marketID, outcome)
	s.hub.PublishMarketSettled(events.MarketSettledEvent{
		MarketID:  marketID,
		Outcome:   outcome,
		Timestamp: s.Now(),
	})
	s.hub.NotifyChanged()
	return nil
}

// Claim 结算后兑付：销毁调用方持有的全部获胜 token，按 1:1 付出
// 抵押。失败一侧的 token 留在原地，一文不值。返回兑付数量。
func (s *Service) Claim(marketID uint32, user string) (uint64, error) {
	lock := s.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.loadMarket(marketID)
	if err != nil {
		return 0, err
	}
	if !m.IsSettled {
		return 0, domain.ErrMarketNotSettled
	}
	winnerAsset, err := m.WinnerAsset()
	if err != nil {
		return 0, err
	}

	amount, err := s.ledger.BalanceOf(user, winnerAsset)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, nil
	}

	j := ledger.NewJournal(s.ledger)
	if err := s.claimApply(j, m, user, winnerAsset, amount); err != nil {
		s.revert(j)
		return 0, err
	}
	if err := s.store.Commit(m, nil); err != nil {
		s.revert(j)
		return 0, err
	}
	logger.Infof("claim: market=%d user=%s amount=%d locked=%d", marketID, user, amount, m.TotalCollateralLocked)
	s.hub.NotifyChanged()
	return amount, nil
}

func (s *Service) claimApply(lg ledger.Ledger, m *domain.Market, user, winnerAsset string, amount uint64) error {
	if err := lg.Burn(winnerAsset, user, amount); err != nil {
		return err
	}
	if err := lg.Transfer(m.CollateralVault, user, m.CollateralAsset, amount); err != nil {
		return err
	}
	var err error
	m.TotalCollateralLocked, err = marketmath.Sub(m.TotalCollateralLocked, amount)
	return err
}
