package market

import (
	"github.com/betbot/goclob/internal/domain"
	"github.com/betbot/goclob/internal/ledger"
	"github.com/betbot/goclob/pkg/logger"
	"github.com/betbot/goclob/pkg/marketmath"
)

// Split 锁定 amount 抵押，给调用方各铸 amount 枚 YES/NO token。
// 1 抵押单位 ≡ 1 YES + 1 NO，这是两种 outcome token 经济背书的来源，
// 与订单簿无关。
func (s *Service) Split(marketID uint32, user string, amount uint64) error {
	lock := s.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.loadMarket(marketID)
	if err != nil {
		return err
	}
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	if err := m.EnsureOpen(s.Now().Unix()); err != nil {
		return err
	}
	bal, err := s.ledger.BalanceOf(user, m.CollateralAsset)
	if err != nil {
		return err
	}
	if bal < amount {
		return domain.ErrNotEnoughBalance
	}

	j := ledger.NewJournal(s.ledger)
	if err := s.splitApply(j, m, user, amount); err != nil {
		s.revert(j)
		return err
	}

	stats, err := s.loadOrCreateStats(marketID, user)
	if err != nil {
		s.revert(j)
		return err
	}
	if err := s.store.Commit(m, nil, stats); err != nil {
		s.revert(j)
		return err
	}
	logger.Infof("split: market=%d user=%s amount=%d locked=%d", marketID, user, amount, m.TotalCollateralLocked)
	s.hub.NotifyChanged()
	return nil
}

func (s *Service) splitApply(lg ledger.Ledger, m *domain.Market, user string, amount uint64) error {
	if err := lg.Transfer(user, m.CollateralVault, m.CollateralAsset, amount); err != nil {
		return err
	}
	if err := lg.Mint(m.MintAuthority(), m.OutcomeYesAsset, user, amount); err != nil {
		return err
	}
	if err := lg.Mint(m.MintAuthority(), m.OutcomeNoAsset, user, amount); err != nil {
		return err
	}
	var err error
	m.TotalCollateralLocked, err = marketmath.Add(m.TotalCollateralLocked, amount)
	return err
}

// Merge 按 min(YES 余额, NO 余额) 成对销毁 token，释放等量抵押。
// 返回实际合并的数量。
func (s *Service) Merge(marketID uint32, user string) (uint64, error) {
	lock := s.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.loadMarket(marketID)
	if err != nil {
		return 0, err
	}
	if err := m.EnsureOpen(s.Now().Unix()); err != nil {
		return 0, err
	}

	balYes, err := s.ledger.BalanceOf(user, m.OutcomeYesAsset)
	if err != nil {
		return 0, err
	}
	balNo, err := s.ledger.BalanceOf(user, m.OutcomeNoAsset)
	if err != nil {
		return 0, err
	}
	amount := marketmath.Min(balYes, balNo)
	if amount == 0 {
		return 0, domain.ErrInvalidAmount
	}

	j := ledger.NewJournal(s.ledger)
	if err := s.mergeApply(j, m, user, amount); err != nil {
		s.revert(j)
		return 0, err
	}
	if err := s.store.Commit(m, nil); err != nil {
		s.revert(j)
		return 0, err
	}
	logger.Infof("merge: market=%d user=%s amount=%d locked=%d", marketID, user, amount, m.TotalCollateralLocked)
	s.hub.NotifyChanged()
	return amount, nil
}

func (s *Service) mergeApply(lg ledger.Ledger, m *domain.Market, user string, amount uint64) error {
	if err := lg.Burn(m.OutcomeYesAsset, user, amount); err != nil {
		return err
	}
	if err := lg.Burn(m.OutcomeNoAsset, user, amount); err != nil {
		return err
	}
	if err := lg.Transfer(m.CollateralVault, user, m.CollateralAsset, amount); err != nil {
		return err
	}
	// 下溢说明记账出了 bug，必须让整个调用失败
	var err error
	m.TotalCollateralLocked, err = marketmath.Sub(m.TotalCollateralLocked, amount)
	return err
}
