package market

import (
	"errors"
	"sync"
	"time"

	"github.com/betbot/goclob/internal/domain"
	"github.com/betbot/goclob/internal/engine"
	"github.com/betbot/goclob/internal/events"
	"github.com/betbot/goclob/internal/ledger"
	"github.com/betbot/goclob/internal/store"
	"github.com/betbot/goclob/pkg/config"
	"github.com/betbot/goclob/pkg/logger"
	"github.com/betbot/goclob/pkg/orderbook"
)

// Service 把撮合核心托管成一个链下服务。
//
// 调度模型与链上一致：每个操作都是针对单个市场状态的原子串行
// 工作单元。同一市场的操作被 per-market 互斥锁串行化；操作把
// 自己的账本变更记进 Journal、从存储读出记录副本，中途任何错误
// 就逐笔撤销日志并丢弃副本——没有任何部分状态落地，也不会碰到
// 其它市场并发提交的状态。成功路径把所有被触碰的记录在一个
// 存储事务里提交。
type Service struct {
	cfg    config.EngineConfig
	store  *store.Store
	ledger ledger.Ledger
	engine *engine.Engine
	hub    *events.Hub

	// Now 可注入的时间源（测试里换成固定时间）
	Now func() time.Time

	mu    sync.Mutex
	locks map[uint32]*sync.Mutex
}

// NewService 创建市场服务
func NewService(cfg config.EngineConfig, st *store.Store, lg ledger.Ledger, hub *events.Hub) *Service {
	return &Service{
		cfg:    cfg,
		store:  st,
		ledger: lg,
		engine: engine.New(cfg.MaxOrdersPerSide, cfg.DefaultMaxIterations),
		hub:    hub,
		Now:    time.Now,
		locks:  make(map[uint32]*sync.Mutex),
	}
}

// marketLock 返回某市场的互斥锁（惰性创建）
func (s *Service) marketLock(marketID uint32) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[marketID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[marketID] = l
	}
	return l
}

// revert 撤销失败操作已经落账的变更。撤销本身失败说明账本
// 不变量已破，只能记日志暴露出来。
func (s *Service) revert(j *ledger.Journal) {
	if err := j.Revert(); err != nil {
		logger.Errorf("ledger revert failed: %v", err)
	}
}

// loadMarket 读市场记录，不存在时映射成领域错误
func (s *Service) loadMarket(marketID uint32) (*domain.Market, error) {
	m, err := s.store.GetMarket(marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, err
	}
	return m, nil
}

// loadOrCreateStats 读用户统计，首次交互时惰性创建
func (s *Service) loadOrCreateStats(marketID uint32, user string) (*domain.UserStats, error) {
	u, err := s.store.GetStats(marketID, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.NewUserStats(user, marketID), nil
		}
		return nil, err
	}
	return u, nil
}

// InitializeMarket 创建新市场和空订单簿。
// 为两种 outcome token 注册资产并把铸币权授予市场自身；
// collateralAsset 是该市场使用的抵押资产（如 "usdc"）。
func (s *Service) InitializeMarket(marketID uint32, authority, collateralAsset string, settlementDeadline int64, metaDataURL string) (*domain.Market, error) {
	if settlementDeadline <= s.Now().Unix() {
		return nil, domain.ErrInvalidSettlementDeadline
	}
	if collateralAsset == "" {
		return nil, domain.ErrInvalidCollateral
	}
	if len(metaDataURL) > domain.MaxMetaDataURLLen {
		return nil, domain.ErrInvalidMetaDataURL
	}

	lock := s.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.store.GetMarket(marketID); err == nil {
		return nil, domain.ErrMarketAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	m := &domain.Market{
		ID:                 marketID,
		Authority:          authority,
		SettlementDeadline: settlementDeadline,
		CollateralAsset:    collateralAsset,
		CollateralVault:    domain.CollateralVaultID(marketID),
		OutcomeYesAsset:    domain.OutcomeYesAssetID(marketID),
		OutcomeNoAsset:     domain.OutcomeNoAssetID(marketID),
		YesEscrow:          domain.YesEscrowID(marketID),
		NoEscrow:           domain.NoEscrowID(marketID),
		MetaDataURL:        metaDataURL,
	}

	if reg, ok := s.ledger.(interface{ RegisterAsset(asset, authority string) }); ok {
		reg.RegisterAsset(m.OutcomeYesAsset, m.MintAuthority())
		reg.RegisterAsset(m.OutcomeNoAsset, m.MintAuthority())
	}

	if err := s.store.Commit(m, orderbook.New(marketID)); err != nil {
		return nil, err
	}
	logger.Infof("market initialized: id=%d deadline=%d", m.ID, m.SettlementDeadline)
	s.hub.NotifyChanged()
	return m, nil
}

// GetMarket 查询市场记录
func (s *Service) GetMarket(marketID uint32) (*domain.Market, error) {
	return s.loadMarket(marketID)
}

// GetBook 查询订单簿
func (s *Service) GetBook(marketID uint32) (*orderbook.Book, error) {
	b, err := s.store.GetBook(marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, err
	}
	return b, nil
}

// GetStats 查询某用户在某市场的统计记录
func (s *Service) GetStats(marketID uint32, user string) (*domain.UserStats, error) {
	u, err := s.store.GetStats(marketID, user)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.NewUserStats(user, marketID), nil
		}
		return nil, err
	}
	return u, nil
}

// ListMarkets 列出全部市场
func (s *Service) ListMarkets() ([]*domain.Market, error) {
	return s.store.ListMarkets()
}

// Ledger 暴露底层账本（充值、查询余额等核心之外的入口）
func (s *Service) Ledger() ledger.Ledger {
	return s.ledger
}
