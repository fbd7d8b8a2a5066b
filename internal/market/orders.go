package market

import (
	"errors"

	"github.com/google/uuid"

	"github.com/betbot/goclob/internal/domain"
	"github.com/betbot/goclob/internal/engine"
	"github.com/betbot/goclob/internal/events"
	"github.com/betbot/goclob/internal/ledger"
	"github.com/betbot/goclob/internal/store"
	"github.com/betbot/goclob/pkg/logger"
)

// PlaceOrder 下单并立即撮合，整个调用是一个原子单元。
//
// counterparties 是调用方声明的本次撮合可能触达的对手方列表；撮合
// 命中了未声明（或不存在）的对手方时整个下单失败并回滚，资金托管
// 不会留下任何痕迹。maxIterations 传 0 使用配置的默认值。
func (s *Service) PlaceOrder(
	marketID uint32,
	user string,
	side domain.OrderSide,
	tokenType domain.TokenType,
	quantity, price uint64,
	maxIterations int,
	counterparties []string,
) (*domain.Order, []engine.Fill, error) {
	lock := s.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.loadMarket(marketID)
	if err != nil {
		return nil, nil, err
	}
	book, err := s.store.GetBook(marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, domain.ErrMarketNotFound
		}
		return nil, nil, err
	}

	stats := engine.Stats{}
	own, err := s.loadOrCreateStats(marketID, user)
	if err != nil {
		return nil, nil, err
	}
	stats[user] = own
	for _, cp := range counterparties {
		if cp == user {
			continue
		}
		u, err := s.store.GetStats(marketID, cp)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// 未知对手方不造记录：撮合真碰到它时 fail-closed
				continue
			}
			return nil, nil, err
		}
		stats[cp] = u
	}

	j := ledger.NewJournal(s.ledger)
	now := s.Now()
	order, fills, err := s.engine.PlaceOrder(now, m, book, j, user, side, tokenType, quantity, price, maxIterations, stats)
	if err != nil {
		s.revert(j)
		return nil, nil, err
	}

	touched := make([]*domain.UserStats, 0, len(fills)+1)
	touched = append(touched, own)
	for _, f := range fills {
		if f.Maker != user {
			touched = append(touched, stats[f.Maker])
		}
	}
	if err := s.store.Commit(nil, book, touched...); err != nil {
		s.revert(j)
		return nil, nil, err
	}

	logger.Infof("order placed: market=%d order=%d user=%s %s %s qty=%d price=%d fills=%d",
		marketID, order.ID, user, side, tokenType, quantity, price, len(fills))
	s.hub.PublishTrades(marketID, tradeEvents(marketID, fills))
	// 完全成交的订单没进簿，不发挂单事件
	if order.Remaining() > 0 {
		s.hub.PublishOrderPlaced(marketID, events.OrderPlacedEvent{Order: *order, Timestamp: now})
	}
	s.hub.NotifyChanged()
	return order, fills, nil
}

// CancelOrder 取消订单并退还未成交部分的托管资金
func (s *Service) CancelOrder(marketID uint32, user string, orderID uint64) (*domain.Order, uint64, error) {
	lock := s.marketLock(marketID)
	lock.Lock()
	defer lock.Unlock()

	m, err := s.loadMarket(marketID)
	if err != nil {
		return nil, 0, err
	}
	book, err := s.store.GetBook(marketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, domain.ErrMarketNotFound
		}
		return nil, 0, err
	}
	own, err := s.loadOrCreateStats(marketID, user)
	if err != nil {
		return nil, 0, err
	}
	stats := engine.Stats{user: own}

	j := ledger.NewJournal(s.ledger)
	order, refunded, err := s.engine.CancelOrder(m, book, j, user, orderID, stats)
	if err != nil {
		s.revert(j)
		return nil, 0, err
	}
	if err := s.store.Commit(nil, book, own); err != nil {
		s.revert(j)
		return nil, 0, err
	}

	logger.Infof("order canceled: market=%d order=%d user=%s refunded=%d", marketID, orderID, user, refunded)
	s.hub.PublishOrderCanceled(marketID, events.OrderCanceledEvent{
		Order:          *order,
		RefundedAmount: refunded,
		Timestamp:      s.Now(),
	})
	s.hub.NotifyChanged()
	return order, refunded, nil
}

func tradeEvents(marketID uint32, fills []engine.Fill) []events.TradeExecutedEvent {
	out := make([]events.TradeExecutedEvent, 0, len(fills))
	for _, f := range fills {
		out = append(out, events.TradeExecutedEvent{
			TradeID:        uuid.NewString(),
			MarketID:       marketID,
			TokenType:      f.TokenType,
			TakerOrderID:   f.TakerOrderID,
			MakerOrderID:   f.MakerOrderID,
			Taker:          f.Taker,
			Maker:          f.Maker,
			TakerSide:      f.TakerSide,
			Price:          f.Price,
			Quantity:       f.Quantity,
			CollateralUsed: f.CollateralUsed,
			Timestamp:      f.Timestamp,
		})
	}
	return out
}
