package server

import (
	"context"
	"time"

	"github.com/betbot/goclob/internal/events"
	"github.com/betbot/goclob/pkg/logger"
)

// startBackground 启动读模型维护任务：
//   - 把 hub 事件流里的成交落入 sqlite trades 表
//   - hub 变更信号触发时刷新 markets 读模型
func (s *Server) startBackground() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	evs, unsubscribe := s.hub.SubscribeAll()

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-evs:
				if !ok {
					return
				}
				if ev.Kind != events.KindTradeExecuted {
					continue
				}
				dbCtx, dbCancel := context.WithTimeout(ctx, 5*time.Second)
				if err := s.insertTrade(dbCtx, *ev.Trade); err != nil {
					logger.Errorf("persist trade %s: %v", ev.Trade.TradeID, err)
				}
				dbCancel()
			case <-s.hub.Changed.C():
				s.refreshMarkets(ctx)
			}
		}
	}()
}

func (s *Server) refreshMarkets(ctx context.Context) {
	markets, err := s.svc.ListMarkets()
	if err != nil {
		logger.Errorf("refresh markets: %v", err)
		return
	}
	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, m := range markets {
		if err := s.upsertMarketRow(dbCtx, m); err != nil {
			logger.Errorf("refresh market %d: %v", m.ID, err)
		}
	}
}
