package events

import (
	"sync"

	"github.com/betbot/goclob/pkg/sigchan"
)

// Hub 进程内事件分发。
//
// 成交、挂单、撤单、结算事件推给每个市场的订阅者（websocket 流），
// 同时用 sigchan 通知后台任务“有市场状态变了”，由它去刷新 sqlite
// 读模型。推送是非阻塞的：慢订阅者丢事件，不拖住撮合路径。
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint32]map[int]chan Event
	allSubs map[int]chan Event
	next    int

	// Changed 任一市场状态变更后触发
	Changed *sigchan.Chan
}

// NewHub 创建事件分发器
func NewHub() *Hub {
	return &Hub{
		subs:    make(map[uint32]map[int]chan Event),
		allSubs: make(map[int]chan Event),
		Changed: sigchan.New(1),
	}
}

// Subscribe 订阅某市场的事件流，返回接收 channel 和退订函数
func (h *Hub) Subscribe(marketID uint32) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Event, 64)
	if h.subs[marketID] == nil {
		h.subs[marketID] = make(map[int]chan Event)
	}
	h.subs[marketID][id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if m := h.subs[marketID]; m != nil {
			if c, ok := m[id]; ok {
				delete(m, id)
				close(c)
			}
		}
	}
	return ch, cancel
}

// SubscribeAll 订阅全部市场的事件流（成交落库等后台任务用），
// 缓冲比单市场订阅更深
func (h *Hub) SubscribeAll() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Event, 1024)
	h.allSubs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.allSubs[id]; ok {
			delete(h.allSubs, id)
			close(c)
		}
	}
	return ch, cancel
}

// publish 把一批事件非阻塞推给市场订阅者和全量订阅者，再触发变更信号
func (h *Hub) publish(marketID uint32, evs []Event) {
	if len(evs) == 0 {
		return
	}
	h.mu.RLock()
	for _, ev := range evs {
		for _, ch := range h.subs[marketID] {
			select {
			case ch <- ev:
			default:
				// 订阅者跟不上就丢弃
			}
		}
		for _, ch := range h.allSubs {
			select {
			case ch <- ev:
			default:
			}
		}
	}
	h.mu.RUnlock()
	h.Changed.Emit()
}

// PublishTrades 推送一批成交
func (h *Hub) PublishTrades(marketID uint32, trades []TradeExecutedEvent) {
	evs := make([]Event, 0, len(trades))
	for i := range trades {
		evs = append(evs, Event{Kind: KindTradeExecuted, MarketID: marketID, Trade: &trades[i]})
	}
	h.publish(marketID, evs)
}

// PublishOrderPlaced 推送挂单事件
func (h *Hub) PublishOrderPlaced(marketID uint32, ev OrderPlacedEvent) {
	h.publish(marketID, []Event{{Kind: KindOrderPlaced, MarketID: marketID, Order: &ev}})
}

// PublishOrderCanceled 推送撤单事件
func (h *Hub) PublishOrderCanceled(marketID uint32, ev OrderCanceledEvent) {
	h.publish(marketID, []Event{{Kind: KindOrderCanceled, MarketID: marketID, Cancel: &ev}})
}

// PublishMarketSettled 推送结算事件
func (h *Hub) PublishMarketSettled(ev MarketSettledEvent) {
	h.publish(ev.MarketID, []Event{{Kind: KindMarketSettled, MarketID: ev.MarketID, Settled: &ev}})
}

// NotifyChanged 仅触发变更信号（split/merge 等没有事件负载的操作用）
func (h *Hub) NotifyChanged() {
	h.Changed.Emit()
}
