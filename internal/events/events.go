package events

import (
	"time"

	"github.com/betbot/goclob/internal/domain"
)

// TradeExecutedEvent 撮合成交事件。
// 每笔成交以 resting 订单的价格执行（价格-时间优先，先到的一方定价）。
type TradeExecutedEvent struct {
	TradeID        string           `json:"trade_id"`        // 成交 ID
	MarketID       uint32           `json:"market_id"`       // 市场编号
	TokenType      domain.TokenType `json:"token_type"`      // 成交的 outcome token
	TakerOrderID   uint64           `json:"taker_order_id"`  // incoming 订单 ID
	MakerOrderID   uint64           `json:"maker_order_id"`  // resting 订单 ID
	Taker          string           `json:"taker"`           // incoming 一方
	Maker          string           `json:"maker"`           // resting 一方
	TakerSide      domain.OrderSide `json:"taker_side"`      // incoming 的方向
	Price          uint64           `json:"price"`           // 成交价（= resting 订单限价）
	Quantity       uint64           `json:"quantity"`        // 成交数量
	CollateralUsed uint64           `json:"collateral_used"` // Quantity * Price
	Timestamp      time.Time        `json:"timestamp"`       // 成交时间
}

// OrderPlacedEvent 订单进入订单簿事件（完全成交的订单不会进簿，也不会发这个事件）
type OrderPlacedEvent struct {
	Order     domain.Order `json:"order"`
	Timestamp time.Time    `json:"timestamp"`
}

// OrderCanceledEvent 订单取消事件
type OrderCanceledEvent struct {
	Order          domain.Order `json:"order"`
	RefundedAmount uint64       `json:"refunded_amount"` // 退还的未成交部分（token 或抵押）
	Timestamp      time.Time    `json:"timestamp"`
}

// MarketSettledEvent 市场结算事件
type MarketSettledEvent struct {
	MarketID  uint32                `json:"market_id"`
	Outcome   domain.WinningOutcome `json:"outcome"`
	Timestamp time.Time             `json:"timestamp"`
}

// Kind 事件类型标签
type Kind string

const (
	KindTradeExecuted Kind = "trade_executed"
	KindOrderPlaced   Kind = "order_placed"
	KindOrderCanceled Kind = "order_canceled"
	KindMarketSettled Kind = "market_settled"
)

// Event 推给订阅者的统一信封：Kind 决定哪个负载字段非空。
// websocket 流和成交落库后台消费的都是这个类型。
type Event struct {
	Kind     Kind                `json:"kind"`
	MarketID uint32              `json:"market_id"`
	Trade    *TradeExecutedEvent `json:"trade,omitempty"`
	Order    *OrderPlacedEvent   `json:"order_placed,omitempty"`
	Cancel   *OrderCanceledEvent `json:"order_canceled,omitempty"`
	Settled  *MarketSettledEvent `json:"market_settled,omitempty"`
}
