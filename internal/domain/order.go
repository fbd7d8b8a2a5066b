package domain

// OrderSide 订单方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// IsValid 检查订单方向取值
func (s OrderSide) IsValid() bool {
	return s == OrderSideBuy || s == OrderSideSell
}

// Opposite 返回对手方向
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// TokenType outcome token 类型
type TokenType string

const (
	TokenTypeYes TokenType = "yes"
	TokenTypeNo  TokenType = "no"
)

// IsValid 检查 token 类型取值
func (t TokenType) IsValid() bool {
	return t == TokenTypeYes || t == TokenTypeNo
}

// Order 订单：下单后除 FilledQuantity 外全部不可变。
//
// Price 是整数限价（每单位 outcome token 折多少最小抵押单位），
// Quantity/FilledQuantity 同样是最小单位整数。
type Order struct {
	ID             uint64    `json:"id"`              // 订单 ID（每市场单调递增，由订单簿分配）
	MarketID       uint32    `json:"market_id"`       // 所属市场
	User           string    `json:"user"`            // 下单人身份
	Side           OrderSide `json:"side"`            // 买/卖
	TokenType      TokenType `json:"token_type"`      // YES/NO
	Price          uint64    `json:"price"`           // 限价（抵押单位/枚）
	Quantity       uint64    `json:"quantity"`        // 原始数量
	FilledQuantity uint64    `json:"filled_quantity"` // 已成交数量，恒有 FilledQuantity <= Quantity
	Timestamp      int64     `json:"timestamp"`       // 下单时间（Unix 秒）
}

// Remaining 返回未成交数量
func (o *Order) Remaining() uint64 {
	if o.FilledQuantity >= o.Quantity {
		return 0
	}
	return o.Quantity - o.FilledQuantity
}

// IsFilled 检查订单是否已完全成交。
// 完全成交的订单必须从订单簿中移除。
func (o *Order) IsFilled() bool {
	return o.FilledQuantity == o.Quantity
}

// Crosses 检查本订单（作为 incoming）是否与一个 resting 订单的价格交叉：
// 买单交叉当 incoming.Price >= resting.Price，卖单交叉当 incoming.Price <= resting.Price。
func (o *Order) Crosses(resting *Order) bool {
	if o.Side == OrderSideBuy {
		return o.Price >= resting.Price
	}
	return o.Price <= resting.Price
}
