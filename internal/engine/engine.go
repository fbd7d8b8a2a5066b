package engine

import (
	"time"

	"github.com/betbot/goclob/internal/domain"
	"github.com/betbot/goclob/internal/ledger"
	"github.com/betbot/goclob/pkg/marketmath"
	"github.com/betbot/goclob/pkg/orderbook"
)

// Engine 订单簿撮合核心。
//
// Engine 自己不做原子性：它在传入的 market/book/stats 上就地改，
// 并通过账本接口转移托管资金。宿主必须把一次调用当作一个事务
// ——任何一步返回错误时整体回滚（链上由交易提交保证，链下由
// market.Service 的快照+丢弃实现）。
type Engine struct {
	// MaxOrdersPerSide 每条序列的订单数上限
	MaxOrdersPerSide int
	// DefaultMaxIterations maxIterations 传 0 时使用的默认撮合次数上限
	DefaultMaxIterations int
}

// New 创建撮合引擎
func New(maxOrdersPerSide, defaultMaxIterations int) *Engine {
	return &Engine{
		MaxOrdersPerSide:     maxOrdersPerSide,
		DefaultMaxIterations: defaultMaxIterations,
	}
}

// Stats 本次调用可触达的 UserStats 记录，按用户身份索引。
//
// 撮合需要写它并不直接持有引用的对手方记录：对手方记录必须由
// 调用方显式提供，查不到就让整个下单失败（fail-closed），而不是
// 悄悄跳过记账。
type Stats map[string]*domain.UserStats

// Fill 一笔撮合成交
type Fill struct {
	TakerOrderID   uint64           `json:"taker_order_id"`  // incoming 订单
	MakerOrderID   uint64           `json:"maker_order_id"`  // resting 订单
	Taker          string           `json:"taker"`           // incoming 一方
	Maker          string           `json:"maker"`           // resting 一方
	TakerSide      domain.OrderSide `json:"taker_side"`      // incoming 的方向
	TokenType      domain.TokenType `json:"token_type"`      // 成交的 token
	Price          uint64           `json:"price"`           // 成交价 = resting 订单限价
	Quantity       uint64           `json:"quantity"`        // 成交数量
	CollateralUsed uint64           `json:"collateral_used"` // Quantity * Price
	Timestamp      time.Time        `json:"timestamp"`       // 成交时间
}

// PlaceOrder 下单并立即撮合。
//
// 流程：
//  1. 资金托管：卖单立刻把 quantity 枚 token 转进托管，买单立刻把
//     quantity*price 抵押转进金库。托管完成后订单不可能再因资金
//     不足失败。
//  2. 分配订单 ID（每市场单调递增）。
//  3. 对着同 token 对侧序列从最优价开始撮合，直到价格不再交叉、
//     自身成交完或达到 maxIterations。成交价永远是 resting 订单
//     的限价；买方记 claimable token，卖方记 claimable 抵押。
//  4. 有剩余则按规范顺序进簿；完全成交的订单绝不进簿。
func (e *Engine) PlaceOrder(
	now time.Time,
	market *domain.Market,
	book *orderbook.Book,
	lg ledger.Ledger,
	user string,
	side domain.OrderSide,
	tokenType domain.TokenType,
	quantity, price uint64,
	maxIterations int,
	stats Stats,
) (*domain.Order, []Fill, error) {
	if err := market.EnsureOpen(now.Unix()); err != nil {
		return nil, nil, err
	}
	if quantity == 0 {
		return nil, nil, domain.ErrInvalidOrderQuantity
	}
	if price == 0 {
		return nil, nil, domain.ErrInvalidOrderPrice
	}
	if maxIterations <= 0 {
		maxIterations = e.DefaultMaxIterations
	}

	own, ok := stats[user]
	if !ok {
		own = domain.NewUserStats(user, market.ID)
		stats[user] = own
	}

	tokenAsset := market.OutcomeYesAsset
	tokenEscrow := market.YesEscrow
	if tokenType == domain.TokenTypeNo {
		tokenAsset = market.OutcomeNoAsset
		tokenEscrow = market.NoEscrow
	}

	// 第 1 步：托管。余额检查在转移之前，失败时没有任何状态变更。
	// 卖单托管的是 token，不需要 quantity*price；名义额只在买路径
	// 上算（带溢出检查）。
	if side == domain.OrderSideSell {
		bal, err := lg.BalanceOf(user, tokenAsset)
		if err != nil {
			return nil, nil, err
		}
		if bal < quantity {
			return nil, nil, domain.ErrNotEnoughBalance
		}
		if err := lg.Transfer(user, tokenEscrow, tokenAsset, quantity); err != nil {
			return nil, nil, err
		}
		if err := own.AddLockedToken(tokenType, quantity); err != nil {
			return nil, nil, err
		}
	} else {
		notional, err := marketmath.Mul(quantity, price)
		if err != nil {
			return nil, nil, err
		}
		bal, err := lg.BalanceOf(user, market.CollateralAsset)
		if err != nil {
			return nil, nil, err
		}
		if bal < notional {
			return nil, nil, domain.ErrNotEnoughBalance
		}
		if err := lg.Transfer(user, market.CollateralVault, market.CollateralAsset, notional); err != nil {
			return nil, nil, err
		}
		if err := own.AddLockedCollateral(notional); err != nil {
			return nil, nil, err
		}
	}

	// 第 2 步：新订单
	order := &domain.Order{
		ID:        book.NextOrderID,
		MarketID:  market.ID,
		User:      user,
		Side:      side,
		TokenType: tokenType,
		Price:     price,
		Quantity:  quantity,
		Timestamp: now.Unix(),
	}
	book.NextOrderID++

	// 第 3 步：撮合
	fills, err := e.match(now, order, book, maxIterations, stats)
	if err != nil {
		return nil, nil, err
	}

	// 第 4 步：剩余进簿
	if order.Remaining() > 0 {
		seq := book.Sequence(tokenType, side)
		if len(*seq) >= e.MaxOrdersPerSide {
			return nil, nil, domain.ErrMaxOrdersReached
		}
		book.Insert(*order)
	}
	return order, fills, nil
}

// match 对着对侧序列撮合 incoming 订单。
//
// 对侧序列按最优价在前排列，价格一旦不再交叉即可停止（后面只会
// 更差）。每笔成交后已满的 resting 订单当场从扫描位置移除，不会
// 打乱对剩余订单的遍历。maxIterations 是每次调用撮合工作量的唯一
// 上限：用完后剩余部分直接进簿，不报错。
func (e *Engine) match(now time.Time, order *domain.Order, book *orderbook.Book, maxIterations int, stats Stats) ([]Fill, error) {
	opp := book.Sequence(order.TokenType, order.Side.Opposite())

	var fills []Fill
	idx := 0
	for iteration := 0; idx < len(*opp) && iteration < maxIterations && order.Remaining() > 0; {
		resting := &(*opp)[idx]
		if !order.Crosses(resting) {
			break
		}

		fill := marketmath.Min(order.Remaining(), resting.Remaining())
		if fill == 0 {
			// 已满订单不应该还在簿里；跳过且不消耗撮合配额
			idx++
			continue
		}

		// 对手方记录必须已由调用方提供，缺失则整个下单失败
		counterparty, ok := stats[resting.User]
		if !ok {
			return nil, domain.ErrCounterpartyStatsNotProvided
		}

		// 成交价是 resting 订单的限价
		value, err := marketmath.Mul(fill, resting.Price)
		if err != nil {
			return nil, err
		}

		if resting.FilledQuantity, err = marketmath.Add(resting.FilledQuantity, fill); err != nil {
			return nil, err
		}
		if order.FilledQuantity, err = marketmath.Add(order.FilledQuantity, fill); err != nil {
			return nil, err
		}

		if order.Side == domain.OrderSideBuy {
			if err := e.settleFill(order, resting, counterparty, stats[order.User], fill, value); err != nil {
				return nil, err
			}
		} else {
			if err := e.settleFill(resting, order, stats[order.User], counterparty, fill, value); err != nil {
				return nil, err
			}
		}

		fills = append(fills, Fill{
			TakerOrderID:   order.ID,
			MakerOrderID:   resting.ID,
			Taker:          order.User,
			Maker:          resting.User,
			TakerSide:      order.Side,
			TokenType:      order.TokenType,
			Price:          resting.Price,
			Quantity:       fill,
			CollateralUsed: value,
			Timestamp:      now,
		})

		if resting.IsFilled() {
			*opp = append((*opp)[:idx], (*opp)[idx+1:]...)
		} else {
			idx++
		}
		iteration++
	}
	return fills, nil
}

// settleFill 把一笔成交记到买卖双方的 UserStats 上。
//
// buy/sell 是这笔成交的买单和卖单（不区分谁是 incoming），
// buyerStats/sellerStats 是对应的统计记录。value = fill * 成交价，
// 成交价是 resting 一方的限价，因此买方锁定的 fill*buy.Price 中
// 超出 value 的差额作为可领取抵押退还（价格改善归 incoming 买方）。
func (e *Engine) settleFill(buy, sell *domain.Order, buyerStats, sellerStats *domain.UserStats, fill, value uint64) error {
	// 买方：锁定抵押按自己的限价消耗，得到 claimable token
	buyCost, err := marketmath.Mul(fill, buy.Price)
	if err != nil {
		return err
	}
	if err := buyerStats.SubLockedCollateral(buyCost); err != nil {
		return err
	}
	if err := buyerStats.AddClaimableToken(buy.TokenType, fill); err != nil {
		return err
	}
	if surplus := buyCost - value; surplus > 0 {
		if err := buyerStats.AddClaimableCollateral(surplus); err != nil {
			return err
		}
	}

	// 卖方：锁定的 token 被买走，得到 claimable 抵押
	if err := sellerStats.SubLockedToken(sell.TokenType, fill); err != nil {
		return err
	}
	return sellerStats.AddClaimableCollateral(value)
}
