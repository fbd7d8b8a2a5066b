package engine

import (
	"github.com/betbot/goclob/internal/domain"
	"github.com/betbot/goclob/internal/ledger"
	"github.com/betbot/goclob/pkg/marketmath"
	"github.com/betbot/goclob/pkg/orderbook"
)

// CancelOrder 撤掉调用方自己的一个挂单。
//
// 退款遵循与下单完全相同的锁定/可领取记账纪律：未成交部分
// （quantity - filled_quantity）对应的托管资金原路退回，相应的
// locked_* 字段带检查地扣减。已成交部分的资产早已在撮合时记入
// 双方的 claimable，不受撤单影响。
//
// 对未成交过的订单，撤单是下单的左逆：撤单后账户余额与锁定
// 字段都精确回到下单前。市场结算或过期后仍允许撤单，否则挂单
// 里的托管资金将无法取回。
func (e *Engine) CancelOrder(
	market *domain.Market,
	book *orderbook.Book,
	lg ledger.Ledger,
	user string,
	orderID uint64,
	stats Stats,
) (*domain.Order, uint64, error) {
	order, ok := book.Find(orderID)
	if !ok {
		return nil, 0, domain.ErrOrderNotFound
	}
	if order.User != user {
		return nil, 0, domain.ErrNotOrderOwner
	}

	own, ok := stats[user]
	if !ok {
		return nil, 0, domain.ErrCounterpartyStatsNotProvided
	}

	remaining := order.Remaining()
	var refunded uint64

	if order.Side == domain.OrderSideSell {
		tokenAsset := market.OutcomeYesAsset
		tokenEscrow := market.YesEscrow
		if order.TokenType == domain.TokenTypeNo {
			tokenAsset = market.OutcomeNoAsset
			tokenEscrow = market.NoEscrow
		}
		if remaining > 0 {
			if err := lg.Transfer(tokenEscrow, user, tokenAsset, remaining); err != nil {
				return nil, 0, err
			}
		}
		if err := own.SubLockedToken(order.TokenType, remaining); err != nil {
			return nil, 0, err
		}
		refunded = remaining
	} else {
		refund, err := marketmath.Mul(remaining, order.Price)
		if err != nil {
			return nil, 0, err
		}
		if refund > 0 {
			if err := lg.Transfer(market.CollateralVault, user, market.CollateralAsset, refund); err != nil {
				return nil, 0, err
			}
		}
		if err := own.SubLockedCollateral(refund); err != nil {
			return nil, 0, err
		}
		refunded = refund
	}

	canceled := *order
	book.Remove(order.TokenType, order.Side, orderID)
	return &canceled, refunded, nil
}
