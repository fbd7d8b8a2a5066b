package domain

import "errors"

// 错误分类（全部在任何状态变更前返回；算术错误见 marketmath.ErrOverflow）：
//   - 校验错误：非法截止时间 / 非法数量、价格 / 非法结算结果
//   - 状态错误：已结算 / 已过期 / 未结算 / 结算结果未设置
//   - 资源错误：余额不足以覆盖卖单数量或买单名义金额
//   - 协作方缺失：对手方 UserStats 未随调用提供（fail-closed）
var (
	ErrInvalidSettlementDeadline = errors.New("invalid settlement deadline")
	ErrMarketAlreadySettled      = errors.New("market already settled")
	ErrMarketExpired             = errors.New("market has expired")
	ErrMarketNotSettled          = errors.New("market is not settled yet")
	ErrWinningOutcomeNotSet      = errors.New("winning outcome is not set yet")
	ErrInvalidWinningOutcome     = errors.New("invalid winning outcome")
	ErrUnsupportedOutcome        = errors.New("payout for this outcome is not supported yet")

	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidOrderQuantity = errors.New("invalid order quantity")
	ErrInvalidOrderPrice    = errors.New("invalid order price")
	ErrInvalidMetaDataURL   = errors.New("metadata url too long")
	ErrInvalidCollateral    = errors.New("collateral asset is required")

	ErrNotEnoughBalance = errors.New("not enough balance in the account")
	ErrMaxOrdersReached = errors.New("max orders reached for this side")

	ErrCounterpartyStatsNotProvided = errors.New("counterparty user stats not provided")

	ErrOrderNotFound      = errors.New("order not found")
	ErrNotOrderOwner      = errors.New("order is owned by another user")
	ErrNotMarketAuthority = errors.New("caller is not the market authority")

	ErrMarketNotFound      = errors.New("market not found")
	ErrMarketAlreadyExists = errors.New("market already exists")
)
