package domain

import "github.com/betbot/goclob/pkg/marketmath"

// UserStats 用户在单个市场上的持仓统计，首次交互时惰性创建。
//
// Locked* 是已提交到挂单中的资金（卖单锁 token，买单锁抵押），
// Claimable* 是成交后欠用户的资金，可在本核心之外提取。
// 六个字段只允许通过带检查的加减调整：永不为负、永不回绕。
type UserStats struct {
	User     string `json:"user"`      // 用户身份
	MarketID uint32 `json:"market_id"` // 所属市场

	ClaimableYes uint64 `json:"claimable_yes"` // 可领取的 YES token
	LockedYes    uint64 `json:"locked_yes"`    // 锁定在卖单中的 YES token

	ClaimableNo uint64 `json:"claimable_no"` // 可领取的 NO token
	LockedNo    uint64 `json:"locked_no"`    // 锁定在卖单中的 NO token

	ClaimableCollateral uint64 `json:"claimable_collateral"` // 可领取的抵押
	LockedCollateral    uint64 `json:"locked_collateral"`    // 锁定在买单中的抵押
}

// NewUserStats 创建空的用户统计记录
func NewUserStats(user string, marketID uint32) *UserStats {
	return &UserStats{User: user, MarketID: marketID}
}

// AddClaimableToken 带检查地增加可领取的 outcome token
func (u *UserStats) AddClaimableToken(t TokenType, amount uint64) error {
	var err error
	if t == TokenTypeYes {
		u.ClaimableYes, err = marketmath.Add(u.ClaimableYes, amount)
	} else {
		u.ClaimableNo, err = marketmath.Add(u.ClaimableNo, amount)
	}
	return err
}

// AddLockedToken 带检查地增加锁定的 outcome token
func (u *UserStats) AddLockedToken(t TokenType, amount uint64) error {
	var err error
	if t == TokenTypeYes {
		u.LockedYes, err = marketmath.Add(u.LockedYes, amount)
	} else {
		u.LockedNo, err = marketmath.Add(u.LockedNo, amount)
	}
	return err
}

// SubLockedToken 带检查地减少锁定的 outcome token。
// 下溢意味着记账不一致，直接向上返回算术错误终止操作。
func (u *UserStats) SubLockedToken(t TokenType, amount uint64) error {
	var err error
	if t == TokenTypeYes {
		u.LockedYes, err = marketmath.Sub(u.LockedYes, amount)
	} else {
		u.LockedNo, err = marketmath.Sub(u.LockedNo, amount)
	}
	return err
}

// AddClaimableCollateral 带检查地增加可领取抵押
func (u *UserStats) AddClaimableCollateral(amount uint64) error {
	var err error
	u.ClaimableCollateral, err = marketmath.Add(u.ClaimableCollateral, amount)
	return err
}

// AddLockedCollateral 带检查地增加锁定抵押
func (u *UserStats) AddLockedCollateral(amount uint64) error {
	var err error
	u.LockedCollateral, err = marketmath.Add(u.LockedCollateral, amount)
	return err
}

// SubLockedCollateral 带检查地减少锁定抵押
func (u *UserStats) SubLockedCollateral(amount uint64) error {
	var err error
	u.LockedCollateral, err = marketmath.Sub(u.LockedCollateral, amount)
	return err
}
