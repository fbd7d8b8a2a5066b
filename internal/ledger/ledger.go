package ledger

import "errors"

// 账本是外部协作方：提供两类原子原语——资产转移和铸造/销毁。
// 每次调用要么完全成功要么完全失败，余额不足直接报错。
// 撮合核心只通过这个接口触碰资产，自己不持有任何余额。

var (
	// ErrInsufficientFunds 余额不足以完成转移/销毁
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	// ErrUnknownAsset 资产未注册
	ErrUnknownAsset = errors.New("ledger: unknown asset")
	// ErrNotMintAuthority 调用方不持有该资产的铸币权
	ErrNotMintAuthority = errors.New("ledger: not the mint authority")
	// ErrRevertUnsupported 账本实现缺少日志回滚需要的逆向原语
	ErrRevertUnsupported = errors.New("ledger: revert not supported by this ledger")
)

// Ledger 外部资产账本
type Ledger interface {
	// BalanceOf 查询某账户持有某资产的数量
	BalanceOf(holder, asset string) (uint64, error)

	// Transfer 原子转移：from 余额不足时整个调用失败
	Transfer(from, to, asset string, amount uint64) error

	// Mint 以 authority 的身份给 to 铸造 amount 单位资产，
	// authority 必须仍持有该资产的铸币权
	Mint(authority, asset, to string, amount uint64) error

	// Burn 从 from 销毁 amount 单位资产
	Burn(asset, from string, amount uint64) error

	// RevokeMintAuthority 一次性撤销资产的铸币权（单向降级，不可恢复）
	RevokeMintAuthority(authority, asset string) error
}
