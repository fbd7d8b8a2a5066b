package ledger

import (
	"sync"

	"github.com/betbot/goclob/pkg/marketmath"
)

// MemoryLedger 进程内账本实现。
//
// 宿主（market.Service）把一次操作的变更记进 Journal、失败时
// 逐笔撤销，因此这里只需要保证单次调用的原子性。Deposit 和
// RegisterAsset 同时充当 Journal 撤销 Burn/撤权用的逆向原语。
type MemoryLedger struct {
	mu          sync.Mutex
	balances    map[string]map[string]uint64 // holder -> asset -> amount
	authorities map[string]string            // asset -> mint authority（"" 表示已撤销）
}

// NewMemoryLedger 创建空账本
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:    make(map[string]map[string]uint64),
		authorities: make(map[string]string),
	}
}

// RegisterAsset 注册资产并指定铸币权持有者
func (l *MemoryLedger) RegisterAsset(asset, authority string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.authorities[asset] = authority
}

// Deposit 直接给账户充值（测试与初始资金发放用，绕过铸币权）。
func (l *MemoryLedger) Deposit(holder, asset string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credit(holder, asset, amount)
}

// BalanceOf 实现 Ledger
func (l *MemoryLedger) BalanceOf(holder, asset string) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[holder][asset], nil
}

// Transfer 实现 Ledger
func (l *MemoryLedger) Transfer(from, to, asset string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.debit(from, asset, amount); err != nil {
		return err
	}
	return l.credit(to, asset, amount)
}

// Mint 实现 Ledger
func (l *MemoryLedger) Mint(authority, asset, to string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	auth, ok := l.authorities[asset]
	if !ok {
		return ErrUnknownAsset
	}
	if auth == "" || auth != authority {
		return ErrNotMintAuthority
	}
	return l.credit(to, asset, amount)
}

// Burn 实现 Ledger
func (l *MemoryLedger) Burn(asset, from string, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.authorities[asset]; !ok {
		return ErrUnknownAsset
	}
	return l.debit(from, asset, amount)
}

// RevokeMintAuthority 实现 Ledger
func (l *MemoryLedger) RevokeMintAuthority(authority, asset string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	auth, ok := l.authorities[asset]
	if !ok {
		return ErrUnknownAsset
	}
	if auth == "" || auth != authority {
		return ErrNotMintAuthority
	}
	l.authorities[asset] = ""
	return nil
}

func (l *MemoryLedger) credit(holder, asset string, amount uint64) error {
	m := l.balances[holder]
	if m == nil {
		m = make(map[string]uint64)
		l.balances[holder] = m
	}
	v, err := marketmath.Add(m[asset], amount)
	if err != nil {
		return err
	}
	m[asset] = v
	return nil
}

func (l *MemoryLedger) debit(holder, asset string, amount uint64) error {
	m := l.balances[holder]
	if m[asset] < amount {
		return ErrInsufficientFunds
	}
	m[asset] -= amount
	return nil
}
