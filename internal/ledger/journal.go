package ledger

// Journal 包装一个账本，记录本次操作自己做过的每一笔变更，
// 失败时按相反顺序逐笔撤销。
//
// 市场操作只按 market 串行化，不同市场的操作可以并发交错；
// 整本快照回滚会把别的操作在窗口内已提交的变更一起抹掉。
// 逐笔撤销只触碰本操作动过的账户，回滚范围和锁的串行化范围
// 一致。读操作直接透传，不进日志。
type Journal struct {
	lg      Ledger
	entries []journalEntry
}

type journalOp int

const (
	opTransfer journalOp = iota
	opMint
	opBurn
	opRevoke
)

type journalEntry struct {
	op        journalOp
	from      string
	to        string
	asset     string
	authority string
	amount    uint64
}

// NewJournal 在账本上开一个空日志
func NewJournal(lg Ledger) *Journal {
	return &Journal{lg: lg}
}

// BalanceOf 实现 Ledger
func (j *Journal) BalanceOf(holder, asset string) (uint64, error) {
	return j.lg.BalanceOf(holder, asset)
}

// Transfer 实现 Ledger
func (j *Journal) Transfer(from, to, asset string, amount uint64) error {
	if err := j.lg.Transfer(from, to, asset, amount); err != nil {
		return err
	}
	j.entries = append(j.entries, journalEntry{op: opTransfer, from: from, to: to, asset: asset, amount: amount})
	return nil
}

// Mint 实现 Ledger
func (j *Journal) Mint(authority, asset, to string, amount uint64) error {
	if err := j.lg.Mint(authority, asset, to, amount); err != nil {
		return err
	}
	j.entries = append(j.entries, journalEntry{op: opMint, to: to, asset: asset, amount: amount})
	return nil
}

// Burn 实现 Ledger
func (j *Journal) Burn(asset, from string, amount uint64) error {
	if err := j.lg.Burn(asset, from, amount); err != nil {
		return err
	}
	j.entries = append(j.entries, journalEntry{op: opBurn, from: from, asset: asset, amount: amount})
	return nil
}

// RevokeMintAuthority 实现 Ledger
func (j *Journal) RevokeMintAuthority(authority, asset string) error {
	if err := j.lg.RevokeMintAuthority(authority, asset); err != nil {
		return err
	}
	j.entries = append(j.entries, journalEntry{op: opRevoke, asset: asset, authority: authority})
	return nil
}

// crediter 撤销 Burn 用的逆向原语：不经铸币权直接入账
type crediter interface {
	Deposit(holder, asset string, amount uint64) error
}

// granter 撤销撤权用的逆向原语：重新登记铸币权持有者
type granter interface {
	RegisterAsset(asset, authority string)
}

// Revert 按相反顺序撤销全部已记录的变更。
//
// 本操作锁进托管账户的资金只有本操作能再动（托管账户归市场，
// 市场操作被锁串行化），撤销转移因此不会余额不足。撤销失败
// 说明账本实现缺逆向原语或不变量已破，返回第一个错误，其余
// 条目仍然继续撤。
func (j *Journal) Revert() error {
	var firstErr error
	for i := len(j.entries) - 1; i >= 0; i-- {
		e := j.entries[i]
		var err error
		switch e.op {
		case opTransfer:
			err = j.lg.Transfer(e.to, e.from, e.asset, e.amount)
		case opMint:
			err = j.lg.Burn(e.asset, e.to, e.amount)
		case opBurn:
			if c, ok := j.lg.(crediter); ok {
				err = c.Deposit(e.from, e.asset, e.amount)
			} else {
				err = ErrRevertUnsupported
			}
		case opRevoke:
			if g, ok := j.lg.(granter); ok {
				g.RegisterAsset(e.asset, e.authority)
			} else {
				err = ErrRevertUnsupported
			}
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	j.entries = nil
	return firstErr
}
