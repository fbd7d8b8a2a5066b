package market

import (
	"errors"
	"testing"
	"time"

	"github.com/betbot/goclob/internal/domain"
	"github.com/betbot/goclob/internal/events"
	"github.com/betbot/goclob/internal/ledger"
	"github.com/betbot/goclob/internal/store"
	"github.com/betbot/goclob/pkg/config"
)

const collateral = "usdc"

var testNow = time.Unix(1_700_000_000, 0)

func newTestService(t *testing.T) (*Service, *ledger.MemoryLedger) {
	t.Helper()
	st, err := store.Open(store.OpenOptions{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	lg := ledger.NewMemoryLedger()
	cfg := config.Default().Engine
	svc := NewService(cfg, st, lg, events.NewHub())
	svc.Now = func() time.Time { return testNow }
	return svc, lg
}

func newOpenMarket(t *testing.T, svc *Service) *domain.Market {
	t.Helper()
	m, err := svc.InitializeMarket(1, "authority", collateral, testNow.Unix()+3600, "https://example.org/market/1")
	if err != nil {
		t.Fatalf("InitializeMarket: %v", err)
	}
	return m
}

func balance(t *testing.T, lg *ledger.MemoryLedger, holder, asset string) uint64 {
	t.Helper()
	v, err := lg.BalanceOf(holder, asset)
	if err != nil {
		t.Fatalf("BalanceOf(%s,%s): %v", holder, asset, err)
	}
	return v
}

func TestInitializeMarketValidation(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.InitializeMarket(1, "auth", collateral, testNow.Unix(), ""); !errors.Is(err, domain.ErrInvalidSettlementDeadline) {
		t.Fatalf("past deadline: got err=%v", err)
	}
	if _, err := svc.InitializeMarket(1, "auth", "", testNow.Unix()+10, ""); !errors.Is(err, domain.ErrInvalidCollateral) {
		t.Fatalf("empty collateral: got err=%v", err)
	}
	long := make([]byte, domain.MaxMetaDataURLLen+1)
	if _, err := svc.InitializeMarket(1, "auth", collateral, testNow.Unix()+10, string(long)); !errors.Is(err, domain.ErrInvalidMetaDataURL) {
		t.Fatalf("long metadata url: got err=%v", err)
	}

	newOpenMarket(t, svc)
	if _, err := svc.InitializeMarket(1, "auth", collateral, testNow.Unix()+10, ""); !errors.Is(err, domain.ErrMarketAlreadyExists) {
		t.Fatalf("duplicate market: got err=%v", err)
	}
}

func TestSplitMintsBothTokensAgainstLockedCollateral(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("alice", collateral, 100)

	if err := svc.Split(m.ID, "alice", 100); err != nil {
		t.Fatalf("Split: %v", err)
	}
	if got := balance(t, lg, "alice", m.OutcomeYesAsset); got != 100 {
		t.Fatalf("yes balance got=%d want=100", got)
	}
	if got := balance(t, lg, "alice", m.OutcomeNoAsset); got != 100 {
		t.Fatalf("no balance got=%d want=100", got)
	}
	if got := balance(t, lg, "alice", collateral); got != 0 {
		t.Fatalf("collateral balance got=%d want=0", got)
	}
	if got := balance(t, lg, m.CollateralVault, collateral); got != 100 {
		t.Fatalf("vault balance got=%d want=100", got)
	}

	m2, err := svc.GetMarket(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if m2.TotalCollateralLocked != 100 {
		t.Fatalf("TotalCollateralLocked got=%d want=100", m2.TotalCollateralLocked)
	}
}

func TestSplitRejectsWithoutStateChange(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("alice", collateral, 40)

	if err := svc.Split(m.ID, "alice", 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("zero amount: got err=%v", err)
	}
	if err := svc.Split(m.ID, "alice", 41); !errors.Is(err, domain.ErrNotEnoughBalance) {
		t.Fatalf("insufficient: got err=%v", err)
	}
	if err := svc.Split(99, "alice", 1); !errors.Is(err, domain.ErrMarketNotFound) {
		t.Fatalf("unknown market: got err=%v", err)
	}
	if got := balance(t, lg, "alice", collateral); got != 40 {
		t.Fatalf("collateral touched by failed split: got=%d want=40", got)
	}
	m2, _ := svc.GetMarket(m.ID)
	if m2.TotalCollateralLocked != 0 {
		t.Fatalf("TotalCollateralLocked got=%d want=0", m2.TotalCollateralLocked)
	}
}

func TestMergeBurnsMinPairAndUnlocksCollateral(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("alice", collateral, 100)
	if err := svc.Split(m.ID, "alice", 100); err != nil {
		t.Fatal(err)
	}
	// 送走 30 枚 NO，合并上限变成 min(100, 70)
	if err := lg.Transfer("alice", "bob", m.OutcomeNoAsset, 30); err != nil {
		t.Fatal(err)
	}

	merged, err := svc.Merge(m.ID, "alice")
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged != 70 {
		t.Fatalf("merged got=%d want=70", merged)
	}
	if got := balance(t, lg, "alice", collateral); got != 70 {
		t.Fatalf("collateral got=%d want=70", got)
	}
	if got := balance(t, lg, "alice", m.OutcomeYesAsset); got != 30 {
		t.Fatalf("yes remainder got=%d want=30", got)
	}
	m2, _ := svc.GetMarket(m.ID)
	if m2.TotalCollateralLocked != 30 {
		t.Fatalf("TotalCollateralLocked got=%d want=30", m2.TotalCollateralLocked)
	}

	// 没有成对 token 时合并报错
	if _, err := svc.Merge(m.ID, "carol"); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("merge without pair: got err=%v", err)
	}
}

func TestSettleAndClaimFlow(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("alice", collateral, 100)
	if err := svc.Split(m.ID, "alice", 100); err != nil {
		t.Fatal(err)
	}

	if err := svc.SetWinningOutcome(m.ID, "intruder", domain.WinningOutcomeYes); !errors.Is(err, domain.ErrNotMarketAuthority) {
		t.Fatalf("non-authority settle: got err=%v", err)
	}
	if _, err := svc.Claim(m.ID, "alice"); !errors.Is(err, domain.ErrMarketNotSettled) {
		t.Fatalf("claim before settle: got err=%v", err)
	}
	if err := svc.SetWinningOutcome(m.ID, "authority", domain.WinningOutcomeUnset); !errors.Is(err, domain.ErrInvalidWinningOutcome) {
		t.Fatalf("unset outcome: got err=%v", err)
	}

	if err := svc.SetWinningOutcome(m.ID, "authority", domain.WinningOutcomeYes); err != nil {
		t.Fatalf("SetWinningOutcome: %v", err)
	}
	if err := svc.SetWinningOutcome(m.ID, "authority", domain.WinningOutcomeNo); !errors.Is(err, domain.ErrMarketAlreadySettled) {
		t.Fatalf("second settle: got err=%v", err)
	}
	if err := svc.Split(m.ID, "alice", 1); !errors.Is(err, domain.ErrMarketAlreadySettled) {
		t.Fatalf("split after settle: got err=%v", err)
	}

	paid, err := svc.Claim(m.ID, "alice")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if paid != 100 {
		t.Fatalf("paid got=%d want=100", paid)
	}
	if got := balance(t, lg, "alice", collateral); got != 100 {
		t.Fatalf("collateral got=%d want=100", got)
	}
	if got := balance(t, lg, "alice", m.OutcomeYesAsset); got != 0 {
		t.Fatalf("winner tokens not burned: got=%d", got)
	}
	// 失败一侧原地留着，一文不值
	if got := balance(t, lg, "alice", m.OutcomeNoAsset); got != 100 {
		t.Fatalf("loser tokens got=%d want=100", got)
	}
	m2, _ := svc.GetMarket(m.ID)
	if m2.TotalCollateralLocked != 0 {
		t.Fatalf("TotalCollateralLocked got=%d want=0", m2.TotalCollateralLocked)
	}

	// 再领一次：没有持仓，付 0，不报错
	paid, err = svc.Claim(m.ID, "alice")
	if err != nil || paid != 0 {
		t.Fatalf("second claim got=(%d,%v) want=(0,nil)", paid, err)
	}
}

func TestSettleDeadlineDirection(t *testing.T) {
	svc, _ := newTestService(t)
	m := newOpenMarket(t, svc)

	svc.Now = func() time.Time { return time.Unix(m.SettlementDeadline, 0) }
	if err := svc.SetWinningOutcome(m.ID, "authority", domain.WinningOutcomeNo); !errors.Is(err, domain.ErrMarketExpired) {
		t.Fatalf("settle at deadline with SettleBeforeDeadline: got err=%v", err)
	}

	svc.cfg.SettleBeforeDeadline = false
	if err := svc.SetWinningOutcome(m.ID, "authority", domain.WinningOutcomeNo); err != nil {
		t.Fatalf("settle after deadline without SettleBeforeDeadline: %v", err)
	}
}

func TestClaimNeitherOutcomeUnsupported(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("alice", collateral, 10)
	if err := svc.Split(m.ID, "alice", 10); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetWinningOutcome(m.ID, "authority", domain.WinningOutcomeNeither); err != nil {
		t.Fatalf("SetWinningOutcome(Neither): %v", err)
	}
	if _, err := svc.Claim(m.ID, "alice"); !errors.Is(err, domain.ErrUnsupportedOutcome) {
		t.Fatalf("claim Neither: got err=%v", err)
	}
}

func TestPlaceOrderMatchAcrossService(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("alice", collateral, 100)
	lg.Deposit("bob", collateral, 6000)
	if err := svc.Split(m.ID, "alice", 100); err != nil {
		t.Fatal(err)
	}

	// alice 挂 YES 卖单 100@50
	sell, fills, err := svc.PlaceOrder(m.ID, "alice", domain.OrderSideSell, domain.TokenTypeYes, 100, 50, 0, nil)
	if err != nil {
		t.Fatalf("place sell: %v", err)
	}
	if len(fills) != 0 {
		t.Fatalf("sell into empty book filled: %d", len(fills))
	}

	// bob 限价 60 买 100，按 resting 价 50 成交，差额退回 claimable
	buy, fills, err := svc.PlaceOrder(m.ID, "bob", domain.OrderSideBuy, domain.TokenTypeYes, 100, 60, 0, []string{"alice"})
	if err != nil {
		t.Fatalf("place buy: %v", err)
	}
	if len(fills) != 1 || fills[0].Price != 50 || fills[0].Quantity != 100 {
		t.Fatalf("fills got=%+v", fills)
	}
	if fills[0].MakerOrderID != sell.ID || fills[0].TakerOrderID != buy.ID {
		t.Fatalf("fill ids got=%+v", fills[0])
	}

	// 完全成交的订单不进簿
	book, err := svc.GetBook(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if book.TotalOrders() != 0 {
		t.Fatalf("book not empty: %d orders", book.TotalOrders())
	}

	aliceStats, _ := svc.GetStats(m.ID, "alice")
	bobStats, _ := svc.GetStats(m.ID, "bob")
	if aliceStats.LockedYes != 0 || aliceStats.ClaimableCollateral != 5000 {
		t.Fatalf("alice stats got=%+v", aliceStats)
	}
	if bobStats.LockedCollateral != 0 || bobStats.ClaimableYes != 100 || bobStats.ClaimableCollateral != 1000 {
		t.Fatalf("bob stats got=%+v", bobStats)
	}

	// 抵押守恒：自由余额 + 金库 = 初始总量
	free := balance(t, lg, "bob", collateral)
	vault := balance(t, lg, m.CollateralVault, collateral)
	if free+vault != 6100 {
		t.Fatalf("collateral not conserved: free=%d vault=%d", free, vault)
	}
}

func TestPlaceOrderRollsBackOnMissingCounterparty(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("alice", collateral, 100)
	lg.Deposit("bob", collateral, 5000)
	if err := svc.Split(m.ID, "alice", 100); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.PlaceOrder(m.ID, "alice", domain.OrderSideSell, domain.TokenTypeYes, 100, 50, 0, nil); err != nil {
		t.Fatal(err)
	}

	// bob 的买单会撮合到 alice，但没有声明她为对手方
	_, _, err := svc.PlaceOrder(m.ID, "bob", domain.OrderSideBuy, domain.TokenTypeYes, 100, 50, 0, nil)
	if !errors.Is(err, domain.ErrCounterpartyStatsNotProvided) {
		t.Fatalf("got err=%v", err)
	}

	// 整个调用回滚：bob 的托管资金原封不动，alice 的挂单还在
	if got := balance(t, lg, "bob", collateral); got != 5000 {
		t.Fatalf("bob collateral got=%d want=5000", got)
	}
	book, _ := svc.GetBook(m.ID)
	if got := len(book.YesSells); got != 1 {
		t.Fatalf("resting sells got=%d want=1", got)
	}
	if book.YesSells[0].FilledQuantity != 0 {
		t.Fatalf("resting order mutated: %+v", book.YesSells[0])
	}
	bobStats, _ := svc.GetStats(m.ID, "bob")
	if bobStats.LockedCollateral != 0 || bobStats.ClaimableYes != 0 {
		t.Fatalf("bob stats leaked: %+v", bobStats)
	}
}

func TestCancelOrderThroughService(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("bob", collateral, 5000)

	order, _, err := svc.PlaceOrder(m.ID, "bob", domain.OrderSideBuy, domain.TokenTypeNo, 100, 40, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := balance(t, lg, "bob", collateral); got != 1000 {
		t.Fatalf("escrowed collateral got=%d want=1000", got)
	}

	if _, _, err := svc.CancelOrder(m.ID, "alice", order.ID); !errors.Is(err, domain.ErrNotOrderOwner) {
		t.Fatalf("foreign cancel: got err=%v", err)
	}

	canceled, refunded, err := svc.CancelOrder(m.ID, "bob", order.ID)
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if refunded != 4000 || canceled.ID != order.ID {
		t.Fatalf("refund got=%d order=%d", refunded, canceled.ID)
	}
	if got := balance(t, lg, "bob", collateral); got != 5000 {
		t.Fatalf("bob collateral got=%d want=5000", got)
	}
	bobStats, _ := svc.GetStats(m.ID, "bob")
	if bobStats.LockedCollateral != 0 {
		t.Fatalf("locked collateral got=%d want=0", bobStats.LockedCollateral)
	}

	if _, _, err := svc.CancelOrder(m.ID, "bob", order.ID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("double cancel: got err=%v", err)
	}
}

// 结算或过期后仍可撤单取回托管资金
func TestCancelAfterSettlement(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("bob", collateral, 1000)

	order, _, err := svc.PlaceOrder(m.ID, "bob", domain.OrderSideBuy, domain.TokenTypeYes, 10, 50, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := svc.SetWinningOutcome(m.ID, "authority", domain.WinningOutcomeNo); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.PlaceOrder(m.ID, "bob", domain.OrderSideBuy, domain.TokenTypeYes, 10, 50, 0, nil); !errors.Is(err, domain.ErrMarketAlreadySettled) {
		t.Fatalf("place after settle: got err=%v", err)
	}

	_, refunded, err := svc.CancelOrder(m.ID, "bob", order.ID)
	if err != nil {
		t.Fatalf("cancel after settle: %v", err)
	}
	if refunded != 500 {
		t.Fatalf("refunded got=%d want=500", refunded)
	}
	if got := balance(t, lg, "bob", collateral); got != 1000 {
		t.Fatalf("bob collateral got=%d want=1000", got)
	}
}

func TestEventStreamReceivesLifecycle(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("alice", collateral, 10)
	lg.Deposit("bob", collateral, 500)
	if err := svc.Split(m.ID, "alice", 10); err != nil {
		t.Fatal(err)
	}

	ch, cancel := svc.hub.Subscribe(m.ID)
	defer cancel()

	if _, _, err := svc.PlaceOrder(m.ID, "alice", domain.OrderSideSell, domain.TokenTypeNo, 10, 50, 0, nil); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.PlaceOrder(m.ID, "bob", domain.OrderSideBuy, domain.TokenTypeNo, 10, 50, 0, []string{"alice"}); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetWinningOutcome(m.ID, "authority", domain.WinningOutcomeNo); err != nil {
		t.Fatal(err)
	}

	recv := func() events.Event {
		t.Helper()
		select {
		case ev := <-ch:
			return ev
		case <-time.After(time.Second):
			t.Fatal("no event received")
			return events.Event{}
		}
	}

	// alice 挂单进簿 → 挂单事件；bob 完全成交 → 只有成交事件；结算事件收尾
	ev := recv()
	if ev.Kind != events.KindOrderPlaced || ev.Order.Order.User != "alice" {
		t.Fatalf("first event got=%+v", ev)
	}
	ev = recv()
	if ev.Kind != events.KindTradeExecuted {
		t.Fatalf("second event got=%+v", ev)
	}
	if tr := ev.Trade; tr.MarketID != m.ID || tr.Quantity != 10 || tr.Price != 50 || tr.TradeID == "" {
		t.Fatalf("trade got=%+v", ev.Trade)
	}
	ev = recv()
	if ev.Kind != events.KindMarketSettled || ev.Settled.Outcome != domain.WinningOutcomeNo {
		t.Fatalf("third event got=%+v", ev)
	}
}

func TestCancelPublishesEvent(t *testing.T) {
	svc, lg := newTestService(t)
	m := newOpenMarket(t, svc)
	lg.Deposit("bob", collateral, 500)

	order, _, err := svc.PlaceOrder(m.ID, "bob", domain.OrderSideBuy, domain.TokenTypeYes, 10, 50, 0, nil)
	if err != nil {
		t.Fatal(err)
	}

	ch, cancel := svc.hub.Subscribe(m.ID)
	defer cancel()
	if _, _, err := svc.CancelOrder(m.ID, "bob", order.ID); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-ch:
		if ev.Kind != events.KindOrderCanceled || ev.Cancel.Order.ID != order.ID || ev.Cancel.RefundedAmount != 500 {
			t.Fatalf("event got=%+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no cancel event received")
	}
}

// 失败操作的回滚只撤自己落过的账：另一个市场在同一窗口内提交的
// split 必须原封不动。
func TestRollbackScopedToFailingOperation(t *testing.T) {
	svc, lg := newTestService(t)
	m1 := newOpenMarket(t, svc)
	m2, err := svc.InitializeMarket(2, "authority", collateral, testNow.Unix()+3600, "")
	if err != nil {
		t.Fatal(err)
	}
	lg.Deposit("alice", collateral, 100)
	lg.Deposit("bob", collateral, 5000)
	lg.Deposit("carol", collateral, 100)
	if err := svc.Split(m1.ID, "alice", 100); err != nil {
		t.Fatal(err)
	}
	if _, _, err := svc.PlaceOrder(m1.ID, "alice", domain.OrderSideSell, domain.TokenTypeYes, 100, 50, 0, nil); err != nil {
		t.Fatal(err)
	}

	// 借时间源钩子把 carol 在市场 2 的 split 插进 bob 下单的
	// 托管-撮合窗口里
	hijacked := false
	svc.Now = func() time.Time {
		if !hijacked {
			hijacked = true
			if err := svc.Split(m2.ID, "carol", 100); err != nil {
				t.Errorf("interleaved split: %v", err)
			}
		}
		return testNow
	}

	// bob 的买单会撮合到未声明的 alice → 整个下单失败回滚
	_, _, err = svc.PlaceOrder(m1.ID, "bob", domain.OrderSideBuy, domain.TokenTypeYes, 100, 50, 0, nil)
	if !errors.Is(err, domain.ErrCounterpartyStatsNotProvided) {
		t.Fatalf("got err=%v", err)
	}
	if !hijacked {
		t.Fatal("interleaved split never ran")
	}

	// bob 的托管资金退回
	if got := balance(t, lg, "bob", collateral); got != 5000 {
		t.Fatalf("bob collateral got=%d want=5000", got)
	}
	// carol 在市场 2 的成果完好：token 在手、金库有钱、锁定量一致
	if got := balance(t, lg, "carol", m2.OutcomeYesAsset); got != 100 {
		t.Fatalf("carol yes got=%d want=100", got)
	}
	if got := balance(t, lg, "carol", m2.OutcomeNoAsset); got != 100 {
		t.Fatalf("carol no got=%d want=100", got)
	}
	if got := balance(t, lg, m2.CollateralVault, collateral); got != 100 {
		t.Fatalf("market 2 vault got=%d want=100", got)
	}
	m2After, _ := svc.GetMarket(m2.ID)
	if m2After.TotalCollateralLocked != 100 {
		t.Fatalf("market 2 TotalCollateralLocked got=%d want=100", m2After.TotalCollateralLocked)
	}
}
