package store

import (
	"errors"
	"testing"

	"github.com/betbot/goclob/internal/domain"
	"github.com/betbot/goclob/pkg/orderbook"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(OpenOptions{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCommitAndGetRoundTrip(t *testing.T) {
	s := openTestStore(t)

	m := &domain.Market{ID: 7, Authority: "creator", SettlementDeadline: 12345, TotalCollateralLocked: 100}
	b := orderbook.New(7)
	b.NextOrderID = 3
	b.Insert(domain.Order{ID: 1, MarketID: 7, Side: domain.OrderSideBuy, TokenType: domain.TokenTypeYes, Price: 5, Quantity: 10})
	u := domain.NewUserStats("alice", 7)
	u.ClaimableYes = 42

	if err := s.Commit(m, b, u); err != nil {
		t.Fatalf("commit: %v", err)
	}

	gotM, err := s.GetMarket(7)
	if err != nil || gotM.TotalCollateralLocked != 100 || gotM.Authority != "creator" {
		t.Fatalf("GetMarket got=(%+v,%v)", gotM, err)
	}
	gotB, err := s.GetBook(7)
	if err != nil || gotB.NextOrderID != 3 || len(gotB.YesBuys) != 1 {
		t.Fatalf("GetBook got=(%+v,%v)", gotB, err)
	}
	gotU, err := s.GetStats(7, "alice")
	if err != nil || gotU.ClaimableYes != 42 {
		t.Fatalf("GetStats got=(%+v,%v)", gotU, err)
	}
}

func TestGetMissingRecord(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetMarket(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetMarket(99) got err=%v want=ErrNotFound", err)
	}
	if _, err := s.GetStats(1, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetStats got err=%v want=ErrNotFound", err)
	}
}

func TestGetBookNormalizesOrdering(t *testing.T) {
	s := openTestStore(t)
	b := orderbook.New(1)
	// 故意乱序写入
	b.YesBuys = []domain.Order{
		{ID: 1, Side: domain.OrderSideBuy, TokenType: domain.TokenTypeYes, Price: 1, Quantity: 1},
		{ID: 2, Side: domain.OrderSideBuy, TokenType: domain.TokenTypeYes, Price: 9, Quantity: 1},
	}
	if err := s.Commit(nil, b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err := s.GetBook(1)
	if err != nil {
		t.Fatalf("get book: %v", err)
	}
	if !got.CheckSorted() {
		t.Fatal("loaded book not in canonical order")
	}
	if got.YesBuys[0].Price != 9 {
		t.Fatalf("best bid got=%d want=9", got.YesBuys[0].Price)
	}
}

func TestListMarkets(t *testing.T) {
	s := openTestStore(t)
	for id := uint32(1); id <= 3; id++ {
		if err := s.Commit(&domain.Market{ID: id}, nil); err != nil {
			t.Fatalf("commit %d: %v", id, err)
		}
	}
	ms, err := s.ListMarkets()
	if err != nil || len(ms) != 3 {
		t.Fatalf("ListMarkets got=(%d,%v) want 3", len(ms), err)
	}
}
