package events

import (
	"testing"

	"github.com/betbot/goclob/internal/domain"
)

func TestSubscribeReceivesOnlyOwnMarket(t *testing.T) {
	h := NewHub()
	ch1, cancel1 := h.Subscribe(1)
	defer cancel1()
	ch2, cancel2 := h.Subscribe(2)
	defer cancel2()

	h.PublishTrades(1, []TradeExecutedEvent{{TradeID: "t1", MarketID: 1}})

	select {
	case ev := <-ch1:
		if ev.Kind != KindTradeExecuted || ev.Trade == nil || ev.Trade.TradeID != "t1" {
			t.Fatalf("event got=%+v", ev)
		}
	default:
		t.Fatal("subscriber for market 1 received nothing")
	}
	select {
	case ev := <-ch2:
		t.Fatalf("subscriber for market 2 received foreign event: %+v", ev)
	default:
	}
}

func TestSubscribeAllReceivesEveryMarket(t *testing.T) {
	h := NewHub()
	ch, cancel := h.SubscribeAll()
	defer cancel()

	h.PublishTrades(1, []TradeExecutedEvent{{TradeID: "a", MarketID: 1}})
	h.PublishTrades(2, []TradeExecutedEvent{{TradeID: "b", MarketID: 2}})

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case ev := <-ch:
			got[ev.Trade.TradeID] = true
		default:
			t.Fatalf("firehose received %d events, want 2", i)
		}
	}
	if !got["a"] || !got["b"] {
		t.Fatalf("events got=%v", got)
	}
}

func TestLifecycleEventsReachSubscribers(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	h.PublishOrderPlaced(1, OrderPlacedEvent{Order: domain.Order{ID: 7, MarketID: 1, User: "alice"}})
	h.PublishOrderCanceled(1, OrderCanceledEvent{Order: domain.Order{ID: 7, MarketID: 1}, RefundedAmount: 50})
	h.PublishMarketSettled(MarketSettledEvent{MarketID: 1, Outcome: domain.WinningOutcomeYes})

	wantKinds := []Kind{KindOrderPlaced, KindOrderCanceled, KindMarketSettled}
	for _, want := range wantKinds {
		select {
		case ev := <-ch:
			if ev.Kind != want {
				t.Fatalf("kind got=%s want=%s", ev.Kind, want)
			}
			switch want {
			case KindOrderPlaced:
				if ev.Order == nil || ev.Order.Order.ID != 7 {
					t.Fatalf("placed payload got=%+v", ev)
				}
			case KindOrderCanceled:
				if ev.Cancel == nil || ev.Cancel.RefundedAmount != 50 {
					t.Fatalf("cancel payload got=%+v", ev)
				}
			case KindMarketSettled:
				if ev.Settled == nil || ev.Settled.Outcome != domain.WinningOutcomeYes {
					t.Fatalf("settled payload got=%+v", ev)
				}
			}
		default:
			t.Fatalf("no %s event received", want)
		}
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	defer cancel()

	// 灌满缓冲后继续推送不得阻塞
	events := make([]TradeExecutedEvent, 100)
	for i := range events {
		events[i] = TradeExecutedEvent{TradeID: "x", MarketID: 1}
	}
	h.PublishTrades(1, events)
	h.PublishTrades(1, events)

	if got := len(ch); got != cap(ch) {
		t.Fatalf("buffered events got=%d want=%d", got, cap(ch))
	}
}

func TestChangedSignalEmitted(t *testing.T) {
	h := NewHub()
	h.NotifyChanged()
	select {
	case <-h.Changed.C():
	default:
		t.Fatal("no change signal after NotifyChanged")
	}

	h.PublishTrades(1, []TradeExecutedEvent{{TradeID: "t", MarketID: 1}})
	select {
	case <-h.Changed.C():
	default:
		t.Fatal("no change signal after PublishTrades")
	}
}

func TestCancelClosesChannel(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe(1)
	cancel()
	if _, ok := <-ch; ok {
		t.Fatal("channel not closed after cancel")
	}
	// 退订后推送不得 panic
	h.PublishTrades(1, []TradeExecutedEvent{{TradeID: "t", MarketID: 1}})
}
