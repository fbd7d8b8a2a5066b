package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/betbot/goclob/internal/events"
	"github.com/betbot/goclob/internal/ledger"
	"github.com/betbot/goclob/internal/market"
	"github.com/betbot/goclob/internal/store"
	"github.com/betbot/goclob/pkg/config"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	st, err := store.Open(store.OpenOptions{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	hub := events.NewHub()
	svc := market.NewService(config.Default().Engine, st, ledger.NewMemoryLedger(), hub)

	srv, err := New(Config{DBPath: filepath.Join(t.TempDir(), "clob.db")}, svc, hub)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { srv.Close() })

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func doJSON(t *testing.T, method, url string, body any, wantStatus int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s status got=%d want=%d body=%v", method, url, resp.StatusCode, wantStatus, out)
	}
	return out
}

func TestHTTPMarketLifecycle(t *testing.T) {
	_, ts := newTestServer(t)
	base := ts.URL

	deadline := time.Now().Add(time.Hour).Unix()
	doJSON(t, "POST", base+"/api/markets/", map[string]any{
		"market_id":           1,
		"authority":           "authority",
		"collateral_asset":    "usdc",
		"settlement_deadline": deadline,
	}, 201)

	// 重复创建
	doJSON(t, "POST", base+"/api/markets/", map[string]any{
		"market_id":           1,
		"authority":           "authority",
		"collateral_asset":    "usdc",
		"settlement_deadline": deadline,
	}, 409)

	doJSON(t, "POST", base+"/api/faucet", map[string]any{"user": "alice", "asset": "usdc", "amount": 100}, 200)
	doJSON(t, "POST", base+"/api/faucet", map[string]any{"user": "bob", "asset": "usdc", "amount": 5000}, 200)

	doJSON(t, "POST", base+"/api/markets/1/split", map[string]any{"user": "alice", "amount": 100}, 200)

	out := doJSON(t, "GET", base+"/api/markets/1/", nil, 200)
	m := out["market"].(map[string]any)
	if m["total_collateral_locked"].(float64) != 100 {
		t.Fatalf("market got=%v", m)
	}

	// alice 挂卖单，bob 吃单
	doJSON(t, "POST", base+"/api/markets/1/orders", map[string]any{
		"user": "alice", "side": "sell", "token_type": "yes", "quantity": 100, "price": 50,
	}, 201)
	placed := doJSON(t, "POST", base+"/api/markets/1/orders", map[string]any{
		"user": "bob", "side": "buy", "token_type": "yes", "quantity": 40, "price": 50,
		"counterparties": []string{"alice"},
	}, 201)
	fills := placed["fills"].([]any)
	if len(fills) != 1 {
		t.Fatalf("fills got=%v", fills)
	}

	// 剩余 60 还挂在簿上
	out = doJSON(t, "GET", base+"/api/markets/1/book", nil, 200)
	book := out["book"].(map[string]any)
	sells := book["yes_sells"].([]any)
	if len(sells) != 1 {
		t.Fatalf("yes sells got=%v", sells)
	}

	// 成交异步落库，轮询等待
	var trades []any
	for i := 0; i < 50; i++ {
		out = doJSON(t, "GET", base+"/api/markets/1/trades", nil, 200)
		trades = out["trades"].([]any)
		if len(trades) == 1 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if len(trades) != 1 {
		t.Fatalf("trade log got=%v", trades)
	}

	doJSON(t, "POST", base+"/api/markets/1/settle", map[string]any{"caller": "authority", "outcome": "yes"}, 200)
	doJSON(t, "POST", base+"/api/markets/1/settle", map[string]any{"caller": "authority", "outcome": "no"}, 409)
	doJSON(t, "POST", base+"/api/markets/1/claim", map[string]any{"user": "alice"}, 200)

	out = doJSON(t, "GET", base+"/api/balances/alice?asset=usdc", nil, 200)
	if out["balance"].(float64) == 0 {
		t.Fatalf("alice balance got=%v", out)
	}
}

func TestHTTPOrderValidation(t *testing.T) {
	_, ts := newTestServer(t)
	base := ts.URL

	doJSON(t, "POST", base+"/api/markets/", map[string]any{
		"market_id":           7,
		"authority":           "authority",
		"collateral_asset":    "usdc",
		"settlement_deadline": time.Now().Add(time.Hour).Unix(),
	}, 201)

	doJSON(t, "POST", base+"/api/markets/7/orders", map[string]any{
		"user": "bob", "side": "sideways", "token_type": "yes", "quantity": 1, "price": 1,
	}, 400)
	doJSON(t, "POST", base+"/api/markets/7/orders", map[string]any{
		"user": "bob", "side": "buy", "token_type": "yes", "quantity": 0, "price": 1,
	}, 400)
	doJSON(t, "POST", base+"/api/markets/99/orders", map[string]any{
		"user": "bob", "side": "buy", "token_type": "yes", "quantity": 1, "price": 1,
	}, 404)
	doJSON(t, "POST", base+"/api/markets/7/orders/12345/cancel", map[string]any{"user": "bob"}, 404)

	out := doJSON(t, "GET", base+"/api/markets/7/stats/nobody", nil, 200)
	stats := out["stats"].(map[string]any)
	if stats["locked_collateral"].(float64) != 0 {
		t.Fatalf("stats got=%v", stats)
	}
}

func TestHTTPCancelRoundTrip(t *testing.T) {
	_, ts := newTestServer(t)
	base := ts.URL

	doJSON(t, "POST", base+"/api/markets/", map[string]any{
		"market_id":           2,
		"authority":           "authority",
		"collateral_asset":    "usdc",
		"settlement_deadline": time.Now().Add(time.Hour).Unix(),
	}, 201)
	doJSON(t, "POST", base+"/api/faucet", map[string]any{"user": "bob", "asset": "usdc", "amount": 1000}, 200)

	placed := doJSON(t, "POST", base+"/api/markets/2/orders", map[string]any{
		"user": "bob", "side": "buy", "token_type": "no", "quantity": 10, "price": 40,
	}, 201)
	order := placed["order"].(map[string]any)
	orderID := uint64(order["id"].(float64))

	out := doJSON(t, "POST", fmt.Sprintf("%s/api/markets/2/orders/%d/cancel", base, orderID), map[string]any{"user": "bob"}, 200)
	if out["refunded"].(float64) != 400 {
		t.Fatalf("refunded got=%v", out["refunded"])
	}
	out = doJSON(t, "GET", base+"/api/balances/bob?asset=usdc", nil, 200)
	if out["balance"].(float64) != 1000 {
		t.Fatalf("bob balance got=%v", out["balance"])
	}
}
