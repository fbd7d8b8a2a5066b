package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/betbot/goclob/internal/domain"
)

func (s *Server) handleOrderPlace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	var req struct {
		User           string   `json:"user"`
		Side           string   `json:"side"`       // "buy" | "sell"
		TokenType      string   `json:"token_type"` // "yes" | "no"
		Quantity       uint64   `json:"quantity"`
		Price          uint64   `json:"price"`
		MaxIterations  int      `json:"max_iterations"` // 0 = 服务端默认值
		Counterparties []string `json:"counterparties"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	side := domain.OrderSide(req.Side)
	if !side.IsValid() {
		writeError(w, 400, "invalid side")
		return
	}
	token := domain.TokenType(req.TokenType)
	if !token.IsValid() {
		writeError(w, 400, "invalid token type")
		return
	}

	order, fills, err := s.svc.PlaceOrder(id, req.User, side, token, req.Quantity, req.Price, req.MaxIterations, req.Counterparties)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 201, map[string]any{"order": order, "fills": fills})
}

func (s *Server) handleOrderCancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	orderID, err := strconv.ParseUint(pathParam(r, "orderID"), 10, 64)
	if err != nil {
		writeError(w, 400, "invalid order id")
		return
	}
	var req struct {
		User string `json:"user"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	order, refunded, err := s.svc.CancelOrder(id, req.User, orderID)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"order": order, "refunded": refunded})
}

func (s *Server) handleBookGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	book, err := s.svc.GetBook(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"book": book})
}

func (s *Server) handleStatsGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	user := pathParam(r, "user")
	stats, err := s.svc.GetStats(id, user)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"stats": stats})
}

func (s *Server) handleTradesList(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	limit := 200
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 2000 {
			limit = n
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	items, err := s.listTrades(ctx, id, limit)
	if err != nil {
		writeError(w, 500, fmt.Sprintf("db list trades: %v", err))
		return
	}
	writeJSON(w, 200, map[string]any{"market_id": id, "trades": items})
}

// handleFaucet 充值入口（演示/测试环境：账本实现支持 Deposit 时可用）
func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User   string `json:"user"`
		Asset  string `json:"asset"`
		Amount uint64 `json:"amount"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.User == "" || req.Asset == "" || req.Amount == 0 {
		writeError(w, 400, "user, asset and amount are required")
		return
	}
	dep, ok := s.svc.Ledger().(interface {
		Deposit(holder, asset string, amount uint64) error
	})
	if !ok {
		writeError(w, http.StatusNotImplemented, "ledger does not support deposits")
		return
	}
	if err := dep.Deposit(req.User, req.Asset, req.Amount); err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true})
}

func (s *Server) handleBalanceGet(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")
	asset := strings.TrimSpace(r.URL.Query().Get("asset"))
	if asset == "" {
		writeError(w, 400, "asset query parameter is required")
		return
	}
	bal, err := s.svc.Ledger().BalanceOf(user, asset)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"user": user, "asset": asset, "balance": bal})
}
