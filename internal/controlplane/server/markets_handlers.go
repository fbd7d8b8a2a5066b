package server

import (
	"errors"
	"net/http"

	"github.com/betbot/goclob/internal/domain"
)

// statusFor 把领域错误映射成 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrMarketNotFound), errors.Is(err, domain.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrMarketAlreadyExists),
		errors.Is(err, domain.ErrMarketAlreadySettled),
		errors.Is(err, domain.ErrMarketExpired),
		errors.Is(err, domain.ErrMarketNotSettled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotOrderOwner), errors.Is(err, domain.ErrNotMarketAuthority):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidSettlementDeadline),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidOrderQuantity),
		errors.Is(err, domain.ErrInvalidOrderPrice),
		errors.Is(err, domain.ErrInvalidMetaDataURL),
		errors.Is(err, domain.ErrInvalidCollateral),
		errors.Is(err, domain.ErrInvalidWinningOutcome),
		errors.Is(err, domain.ErrNotEnoughBalance),
		errors.Is(err, domain.ErrMaxOrdersReached),
		errors.Is(err, domain.ErrCounterpartyStatsNotProvided),
		errors.Is(err, domain.ErrWinningOutcomeNotSet),
		errors.Is(err, domain.ErrUnsupportedOutcome):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleMarketsList(w http.ResponseWriter, r *http.Request) {
	markets, err := s.svc.ListMarkets()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"markets": markets})
}

func (s *Server) handleMarketCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MarketID           uint32 `json:"market_id"`
		Authority          string `json:"authority"`
		CollateralAsset    string `json:"collateral_asset"`
		SettlementDeadline int64  `json:"settlement_deadline"`
		MetaDataURL        string `json:"metadata_url"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	m, err := s.svc.InitializeMarket(req.MarketID, req.Authority, req.CollateralAsset, req.SettlementDeadline, req.MetaDataURL)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 201, map[string]any{"market": m})
}

func (s *Server) handleMarketGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	m, err := s.svc.GetMarket(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"market": m})
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	var req struct {
		User   string `json:"user"`
		Amount uint64 `json:"amount"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if err := s.svc.Split(id, req.User, req.Amount); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "amount": req.Amount})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	var req struct {
		User string `json:"user"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	merged, err := s.svc.Merge(id, req.User)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "merged": merged})
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	var req struct {
		Caller  string `json:"caller"`
		Outcome string `json:"outcome"` // "yes" | "no" | "neither"
	}
	if !readJSON(w, r, &req) {
		return
	}
	outcome, ok := domain.ParseWinningOutcome(req.Outcome)
	if !ok {
		writeError(w, 400, "invalid outcome")
		return
	}
	if err := s.svc.SetWinningOutcome(id, req.Caller, outcome); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "outcome": outcome.String()})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := pathMarketID(r)
	if !ok {
		writeError(w, 400, "invalid market id")
		return
	}
	var req struct {
		User string `json:"user"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	paid, err := s.svc.Claim(id, req.User)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, 200, map[string]any{"ok": true, "paid": paid})
}
