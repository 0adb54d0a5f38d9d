package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarlabs/tradepost/internal/service"
)

// TradeHandler serves the trade negotiation endpoints.
type TradeHandler struct {
	trades *service.TradeService
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades *service.TradeService) *TradeHandler {
	return &TradeHandler{trades: trades}
}

// StartOrGet handles POST /trades: returns the pending trade between the
// pair, creating an empty one if needed.
func (h *TradeHandler) StartOrGet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromUserID string `json:"from_user_id"`
		ToUserID   string `json:"to_user_id"`
	}
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	t, err := h.trades.StartOrGet(r.Context(), req.FromUserID, req.ToUserID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newTradeView(t))
}

// Get handles GET /trades/{trade_id}.
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.trades.Get(r.Context(), chi.URLParam(r, "trade_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newTradeView(t))
}

// tradeItemRequest is the body shape for add/remove item calls.
type tradeItemRequest struct {
	UserID        string `json:"user_id"`
	ItemID        string `json:"item_id"`
	Amount        int64  `json:"amount"`
	UniqueID      string `json:"unique_id,omitempty"`
	PurchasePrice *int64 `json:"purchase_price,omitempty"`
}

// AddItem handles POST /trades/{trade_id}/items.
func (h *TradeHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req tradeItemRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	t, err := h.trades.AddItem(r.Context(), chi.URLParam(r, "trade_id"), req.UserID,
		tradeItemFromRequest(req.ItemID, req.Amount, req.UniqueID, req.PurchasePrice))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newTradeView(t))
}

// RemoveItem handles POST /trades/{trade_id}/items/remove.
func (h *TradeHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	var req tradeItemRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	t, err := h.trades.RemoveItem(r.Context(), chi.URLParam(r, "trade_id"), req.UserID,
		tradeItemFromRequest(req.ItemID, req.Amount, req.UniqueID, req.PurchasePrice))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newTradeView(t))
}

// Approve handles POST /trades/{trade_id}/approve.
func (h *TradeHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	t, err := h.trades.Approve(r.Context(), chi.URLParam(r, "trade_id"), req.UserID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newTradeView(t))
}

// Cancel handles POST /trades/{trade_id}/cancel.
func (h *TradeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	t, err := h.trades.Cancel(r.Context(), chi.URLParam(r, "trade_id"), req.UserID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newTradeView(t))
}

// ListByUser handles GET /users/{user_id}/trades.
func (h *TradeHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.ListByUser(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	views := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, newTradeView(t))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"trades": views})
}
