package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarlabs/tradepost/internal/service"
)

// BuyOrderHandler serves the standing buy order endpoints.
type BuyOrderHandler struct {
	orders *service.BuyOrderService
}

// NewBuyOrderHandler creates a BuyOrderHandler.
func NewBuyOrderHandler(orders *service.BuyOrderService) *BuyOrderHandler {
	return &BuyOrderHandler{orders: orders}
}

// Create handles POST /buy-orders.
func (h *BuyOrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerID  string `json:"buyer_id"`
		ItemID   string `json:"item_id"`
		MaxPrice int64  `json:"max_price"`
	}
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	o, err := h.orders.Create(r.Context(), req.BuyerID, req.ItemID, req.MaxPrice)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, newBuyOrderView(o))
}

// Get handles GET /buy-orders/{order_id}.
func (h *BuyOrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "order_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newBuyOrderView(o))
}

// Cancel handles POST /buy-orders/{order_id}/cancel.
func (h *BuyOrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerID string `json:"buyer_id"`
	}
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "order_id"), req.BuyerID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newBuyOrderView(o))
}

// ListByUser handles GET /users/{user_id}/buy-orders.
func (h *BuyOrderHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListByBuyer(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	views := make([]buyOrderView, 0, len(orders))
	for _, o := range orders {
		views = append(views, newBuyOrderView(o))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"buy_orders": views})
}
