package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarlabs/tradepost/internal/service"
)

// MarketHandler serves per-item market snapshots.
type MarketHandler struct {
	market *service.MarketService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(market *service.MarketService) *MarketHandler {
	return &MarketHandler{market: market}
}

// Snapshot handles GET /items/{item_id}/market.
func (h *MarketHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.market.Snapshot(r.Context(), chi.URLParam(r, "item_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, snap)
}
