package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarlabs/tradepost/internal/domain"
	"github.com/bazaarlabs/tradepost/internal/service"
)

// UserHandler serves user registration, balance, and inventory endpoints.
type UserHandler struct {
	users     *service.UserService
	inventory *service.InventoryService
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.UserService, inventory *service.InventoryService) *UserHandler {
	return &UserHandler{users: users, inventory: inventory}
}

// Register handles POST /users.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID          string `json:"user_id"`
		StartingBalance int64  `json:"starting_balance"`
	}
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	u, err := h.users.Register(r.Context(), req.UserID, req.StartingBalance)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, newUserView(u))
}

// GetBalance handles GET /users/{user_id}/balance.
func (h *UserHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	balance, err := h.users.Balance(r.Context(), userID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"balance": balance,
	})
}

// ListInventory handles GET /users/{user_id}/inventory.
func (h *UserHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if _, err := h.users.Get(r.Context(), userID); err != nil {
		WriteDomainError(w, err)
		return
	}

	items, err := h.inventory.List(r.Context(), userID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	views := make([]inventoryItemView, 0, len(items))
	for _, it := range items {
		views = append(views, newInventoryItemView(it))
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"items":   views,
	})
}

// GrantItems handles POST /users/{user_id}/inventory.
func (h *UserHandler) GrantItems(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")

	var req struct {
		ItemID        string         `json:"item_id"`
		Amount        int64          `json:"amount"`
		Metadata      map[string]any `json:"metadata,omitempty"`
		Sellable      bool           `json:"sellable"`
		PurchasePrice *int64         `json:"purchase_price,omitempty"`
	}
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if _, err := h.users.Get(r.Context(), userID); err != nil {
		WriteDomainError(w, err)
		return
	}

	err := h.inventory.Grant(r.Context(), service.GrantRequest{
		UserID:        userID,
		ItemID:        req.ItemID,
		Amount:        req.Amount,
		Metadata:      req.Metadata,
		Sellable:      req.Sellable,
		PurchasePrice: req.PurchasePrice,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}

	amount, err := h.inventory.Amount(r.Context(), userID, req.ItemID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{
		"user_id": userID,
		"item_id": req.ItemID,
		"amount":  amount,
	})
}

// tradeItemFromRequest converts a request body item into a domain trade item.
func tradeItemFromRequest(itemID string, amount int64, uniqueID string, purchasePrice *int64) domain.TradeItem {
	return domain.TradeItem{
		ItemID:        itemID,
		Amount:        amount,
		UniqueID:      uniqueID,
		PurchasePrice: purchasePrice,
	}
}
