package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazaarlabs/tradepost/internal/service"
)

// ListingHandler serves the market listing endpoints.
type ListingHandler struct {
	listings *service.ListingService
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(listings *service.ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

// Create handles POST /listings.
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SellerID      string `json:"seller_id"`
		ItemID        string `json:"item_id"`
		UniqueID      string `json:"unique_id,omitempty"`
		PurchasePrice *int64 `json:"purchase_price,omitempty"`
		Price         int64  `json:"price"`
	}
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	l, err := h.listings.Create(r.Context(), service.CreateListingRequest{
		SellerID:      req.SellerID,
		ItemID:        req.ItemID,
		UniqueID:      req.UniqueID,
		PurchasePrice: req.PurchasePrice,
		Price:         req.Price,
	})
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, newListingView(l))
}

// Get handles GET /listings/{listing_id}.
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	l, err := h.listings.Get(r.Context(), chi.URLParam(r, "listing_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newListingView(l))
}

// Buy handles POST /listings/{listing_id}/buy.
func (h *ListingHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerID string `json:"buyer_id"`
	}
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	l, err := h.listings.Buy(r.Context(), chi.URLParam(r, "listing_id"), req.BuyerID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newListingView(l))
}

// Cancel handles POST /listings/{listing_id}/cancel.
func (h *ListingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SellerID string `json:"seller_id"`
	}
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	l, err := h.listings.Cancel(r.Context(), chi.URLParam(r, "listing_id"), req.SellerID)
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, newListingView(l))
}

// ListBySeller handles GET /users/{user_id}/listings.
func (h *ListingHandler) ListBySeller(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListBySeller(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	views := make([]listingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, newListingView(l))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"listings": views})
}

// ListByItem handles GET /items/{item_id}/listings.
func (h *ListingHandler) ListByItem(w http.ResponseWriter, r *http.Request) {
	listings, err := h.listings.ListActiveByItem(r.Context(), chi.URLParam(r, "item_id"))
	if err != nil {
		WriteDomainError(w, err)
		return
	}
	views := make([]listingView, 0, len(listings))
	for _, l := range listings {
		views = append(views, newListingView(l))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"listings": views})
}
