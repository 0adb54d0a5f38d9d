package service

import (
	"context"
	"database/sql"

	"github.com/bazaarlabs/tradepost/internal/domain"
	"github.com/bazaarlabs/tradepost/internal/ledger"
	"github.com/bazaarlabs/tradepost/internal/store"
)

// GrantRequest describes items to mint into a user's inventory.
type GrantRequest struct {
	UserID        string
	ItemID        string
	Amount        int64
	Metadata      map[string]any
	Sellable      bool
	PurchasePrice *int64
}

// InventoryService exposes the inventory ledger to callers: granting items
// and reading holdings.
type InventoryService struct {
	db        *sql.DB
	items     *store.InventoryStore
	inventory *ledger.InventoryLedger
}

// NewInventoryService creates an InventoryService.
func NewInventoryService(db *sql.DB, items *store.InventoryStore, inventory *ledger.InventoryLedger) *InventoryService {
	return &InventoryService{db: db, items: items, inventory: inventory}
}

// Grant mints items into a user's inventory. Metadata makes every unit a
// unique instance; without it the amount merges into the matching stack.
func (s *InventoryService) Grant(ctx context.Context, req GrantRequest) error {
	if req.UserID == "" || req.ItemID == "" {
		return &domain.ValidationError{Message: "user_id and item_id are required"}
	}
	if req.Amount <= 0 {
		return &domain.ValidationError{Message: "amount must be a positive integer"}
	}
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.inventory.Add(ctx, tx, req.UserID, req.ItemID, req.Amount, req.Metadata, req.Sellable, req.PurchasePrice)
	})
}

// List returns every inventory row a user holds.
func (s *InventoryService) List(ctx context.Context, userID string) ([]*domain.InventoryItem, error) {
	return s.items.ListByOwner(ctx, s.db, userID)
}

// Amount returns the total units of an item a user holds.
func (s *InventoryService) Amount(ctx context.Context, userID, itemID string) (int64, error) {
	return s.inventory.Amount(ctx, s.db, userID, itemID)
}
