package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/bazaarlabs/tradepost/internal/domain"
	"github.com/bazaarlabs/tradepost/internal/store"
)

// InventoryLedger owns per-user item holdings. Every method takes a DBTX;
// callers compose ledger mutations with entity-row mutations inside a
// single transaction so the pair commits or rolls back as a unit.
type InventoryLedger struct {
	items *store.InventoryStore
}

// NewInventoryLedger creates an InventoryLedger over the given store.
func NewInventoryLedger(items *store.InventoryStore) *InventoryLedger {
	return &InventoryLedger{items: items}
}

// DrainedPortion records one slice of a stack drain: how many units were
// taken and the sale terms of the stack they came from. Receivers of a
// transfer re-add units under the same terms.
type DrainedPortion struct {
	Amount        int64
	Sellable      bool
	PurchasePrice *int64
}

// Add mints items into a user's inventory.
//
// With metadata, every unit becomes its own unique row carrying a freshly
// generated unique id and a clone of the metadata. Without metadata, the
// amount merges into the stack matching (itemID, sellable, purchasePrice),
// creating the stack if absent.
func (l *InventoryLedger) Add(ctx context.Context, q store.DBTX, ownerID, itemID string, amount int64, metadata map[string]any, sellable bool, purchasePrice *int64) error {
	if metadata != nil {
		for i := int64(0); i < amount; i++ {
			it := &domain.InventoryItem{
				ID:            uuid.New().String(),
				OwnerID:       ownerID,
				ItemID:        itemID,
				Amount:        1,
				UniqueID:      uuid.New().String(),
				Metadata:      cloneMetadata(metadata),
				Sellable:      sellable,
				PurchasePrice: purchasePrice,
			}
			if err := l.items.Insert(ctx, q, it); err != nil {
				return err
			}
		}
		return nil
	}
	return l.addToStack(ctx, q, ownerID, itemID, amount, sellable, purchasePrice)
}

// AddUnique re-inserts a unique item preserving its identity. Used when an
// escrowed or traded unique unit changes hands: the unique id and metadata
// must survive the move.
func (l *InventoryLedger) AddUnique(ctx context.Context, q store.DBTX, ownerID, itemID, uniqueID string, metadata map[string]any, sellable bool, purchasePrice *int64) error {
	it := &domain.InventoryItem{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		ItemID:        itemID,
		Amount:        1,
		UniqueID:      uniqueID,
		Metadata:      cloneMetadata(metadata),
		Sellable:      sellable,
		PurchasePrice: purchasePrice,
	}
	return l.items.Insert(ctx, q, it)
}

// AddStack merges amount units into the stack matching
// (itemID, sellable, purchasePrice), creating it if absent.
func (l *InventoryLedger) AddStack(ctx context.Context, q store.DBTX, ownerID, itemID string, amount int64, sellable bool, purchasePrice *int64) error {
	return l.addToStack(ctx, q, ownerID, itemID, amount, sellable, purchasePrice)
}

func (l *InventoryLedger) addToStack(ctx context.Context, q store.DBTX, ownerID, itemID string, amount int64, sellable bool, purchasePrice *int64) error {
	existing, err := l.items.GetStack(ctx, q, ownerID, itemID, sellable, purchasePrice)
	if err == nil {
		return l.items.SetAmount(ctx, q, existing.ID, existing.Amount+amount)
	}
	if err != domain.ErrItemNotFound {
		return err
	}
	return l.items.Insert(ctx, q, &domain.InventoryItem{
		ID:            uuid.New().String(),
		OwnerID:       ownerID,
		ItemID:        itemID,
		Amount:        amount,
		Sellable:      sellable,
		PurchasePrice: purchasePrice,
	})
}

// Remove takes amount units of an item out of the user's stacks, draining
// the largest stack first. It returns domain.ErrInsufficientInventory if
// the stacks hold fewer than amount units in total; the sufficiency check
// and the drain read the same snapshot (the caller's transaction).
func (l *InventoryLedger) Remove(ctx context.Context, q store.DBTX, ownerID, itemID string, amount int64) error {
	_, err := l.Drain(ctx, q, ownerID, itemID, amount, nil, false)
	return err
}

// Drain is Remove with the drained portions reported, optionally
// restricted to stacks with a given purchase price or to sellable stacks.
// Each returned portion records the terms of the stack it came from.
func (l *InventoryLedger) Drain(ctx context.Context, q store.DBTX, ownerID, itemID string, amount int64, purchasePrice *int64, sellableOnly bool) ([]DrainedPortion, error) {
	stacks, err := l.items.ListStacks(ctx, q, ownerID, itemID, purchasePrice, sellableOnly)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, s := range stacks {
		total += s.Amount
	}
	if total < amount {
		return nil, domain.ErrInsufficientInventory
	}

	remaining := amount
	var portions []DrainedPortion
	for _, s := range stacks {
		if remaining == 0 {
			break
		}
		take := s.Amount
		if take > remaining {
			take = remaining
		}
		if err := l.items.SetAmount(ctx, q, s.ID, s.Amount-take); err != nil {
			return nil, err
		}
		portions = append(portions, DrainedPortion{
			Amount:        take,
			Sellable:      s.Sellable,
			PurchasePrice: s.PurchasePrice,
		})
		remaining -= take
	}
	return portions, nil
}

// RemoveUnique deletes exactly one unique row and returns it, so callers
// can escrow its identity. It returns domain.ErrItemNotFound if the owner
// holds no such unit.
func (l *InventoryLedger) RemoveUnique(ctx context.Context, q store.DBTX, ownerID, itemID, uniqueID string) (*domain.InventoryItem, error) {
	it, err := l.items.GetUnique(ctx, q, ownerID, itemID, uniqueID)
	if err != nil {
		return nil, err
	}
	if err := l.items.Delete(ctx, q, it.ID); err != nil {
		return nil, err
	}
	return it, nil
}

// TransferUnique moves one unique row from one owner to another in place.
// It returns domain.ErrItemNotFound if the source owner holds no such unit.
func (l *InventoryLedger) TransferUnique(ctx context.Context, q store.DBTX, fromUserID, toUserID, itemID, uniqueID string) error {
	it, err := l.items.GetUnique(ctx, q, fromUserID, itemID, uniqueID)
	if err != nil {
		return err
	}
	return l.items.SetOwner(ctx, q, it.ID, toUserID)
}

// SetAmount overwrites the amount of the user's default stack for an item
// (the stack with no sale terms). Zero clears it.
func (l *InventoryLedger) SetAmount(ctx context.Context, q store.DBTX, ownerID, itemID string, amount int64) error {
	existing, err := l.items.GetStack(ctx, q, ownerID, itemID, false, nil)
	if err == nil {
		return l.items.SetAmount(ctx, q, existing.ID, amount)
	}
	if err != domain.ErrItemNotFound {
		return err
	}
	if amount <= 0 {
		return nil
	}
	return l.items.Insert(ctx, q, &domain.InventoryItem{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		ItemID:  itemID,
		Amount:  amount,
	})
}

// Amount returns the total units of an item a user holds, across stacks
// and unique instances.
func (l *InventoryLedger) Amount(ctx context.Context, q store.DBTX, ownerID, itemID string) (int64, error) {
	return l.items.TotalAmount(ctx, q, ownerID, itemID)
}

// HasStack reports whether the user's stacks (ignoring unique instances)
// hold at least amount units of the item.
func (l *InventoryLedger) HasStack(ctx context.Context, q store.DBTX, ownerID, itemID string, amount int64) (bool, error) {
	total, err := l.items.StackAmount(ctx, q, ownerID, itemID, false)
	if err != nil {
		return false, err
	}
	return total >= amount, nil
}

// HasSellableStack is HasStack restricted to sellable stacks.
func (l *InventoryLedger) HasSellableStack(ctx context.Context, q store.DBTX, ownerID, itemID string, amount int64) (bool, error) {
	total, err := l.items.StackAmount(ctx, q, ownerID, itemID, true)
	if err != nil {
		return false, err
	}
	return total >= amount, nil
}

// HasUnique reports whether the user holds the given unique instance.
func (l *InventoryLedger) HasUnique(ctx context.Context, q store.DBTX, ownerID, itemID, uniqueID string) (bool, error) {
	_, err := l.items.GetUnique(ctx, q, ownerID, itemID, uniqueID)
	if err == domain.ErrItemNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// StackAmountWithPrice returns the total units held in stacks sharing the
// given purchase-price identity. Trade lines with a purchase price validate
// against this.
func (l *InventoryLedger) StackAmountWithPrice(ctx context.Context, q store.DBTX, ownerID, itemID string, purchasePrice *int64) (int64, error) {
	stacks, err := l.items.ListStacks(ctx, q, ownerID, itemID, purchasePrice, false)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, s := range stacks {
		total += s.Amount
	}
	return total, nil
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
