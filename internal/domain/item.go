package domain

// InventoryItem is a single inventory row: either a stack of identical
// commodity units or a unique item instance.
//
// A stack is identified by (OwnerID, ItemID, Sellable, PurchasePrice) and
// holds Amount > 0 units; rows sharing that identity are merged, never
// duplicated. A unique item carries a one-off UniqueID and metadata
// payload, always has Amount == 1, and is never merged.
type InventoryItem struct {
	ID            string
	OwnerID       string
	ItemID        string
	Amount        int64
	UniqueID      string         // empty for stacks
	Metadata      map[string]any // nil for stacks
	Sellable      bool
	PurchasePrice *int64 // nil when the unit has no purchase history
}

// IsUnique reports whether the row is a unique item instance.
func (i *InventoryItem) IsUnique() bool {
	return i.UniqueID != ""
}

// SamePurchasePrice reports whether two optional purchase prices carry the
// same identity (both unset, or both set to the same value). Stack merging
// and trade-line identity both key on this.
func SamePurchasePrice(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
