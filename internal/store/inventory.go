package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

// InventoryStore persists inventory rows: stacks (unique_id NULL) and
// unique item instances (unique_id set). All methods take a DBTX so the
// ledger can compose them inside a transaction.
type InventoryStore struct{}

// NewInventoryStore creates an InventoryStore.
func NewInventoryStore() *InventoryStore {
	return &InventoryStore{}
}

const inventoryColumns = `id, owner_id, item_id, amount, unique_id, metadata, sellable, purchase_price`

func scanInventoryItem(row interface{ Scan(...any) error }) (*domain.InventoryItem, error) {
	var (
		it       domain.InventoryItem
		uniqueID sql.NullString
		metadata sql.NullString
		price    sql.NullInt64
	)
	if err := row.Scan(&it.ID, &it.OwnerID, &it.ItemID, &it.Amount, &uniqueID, &metadata, &it.Sellable, &price); err != nil {
		return nil, err
	}
	it.UniqueID = uniqueID.String
	it.PurchasePrice = intPtr(price)
	m, err := unmarshalMetadata(metadata)
	if err != nil {
		return nil, err
	}
	it.Metadata = m
	return &it, nil
}

// Insert adds an inventory row.
func (s *InventoryStore) Insert(ctx context.Context, q DBTX, it *domain.InventoryItem) error {
	metadata, err := marshalMetadata(it.Metadata)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO inventories (`+inventoryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.OwnerID, it.ItemID, it.Amount, nullStr(it.UniqueID), metadata, it.Sellable, nullInt(it.PurchasePrice))
	if err != nil {
		return fmt.Errorf("failed to insert inventory row: %w", err)
	}
	return nil
}

// SetAmount updates a row's amount, deleting the row when amount reaches
// zero: an empty stack is never retained.
func (s *InventoryStore) SetAmount(ctx context.Context, q DBTX, id string, amount int64) error {
	if amount <= 0 {
		return s.Delete(ctx, q, id)
	}
	_, err := q.ExecContext(ctx, `UPDATE inventories SET amount = ? WHERE id = ?`, amount, id)
	if err != nil {
		return fmt.Errorf("failed to update inventory amount: %w", err)
	}
	return nil
}

// Delete removes a row by id.
func (s *InventoryStore) Delete(ctx context.Context, q DBTX, id string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM inventories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete inventory row: %w", err)
	}
	return nil
}

// GetStack returns the stack row matching the full stack identity, or
// domain.ErrItemNotFound.
func (s *InventoryStore) GetStack(ctx context.Context, q DBTX, ownerID, itemID string, sellable bool, purchasePrice *int64) (*domain.InventoryItem, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+inventoryColumns+` FROM inventories
		WHERE owner_id = ? AND item_id = ? AND sellable = ?
		  AND ifnull(purchase_price, -1) = ifnull(?, -1)
		  AND unique_id IS NULL`,
		ownerID, itemID, sellable, nullInt(purchasePrice))
	it, err := scanInventoryItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stack: %w", err)
	}
	return it, nil
}

// ListStacks returns all stack rows for (owner, item) ordered by amount
// descending, so callers drain the largest stack first. When purchasePrice
// is non-nil only stacks with that purchase price are returned; when
// sellableOnly is set only sellable stacks are returned.
func (s *InventoryStore) ListStacks(ctx context.Context, q DBTX, ownerID, itemID string, purchasePrice *int64, sellableOnly bool) ([]*domain.InventoryItem, error) {
	query := `
		SELECT ` + inventoryColumns + ` FROM inventories
		WHERE owner_id = ? AND item_id = ? AND unique_id IS NULL`
	args := []any{ownerID, itemID}
	if purchasePrice != nil {
		query += ` AND purchase_price = ?`
		args = append(args, *purchasePrice)
	}
	if sellableOnly {
		query += ` AND sellable = 1`
	}
	query += ` ORDER BY amount DESC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stacks: %w", err)
	}
	defer rows.Close()

	var items []*domain.InventoryItem
	for rows.Next() {
		it, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stack: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetUnique returns the unique item row owned by ownerID, or
// domain.ErrItemNotFound.
func (s *InventoryStore) GetUnique(ctx context.Context, q DBTX, ownerID, itemID, uniqueID string) (*domain.InventoryItem, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+inventoryColumns+` FROM inventories
		WHERE owner_id = ? AND item_id = ? AND unique_id = ?`,
		ownerID, itemID, uniqueID)
	it, err := scanInventoryItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read unique item: %w", err)
	}
	return it, nil
}

// SetOwner reassigns a row to a new owner. Used for unique item transfers.
func (s *InventoryStore) SetOwner(ctx context.Context, q DBTX, id, newOwnerID string) error {
	_, err := q.ExecContext(ctx, `UPDATE inventories SET owner_id = ? WHERE id = ?`, newOwnerID, id)
	if err != nil {
		return fmt.Errorf("failed to reassign inventory row: %w", err)
	}
	return nil
}

// TotalAmount returns the summed amount over every row (stacks and
// uniques) for (owner, item).
func (s *InventoryStore) TotalAmount(ctx context.Context, q DBTX, ownerID, itemID string) (int64, error) {
	var total int64
	err := q.QueryRowContext(ctx, `
		SELECT ifnull(SUM(amount), 0) FROM inventories
		WHERE owner_id = ? AND item_id = ?`,
		ownerID, itemID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum inventory: %w", err)
	}
	return total, nil
}

// StackAmount returns the summed amount over stack rows only, optionally
// restricted to sellable stacks.
func (s *InventoryStore) StackAmount(ctx context.Context, q DBTX, ownerID, itemID string, sellableOnly bool) (int64, error) {
	query := `
		SELECT ifnull(SUM(amount), 0) FROM inventories
		WHERE owner_id = ? AND item_id = ? AND unique_id IS NULL`
	if sellableOnly {
		query += ` AND sellable = 1`
	}
	var total int64
	if err := q.QueryRowContext(ctx, query, ownerID, itemID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum stacks: %w", err)
	}
	return total, nil
}

// ListByOwner returns every inventory row for a user, stacks first, in a
// deterministic order.
func (s *InventoryStore) ListByOwner(ctx context.Context, q DBTX, ownerID string) ([]*domain.InventoryItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+inventoryColumns+` FROM inventories
		WHERE owner_id = ?
		ORDER BY item_id ASC, unique_id IS NOT NULL, id ASC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	var items []*domain.InventoryItem
	for rows.Next() {
		it, err := scanInventoryItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inventory row: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
