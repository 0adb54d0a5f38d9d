package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

// BuyOrderStore persists standing buy orders.
type BuyOrderStore struct{}

// NewBuyOrderStore creates a BuyOrderStore.
func NewBuyOrderStore() *BuyOrderStore {
	return &BuyOrderStore{}
}

const buyOrderColumns = `order_id, buyer_id, item_id, price, status,
	created_at, updated_at, fulfilled_at, sale_id`

func scanBuyOrder(row interface{ Scan(...any) error }) (*domain.BuyOrder, error) {
	var (
		o                  domain.BuyOrder
		status             string
		createdAt, updated int64
		fulfilledAt        sql.NullInt64
		saleID             sql.NullString
	)
	err := row.Scan(&o.OrderID, &o.BuyerID, &o.ItemID, &o.Price, &status,
		&createdAt, &updated, &fulfilledAt, &saleID)
	if err != nil {
		return nil, err
	}
	o.Status = domain.BuyOrderStatus(status)
	o.CreatedAt = fromUnixNano(createdAt)
	o.UpdatedAt = fromUnixNano(updated)
	o.FulfilledAt = timePtr(fulfilledAt)
	o.SaleID = saleID.String
	return &o, nil
}

// Insert adds a buy order row.
func (s *BuyOrderStore) Insert(ctx context.Context, q DBTX, o *domain.BuyOrder) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO buy_orders (`+buyOrderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderID, o.BuyerID, o.ItemID, o.Price, string(o.Status),
		toUnixNano(o.CreatedAt), toUnixNano(o.UpdatedAt), nullTime(o.FulfilledAt), nullStr(o.SaleID))
	if err != nil {
		return fmt.Errorf("failed to insert buy order: %w", err)
	}
	return nil
}

// Get retrieves a buy order by id. It returns domain.ErrBuyOrderNotFound
// if the order does not exist.
func (s *BuyOrderStore) Get(ctx context.Context, q DBTX, orderID string) (*domain.BuyOrder, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+buyOrderColumns+` FROM buy_orders WHERE order_id = ?`, orderID)
	o, err := scanBuyOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBuyOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read buy order: %w", err)
	}
	return o, nil
}

// MarkFulfilled transitions an active order to fulfilled, recording the
// sale (the matched listing's id) and time. The write is conditional on the
// order still being active; it returns domain.ErrAlreadyProcessed otherwise.
func (s *BuyOrderStore) MarkFulfilled(ctx context.Context, q DBTX, orderID, saleID string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE buy_orders SET status = 'fulfilled', sale_id = ?, fulfilled_at = ?, updated_at = ?
		WHERE order_id = ? AND status = 'active'`,
		saleID, toUnixNano(at), toUnixNano(at), orderID)
	if err != nil {
		return fmt.Errorf("failed to fulfill buy order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to fulfill buy order: %w", err)
	}
	if n == 0 {
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// MarkCancelled transitions an active order to cancelled. The write is
// conditional on the order still being active; it returns
// domain.ErrInvalidState otherwise.
func (s *BuyOrderStore) MarkCancelled(ctx context.Context, q DBTX, orderID string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE buy_orders SET status = 'cancelled', updated_at = ?
		WHERE order_id = ? AND status = 'active'`,
		toUnixNano(at), orderID)
	if err != nil {
		return fmt.Errorf("failed to cancel buy order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to cancel buy order: %w", err)
	}
	if n == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// ListActiveByItem returns the active buy orders for an item in price-time
// priority order: highest price first, earliest creation breaking ties.
func (s *BuyOrderStore) ListActiveByItem(ctx context.Context, q DBTX, itemID string) ([]*domain.BuyOrder, error) {
	return s.list(ctx, q, `
		SELECT `+buyOrderColumns+` FROM buy_orders
		WHERE item_id = ? AND status = 'active'
		ORDER BY price DESC, created_at ASC, order_id ASC`, itemID)
}

// ListActive returns every active buy order. Used to rebuild the in-memory
// books at startup.
func (s *BuyOrderStore) ListActive(ctx context.Context, q DBTX) ([]*domain.BuyOrder, error) {
	return s.list(ctx, q, `
		SELECT `+buyOrderColumns+` FROM buy_orders
		WHERE status = 'active'
		ORDER BY created_at ASC, order_id ASC`)
}

// ListByBuyer returns a buyer's orders, newest first.
func (s *BuyOrderStore) ListByBuyer(ctx context.Context, q DBTX, buyerID string) ([]*domain.BuyOrder, error) {
	return s.list(ctx, q, `
		SELECT `+buyOrderColumns+` FROM buy_orders
		WHERE buyer_id = ?
		ORDER BY created_at DESC, order_id ASC`, buyerID)
}

func (s *BuyOrderStore) list(ctx context.Context, q DBTX, query string, args ...any) ([]*domain.BuyOrder, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list buy orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.BuyOrder
	for rows.Next() {
		o, err := scanBuyOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan buy order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}
