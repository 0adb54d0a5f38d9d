package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

// ListingStore persists market listings. A listing row carries the
// escrowed unit's identity until it resolves to sold or cancelled.
type ListingStore struct{}

// NewListingStore creates a ListingStore.
func NewListingStore() *ListingStore {
	return &ListingStore{}
}

const listingColumns = `listing_id, seller_id, item_id, price, status, unique_id,
	metadata, purchase_price, created_at, updated_at, sold_at, buyer_id`

func scanListing(row interface{ Scan(...any) error }) (*domain.MarketListing, error) {
	var (
		l                  domain.MarketListing
		status             string
		uniqueID, metadata sql.NullString
		price              sql.NullInt64
		createdAt, updated int64
		soldAt             sql.NullInt64
		buyerID            sql.NullString
	)
	err := row.Scan(&l.ListingID, &l.SellerID, &l.ItemID, &l.Price, &status,
		&uniqueID, &metadata, &price, &createdAt, &updated, &soldAt, &buyerID)
	if err != nil {
		return nil, err
	}
	l.Status = domain.ListingStatus(status)
	l.UniqueID = uniqueID.String
	l.PurchasePrice = intPtr(price)
	l.CreatedAt = fromUnixNano(createdAt)
	l.UpdatedAt = fromUnixNano(updated)
	l.SoldAt = timePtr(soldAt)
	l.BuyerID = buyerID.String
	if l.Metadata, err = unmarshalMetadata(metadata); err != nil {
		return nil, err
	}
	return &l, nil
}

// Insert adds a listing row.
func (s *ListingStore) Insert(ctx context.Context, q DBTX, l *domain.MarketListing) error {
	metadata, err := marshalMetadata(l.Metadata)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO market_listings (`+listingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ListingID, l.SellerID, l.ItemID, l.Price, string(l.Status),
		nullStr(l.UniqueID), metadata, nullInt(l.PurchasePrice),
		toUnixNano(l.CreatedAt), toUnixNano(l.UpdatedAt), nullTime(l.SoldAt), nullStr(l.BuyerID))
	if err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// Get retrieves a listing by id. It returns domain.ErrListingNotFound if
// the listing does not exist.
func (s *ListingStore) Get(ctx context.Context, q DBTX, listingID string) (*domain.MarketListing, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+listingColumns+` FROM market_listings WHERE listing_id = ?`, listingID)
	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrListingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read listing: %w", err)
	}
	return l, nil
}

// MarkSold transitions an active listing to sold, recording the buyer and
// sale time. The write is conditional on the listing still being active; it
// returns domain.ErrAlreadyProcessed otherwise.
func (s *ListingStore) MarkSold(ctx context.Context, q DBTX, listingID, buyerID string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE market_listings SET status = 'sold', buyer_id = ?, sold_at = ?, updated_at = ?
		WHERE listing_id = ? AND status = 'active'`,
		buyerID, toUnixNano(at), toUnixNano(at), listingID)
	if err != nil {
		return fmt.Errorf("failed to mark listing sold: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark listing sold: %w", err)
	}
	if n == 0 {
		return domain.ErrAlreadyProcessed
	}
	return nil
}

// MarkCancelled transitions an active listing to cancelled. The write is
// conditional on the listing still being active; it returns
// domain.ErrInvalidState otherwise.
func (s *ListingStore) MarkCancelled(ctx context.Context, q DBTX, listingID string, at time.Time) error {
	res, err := q.ExecContext(ctx, `
		UPDATE market_listings SET status = 'cancelled', updated_at = ?
		WHERE listing_id = ? AND status = 'active'`,
		toUnixNano(at), listingID)
	if err != nil {
		return fmt.Errorf("failed to cancel listing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to cancel listing: %w", err)
	}
	if n == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// ListActiveByItem returns the active listings for an item in price-time
// priority order: lowest price first, earliest creation breaking ties.
func (s *ListingStore) ListActiveByItem(ctx context.Context, q DBTX, itemID string) ([]*domain.MarketListing, error) {
	return s.list(ctx, q, `
		SELECT `+listingColumns+` FROM market_listings
		WHERE item_id = ? AND status = 'active'
		ORDER BY price ASC, created_at ASC, listing_id ASC`, itemID)
}

// ListActive returns every active listing. Used to rebuild the in-memory
// books at startup.
func (s *ListingStore) ListActive(ctx context.Context, q DBTX) ([]*domain.MarketListing, error) {
	return s.list(ctx, q, `
		SELECT `+listingColumns+` FROM market_listings
		WHERE status = 'active'
		ORDER BY created_at ASC, listing_id ASC`)
}

// ListBySeller returns a seller's listings, newest first.
func (s *ListingStore) ListBySeller(ctx context.Context, q DBTX, sellerID string) ([]*domain.MarketListing, error) {
	return s.list(ctx, q, `
		SELECT `+listingColumns+` FROM market_listings
		WHERE seller_id = ?
		ORDER BY created_at DESC, listing_id ASC`, sellerID)
}

// RecentSales returns up to limit sold listings for an item, most recent
// sale first.
func (s *ListingStore) RecentSales(ctx context.Context, q DBTX, itemID string, limit int) ([]*domain.MarketListing, error) {
	return s.list(ctx, q, `
		SELECT `+listingColumns+` FROM market_listings
		WHERE item_id = ? AND status = 'sold'
		ORDER BY sold_at DESC, listing_id ASC LIMIT ?`, itemID, limit)
}

func (s *ListingStore) list(ctx context.Context, q DBTX, query string, args ...any) ([]*domain.MarketListing, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	defer rows.Close()

	var listings []*domain.MarketListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}
