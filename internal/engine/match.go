package engine

import (
	"context"
	"time"

	"github.com/bazaarlabs/tradepost/internal/domain"
	"github.com/bazaarlabs/tradepost/internal/ledger"
	"github.com/bazaarlabs/tradepost/internal/store"
)

// Matcher pairs newly created listings with standing buy orders and vice
// versa, by price-time priority, and settles the match.
//
// Exactly one match is made per creation event. The caller holds the
// item's book lock across the call and passes the transaction the new
// entity was created in; settlement mutations join that transaction. Book
// entries are not touched here — the caller reconciles the book after the
// transaction commits.
type Matcher struct {
	listings  *store.ListingStore
	orders    *store.BuyOrderStore
	inventory *ledger.InventoryLedger
	credits   *ledger.CreditLedger
}

// NewMatcher creates a Matcher with the given dependencies.
func NewMatcher(
	listings *store.ListingStore,
	orders *store.BuyOrderStore,
	inventory *ledger.InventoryLedger,
	credits *ledger.CreditLedger,
) *Matcher {
	return &Matcher{
		listings:  listings,
		orders:    orders,
		inventory: inventory,
		credits:   credits,
	}
}

// MatchListing looks for the standing buy order best able to take the
// newly created listing: highest price at or above the listing's price,
// earliest creation breaking ties. On a match it settles and returns the
// fulfilled order; otherwise it returns nil.
func (m *Matcher) MatchListing(ctx context.Context, q store.DBTX, book *ItemBook, l *domain.MarketListing) (*domain.BuyOrder, error) {
	entry, ok := book.BestBid()
	if !ok || entry.Price < l.Price {
		return nil, nil
	}
	order, err := m.orders.Get(ctx, q, entry.ID)
	if err != nil {
		return nil, err
	}
	if err := m.settle(ctx, q, l, order); err != nil {
		return nil, err
	}
	return order, nil
}

// MatchBuyOrder looks for the active listing best able to fill the newly
// created buy order: lowest price at or below the order's maximum,
// earliest creation breaking ties. On a match it settles and returns the
// sold listing; otherwise it returns nil.
func (m *Matcher) MatchBuyOrder(ctx context.Context, q store.DBTX, book *ItemBook, o *domain.BuyOrder) (*domain.MarketListing, error) {
	entry, ok := book.BestAsk()
	if !ok || entry.Price > o.Price {
		return nil, nil
	}
	listing, err := m.listings.Get(ctx, q, entry.ID)
	if err != nil {
		return nil, err
	}
	if err := m.settle(ctx, q, listing, o); err != nil {
		return nil, err
	}
	return listing, nil
}

// settle executes a matched sale: the escrowed unit goes to the buyer, the
// seller is credited the listing's full price, and the buyer is refunded
// whatever was escrowed above it. Both rows transition conditionally, so a
// stale book entry surfaces as domain.ErrAlreadyProcessed and rolls the
// transaction back.
func (m *Matcher) settle(ctx context.Context, q store.DBTX, l *domain.MarketListing, o *domain.BuyOrder) error {
	// Deliver the escrowed unit, preserving its identity.
	if l.UniqueID != "" {
		if err := m.inventory.AddUnique(ctx, q, o.BuyerID, l.ItemID, l.UniqueID, l.Metadata, true, l.PurchasePrice); err != nil {
			return err
		}
	} else {
		if err := m.inventory.AddStack(ctx, q, o.BuyerID, l.ItemID, 1, true, l.PurchasePrice); err != nil {
			return err
		}
	}

	if err := m.credits.Credit(ctx, q, l.SellerID, l.Price); err != nil {
		return err
	}
	// Refund the escrow above the charged price.
	if o.Price > l.Price {
		if err := m.credits.Credit(ctx, q, o.BuyerID, o.Price-l.Price); err != nil {
			return err
		}
	}

	now := time.Now()
	if err := m.listings.MarkSold(ctx, q, l.ListingID, o.BuyerID, now); err != nil {
		return err
	}
	if err := m.orders.MarkFulfilled(ctx, q, o.OrderID, l.ListingID, now); err != nil {
		return err
	}

	l.Status = domain.ListingStatusSold
	l.BuyerID = o.BuyerID
	l.SoldAt = &now
	l.UpdatedAt = now
	o.Status = domain.BuyOrderStatusFulfilled
	o.SaleID = l.ListingID
	o.FulfilledAt = &now
	o.UpdatedAt = now
	return nil
}

// RebuildBooks loads every active listing and buy order into the book
// manager. Called once at startup so the matching index reflects the
// durable rows.
func RebuildBooks(ctx context.Context, q store.DBTX, books *BookManager, listings *store.ListingStore, orders *store.BuyOrderStore) error {
	active, err := listings.ListActive(ctx, q)
	if err != nil {
		return err
	}
	for _, l := range active {
		book := books.GetOrCreate(l.ItemID)
		book.Lock()
		book.InsertAsk(BookEntry{Price: l.Price, CreatedAt: l.CreatedAt, ID: l.ListingID})
		book.Unlock()
	}

	standing, err := orders.ListActive(ctx, q)
	if err != nil {
		return err
	}
	for _, o := range standing {
		book := books.GetOrCreate(o.ItemID)
		book.Lock()
		book.InsertBid(BookEntry{Price: o.Price, CreatedAt: o.CreatedAt, ID: o.OrderID})
		book.Unlock()
	}
	return nil
}
