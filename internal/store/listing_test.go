package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

var listingBase = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newActiveListing(sellerID, itemID string, price int64, createdAt time.Time) *domain.MarketListing {
	return &domain.MarketListing{
		ListingID: uuid.New().String(),
		SellerID:  sellerID,
		ItemID:    itemID,
		Price:     price,
		Status:    domain.ListingStatusActive,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestListingStore_InsertAndGet(t *testing.T) {
	db := testDB(t)
	s := NewListingStore()
	ctx := context.Background()

	l := newActiveListing("alice", "sword", 150, listingBase)
	l.UniqueID = "u1"
	l.Metadata = map[string]any{"enchant": "fire"}
	l.PurchasePrice = int64Ptr(90)
	if err := s.Insert(ctx, db, l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, db, l.ListingID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SellerID != "alice" || got.Price != 150 || got.Status != domain.ListingStatusActive {
		t.Errorf("got %+v, want alice's active 150-credit listing", got)
	}
	if got.UniqueID != "u1" || got.Metadata["enchant"] != "fire" {
		t.Errorf("escrow identity = %q %v, want u1 with fire enchant", got.UniqueID, got.Metadata)
	}
	if got.PurchasePrice == nil || *got.PurchasePrice != 90 {
		t.Errorf("purchase_price = %v, want 90", got.PurchasePrice)
	}
	if got.SoldAt != nil || got.BuyerID != "" {
		t.Errorf("unsold listing carries sale fields: %+v", got)
	}
}

func TestListingStore_GetNotFound(t *testing.T) {
	db := testDB(t)
	s := NewListingStore()

	_, err := s.Get(context.Background(), db, "missing")
	if !errors.Is(err, domain.ErrListingNotFound) {
		t.Errorf("got %v, want ErrListingNotFound", err)
	}
}

func TestListingStore_MarkSold(t *testing.T) {
	db := testDB(t)
	s := NewListingStore()
	ctx := context.Background()

	l := newActiveListing("alice", "potion", 40, listingBase)
	if err := s.Insert(ctx, db, l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	soldAt := listingBase.Add(time.Minute)
	if err := s.MarkSold(ctx, db, l.ListingID, "bob", soldAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, db, l.ListingID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.ListingStatusSold || got.BuyerID != "bob" {
		t.Errorf("got %q buyer %q, want sold to bob", got.Status, got.BuyerID)
	}
	if got.SoldAt == nil || !got.SoldAt.Equal(soldAt) {
		t.Errorf("sold_at = %v, want %v", got.SoldAt, soldAt)
	}

	// A sold listing cannot be sold or cancelled again.
	if err := s.MarkSold(ctx, db, l.ListingID, "carol", time.Now()); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Errorf("second sale: got %v, want ErrAlreadyProcessed", err)
	}
	if err := s.MarkCancelled(ctx, db, l.ListingID, time.Now()); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("cancel after sale: got %v, want ErrInvalidState", err)
	}
}

func TestListingStore_MarkCancelled(t *testing.T) {
	db := testDB(t)
	s := NewListingStore()
	ctx := context.Background()

	l := newActiveListing("alice", "potion", 40, listingBase)
	if err := s.Insert(ctx, db, l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.MarkCancelled(ctx, db, l.ListingID, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.MarkCancelled(ctx, db, l.ListingID, time.Now()); !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second cancel: got %v, want ErrInvalidState", err)
	}
}

func TestListingStore_ListActiveByItem_PriceTimeOrder(t *testing.T) {
	db := testDB(t)
	s := NewListingStore()
	ctx := context.Background()

	cheapLate := newActiveListing("a", "potion", 10, listingBase.Add(2*time.Second))
	cheapEarly := newActiveListing("b", "potion", 10, listingBase)
	dear := newActiveListing("c", "potion", 20, listingBase.Add(time.Second))
	other := newActiveListing("d", "sword", 5, listingBase)
	sold := newActiveListing("e", "potion", 1, listingBase)
	for _, l := range []*domain.MarketListing{cheapLate, cheapEarly, dear, other, sold} {
		if err := s.Insert(ctx, db, l); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := s.MarkSold(ctx, db, sold.ListingID, "bob", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.ListActiveByItem(ctx, db, "potion")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d listings, want 3", len(got))
	}
	want := []string{cheapEarly.ListingID, cheapLate.ListingID, dear.ListingID}
	for i, l := range got {
		if l.ListingID != want[i] {
			t.Errorf("position %d = %q, want %q", i, l.ListingID, want[i])
		}
	}
}

func TestListingStore_RecentSales(t *testing.T) {
	db := testDB(t)
	s := NewListingStore()
	ctx := context.Background()

	first := newActiveListing("a", "potion", 10, listingBase)
	second := newActiveListing("b", "potion", 12, listingBase)
	for _, l := range []*domain.MarketListing{first, second} {
		if err := s.Insert(ctx, db, l); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := s.MarkSold(ctx, db, first.ListingID, "x", listingBase.Add(time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.MarkSold(ctx, db, second.ListingID, "y", listingBase.Add(2*time.Minute)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sales, err := s.RecentSales(ctx, db, "potion", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("got %d sales, want 2", len(sales))
	}
	if sales[0].ListingID != second.ListingID {
		t.Errorf("most recent sale = %q, want %q", sales[0].ListingID, second.ListingID)
	}

	limited, err := s.RecentSales(ctx, db, "potion", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("got %d sales with limit 1, want 1", len(limited))
	}
}
