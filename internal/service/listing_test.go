package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

func TestCreateListing_EscrowsStackUnit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.grantSellable(t, "alice", "potion", 5, nil)

	l, err := env.listingSvc.Create(ctx, CreateListingRequest{
		SellerID: "alice",
		ItemID:   "potion",
		Price:    40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Status != domain.ListingStatusActive {
		t.Errorf("status = %q, want active", l.Status)
	}

	// One unit left the seller's inventory at listing time.
	if a := env.amount(t, "alice", "potion"); a != 4 {
		t.Errorf("alice holds %d potions, want 4 after escrow", a)
	}

	// The listing rests on the ask side of the book.
	book := env.books.GetOrCreate("potion")
	if book.AskCount() != 1 {
		t.Errorf("book has %d asks, want 1", book.AskCount())
	}
}

func TestCreateListing_NotSellable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.grantStack(t, "alice", "potion", 5) // not sellable

	_, err := env.listingSvc.Create(ctx, CreateListingRequest{
		SellerID: "alice",
		ItemID:   "potion",
		Price:    40,
	})
	if !errors.Is(err, domain.ErrNotSellable) {
		t.Errorf("got %v, want ErrNotSellable", err)
	}
	if a := env.amount(t, "alice", "potion"); a != 5 {
		t.Errorf("alice holds %d potions, want 5 untouched", a)
	}
}

func TestCreateListing_NoInventory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)

	_, err := env.listingSvc.Create(ctx, CreateListingRequest{
		SellerID: "alice",
		ItemID:   "potion",
		Price:    40,
	})
	if !errors.Is(err, domain.ErrInsufficientInventory) {
		t.Errorf("got %v, want ErrInsufficientInventory", err)
	}
}

func TestCreateListing_UniqueItem(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	uid := env.grantUnique(t, "alice", "sword", map[string]any{"enchant": "fire"})

	l, err := env.listingSvc.Create(ctx, CreateListingRequest{
		SellerID: "alice",
		ItemID:   "sword",
		UniqueID: uid,
		Price:    150,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.UniqueID != uid || l.Metadata["enchant"] != "fire" {
		t.Errorf("listing escrow = %q %v, want the unit's identity", l.UniqueID, l.Metadata)
	}
	if a := env.amount(t, "alice", "sword"); a != 0 {
		t.Errorf("alice holds %d swords, want 0 after escrow", a)
	}
}

func TestCreateListing_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ve *domain.ValidationError
	if _, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "alice", ItemID: "potion", Price: 0}); !errors.As(err, &ve) {
		t.Errorf("zero price: got %v, want a validation error", err)
	}
	if _, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "", ItemID: "potion", Price: 10}); !errors.As(err, &ve) {
		t.Errorf("empty seller: got %v, want a validation error", err)
	}
}

func TestBuyListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.registerUser(t, "bob", 150)
	uid := env.grantUnique(t, "alice", "sword", map[string]any{"enchant": "fire"})

	l, err := env.listingSvc.Create(ctx, CreateListingRequest{
		SellerID: "alice",
		ItemID:   "sword",
		UniqueID: uid,
		Price:    100,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bought, err := env.listingSvc.Buy(ctx, l.ListingID, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bought.Status != domain.ListingStatusSold || bought.BuyerID != "bob" {
		t.Errorf("got %q buyer %q, want sold to bob", bought.Status, bought.BuyerID)
	}

	// The buyer pays the full price; the seller receives it less the
	// platform's 25% cut.
	if b := env.balance(t, "bob"); b != 50 {
		t.Errorf("bob's balance = %d, want 50", b)
	}
	if b := env.balance(t, "alice"); b != 75 {
		t.Errorf("alice's balance = %d, want 75", b)
	}

	// The unit landed with the buyer, identity intact.
	items, err := env.inventorySvc.List(ctx, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 || items[0].UniqueID != uid {
		t.Errorf("bob's inventory = %+v, want the escrowed unit", items)
	}
	if !items[0].Sellable {
		t.Error("a purchased unit should be sellable")
	}

	// The book entry is gone.
	if c := env.books.GetOrCreate("sword").AskCount(); c != 0 {
		t.Errorf("book has %d asks, want 0 after the sale", c)
	}
}

func TestBuyListing_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.registerUser(t, "bob", 30)
	env.grantSellable(t, "alice", "potion", 1, nil)

	l, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "alice", ItemID: "potion", Price: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = env.listingSvc.Buy(ctx, l.ListingID, "bob")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("got %v, want ErrInsufficientBalance", err)
	}

	// The listing survives the failed purchase with its escrow intact.
	reloaded, err := env.listingSvc.Get(ctx, l.ListingID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.Status != domain.ListingStatusActive {
		t.Errorf("status = %q, want still active", reloaded.Status)
	}
	if b := env.balance(t, "bob"); b != 30 {
		t.Errorf("bob's balance = %d, want the untouched 30", b)
	}
}

func TestBuyListing_AlreadySold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.registerUser(t, "bob", 100)
	env.registerUser(t, "carol", 100)
	env.grantSellable(t, "alice", "potion", 1, nil)

	l, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "alice", ItemID: "potion", Price: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.listingSvc.Buy(ctx, l.ListingID, "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = env.listingSvc.Buy(ctx, l.ListingID, "carol")
	if !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Errorf("got %v, want ErrAlreadyProcessed", err)
	}
	if b := env.balance(t, "carol"); b != 100 {
		t.Errorf("carol's balance = %d, want the untouched 100", b)
	}
}

func TestCancelListing_ReturnsEscrow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.grantSellable(t, "alice", "potion", 3, int64Ptr(10))

	l, err := env.listingSvc.Create(ctx, CreateListingRequest{
		SellerID:      "alice",
		ItemID:        "potion",
		PurchasePrice: int64Ptr(10),
		Price:         40,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a := env.amount(t, "alice", "potion"); a != 2 {
		t.Fatalf("alice holds %d potions after escrow, want 2", a)
	}

	cancelled, err := env.listingSvc.Cancel(ctx, l.ListingID, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.ListingStatusCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}
	if a := env.amount(t, "alice", "potion"); a != 3 {
		t.Errorf("alice holds %d potions, want the escrowed unit back", a)
	}
	if c := env.books.GetOrCreate("potion").AskCount(); c != 0 {
		t.Errorf("book has %d asks, want 0 after cancel", c)
	}
}

func TestCancelListing_NotOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.grantSellable(t, "alice", "potion", 1, nil)

	l, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "alice", ItemID: "potion", Price: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = env.listingSvc.Cancel(ctx, l.ListingID, "bob")
	if !errors.Is(err, domain.ErrNotOwner) {
		t.Errorf("got %v, want ErrNotOwner", err)
	}
}

func TestCancelListing_AfterSale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.registerUser(t, "bob", 100)
	env.grantSellable(t, "alice", "potion", 1, nil)

	l, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "alice", ItemID: "potion", Price: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.listingSvc.Buy(ctx, l.ListingID, "bob"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = env.listingSvc.Cancel(ctx, l.ListingID, "alice")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("got %v, want ErrInvalidState", err)
	}
}

func TestListActiveByItem_PriceTimePriority(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.grantSellable(t, "alice", "potion", 3, nil)

	cheap, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "alice", ItemID: "potion", Price: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dear, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "alice", ItemID: "potion", Price: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	listings, err := env.listingSvc.ListActiveByItem(ctx, "potion")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("got %d listings, want 2", len(listings))
	}
	if listings[0].ListingID != cheap.ListingID || listings[1].ListingID != dear.ListingID {
		t.Errorf("order = %q,%q, want cheapest first", listings[0].ListingID, listings[1].ListingID)
	}
}
