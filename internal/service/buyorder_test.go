package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

func TestCreateBuyOrder_EscrowsMaxPrice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "bob", 100)

	o, err := env.orderSvc.Create(ctx, "bob", "potion", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != domain.BuyOrderStatusActive {
		t.Errorf("status = %q, want active", o.Status)
	}

	// The full maximum is escrowed up front.
	if b := env.balance(t, "bob"); b != 40 {
		t.Errorf("bob's balance = %d, want 40", b)
	}
	if c := env.books.GetOrCreate("potion").BidCount(); c != 1 {
		t.Errorf("book has %d bids, want 1", c)
	}
}

func TestCreateBuyOrder_InsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "bob", 30)

	_, err := env.orderSvc.Create(ctx, "bob", "potion", 60)
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("got %v, want ErrInsufficientBalance", err)
	}
	if b := env.balance(t, "bob"); b != 30 {
		t.Errorf("bob's balance = %d, want the untouched 30", b)
	}
	if c := env.books.GetOrCreate("potion").BidCount(); c != 0 {
		t.Errorf("book has %d bids, want 0", c)
	}
}

func TestCreateBuyOrder_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ve *domain.ValidationError
	if _, err := env.orderSvc.Create(ctx, "bob", "potion", 0); !errors.As(err, &ve) {
		t.Errorf("zero price: got %v, want a validation error", err)
	}
	if _, err := env.orderSvc.Create(ctx, "", "potion", 10); !errors.As(err, &ve) {
		t.Errorf("empty buyer: got %v, want a validation error", err)
	}
}

func TestCreateBuyOrder_MatchesStandingListing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.registerUser(t, "bob", 50)
	env.grantSellable(t, "alice", "potion", 1, nil)

	l, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "alice", ItemID: "potion", Price: 40})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Bob offers up to 50 for a 40-credit listing: he pays 40, the
	// overpaid escrow comes straight back.
	o, err := env.orderSvc.Create(ctx, "bob", "potion", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Status != domain.BuyOrderStatusFulfilled || o.SaleID != l.ListingID {
		t.Fatalf("order = %q sale %q, want fulfilled by the listing", o.Status, o.SaleID)
	}

	if b := env.balance(t, "bob"); b != 10 {
		t.Errorf("bob's balance = %d, want 10 after the refund", b)
	}
	// The matched settlement credits the seller the full listing price.
	if b := env.balance(t, "alice"); b != 40 {
		t.Errorf("alice's balance = %d, want the full 40", b)
	}
	if a := env.amount(t, "bob", "potion"); a != 1 {
		t.Errorf("bob holds %d potions, want 1", a)
	}

	// Both book sides are clear.
	book := env.books.GetOrCreate("potion")
	if book.AskCount() != 0 || book.BidCount() != 0 {
		t.Errorf("book = %d asks %d bids, want both empty", book.AskCount(), book.BidCount())
	}
}

func TestCreateListing_MatchesHighestStandingOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.registerUser(t, "low", 100)
	env.registerUser(t, "high", 100)
	env.grantSellable(t, "alice", "potion", 1, nil)

	// The 10-credit order arrives first, the 12-credit order second.
	if _, err := env.orderSvc.Create(ctx, "low", "potion", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	highOrder, err := env.orderSvc.Create(ctx, "high", "potion", 12)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A listing at 11 matches the later but higher 12-credit order.
	l, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "alice", ItemID: "potion", Price: 11})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Status != domain.ListingStatusSold || l.BuyerID != "high" {
		t.Fatalf("listing = %q buyer %q, want sold to high", l.Status, l.BuyerID)
	}

	fulfilled, err := env.orderSvc.Get(ctx, highOrder.OrderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fulfilled.Status != domain.BuyOrderStatusFulfilled {
		t.Errorf("high order = %q, want fulfilled", fulfilled.Status)
	}
	// Settled at the listing's price: 12 escrowed, 11 paid, 1 refunded.
	if b := env.balance(t, "high"); b != 89 {
		t.Errorf("high's balance = %d, want 89", b)
	}
	if b := env.balance(t, "alice"); b != 11 {
		t.Errorf("alice's balance = %d, want 11", b)
	}

	// The losing order still rests on the book.
	if c := env.books.GetOrCreate("potion").BidCount(); c != 1 {
		t.Errorf("book has %d bids, want the 10-credit order left", c)
	}
}

func TestCreateBuyOrder_SamePriceEarlierOrderWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "alice", 0)
	env.registerUser(t, "first", 100)
	env.registerUser(t, "second", 100)
	env.grantSellable(t, "alice", "potion", 1, nil)

	early, err := env.orderSvc.Create(ctx, "first", "potion", 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.orderSvc.Create(ctx, "second", "potion", 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	l, err := env.listingSvc.Create(ctx, CreateListingRequest{SellerID: "alice", ItemID: "potion", Price: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.BuyerID != "first" {
		t.Errorf("buyer = %q, want the earlier order's buyer", l.BuyerID)
	}

	fulfilled, err := env.orderSvc.Get(ctx, early.OrderID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fulfilled.Status != domain.BuyOrderStatusFulfilled {
		t.Errorf("early order = %q, want fulfilled", fulfilled.Status)
	}
}

func TestCancelBuyOrder_RefundsEscrow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "bob", 100)

	o, err := env.orderSvc.Create(ctx, "bob", "potion", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b := env.balance(t, "bob"); b != 40 {
		t.Fatalf("bob's balance = %d, want 40 after escrow", b)
	}

	cancelled, err := env.orderSvc.Cancel(ctx, o.OrderID, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.BuyOrderStatusCancelled {
		t.Errorf("status = %q, want cancelled", cancelled.Status)
	}
	if b := env.balance(t, "bob"); b != 100 {
		t.Errorf("bob's balance = %d, want the full refund", b)
	}
	if c := env.books.GetOrCreate("potion").BidCount(); c != 0 {
		t.Errorf("book has %d bids, want 0", c)
	}

	// Cancellation is not repeatable.
	_, err = env.orderSvc.Cancel(ctx, o.OrderID, "bob")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("second cancel: got %v, want ErrInvalidState", err)
	}
	if b := env.balance(t, "bob"); b != 100 {
		t.Errorf("bob's balance = %d, want no double refund", b)
	}
}

func TestCancelBuyOrder_NotOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "bob", 100)

	o, err := env.orderSvc.Create(ctx, "bob", "potion", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = env.orderSvc.Cancel(ctx, o.OrderID, "carol")
	if !errors.Is(err, domain.ErrNotOwner) {
		t.Errorf("got %v, want ErrNotOwner", err)
	}
}

func TestBuyOrder_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.orderSvc.Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrBuyOrderNotFound) {
		t.Errorf("got %v, want ErrBuyOrderNotFound", err)
	}
}

func TestListByBuyer_Orders(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.registerUser(t, "bob", 100)

	if _, err := env.orderSvc.Create(ctx, "bob", "potion", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := env.orderSvc.Create(ctx, "bob", "sword", 20); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	orders, err := env.orderSvc.ListByBuyer(ctx, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orders) != 2 {
		t.Errorf("got %d orders, want 2", len(orders))
	}
}
