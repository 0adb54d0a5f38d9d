package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/bazaarlabs/tradepost/internal/cache"
	"github.com/bazaarlabs/tradepost/internal/engine"
	"github.com/bazaarlabs/tradepost/internal/ledger"
	"github.com/bazaarlabs/tradepost/internal/store"
)

const testFeePercent = 25

// testEnv bundles every dependency the service tests need, backed by an
// in-memory database.
type testEnv struct {
	db        *sql.DB
	users     *store.UserStore
	items     *store.InventoryStore
	inventory *ledger.InventoryLedger
	credits   *ledger.CreditLedger
	books     *engine.BookManager

	userSvc      *UserService
	inventorySvc *InventoryService
	tradeSvc     *TradeService
	listingSvc   *ListingService
	orderSvc     *BuyOrderService
	marketSvc    *MarketService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore()
	items := store.NewInventoryStore()
	trades := store.NewTradeStore()
	listings := store.NewListingStore()
	orders := store.NewBuyOrderStore()

	inventory := ledger.NewInventoryLedger(items)
	credits := ledger.NewCreditLedger(users)
	books := engine.NewBookManager()
	matcher := engine.NewMatcher(listings, orders, inventory, credits)

	mc := cache.NewMemoryCache()
	t.Cleanup(func() { mc.Close() })

	return &testEnv{
		db:        db,
		users:     users,
		items:     items,
		inventory: inventory,
		credits:   credits,
		books:     books,

		userSvc:      NewUserService(db, users),
		inventorySvc: NewInventoryService(db, items, inventory),
		tradeSvc:     NewTradeService(db, trades, items, inventory),
		listingSvc:   NewListingService(db, listings, inventory, credits, matcher, books, testFeePercent),
		orderSvc:     NewBuyOrderService(db, orders, credits, matcher, books),
		marketSvc:    NewMarketService(db, listings, books, mc, time.Minute),
	}
}

// registerUser creates a user with a starting balance.
func (env *testEnv) registerUser(t *testing.T, userID string, balance int64) {
	t.Helper()
	if _, err := env.userSvc.Register(context.Background(), userID, balance); err != nil {
		t.Fatalf("failed to register user %s: %v", userID, err)
	}
}

// grantStack mints stackable units into a user's inventory.
func (env *testEnv) grantStack(t *testing.T, userID, itemID string, amount int64) {
	t.Helper()
	err := env.inventorySvc.Grant(context.Background(), GrantRequest{
		UserID: userID,
		ItemID: itemID,
		Amount: amount,
	})
	if err != nil {
		t.Fatalf("failed to grant %d %s to %s: %v", amount, itemID, userID, err)
	}
}

// grantUnique mints one unique item and returns its unique id.
func (env *testEnv) grantUnique(t *testing.T, userID, itemID string, metadata map[string]any) string {
	t.Helper()
	if metadata == nil {
		metadata = map[string]any{}
	}
	err := env.inventorySvc.Grant(context.Background(), GrantRequest{
		UserID:   userID,
		ItemID:   itemID,
		Amount:   1,
		Metadata: metadata,
	})
	if err != nil {
		t.Fatalf("failed to grant unique %s to %s: %v", itemID, userID, err)
	}
	items, err := env.inventorySvc.List(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to list inventory of %s: %v", userID, err)
	}
	for _, it := range items {
		if it.ItemID == itemID && it.IsUnique() {
			return it.UniqueID
		}
	}
	t.Fatalf("no unique %s found for %s", itemID, userID)
	return ""
}

// grantSellable mints sellable stackable units with an optional purchase price.
func (env *testEnv) grantSellable(t *testing.T, userID, itemID string, amount int64, price *int64) {
	t.Helper()
	err := env.inventorySvc.Grant(context.Background(), GrantRequest{
		UserID:        userID,
		ItemID:        itemID,
		Amount:        amount,
		Sellable:      true,
		PurchasePrice: price,
	})
	if err != nil {
		t.Fatalf("failed to grant sellable %s to %s: %v", itemID, userID, err)
	}
}

func (env *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	b, err := env.userSvc.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to read balance of %s: %v", userID, err)
	}
	return b
}

func (env *testEnv) amount(t *testing.T, userID, itemID string) int64 {
	t.Helper()
	a, err := env.inventorySvc.Amount(context.Background(), userID, itemID)
	if err != nil {
		t.Fatalf("failed to read inventory of %s: %v", userID, err)
	}
	return a
}

func int64Ptr(v int64) *int64 {
	return &v
}
