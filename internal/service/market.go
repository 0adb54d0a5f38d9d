package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/bazaarlabs/tradepost/internal/cache"
	"github.com/bazaarlabs/tradepost/internal/engine"
	"github.com/bazaarlabs/tradepost/internal/store"
)

const snapshotDepth = 10

// SnapshotLevel is one aggregated price level in a market snapshot.
type SnapshotLevel struct {
	Price int64 `json:"price"`
	Count int   `json:"count"`
}

// RecentSale is one settled sale in a market snapshot.
type RecentSale struct {
	Price  int64     `json:"price"`
	SoldAt time.Time `json:"sold_at"`
}

// MarketSnapshot summarizes an item's market: best prices, book depth,
// and recent sales.
type MarketSnapshot struct {
	ItemID      string          `json:"item_id"`
	BestAsk     *int64          `json:"best_ask,omitempty"`
	BestBid     *int64          `json:"best_bid,omitempty"`
	Listings    []SnapshotLevel `json:"listings"`
	BuyOrders   []SnapshotLevel `json:"buy_orders"`
	RecentSales []RecentSale    `json:"recent_sales"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// MarketService serves per-item market snapshots through the cache.
type MarketService struct {
	db       *sql.DB
	listings *store.ListingStore
	books    *engine.BookManager
	cache    cache.Cache
	ttl      time.Duration
}

// NewMarketService creates a MarketService.
func NewMarketService(db *sql.DB, listings *store.ListingStore, books *engine.BookManager, c cache.Cache, ttl time.Duration) *MarketService {
	return &MarketService{db: db, listings: listings, books: books, cache: c, ttl: ttl}
}

// Snapshot returns the market snapshot for an item, cached for the
// configured TTL.
func (s *MarketService) Snapshot(ctx context.Context, itemID string) (*MarketSnapshot, error) {
	raw, err := s.cache.GetOrSet(ctx, "market:"+itemID, s.ttl, func() ([]byte, error) {
		snap, err := s.build(ctx, itemID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(snap)
	})
	if err != nil {
		return nil, err
	}

	var snap MarketSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *MarketService) build(ctx context.Context, itemID string) (*MarketSnapshot, error) {
	snap := &MarketSnapshot{
		ItemID:      itemID,
		Listings:    []SnapshotLevel{},
		BuyOrders:   []SnapshotLevel{},
		RecentSales: []RecentSale{},
		GeneratedAt: time.Now(),
	}

	book := s.books.GetOrCreate(itemID)
	book.Lock()
	if best, ok := book.BestAsk(); ok {
		snap.BestAsk = &best.Price
	}
	if best, ok := book.BestBid(); ok {
		snap.BestBid = &best.Price
	}
	asks := book.TopAsks(snapshotDepth)
	bids := book.TopBids(snapshotDepth)
	book.Unlock()

	for _, lvl := range asks {
		snap.Listings = append(snap.Listings, SnapshotLevel{Price: lvl.Price, Count: lvl.Count})
	}
	for _, lvl := range bids {
		snap.BuyOrders = append(snap.BuyOrders, SnapshotLevel{Price: lvl.Price, Count: lvl.Count})
	}

	sales, err := s.listings.RecentSales(ctx, s.db, itemID, snapshotDepth)
	if err != nil {
		return nil, err
	}
	for _, l := range sales {
		sale := RecentSale{Price: l.Price}
		if l.SoldAt != nil {
			sale.SoldAt = *l.SoldAt
		}
		snap.RecentSales = append(snap.RecentSales, sale)
	}
	return snap, nil
}
