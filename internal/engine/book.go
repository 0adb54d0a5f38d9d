package engine

import (
	"sync"
	"time"

	"github.com/google/btree"
)

// BookEntry represents one active listing (ask side) or one standing buy
// order (bid side) resting on an item's book. Amounts are always one unit.
type BookEntry struct {
	Price     int64
	CreatedAt time.Time
	ID        string // listing id or buy order id
}

// PriceLevel is an aggregated price level in a book. Every entry is a
// single unit, so Count doubles as the unit depth at that price.
type PriceLevel struct {
	Price int64
	Count int
}

// bidLess defines ordering for standing buy orders: price descending, then
// created_at ascending, then id ascending. Min() returns the best bid
// (highest price, earliest time) — price-time priority.
func bidLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// askLess defines ordering for active listings: price ascending, then
// created_at ascending, then id ascending. Min() returns the best ask
// (lowest price, earliest time).
func askLess(a, b BookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// ItemBook maintains the active listings and standing buy orders for a
// single item using B-trees with a secondary index for O(log n) removal by
// entry id. It is the matching index only; the store rows remain the
// durable source of truth.
type ItemBook struct {
	itemID string
	mu     sync.Mutex
	bids   *btree.BTreeG[BookEntry]
	asks   *btree.BTreeG[BookEntry]
	index  map[string]BookEntry // entry id → entry
}

// NewItemBook creates a book for the given item.
func NewItemBook(itemID string) *ItemBook {
	const degree = 32
	return &ItemBook{
		itemID: itemID,
		bids:   btree.NewG[BookEntry](degree, bidLess),
		asks:   btree.NewG[BookEntry](degree, askLess),
		index:  make(map[string]BookEntry),
	}
}

// Lock acquires the book lock. Listing and buy-order operations hold it
// for their whole matching pass, including the surrounding transaction.
func (b *ItemBook) Lock() {
	b.mu.Lock()
}

// Unlock releases the book lock.
func (b *ItemBook) Unlock() {
	b.mu.Unlock()
}

// InsertBid adds a standing buy order entry.
func (b *ItemBook) InsertBid(entry BookEntry) {
	b.bids.ReplaceOrInsert(entry)
	b.index[entry.ID] = entry
}

// InsertAsk adds an active listing entry.
func (b *ItemBook) InsertAsk(entry BookEntry) {
	b.asks.ReplaceOrInsert(entry)
	b.index[entry.ID] = entry
}

// Remove deletes an entry by id using the secondary index. It tries both
// sides; Delete is a no-op on the side that doesn't hold the entry.
func (b *ItemBook) Remove(id string) {
	entry, ok := b.index[id]
	if !ok {
		return
	}
	delete(b.index, id)
	b.bids.Delete(entry)
	b.asks.Delete(entry)
}

// BestBid returns the highest-priority buy order (highest price, earliest
// time).
func (b *ItemBook) BestBid() (BookEntry, bool) {
	return b.bids.Min()
}

// BestAsk returns the highest-priority listing (lowest price, earliest
// time).
func (b *ItemBook) BestAsk() (BookEntry, bool) {
	return b.asks.Min()
}

// TopBids returns up to n aggregated price levels from the bid side,
// ordered by price descending.
func (b *ItemBook) TopBids(n int) []PriceLevel {
	return topLevels(b.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// ordered by price ascending.
func (b *ItemBook) TopAsks(n int) []PriceLevel {
	return topLevels(b.asks, n)
}

// BidCount returns the number of standing buy orders on the book.
func (b *ItemBook) BidCount() int {
	return b.bids.Len()
}

// AskCount returns the number of active listings on the book.
func (b *ItemBook) AskCount() int {
	return b.asks.Len()
}

// topLevels iterates the B-tree in order and aggregates entries into at
// most n price levels.
func topLevels(tree *btree.BTreeG[BookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry BookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].Count++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{Price: entry.Price, Count: 1})
		return true
	})
	return levels
}

// BookManager is a thread-safe map of item id → ItemBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*ItemBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*ItemBook),
	}
}

// GetOrCreate returns the book for the given item, creating one if it
// doesn't already exist.
func (bm *BookManager) GetOrCreate(itemID string) *ItemBook {
	bm.mu.RLock()
	book, ok := bm.books[itemID]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[itemID]; ok {
		return book
	}
	book = NewItemBook(itemID)
	bm.books[itemID] = book
	return book
}
