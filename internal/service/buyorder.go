package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarlabs/tradepost/internal/domain"
	"github.com/bazaarlabs/tradepost/internal/engine"
	"github.com/bazaarlabs/tradepost/internal/ledger"
	"github.com/bazaarlabs/tradepost/internal/store"
)

// BuyOrderService runs the standing buy order lifecycle. The full maximum
// price is escrowed from the buyer's balance at creation; cancellation
// refunds it, fulfillment refunds only the slice above the matched
// listing's price. Creation invokes the matcher against active listings.
type BuyOrderService struct {
	db      *sql.DB
	orders  *store.BuyOrderStore
	credits *ledger.CreditLedger
	matcher *engine.Matcher
	books   *engine.BookManager
}

// NewBuyOrderService creates a BuyOrderService.
func NewBuyOrderService(
	db *sql.DB,
	orders *store.BuyOrderStore,
	credits *ledger.CreditLedger,
	matcher *engine.Matcher,
	books *engine.BookManager,
) *BuyOrderService {
	return &BuyOrderService{
		db:      db,
		orders:  orders,
		credits: credits,
		matcher: matcher,
		books:   books,
	}
}

// Create escrows maxPrice from the buyer, inserts the active order, and
// matches it against the cheapest qualifying listing. Escrow and insert
// share one transaction.
func (s *BuyOrderService) Create(ctx context.Context, buyerID, itemID string, maxPrice int64) (*domain.BuyOrder, error) {
	if buyerID == "" || itemID == "" {
		return nil, &domain.ValidationError{Message: "buyer_id and item_id are required"}
	}
	if maxPrice <= 0 {
		return nil, &domain.ValidationError{Message: "max_price must be a positive integer"}
	}

	book := s.books.GetOrCreate(itemID)
	book.Lock()
	defer book.Unlock()

	var (
		o       *domain.BuyOrder
		matched *domain.MarketListing
	)
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := s.credits.Debit(ctx, tx, buyerID, maxPrice); err != nil {
			return err
		}

		now := time.Now()
		o = &domain.BuyOrder{
			OrderID:   uuid.New().String(),
			BuyerID:   buyerID,
			ItemID:    itemID,
			Price:     maxPrice,
			Status:    domain.BuyOrderStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.orders.Insert(ctx, tx, o); err != nil {
			return err
		}

		var err error
		matched, err = s.matcher.MatchBuyOrder(ctx, tx, book, o)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Reconcile the book now that the transaction is durable.
	if matched != nil {
		book.Remove(matched.ListingID)
	} else {
		book.InsertBid(engine.BookEntry{Price: o.Price, CreatedAt: o.CreatedAt, ID: o.OrderID})
	}
	return o, nil
}

// Cancel flips an active order to cancelled and refunds the escrowed
// maximum price to the buyer.
func (s *BuyOrderService) Cancel(ctx context.Context, orderID, buyerID string) (*domain.BuyOrder, error) {
	o, err := s.orders.Get(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	book := s.books.GetOrCreate(o.ItemID)
	book.Lock()
	defer book.Unlock()

	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		o, err = s.orders.Get(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.BuyerID != buyerID {
			return domain.ErrNotOwner
		}
		now := time.Now()
		if err := s.orders.MarkCancelled(ctx, tx, orderID, now); err != nil {
			return err
		}
		o.Status = domain.BuyOrderStatusCancelled
		o.UpdatedAt = now
		return s.credits.Credit(ctx, tx, buyerID, o.Price)
	})
	if err != nil {
		return nil, err
	}

	book.Remove(orderID)
	return o, nil
}

// Get returns a buy order by id.
func (s *BuyOrderService) Get(ctx context.Context, orderID string) (*domain.BuyOrder, error) {
	return s.orders.Get(ctx, s.db, orderID)
}

// ListByBuyer returns a buyer's orders, newest first.
func (s *BuyOrderService) ListByBuyer(ctx context.Context, buyerID string) ([]*domain.BuyOrder, error) {
	return s.orders.ListByBuyer(ctx, s.db, buyerID)
}
