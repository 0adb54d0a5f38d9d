package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarlabs/tradepost/internal/domain"
	"github.com/bazaarlabs/tradepost/internal/engine"
	"github.com/bazaarlabs/tradepost/internal/ledger"
	"github.com/bazaarlabs/tradepost/internal/store"
)

// CreateListingRequest describes a sell listing for one unit of an item.
// UniqueID selects a unique instance from the seller's inventory;
// otherwise one unit is escrowed from the seller's sellable stacks,
// restricted to the given purchase price when set.
type CreateListingRequest struct {
	SellerID      string
	ItemID        string
	UniqueID      string
	PurchasePrice *int64
	Price         int64
}

// ListingService runs the market listing lifecycle: creation escrows one
// unit out of the seller's inventory before the listing goes active,
// cancellation returns it, and a sale delivers it to the buyer. Creation
// invokes the matcher against standing buy orders.
type ListingService struct {
	db         *sql.DB
	listings   *store.ListingStore
	inventory  *ledger.InventoryLedger
	credits    *ledger.CreditLedger
	matcher    *engine.Matcher
	books      *engine.BookManager
	feePercent int64
}

// NewListingService creates a ListingService. feePercent is the platform
// cut retained on direct purchases (matched settlements carry no fee).
func NewListingService(
	db *sql.DB,
	listings *store.ListingStore,
	inventory *ledger.InventoryLedger,
	credits *ledger.CreditLedger,
	matcher *engine.Matcher,
	books *engine.BookManager,
	feePercent int64,
) *ListingService {
	return &ListingService{
		db:         db,
		listings:   listings,
		inventory:  inventory,
		credits:    credits,
		matcher:    matcher,
		books:      books,
		feePercent: feePercent,
	}
}

// Create escrows one unit from the seller's inventory, inserts the active
// listing, and matches it against the best standing buy order. Escrow and
// insert share one transaction: the listing never exists with the escrow
// unperformed.
func (s *ListingService) Create(ctx context.Context, req CreateListingRequest) (*domain.MarketListing, error) {
	if req.SellerID == "" || req.ItemID == "" {
		return nil, &domain.ValidationError{Message: "seller_id and item_id are required"}
	}
	if req.Price <= 0 {
		return nil, &domain.ValidationError{Message: "price must be a positive integer"}
	}

	book := s.books.GetOrCreate(req.ItemID)
	book.Lock()
	defer book.Unlock()

	var (
		l       *domain.MarketListing
		matched *domain.BuyOrder
	)
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		now := time.Now()
		l = &domain.MarketListing{
			ListingID: uuid.New().String(),
			SellerID:  req.SellerID,
			ItemID:    req.ItemID,
			Price:     req.Price,
			Status:    domain.ListingStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if req.UniqueID != "" {
			row, err := s.inventory.RemoveUnique(ctx, tx, req.SellerID, req.ItemID, req.UniqueID)
			if err != nil {
				return err
			}
			l.UniqueID = row.UniqueID
			l.Metadata = row.Metadata
			l.PurchasePrice = row.PurchasePrice
		} else {
			portions, err := s.inventory.Drain(ctx, tx, req.SellerID, req.ItemID, 1, req.PurchasePrice, true)
			if errors.Is(err, domain.ErrInsufficientInventory) {
				// Distinguish "no stock" from "stock held but not sellable".
				held, herr := s.inventory.HasStack(ctx, tx, req.SellerID, req.ItemID, 1)
				if herr != nil {
					return herr
				}
				if held {
					return domain.ErrNotSellable
				}
				return domain.ErrInsufficientInventory
			}
			if err != nil {
				return err
			}
			l.PurchasePrice = portions[0].PurchasePrice
		}

		if err := s.listings.Insert(ctx, tx, l); err != nil {
			return err
		}

		var err error
		matched, err = s.matcher.MatchListing(ctx, tx, book, l)
		return err
	})
	if err != nil {
		return nil, err
	}

	// Reconcile the book now that the transaction is durable.
	if matched != nil {
		book.Remove(matched.OrderID)
	} else {
		book.InsertAsk(engine.BookEntry{Price: l.Price, CreatedAt: l.CreatedAt, ID: l.ListingID})
	}
	return l, nil
}

// Cancel flips an active listing to cancelled and returns the escrowed
// unit to the seller's inventory, marked sellable and preserving its
// purchase price and metadata.
func (s *ListingService) Cancel(ctx context.Context, listingID, sellerID string) (*domain.MarketListing, error) {
	l, err := s.listings.Get(ctx, s.db, listingID)
	if err != nil {
		return nil, err
	}

	book := s.books.GetOrCreate(l.ItemID)
	book.Lock()
	defer book.Unlock()

	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		l, err = s.listings.Get(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if l.SellerID != sellerID {
			return domain.ErrNotOwner
		}
		now := time.Now()
		if err := s.listings.MarkCancelled(ctx, tx, listingID, now); err != nil {
			return err
		}
		l.Status = domain.ListingStatusCancelled
		l.UpdatedAt = now

		if l.UniqueID != "" {
			return s.inventory.AddUnique(ctx, tx, sellerID, l.ItemID, l.UniqueID, l.Metadata, true, l.PurchasePrice)
		}
		return s.inventory.AddStack(ctx, tx, sellerID, l.ItemID, 1, true, l.PurchasePrice)
	})
	if err != nil {
		return nil, err
	}

	book.Remove(listingID)
	return l, nil
}

// Buy is a direct purchase of an active listing: the buyer pays the full
// price, the seller is credited the price less the platform fee, and the
// escrowed unit lands in the buyer's inventory marked sellable.
func (s *ListingService) Buy(ctx context.Context, listingID, buyerID string) (*domain.MarketListing, error) {
	if buyerID == "" {
		return nil, &domain.ValidationError{Message: "buyer_id is required"}
	}

	l, err := s.listings.Get(ctx, s.db, listingID)
	if err != nil {
		return nil, err
	}

	book := s.books.GetOrCreate(l.ItemID)
	book.Lock()
	defer book.Unlock()

	err = inTx(ctx, s.db, func(tx *sql.Tx) error {
		l, err = s.listings.Get(ctx, tx, listingID)
		if err != nil {
			return err
		}
		if l.Status != domain.ListingStatusActive {
			return domain.ErrAlreadyProcessed
		}

		if err := s.credits.Debit(ctx, tx, buyerID, l.Price); err != nil {
			return err
		}
		if err := s.credits.Credit(ctx, tx, l.SellerID, domain.SellerProceeds(l.Price, s.feePercent)); err != nil {
			return err
		}

		now := time.Now()
		if err := s.listings.MarkSold(ctx, tx, listingID, buyerID, now); err != nil {
			return err
		}
		l.Status = domain.ListingStatusSold
		l.BuyerID = buyerID
		l.SoldAt = &now
		l.UpdatedAt = now

		if l.UniqueID != "" {
			return s.inventory.AddUnique(ctx, tx, buyerID, l.ItemID, l.UniqueID, l.Metadata, true, l.PurchasePrice)
		}
		return s.inventory.AddStack(ctx, tx, buyerID, l.ItemID, 1, true, l.PurchasePrice)
	})
	if err != nil {
		return nil, err
	}

	book.Remove(listingID)
	return l, nil
}

// Get returns a listing by id.
func (s *ListingService) Get(ctx context.Context, listingID string) (*domain.MarketListing, error) {
	return s.listings.Get(ctx, s.db, listingID)
}

// ListActiveByItem returns the active listings for an item in price-time
// priority order.
func (s *ListingService) ListActiveByItem(ctx context.Context, itemID string) ([]*domain.MarketListing, error) {
	return s.listings.ListActiveByItem(ctx, s.db, itemID)
}

// ListBySeller returns a seller's listings, newest first.
func (s *ListingService) ListBySeller(ctx context.Context, sellerID string) ([]*domain.MarketListing, error) {
	return s.listings.ListBySeller(ctx, s.db, sellerID)
}
