package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarlabs/tradepost/internal/domain"
	"github.com/bazaarlabs/tradepost/internal/ledger"
	"github.com/bazaarlabs/tradepost/internal/store"
)

// TradeService runs the bilateral trade negotiation state machine:
// pending --(add/remove item)--> pending with approvals reset,
// pending --(both approve)--> completed with the atomic item exchange,
// pending --(either cancels)--> canceled. Completed and canceled are
// terminal. Nothing is escrowed during negotiation; item lists are only
// validated against live inventory until the exchange runs.
type TradeService struct {
	db        *sql.DB
	trades    *store.TradeStore
	items     *store.InventoryStore
	inventory *ledger.InventoryLedger
	locks     *keyMutex
}

// NewTradeService creates a TradeService.
func NewTradeService(db *sql.DB, trades *store.TradeStore, items *store.InventoryStore, inventory *ledger.InventoryLedger) *TradeService {
	return &TradeService{
		db:        db,
		trades:    trades,
		items:     items,
		inventory: inventory,
		locks:     newKeyMutex(),
	}
}

// StartOrGet returns the most recent pending trade between the unordered
// user pair, creating an empty one if none exists. The pending-pair unique
// index backstops racing creators from another process.
func (s *TradeService) StartOrGet(ctx context.Context, userA, userB string) (*domain.Trade, error) {
	if userA == "" || userB == "" {
		return nil, &domain.ValidationError{Message: "both user ids are required"}
	}
	if userA == userB {
		return nil, &domain.ValidationError{Message: "a trade needs two distinct users"}
	}

	mu := s.locks.get(domain.PairKey(userA, userB))
	mu.Lock()
	defer mu.Unlock()

	var result *domain.Trade
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		existing, err := s.trades.GetPendingByPair(ctx, tx, userA, userB)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, domain.ErrTradeNotFound) {
			return err
		}

		now := time.Now()
		t := &domain.Trade{
			TradeID:       uuid.New().String(),
			FromUserID:    userA,
			ToUserID:      userB,
			FromUserItems: []domain.TradeItem{},
			ToUserItems:   []domain.TradeItem{},
			Status:        domain.TradeStatusPending,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err := s.trades.Insert(ctx, tx, t); err != nil {
			// Lost a cross-process race on the pending-pair index.
			if errors.Is(err, domain.ErrAlreadyProcessed) {
				result, err = s.trades.GetPendingByPair(ctx, tx, userA, userB)
				return err
			}
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AddItem appends (or merges) an item line into the caller's side of a
// pending trade. The caller must currently hold the offered units; they
// stay in inventory until the exchange. Both approval flags reset.
func (s *TradeService) AddItem(ctx context.Context, tradeID, userID string, item domain.TradeItem) (*domain.Trade, error) {
	if err := validateTradeItem(item); err != nil {
		return nil, err
	}

	mu := s.locks.get(tradeID)
	mu.Lock()
	defer mu.Unlock()

	var result *domain.Trade
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		t, side, err := s.loadPendingSide(ctx, tx, tradeID, userID)
		if err != nil {
			return err
		}

		if item.UniqueID != "" {
			row, err := s.items.GetUnique(ctx, tx, userID, item.ItemID, item.UniqueID)
			if errors.Is(err, domain.ErrItemNotFound) {
				return domain.ErrInsufficientInventory
			}
			if err != nil {
				return err
			}
			for _, line := range *side {
				if line.UniqueID == item.UniqueID {
					return domain.ErrAlreadyProcessed
				}
			}
			*side = append(*side, domain.TradeItem{
				ItemID:        item.ItemID,
				Amount:        1,
				UniqueID:      item.UniqueID,
				Metadata:      row.Metadata,
				PurchasePrice: row.PurchasePrice,
			})
		} else {
			held, err := s.inventory.StackAmountWithPrice(ctx, tx, userID, item.ItemID, item.PurchasePrice)
			if err != nil {
				return err
			}
			if held < item.Amount {
				return domain.ErrInsufficientInventory
			}
			merged := false
			for i, line := range *side {
				if line.UniqueID == "" && line.ItemID == item.ItemID && domain.SamePurchasePrice(line.PurchasePrice, item.PurchasePrice) {
					(*side)[i].Amount += item.Amount
					merged = true
					break
				}
			}
			if !merged {
				*side = append(*side, domain.TradeItem{
					ItemID:        item.ItemID,
					Amount:        item.Amount,
					PurchasePrice: item.PurchasePrice,
				})
			}
		}

		s.touch(t)
		if err := s.trades.Update(ctx, tx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RemoveItem decrements or removes the matching line from the caller's
// side. Removing an absent line is a successful no-op; either way both
// approval flags reset.
func (s *TradeService) RemoveItem(ctx context.Context, tradeID, userID string, item domain.TradeItem) (*domain.Trade, error) {
	if err := validateTradeItem(item); err != nil {
		return nil, err
	}

	mu := s.locks.get(tradeID)
	mu.Lock()
	defer mu.Unlock()

	var result *domain.Trade
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		t, side, err := s.loadPendingSide(ctx, tx, tradeID, userID)
		if err != nil {
			return err
		}

		removeAmount := item.Amount
		if item.UniqueID != "" {
			removeAmount = 1
		}
		for i, line := range *side {
			if item.UniqueID != "" {
				if line.UniqueID != item.UniqueID {
					continue
				}
			} else if line.UniqueID != "" || line.ItemID != item.ItemID || !domain.SamePurchasePrice(line.PurchasePrice, item.PurchasePrice) {
				continue
			}

			remaining := line.Amount - removeAmount
			if remaining > 0 {
				(*side)[i].Amount = remaining
			} else {
				*side = append((*side)[:i], (*side)[i+1:]...)
			}
			break
		}

		s.touch(t)
		if err := s.trades.Update(ctx, tx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Approve sets the caller's approval flag. Once both parties have
// approved, both item lists are exchanged atomically: each line leaves the
// sender's live inventory and lands in the receiver's, stackable units
// carrying the sale terms of the stacks they are drained from at exchange
// time. Any failure rolls the whole exchange back.
func (s *TradeService) Approve(ctx context.Context, tradeID, userID string) (*domain.Trade, error) {
	mu := s.locks.get(tradeID)
	mu.Lock()
	defer mu.Unlock()

	var result *domain.Trade
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.trades.Get(ctx, tx, tradeID)
		if err != nil {
			return err
		}
		if t.Status != domain.TradeStatusPending {
			return domain.ErrInvalidState
		}
		if !t.IsParticipant(userID) {
			return domain.ErrNotParticipant
		}

		if userID == t.FromUserID {
			t.ApprovedFromUser = true
		} else {
			t.ApprovedToUser = true
		}

		if t.ApprovedFromUser && t.ApprovedToUser {
			if err := s.exchange(ctx, tx, t); err != nil {
				return err
			}
			t.Status = domain.TradeStatusCompleted
		}

		t.UpdatedAt = time.Now()
		if err := s.trades.Update(ctx, tx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cancel moves a pending trade to canceled. Nothing was escrowed, so no
// inventory or balance changes.
func (s *TradeService) Cancel(ctx context.Context, tradeID, userID string) (*domain.Trade, error) {
	mu := s.locks.get(tradeID)
	mu.Lock()
	defer mu.Unlock()

	var result *domain.Trade
	err := inTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := s.trades.Get(ctx, tx, tradeID)
		if err != nil {
			return err
		}
		if t.Status != domain.TradeStatusPending {
			return domain.ErrInvalidState
		}
		if !t.IsParticipant(userID) {
			return domain.ErrNotParticipant
		}

		t.Status = domain.TradeStatusCanceled
		t.UpdatedAt = time.Now()
		if err := s.trades.Update(ctx, tx, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Get returns a trade by id.
func (s *TradeService) Get(ctx context.Context, tradeID string) (*domain.Trade, error) {
	return s.trades.Get(ctx, s.db, tradeID)
}

// ListByUser returns a user's trades, newest first.
func (s *TradeService) ListByUser(ctx context.Context, userID string) ([]*domain.Trade, error) {
	return s.trades.ListByUser(ctx, s.db, userID)
}

// exchange moves both item lists between the parties inside the caller's
// transaction.
func (s *TradeService) exchange(ctx context.Context, tx *sql.Tx, t *domain.Trade) error {
	for _, line := range t.FromUserItems {
		if err := s.moveLine(ctx, tx, line, t.FromUserID, t.ToUserID); err != nil {
			return err
		}
	}
	for _, line := range t.ToUserItems {
		if err := s.moveLine(ctx, tx, line, t.ToUserID, t.FromUserID); err != nil {
			return err
		}
	}
	return nil
}

func (s *TradeService) moveLine(ctx context.Context, tx *sql.Tx, line domain.TradeItem, sender, receiver string) error {
	if line.UniqueID != "" {
		return s.inventory.TransferUnique(ctx, tx, sender, receiver, line.ItemID, line.UniqueID)
	}
	portions, err := s.inventory.Drain(ctx, tx, sender, line.ItemID, line.Amount, line.PurchasePrice, false)
	if err != nil {
		return err
	}
	for _, p := range portions {
		if err := s.inventory.AddStack(ctx, tx, receiver, line.ItemID, p.Amount, p.Sellable, p.PurchasePrice); err != nil {
			return err
		}
	}
	return nil
}

// loadPendingSide loads the trade, checks it is pending and that userID is
// a participant, and returns a pointer to that participant's item list.
func (s *TradeService) loadPendingSide(ctx context.Context, tx *sql.Tx, tradeID, userID string) (*domain.Trade, *[]domain.TradeItem, error) {
	t, err := s.trades.Get(ctx, tx, tradeID)
	if err != nil {
		return nil, nil, err
	}
	if t.Status != domain.TradeStatusPending {
		return nil, nil, domain.ErrInvalidState
	}
	if !t.IsParticipant(userID) {
		return nil, nil, domain.ErrNotParticipant
	}
	if userID == t.FromUserID {
		return t, &t.FromUserItems, nil
	}
	return t, &t.ToUserItems, nil
}

// touch resets both approval flags and bumps updated_at. Every successful
// item-list operation runs through this, whatever the flags were before.
func (s *TradeService) touch(t *domain.Trade) {
	t.ApprovedFromUser = false
	t.ApprovedToUser = false
	t.UpdatedAt = time.Now()
}

func validateTradeItem(item domain.TradeItem) error {
	if item.ItemID == "" {
		return &domain.ValidationError{Message: "item_id is required"}
	}
	if item.UniqueID != "" {
		if item.Amount != 0 && item.Amount != 1 {
			return &domain.ValidationError{Message: "unique items always have amount 1"}
		}
		return nil
	}
	if item.Amount <= 0 {
		return &domain.ValidationError{Message: "amount must be a positive integer"}
	}
	return nil
}
