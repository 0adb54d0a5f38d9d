package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

func newPendingTrade(userA, userB string) *domain.Trade {
	now := time.Now()
	return &domain.Trade{
		TradeID:       uuid.New().String(),
		FromUserID:    userA,
		ToUserID:      userB,
		FromUserItems: []domain.TradeItem{},
		ToUserItems:   []domain.TradeItem{},
		Status:        domain.TradeStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestTradeStore_InsertAndGet(t *testing.T) {
	db := testDB(t)
	s := NewTradeStore()
	ctx := context.Background()

	tr := newPendingTrade("alice", "bob")
	tr.FromUserItems = []domain.TradeItem{{ItemID: "potion", Amount: 3}}
	if err := s.Insert(ctx, db, tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.Get(ctx, db, tr.TradeID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.FromUserID != "alice" || got.ToUserID != "bob" {
		t.Errorf("parties = %q/%q, want alice/bob", got.FromUserID, got.ToUserID)
	}
	if got.Status != domain.TradeStatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if len(got.FromUserItems) != 1 || got.FromUserItems[0].ItemID != "potion" || got.FromUserItems[0].Amount != 3 {
		t.Errorf("from items = %+v, want one line of 3 potions", got.FromUserItems)
	}
	if len(got.ToUserItems) != 0 {
		t.Errorf("to items = %+v, want empty", got.ToUserItems)
	}
}

func TestTradeStore_GetNotFound(t *testing.T) {
	db := testDB(t)
	s := NewTradeStore()

	_, err := s.Get(context.Background(), db, "missing")
	if !errors.Is(err, domain.ErrTradeNotFound) {
		t.Errorf("got %v, want ErrTradeNotFound", err)
	}
}

func TestTradeStore_PendingPairUniqueness(t *testing.T) {
	db := testDB(t)
	s := NewTradeStore()
	ctx := context.Background()

	if err := s.Insert(ctx, db, newPendingTrade("alice", "bob")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A second pending trade for the same pair violates the partial
	// unique index, whichever way round the parties are given.
	err := s.Insert(ctx, db, newPendingTrade("bob", "alice"))
	if !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Errorf("got %v, want ErrAlreadyProcessed", err)
	}

	// A different pair is fine.
	if err := s.Insert(ctx, db, newPendingTrade("alice", "carol")); err != nil {
		t.Errorf("unexpected error for a different pair: %v", err)
	}
}

func TestTradeStore_TerminalTradeFreesPair(t *testing.T) {
	db := testDB(t)
	s := NewTradeStore()
	ctx := context.Background()

	first := newPendingTrade("alice", "bob")
	if err := s.Insert(ctx, db, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.Status = domain.TradeStatusCanceled
	if err := s.Update(ctx, db, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := s.Insert(ctx, db, newPendingTrade("alice", "bob")); err != nil {
		t.Errorf("a canceled trade should free the pair, got %v", err)
	}
}

func TestTradeStore_GetPendingByPair(t *testing.T) {
	db := testDB(t)
	s := NewTradeStore()
	ctx := context.Background()

	tr := newPendingTrade("alice", "bob")
	if err := s.Insert(ctx, db, tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetPendingByPair(ctx, db, "bob", "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TradeID != tr.TradeID {
		t.Errorf("trade id = %q, want %q", got.TradeID, tr.TradeID)
	}

	_, err = s.GetPendingByPair(ctx, db, "alice", "carol")
	if !errors.Is(err, domain.ErrTradeNotFound) {
		t.Errorf("got %v, want ErrTradeNotFound for a pair with no pending trade", err)
	}
}

func TestTradeStore_UpdateOnlyWhilePending(t *testing.T) {
	db := testDB(t)
	s := NewTradeStore()
	ctx := context.Background()

	tr := newPendingTrade("alice", "bob")
	if err := s.Insert(ctx, db, tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.Status = domain.TradeStatusCompleted
	if err := s.Update(ctx, db, tr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The row is terminal; a second transition must not apply.
	tr.Status = domain.TradeStatusCanceled
	err := s.Update(ctx, db, tr)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Errorf("got %v, want ErrInvalidState", err)
	}

	got, err := s.Get(ctx, db, tr.TradeID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.TradeStatusCompleted {
		t.Errorf("status = %q, want completed to stick", got.Status)
	}
}

func TestTradeStore_ListByUser(t *testing.T) {
	db := testDB(t)
	s := NewTradeStore()
	ctx := context.Background()

	a := newPendingTrade("alice", "bob")
	if err := s.Insert(ctx, db, a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b := newPendingTrade("alice", "carol")
	b.CreatedAt = a.CreatedAt.Add(time.Second)
	b.UpdatedAt = b.CreatedAt
	if err := s.Insert(ctx, db, b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	trades, err := s.ListByUser(ctx, db, "alice")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(trades))
	}

	bobTrades, err := s.ListByUser(ctx, db, "bob")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bobTrades) != 1 || bobTrades[0].TradeID != a.TradeID {
		t.Errorf("bob trades = %+v, want only the alice/bob trade", bobTrades)
	}
}
