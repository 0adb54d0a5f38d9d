package ledger

import (
	"context"

	"github.com/bazaarlabs/tradepost/internal/domain"
	"github.com/bazaarlabs/tradepost/internal/store"
)

// UserDirectory is the narrow slice of the user directory the credit
// ledger needs: read and overwrite a balance. The engine reads but does not
// own user rows.
type UserDirectory interface {
	GetBalance(ctx context.Context, q store.DBTX, userID string) (int64, error)
	SetBalance(ctx context.Context, q store.DBTX, userID string, balance int64) error
}

// CreditLedger debits and credits user balances with a non-negative
// invariant. Like the inventory ledger, every method takes a DBTX so the
// balance mutation commits or rolls back with the entity row it pairs with.
type CreditLedger struct {
	users UserDirectory
}

// NewCreditLedger creates a CreditLedger over the given directory.
func NewCreditLedger(users UserDirectory) *CreditLedger {
	return &CreditLedger{users: users}
}

// Debit removes amount credits from the user's balance. It returns
// domain.ErrInsufficientBalance if the balance is below amount.
func (l *CreditLedger) Debit(ctx context.Context, q store.DBTX, userID string, amount int64) error {
	balance, err := l.users.GetBalance(ctx, q, userID)
	if err != nil {
		return err
	}
	if balance < amount {
		return domain.ErrInsufficientBalance
	}
	return l.users.SetBalance(ctx, q, userID, balance-amount)
}

// Credit adds amount credits to the user's balance.
func (l *CreditLedger) Credit(ctx context.Context, q store.DBTX, userID string, amount int64) error {
	balance, err := l.users.GetBalance(ctx, q, userID)
	if err != nil {
		return err
	}
	return l.users.SetBalance(ctx, q, userID, balance+amount)
}

// Balance returns the user's current balance.
func (l *CreditLedger) Balance(ctx context.Context, q store.DBTX, userID string) (int64, error) {
	return l.users.GetBalance(ctx, q, userID)
}
