package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

// UserStore persists the narrow slice of the user directory the engine
// needs: ids and credit balances.
type UserStore struct{}

// NewUserStore creates a UserStore.
func NewUserStore() *UserStore {
	return &UserStore{}
}

// Insert adds a user. It returns domain.ErrUserAlreadyExists if the id is
// taken.
func (s *UserStore) Insert(ctx context.Context, q DBTX, u *domain.User) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (user_id, balance, created_at) VALUES (?, ?, ?)`,
		u.UserID, u.Balance, toUnixNano(u.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Get retrieves a user by id. It returns domain.ErrUserNotFound if the
// user does not exist.
func (s *UserStore) Get(ctx context.Context, q DBTX, userID string) (*domain.User, error) {
	var (
		u         domain.User
		createdAt int64
	)
	err := q.QueryRowContext(ctx, `
		SELECT user_id, balance, created_at FROM users WHERE user_id = ?`,
		userID).Scan(&u.UserID, &u.Balance, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	u.CreatedAt = fromUnixNano(createdAt)
	return &u, nil
}

// GetBalance returns a user's current balance, or domain.ErrUserNotFound.
func (s *UserStore) GetBalance(ctx context.Context, q DBTX, userID string) (int64, error) {
	var balance int64
	err := q.QueryRowContext(ctx, `SELECT balance FROM users WHERE user_id = ?`, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return balance, nil
}

// SetBalance overwrites a user's balance. It returns domain.ErrUserNotFound
// if the user does not exist.
func (s *UserStore) SetBalance(ctx context.Context, q DBTX, userID string, balance int64) error {
	res, err := q.ExecContext(ctx, `UPDATE users SET balance = ? WHERE user_id = ?`, balance, userID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique-constraint
// failure. The pure Go driver exposes no typed error for this, so the
// message is matched.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
