package service

import (
	"context"
	"database/sql"
	"regexp"
	"time"

	"github.com/bazaarlabs/tradepost/internal/domain"
	"github.com/bazaarlabs/tradepost/internal/store"
)

var userIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// UserService registers users and answers balance queries. It is the
// minimal user directory the engine needs; anything richer (profiles,
// auth) lives elsewhere.
type UserService struct {
	db    *sql.DB
	users *store.UserStore
}

// NewUserService creates a UserService.
func NewUserService(db *sql.DB, users *store.UserStore) *UserService {
	return &UserService{db: db, users: users}
}

// Register creates a user with a starting credit balance.
func (s *UserService) Register(ctx context.Context, userID string, startingBalance int64) (*domain.User, error) {
	if !userIDRegex.MatchString(userID) {
		return nil, &domain.ValidationError{
			Message: "user_id must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if startingBalance < 0 {
		return nil, &domain.ValidationError{
			Message: "starting_balance must not be negative",
		}
	}

	u := &domain.User{
		UserID:    userID,
		Balance:   startingBalance,
		CreatedAt: time.Now(),
	}
	if err := s.users.Insert(ctx, s.db, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.Get(ctx, s.db, userID)
}

// Balance returns a user's current credit balance.
func (s *UserService) Balance(ctx context.Context, userID string) (int64, error) {
	return s.users.GetBalance(ctx, s.db, userID)
}
