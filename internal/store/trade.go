package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

// TradeStore persists bilateral trades. Item lists are serialized as JSON
// columns; the pair_key column carries the order-independent user pair and
// is covered by a partial unique index while status is pending, so racing
// creators cannot duplicate a pending trade for the same pair.
type TradeStore struct{}

// NewTradeStore creates a TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{}
}

func marshalItems(items []domain.TradeItem) (string, error) {
	if items == nil {
		items = []domain.TradeItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("failed to marshal trade items: %w", err)
	}
	return string(b), nil
}

func unmarshalItems(s string) ([]domain.TradeItem, error) {
	var items []domain.TradeItem
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trade items: %w", err)
	}
	return items, nil
}

// Insert adds a trade. It returns domain.ErrAlreadyProcessed when a pending
// trade already exists for the same user pair, which the caller resolves by
// re-reading.
func (s *TradeStore) Insert(ctx context.Context, q DBTX, t *domain.Trade) error {
	fromItems, err := marshalItems(t.FromUserItems)
	if err != nil {
		return err
	}
	toItems, err := marshalItems(t.ToUserItems)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO trades (trade_id, from_user_id, to_user_id, pair_key,
			from_user_items, to_user_items, approved_from_user, approved_to_user,
			status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.FromUserID, t.ToUserID, domain.PairKey(t.FromUserID, t.ToUserID),
		fromItems, toItems, t.ApprovedFromUser, t.ApprovedToUser,
		string(t.Status), toUnixNano(t.CreatedAt), toUnixNano(t.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyProcessed
		}
		return fmt.Errorf("failed to insert trade: %w", err)
	}
	return nil
}

const tradeColumns = `trade_id, from_user_id, to_user_id, from_user_items,
	to_user_items, approved_from_user, approved_to_user, status, created_at, updated_at`

func scanTrade(row interface{ Scan(...any) error }) (*domain.Trade, error) {
	var (
		t                  domain.Trade
		fromItems, toItems string
		status             string
		createdAt, updated int64
	)
	err := row.Scan(&t.TradeID, &t.FromUserID, &t.ToUserID, &fromItems, &toItems,
		&t.ApprovedFromUser, &t.ApprovedToUser, &status, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	t.Status = domain.TradeStatus(status)
	t.CreatedAt = fromUnixNano(createdAt)
	t.UpdatedAt = fromUnixNano(updated)
	if t.FromUserItems, err = unmarshalItems(fromItems); err != nil {
		return nil, err
	}
	if t.ToUserItems, err = unmarshalItems(toItems); err != nil {
		return nil, err
	}
	return &t, nil
}

// Get retrieves a trade by id. It returns domain.ErrTradeNotFound if the
// trade does not exist.
func (s *TradeStore) Get(ctx context.Context, q DBTX, tradeID string) (*domain.Trade, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+tradeColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trade: %w", err)
	}
	return t, nil
}

// GetPendingByPair returns the most recent pending trade for the unordered
// user pair, or domain.ErrTradeNotFound.
func (s *TradeStore) GetPendingByPair(ctx context.Context, q DBTX, userA, userB string) (*domain.Trade, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE pair_key = ? AND status = 'pending'
		ORDER BY created_at DESC LIMIT 1`,
		domain.PairKey(userA, userB))
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTradeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending trade: %w", err)
	}
	return t, nil
}

// Update writes a trade's item lists, approval flags, status, and
// updated_at. The write is conditional on the row still being pending; it
// returns domain.ErrInvalidState if the trade was concurrently finalized.
func (s *TradeStore) Update(ctx context.Context, q DBTX, t *domain.Trade) error {
	fromItems, err := marshalItems(t.FromUserItems)
	if err != nil {
		return err
	}
	toItems, err := marshalItems(t.ToUserItems)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, `
		UPDATE trades SET from_user_items = ?, to_user_items = ?,
			approved_from_user = ?, approved_to_user = ?, status = ?, updated_at = ?
		WHERE trade_id = ? AND status = 'pending'`,
		fromItems, toItems, t.ApprovedFromUser, t.ApprovedToUser,
		string(t.Status), toUnixNano(t.UpdatedAt), t.TradeID)
	if err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}
	if n == 0 {
		return domain.ErrInvalidState
	}
	return nil
}

// ListByUser returns a user's trades, newest first.
func (s *TradeStore) ListByUser(ctx context.Context, q DBTX, userID string) ([]*domain.Trade, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+tradeColumns+` FROM trades
		WHERE from_user_id = ? OR to_user_id = ?
		ORDER BY created_at DESC`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
