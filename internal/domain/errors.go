package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrUserAlreadyExists     = errors.New("user_already_exists")
	ErrUserNotFound          = errors.New("user_not_found")
	ErrTradeNotFound         = errors.New("trade_not_found")
	ErrListingNotFound       = errors.New("listing_not_found")
	ErrBuyOrderNotFound      = errors.New("buy_order_not_found")
	ErrItemNotFound          = errors.New("item_not_found")
	ErrNotParticipant        = errors.New("not_participant")
	ErrNotOwner              = errors.New("not_owner")
	ErrInvalidState          = errors.New("invalid_state")
	ErrInsufficientInventory = errors.New("insufficient_inventory")
	ErrInsufficientBalance   = errors.New("insufficient_balance")
	ErrAlreadyProcessed      = errors.New("already_processed")
	ErrNotSellable           = errors.New("item_not_sellable")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
