package domain

import "time"

// TradeStatus represents the lifecycle state of a bilateral trade.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusCompleted TradeStatus = "completed"
	TradeStatusCanceled  TradeStatus = "canceled"
)

// TradeItem is one line in a trade offer. It mirrors an inventory row's
// identity fields without removing anything from the owner's inventory:
// nothing is escrowed during negotiation, the line is only validated
// against live holdings.
type TradeItem struct {
	ItemID        string         `json:"item_id"`
	Amount        int64          `json:"amount"`
	UniqueID      string         `json:"unique_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	PurchasePrice *int64         `json:"purchase_price,omitempty"`
}

// Trade is a bilateral exchange proposal between two users.
//
// While pending, any mutation to either item list resets both approval
// flags. The trade completes only when both flags are true, at which point
// the two item lists are exchanged atomically. Completed and canceled are
// terminal.
type Trade struct {
	TradeID          string
	FromUserID       string
	ToUserID         string
	FromUserItems    []TradeItem
	ToUserItems      []TradeItem
	ApprovedFromUser bool
	ApprovedToUser   bool
	Status           TradeStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsParticipant reports whether userID is one of the two trade parties.
func (t *Trade) IsParticipant(userID string) bool {
	return userID == t.FromUserID || userID == t.ToUserID
}

// PairKey returns the order-independent key for the trade's user pair.
// At most one pending trade may exist per pair key.
func PairKey(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}
