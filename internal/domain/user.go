package domain

import "time"

// User is a participant in the economy, as seen through the narrow slice
// of the user directory the engine needs: an id and a credit balance.
// Balance never goes negative.
type User struct {
	UserID    string
	Balance   int64
	CreatedAt time.Time
}
