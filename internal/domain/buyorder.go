package domain

import "time"

// BuyOrderStatus represents the lifecycle state of a standing buy order.
type BuyOrderStatus string

const (
	BuyOrderStatusActive    BuyOrderStatus = "active"
	BuyOrderStatusCancelled BuyOrderStatus = "cancelled"
	BuyOrderStatusFulfilled BuyOrderStatus = "fulfilled"
)

// BuyOrder is a standing offer to buy one unit of an item at up to Price
// credits. The full Price is escrowed from the buyer's balance when the
// order is created; cancellation refunds it, fulfillment refunds only the
// difference above the matched listing's price.
type BuyOrder struct {
	OrderID     string
	BuyerID     string
	ItemID      string
	Price       int64 // maximum acceptable price, fully escrowed
	Status      BuyOrderStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FulfilledAt *time.Time
	SaleID      string // listing id of the matched sale
}
