package domain

import "time"

// ListingStatus represents the lifecycle state of a market listing.
type ListingStatus string

const (
	ListingStatusActive    ListingStatus = "active"
	ListingStatusSold      ListingStatus = "sold"
	ListingStatusCancelled ListingStatus = "cancelled"
)

// MarketListing is a single-sided sell offer for exactly one unit of an
// item. The unit is escrowed out of the seller's inventory when the
// listing is created; the listing row carries the escrowed unit's identity
// (UniqueID/Metadata/PurchasePrice) until it is sold or cancelled.
type MarketListing struct {
	ListingID     string
	SellerID      string
	ItemID        string
	Price         int64
	Status        ListingStatus
	UniqueID      string         // empty when a stackable unit was escrowed
	Metadata      map[string]any // nil for stackable units
	PurchasePrice *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SoldAt        *time.Time
	BuyerID       string // set when sold
}

// SellerProceeds computes what the seller is credited on a direct
// purchase: the price minus the platform fee, rounded down.
func SellerProceeds(price, feePercent int64) int64 {
	return price * (100 - feePercent) / 100
}
