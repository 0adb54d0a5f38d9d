package handler

import (
	"time"

	"github.com/bazaarlabs/tradepost/internal/domain"
)

// View structs: the JSON shapes returned to callers.

type userView struct {
	UserID    string    `json:"user_id"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserView(u *domain.User) userView {
	return userView{UserID: u.UserID, Balance: u.Balance, CreatedAt: u.CreatedAt}
}

type inventoryItemView struct {
	ItemID        string         `json:"item_id"`
	Amount        int64          `json:"amount"`
	UniqueID      string         `json:"unique_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Sellable      bool           `json:"sellable"`
	PurchasePrice *int64         `json:"purchase_price,omitempty"`
}

func newInventoryItemView(it *domain.InventoryItem) inventoryItemView {
	return inventoryItemView{
		ItemID:        it.ItemID,
		Amount:        it.Amount,
		UniqueID:      it.UniqueID,
		Metadata:      it.Metadata,
		Sellable:      it.Sellable,
		PurchasePrice: it.PurchasePrice,
	}
}

type tradeItemView struct {
	ItemID        string         `json:"item_id"`
	Amount        int64          `json:"amount"`
	UniqueID      string         `json:"unique_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	PurchasePrice *int64         `json:"purchase_price,omitempty"`
}

type tradeView struct {
	TradeID          string          `json:"trade_id"`
	FromUserID       string          `json:"from_user_id"`
	ToUserID         string          `json:"to_user_id"`
	FromUserItems    []tradeItemView `json:"from_user_items"`
	ToUserItems      []tradeItemView `json:"to_user_items"`
	ApprovedFromUser bool            `json:"approved_from_user"`
	ApprovedToUser   bool            `json:"approved_to_user"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func newTradeView(t *domain.Trade) tradeView {
	return tradeView{
		TradeID:          t.TradeID,
		FromUserID:       t.FromUserID,
		ToUserID:         t.ToUserID,
		FromUserItems:    newTradeItemViews(t.FromUserItems),
		ToUserItems:      newTradeItemViews(t.ToUserItems),
		ApprovedFromUser: t.ApprovedFromUser,
		ApprovedToUser:   t.ApprovedToUser,
		Status:           string(t.Status),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func newTradeItemViews(items []domain.TradeItem) []tradeItemView {
	views := make([]tradeItemView, 0, len(items))
	for _, it := range items {
		views = append(views, tradeItemView{
			ItemID:        it.ItemID,
			Amount:        it.Amount,
			UniqueID:      it.UniqueID,
			Metadata:      it.Metadata,
			PurchasePrice: it.PurchasePrice,
		})
	}
	return views
}

type listingView struct {
	ListingID     string         `json:"listing_id"`
	SellerID      string         `json:"seller_id"`
	ItemID        string         `json:"item_id"`
	Price         int64          `json:"price"`
	Status        string         `json:"status"`
	UniqueID      string         `json:"unique_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	PurchasePrice *int64         `json:"purchase_price,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	SoldAt        *time.Time     `json:"sold_at,omitempty"`
	BuyerID       string         `json:"buyer_id,omitempty"`
}

func newListingView(l *domain.MarketListing) listingView {
	return listingView{
		ListingID:     l.ListingID,
		SellerID:      l.SellerID,
		ItemID:        l.ItemID,
		Price:         l.Price,
		Status:        string(l.Status),
		UniqueID:      l.UniqueID,
		Metadata:      l.Metadata,
		PurchasePrice: l.PurchasePrice,
		CreatedAt:     l.CreatedAt,
		UpdatedAt:     l.UpdatedAt,
		SoldAt:        l.SoldAt,
		BuyerID:       l.BuyerID,
	}
}

type buyOrderView struct {
	OrderID     string     `json:"order_id"`
	BuyerID     string     `json:"buyer_id"`
	ItemID      string     `json:"item_id"`
	Price       int64      `json:"price"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	FulfilledAt *time.Time `json:"fulfilled_at,omitempty"`
	SaleID      string     `json:"sale_id,omitempty"`
}

func newBuyOrderView(o *domain.BuyOrder) buyOrderView {
	return buyOrderView{
		OrderID:     o.OrderID,
		BuyerID:     o.BuyerID,
		ItemID:      o.ItemID,
		Price:       o.Price,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		FulfilledAt: o.FulfilledAt,
		SaleID:      o.SaleID,
	}
}
