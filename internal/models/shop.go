package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShopItem struct {
	ID            int64           `json:"item_id"`
	ShelterID     int64           `json:"shelter_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int32           `json:"stock_quantity"`
}

// ShopOrder is one settled line of a batch purchase. Price is the line
// total captured at purchase time and never recomputed afterwards.
type ShopOrder struct {
	ID        int64           `json:"order_id"`
	UserID    int64           `json:"user_id"`
	ShelterID int64           `json:"shelter_id"`
	ItemID    int64           `json:"item_id"`
	Quantity  int32           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	OrderDate time.Time       `json:"order_date"`
}

// OrderLine is one (item, quantity) pair of an incoming batch request.
type OrderLine struct {
	ItemID   int64 `json:"item_id"`
	Quantity int32 `json:"quantity"`
}

type OrderReceipt struct {
	TotalCharged decimal.Decimal `json:"total_charged"`
	LineCount    int             `json:"line_count"`
}

type ApprovalResult struct {
	PetID         int64           `json:"pet_id"`
	AmountCharged decimal.Decimal `json:"amount_charged"`
}
