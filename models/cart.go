package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartLineItem struct {
	ID         uuid.UUID       `json:"id"`
	MenuItemID int             `json:"menuitem_id" validate:"gte=0"`
	Title      string          `json:"title"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity" validate:"gt=0"`
}

// Subtotal is the line's contribution to the cart total.
func (i CartLineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// DisplayTitle falls back to a generic label for untitled lines.
func (i CartLineItem) DisplayTitle() string {
	if i.Title == "" {
		return "Product"
	}
	return i.Title
}

type Cart struct {
	UserID string         `json:"user_id"`
	Items  []CartLineItem `json:"items"`
}
