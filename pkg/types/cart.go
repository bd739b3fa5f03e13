package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cartsync-backend/pkg/enums"
	"github.com/angelmondragon/cartsync-backend/pkg/pricing"
)

// ProductSnapshot is the denormalized product data carried on a cart line.
type ProductSnapshot struct {
	ProductID string           `json:"product_id"`
	NameEN    string           `json:"name_en"`
	NameAR    string           `json:"name_ar"`
	Price     decimal.Decimal  `json:"price"`
	Images    []string         `json:"images,omitempty"`
	Stock     int              `json:"stock"`
	Discount  pricing.Discount `json:"discount"`
}

// CartLineView is a cart line with read-time stock flags.
type CartLineView struct {
	ID        string          `json:"id"`
	CartID    string          `json:"cart_id,omitempty"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Product   ProductSnapshot `json:"product"`
	pricing.StockStatus
}

// CouponView describes the coupon currently attached to a cart.
type CouponView struct {
	Code  string             `json:"code"`
	Kind  enums.DiscountKind `json:"kind"`
	Value decimal.Decimal    `json:"value"`
}

// CartView is the full server cart as returned to clients.
type CartView struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Items      []CartLineView  `json:"items"`
	Coupon     *CouponView     `json:"coupon,omitempty"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
	TotalItems int             `json:"total_items"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// LineRef identifies an updated line.
type LineRef struct {
	CartID     string `json:"cart_id"`
	LineItemID string `json:"line_item_id"`
}

// CartRef identifies a cart touched by a mutation.
type CartRef struct {
	CartID string `json:"cart_id"`
}

// RecalcOutcome reports the totals written by a recalculation.
type RecalcOutcome struct {
	CartID     string          `json:"cart_id"`
	CouponCode *string         `json:"coupon_code,omitempty"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	Discount   decimal.Decimal `json:"discount"`
	Total      decimal.Decimal `json:"total"`
}
