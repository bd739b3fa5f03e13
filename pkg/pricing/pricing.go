// Package pricing holds the discount, coupon and stock arithmetic shared by the
// device-side store and the server recalculation so both compute identical totals.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cartsync-backend/pkg/enums"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Discount is a product's own price reduction.
type Discount struct {
	Kind  enums.DiscountKind `json:"kind"`
	Value decimal.Decimal    `json:"value"`
}

// Coupon is the subset of a cart coupon the arithmetic needs.
type Coupon struct {
	Code       string             `json:"code"`
	Kind       enums.DiscountKind `json:"kind"`
	Value      decimal.Decimal    `json:"value"`
	IsActive   bool               `json:"is_active"`
	ValidFrom  *time.Time         `json:"valid_from,omitempty"`
	ValidUntil *time.Time         `json:"valid_until,omitempty"`
}

// Line is one priced cart line.
type Line struct {
	Price    decimal.Decimal
	Discount Discount
	Quantity int
}

// Breakdown is the result of a full recalculation.
type Breakdown struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// Round normalizes a monetary amount to cents.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(moneyPlaces)
}

// EffectiveUnitPrice applies the product's own discount, never going below zero.
func EffectiveUnitPrice(price decimal.Decimal, discount Discount) decimal.Decimal {
	effective := price
	switch discount.Kind {
	case enums.DiscountKindFixed:
		effective = price.Sub(discount.Value)
	case enums.DiscountKindPercentage:
		effective = price.Mul(hundred.Sub(discount.Value)).Div(hundred)
	}
	if effective.IsNegative() {
		return decimal.Zero
	}
	return Round(effective)
}

// LineTotal is the effective unit price times quantity.
func LineTotal(line Line) decimal.Decimal {
	if line.Quantity <= 0 {
		return decimal.Zero
	}
	return Round(EffectiveUnitPrice(line.Price, line.Discount).Mul(decimal.NewFromInt(int64(line.Quantity))))
}

// CouponReason explains why a coupon cannot currently apply. Empty means usable.
func CouponReason(coupon *Coupon, now time.Time) string {
	switch {
	case coupon == nil:
		return "unknown"
	case !coupon.IsActive:
		return "inactive"
	case coupon.ValidFrom != nil && now.Before(*coupon.ValidFrom):
		return "not_yet_valid"
	case coupon.ValidUntil != nil && now.After(*coupon.ValidUntil):
		return "expired"
	}
	return ""
}

// CouponDiscount computes the coupon's reduction of subtotal, clamped to
// [0, subtotal]. Invalid or expired coupons discount nothing.
func CouponDiscount(subtotal decimal.Decimal, coupon *Coupon, now time.Time) decimal.Decimal {
	if CouponReason(coupon, now) != "" || !subtotal.IsPositive() {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch coupon.Kind {
	case enums.DiscountKindFixed:
		discount = decimal.Min(coupon.Value, subtotal)
	case enums.DiscountKindPercentage:
		discount = subtotal.Mul(coupon.Value).Div(hundred)
	default:
		return decimal.Zero
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return Round(discount)
}

// Totals recomputes subtotal, coupon discount and total from scratch.
func Totals(lines []Line, coupon *Coupon, now time.Time) Breakdown {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(LineTotal(line))
	}
	subtotal = Round(subtotal)
	discount := CouponDiscount(subtotal, coupon, now)
	return Breakdown{
		Subtotal: subtotal,
		Discount: discount,
		Total:    Round(subtotal.Sub(discount)),
	}
}
