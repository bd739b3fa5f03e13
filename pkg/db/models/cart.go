package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart is the authoritative cart of an authenticated user. Subtotal, Discount
// and Total are only written by the recalculation step.
type Cart struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:carts_user_id_key"`
	CouponID  *uuid.UUID      `gorm:"column:coupon_id;type:uuid"`
	Coupon    *Coupon         `gorm:"foreignKey:CouponID;constraint:OnDelete:SET NULL"`
	Subtotal  decimal.Decimal `gorm:"column:subtotal;type:numeric(12,2);not null;default:0"`
	Discount  decimal.Decimal `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Total     decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null;default:0"`
	Items     []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CartItem is one product line. (cart_id, product_id) is unique.
type CartItem struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID    uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:cart_items_cart_product_key"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;uniqueIndex:cart_items_cart_product_key"`
	Product   *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Quantity  int             `gorm:"column:quantity;not null"`
	UnitPrice decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null;default:0"`
	LineTotal decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null;default:0"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *CartItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
