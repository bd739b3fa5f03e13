package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cartsync-backend/pkg/enums"
)

// Coupon is a cart-level discount. Codes are stored upper-cased.
type Coupon struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code       string             `gorm:"column:code;not null;uniqueIndex:coupons_code_key"`
	Kind       enums.DiscountKind `gorm:"column:kind;not null"`
	Value      decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null"`
	IsActive   bool               `gorm:"column:is_active;not null"`
	ValidFrom  *time.Time         `gorm:"column:valid_from"`
	ValidUntil *time.Time         `gorm:"column:valid_until"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Coupon) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
