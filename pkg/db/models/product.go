package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cartsync-backend/pkg/enums"
)

// Product is the catalog read model consulted for stock and pricing.
type Product struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	SKU           string             `gorm:"column:sku;not null;uniqueIndex:products_sku_key"`
	NameEN        string             `gorm:"column:name_en;not null"`
	NameAR        string             `gorm:"column:name_ar;not null;default:''"`
	Price         decimal.Decimal    `gorm:"column:price;type:numeric(12,2);not null"`
	Stock         int                `gorm:"column:stock;not null;default:0"`
	DiscountKind  enums.DiscountKind `gorm:"column:discount_kind;not null;default:'none'"`
	DiscountValue decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null;default:0"`
	Images        []string           `gorm:"column:images;type:jsonb;serializer:json"`
	IsActive      bool               `gorm:"column:is_active;not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
