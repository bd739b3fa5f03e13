package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wishlist is a presence-only product set owned by a user.
type Wishlist struct {
	ID        uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID      `gorm:"column:user_id;type:uuid;not null;uniqueIndex:wishlists_user_id_key"`
	Items     []WishlistItem `gorm:"foreignKey:WishlistID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (w *Wishlist) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// WishlistItem links a wishlist to a liked product.
type WishlistItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	WishlistID uuid.UUID `gorm:"column:wishlist_id;type:uuid;not null;uniqueIndex:wishlist_items_wishlist_product_key"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:wishlist_items_product_id_idx;uniqueIndex:wishlist_items_wishlist_product_key"`
	Product    *Product  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (w *WishlistItem) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
