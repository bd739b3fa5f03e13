package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
	"github.com/angelmondragon/cartsync-backend/pkg/pricing"
)

// CartRepository defines the persistence surface required by the cart service
// and the merge coordinator.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	LockUser(ctx context.Context, userID uuid.UUID) error
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.Cart, error)
	EnsureCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindItem(ctx context.Context, itemID, userID uuid.UUID) (*models.CartItem, error)
	FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	CreateItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	UpsertItems(ctx context.Context, items []models.CartItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	DeleteItems(ctx context.Context, cartID uuid.UUID) error
	UpdateItemPricing(ctx context.Context, itemID uuid.UUID, unitPrice, lineTotal decimal.Decimal) error
	SetCoupon(ctx context.Context, cartID uuid.UUID, couponID *uuid.UUID) error
	SaveTotals(ctx context.Context, cartID uuid.UUID, totals pricing.Breakdown) error
	DeleteMergeRecords(ctx context.Context, userID uuid.UUID) error
}
