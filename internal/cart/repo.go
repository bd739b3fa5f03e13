package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
	"github.com/angelmondragon/cartsync-backend/pkg/pricing"
)

// Repository exposes persistence operations for carts and their lines.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// LockUser takes the per-user row lock that serializes cart mutations.
// SQLite ignores the locking clause; its single connection serializes instead.
func (r *Repository) LockUser(ctx context.Context, userID uuid.UUID) error {
	var user models.User
	return r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		Where("id = ?", userID).
		First(&user).Error
}

func (r *Repository) withContents(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Items.Product").
		Preload("Coupon")
}

// FindByUser loads the user's cart with lines, products and coupon.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.withContents(ctx).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByID loads a cart with lines, products and coupon.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.withContents(ctx).Where("id = ?", id).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindByIDAndUser returns a cart restricted to its owner.
func (r *Repository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// EnsureCart returns the user's cart, creating an empty one when absent.
func (r *Repository) EnsureCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	cart = models.Cart{UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&cart).Error; err != nil {
		return nil, err
	}
	var stored models.Cart
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindItem loads a line only when it belongs to the user's cart.
func (r *Repository) FindItem(ctx context.Context, itemID, userID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	owned := r.db.Model(&models.Cart{}).Select("id").Where("user_id = ?", userID)
	err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id IN (?)", itemID, owned).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItemByProduct returns the line holding productID, or gorm.ErrRecordNotFound.
func (r *Repository) FindItemByProduct(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateItem inserts a new line.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

// UpdateItemQuantity overwrites a line quantity.
func (r *Repository) UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Update("quantity", quantity).Error
}

// UpsertItems writes absolute quantities in one statement, keyed on
// (cart_id, product_id).
func (r *Repository) UpsertItems(ctx context.Context, items []models.CartItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).
		Create(&items).Error
}

// DeleteItem removes a single line.
func (r *Repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", itemID).Delete(&models.CartItem{}).Error
}

// DeleteItems removes every line of a cart.
func (r *Repository) DeleteItems(ctx context.Context, cartID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// UpdateItemPricing stores the recalculated unit price and line total.
func (r *Repository) UpdateItemPricing(ctx context.Context, itemID uuid.UUID, unitPrice, lineTotal decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ?", itemID).
		Updates(map[string]any{"unit_price": unitPrice, "line_total": lineTotal}).Error
}

// SetCoupon attaches couponID to the cart; nil detaches.
func (r *Repository) SetCoupon(ctx context.Context, cartID uuid.UUID, couponID *uuid.UUID) error {
	var value any = gorm.Expr("NULL")
	if couponID != nil {
		value = *couponID
	}
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("coupon_id", value).Error
}

// SaveTotals writes the recalculated cart totals.
func (r *Repository) SaveTotals(ctx context.Context, cartID uuid.UUID, totals pricing.Breakdown) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{
			"subtotal": totals.Subtotal,
			"discount": totals.Discount,
			"total":    totals.Total,
		}).Error
}

// DeleteMergeRecords drops every merge record of the user so guest merges run again.
func (r *Repository) DeleteMergeRecords(ctx context.Context, userID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.MergeRecord{}).Error
}
