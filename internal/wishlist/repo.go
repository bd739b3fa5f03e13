package wishlist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
)

// Repository encapsulates wishlist persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a wishlist repository bound to the provided gorm DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// UserExists reports whether the user account is known.
func (r *Repository) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// EnsureWishlist returns the user's wishlist, creating it when absent.
func (r *Repository) EnsureWishlist(ctx context.Context, userID uuid.UUID) (*models.Wishlist, error) {
	var list models.Wishlist
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&list).Error
	if err == nil {
		return &list, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	list = models.Wishlist{UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&list).Error; err != nil {
		return nil, err
	}
	var stored models.Wishlist
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// FindByUser loads the user's wishlist with products, oldest first.
func (r *Repository) FindByUser(ctx context.Context, userID uuid.UUID) (*models.Wishlist, error) {
	var list models.Wishlist
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		}).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		First(&list).Error
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// AddItem inserts a wishlist entry and ignores duplicates.
func (r *Repository) AddItem(ctx context.Context, wishlistID, productID uuid.UUID) error {
	if wishlistID == uuid.Nil || productID == uuid.Nil {
		return gorm.ErrInvalidValue
	}
	_, err := r.AddItems(ctx, wishlistID, []uuid.UUID{productID})
	return err
}

// AddItems inserts every product not yet present and returns how many were new.
func (r *Repository) AddItems(ctx context.Context, wishlistID uuid.UUID, productIDs []uuid.UUID) (int64, error) {
	if len(productIDs) == 0 {
		return 0, nil
	}
	rows := make([]models.WishlistItem, 0, len(productIDs))
	for _, productID := range productIDs {
		rows = append(rows, models.WishlistItem{WishlistID: wishlistID, ProductID: productID})
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "wishlist_id"}, {Name: "product_id"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// RemoveItem deletes the user-product like if it exists.
func (r *Repository) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	owned := r.db.Model(&models.Wishlist{}).Select("id").Where("user_id = ?", userID)
	return r.db.WithContext(ctx).
		Where("product_id = ? AND wishlist_id IN (?)", productID, owned).
		Delete(&models.WishlistItem{}).
		Error
}

// Clear removes every entry of the user's wishlist.
func (r *Repository) Clear(ctx context.Context, userID uuid.UUID) error {
	owned := r.db.Model(&models.Wishlist{}).Select("id").Where("user_id = ?", userID)
	return r.db.WithContext(ctx).
		Where("wishlist_id IN (?)", owned).
		Delete(&models.WishlistItem{}).
		Error
}
