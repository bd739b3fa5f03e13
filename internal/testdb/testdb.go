// Package testdb opens throwaway SQLite databases carrying the cart schema.
package testdb

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cartsync-backend/pkg/db"
	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
	"github.com/angelmondragon/cartsync-backend/pkg/enums"
)

// Open returns a migrated single-connection SQLite client in t's temp dir
// with foreign keys enforced.
func Open(t testing.TB) *db.Client {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cartsync.db")
	client, err := db.OpenSQLite(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	// Postgres enforces the same references.
	if err := client.DB().Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	if err := client.DB().AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Coupon{},
		&models.Cart{},
		&models.CartItem{},
		&models.Wishlist{},
		&models.WishlistItem{},
		&models.MergeRecord{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return client
}

// MustUser inserts a user.
func MustUser(t testing.TB, client *db.Client) uuid.UUID {
	t.Helper()
	user := &models.User{Email: fmt.Sprintf("cs_%s@example.com", uuid.NewString())}
	if err := client.DB().Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user.ID
}

// ProductOption tweaks a seeded product.
type ProductOption func(*models.Product)

// WithDiscount sets the product's own discount.
func WithDiscount(kind enums.DiscountKind, value string) ProductOption {
	return func(p *models.Product) {
		p.DiscountKind = kind
		p.DiscountValue = decimal.RequireFromString(value)
	}
}

// Inactive marks the product as delisted.
func Inactive() ProductOption {
	return func(p *models.Product) { p.IsActive = false }
}

// MustProduct inserts an active product with the given price and stock.
func MustProduct(t testing.TB, client *db.Client, price string, stock int, opts ...ProductOption) models.Product {
	t.Helper()
	product := models.Product{
		SKU:          "SKU-" + uuid.NewString()[:8],
		NameEN:       "Product",
		NameAR:       "منتج",
		Price:        decimal.RequireFromString(price),
		Stock:        stock,
		DiscountKind: enums.DiscountKindNone,
		Images:       []string{"https://cdn.example.com/p.png"},
		IsActive:     true,
	}
	for _, opt := range opts {
		opt(&product)
	}
	active := product.IsActive
	product.IsActive = true
	if err := client.DB().Create(&product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	if !active {
		if err := client.DB().Model(&product).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate product: %v", err)
		}
		product.IsActive = false
	}
	return product
}

// SetStock changes a product's stock level.
func SetStock(t testing.TB, client *db.Client, productID uuid.UUID, stock int) {
	t.Helper()
	if err := client.DB().Model(&models.Product{}).Where("id = ?", productID).Update("stock", stock).Error; err != nil {
		t.Fatalf("set stock: %v", err)
	}
}

// MustCoupon inserts an active coupon valid from an hour ago for validFor.
func MustCoupon(t testing.TB, client *db.Client, code string, kind enums.DiscountKind, value string, validFor time.Duration) models.Coupon {
	t.Helper()
	from := time.Now().Add(-time.Hour)
	until := time.Now().Add(validFor)
	coupon := models.Coupon{
		Code:       code,
		Kind:       kind,
		Value:      decimal.RequireFromString(value),
		IsActive:   true,
		ValidFrom:  &from,
		ValidUntil: &until,
	}
	if err := client.DB().Create(&coupon).Error; err != nil {
		t.Fatalf("create coupon: %v", err)
	}
	return coupon
}
