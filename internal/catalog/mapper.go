package catalog

import (
	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
	"github.com/angelmondragon/cartsync-backend/pkg/pricing"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

// DiscountOf extracts the product's own discount descriptor.
func DiscountOf(p *models.Product) pricing.Discount {
	if p == nil {
		return pricing.Discount{}
	}
	return pricing.Discount{Kind: p.DiscountKind, Value: p.DiscountValue}
}

// SnapshotOf maps a catalog product onto the denormalized line snapshot.
func SnapshotOf(p *models.Product) types.ProductSnapshot {
	if p == nil {
		return types.ProductSnapshot{}
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return types.ProductSnapshot{
		ProductID: p.ID.String(),
		NameEN:    p.NameEN,
		NameAR:    p.NameAR,
		Price:     p.Price,
		Images:    images,
		Stock:     p.Stock,
		Discount:  DiscountOf(p),
	}
}

// CouponOf maps a stored coupon onto the pricing view. Nil stays nil.
func CouponOf(c *models.Coupon) *pricing.Coupon {
	if c == nil {
		return nil
	}
	return &pricing.Coupon{
		Code:       c.Code,
		Kind:       c.Kind,
		Value:      c.Value,
		IsActive:   c.IsActive,
		ValidFrom:  c.ValidFrom,
		ValidUntil: c.ValidUntil,
	}
}
