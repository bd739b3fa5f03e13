package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cartsync-backend/internal/catalog"
	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
	"github.com/angelmondragon/cartsync-backend/pkg/pricing"
)

// Recalculate rebuilds line pricing and cart totals from the catalog. It reads
// everything first and only then writes, so it must run inside the same
// transaction as the mutation that triggered it.
func Recalculate(ctx context.Context, repo CartRepository, cartID uuid.UUID, now time.Time) (*models.Cart, error) {
	cart, err := repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}

	lines := make([]pricing.Line, 0, len(cart.Items))
	type repriced struct {
		id        uuid.UUID
		unitPrice decimal.Decimal
		lineTotal decimal.Decimal
	}
	var changed []repriced
	for i := range cart.Items {
		item := &cart.Items[i]
		line := lineOf(item)
		unitPrice := pricing.EffectiveUnitPrice(line.Price, line.Discount)
		lineTotal := pricing.LineTotal(line)
		lines = append(lines, line)
		if !item.UnitPrice.Equal(unitPrice) || !item.LineTotal.Equal(lineTotal) {
			changed = append(changed, repriced{id: item.ID, unitPrice: unitPrice, lineTotal: lineTotal})
		}
		item.UnitPrice = unitPrice
		item.LineTotal = lineTotal
	}
	totals := pricing.Totals(lines, catalog.CouponOf(cart.Coupon), now)

	for _, row := range changed {
		if err := repo.UpdateItemPricing(ctx, row.id, row.unitPrice, row.lineTotal); err != nil {
			return nil, err
		}
	}
	if err := repo.SaveTotals(ctx, cart.ID, totals); err != nil {
		return nil, err
	}
	cart.Subtotal = totals.Subtotal
	cart.Discount = totals.Discount
	cart.Total = totals.Total
	return cart, nil
}

// lineOf prices a stored line. A product gone from the catalog prices at zero.
func lineOf(item *models.CartItem) pricing.Line {
	if item.Product == nil {
		return pricing.Line{Price: decimal.Zero, Quantity: item.Quantity}
	}
	return pricing.Line{
		Price:    item.Product.Price,
		Discount: catalog.DiscountOf(item.Product),
		Quantity: item.Quantity,
	}
}
