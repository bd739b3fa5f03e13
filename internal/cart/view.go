package cart

import (
	"github.com/angelmondragon/cartsync-backend/internal/catalog"
	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
	"github.com/angelmondragon/cartsync-backend/pkg/pricing"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

// BuildView renders a loaded cart with stock flags computed against the
// current catalog. Missing or delisted products count as out of stock.
func BuildView(cart *models.Cart, lowStockThreshold int) *types.CartView {
	view := &types.CartView{
		ID:        cart.ID.String(),
		UserID:    cart.UserID.String(),
		Items:     make([]types.CartLineView, 0, len(cart.Items)),
		Subtotal:  cart.Subtotal,
		Discount:  cart.Discount,
		Total:     cart.Total,
		UpdatedAt: cart.UpdatedAt,
	}
	for i := range cart.Items {
		view.Items = append(view.Items, lineView(&cart.Items[i], lowStockThreshold))
		view.TotalItems += cart.Items[i].Quantity
	}
	if cart.Coupon != nil {
		view.Coupon = &types.CouponView{
			Code:  cart.Coupon.Code,
			Kind:  cart.Coupon.Kind,
			Value: cart.Coupon.Value,
		}
	}
	return view
}

func lineView(item *models.CartItem, lowStockThreshold int) types.CartLineView {
	stock := 0
	if item.Product != nil && item.Product.IsActive {
		stock = item.Product.Stock
	}
	snapshot := catalog.SnapshotOf(item.Product)
	snapshot.ProductID = item.ProductID.String()
	return types.CartLineView{
		ID:          item.ID.String(),
		CartID:      item.CartID.String(),
		ProductID:   item.ProductID.String(),
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPrice,
		LineTotal:   item.LineTotal,
		Product:     snapshot,
		StockStatus: pricing.Status(stock, item.Quantity, lowStockThreshold),
	}
}
