package pricing

import (
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
)

// DefaultLowStockThreshold flags lines whose product has this many units or fewer.
const DefaultLowStockThreshold = 5

// StockStatus is computed at read time for every cart line.
type StockStatus struct {
	IsOutOfStock      bool `json:"is_out_of_stock"`
	IsLowStock        bool `json:"is_low_stock"`
	AvailableQuantity int  `json:"available_quantity"`
}

// CheckStock fails with INSUFFICIENT_STOCK when requested exceeds stock.
func CheckStock(productID string, stock, requested int) error {
	if requested > stock {
		return pkgerrors.InsufficientStock(productID, requested, stock)
	}
	return nil
}

// Status derives the stock flags for a line holding quantity units.
func Status(stock, quantity, lowThreshold int) StockStatus {
	if stock < 0 {
		stock = 0
	}
	if lowThreshold <= 0 {
		lowThreshold = DefaultLowStockThreshold
	}
	out := stock == 0 || quantity > stock
	return StockStatus{
		IsOutOfStock:      out,
		IsLowStock:        !out && stock <= lowThreshold,
		AvailableQuantity: stock,
	}
}
