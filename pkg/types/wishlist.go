package types

import "time"

// WishlistItemView is a product present in a wishlist.
type WishlistItemView struct {
	ProductID string          `json:"product_id"`
	Product   ProductSnapshot `json:"product"`
	AddedAt   time.Time       `json:"added_at"`
}

// WishlistView is the full server wishlist.
type WishlistView struct {
	ID    string             `json:"id"`
	Items []WishlistItemView `json:"items"`
}
