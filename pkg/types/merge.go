package types

import "github.com/angelmondragon/cartsync-backend/pkg/enums"

// MergeItem is one guest cart line submitted for merge.
type MergeItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"`
}

// SkippedItem reports a guest line that was not merged and why.
type SkippedItem struct {
	ProductID string           `json:"product_id"`
	Reason    enums.SkipReason `json:"reason"`
	Requested int              `json:"requested,omitempty"`
	Available int              `json:"available"`
}

// MergeResult is returned by a cart merge.
type MergeResult struct {
	Status  enums.MergeOutcome `json:"status"`
	Added   int                `json:"added"`
	Updated int                `json:"updated"`
	Skipped []SkippedItem      `json:"skipped"`
	Cart    *CartView          `json:"cart,omitempty"`
}

// WishlistMergeResult is returned by a wishlist merge.
type WishlistMergeResult struct {
	Status   enums.MergeOutcome `json:"status"`
	Added    int                `json:"added"`
	Skipped  []SkippedItem      `json:"skipped"`
	Wishlist *WishlistView      `json:"wishlist,omitempty"`
}
