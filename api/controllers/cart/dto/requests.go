package cartdto

import "github.com/angelmondragon/cartsync-backend/pkg/types"

// AddItemRequest adds units of a product. Quantity is checked by the service
// so a zero or negative value surfaces as INVALID_QUANTITY.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity"`
}

type UpdateItemRequest struct {
	Quantity int `json:"quantity"`
}

type ApplyCouponRequest struct {
	Code string `json:"code" validate:"required,max=64"`
}

// MergeCartRequest carries the guest cart. Lines with a bad quantity are
// skipped by the merge rather than rejected here.
type MergeCartRequest struct {
	Items []types.MergeItem `json:"items" validate:"dive"`
}
