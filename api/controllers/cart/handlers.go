package cart

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	cartdto "github.com/angelmondragon/cartsync-backend/api/controllers/cart/dto"
	"github.com/angelmondragon/cartsync-backend/api/middleware"
	"github.com/angelmondragon/cartsync-backend/api/responses"
	"github.com/angelmondragon/cartsync-backend/api/validators"
	cartsvc "github.com/angelmondragon/cartsync-backend/internal/cart"
	"github.com/angelmondragon/cartsync-backend/internal/merge"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/logger"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

const maxCouponCodeLength = 64

// Merger folds a guest cart into the authenticated cart.
type Merger interface {
	MergeCart(ctx context.Context, userID uuid.UUID, items []merge.LocalItem) (*types.MergeResult, error)
}

// CartFetch returns the caller's cart with totals and stock flags.
func CartFetch(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetCartFull(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// CartAddItem adds units of a product to the caller's cart.
func CartAddItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartdto.AddItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		line, err := svc.AddToCart(r.Context(), userID, uuid.MustParse(payload.ProductID), payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, line)
	}
}

// CartUpdateItem replaces the quantity of one of the caller's lines.
func CartUpdateItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lineItemID, err := uuidParam(r, "lineItemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartdto.UpdateItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ref, err := svc.UpdateCartItem(r.Context(), userID, lineItemID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ref)
	}
}

func CartRemoveItem(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lineItemID, err := uuidParam(r, "lineItemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ref, err := svc.RemoveCartItem(r.Context(), userID, lineItemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ref)
	}
}

func CartApplyCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cartID, err := uuidParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartdto.ApplyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code := validators.SanitizeCode(payload.Code, maxCouponCodeLength)
		if code == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required"))
			return
		}

		outcome, err := svc.ApplyCoupon(r.Context(), userID, cartID, code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

func CartRemoveCoupon(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cartID, err := uuidParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.RemoveCoupon(r.Context(), userID, cartID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

// CartClear empties the cart. With ?reset=true the merge history is dropped
// too, so the next login merges again.
func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cartID, err := uuidParam(r, "cartId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reset, err := validators.ParseQueryBool(r, "reset", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var ref *types.CartRef
		if reset {
			ref, err = svc.ResetCart(r.Context(), userID, cartID)
		} else {
			ref, err = svc.ClearCart(r.Context(), userID, cartID)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ref)
	}
}

// CartMerge folds the submitted guest cart into the caller's cart once.
func CartMerge(merger Merger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload cartdto.MergeCartRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := merger.MergeCart(r.Context(), userID, toLocalItems(payload))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
