package wishlist

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/cartsync-backend/api/middleware"
	"github.com/angelmondragon/cartsync-backend/api/responses"
	"github.com/angelmondragon/cartsync-backend/api/validators"
	wishlistsvc "github.com/angelmondragon/cartsync-backend/internal/wishlist"
	"github.com/angelmondragon/cartsync-backend/pkg/logger"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

// Merger folds guest likes into the authenticated wishlist.
type Merger interface {
	MergeWishlist(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (*types.WishlistMergeResult, error)
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
}

type mergeRequest struct {
	ProductIDs []string `json:"product_ids" validate:"dive,uuid"`
}

type itemResponse struct {
	ProductID string `json:"product_id"`
}

func WishlistFetch(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.GetWishlistFull(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// WishlistAdd likes an active product; liking it twice is a no-op.
func WishlistAdd(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.AddItem(r.Context(), userID, uuid.MustParse(payload.ProductID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, itemResponse{ProductID: payload.ProductID})
	}
}

func WishlistRemove(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(chi.URLParam(r, "productId"), "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RemoveItem(r.Context(), userID, uuid.MustParse(productID)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, itemResponse{ProductID: productID})
	}
}

func WishlistClear(svc wishlistsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Clear(r.Context(), userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"cleared": true})
	}
}

// WishlistMerge unions the submitted guest likes into the caller's wishlist once.
func WishlistMerge(merger Merger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middleware.RequireUserID(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload mergeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productIDs := make([]uuid.UUID, 0, len(payload.ProductIDs))
		for _, raw := range payload.ProductIDs {
			productIDs = append(productIDs, uuid.MustParse(raw))
		}

		result, err := merger.MergeWishlist(r.Context(), userID, productIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
