package wishlist

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cartsync-backend/internal/catalog"
	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups dependencies for the wishlist service.
type ServiceParams struct {
	WishlistRepo *Repository
	Catalog      *catalog.Repository
	Tx           txRunner
}

// Service exposes business rules for wishlist management.
type Service interface {
	GetWishlistFull(ctx context.Context, userID uuid.UUID) (*types.WishlistView, error)
	AddItem(ctx context.Context, userID, productID uuid.UUID) error
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	wishlistRepo *Repository
	catalog      *catalog.Repository
	tx           txRunner
}

// NewService builds a wishlist service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.WishlistRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "wishlist repo is required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog repo is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction runner is required")
	}
	return &service{
		wishlistRepo: params.WishlistRepo,
		catalog:      params.Catalog,
		tx:           params.Tx,
	}, nil
}

// GetWishlistFull returns the user's wishlist; a user without one gets an empty view.
func (s *service) GetWishlistFull(ctx context.Context, userID uuid.UUID) (*types.WishlistView, error) {
	list, err := s.wishlistRepo.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &types.WishlistView{Items: []types.WishlistItemView{}}, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wishlist")
	}
	return BuildView(list), nil
}

// AddItem ensures the product exists and adds it to the wishlist.
func (s *service) AddItem(ctx context.Context, userID, productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.wishlistRepo.WithTx(tx)
		if err := ensureUser(ctx, repo, userID); err != nil {
			return err
		}
		product, err := s.catalog.WithTx(tx).FindProduct(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		list, err := repo.EnsureWishlist(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure wishlist")
		}
		if err := repo.AddItem(ctx, list.ID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add wishlist item")
		}
		return nil
	})
}

// RemoveItem drops the wishlist entry regardless of prior state.
func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	if err := s.wishlistRepo.RemoveItem(ctx, userID, productID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove wishlist item")
	}
	return nil
}

// Clear empties the wishlist.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.wishlistRepo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear wishlist")
	}
	return nil
}

func ensureUser(ctx context.Context, repo *Repository, userID uuid.UUID) error {
	ok, err := repo.UserExists(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

// BuildView maps a loaded wishlist onto its API view.
func BuildView(list *models.Wishlist) *types.WishlistView {
	view := &types.WishlistView{ID: list.ID.String(), Items: make([]types.WishlistItemView, 0, len(list.Items))}
	for _, item := range list.Items {
		snapshot := catalog.SnapshotOf(item.Product)
		snapshot.ProductID = item.ProductID.String()
		view.Items = append(view.Items, types.WishlistItemView{
			ProductID: item.ProductID.String(),
			Product:   snapshot,
			AddedAt:   item.CreatedAt,
		})
	}
	return view
}
