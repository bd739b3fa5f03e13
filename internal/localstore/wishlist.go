package localstore

import (
	"context"

	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

// AddWishlist likes a product. Liking it twice keeps one entry.
func (s *Store) AddWishlist(ctx context.Context, product types.ProductSnapshot) error {
	if product.ProductID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	return s.mutate(ctx, func(next *Snapshot) error {
		for _, entry := range next.Wishlist {
			if entry.ProductID == product.ProductID {
				return nil
			}
		}
		next.Wishlist = append(next.Wishlist, WishlistEntry{
			ProductID: product.ProductID,
			Product:   product,
			AddedAt:   s.now(),
		})
		return nil
	})
}

// RemoveWishlist unlikes a product; unknown products are ignored.
func (s *Store) RemoveWishlist(ctx context.Context, productID string) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		for i, entry := range next.Wishlist {
			if entry.ProductID == productID {
				next.Wishlist = append(next.Wishlist[:i], next.Wishlist[i+1:]...)
				return nil
			}
		}
		return nil
	})
}

// ClearWishlist drops every liked product.
func (s *Store) ClearWishlist(ctx context.Context) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		next.Wishlist = nil
		return nil
	})
}

// ReplaceWishlist overwrites the wishlist with an authoritative copy.
func (s *Store) ReplaceWishlist(ctx context.Context, entries []WishlistEntry) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		next.Wishlist = append([]WishlistEntry(nil), entries...)
		return nil
	})
}

// WishlistItems returns a copy of the liked products.
func (s *Store) WishlistItems() []WishlistEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]WishlistEntry(nil), s.state.Wishlist...)
}

// InWishlist reports whether productID is liked.
func (s *Store) InWishlist(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.state.Wishlist {
		if entry.ProductID == productID {
			return true
		}
	}
	return false
}
