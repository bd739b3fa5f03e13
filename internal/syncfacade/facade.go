// Package syncfacade is the single cart and wishlist API a client uses. It
// updates the device store first and, for signed-in visitors, confirms each
// change with the server, undoing the local change when the server refuses.
package syncfacade

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/cartsync-backend/internal/localstore"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/logger"
	"github.com/angelmondragon/cartsync-backend/pkg/pricing"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

// Remote is the server cart surface of a signed-in visitor.
type Remote interface {
	GetCart(ctx context.Context) (*types.CartView, error)
	AddItem(ctx context.Context, productID string, quantity int) (*types.CartLineView, error)
	UpdateItem(ctx context.Context, lineItemID string, quantity int) (*types.LineRef, error)
	RemoveItem(ctx context.Context, lineItemID string) (*types.CartRef, error)
	ClearCart(ctx context.Context, cartID string) (*types.CartRef, error)
	ApplyCoupon(ctx context.Context, cartID, code string) (*types.RecalcOutcome, error)
	RemoveCoupon(ctx context.Context, cartID string) (*types.RecalcOutcome, error)
	MergeCart(ctx context.Context, items []types.MergeItem) (*types.MergeResult, error)
	GetWishlist(ctx context.Context) (*types.WishlistView, error)
	AddWishlistItem(ctx context.Context, productID string) error
	RemoveWishlistItem(ctx context.Context, productID string) error
	ClearWishlist(ctx context.Context) error
	MergeWishlist(ctx context.Context, productIDs []string) (*types.WishlistMergeResult, error)
}

// command is one local mutation plus its server confirmation. apply returns
// the exact compensator for what it changed.
type command struct {
	name    string
	apply   func(ctx context.Context) (undo func(ctx context.Context) error, err error)
	confirm func(ctx context.Context) error
}

// Facade routes cart and wishlist operations for anonymous and signed-in visitors.
type Facade struct {
	mu     sync.Mutex
	store  *localstore.Store
	remote Remote
	logg   *logger.Logger
	now    func() time.Time
}

// New wraps a device store. The visitor starts anonymous.
func New(store *localstore.Store, logg *logger.Logger) (*Facade, error) {
	if store == nil {
		return nil, fmt.Errorf("local store required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Facade{store: store, logg: logg, now: time.Now}, nil
}

// Store exposes the visible state for reads.
func (f *Facade) Store() *localstore.Store {
	return f.store
}

// Identified reports whether a server session is attached.
func (f *Facade) Identified() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.remote != nil
}

// run applies cmd locally and confirms it remotely when identified. A failed
// confirmation is compensated and surfaced, never retried.
func (f *Facade) run(ctx context.Context, cmd command) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	undo, err := cmd.apply(ctx)
	if err != nil {
		return err
	}
	if f.remote == nil || cmd.confirm == nil {
		return nil
	}
	if err := cmd.confirm(ctx); err != nil {
		f.logg.Warn(f.logg.WithFields(ctx, map[string]any{"command": cmd.name, "error": err.Error()}), "server rejected change; restoring local state")
		if undoErr := undo(ctx); undoErr != nil {
			return multierr.Append(err, fmt.Errorf("restore after %s: %w", cmd.name, undoErr))
		}
		return err
	}
	return nil
}

// AddItem adds quantity units of product to the cart.
func (f *Facade) AddItem(ctx context.Context, product types.ProductSnapshot, quantity int) (localstore.Line, error) {
	var added localstore.Line
	err := f.run(ctx, command{
		name: "add_item",
		apply: func(ctx context.Context) (func(context.Context) error, error) {
			prev, existed := f.store.LineForProduct(product.ProductID)
			line, err := f.store.AddItem(ctx, product, quantity)
			if err != nil {
				return nil, err
			}
			added = line
			restore := prev
			if !existed {
				restore = localstore.Line{ID: line.ID}
			}
			return func(ctx context.Context) error { return f.store.Restore(ctx, restore, existed) }, nil
		},
		confirm: func(ctx context.Context) error {
			confirmed, err := f.remote.AddItem(ctx, product.ProductID, quantity)
			if err != nil {
				return err
			}
			line := f.lineFromView(*confirmed, added.AddedAt)
			if line.Product.ProductID == "" {
				line.Product = added.Product
			}
			if err := f.store.Adopt(ctx, added.ID, line); err != nil {
				return err
			}
			if confirmed.CartID != "" && f.store.CartID() == "" {
				if err := f.store.SetCartID(ctx, confirmed.CartID); err != nil {
					return err
				}
			}
			added = line
			return nil
		},
	})
	if err != nil {
		return localstore.Line{}, err
	}
	return added, nil
}

// UpdateQuantity sets a line quantity; zero or less removes the line.
func (f *Facade) UpdateQuantity(ctx context.Context, lineID string, quantity int) error {
	if quantity <= 0 {
		return f.RemoveItem(ctx, lineID)
	}
	return f.run(ctx, command{
		name: "update_quantity",
		apply: func(ctx context.Context) (func(context.Context) error, error) {
			prev, existed := f.store.Line(lineID)
			if !existed {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
			}
			if err := f.store.UpdateQuantity(ctx, lineID, quantity); err != nil {
				return nil, err
			}
			return func(ctx context.Context) error { return f.store.Restore(ctx, prev, true) }, nil
		},
		confirm: func(ctx context.Context) error {
			_, err := f.remote.UpdateItem(ctx, lineID, quantity)
			return err
		},
	})
}

// RemoveItem deletes a line; unknown lines are ignored.
func (f *Facade) RemoveItem(ctx context.Context, lineID string) error {
	var known bool
	return f.run(ctx, command{
		name: "remove_item",
		apply: func(ctx context.Context) (func(context.Context) error, error) {
			prev, existed := f.store.Line(lineID)
			if !existed {
				return func(context.Context) error { return nil }, nil
			}
			known = true
			if err := f.store.RemoveItem(ctx, lineID); err != nil {
				return nil, err
			}
			return func(ctx context.Context) error { return f.store.Restore(ctx, prev, true) }, nil
		},
		confirm: func(ctx context.Context) error {
			if !known {
				return nil
			}
			_, err := f.remote.RemoveItem(ctx, lineID)
			return err
		},
	})
}

// ClearCart empties the cart locally and, when identified, on the server.
func (f *Facade) ClearCart(ctx context.Context) error {
	var prev localstore.Snapshot
	return f.run(ctx, command{
		name: "clear_cart",
		apply: func(ctx context.Context) (func(context.Context) error, error) {
			prev = f.store.Snapshot()
			if err := f.store.Clear(ctx); err != nil {
				return nil, err
			}
			return func(ctx context.Context) error {
				return f.store.Replace(ctx, prev.CartID, prev.Items, prev.Coupon)
			}, nil
		},
		confirm: func(ctx context.Context) error {
			cartID, err := f.serverCartID(ctx)
			if err != nil || cartID == "" {
				return err
			}
			_, err = f.remote.ClearCart(ctx, cartID)
			return err
		},
	})
}

// serverCartID resolves the server cart id without replacing local state.
// An empty id with a nil error means the account has no cart yet.
func (f *Facade) serverCartID(ctx context.Context) (string, error) {
	if id := f.store.CartID(); id != "" {
		return id, nil
	}
	view, err := f.remote.GetCart(ctx)
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return "", nil
	case err != nil:
		return "", err
	}
	if view.ID == "" {
		return "", nil
	}
	if err := f.store.SetCartID(ctx, view.ID); err != nil {
		return "", err
	}
	return view.ID, nil
}

// AddToWishlist likes a product.
func (f *Facade) AddToWishlist(ctx context.Context, product types.ProductSnapshot) error {
	return f.run(ctx, command{
		name: "add_wishlist",
		apply: func(ctx context.Context) (func(context.Context) error, error) {
			present := f.store.InWishlist(product.ProductID)
			if err := f.store.AddWishlist(ctx, product); err != nil {
				return nil, err
			}
			return func(ctx context.Context) error {
				if present {
					return nil
				}
				return f.store.RemoveWishlist(ctx, product.ProductID)
			}, nil
		},
		confirm: func(ctx context.Context) error {
			return f.remote.AddWishlistItem(ctx, product.ProductID)
		},
	})
}

// RemoveFromWishlist unlikes a product.
func (f *Facade) RemoveFromWishlist(ctx context.Context, productID string) error {
	return f.run(ctx, command{
		name: "remove_wishlist",
		apply: func(ctx context.Context) (func(context.Context) error, error) {
			prev := f.store.WishlistItems()
			if err := f.store.RemoveWishlist(ctx, productID); err != nil {
				return nil, err
			}
			return func(ctx context.Context) error { return f.store.ReplaceWishlist(ctx, prev) }, nil
		},
		confirm: func(ctx context.Context) error {
			return f.remote.RemoveWishlistItem(ctx, productID)
		},
	})
}

// ClearWishlist drops every liked product.
func (f *Facade) ClearWishlist(ctx context.Context) error {
	return f.run(ctx, command{
		name: "clear_wishlist",
		apply: func(ctx context.Context) (func(context.Context) error, error) {
			prev := f.store.WishlistItems()
			if err := f.store.ClearWishlist(ctx); err != nil {
				return nil, err
			}
			return func(ctx context.Context) error { return f.store.ReplaceWishlist(ctx, prev) }, nil
		},
		confirm: func(ctx context.Context) error {
			return f.remote.ClearWishlist(ctx)
		},
	})
}

// ApplyCoupon attaches a coupon to the server cart and refreshes.
func (f *Facade) ApplyCoupon(ctx context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to use coupons")
	}
	cartID, err := f.ensureCartID(ctx)
	if err != nil {
		return err
	}
	if _, err := f.remote.ApplyCoupon(ctx, cartID, code); err != nil {
		return err
	}
	return f.refreshLocked(ctx)
}

// RemoveCoupon detaches the coupon from the server cart and refreshes.
func (f *Facade) RemoveCoupon(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to use coupons")
	}
	cartID, err := f.ensureCartID(ctx)
	if err != nil {
		return err
	}
	if _, err := f.remote.RemoveCoupon(ctx, cartID); err != nil {
		return err
	}
	return f.refreshLocked(ctx)
}

func (f *Facade) ensureCartID(ctx context.Context) (string, error) {
	if id := f.store.CartID(); id != "" {
		return id, nil
	}
	if err := f.refreshLocked(ctx); err != nil {
		return "", err
	}
	if id := f.store.CartID(); id != "" {
		return id, nil
	}
	return "", pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
}

// Refresh replaces the visible state with the server copy.
func (f *Facade) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remote == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "refresh requires a signed-in visitor")
	}
	return f.refreshLocked(ctx)
}

func (f *Facade) refreshLocked(ctx context.Context) error {
	view, err := f.remote.GetCart(ctx)
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		view = &types.CartView{}
	case err != nil:
		return err
	}
	if err := f.store.Replace(ctx, view.ID, f.linesFromView(view), couponFromView(view.Coupon)); err != nil {
		return err
	}

	wishlist, err := f.remote.GetWishlist(ctx)
	if err != nil {
		return err
	}
	entries := make([]localstore.WishlistEntry, 0, len(wishlist.Items))
	for _, item := range wishlist.Items {
		entries = append(entries, localstore.WishlistEntry{ProductID: item.ProductID, Product: item.Product, AddedAt: item.AddedAt})
	}
	return f.store.ReplaceWishlist(ctx, entries)
}

// LoginResult reports what the guest merges did.
type LoginResult struct {
	Cart     *types.MergeResult         `json:"cart"`
	Wishlist *types.WishlistMergeResult `json:"wishlist"`
}

// Login merges the guest collections into the account behind remote, drops
// the device record and switches to identified mode. On a merge failure the
// visitor stays anonymous with local state intact.
func (f *Facade) Login(ctx context.Context, remote Remote) (*LoginResult, error) {
	if remote == nil {
		return nil, fmt.Errorf("remote session required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.store.Items()
	mergeItems := make([]types.MergeItem, 0, len(items))
	for _, line := range items {
		mergeItems = append(mergeItems, types.MergeItem{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	cartResult, err := remote.MergeCart(ctx, mergeItems)
	if err != nil {
		return nil, err
	}

	liked := f.store.WishlistItems()
	productIDs := make([]string, 0, len(liked))
	for _, entry := range liked {
		productIDs = append(productIDs, entry.ProductID)
	}
	wishlistResult, err := remote.MergeWishlist(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	for _, skipped := range cartResult.Skipped {
		f.logg.Warn(f.logg.WithFields(ctx, map[string]any{
			"product_id": skipped.ProductID,
			"reason":     skipped.Reason.String(),
			"available":  skipped.Available,
		}), "guest cart item was not merged")
	}

	if err := f.store.Purge(ctx); err != nil {
		return nil, err
	}
	f.remote = remote
	if err := f.refreshLocked(ctx); err != nil {
		return nil, err
	}
	return &LoginResult{Cart: cartResult, Wishlist: wishlistResult}, nil
}

// Resume reconnects a device that already logged in, without merging again.
// The device record is dropped and state is reloaded from the server.
func (f *Facade) Resume(ctx context.Context, remote Remote) error {
	if remote == nil {
		return fmt.Errorf("remote session required")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.store.Purge(ctx); err != nil {
		return err
	}
	f.remote = remote
	return f.refreshLocked(ctx)
}

// Logout drops the server session and starts a new anonymous device record.
func (f *Facade) Logout(ctx context.Context, deviceKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remote = nil
	return f.store.Attach(ctx, deviceKey)
}

func (f *Facade) linesFromView(view *types.CartView) []localstore.Line {
	lines := make([]localstore.Line, 0, len(view.Items))
	for _, item := range view.Items {
		lines = append(lines, f.lineFromView(item, view.UpdatedAt))
	}
	return lines
}

func (f *Facade) lineFromView(item types.CartLineView, addedAt time.Time) localstore.Line {
	if addedAt.IsZero() {
		addedAt = f.now()
	}
	return localstore.Line{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Product:   item.Product,
		AddedAt:   addedAt,
	}
}

func couponFromView(view *types.CouponView) *pricing.Coupon {
	if view == nil {
		return nil
	}
	return &pricing.Coupon{Code: view.Code, Kind: view.Kind, Value: view.Value, IsActive: true}
}
