package syncfacade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cartsync-backend/internal/localstore"
	"github.com/angelmondragon/cartsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

type stubRemote struct {
	cart        *types.CartView
	wishlist    *types.WishlistView
	addErr      error
	updateErr   error
	removeErr   error
	clearErr    error
	mergeErr    error
	wishlistErr error
	couponErr   error
	addErrs     []error
	lineCartID  string
	lines       map[string]types.CartLineView

	calls       []string
	clearedID   string
	mergedCart  []types.MergeItem
	mergedLikes []string
}

func newStubRemote() *stubRemote {
	return &stubRemote{
		cart:     &types.CartView{ID: "cart-1"},
		wishlist: &types.WishlistView{ID: "wl-1"},
	}
}

func (s *stubRemote) GetCart(ctx context.Context) (*types.CartView, error) {
	s.calls = append(s.calls, "get_cart")
	if s.cart == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return s.cart, nil
}

func (s *stubRemote) AddItem(ctx context.Context, productID string, quantity int) (*types.CartLineView, error) {
	s.calls = append(s.calls, "add_item")
	if s.addErr != nil {
		return nil, s.addErr
	}
	if len(s.addErrs) > 0 {
		err := s.addErrs[0]
		s.addErrs = s.addErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if s.lines == nil {
		s.lines = map[string]types.CartLineView{}
	}
	line, ok := s.lines[productID]
	if ok {
		line.Quantity += quantity
	} else {
		line = types.CartLineView{ID: uuid.NewString(), CartID: s.lineCartID, ProductID: productID, Quantity: quantity}
	}
	s.lines[productID] = line
	return &line, nil
}

func (s *stubRemote) UpdateItem(ctx context.Context, lineItemID string, quantity int) (*types.LineRef, error) {
	s.calls = append(s.calls, "update_item")
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	return &types.LineRef{CartID: "cart-1", LineItemID: lineItemID}, nil
}

func (s *stubRemote) RemoveItem(ctx context.Context, lineItemID string) (*types.CartRef, error) {
	s.calls = append(s.calls, "remove_item")
	if s.removeErr != nil {
		return nil, s.removeErr
	}
	return &types.CartRef{CartID: "cart-1"}, nil
}

func (s *stubRemote) ClearCart(ctx context.Context, cartID string) (*types.CartRef, error) {
	s.calls = append(s.calls, "clear_cart")
	if s.clearErr != nil {
		return nil, s.clearErr
	}
	s.clearedID = cartID
	return &types.CartRef{CartID: cartID}, nil
}

func (s *stubRemote) ApplyCoupon(ctx context.Context, cartID, code string) (*types.RecalcOutcome, error) {
	s.calls = append(s.calls, "apply_coupon")
	if s.couponErr != nil {
		return nil, s.couponErr
	}
	s.cart.Coupon = &types.CouponView{Code: code, Kind: enums.DiscountKindPercentage, Value: decimal.NewFromInt(10)}
	return &types.RecalcOutcome{CartID: cartID, CouponCode: &code}, nil
}

func (s *stubRemote) RemoveCoupon(ctx context.Context, cartID string) (*types.RecalcOutcome, error) {
	s.calls = append(s.calls, "remove_coupon")
	s.cart.Coupon = nil
	return &types.RecalcOutcome{CartID: cartID}, nil
}

func (s *stubRemote) MergeCart(ctx context.Context, items []types.MergeItem) (*types.MergeResult, error) {
	s.calls = append(s.calls, "merge_cart")
	if s.mergeErr != nil {
		return nil, s.mergeErr
	}
	s.mergedCart = items
	return &types.MergeResult{Status: enums.MergeOutcomeMerged, Added: len(items)}, nil
}

func (s *stubRemote) GetWishlist(ctx context.Context) (*types.WishlistView, error) {
	s.calls = append(s.calls, "get_wishlist")
	return s.wishlist, nil
}

func (s *stubRemote) AddWishlistItem(ctx context.Context, productID string) error {
	s.calls = append(s.calls, "add_wishlist")
	return s.wishlistErr
}

func (s *stubRemote) RemoveWishlistItem(ctx context.Context, productID string) error {
	s.calls = append(s.calls, "remove_wishlist")
	return s.wishlistErr
}

func (s *stubRemote) ClearWishlist(ctx context.Context) error {
	s.calls = append(s.calls, "clear_wishlist")
	return s.wishlistErr
}

func (s *stubRemote) MergeWishlist(ctx context.Context, productIDs []string) (*types.WishlistMergeResult, error) {
	s.calls = append(s.calls, "merge_wishlist")
	s.mergedLikes = productIDs
	return &types.WishlistMergeResult{Status: enums.MergeOutcomeMerged, Added: len(productIDs)}, nil
}

func newFacade(t *testing.T) (*Facade, *localstore.MemoryPersister) {
	t.Helper()
	persister := localstore.NewMemoryPersister()
	store, err := localstore.Open(context.Background(), persister, "device-1")
	require.NoError(t, err)
	f, err := New(store, nil)
	require.NoError(t, err)
	return f, persister
}

func snapshot(price string) types.ProductSnapshot {
	return types.ProductSnapshot{ProductID: uuid.NewString(), NameEN: "Lamp", Price: decimal.RequireFromString(price), Stock: 5}
}

// signIn attaches remote without merging anything.
func signIn(t *testing.T, f *Facade, remote *stubRemote) {
	t.Helper()
	_, err := f.Login(context.Background(), remote)
	require.NoError(t, err)
	remote.calls = nil
}

func TestAnonymousMutationsStayLocal(t *testing.T) {
	f, persister := newFacade(t)
	ctx := context.Background()

	line, err := f.AddItem(ctx, snapshot("5.00"), 2)
	require.NoError(t, err)
	assert.True(t, line.IsTemporary())
	assert.True(t, persister.Has("device-1"))

	require.NoError(t, f.UpdateQuantity(ctx, line.ID, 3))
	assert.Equal(t, 3, f.Store().TotalItems())
	require.NoError(t, f.RemoveItem(ctx, line.ID))
	assert.Empty(t, f.Store().Items())
	assert.False(t, f.Identified())
}

func TestIdentifiedAddAdoptsServerLine(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	signIn(t, f, remote)

	line, err := f.AddItem(context.Background(), snapshot("5.00"), 1)
	require.NoError(t, err)
	assert.False(t, line.IsTemporary())
	assert.Equal(t, []string{"add_item"}, remote.calls)

	got, ok := f.Store().Line(line.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.Quantity)
}

func TestRejectedAddRemovesOptimisticLine(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	signIn(t, f, remote)
	remote.addErr = pkgerrors.InsufficientStock("p", 3, 1)

	_, err := f.AddItem(context.Background(), snapshot("5.00"), 3)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Empty(t, f.Store().Items())
	assert.Equal(t, []string{"add_item"}, remote.calls, "no retry after a rejection")
}

func TestRejectedAddRestoresGrownLine(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	signIn(t, f, remote)
	ctx := context.Background()
	lamp := snapshot("5.00")

	line, err := f.AddItem(ctx, lamp, 1)
	require.NoError(t, err)
	remote.addErr = errors.New("network down")

	_, err = f.AddItem(ctx, lamp, 4)
	require.Error(t, err)
	got, ok := f.Store().Line(line.ID)
	require.True(t, ok)
	assert.Equal(t, line, got)
}

func TestRejectedUpdateRestoresQuantity(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	signIn(t, f, remote)
	ctx := context.Background()

	line, err := f.AddItem(ctx, snapshot("5.00"), 1)
	require.NoError(t, err)
	remote.updateErr = pkgerrors.InsufficientStock(line.ProductID, 9, 5)

	err = f.UpdateQuantity(ctx, line.ID, 9)
	require.Error(t, err)
	got, _ := f.Store().Line(line.ID)
	assert.Equal(t, 1, got.Quantity)

	err = f.UpdateQuantity(ctx, "missing", 2)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRejectedRemoveRestoresLine(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	signIn(t, f, remote)
	ctx := context.Background()

	line, err := f.AddItem(ctx, snapshot("5.00"), 2)
	require.NoError(t, err)
	remote.removeErr = errors.New("timeout")

	require.Error(t, f.RemoveItem(ctx, line.ID))
	got, ok := f.Store().Line(line.ID)
	require.True(t, ok)
	assert.Equal(t, 2, got.Quantity)
}

func TestRejectedClearRestoresCart(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	signIn(t, f, remote)
	ctx := context.Background()

	_, err := f.AddItem(ctx, snapshot("5.00"), 2)
	require.NoError(t, err)
	remote.clearErr = errors.New("timeout")

	require.Error(t, f.ClearCart(ctx))
	assert.Equal(t, 2, f.Store().TotalItems())
	assert.Equal(t, "cart-1", f.Store().CartID())

	remote.clearErr = nil
	require.NoError(t, f.ClearCart(ctx))
	assert.Empty(t, f.Store().Items())
}

func TestWishlistCompensation(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	signIn(t, f, remote)
	ctx := context.Background()
	lamp := snapshot("5.00")

	remote.wishlistErr = errors.New("boom")
	require.Error(t, f.AddToWishlist(ctx, lamp))
	assert.False(t, f.Store().InWishlist(lamp.ProductID))

	remote.wishlistErr = nil
	require.NoError(t, f.AddToWishlist(ctx, lamp))
	remote.wishlistErr = errors.New("boom")
	require.Error(t, f.RemoveFromWishlist(ctx, lamp.ProductID))
	assert.True(t, f.Store().InWishlist(lamp.ProductID))
	require.Error(t, f.ClearWishlist(ctx))
	assert.Len(t, f.Store().WishlistItems(), 1)
}

func TestLoginMergesAndPurgesDeviceRecord(t *testing.T) {
	f, persister := newFacade(t)
	ctx := context.Background()
	lamp := snapshot("5.00")

	_, err := f.AddItem(ctx, lamp, 2)
	require.NoError(t, err)
	require.NoError(t, f.AddToWishlist(ctx, lamp))

	remote := newStubRemote()
	remote.cart = &types.CartView{
		ID:    "cart-9",
		Items: []types.CartLineView{{ID: "line-1", ProductID: lamp.ProductID, Quantity: 2, Product: lamp}},
	}
	remote.wishlist = &types.WishlistView{ID: "wl-9", Items: []types.WishlistItemView{{ProductID: lamp.ProductID, Product: lamp, AddedAt: time.Now()}}}

	result, err := f.Login(ctx, remote)
	require.NoError(t, err)
	assert.Equal(t, enums.MergeOutcomeMerged, result.Cart.Status)
	assert.Equal(t, []types.MergeItem{{ProductID: lamp.ProductID, Quantity: 2}}, remote.mergedCart)
	assert.Equal(t, []string{lamp.ProductID}, remote.mergedLikes)

	assert.True(t, f.Identified())
	assert.False(t, persister.Has("device-1"))
	assert.Equal(t, "cart-9", f.Store().CartID())
	line, ok := f.Store().Line("line-1")
	require.True(t, ok)
	assert.False(t, line.IsTemporary())
}

func TestFailedLoginKeepsAnonymousState(t *testing.T) {
	f, persister := newFacade(t)
	ctx := context.Background()
	_, err := f.AddItem(ctx, snapshot("5.00"), 1)
	require.NoError(t, err)

	remote := newStubRemote()
	remote.mergeErr = pkgerrors.New(pkgerrors.CodeLockUnavailable, "merge in progress")
	_, err = f.Login(ctx, remote)
	require.Error(t, err)

	assert.False(t, f.Identified())
	assert.True(t, persister.Has("device-1"))
	assert.Equal(t, 1, f.Store().TotalItems())
}

func TestLogoutStartsFreshDeviceRecord(t *testing.T) {
	f, persister := newFacade(t)
	remote := newStubRemote()
	signIn(t, f, remote)
	ctx := context.Background()

	require.NoError(t, f.Logout(ctx, "device-2"))
	assert.False(t, f.Identified())
	assert.True(t, persister.Has("device-2"))
	assert.Empty(t, f.Store().Items())

	_, err := f.AddItem(ctx, snapshot("1.00"), 1)
	require.NoError(t, err)
	assert.Empty(t, remote.calls)
}

func TestResumeSkipsMerge(t *testing.T) {
	f, persister := newFacade(t)
	remote := newStubRemote()
	remote.cart.Items = []types.CartLineView{{ID: "line-9", ProductID: "p-9", Quantity: 2}}
	ctx := context.Background()

	require.NoError(t, f.Resume(ctx, remote))
	assert.True(t, f.Identified())
	assert.False(t, persister.Has("device-1"))
	assert.NotContains(t, remote.calls, "merge_cart")
	items := f.Store().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "line-9", items[0].ID)
}

func TestCouponsRequireSignIn(t *testing.T) {
	f, _ := newFacade(t)
	ctx := context.Background()

	err := f.ApplyCoupon(ctx, "SAVE10")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	err = f.Refresh(ctx)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	remote := newStubRemote()
	signIn(t, f, remote)
	require.NoError(t, f.ApplyCoupon(ctx, "SAVE10"))
	require.NotNil(t, f.Store().Coupon())
	assert.Equal(t, "SAVE10", f.Store().Coupon().Code)

	require.NoError(t, f.RemoveCoupon(ctx))
	assert.Nil(t, f.Store().Coupon())

	remote.couponErr = pkgerrors.New(pkgerrors.CodeCouponInvalid, "coupon expired")
	err = f.ApplyCoupon(ctx, "OLD")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCouponInvalid))
}

func TestRefreshTreatsMissingCartAsEmpty(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	signIn(t, f, remote)
	remote.cart = nil

	require.NoError(t, f.Refresh(context.Background()))
	assert.Empty(t, f.Store().Items())
	assert.Empty(t, f.Store().CartID())
}

func TestClearCartReachesServerAfterFirstAdd(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	remote.cart = nil
	signIn(t, f, remote)
	remote.lineCartID = "cart-7"
	ctx := context.Background()

	_, err := f.AddItem(ctx, snapshot("5.00"), 1)
	require.NoError(t, err)
	assert.Equal(t, "cart-7", f.Store().CartID())

	require.NoError(t, f.ClearCart(ctx))
	assert.Equal(t, []string{"add_item", "clear_cart"}, remote.calls)
	assert.Equal(t, "cart-7", remote.clearedID)
	assert.Empty(t, f.Store().Items())
}

func TestClearCartLooksUpUnknownCartID(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	remote.cart = nil
	signIn(t, f, remote)
	ctx := context.Background()

	require.NoError(t, f.ClearCart(ctx))
	assert.Equal(t, []string{"get_cart"}, remote.calls, "no server cart means nothing to clear")
	remote.calls = nil

	_, err := f.AddItem(ctx, snapshot("5.00"), 1)
	require.NoError(t, err)
	require.Empty(t, f.Store().CartID())
	remote.cart = &types.CartView{ID: "cart-3"}

	require.NoError(t, f.ClearCart(ctx))
	assert.Equal(t, []string{"add_item", "get_cart", "clear_cart"}, remote.calls)
	assert.Equal(t, "cart-3", remote.clearedID)
	assert.Empty(t, f.Store().Items())
	assert.Equal(t, "cart-3", f.Store().CartID())
}

func TestConcurrentAddsRestoreAgainstCurrentLine(t *testing.T) {
	f, _ := newFacade(t)
	remote := newStubRemote()
	signIn(t, f, remote)
	ctx := context.Background()
	lamp := snapshot("5.00")

	seeded, err := f.AddItem(ctx, lamp, 2)
	require.NoError(t, err)
	remote.addErrs = []error{nil, errors.New("network down")}

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.AddItem(ctx, lamp, 1)
		}()
	}
	wg.Wait()

	items := f.Store().Items()
	require.Len(t, items, 1)
	assert.Equal(t, seeded.ID, items[0].ID)
	assert.Equal(t, 3, items[0].Quantity, "local cart matches the server after one accepted add")
}
