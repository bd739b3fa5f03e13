// Package merge folds a guest's device cart and wishlist into the account
// collections exactly once per user.
package merge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/cartsync-backend/internal/cart"
	"github.com/angelmondragon/cartsync-backend/internal/catalog"
	"github.com/angelmondragon/cartsync-backend/internal/wishlist"
	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
	"github.com/angelmondragon/cartsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/lock"
	"github.com/angelmondragon/cartsync-backend/pkg/logger"
	"github.com/angelmondragon/cartsync-backend/pkg/metrics"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// LockStore hands out the per-user merge locks.
type LockStore interface {
	lock.Store
	MergeLockKey(kind, userID string) string
}

// LocalItem is one guest cart line.
type LocalItem struct {
	ProductID uuid.UUID
	Quantity  int
}

// Params bundles the coordinator dependencies.
type Params struct {
	Records   *Repository
	Carts     cart.CartRepository
	Wishlists *wishlist.Repository
	Catalog   *catalog.Repository
	CartSvc   cart.Service
	Wishlist  wishlist.Service
	Tx        txRunner
	Locks     LockStore
	LockTTL   time.Duration
	Metrics   *metrics.CartMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

// Coordinator runs guest merges under a per-user lock.
type Coordinator struct {
	records   *Repository
	carts     cart.CartRepository
	wishlists *wishlist.Repository
	catalog   *catalog.Repository
	cartSvc   cart.Service
	wishSvc   wishlist.Service
	tx        txRunner
	locks     LockStore
	lockTTL   time.Duration
	metrics   *metrics.CartMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewCoordinator validates dependencies and builds a coordinator.
func NewCoordinator(p Params) (*Coordinator, error) {
	switch {
	case p.Records == nil:
		return nil, fmt.Errorf("merge record repository required")
	case p.Carts == nil:
		return nil, fmt.Errorf("cart repository required")
	case p.Wishlists == nil:
		return nil, fmt.Errorf("wishlist repository required")
	case p.Catalog == nil:
		return nil, fmt.Errorf("catalog repository required")
	case p.CartSvc == nil:
		return nil, fmt.Errorf("cart service required")
	case p.Wishlist == nil:
		return nil, fmt.Errorf("wishlist service required")
	case p.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case p.Locks == nil:
		return nil, fmt.Errorf("lock store required")
	}
	if p.Logger == nil {
		p.Logger = logger.Nop()
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &Coordinator{
		records:   p.Records,
		carts:     p.Carts,
		wishlists: p.Wishlists,
		catalog:   p.Catalog,
		cartSvc:   p.CartSvc,
		wishSvc:   p.Wishlist,
		tx:        p.Tx,
		locks:     p.Locks,
		lockTTL:   p.LockTTL,
		metrics:   p.Metrics,
		logg:      p.Logger,
		now:       p.Now,
	}, nil
}

// MergeCart folds the guest cart lines into the user's server cart.
func (c *Coordinator) MergeCart(ctx context.Context, userID uuid.UUID, items []LocalItem) (result *types.MergeResult, err error) {
	ctx = c.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "merge_kind": enums.MergeKindCart.String()})
	start := c.now()
	defer func() {
		status := "error"
		if err == nil {
			status = result.Status.String()
		}
		c.metrics.ObserveMerge(enums.MergeKindCart.String(), status, c.now().Sub(start))
	}()

	err = c.withLock(ctx, enums.MergeKindCart, userID, func() error {
		outcome, skipped, added, updated, runErr := c.runCart(ctx, userID, items)
		if runErr != nil {
			return runErr
		}
		c.cartSvc.Invalidate(ctx, userID)
		view, viewErr := c.cartView(ctx, userID)
		if viewErr != nil {
			return viewErr
		}
		c.reportSkips(ctx, skipped)
		result = &types.MergeResult{Status: outcome, Added: added, Updated: updated, Skipped: skipped, Cart: view}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.Cart != nil && result.Cart.ID != "" {
		ctx = c.logg.WithCartID(ctx, result.Cart.ID)
	}
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"status":  result.Status.String(),
		"added":   result.Added,
		"updated": result.Updated,
		"skipped": len(result.Skipped),
	}), "guest cart merge finished")
	return result, nil
}

func (c *Coordinator) runCart(ctx context.Context, userID uuid.UUID, items []LocalItem) (enums.MergeOutcome, []types.SkippedItem, int, int, error) {
	skipped := []types.SkippedItem{}
	proceed, err := c.begin(ctx, enums.MergeKindCart, userID)
	if err != nil || !proceed {
		return enums.MergeOutcomeAlreadyCompleted, skipped, 0, 0, err
	}
	if len(items) == 0 {
		return enums.MergeOutcomeEmpty, skipped, 0, 0, c.finishEmpty(ctx, enums.MergeKindCart, userID)
	}

	order, wanted := collapse(items)
	var added, updated int
	var finished bool
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.carts.WithTx(tx)
		if err := repo.LockUser(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return err
		}
		done, err := c.completedInTx(ctx, tx, enums.MergeKindCart, userID)
		if err != nil || done {
			finished = done
			return err
		}
		products, err := c.catalog.WithTx(tx).FindProducts(ctx, order)
		if err != nil {
			return err
		}
		ensured, err := repo.EnsureCart(ctx, userID)
		if err != nil {
			return err
		}
		current, err := repo.FindByID(ctx, ensured.ID)
		if err != nil {
			return err
		}
		existing := make(map[uuid.UUID]int, len(current.Items))
		for _, item := range current.Items {
			existing[item.ProductID] = item.Quantity
		}

		rows := make([]models.CartItem, 0, len(order))
		for _, productID := range order {
			requested := wanted[productID]
			product, found := products[productID]
			switch {
			case requested <= 0:
				skipped = append(skipped, skip(productID, enums.SkipReasonInvalidQuantity, requested, 0))
				continue
			case !found:
				skipped = append(skipped, skip(productID, enums.SkipReasonProductNotFound, requested, 0))
				continue
			case !product.IsActive:
				skipped = append(skipped, skip(productID, enums.SkipReasonProductInactive, requested, 0))
				continue
			}
			have, inCart := existing[productID]
			final := have + requested
			if final > product.Stock {
				skipped = append(skipped, skip(productID, enums.SkipReasonInsufficientStock, final, product.Stock))
				continue
			}
			rows = append(rows, models.CartItem{CartID: ensured.ID, ProductID: productID, Quantity: final})
			if inCart {
				updated++
			} else {
				added++
			}
		}

		if err := repo.UpsertItems(ctx, rows); err != nil {
			return err
		}
		if _, err := cart.Recalculate(ctx, repo, ensured.ID, c.now()); err != nil {
			return err
		}
		return c.records.WithTx(tx).MarkCompleted(ctx, userID, enums.MergeKindCart, c.now())
	})
	if err != nil {
		return "", nil, 0, 0, c.abort(ctx, enums.MergeKindCart, userID, err)
	}
	if finished {
		return enums.MergeOutcomeAlreadyCompleted, []types.SkippedItem{}, 0, 0, nil
	}
	return enums.MergeOutcomeMerged, skipped, added, updated, nil
}

// MergeWishlist unions the guest wishlist into the user's wishlist.
func (c *Coordinator) MergeWishlist(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (result *types.WishlistMergeResult, err error) {
	ctx = c.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "merge_kind": enums.MergeKindWishlist.String()})
	start := c.now()
	defer func() {
		status := "error"
		if err == nil {
			status = result.Status.String()
		}
		c.metrics.ObserveMerge(enums.MergeKindWishlist.String(), status, c.now().Sub(start))
	}()

	err = c.withLock(ctx, enums.MergeKindWishlist, userID, func() error {
		outcome, skipped, added, runErr := c.runWishlist(ctx, userID, productIDs)
		if runErr != nil {
			return runErr
		}
		view, viewErr := c.wishSvc.GetWishlistFull(ctx, userID)
		if viewErr != nil {
			return viewErr
		}
		c.reportSkips(ctx, skipped)
		result = &types.WishlistMergeResult{Status: outcome, Added: added, Skipped: skipped, Wishlist: view}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"status":  result.Status.String(),
		"added":   result.Added,
		"skipped": len(result.Skipped),
	}), "guest wishlist merge finished")
	return result, nil
}

func (c *Coordinator) runWishlist(ctx context.Context, userID uuid.UUID, productIDs []uuid.UUID) (enums.MergeOutcome, []types.SkippedItem, int, error) {
	skipped := []types.SkippedItem{}
	proceed, err := c.begin(ctx, enums.MergeKindWishlist, userID)
	if err != nil || !proceed {
		return enums.MergeOutcomeAlreadyCompleted, skipped, 0, err
	}
	if len(productIDs) == 0 {
		return enums.MergeOutcomeEmpty, skipped, 0, c.finishEmpty(ctx, enums.MergeKindWishlist, userID)
	}

	seen := make(map[uuid.UUID]struct{}, len(productIDs))
	unique := make([]uuid.UUID, 0, len(productIDs))
	for _, id := range productIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var added int64
	var finished bool
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := c.carts.WithTx(tx).LockUser(ctx, userID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
			}
			return err
		}
		done, err := c.completedInTx(ctx, tx, enums.MergeKindWishlist, userID)
		if err != nil || done {
			finished = done
			return err
		}
		repo := c.wishlists.WithTx(tx)
		products, err := c.catalog.WithTx(tx).FindProducts(ctx, unique)
		if err != nil {
			return err
		}
		keep := make([]uuid.UUID, 0, len(unique))
		for _, id := range unique {
			product, found := products[id]
			switch {
			case !found:
				skipped = append(skipped, skip(id, enums.SkipReasonProductNotFound, 0, 0))
			case !product.IsActive:
				skipped = append(skipped, skip(id, enums.SkipReasonProductInactive, 0, 0))
			default:
				keep = append(keep, id)
			}
		}
		list, err := repo.EnsureWishlist(ctx, userID)
		if err != nil {
			return err
		}
		if added, err = repo.AddItems(ctx, list.ID, keep); err != nil {
			return err
		}
		return c.records.WithTx(tx).MarkCompleted(ctx, userID, enums.MergeKindWishlist, c.now())
	})
	if err != nil {
		return "", nil, 0, c.abort(ctx, enums.MergeKindWishlist, userID, err)
	}
	if finished {
		return enums.MergeOutcomeAlreadyCompleted, []types.SkippedItem{}, 0, nil
	}
	return enums.MergeOutcomeMerged, skipped, int(added), nil
}

// withLock runs fn while holding the user's merge lock for kind. It never
// runs fn unlocked.
func (c *Coordinator) withLock(ctx context.Context, kind enums.MergeKind, userID uuid.UUID, fn func() error) (err error) {
	lk, err := lock.NewRedisLock(c.locks, c.locks.MergeLockKey(kind.String(), userID.String()), c.lockTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build merge lock")
	}
	acquired, err := lk.Acquire(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire merge lock")
	}
	if !acquired {
		c.logg.Info(c.logg.WithField(ctx, "lock_key", lk.Key()), "merge lock held elsewhere")
		return pkgerrors.New(pkgerrors.CodeLockUnavailable, "another merge is in progress for this user")
	}
	defer func() {
		releaseErr := lk.Release(context.WithoutCancel(ctx))
		if releaseErr == nil {
			return
		}
		if err != nil {
			err = multierr.Append(err, releaseErr)
			return
		}
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{"lock_key": lk.Key(), "error": releaseErr.Error()}), "merge lock release failed")
	}()
	return fn()
}

// begin reports whether the merge should run, moving the record to pending.
// Unknown users fail before any record is written.
func (c *Coordinator) begin(ctx context.Context, kind enums.MergeKind, userID uuid.UUID) (bool, error) {
	exists, err := c.wishlists.UserExists(ctx, userID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user")
	}
	if !exists {
		return false, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	record, err := c.records.Find(ctx, userID, kind)
	switch {
	case err == nil && record.Status == enums.MergeStatusCompleted:
		return false, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load merge record")
	}
	if err := c.records.MarkPending(ctx, userID, kind, c.now()); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark merge pending")
	}
	return true, nil
}

// completedInTx re-reads the record under the user row lock. A merge whose
// lock expired may have completed after begin saw it pending.
func (c *Coordinator) completedInTx(ctx context.Context, tx *gorm.DB, kind enums.MergeKind, userID uuid.UUID) (bool, error) {
	record, err := c.records.WithTx(tx).FindForUpdate(ctx, userID, kind)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	if record.Status != enums.MergeStatusCompleted {
		return false, nil
	}
	c.logg.Warn(ctx, "merge completed by an earlier attempt; skipping writes")
	return true, nil
}

func (c *Coordinator) finishEmpty(ctx context.Context, kind enums.MergeKind, userID uuid.UUID) error {
	if err := c.records.MarkCompleted(ctx, userID, kind, c.now()); err != nil {
		return c.abort(ctx, kind, userID, err)
	}
	return nil
}

// abort returns the record to ABSENT so the merge can be retried.
func (c *Coordinator) abort(ctx context.Context, kind enums.MergeKind, userID uuid.UUID, cause error) error {
	if pkgerrors.As(cause) == nil {
		cause = pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "merge failed")
	}
	if err := c.records.Delete(context.WithoutCancel(ctx), userID, kind); err != nil {
		return multierr.Append(cause, fmt.Errorf("reset merge record: %w", err))
	}
	c.logg.Warn(c.logg.WithField(ctx, "error", cause.Error()), "guest merge aborted")
	return cause
}

func (c *Coordinator) cartView(ctx context.Context, userID uuid.UUID) (*types.CartView, error) {
	view, err := c.cartSvc.GetCartFull(ctx, userID)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return &types.CartView{UserID: userID.String(), Items: []types.CartLineView{}}, nil
	}
	return view, err
}

func (c *Coordinator) reportSkips(ctx context.Context, skipped []types.SkippedItem) {
	for _, item := range skipped {
		c.metrics.IncSkipped(item.Reason.String())
		c.logg.Warn(c.logg.WithFields(ctx, map[string]any{
			"product_id": item.ProductID,
			"reason":     item.Reason.String(),
			"requested":  item.Requested,
			"available":  item.Available,
		}), "guest item skipped during merge")
	}
}

// collapse sums duplicate guest lines, keeping first-seen order.
func collapse(items []LocalItem) ([]uuid.UUID, map[uuid.UUID]int) {
	order := make([]uuid.UUID, 0, len(items))
	wanted := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		if _, seen := wanted[item.ProductID]; !seen {
			order = append(order, item.ProductID)
		}
		wanted[item.ProductID] += item.Quantity
	}
	return order, wanted
}

func skip(productID uuid.UUID, reason enums.SkipReason, requested, available int) types.SkippedItem {
	return types.SkippedItem{
		ProductID: productID.String(),
		Reason:    reason,
		Requested: requested,
		Available: available,
	}
}
