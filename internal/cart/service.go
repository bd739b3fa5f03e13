package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/angelmondragon/cartsync-backend/internal/cartcache"
	"github.com/angelmondragon/cartsync-backend/internal/catalog"
	"github.com/angelmondragon/cartsync-backend/pkg/db"
	"github.com/angelmondragon/cartsync-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/logger"
	"github.com/angelmondragon/cartsync-backend/pkg/metrics"
	"github.com/angelmondragon/cartsync-backend/pkg/pricing"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the authoritative server cart.
type Service interface {
	AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) (*types.CartLineView, error)
	UpdateCartItem(ctx context.Context, userID, lineItemID uuid.UUID, quantity int) (*types.LineRef, error)
	RemoveCartItem(ctx context.Context, userID, lineItemID uuid.UUID) (*types.CartRef, error)
	ApplyCoupon(ctx context.Context, userID, cartID uuid.UUID, code string) (*types.RecalcOutcome, error)
	RemoveCoupon(ctx context.Context, userID, cartID uuid.UUID) (*types.RecalcOutcome, error)
	ClearCart(ctx context.Context, userID, cartID uuid.UUID) (*types.CartRef, error)
	ResetCart(ctx context.Context, userID, cartID uuid.UUID) (*types.CartRef, error)
	GetCartFull(ctx context.Context, userID uuid.UUID) (*types.CartView, error)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// ServiceParams bundles the cart service dependencies.
type ServiceParams struct {
	Repo              CartRepository
	Catalog           *catalog.Repository
	Tx                txRunner
	Cache             cartcache.Cache
	Metrics           *metrics.CartMetrics
	Logger            *logger.Logger
	LowStockThreshold int
	Now               func() time.Time
}

type service struct {
	repo      CartRepository
	catalog   *catalog.Repository
	tx        txRunner
	cache     cartcache.Cache
	metrics   *metrics.CartMetrics
	logg      *logger.Logger
	threshold int
	now       func() time.Time
	loads     singleflight.Group
}

// NewService builds a cart service backed by the provided stack.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Cache == nil {
		params.Cache = cartcache.Noop{}
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.LowStockThreshold <= 0 {
		params.LowStockThreshold = pricing.DefaultLowStockThreshold
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &service{
		repo:      params.Repo,
		catalog:   params.Catalog,
		tx:        params.Tx,
		cache:     params.Cache,
		metrics:   params.Metrics,
		logg:      params.Logger,
		threshold: params.LowStockThreshold,
		now:       params.Now,
	}, nil
}

// AddToCart adds quantity units of a product, creating the cart on first use.
func (s *service) AddToCart(ctx context.Context, userID, productID uuid.UUID, quantity int) (*types.CartLineView, error) {
	if quantity <= 0 {
		return nil, invalidQuantity(quantity)
	}

	var line *types.CartLineView
	err := s.mutate(ctx, "add", userID, func(repo CartRepository, products *catalog.Repository) error {
		product, err := products.FindProduct(ctx, productID)
		if err != nil {
			return notFound(err, "product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}

		cart, err := repo.EnsureCart(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure cart")
		}

		item, err := repo.FindItemByProduct(ctx, cart.ID, productID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			item = &models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
			if err := pricing.CheckStock(productID.String(), product.Stock, item.Quantity); err != nil {
				return err
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				if db.IsUniqueViolation(err, "cart_items_cart_product_key") {
					return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart line already exists")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart line")
			}
		case err != nil:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		default:
			item.Quantity += quantity
			if err := pricing.CheckStock(productID.String(), product.Stock, item.Quantity); err != nil {
				return err
			}
			if err := repo.UpdateItemQuantity(ctx, item.ID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
		}

		recalculated, err := s.recalculate(ctx, repo, cart.ID)
		if err != nil {
			return err
		}
		for i := range recalculated.Items {
			if recalculated.Items[i].ID == item.ID {
				view := lineView(&recalculated.Items[i], s.threshold)
				line = &view
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// UpdateCartItem sets an absolute quantity on one of the user's lines.
func (s *service) UpdateCartItem(ctx context.Context, userID, lineItemID uuid.UUID, quantity int) (*types.LineRef, error) {
	if quantity <= 0 {
		return nil, invalidQuantity(quantity)
	}

	var ref *types.LineRef
	err := s.mutate(ctx, "update", userID, func(repo CartRepository, products *catalog.Repository) error {
		item, err := repo.FindItem(ctx, lineItemID, userID)
		if err != nil {
			return notFound(err, "cart line")
		}
		product, err := products.FindProduct(ctx, item.ProductID)
		if err != nil {
			return notFound(err, "product")
		}
		if !product.IsActive {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if err := pricing.CheckStock(item.ProductID.String(), product.Stock, quantity); err != nil {
			return err
		}
		if err := repo.UpdateItemQuantity(ctx, item.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
		}
		if _, err := s.recalculate(ctx, repo, item.CartID); err != nil {
			return err
		}
		ref = &types.LineRef{CartID: item.CartID.String(), LineItemID: item.ID.String()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// RemoveCartItem deletes one of the user's lines.
func (s *service) RemoveCartItem(ctx context.Context, userID, lineItemID uuid.UUID) (*types.CartRef, error) {
	var ref *types.CartRef
	err := s.mutate(ctx, "remove", userID, func(repo CartRepository, _ *catalog.Repository) error {
		item, err := repo.FindItem(ctx, lineItemID, userID)
		if err != nil {
			return notFound(err, "cart line")
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
		}
		if _, err := s.recalculate(ctx, repo, item.CartID); err != nil {
			return err
		}
		ref = &types.CartRef{CartID: item.CartID.String()}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ref, nil
}

// CouponDetails is attached to COUPON_INVALID errors.
type CouponDetails struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// ApplyCoupon attaches a valid coupon to the cart and reprices it.
func (s *service) ApplyCoupon(ctx context.Context, userID, cartID uuid.UUID, code string) (*types.RecalcOutcome, error) {
	ctx = s.logg.WithCartID(ctx, cartID.String())
	normalized := catalog.NormalizeCouponCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	var outcome *types.RecalcOutcome
	err := s.mutate(ctx, "apply_coupon", userID, func(repo CartRepository, products *catalog.Repository) error {
		if _, err := repo.FindByIDAndUser(ctx, cartID, userID); err != nil {
			return notFound(err, "cart")
		}
		coupon, err := products.FindCouponByCode(ctx, normalized)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return couponInvalid(normalized, "unknown")
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
		}
		if reason := pricing.CouponReason(catalog.CouponOf(coupon), s.now()); reason != "" {
			return couponInvalid(normalized, reason)
		}
		if err := repo.SetCoupon(ctx, cartID, &coupon.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach coupon")
		}
		cart, err := s.recalculate(ctx, repo, cartID)
		if err != nil {
			return err
		}
		outcome = outcomeOf(cart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// RemoveCoupon detaches any coupon and reprices the cart.
func (s *service) RemoveCoupon(ctx context.Context, userID, cartID uuid.UUID) (*types.RecalcOutcome, error) {
	ctx = s.logg.WithCartID(ctx, cartID.String())
	var outcome *types.RecalcOutcome
	err := s.mutate(ctx, "remove_coupon", userID, func(repo CartRepository, _ *catalog.Repository) error {
		if _, err := repo.FindByIDAndUser(ctx, cartID, userID); err != nil {
			return notFound(err, "cart")
		}
		if err := repo.SetCoupon(ctx, cartID, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach coupon")
		}
		cart, err := s.recalculate(ctx, repo, cartID)
		if err != nil {
			return err
		}
		outcome = outcomeOf(cart)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// ClearCart drops every line and the coupon, leaving zero totals.
func (s *service) ClearCart(ctx context.Context, userID, cartID uuid.UUID) (*types.CartRef, error) {
	return s.clear(ctx, "clear", userID, cartID, false)
}

// ResetCart clears the cart and forgets completed guest merges.
func (s *service) ResetCart(ctx context.Context, userID, cartID uuid.UUID) (*types.CartRef, error) {
	return s.clear(ctx, "reset", userID, cartID, true)
}

func (s *service) clear(ctx context.Context, op string, userID, cartID uuid.UUID, resetMerges bool) (*types.CartRef, error) {
	ctx = s.logg.WithCartID(ctx, cartID.String())
	err := s.mutate(ctx, op, userID, func(repo CartRepository, _ *catalog.Repository) error {
		if _, err := repo.FindByIDAndUser(ctx, cartID, userID); err != nil {
			return notFound(err, "cart")
		}
		if err := repo.DeleteItems(ctx, cartID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart lines")
		}
		if err := repo.SetCoupon(ctx, cartID, nil); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach coupon")
		}
		if resetMerges {
			if err := repo.DeleteMergeRecords(ctx, userID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset merge records")
			}
		}
		_, err := s.recalculate(ctx, repo, cartID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &types.CartRef{CartID: cartID.String()}, nil
}

// GetCartFull returns the user's cart with read-time stock flags. A cached
// view only saves the cart load; stock flags are always recomputed from the
// catalog.
func (s *service) GetCartFull(ctx context.Context, userID uuid.UUID) (*types.CartView, error) {
	key := userID.String()
	cached, err := s.cache.Get(ctx, key)
	if err == nil {
		refreshErr := s.refreshStock(ctx, cached)
		if refreshErr == nil {
			return cached, nil
		}
		s.logg.Warn(s.logg.WithField(ctx, "error", refreshErr.Error()), "cached cart stock refresh failed")
	} else if !errors.Is(err, cartcache.ErrCacheMiss) {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart cache read failed")
	}

	res, err, _ := s.loads.Do(key, func() (any, error) {
		generation, err := s.cache.Generation(ctx, key)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart cache generation read failed")
		}
		cart, err := s.repo.FindByUser(ctx, userID)
		if err != nil {
			return nil, notFound(err, "cart")
		}
		view := BuildView(cart, s.threshold)
		if err := s.cache.Set(ctx, key, generation, view); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart cache write failed")
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(*types.CartView), nil
}

// refreshStock re-reads every line's product in one query and recomputes the
// snapshot and stock flags in place.
func (s *service) refreshStock(ctx context.Context, view *types.CartView) error {
	ids := make([]uuid.UUID, 0, len(view.Items))
	for _, item := range view.Items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return fmt.Errorf("cached line product id: %w", err)
		}
		ids = append(ids, id)
	}
	products, err := s.catalog.FindProducts(ctx, ids)
	if err != nil {
		return err
	}
	for i := range view.Items {
		item := &view.Items[i]
		product, ok := products[ids[i]]
		stock := 0
		if ok {
			item.Product = catalog.SnapshotOf(&product)
			if product.IsActive {
				stock = product.Stock
			}
		}
		item.Product.ProductID = item.ProductID
		item.StockStatus = pricing.Status(stock, item.Quantity, s.threshold)
	}
	return nil
}

// Invalidate drops the cached view of the user's cart.
func (s *service) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := s.cache.Delete(ctx, userID.String()); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cart cache invalidation failed")
	}
}

// mutate runs fn in one transaction holding the user's row lock, then drops
// the cached view once the transaction committed.
func (s *service) mutate(ctx context.Context, op string, userID uuid.UUID, fn func(repo CartRepository, products *catalog.Repository) error) error {
	ctx = s.logg.WithUserID(ctx, userID.String())
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.LockUser(ctx, userID); err != nil {
			return notFound(err, "user")
		}
		return fn(repo, s.catalog.WithTx(tx))
	})
	s.metrics.ObserveMutation(op, err)
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart transaction failed")
		}
		return err
	}
	s.Invalidate(ctx, userID)
	return nil
}

func (s *service) recalculate(ctx context.Context, repo CartRepository, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := Recalculate(ctx, repo, cartID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recalculate cart")
	}
	return cart, nil
}

func outcomeOf(cart *models.Cart) *types.RecalcOutcome {
	outcome := &types.RecalcOutcome{
		CartID:   cart.ID.String(),
		Subtotal: cart.Subtotal,
		Discount: cart.Discount,
		Total:    cart.Total,
	}
	if cart.Coupon != nil {
		code := cart.Coupon.Code
		outcome.CouponCode = &code
	}
	return outcome
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}

func invalidQuantity(quantity int) error {
	return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1").
		WithDetails(map[string]int{"quantity": quantity})
}

func couponInvalid(code, reason string) error {
	return pkgerrors.New(pkgerrors.CodeCouponInvalid, fmt.Sprintf("coupon %s is %s", code, reason)).
		WithDetails(CouponDetails{Code: code, Reason: reason})
}
