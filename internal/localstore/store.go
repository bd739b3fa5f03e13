// Package localstore keeps the device-side cart and wishlist of a visitor.
// Every mutation is written through the configured Persister before it
// becomes visible.
package localstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
	"github.com/angelmondragon/cartsync-backend/pkg/pricing"
	"github.com/angelmondragon/cartsync-backend/pkg/types"
)

// TempIDPrefix marks line ids minted on the device before the server assigned one.
const TempIDPrefix = "tmp-"

// Line is one device cart line.
type Line struct {
	ID        string                `json:"id"`
	ProductID string                `json:"product_id"`
	Quantity  int                   `json:"quantity"`
	Product   types.ProductSnapshot `json:"product"`
	AddedAt   time.Time             `json:"added_at"`
}

// IsTemporary reports whether the line has not been confirmed by the server.
func (l Line) IsTemporary() bool {
	return strings.HasPrefix(l.ID, TempIDPrefix)
}

// WishlistEntry is one liked product.
type WishlistEntry struct {
	ProductID string                `json:"product_id"`
	Product   types.ProductSnapshot `json:"product"`
	AddedAt   time.Time             `json:"added_at"`
}

// Snapshot is the serialized device state.
type Snapshot struct {
	CartID   string          `json:"cart_id,omitempty"`
	Items    []Line          `json:"items"`
	Wishlist []WishlistEntry `json:"wishlist"`
	Coupon   *pricing.Coupon `json:"coupon,omitempty"`
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		CartID:   s.CartID,
		Items:    append([]Line(nil), s.Items...),
		Wishlist: append([]WishlistEntry(nil), s.Wishlist...),
	}
	if s.Coupon != nil {
		coupon := *s.Coupon
		out.Coupon = &coupon
	}
	return out
}

func (s Snapshot) indexOf(id string) int {
	for i, line := range s.Items {
		if line.ID == id {
			return i
		}
	}
	return -1
}

func (s Snapshot) indexOfProduct(productID string) int {
	for i, line := range s.Items {
		if line.ProductID == productID {
			return i
		}
	}
	return -1
}

// Store is a goroutine-safe state container.
type Store struct {
	mu        sync.RWMutex
	state     Snapshot
	persister Persister
	key       string
	attached  bool
	now       func() time.Time
}

// Open loads the device record stored under key.
func Open(ctx context.Context, persister Persister, key string) (*Store, error) {
	if persister == nil {
		return nil, fmt.Errorf("persister required")
	}
	if key == "" {
		return nil, fmt.Errorf("device key required")
	}
	snapshot, err := persister.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load device state: %w", err)
	}
	return &Store{
		state:     snapshot.clone(),
		persister: persister,
		key:       key,
		attached:  true,
		now:       time.Now,
	}, nil
}

// mutate applies fn to a copy of the state, persists it when attached and
// only then publishes it.
func (s *Store) mutate(ctx context.Context, fn func(next *Snapshot) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if s.attached {
		if err := s.persister.Save(ctx, s.key, next); err != nil {
			return fmt.Errorf("save device state: %w", err)
		}
	}
	s.state = next
	return nil
}

// AddItem adds quantity units of product. An existing line for the same
// product grows; otherwise a line with a temporary id is appended. Stock is
// not checked on the device.
func (s *Store) AddItem(ctx context.Context, product types.ProductSnapshot, quantity int) (Line, error) {
	if quantity <= 0 {
		return Line{}, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1")
	}
	if product.ProductID == "" {
		return Line{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	var out Line
	err := s.mutate(ctx, func(next *Snapshot) error {
		if idx := next.indexOfProduct(product.ProductID); idx >= 0 {
			next.Items[idx].Quantity += quantity
			next.Items[idx].Product = product
			out = next.Items[idx]
			return nil
		}
		out = Line{
			ID:        TempIDPrefix + uuid.NewString(),
			ProductID: product.ProductID,
			Quantity:  quantity,
			Product:   product,
			AddedAt:   s.now(),
		}
		next.Items = append(next.Items, out)
		return nil
	})
	return out, err
}

// UpdateQuantity replaces a line quantity. Zero or less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, id string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, id)
	}
	return s.mutate(ctx, func(next *Snapshot) error {
		idx := next.indexOf(id)
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
		}
		next.Items[idx].Quantity = quantity
		return nil
	})
}

// RemoveItem deletes a line; unknown ids are ignored.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		if idx := next.indexOf(id); idx >= 0 {
			next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
		}
		return nil
	})
}

// Clear empties the cart and drops the coupon.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		next.Items = nil
		next.Coupon = nil
		return nil
	})
}

// Items returns a copy of the cart lines.
func (s *Store) Items() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Line(nil), s.state.Items...)
}

// Line returns the line with id.
func (s *Store) Line(id string) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.state.indexOf(id); idx >= 0 {
		return s.state.Items[idx], true
	}
	return Line{}, false
}

// LineForProduct returns the line holding productID.
func (s *Store) LineForProduct(productID string) (Line, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.state.indexOfProduct(productID); idx >= 0 {
		return s.state.Items[idx], true
	}
	return Line{}, false
}

// Restore puts prev back exactly as it was. When the line did not exist
// before, the line carrying prev.ID is removed instead. A line whose id
// changed since prev was read is matched by product so the cart never holds
// two lines for one product.
func (s *Store) Restore(ctx context.Context, prev Line, existed bool) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		idx := next.indexOf(prev.ID)
		if idx < 0 && existed && prev.ProductID != "" {
			idx = next.indexOfProduct(prev.ProductID)
		}
		switch {
		case !existed && idx >= 0:
			next.Items = append(next.Items[:idx], next.Items[idx+1:]...)
		case existed && idx >= 0:
			next.Items[idx] = prev
		case existed:
			next.Items = append(next.Items, prev)
		}
		return nil
	})
}

// Adopt swaps a temporary line for the server-confirmed one.
func (s *Store) Adopt(ctx context.Context, tempID string, confirmed Line) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		if idx := next.indexOf(tempID); idx >= 0 {
			next.Items[idx] = confirmed
			return nil
		}
		if idx := next.indexOf(confirmed.ID); idx >= 0 {
			next.Items[idx] = confirmed
			return nil
		}
		next.Items = append(next.Items, confirmed)
		return nil
	})
}

// Replace overwrites the cart with an authoritative copy.
func (s *Store) Replace(ctx context.Context, cartID string, lines []Line, coupon *pricing.Coupon) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		next.CartID = cartID
		next.Items = append([]Line(nil), lines...)
		next.Coupon = coupon
		return nil
	})
}

// SetCartID records the server cart id without touching the lines.
func (s *Store) SetCartID(ctx context.Context, cartID string) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		next.CartID = cartID
		return nil
	})
}

// CartID returns the server cart id once known.
func (s *Store) CartID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.CartID
}

// TotalItems sums line quantities.
func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, line := range s.state.Items {
		total += line.Quantity
	}
	return total
}

// TotalPrice prices the cart with the shared arithmetic. Without the coupon
// it returns the subtotal.
func (s *Store) TotalPrice(includeCoupon bool) decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := make([]pricing.Line, 0, len(s.state.Items))
	for _, line := range s.state.Items {
		lines = append(lines, pricing.Line{
			Price:    line.Product.Price,
			Discount: line.Product.Discount,
			Quantity: line.Quantity,
		})
	}
	var coupon *pricing.Coupon
	if includeCoupon {
		coupon = s.state.Coupon
	}
	totals := pricing.Totals(lines, coupon, s.now())
	if includeCoupon {
		return totals.Total
	}
	return totals.Subtotal
}

// SetCoupon stores a coupon snapshot.
func (s *Store) SetCoupon(ctx context.Context, coupon pricing.Coupon) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		next.Coupon = &coupon
		return nil
	})
}

// ClearCoupon drops the coupon snapshot.
func (s *Store) ClearCoupon(ctx context.Context) error {
	return s.mutate(ctx, func(next *Snapshot) error {
		next.Coupon = nil
		return nil
	})
}

// Coupon returns the stored coupon snapshot, if any.
func (s *Store) Coupon() *pricing.Coupon {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.Coupon == nil {
		return nil
	}
	coupon := *s.state.Coupon
	return &coupon
}

// Snapshot returns a copy of the whole state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Purge deletes the persisted record and stops persisting. Visible state is
// kept until the caller replaces it.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persister.Purge(ctx, s.key); err != nil {
		return fmt.Errorf("purge device state: %w", err)
	}
	s.attached = false
	return nil
}

// Attach starts a fresh persisted session under key with empty state.
func (s *Store) Attach(ctx context.Context, key string) error {
	if key == "" {
		return fmt.Errorf("device key required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	empty := Snapshot{}
	if err := s.persister.Save(ctx, key, empty); err != nil {
		return fmt.Errorf("save device state: %w", err)
	}
	s.key = key
	s.attached = true
	s.state = empty
	return nil
}

// Attached reports whether mutations are persisted on the device.
func (s *Store) Attached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attached
}
