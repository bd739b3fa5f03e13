package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cartsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cartsync-backend/pkg/errors"
)

func dec(t *testing.T, v string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(v)
	require.NoError(t, err)
	return d
}

func TestEffectiveUnitPrice(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		price    string
		discount Discount
		want     string
	}{
		{name: "none", price: "19.99", discount: Discount{Kind: enums.DiscountKindNone}, want: "19.99"},
		{name: "empty kind", price: "19.99", want: "19.99"},
		{name: "fixed", price: "50", discount: Discount{Kind: enums.DiscountKindFixed, Value: decimal.NewFromInt(15)}, want: "35"},
		{name: "fixed clamps at zero", price: "10", discount: Discount{Kind: enums.DiscountKindFixed, Value: decimal.NewFromInt(25)}, want: "0"},
		{name: "percentage", price: "80", discount: Discount{Kind: enums.DiscountKindPercentage, Value: decimal.NewFromInt(25)}, want: "60"},
		{name: "percentage rounds", price: "9.99", discount: Discount{Kind: enums.DiscountKindPercentage, Value: decimal.NewFromInt(33)}, want: "6.69"},
		{name: "percentage over 100 clamps", price: "10", discount: Discount{Kind: enums.DiscountKindPercentage, Value: decimal.NewFromInt(150)}, want: "0"},
	}
	for _, tc := range cases {
		got := EffectiveUnitPrice(dec(t, tc.price), tc.discount)
		assert.Truef(t, got.Equal(dec(t, tc.want)), "%s: expected %s got %s", tc.name, tc.want, got)
	}
}

func TestCouponDiscount(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)
	subtotal := decimal.NewFromInt(200)

	cases := []struct {
		name   string
		coupon *Coupon
		want   string
	}{
		{name: "nil", coupon: nil, want: "0"},
		{name: "fixed", coupon: &Coupon{Kind: enums.DiscountKindFixed, Value: decimal.NewFromInt(30), IsActive: true}, want: "30"},
		{name: "fixed capped at subtotal", coupon: &Coupon{Kind: enums.DiscountKindFixed, Value: decimal.NewFromInt(500), IsActive: true}, want: "200"},
		{name: "percentage", coupon: &Coupon{Kind: enums.DiscountKindPercentage, Value: decimal.NewFromInt(10), IsActive: true, ValidFrom: &yesterday, ValidUntil: &tomorrow}, want: "20"},
		{name: "percentage capped", coupon: &Coupon{Kind: enums.DiscountKindPercentage, Value: decimal.NewFromInt(120), IsActive: true}, want: "200"},
		{name: "negative value", coupon: &Coupon{Kind: enums.DiscountKindFixed, Value: decimal.NewFromInt(-5), IsActive: true}, want: "0"},
		{name: "none kind", coupon: &Coupon{Kind: enums.DiscountKindNone, Value: decimal.NewFromInt(5), IsActive: true}, want: "0"},
		{name: "inactive", coupon: &Coupon{Kind: enums.DiscountKindFixed, Value: decimal.NewFromInt(5)}, want: "0"},
		{name: "expired", coupon: &Coupon{Kind: enums.DiscountKindFixed, Value: decimal.NewFromInt(5), IsActive: true, ValidUntil: &yesterday}, want: "0"},
		{name: "not yet valid", coupon: &Coupon{Kind: enums.DiscountKindFixed, Value: decimal.NewFromInt(5), IsActive: true, ValidFrom: &tomorrow}, want: "0"},
	}
	for _, tc := range cases {
		got := CouponDiscount(subtotal, tc.coupon, now)
		assert.Truef(t, got.Equal(dec(t, tc.want)), "%s: expected %s got %s", tc.name, tc.want, got)
	}
}

func TestCouponReason(t *testing.T) {
	t.Parallel()
	now := time.Now()
	past := now.Add(-time.Hour)
	assert.Equal(t, "unknown", CouponReason(nil, now))
	assert.Equal(t, "inactive", CouponReason(&Coupon{}, now))
	assert.Equal(t, "expired", CouponReason(&Coupon{IsActive: true, ValidUntil: &past}, now))
	assert.Equal(t, "", CouponReason(&Coupon{IsActive: true}, now))
}

func TestTotalsHoldsInvariant(t *testing.T) {
	t.Parallel()
	now := time.Now()
	lines := []Line{
		{Price: dec(t, "100.00"), Quantity: 1},
		{Price: dec(t, "25.00"), Discount: Discount{Kind: enums.DiscountKindPercentage, Value: decimal.NewFromInt(20)}, Quantity: 5},
		{Price: dec(t, "3.00"), Quantity: 0},
	}
	coupon := &Coupon{Code: "SAVE10", Kind: enums.DiscountKindPercentage, Value: decimal.NewFromInt(10), IsActive: true}

	got := Totals(lines, coupon, now)
	assert.True(t, got.Subtotal.Equal(dec(t, "200.00")), "subtotal %s", got.Subtotal)
	assert.True(t, got.Discount.Equal(dec(t, "20.00")), "discount %s", got.Discount)
	assert.True(t, got.Total.Equal(dec(t, "180.00")), "total %s", got.Total)
	assert.True(t, got.Total.Equal(got.Subtotal.Sub(got.Discount)))

	withoutCoupon := Totals(lines, nil, now)
	assert.True(t, withoutCoupon.Total.Equal(dec(t, "200.00")))

	empty := Totals(nil, coupon, now)
	assert.True(t, empty.Total.IsZero())
	assert.True(t, empty.Discount.IsZero())
}

func TestCheckStock(t *testing.T) {
	t.Parallel()
	require.NoError(t, CheckStock("p", 5, 5))

	err := CheckStock("p", 5, 7)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())
	details := typed.Details().(pkgerrors.StockDetails)
	assert.Equal(t, 5, details.Available)
	assert.Equal(t, 7, details.Requested)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	assert.Equal(t, StockStatus{IsOutOfStock: true, AvailableQuantity: 0}, Status(0, 1, 5))
	assert.Equal(t, StockStatus{IsOutOfStock: true, AvailableQuantity: 2}, Status(2, 3, 5))
	assert.Equal(t, StockStatus{IsLowStock: true, AvailableQuantity: 4}, Status(4, 1, 5))
	assert.Equal(t, StockStatus{AvailableQuantity: 40}, Status(40, 1, 5))
	assert.Equal(t, StockStatus{IsOutOfStock: true}, Status(-3, 1, 0))
}
