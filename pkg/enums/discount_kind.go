package enums

import "fmt"

// DiscountKind describes how a product discount or coupon reduces a price.
type DiscountKind string

const (
	DiscountKindNone       DiscountKind = "none"
	DiscountKindFixed      DiscountKind = "fixed"
	DiscountKindPercentage DiscountKind = "percentage"
)

var validDiscountKinds = []DiscountKind{
	DiscountKindNone,
	DiscountKindFixed,
	DiscountKindPercentage,
}

// String implements fmt.Stringer.
func (d DiscountKind) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DiscountKind.
func (d DiscountKind) IsValid() bool {
	for _, candidate := range validDiscountKinds {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDiscountKind converts raw input into a DiscountKind. Empty input means none.
func ParseDiscountKind(value string) (DiscountKind, error) {
	if value == "" {
		return DiscountKindNone, nil
	}
	for _, candidate := range validDiscountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid discount kind %q", value)
}
