package enums

import "fmt"

// MergeKind scopes a merge record to one of the guest collections.
type MergeKind string

const (
	MergeKindCart     MergeKind = "cart"
	MergeKindWishlist MergeKind = "wishlist"
)

var validMergeKinds = []MergeKind{MergeKindCart, MergeKindWishlist}

func (m MergeKind) String() string {
	return string(m)
}

func (m MergeKind) IsValid() bool {
	for _, candidate := range validMergeKinds {
		if candidate == m {
			return true
		}
	}
	return false
}

func ParseMergeKind(value string) (MergeKind, error) {
	for _, candidate := range validMergeKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid merge kind %q", value)
}

// MergeStatus is the persisted merge state. A missing record means the merge
// never started.
type MergeStatus string

const (
	MergeStatusPending   MergeStatus = "pending"
	MergeStatusCompleted MergeStatus = "completed"
)

var validMergeStatuses = []MergeStatus{MergeStatusPending, MergeStatusCompleted}

func (m MergeStatus) String() string {
	return string(m)
}

func (m MergeStatus) IsValid() bool {
	for _, candidate := range validMergeStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

func ParseMergeStatus(value string) (MergeStatus, error) {
	for _, candidate := range validMergeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid merge status %q", value)
}

// MergeOutcome is reported to the caller of a merge.
type MergeOutcome string

const (
	MergeOutcomeMerged           MergeOutcome = "merged"
	MergeOutcomeAlreadyCompleted MergeOutcome = "already_completed"
	MergeOutcomeEmpty            MergeOutcome = "empty"
)

func (m MergeOutcome) String() string {
	return string(m)
}

// SkipReason explains why a guest line was not merged.
type SkipReason string

const (
	SkipReasonProductNotFound   SkipReason = "product_not_found"
	SkipReasonProductInactive   SkipReason = "product_inactive"
	SkipReasonInsufficientStock SkipReason = "insufficient_stock"
	SkipReasonInvalidQuantity   SkipReason = "invalid_quantity"
)

func (s SkipReason) String() string {
	return string(s)
}
