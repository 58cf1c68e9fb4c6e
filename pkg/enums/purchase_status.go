package enums

import "fmt"

// PurchaseStatus tracks a one-off purchase through the payment lifecycle.
// pending is the initial state; success and failed are terminal.
type PurchaseStatus string

const (
	PurchaseStatusPending PurchaseStatus = "pending"
	PurchaseStatusSuccess PurchaseStatus = "success"
	PurchaseStatusFailed  PurchaseStatus = "failed"
)

var validPurchaseStatuses = []PurchaseStatus{
	PurchaseStatusPending,
	PurchaseStatusSuccess,
	PurchaseStatusFailed,
}

// String implements fmt.Stringer.
func (s PurchaseStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s PurchaseStatus) IsValid() bool {
	for _, candidate := range validPurchaseStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusSuccess || s == PurchaseStatusFailed
}

// ParsePurchaseStatus converts raw input into a PurchaseStatus.
func ParsePurchaseStatus(value string) (PurchaseStatus, error) {
	for _, candidate := range validPurchaseStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid purchase status %q", value)
}
