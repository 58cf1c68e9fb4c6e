package enums

import "fmt"

// SubscriptionStatus mirrors the billing provider's subscription state.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusCanceled,
	SubscriptionStatusPastDue,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}

// MapProcessorSubscriptionStatus derives the canonical status from the raw
// status string carried by a processor subscription event. The processor
// vocabulary is wider than ours: anything neither canceled nor clearly in
// good standing is treated as past_due.
func MapProcessorSubscriptionStatus(raw string) SubscriptionStatus {
	switch raw {
	case "canceled", "cancelled":
		return SubscriptionStatusCanceled
	case "active", "completed":
		return SubscriptionStatusActive
	default:
		return SubscriptionStatusPastDue
	}
}
