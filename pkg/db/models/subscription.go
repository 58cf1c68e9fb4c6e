package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/adjeibohyen/tutorhub-backend/pkg/enums"
)

// Subscription is a projection of the processor's subscription state,
// created and updated only by webhook-driven upserts keyed on
// (user_id, plan_code). A nil CurrentPeriodEnd means open-ended.
type Subscription struct {
	ID                       uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID                   uuid.UUID                `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_subscriptions_user_plan"`
	Status                   enums.SubscriptionStatus `gorm:"column:status;not null"`
	PaystackCustomerID       *string                  `gorm:"column:paystack_customer_id"`
	PaystackSubscriptionCode *string                  `gorm:"column:paystack_subscription_code"`
	PlanCode                 string                   `gorm:"column:plan_code;not null;uniqueIndex:idx_subscriptions_user_plan"`
	CurrentPeriodStart       *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd         *time.Time               `gorm:"column:current_period_end"`
	CreatedAt                time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// ValidAt reports whether the subscription grants access at the given
// instant: status must be active and the period end, when set, not passed.
func (s Subscription) ValidAt(now time.Time) bool {
	if s.Status != enums.SubscriptionStatusActive {
		return false
	}
	if s.CurrentPeriodEnd == nil {
		return true
	}
	return !s.CurrentPeriodEnd.Before(now)
}
