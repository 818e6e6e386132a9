package models

import "time"

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
	SubscriptionStatusUnpaid     = "unpaid"
)

// Subscription mirrors one customer's billing relationship with the payment
// gateway. The status lags the gateway's true state between webhook
// deliveries but only ever holds values this service observed or set.
type Subscription struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	UserID                uint       `gorm:"not null;index" json:"user_id"`
	User                  *User      `gorm:"foreignKey:UserID" json:"-"`
	StripeCustomerID      string     `gorm:"type:varchar(191);index" json:"stripe_customer_id"`
	StripeSubscriptionID  string     `gorm:"type:varchar(191);uniqueIndex" json:"stripe_subscription_id"`
	StripePaymentMethodID string     `gorm:"type:varchar(191)" json:"stripe_payment_method_id"`
	Plan                  string     `gorm:"type:varchar(50);not null;default:'free'" json:"plan"`
	PlanPriceCents        int64      `gorm:"not null;default:0" json:"plan_price_cents"`
	Status                string     `gorm:"type:varchar(32);not null;default:'active';index" json:"status"`
	CurrentPeriodEnd      *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CreatedAt             time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsRetryEligible reports whether a stalled subscription may be driven back
// to active by the payment retry flow.
func (s *Subscription) IsRetryEligible() bool {
	return s.Status == SubscriptionStatusPastDue || s.Status == SubscriptionStatusIncomplete
}
