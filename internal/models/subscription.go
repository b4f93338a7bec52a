package models

import (
	"time"
)

// Subscription status constants. Status otherwise mirrors the billing
// provider's subscription status verbatim.
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// Subscription holds billing state for a user, keyed uniquely by user ID.
// Written only by the billing webhook reconciler.
type Subscription struct {
	ID                   string
	UserID               string
	Plan                 string
	Status               string
	StripeCustomerID     *string
	StripeSubscriptionID *string
	CurrentPeriodEnd     *time.Time
	CreatedAt            time.Time
}
