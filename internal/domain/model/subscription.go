package model

import (
	"time"

	"subscription-billing/internal/domain"
)

// Subscription is one entitlement window granted to a user. Superseded
// rows are deactivated, never deleted.
type Subscription struct {
	ID            string   // UUID
	UserID        string   // UUID
	PlanType      PlanType // duration classification at purchase time
	ProductKey    string   // provider-assigned product key
	PurchaseToken string   // purchase/idempotency token (gateway authority)
	OrderID       string   // ULID, sortable order identifier
	Payload       string   // serialized provenance (payment id, refID, gateway)
	Active        bool
	StartDate     time.Time
	ExpiryDate    time.Time
	AutoRenew     bool // always false for redirect-gateway purchases
	CreatedAt     time.Time
}

func (s *Subscription) IsZero() bool { return s == nil || s.ID == "" }

// InForce reports whether the entitlement grants access at now.
func (s *Subscription) InForce(now time.Time) bool {
	return s.Active && s.ExpiryDate.After(now)
}

// Remaining returns the unused entitlement time at now, floored at zero.
func (s *Subscription) Remaining(now time.Time) time.Duration {
	if !s.InForce(now) {
		return 0
	}
	return s.ExpiryDate.Sub(now)
}

// NewSubscription validates and constructs an active subscription window.
func NewSubscription(id, userID string, planType PlanType, start, expiry time.Time) (*Subscription, error) {
	if id == "" || userID == "" || !expiry.After(start) {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:         id,
		UserID:     userID,
		PlanType:   planType,
		Active:     true,
		StartDate:  start,
		ExpiryDate: expiry,
		AutoRenew:  false,
		CreatedAt:  start,
	}, nil
}
