package model

import "time"

// ReferralEvent is the kind of event recorded in the referral audit log.
type ReferralEvent string

const (
	ReferralEventCodeSubmitted        ReferralEvent = "code_submitted"
	ReferralEventFirstPurchase        ReferralEvent = "first_purchase"
	ReferralEventSubscriptionPurchase ReferralEvent = "subscription_purchase"
)

// ReferralLog is an immutable audit record. Rows are append-only and
// never mutated.
type ReferralLog struct {
	ID           string // ULID, sortable by creation time
	ReferrerID   string // UUID
	ReferredID   string // UUID
	ReferralCode string
	Event        ReferralEvent
	RewardToman  int64    // 0 unless a purchase event
	PlanType     PlanType // empty for code_submitted
	CreatedAt    time.Time
}
