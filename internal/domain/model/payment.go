package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // redirected to gateway; awaiting verification
	PaymentStatusSuccess   PaymentStatus = "success"   // verified OK at provider
	PaymentStatusFailed    PaymentStatus = "failed"    // verification failed
	PaymentStatusCancelled PaymentStatus = "cancelled" // user cancelled on the gateway page
	PaymentStatusExpired   PaymentStatus = "expired"   // authority window elapsed while still pending
)

// AuthorityTTL is how long a gateway authority stays redeemable.
const AuthorityTTL = 15 * time.Minute

// Payment records one charge attempt against the external gateway.
// Rows are never deleted; terminal records remain as the audit trail.
type Payment struct {
	ID          string  // UUID
	UserID      string  // UUID
	PlanID      string  // UUID
	OfferID     *string // UUID, nil when no offer was applied
	Gateway     string  // e.g. "zarinpal"
	Authority   string  // provider token, unique; the idempotency key
	AmountToman int64   // display currency amount actually charged
	AmountRial  int64   // gateway native minor unit (Toman x 10)
	Status      PaymentStatus
	RefID       *string // provider reference id, set only on success
	CardPan     string  // masked instrument, set only on success
	CardHash    string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
	VerifiedAt  *time.Time // set only on success
}

// IsExpired reports whether a still-pending authority has outlived its
// redeem window. Expiry is derived at read time, not swept eagerly.
func (p *Payment) IsExpired(now time.Time) bool {
	return p.Status == PaymentStatusPending && now.After(p.ExpiresAt)
}

// EffectiveStatus is the status every read path must report: pending
// records past their window read as expired.
func (p *Payment) EffectiveStatus(now time.Time) PaymentStatus {
	if p.IsExpired(now) {
		return PaymentStatusExpired
	}
	return p.Status
}

// Terminal reports whether the stored status can no longer change.
func (p *Payment) Terminal() bool {
	return p.Status != PaymentStatusPending
}
