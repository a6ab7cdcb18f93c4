package model

import (
	"time"

	"subscription-billing/internal/domain"

	"github.com/google/uuid"
)

// User is the subset of the account entity this core reads and writes.
// Authentication and profile CRUD live elsewhere.
type User struct {
	ID           string // UUID
	Phone        string // passed to the gateway as contact metadata
	ReferralCode string // this user's own code, handed to invitees

	// ReferredBy is the code of the user's referrer; set at most once.
	ReferredBy string
	// ReferralRewardCredited flips to true after the referrer has been
	// paid for this user's first purchase.
	ReferralRewardCredited bool

	// Referrer-side running totals.
	ReferralSuccessCount int64
	ReferralEarningToman int64

	RegisteredAt time.Time
}

func (u *User) IsZero() bool { return u == nil || u.ID == "" }

func NewUser(id, phone, referralCode string) (*User, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if phone == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &User{
		ID:           id,
		Phone:        phone,
		ReferralCode: referralCode,
		RegisteredAt: time.Now(),
	}, nil
}
