package repository

import (
	"context"

	"subscription-billing/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	FindByReferralCode(ctx context.Context, tx Tx, code string) (*model.User, error)
	// SetReferredBy records the referrer's code on the user; the write
	// succeeds only when `referred_by` was still empty.
	SetReferredBy(ctx context.Context, tx Tx, userID, code string) (bool, error)
	// MarkRewardCredited flips the one-time first-purchase flag. It
	// reports false when the flag was already set.
	MarkRewardCredited(ctx context.Context, tx Tx, userID string) (bool, error)
	// AddReferralEarnings bumps the referrer's success counter and
	// running earnings.
	AddReferralEarnings(ctx context.Context, tx Tx, referrerID string, amountToman int64) error
}
