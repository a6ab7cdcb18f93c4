package repository

import (
	"context"

	"subscription-billing/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	// FindActiveByUser returns the user's entitlement that is active AND
	// unexpired, or ErrNotFound.
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// DeactivateAllByUser flips active=false on every active row for the
	// user and returns how many rows it touched. Re-applying it is
	// harmless, which keeps the single-active invariant self-correcting.
	DeactivateAllByUser(ctx context.Context, tx Tx, userID string) (int64, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)
}
