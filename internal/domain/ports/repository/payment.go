package repository

import (
	"context"
	"time"

	"subscription-billing/internal/domain/model"
)

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByAuthority(ctx context.Context, tx Tx, authority string) (*model.Payment, error)

	// UpdateStatusIfPending atomically moves a record out of pending.
	// It reports false when the record had already reached a terminal
	// status; this compare-and-swap is the callback idempotency guard.
	UpdateStatusIfPending(ctx context.Context, tx Tx, id string, status model.PaymentStatus, refID *string, cardPan, cardHash string, verifiedAt *time.Time) (bool, error)

	ListByUserAndStatus(ctx context.Context, tx Tx, userID string, status model.PaymentStatus, limit int) ([]*model.Payment, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.Payment, error)

	// ListPendingOlderThan feeds the stale-payment sweeper.
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
}
