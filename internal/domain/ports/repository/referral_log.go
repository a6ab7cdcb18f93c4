package repository

import (
	"context"

	"subscription-billing/internal/domain/model"
)

// ReferralLogRepository is append-only; there is no update or delete.
type ReferralLogRepository interface {
	Append(ctx context.Context, tx Tx, entry *model.ReferralLog) error
	ListByReferrer(ctx context.Context, tx Tx, referrerID string, limit int) ([]*model.ReferralLog, error)
}
