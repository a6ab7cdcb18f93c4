package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/repository"
)

var _ repository.ReferralLogRepository = (*referralLogRepo)(nil)

// referralLogRepo is append-only: no update or delete statements exist.
type referralLogRepo struct{ pool *pgxpool.Pool }

func NewReferralLogRepo(pool *pgxpool.Pool) *referralLogRepo {
	return &referralLogRepo{pool: pool}
}

func (r *referralLogRepo) Append(ctx context.Context, tx repository.Tx, entry *model.ReferralLog) error {
	const q = `
INSERT INTO referral_logs (id, referrer_id, referred_id, referral_code, event, reward_toman, plan_type, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q,
		entry.ID, entry.ReferrerID, entry.ReferredID, entry.ReferralCode,
		entry.Event, entry.RewardToman, entry.PlanType, entry.CreatedAt)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return err
		default:
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *referralLogRepo) ListByReferrer(ctx context.Context, tx repository.Tx, referrerID string, limit int) ([]*model.ReferralLog, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, referrer_id, referred_id, referral_code, event, reward_toman, plan_type, created_at
  FROM referral_logs
 WHERE referrer_id=$1
 ORDER BY created_at DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, referrerID, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.ReferralLog
	for rows.Next() {
		e := new(model.ReferralLog)
		err := rows.Scan(&e.ID, &e.ReferrerID, &e.ReferredID, &e.ReferralCode,
			&e.Event, &e.RewardToman, &e.PlanType, &e.CreatedAt)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}
