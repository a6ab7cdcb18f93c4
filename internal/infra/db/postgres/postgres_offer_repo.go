package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/repository"
)

var _ repository.OfferRepository = (*offerRepo)(nil)

const offerColumns = `id, code, kind, percentage, amount_toman, overrides, all_plans, plan_ids, starts_at, ends_at, active, usage_count, max_usage_count, created_at`

type offerRepo struct{ pool *pgxpool.Pool }

func NewOfferRepo(pool *pgxpool.Pool) *offerRepo {
	return &offerRepo{pool: pool}
}

func (r *offerRepo) FindByID(ctx context.Context, id string) (*model.Offer, error) {
	const q = `SELECT ` + offerColumns + ` FROM offers WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, repository.NoTX, q, id)
	if err != nil {
		return nil, err
	}
	o := &model.Offer{}
	var overrides []byte
	err = row.Scan(&o.ID, &o.Code, &o.Kind, &o.Percentage, &o.AmountToman, &overrides,
		&o.AllPlans, &o.PlanIDs, &o.StartsAt, &o.EndsAt, &o.Active, &o.UsageCount, &o.MaxUsageCount, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &o.Overrides); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return o, nil
}

func (r *offerRepo) IncrementUsage(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE offers SET usage_count = usage_count + 1 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id)
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
