package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

const userColumns = `id, phone, referral_code, referred_by, referral_reward_credited, referral_success_count, referral_earning_toman, registered_at`

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *userRepo) FindByReferralCode(ctx context.Context, tx repository.Tx, code string) (*model.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE referral_code=$1;`
	return r.queryOne(ctx, tx, q, code)
}

// SetReferredBy fills referred_by only while it is still empty, so a
// user can be attributed to exactly one referrer.
func (r *userRepo) SetReferredBy(ctx context.Context, tx repository.Tx, userID, code string) (bool, error) {
	const q = `UPDATE users SET referred_by=$2 WHERE id=$1 AND referred_by='';`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, code)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return false, err
		default:
			return false, domain.ErrOperationFailed
		}
	}
	return cmd.RowsAffected() >= 1, nil
}

// MarkRewardCredited is the one-shot flag write behind the first-purchase
// reward. The WHERE clause makes concurrent settlements elect one winner.
func (r *userRepo) MarkRewardCredited(ctx context.Context, tx repository.Tx, userID string) (bool, error) {
	const q = `UPDATE users SET referral_reward_credited=TRUE WHERE id=$1 AND NOT referral_reward_credited;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return false, err
		default:
			return false, domain.ErrOperationFailed
		}
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *userRepo) AddReferralEarnings(ctx context.Context, tx repository.Tx, referrerID string, amountToman int64) error {
	const q = `
UPDATE users
   SET referral_success_count = referral_success_count + 1,
       referral_earning_toman = referral_earning_toman + $2
 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, referrerID, amountToman)
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

func (r *userRepo) queryOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.User, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	err = row.Scan(&u.ID, &u.Phone, &u.ReferralCode, &u.ReferredBy, &u.ReferralRewardCredited,
		&u.ReferralSuccessCount, &u.ReferralEarningToman, &u.RegisteredAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}
