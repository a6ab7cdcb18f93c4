package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/adapter"
	"subscription-billing/internal/domain/ports/repository"
	"subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ ReferralUseCase = (*referralUC)(nil)

type ReferralUseCase interface {
	// Reward credits the purchasing user's referrer after a settled
	// charge and appends the audit log entry. Users without a referrer
	// are a no-op.
	Reward(ctx context.Context, userID string, planType model.PlanType, payment *model.Payment) error
	// SubmitCode records who referred the user; it succeeds at most once
	// per user.
	SubmitCode(ctx context.Context, userID, code string) error
}

type referralUC struct {
	users       repository.UserRepository
	logs        repository.ReferralLogRepository
	tm          repository.TransactionManager
	notifier    adapter.Notifier
	rewardToman int64
	log         *zerolog.Logger
}

func NewReferralUseCase(
	users repository.UserRepository,
	logs repository.ReferralLogRepository,
	tm repository.TransactionManager,
	notifier adapter.Notifier,
	rewardToman int64,
	logger *zerolog.Logger,
) *referralUC {
	compLog := logger.With().Str("component", "ReferralUC").Logger()
	return &referralUC{
		users:       users,
		logs:        logs,
		tm:          tm,
		notifier:    notifier,
		rewardToman: rewardToman,
		log:         &compLog,
	}
}

func (uc *referralUC) Reward(ctx context.Context, userID string, planType model.PlanType, payment *model.Payment) error {
	user, err := uc.users.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return fmt.Errorf("referral: load purchaser: %w", err)
	}
	if user.ReferredBy == "" {
		return nil
	}

	referrer, err := uc.users.FindByReferralCode(ctx, repository.NoTX, user.ReferredBy)
	if err != nil {
		if err == domain.ErrNotFound {
			// Stale or deleted code; nothing to credit.
			return nil
		}
		return fmt.Errorf("referral: load referrer: %w", err)
	}

	var event model.ReferralEvent
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Counter and earnings are bumped on every purchase by a referred
		// user; only the credited flag below is one-shot.
		// TODO: product to confirm whether earnings should gate on the
		// first purchase the way the credited flag does.
		if err := uc.users.AddReferralEarnings(ctx, tx, referrer.ID, uc.rewardToman); err != nil {
			return err
		}

		first := false
		if !user.ReferralRewardCredited {
			// The flag write is conditional, so two near-simultaneous
			// purchases record first_purchase exactly once.
			ok, err := uc.users.MarkRewardCredited(ctx, tx, user.ID)
			if err != nil {
				return err
			}
			first = ok
		}

		event = model.ReferralEventSubscriptionPurchase
		if first {
			event = model.ReferralEventFirstPurchase
		}
		return uc.logs.Append(ctx, tx, &model.ReferralLog{
			ID:           ulid.Make().String(),
			ReferrerID:   referrer.ID,
			ReferredID:   user.ID,
			ReferralCode: user.ReferredBy,
			Event:        event,
			RewardToman:  uc.rewardToman,
			PlanType:     planType,
			CreatedAt:    time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("referral: %w", err)
	}

	metrics.IncReferralReward(string(event))
	uc.log.Info().Str("referrer_id", referrer.ID).Str("referred_id", user.ID).
		Str("event", string(event)).Int64("reward_toman", uc.rewardToman).Msg("referrer credited")

	if uc.notifier != nil {
		go uc.notifier.Notify(context.WithoutCancel(ctx), fmt.Sprintf(
			"referral %s: referrer=%s referred=%s reward=%d", event, referrer.ID, user.ID, uc.rewardToman))
	}
	return nil
}

func (uc *referralUC) SubmitCode(ctx context.Context, userID, code string) error {
	referrer, err := uc.users.FindByReferralCode(ctx, repository.NoTX, code)
	if err != nil {
		return err
	}
	if referrer.ID == userID {
		return domain.ErrInvalidArgument
	}

	return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := uc.users.SetReferredBy(ctx, tx, userID, code)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrReferralCodeUsed
		}
		return uc.logs.Append(ctx, tx, &model.ReferralLog{
			ID:           ulid.Make().String(),
			ReferrerID:   referrer.ID,
			ReferredID:   userID,
			ReferralCode: code,
			Event:        model.ReferralEventCodeSubmitted,
			CreatedAt:    time.Now(),
		})
	})
}
