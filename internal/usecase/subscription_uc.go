package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
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
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// Activate grants the entitlement for a verified payment: one new
	// active subscription per call, with the remainder of any still-active
	// prior window stacked on top.
	Activate(ctx context.Context, payment *model.Payment) (*model.Subscription, error)
	GetActive(ctx context.Context, userID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error)
}

type subscriptionUC struct {
	subs       repository.SubscriptionRepository
	plans      repository.PlanRepository
	referralUC ReferralUseCase
	tm         repository.TransactionManager
	notifier   adapter.Notifier
	log        *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	plans repository.PlanRepository,
	referralUC ReferralUseCase,
	tm repository.TransactionManager,
	notifier adapter.Notifier,
	logger *zerolog.Logger,
) *subscriptionUC {
	compLog := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{
		subs:       subs,
		plans:      plans,
		referralUC: referralUC,
		tm:         tm,
		notifier:   notifier,
		log:        &compLog,
	}
}

// provenance is serialized into Subscription.Payload for audit.
type provenance struct {
	PaymentID string `json:"payment_id"`
	RefID     string `json:"ref_id,omitempty"`
	Gateway   string `json:"gateway"`
}

func (uc *subscriptionUC) Activate(ctx context.Context, payment *model.Payment) (*model.Subscription, error) {
	if payment == nil || payment.Status != model.PaymentStatusSuccess {
		return nil, domain.ErrInvalidArgument
	}

	plan, err := uc.plans.FindByID(ctx, payment.PlanID)
	if err != nil {
		return nil, fmt.Errorf("activation: plan lookup: %w", err)
	}

	now := time.Now()
	expiry, err := plan.EntitlementEnd(now)
	if err != nil {
		return nil, fmt.Errorf("activation: entitlement length: %w", err)
	}

	refID := ""
	if payment.RefID != nil {
		refID = *payment.RefID
	}
	payload, err := json.Marshal(provenance{PaymentID: payment.ID, RefID: refID, Gateway: payment.Gateway})
	if err != nil {
		return nil, fmt.Errorf("activation: payload: %w", err)
	}

	sub := &model.Subscription{
		ID:            uuid.NewString(),
		UserID:        payment.UserID,
		PlanType:      plan.Type,
		ProductKey:    plan.ID,
		PurchaseToken: payment.Authority,
		OrderID:       ulid.Make().String(),
		Payload:       string(payload),
		Active:        true,
		StartDate:     now,
		ExpiryDate:    expiry,
		AutoRenew:     false,
		CreatedAt:     now,
	}

	// Deactivate-all plus insert must land together so at most one row per
	// user is ever active; re-running the deactivation is harmless.
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		prev, err := uc.subs.FindActiveByUser(ctx, tx, payment.UserID)
		if err != nil && err != domain.ErrNotFound {
			return err
		}
		if prev != nil {
			// Early renewal never loses paid-for time.
			sub.ExpiryDate = sub.ExpiryDate.Add(prev.Remaining(now))
		}
		if _, err := uc.subs.DeactivateAllByUser(ctx, tx, payment.UserID); err != nil {
			return err
		}
		return uc.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, fmt.Errorf("activation: %w", err)
	}

	metrics.IncSubscriptionActivation(string(plan.Type))
	uc.log.Info().Str("user_id", payment.UserID).Str("subscription_id", sub.ID).
		Time("expiry", sub.ExpiryDate).Msg("subscription activated")

	// Referral crediting must never undo or block an activation.
	if uc.referralUC != nil {
		if err := uc.referralUC.Reward(ctx, payment.UserID, plan.Type, payment); err != nil {
			uc.log.Error().Err(err).Str("user_id", payment.UserID).
				Msg("referral crediting failed; activation stands")
		}
	}

	if uc.notifier != nil {
		go uc.notifier.Notify(context.WithoutCancel(ctx), fmt.Sprintf(
			"subscription activated: user=%s plan=%s order=%s", payment.UserID, plan.Name, sub.OrderID))
	}

	return sub, nil
}

func (uc *subscriptionUC) GetActive(ctx context.Context, userID string) (*model.Subscription, error) {
	return uc.subs.FindActiveByUser(ctx, repository.NoTX, userID)
}

func (uc *subscriptionUC) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	return uc.subs.ListByUser(ctx, repository.NoTX, userID)
}
