package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/adapter"
	"subscription-billing/internal/domain/ports/repository"
	"subscription-billing/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// Locker serializes callback processing per authority. The redis
// implementation lives in infra; tests use an in-process one.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// InitiateResult is returned to the client that asked to open a charge.
type InitiateResult struct {
	Authority   string
	PaymentURL  string
	AmountToman int64
	AmountRial  int64
	ExpiresAt   time.Time
}

// CallbackOutcome tells the HTTP layer where to send the browser after a
// gateway redirect. Replayed callbacks produce the same outcome as the
// first one.
type CallbackOutcome struct {
	Status  model.PaymentStatus
	RefID   string
	Code    int    // gateway code on failure, 0 otherwise
	Message string // user-facing message when Status could not be resolved
}

type PaymentUseCase interface {
	// Initiate opens a charge with the gateway and persists the pending
	// payment record. No record is created when the gateway refuses.
	Initiate(ctx context.Context, userID, planID string, offerID *string) (*InitiateResult, error)
	// HandleCallback processes the gateway redirect for an authority.
	// gatewayOK is the outcome flag the gateway appended to the redirect.
	HandleCallback(ctx context.Context, authority string, gatewayOK bool) *CallbackOutcome
	// Verify returns the stored status for an authority owned by userID.
	// It never contacts the gateway.
	Verify(ctx context.Context, userID, authority string) (*model.Payment, error)
	Pending(ctx context.Context, userID string) ([]*model.Payment, error)
	History(ctx context.Context, userID string) ([]*model.Payment, error)
}

type paymentUC struct {
	payments repository.PaymentRepository
	plans    repository.PlanRepository
	offers   repository.OfferRepository
	users    repository.UserRepository
	subUC    SubscriptionUseCase
	gateway  adapter.PaymentGateway
	locker   Locker

	callbackURL    string
	minAmountToman int64
	log            *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	plans repository.PlanRepository,
	offers repository.OfferRepository,
	users repository.UserRepository,
	subUC SubscriptionUseCase,
	gateway adapter.PaymentGateway,
	locker Locker,
	callbackURL string,
	minAmountToman int64,
	logger *zerolog.Logger,
) *paymentUC {
	compLog := logger.With().Str("component", "PaymentUC").Logger()
	return &paymentUC{
		payments:       payments,
		plans:          plans,
		offers:         offers,
		users:          users,
		subUC:          subUC,
		gateway:        gateway,
		locker:         locker,
		callbackURL:    callbackURL,
		minAmountToman: minAmountToman,
		log:            &compLog,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, userID, planID string, offerID *string) (*InitiateResult, error) {
	plan, err := u.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, domain.ErrPlanInactive
	}

	var offer *model.Offer
	if offerID != nil && *offerID != "" {
		// An unknown or dead offer does not block the purchase; the user
		// simply pays the base price.
		if o, err := u.offers.FindByID(ctx, *offerID); err == nil {
			offer = o
		}
	}

	now := time.Now()
	amountToman := ResolvePrice(plan, offer, now)
	if amountToman < u.minAmountToman {
		return nil, domain.ErrAmountBelowMinimum
	}
	amountRial := adapter.TomanToRial(amountToman)

	meta := map[string]any{"user_id": userID, "plan_id": planID}
	if offer != nil {
		meta["offer_id"] = offer.ID
	}
	if user, err := u.users.FindByID(ctx, repository.NoTX, userID); err == nil && user.Phone != "" {
		meta["mobile"] = user.Phone
	}

	desc := fmt.Sprintf("%s subscription", plan.Name)
	charge, err := u.gateway.CreateCharge(ctx, amountRial, desc, u.callbackURL, meta)
	if err != nil {
		u.log.Warn().Err(err).Str("plan_id", planID).Msg("gateway refused charge creation")
		return nil, err
	}

	p := &model.Payment{
		ID:          uuid.NewString(),
		UserID:      userID,
		PlanID:      planID,
		Gateway:     u.gateway.Name(),
		Authority:   charge.Authority,
		AmountToman: amountToman,
		AmountRial:  amountRial,
		Status:      model.PaymentStatusPending,
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(model.AuthorityTTL),
	}
	if offer != nil {
		id := offer.ID
		p.OfferID = &id
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}

	metrics.IncPayment(string(model.PaymentStatusPending))
	u.log.Info().Str("payment_id", p.ID).Str("authority", p.Authority).
		Int64("amount_toman", amountToman).Msg("charge opened")

	return &InitiateResult{
		Authority:   charge.Authority,
		PaymentURL:  charge.PaymentURL,
		AmountToman: amountToman,
		AmountRial:  amountRial,
		ExpiresAt:   p.ExpiresAt,
	}, nil
}

func (u *paymentUC) HandleCallback(ctx context.Context, authority string, gatewayOK bool) *CallbackOutcome {
	p, err := u.payments.FindByAuthority(ctx, repository.NoTX, authority)
	if err != nil {
		return &CallbackOutcome{Message: "payment not found"}
	}

	// Duplicate gateway redirects for one authority race here; the lock
	// plus the pending-only status CAS keep the terminal transition and
	// the activation single-shot.
	token, err := u.locker.TryLock(ctx, "payment:cb:"+authority, 45*time.Second)
	if err != nil {
		return u.replay(ctx, authority)
	}
	defer func() { _ = u.locker.Unlock(ctx, "payment:cb:"+authority, token) }()

	if p.Terminal() {
		return u.outcomeOf(p)
	}

	now := time.Now()
	if p.IsExpired(now) {
		_, _ = u.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusExpired, nil, "", "", nil)
		metrics.IncPayment(string(model.PaymentStatusExpired))
		return &CallbackOutcome{Status: model.PaymentStatusExpired}
	}

	if !gatewayOK {
		_, _ = u.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusCancelled, nil, "", "", nil)
		metrics.IncPayment(string(model.PaymentStatusCancelled))
		u.log.Info().Str("payment_id", p.ID).Msg("payment cancelled by user")
		return &CallbackOutcome{Status: model.PaymentStatusCancelled}
	}

	// The amount is re-derived from our own record; nothing from the
	// inbound request is trusted for verification.
	res, err := u.gateway.VerifyCharge(ctx, authority, p.AmountRial)
	if err != nil {
		var gwErr *adapter.GatewayError
		code := 0
		if errors.As(err, &gwErr) {
			code = gwErr.Code
		}
		_, _ = u.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusFailed, nil, "", "", nil)
		metrics.IncPayment(string(model.PaymentStatusFailed))
		u.log.Warn().Err(err).Str("payment_id", p.ID).Msg("gateway verification failed")
		return &CallbackOutcome{Status: model.PaymentStatusFailed, Code: code}
	}

	refID := res.RefID
	updated, err := u.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusSuccess, &refID, res.CardPan, res.CardHash, &now)
	if err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Msg("CRITICAL: verified charge could not be persisted; manual reconciliation required")
		return &CallbackOutcome{Message: "verification could not be recorded"}
	}
	if !updated {
		// Lost the CAS to a concurrent callback; its outcome stands.
		return u.replay(ctx, authority)
	}

	p.Status = model.PaymentStatusSuccess
	p.RefID = &refID
	p.CardPan = res.CardPan
	p.CardHash = res.CardHash
	p.VerifiedAt = &now

	metrics.IncPayment(string(model.PaymentStatusSuccess))
	metrics.AddPaymentRevenue("toman", p.AmountToman)

	if p.OfferID != nil {
		if err := u.offers.IncrementUsage(ctx, repository.NoTX, *p.OfferID); err != nil {
			u.log.Warn().Err(err).Str("offer_id", *p.OfferID).Msg("offer usage counter not bumped")
		}
	}

	// The money has moved: activation failures are logged for manual
	// reconciliation and never roll the payment back.
	if _, err := u.subUC.Activate(ctx, p); err != nil {
		u.log.Error().Err(err).Str("payment_id", p.ID).Str("ref_id", refID).
			Msg("CRITICAL: subscription activation failed after successful charge")
	}

	u.log.Info().Str("payment_id", p.ID).Str("ref_id", refID).Msg("payment verified")
	return &CallbackOutcome{Status: model.PaymentStatusSuccess, RefID: refID}
}

// replay re-reads the record and reports its stored outcome without
// touching the gateway.
func (u *paymentUC) replay(ctx context.Context, authority string) *CallbackOutcome {
	p, err := u.payments.FindByAuthority(ctx, repository.NoTX, authority)
	if err != nil {
		return &CallbackOutcome{Message: "payment not found"}
	}
	return u.outcomeOf(p)
}

func (u *paymentUC) outcomeOf(p *model.Payment) *CallbackOutcome {
	out := &CallbackOutcome{Status: p.EffectiveStatus(time.Now())}
	if p.RefID != nil {
		out.RefID = *p.RefID
	}
	return out
}

func (u *paymentUC) Verify(ctx context.Context, userID, authority string) (*model.Payment, error) {
	p, err := u.payments.FindByAuthority(ctx, repository.NoTX, authority)
	if err != nil {
		return nil, err
	}
	// Ownership is checked against our records, independent of whatever
	// the gateway authorized.
	if p.UserID != userID {
		return nil, domain.ErrNotOwner
	}
	cp := *p
	cp.Status = p.EffectiveStatus(time.Now())
	return &cp, nil
}

func (u *paymentUC) Pending(ctx context.Context, userID string) ([]*model.Payment, error) {
	items, err := u.payments.ListByUserAndStatus(ctx, repository.NoTX, userID, model.PaymentStatusPending, 50)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := items[:0]
	for _, p := range items {
		if !p.IsExpired(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (u *paymentUC) History(ctx context.Context, userID string) ([]*model.Payment, error) {
	items, err := u.payments.ListByUser(ctx, repository.NoTX, userID, 100)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, p := range items {
		p.Status = p.EffectiveStatus(now)
	}
	return items, nil
}
