//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/adapter"
)

type paymentFixture struct {
	payments *memPaymentRepo
	plans    *memPlanRepo
	offers   *memOfferRepo
	users    *memUserRepo
	subs     *memSubscriptionRepo
	logs     *memReferralLogRepo
	gateway  *mockGateway
	locker   *mockLocker
	uc       PaymentUseCase
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		payments: newMemPaymentRepo(),
		plans:    newMemPlanRepo(),
		offers:   newMemOfferRepo(),
		users:    newMemUserRepo(),
		subs:     newMemSubscriptionRepo(),
		logs:     newMemReferralLogRepo(),
		gateway:  &mockGateway{},
		locker:   newMockLocker(),
	}
	f.plans.put(&model.Plan{ID: "plan-m", Name: "Monthly", Type: model.PlanTypeMonthly, PriceToman: 100000, Active: true})
	f.users.put(&model.User{ID: "u1", Phone: "09120000000", ReferralCode: "U1CODE", RegisteredAt: time.Now()})

	refUC := NewReferralUseCase(f.users, f.logs, &mockTxManager{}, nil, 5000, newTestLogger())
	subUC := NewSubscriptionUseCase(f.subs, f.plans, refUC, &mockTxManager{}, nil, newTestLogger())
	f.uc = NewPaymentUseCase(f.payments, f.plans, f.offers, f.users, subUC, f.gateway, f.locker,
		"https://api.example.com/payment/callback", 1000, newTestLogger())
	return f
}

func (f *paymentFixture) initiate(t *testing.T) *InitiateResult {
	t.Helper()
	res, err := f.uc.Initiate(context.Background(), "u1", "plan-m", nil)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return res
}

func TestPaymentUC_Initiate(t *testing.T) {
	t.Run("happy path stores a pending record with TTL", func(t *testing.T) {
		f := newPaymentFixture(t)
		res := f.initiate(t)

		if res.Authority != "A-0001" || res.PaymentURL == "" {
			t.Fatalf("unexpected result: %+v", res)
		}
		if res.AmountToman != 100000 || res.AmountRial != 1000000 {
			t.Fatalf("amounts: %+v", res)
		}
		p, err := f.payments.FindByAuthority(context.Background(), nil, "A-0001")
		if err != nil {
			t.Fatalf("record not stored: %v", err)
		}
		if p.Status != model.PaymentStatusPending {
			t.Fatalf("status = %s", p.Status)
		}
		if got := p.ExpiresAt.Sub(p.CreatedAt); got != model.AuthorityTTL {
			t.Fatalf("ttl = %v", got)
		}
	})

	t.Run("inactive plan is rejected", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.plans.put(&model.Plan{ID: "plan-x", Name: "Retired", Type: model.PlanTypeMonthly, PriceToman: 50000, Active: false})

		if _, err := f.uc.Initiate(context.Background(), "u1", "plan-x", nil); !errors.Is(err, domain.ErrPlanInactive) {
			t.Fatalf("want ErrPlanInactive, got %v", err)
		}
	})

	t.Run("discounted amount below gateway minimum is rejected pre-gateway", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.plans.put(&model.Plan{ID: "plan-s", Name: "Small", Type: model.PlanTypeMonthly, PriceToman: 1200, Active: true})
		f.offers.put(&model.Offer{ID: "off-90", Kind: model.OfferKindPercentage, Percentage: 90, AllPlans: true, Active: true})

		offerID := "off-90"
		if _, err := f.uc.Initiate(context.Background(), "u1", "plan-s", &offerID); !errors.Is(err, domain.ErrAmountBelowMinimum) {
			t.Fatalf("want ErrAmountBelowMinimum, got %v", err)
		}
		if f.gateway.createCalls != 0 {
			t.Fatalf("gateway must not be called, got %d calls", f.gateway.createCalls)
		}
	})

	t.Run("unknown offer does not block the purchase", func(t *testing.T) {
		f := newPaymentFixture(t)
		offerID := "no-such-offer"
		res, err := f.uc.Initiate(context.Background(), "u1", "plan-m", &offerID)
		if err != nil {
			t.Fatalf("initiate: %v", err)
		}
		if res.AmountToman != 100000 {
			t.Fatalf("base price expected, got %d", res.AmountToman)
		}
	})

	t.Run("gateway refusal leaves no record behind", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.gateway.createFn = func(int64) (*adapter.ChargeResult, error) {
			return nil, &adapter.GatewayError{Code: -9, Message: "validation error"}
		}

		if _, err := f.uc.Initiate(context.Background(), "u1", "plan-m", nil); err == nil {
			t.Fatal("want error")
		}
		if _, err := f.payments.FindByAuthority(context.Background(), nil, "A-0001"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("no record expected, got %v", err)
		}
	})
}

func TestPaymentUC_HandleCallback(t *testing.T) {
	t.Run("successful verification settles and activates once", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)

		out := f.uc.HandleCallback(context.Background(), "A-0001", true)
		if out.Status != model.PaymentStatusSuccess || out.RefID != "REF-1" {
			t.Fatalf("outcome: %+v", out)
		}
		if got := f.subs.activeCount("u1"); got != 1 {
			t.Fatalf("active subscriptions = %d", got)
		}
	})

	t.Run("duplicate callback reports stored outcome without re-verifying", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)

		first := f.uc.HandleCallback(context.Background(), "A-0001", true)
		second := f.uc.HandleCallback(context.Background(), "A-0001", true)

		if first.Status != model.PaymentStatusSuccess || second.Status != model.PaymentStatusSuccess {
			t.Fatalf("outcomes: %+v / %+v", first, second)
		}
		if second.RefID != "REF-1" {
			t.Fatalf("replay lost ref id: %+v", second)
		}
		if f.gateway.verifies() != 1 {
			t.Fatalf("verify calls = %d, want 1", f.gateway.verifies())
		}
		if got := f.subs.activeCount("u1"); got != 1 {
			t.Fatalf("active subscriptions = %d, want 1", got)
		}
	})

	t.Run("user cancellation is terminal", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)

		out := f.uc.HandleCallback(context.Background(), "A-0001", false)
		if out.Status != model.PaymentStatusCancelled {
			t.Fatalf("outcome: %+v", out)
		}

		// A forged retry with Status=OK must not resurrect the record.
		out = f.uc.HandleCallback(context.Background(), "A-0001", true)
		if out.Status != model.PaymentStatusCancelled {
			t.Fatalf("cancelled record reopened: %+v", out)
		}
		if f.gateway.verifies() != 0 {
			t.Fatalf("verify calls = %d, want 0", f.gateway.verifies())
		}
	})

	t.Run("expired authority is not verified", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)

		p, _ := f.payments.FindByAuthority(context.Background(), nil, "A-0001")
		p.ExpiresAt = time.Now().Add(-time.Minute)
		_ = f.payments.Save(context.Background(), nil, p)

		out := f.uc.HandleCallback(context.Background(), "A-0001", true)
		if out.Status != model.PaymentStatusExpired {
			t.Fatalf("outcome: %+v", out)
		}
		if f.gateway.verifies() != 0 {
			t.Fatalf("verify calls = %d, want 0", f.gateway.verifies())
		}
	})

	t.Run("gateway verification failure records failed with code", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)
		f.gateway.verifyFn = func(string, int64) (*adapter.VerifyResult, error) {
			return nil, &adapter.GatewayError{Code: -51, Message: "payment failed"}
		}

		out := f.uc.HandleCallback(context.Background(), "A-0001", true)
		if out.Status != model.PaymentStatusFailed || out.Code != -51 {
			t.Fatalf("outcome: %+v", out)
		}
		if got := f.subs.activeCount("u1"); got != 0 {
			t.Fatalf("no activation expected, got %d", got)
		}
	})

	t.Run("verification amount comes from the stored record", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)
		var gotRial int64
		f.gateway.verifyFn = func(_ string, amountRial int64) (*adapter.VerifyResult, error) {
			gotRial = amountRial
			return &adapter.VerifyResult{RefID: "REF-9"}, nil
		}

		f.uc.HandleCallback(context.Background(), "A-0001", true)
		if gotRial != 1000000 {
			t.Fatalf("verify amount = %d, want 1000000", gotRial)
		}
	})

	t.Run("unknown authority reports not found", func(t *testing.T) {
		f := newPaymentFixture(t)
		out := f.uc.HandleCallback(context.Background(), "A-404", true)
		if out.Status != "" || out.Message == "" {
			t.Fatalf("outcome: %+v", out)
		}
	})

	t.Run("contended lock replays the stored state", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)
		f.locker.denyAll = true

		out := f.uc.HandleCallback(context.Background(), "A-0001", true)
		if out.Status != model.PaymentStatusPending {
			t.Fatalf("outcome: %+v", out)
		}
		if f.gateway.verifies() != 0 {
			t.Fatalf("verify calls = %d, want 0", f.gateway.verifies())
		}
	})

	t.Run("settled payment bumps offer usage", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.offers.put(&model.Offer{ID: "off-10", Kind: model.OfferKindPercentage, Percentage: 10, AllPlans: true, Active: true})
		offerID := "off-10"
		if _, err := f.uc.Initiate(context.Background(), "u1", "plan-m", &offerID); err != nil {
			t.Fatalf("initiate: %v", err)
		}

		f.uc.HandleCallback(context.Background(), "A-0001", true)
		o, _ := f.offers.FindByID(context.Background(), "off-10")
		if o.UsageCount != 1 {
			t.Fatalf("usage count = %d", o.UsageCount)
		}
	})
}

func TestPaymentUC_VerifyAndListing(t *testing.T) {
	t.Run("verify rejects other users' authorities", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)

		if _, err := f.uc.Verify(context.Background(), "intruder", "A-0001"); !errors.Is(err, domain.ErrNotOwner) {
			t.Fatalf("want ErrNotOwner, got %v", err)
		}
	})

	t.Run("verify reports derived expiry without writing", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)

		p, _ := f.payments.FindByAuthority(context.Background(), nil, "A-0001")
		p.ExpiresAt = time.Now().Add(-time.Minute)
		_ = f.payments.Save(context.Background(), nil, p)

		got, err := f.uc.Verify(context.Background(), "u1", "A-0001")
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if got.Status != model.PaymentStatusExpired {
			t.Fatalf("status = %s", got.Status)
		}
		stored, _ := f.payments.FindByAuthority(context.Background(), nil, "A-0001")
		if stored.Status != model.PaymentStatusPending {
			t.Fatalf("stored status mutated to %s", stored.Status)
		}
	})

	t.Run("pending filters derived-expired records", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)

		p, _ := f.payments.FindByAuthority(context.Background(), nil, "A-0001")
		p.ExpiresAt = time.Now().Add(-time.Minute)
		_ = f.payments.Save(context.Background(), nil, p)

		list, err := f.uc.Pending(context.Background(), "u1")
		if err != nil {
			t.Fatalf("pending: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("want empty pending, got %d", len(list))
		}
	})

	t.Run("history maps effective status", func(t *testing.T) {
		f := newPaymentFixture(t)
		f.initiate(t)

		p, _ := f.payments.FindByAuthority(context.Background(), nil, "A-0001")
		p.ExpiresAt = time.Now().Add(-time.Minute)
		_ = f.payments.Save(context.Background(), nil, p)

		list, err := f.uc.History(context.Background(), "u1")
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(list) != 1 || list[0].Status != model.PaymentStatusExpired {
			t.Fatalf("history: %+v", list)
		}
	})
}
