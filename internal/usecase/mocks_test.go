//go:build !integration

package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/adapter"
	"subscription-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

//
// ---------------- in-memory repositories ----------------
//

type memPaymentRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Payment // by ID
	saveErr error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: map[string]*model.Payment{}}
}

func (m *memPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) FindByAuthority(ctx context.Context, tx repository.Tx, authority string) (*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.Authority == authority {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPaymentRepo) UpdateStatusIfPending(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus, refID *string, cardPan, cardHash string, verifiedAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = status
	if refID != nil {
		p.RefID = refID
	}
	if cardPan != "" {
		p.CardPan = cardPan
	}
	if cardHash != "" {
		p.CardHash = cardHash
	}
	if verifiedAt != nil {
		p.VerifiedAt = verifiedAt
	}
	p.UpdatedAt = time.Now()
	return true, nil
}

func (m *memPaymentRepo) ListByUserAndStatus(ctx context.Context, tx repository.Tx, userID string, status model.PaymentStatus, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.UserID == userID && p.Status == status {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.UserID == userID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Payment
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.ExpiresAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Plan
}

func newMemPlanRepo() *memPlanRepo { return &memPlanRepo{store: map[string]*model.Plan{}} }

func (m *memPlanRepo) put(p *model.Plan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
}

func (m *memPlanRepo) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) ListActive(ctx context.Context) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Plan
	for _, p := range m.store {
		if p.Active {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memOfferRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Offer
}

func newMemOfferRepo() *memOfferRepo { return &memOfferRepo{store: map[string]*model.Offer{}} }

func (m *memOfferRepo) put(o *model.Offer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.store[o.ID] = &cp
}

func (m *memOfferRepo) FindByID(ctx context.Context, id string) (*model.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOfferRepo) IncrementUsage(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	o.UsageCount++
	return nil
}

type memSubscriptionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Subscription
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{store: map[string]*model.Subscription{}}
}

func (m *memSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	for _, s := range m.store {
		if s.UserID == userID && s.Active && s.ExpiryDate.After(now) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memSubscriptionRepo) DeactivateAllByUser(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.store {
		if s.UserID == userID && s.Active {
			s.Active = false
			n++
		}
	}
	return n, nil
}

func (m *memSubscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Subscription
	for _, s := range m.store {
		if s.UserID == userID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memSubscriptionRepo) activeCount(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, s := range m.store {
		if s.UserID == userID && s.Active {
			n++
		}
	}
	return n
}

type memUserRepo struct {
	mu    sync.RWMutex
	store map[string]*model.User
}

func newMemUserRepo() *memUserRepo { return &memUserRepo{store: map[string]*model.User{}} }

func (m *memUserRepo) put(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.store[u.ID] = &cp
}

func (m *memUserRepo) get(id string) *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := *m.store[id]
	return &cp
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) FindByReferralCode(ctx context.Context, tx repository.Tx, code string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.store {
		if u.ReferralCode == code {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUserRepo) SetReferredBy(ctx context.Context, tx repository.Tx, userID, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok || u.ReferredBy != "" {
		return false, nil
	}
	u.ReferredBy = code
	return true, nil
}

func (m *memUserRepo) MarkRewardCredited(ctx context.Context, tx repository.Tx, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[userID]
	if !ok || u.ReferralRewardCredited {
		return false, nil
	}
	u.ReferralRewardCredited = true
	return true, nil
}

func (m *memUserRepo) AddReferralEarnings(ctx context.Context, tx repository.Tx, referrerID string, amountToman int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[referrerID]
	if !ok {
		return domain.ErrNotFound
	}
	u.ReferralSuccessCount++
	u.ReferralEarningToman += amountToman
	return nil
}

type memReferralLogRepo struct {
	mu      sync.RWMutex
	entries []*model.ReferralLog
}

func newMemReferralLogRepo() *memReferralLogRepo { return &memReferralLogRepo{} }

func (m *memReferralLogRepo) Append(ctx context.Context, tx repository.Tx, entry *model.ReferralLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memReferralLogRepo) ListByReferrer(ctx context.Context, tx repository.Tx, referrerID string, limit int) ([]*model.ReferralLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.ReferralLog
	for _, e := range m.entries {
		if e.ReferrerID == referrerID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memReferralLogRepo) events() []model.ReferralEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.ReferralEvent, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e.Event)
	}
	return out
}

//
// ---------------- adapter/infra mocks ----------------
//

// mockGateway routes calls through optional hooks so each test can shape
// gateway behavior without a new type.
type mockGateway struct {
	mu          sync.Mutex
	createCalls int
	verifyCalls int

	createFn func(amountRial int64) (*adapter.ChargeResult, error)
	verifyFn func(authority string, amountRial int64) (*adapter.VerifyResult, error)
}

func (g *mockGateway) Name() string { return "zarinpal" }

func (g *mockGateway) CreateCharge(ctx context.Context, amountRial int64, description, callbackURL string, meta map[string]any) (*adapter.ChargeResult, error) {
	g.mu.Lock()
	g.createCalls++
	g.mu.Unlock()
	if g.createFn != nil {
		return g.createFn(amountRial)
	}
	return &adapter.ChargeResult{Authority: "A-0001", PaymentURL: "https://pay.example/A-0001"}, nil
}

func (g *mockGateway) VerifyCharge(ctx context.Context, authority string, amountRial int64) (*adapter.VerifyResult, error) {
	g.mu.Lock()
	g.verifyCalls++
	g.mu.Unlock()
	if g.verifyFn != nil {
		return g.verifyFn(authority, amountRial)
	}
	return &adapter.VerifyResult{RefID: "REF-1", CardPan: "6037-****-1234"}, nil
}

func (g *mockGateway) InquireCharge(ctx context.Context, authority string) (*adapter.VerifyResult, error) {
	return nil, domain.ErrOperationFailed
}

func (g *mockGateway) verifies() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.verifyCalls
}

type mockLocker struct {
	mu     sync.Mutex
	held   map[string]string
	denyAll bool
}

func newMockLocker() *mockLocker { return &mockLocker{held: map[string]string{}} }

func (l *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.denyAll {
		return "", domain.ErrLockNotAcquired
	}
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	l.held[key] = "tok"
	return "tok", nil
}

func (l *mockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

type noTx struct{}

type mockTxManager struct{}

func (m *mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, noTx{})
}

type mockNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *mockNotifier) Notify(ctx context.Context, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, text)
}
