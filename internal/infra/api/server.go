package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"subscription-billing/internal/domain"
	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/adapter"
	"subscription-billing/internal/domain/ports/repository"
	"subscription-billing/internal/infra/web"
	"subscription-billing/internal/usecase"
)

// Server exposes the billing API: the authenticated JSON surface under
// /api/v1 and the unauthenticated gateway callback redirect.
type Server struct {
	payUC usecase.PaymentUseCase
	subUC usecase.SubscriptionUseCase
	refUC usecase.ReferralUseCase
	plans repository.PlanRepository
	auth  *web.AuthManager

	// frontendURL is slash-terminated; the callback handler appends the
	// outcome fragment directly.
	frontendURL string
	log         *zerolog.Logger
}

func NewServer(
	payUC usecase.PaymentUseCase,
	subUC usecase.SubscriptionUseCase,
	refUC usecase.ReferralUseCase,
	plans repository.PlanRepository,
	auth *web.AuthManager,
	frontendURL string,
	logger *zerolog.Logger,
) *Server {
	apiLog := logger.With().Str("component", "api").Logger()
	return &Server{
		payUC:       payUC,
		subUC:       subUC,
		refUC:       refUC,
		plans:       plans,
		auth:        auth,
		frontendURL: frontendURL,
		log:         &apiLog,
	}
}

// Router assembles the chi mux with the shared middleware chain.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(Recover(s.log), TraceID(s.log), RequestLog(s.log), Timeout(30*time.Second))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/payment/callback", s.handleCallback)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RequireUser(s.auth))
		r.Get("/plans", s.handleListPlans)
		r.Post("/payment/create", s.handleCreatePayment)
		r.Post("/payment/verify", s.handleVerifyPayment)
		r.Get("/payment/pending", s.handlePendingPayments)
		r.Get("/payment/history", s.handlePaymentHistory)
		r.Get("/subscription", s.handleActiveSubscription)
		r.Post("/referral/submit", s.handleSubmitReferral)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCallback terminates the gateway redirect. The browser always
// leaves with a 302 to the frontend; the outcome travels in the URL
// fragment so it never hits intermediary logs.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	authority := q.Get("Authority")
	gatewayOK := q.Get("Status") == "OK"

	if authority == "" {
		s.redirect(w, r, "#payment=error&message="+url.QueryEscape("missing authority"))
		return
	}

	out := s.payUC.HandleCallback(r.Context(), authority, gatewayOK)
	switch {
	case out.Status == model.PaymentStatusSuccess:
		s.redirect(w, r, "#payment=success&refId="+url.QueryEscape(out.RefID))
	case out.Status == model.PaymentStatusCancelled:
		s.redirect(w, r, "#payment=cancelled")
	case out.Status == model.PaymentStatusExpired:
		s.redirect(w, r, "#payment=expired")
	case out.Status == model.PaymentStatusFailed:
		s.redirect(w, r, "#payment=failed&code="+strconv.Itoa(out.Code))
	default:
		s.redirect(w, r, "#payment=error&message="+url.QueryEscape(out.Message))
	}
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, fragment string) {
	http.Redirect(w, r, s.frontendURL+fragment, http.StatusFound)
}

type planView struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	PriceToman int64  `json:"price_toman"`
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.plans.ListActive(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]planView, 0, len(plans))
	for _, p := range plans {
		items = append(items, planView{ID: p.ID, Name: p.Name, Type: string(p.Type), PriceToman: p.PriceToman})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID  string  `json:"plan_id"`
		OfferID *string `json:"offer_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	res, err := s.payUC.Initiate(r.Context(), UserID(r.Context()), req.PlanID, req.OfferID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"authority":    res.Authority,
		"payment_url":  res.PaymentURL,
		"amount_toman": res.AmountToman,
		"amount_rial":  res.AmountRial,
		"expires_at":   res.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Authority string `json:"authority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Authority == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}

	p, err := s.payUC.Verify(r.Context(), UserID(r.Context()), req.Authority)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, paymentToView(p))
}

func (s *Server) handlePendingPayments(w http.ResponseWriter, r *http.Request) {
	list, err := s.payUC.Pending(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": paymentsToView(list)})
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.payUC.History(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": paymentsToView(list)})
}

func (s *Server) handleActiveSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subUC.GetActive(r.Context(), UserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":          sub.ID,
		"plan_type":   string(sub.PlanType),
		"start_date":  sub.StartDate.UTC().Format(time.RFC3339),
		"expiry_date": sub.ExpiryDate.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSubmitReferral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if err := s.refUC.SubmitCode(r.Context(), UserID(r.Context()), req.Code); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type paymentView struct {
	ID          string  `json:"id"`
	PlanID      string  `json:"plan_id"`
	Authority   string  `json:"authority"`
	AmountToman int64   `json:"amount_toman"`
	Status      string  `json:"status"`
	RefID       *string `json:"ref_id,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func paymentToView(p *model.Payment) paymentView {
	return paymentView{
		ID:          p.ID,
		PlanID:      p.PlanID,
		Authority:   p.Authority,
		AmountToman: p.AmountToman,
		Status:      string(p.Status),
		RefID:       p.RefID,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func paymentsToView(list []*model.Payment) []paymentView {
	out := make([]paymentView, 0, len(list))
	for _, p := range list {
		out = append(out, paymentToView(p))
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain sentinels to HTTP statuses. Unknown errors get
// a generic 500 so internals never leak to clients.
func writeError(w http.ResponseWriter, err error) {
	var gwErr *adapter.GatewayError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrNotOwner):
		writeJSONError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid request")
	case errors.Is(err, domain.ErrPlanInactive):
		writeJSONError(w, http.StatusUnprocessableEntity, "plan is not active")
	case errors.Is(err, domain.ErrAmountBelowMinimum):
		writeJSONError(w, http.StatusUnprocessableEntity, "amount below gateway minimum")
	case errors.Is(err, domain.ErrReferralCodeUsed):
		writeJSONError(w, http.StatusConflict, "referral code already submitted")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeJSONError(w, http.StatusConflict, "already exists")
	case errors.As(err, &gwErr):
		writeJSONError(w, http.StatusBadGateway, fmt.Sprintf("gateway error %d", gwErr.Code))
	default:
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// Run serves the router until ctx is cancelled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
