package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"subscription-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*ZarinPalGateway)(nil)

const requestTimeout = 30 * time.Second

// ZarinPalGateway implements adapter.PaymentGateway over the REST v4
// request/verify/inquiry endpoints.
type ZarinPalGateway struct {
	merchantID string
	sandbox    bool
	client     *http.Client
}

// NewZarinPalGateway fails fast on a missing merchant credential; that is
// a deployment problem, never a per-request one.
func NewZarinPalGateway(merchantID string, sandbox bool) (*ZarinPalGateway, error) {
	if merchantID == "" {
		return nil, errors.New("zarinpal: merchant id is required")
	}
	return &ZarinPalGateway{
		merchantID: merchantID,
		sandbox:    sandbox,
		client:     &http.Client{Timeout: requestTimeout},
	}, nil
}

func (z *ZarinPalGateway) Name() string { return "zarinpal" }

func (z *ZarinPalGateway) endpoint(path string) string {
	base := "https://api.zarinpal.com/pg/v4"
	if z.sandbox {
		base = "https://sandbox.zarinpal.com/pg/v4"
	}
	return base + path
}

func (z *ZarinPalGateway) startPayURL(authority string) string {
	if z.sandbox {
		return fmt.Sprintf("https://sandbox.zarinpal.com/pg/StartPay/%s", authority)
	}
	return fmt.Sprintf("https://www.zarinpal.com/pg/StartPay/%s", authority)
}

// codeMessages maps gateway numeric codes to user-facing messages.
// Unmapped codes fall back to a generic failure.
var codeMessages = map[int]string{
	-9:  "validation error in the payment request",
	-10: "invalid merchant id or ip",
	-11: "merchant is not active",
	-12: "too many attempts, try again later",
	-15: "merchant access is suspended",
	-16: "merchant level does not allow this operation",
	-30: "merchant is not allowed to use floating wages",
	-33: "amount does not match the transaction",
	-50: "paid amount differs from the requested amount",
	-51: "payment session failed",
	-52: "unexpected gateway error, contact support",
	-53: "authority does not belong to this merchant",
	-54: "invalid authority",
	100: "verified",
	101: "already verified",
}

func gatewayErr(code int) *adapter.GatewayError {
	msg, ok := codeMessages[code]
	if !ok {
		msg = "payment gateway rejected the request"
	}
	return &adapter.GatewayError{Code: code, Message: msg}
}

// transportErr collapses transport-level failures into the same shape as
// gateway rejections so callers have a single failure path.
func transportErr(err error) *adapter.GatewayError {
	return &adapter.GatewayError{Code: 0, Message: fmt.Sprintf("gateway unreachable: %v", err)}
}

func (z *ZarinPalGateway) post(ctx context.Context, path string, payload map[string]any, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return transportErr(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, z.endpoint(path), bytes.NewReader(b))
	if err != nil {
		return transportErr(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := z.client.Do(req)
	if err != nil {
		return transportErr(err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return transportErr(err)
	}
	return nil
}

// CreateCharge calls /payment/request.json and returns the authority plus
// the StartPay URL for the browser redirect.
func (z *ZarinPalGateway) CreateCharge(ctx context.Context, amountRial int64, description, callbackURL string, meta map[string]any) (*adapter.ChargeResult, error) {
	payload := map[string]any{
		"merchant_id":  z.merchantID,
		"amount":       amountRial,
		"description":  description,
		"callback_url": callbackURL,
	}
	if meta != nil {
		payload["metadata"] = meta
	}

	var out struct {
		Data struct {
			Code      int    `json:"code"`
			Message   string `json:"message"`
			Authority string `json:"authority"`
		} `json:"data"`
		Errors any `json:"errors"`
	}
	if err := z.post(ctx, "/payment/request.json", payload, &out); err != nil {
		return nil, err
	}
	if out.Data.Code != 100 || out.Data.Authority == "" {
		return nil, gatewayErr(out.Data.Code)
	}
	return &adapter.ChargeResult{
		Authority:  out.Data.Authority,
		PaymentURL: z.startPayURL(out.Data.Authority),
	}, nil
}

// VerifyCharge calls /payment/verify.json. Code 101 (already verified) is
// treated as success so gateway-side callback retries stay idempotent.
func (z *ZarinPalGateway) VerifyCharge(ctx context.Context, authority string, amountRial int64) (*adapter.VerifyResult, error) {
	return z.settleCall(ctx, "/payment/verify.json", map[string]any{
		"merchant_id": z.merchantID,
		"amount":      amountRial,
		"authority":   authority,
	})
}

// InquireCharge reads back a charge's state for manual reconciliation.
// The workflow never calls this automatically.
func (z *ZarinPalGateway) InquireCharge(ctx context.Context, authority string) (*adapter.VerifyResult, error) {
	return z.settleCall(ctx, "/payment/inquiry.json", map[string]any{
		"merchant_id": z.merchantID,
		"authority":   authority,
	})
}

func (z *ZarinPalGateway) settleCall(ctx context.Context, path string, payload map[string]any) (*adapter.VerifyResult, error) {
	var out struct {
		Data struct {
			Code     int    `json:"code"`
			RefID    int64  `json:"ref_id"`
			CardPan  string `json:"card_pan"`
			CardHash string `json:"card_hash"`
		} `json:"data"`
		Errors any `json:"errors"`
	}
	if err := z.post(ctx, path, payload, &out); err != nil {
		return nil, err
	}
	if (out.Data.Code != 100 && out.Data.Code != 101) || out.Data.RefID == 0 {
		return nil, gatewayErr(out.Data.Code)
	}
	return &adapter.VerifyResult{
		RefID:    fmt.Sprintf("%d", out.Data.RefID),
		CardPan:  out.Data.CardPan,
		CardHash: out.Data.CardHash,
	}, nil
}
