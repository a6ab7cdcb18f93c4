package adapter

import (
	"context"
	"fmt"
)

// RialPerToman is the fixed multiplier between the display currency and
// the gateway's native minor unit.
const RialPerToman = 10

// TomanToRial converts a display-currency amount to the gateway's native
// minor unit.
func TomanToRial(toman int64) int64 { return toman * RialPerToman }

// GatewayError is the uniform failure shape for gateway calls. Transport
// errors and gateway business rejections both collapse into it, so
// callers never branch on error transport vs error code.
type GatewayError struct {
	Code    int // gateway numeric code; 0 for transport failures
	Message string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway error %d: %s", e.Code, e.Message)
}

// ChargeResult is the outcome of opening a charge with the gateway.
type ChargeResult struct {
	Authority  string
	PaymentURL string
}

// VerifyResult is the outcome of verifying (or inquiring) a charge.
type VerifyResult struct {
	RefID    string
	CardPan  string // masked instrument
	CardHash string
}

// PaymentGateway is the port over the external redirect-based gateway.
// Amounts are in the gateway's native minor unit (Rial); conversion from
// the display currency is owned by the gateway package.
type PaymentGateway interface {
	Name() string
	// CreateCharge opens a charge and returns the authority token plus the
	// URL the user must be redirected to. Metadata is opaque pass-through
	// for reconciliation only and is never trusted on callback.
	CreateCharge(ctx context.Context, amountRial int64, description, callbackURL string, meta map[string]any) (*ChargeResult, error)
	// VerifyCharge settles a charge. The amount must be re-derived from
	// the stored payment record, never from the inbound request.
	VerifyCharge(ctx context.Context, authority string, amountRial int64) (*VerifyResult, error)
	// InquireCharge reads back a charge's settlement state. It is for
	// manual reconciliation of ambiguous records only; the workflow never
	// calls it automatically.
	InquireCharge(ctx context.Context, authority string) (*VerifyResult, error)
}
