package model

import "time"

// OfferKind is the discount mode of a promotional offer.
type OfferKind string

const (
	OfferKindPercentage  OfferKind = "percentage"
	OfferKindFixedAmount OfferKind = "fixed_amount"
	OfferKindTrial       OfferKind = "trial"
	OfferKindFeature     OfferKind = "feature"
)

// PlanOverride pins an explicit discounted price for one plan, taking
// precedence over the offer's percentage/fixed fields.
type PlanOverride struct {
	PlanID          string
	DiscountedToman int64
}

// Offer is a promotional rule. At most one effective discount value is
// selected per (plan, offer) pair: override > percentage > fixed > none.
type Offer struct {
	ID            string // UUID
	Code          string
	Kind          OfferKind
	Percentage    int64 // 0..100, used when Kind == percentage
	AmountToman   int64 // used when Kind == fixed_amount
	Overrides     []PlanOverride
	AllPlans      bool
	PlanIDs       []string // applicable plans when AllPlans is false
	StartsAt      *time.Time
	EndsAt        *time.Time
	Active        bool
	UsageCount    int64
	MaxUsageCount int64 // 0 = unlimited
	CreatedAt     time.Time
}

func (o *Offer) IsZero() bool { return o == nil || o.ID == "" }

// AppliesTo reports whether the offer can discount the given plan at now.
func (o *Offer) AppliesTo(planID string, now time.Time) bool {
	if o.IsZero() || !o.Active {
		return false
	}
	if o.StartsAt != nil && now.Before(*o.StartsAt) {
		return false
	}
	if o.EndsAt != nil && now.After(*o.EndsAt) {
		return false
	}
	if o.MaxUsageCount > 0 && o.UsageCount >= o.MaxUsageCount {
		return false
	}
	if o.AllPlans {
		return true
	}
	for _, id := range o.PlanIDs {
		if id == planID {
			return true
		}
	}
	// A per-plan override also makes the offer applicable to that plan.
	for _, ov := range o.Overrides {
		if ov.PlanID == planID {
			return true
		}
	}
	return false
}

// OverrideFor returns the explicit discounted price for planID, if any.
func (o *Offer) OverrideFor(planID string) (int64, bool) {
	for _, ov := range o.Overrides {
		if ov.PlanID == planID {
			return ov.DiscountedToman, true
		}
	}
	return 0, false
}
