package usecase

import (
	"time"

	"subscription-billing/internal/domain/model"
)

// ResolvePrice computes the final charge amount in Toman for a plan with
// an optional promotional offer applied.
//
// The effective discount is selected by an explicit priority: a per-plan
// override beats the percentage field, which beats the fixed amount. An
// offer that is nil, inactive, outside its window, or inapplicable to the
// plan leaves the base price untouched. The gateway minimum is enforced
// by the caller before a charge is opened, not here.
func ResolvePrice(plan *model.Plan, offer *model.Offer, now time.Time) int64 {
	if plan == nil {
		return 0
	}
	if offer == nil || !offer.AppliesTo(plan.ID, now) {
		return plan.PriceToman
	}

	if price, ok := offer.OverrideFor(plan.ID); ok {
		return price
	}

	switch offer.Kind {
	case model.OfferKindPercentage:
		return discountPercent(plan.PriceToman, offer.Percentage)
	case model.OfferKindFixedAmount:
		price := plan.PriceToman - offer.AmountToman
		if price < 0 {
			return 0
		}
		return price
	}
	return plan.PriceToman
}

// discountPercent applies an integer percentage discount rounding half up.
// Fractional currency units are never produced.
func discountPercent(price, pct int64) int64 {
	if pct <= 0 {
		return price
	}
	if pct >= 100 {
		return 0
	}
	return (price*(100-pct) + 50) / 100
}
