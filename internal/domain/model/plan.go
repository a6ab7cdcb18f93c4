package model

import (
	"time"

	"subscription-billing/internal/domain"
)

// PlanType classifies a plan by its entitlement length.
type PlanType string

const (
	PlanTypeMonthly   PlanType = "monthly"
	PlanTypeQuarterly PlanType = "quarterly"
	PlanTypeYearly    PlanType = "yearly"
)

// Plan is a purchasable catalog entry. Plans are created by admin tooling
// and are read-only to the billing core.
type Plan struct {
	ID         string // UUID
	Name       string
	Type       PlanType
	PriceToman int64 // integer Toman, never fractional
	Active     bool
	CreatedAt  time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// EntitlementEnd returns the calendar end of one entitlement period
// starting at from. Month-length variation is respected.
func (p *Plan) EntitlementEnd(from time.Time) (time.Time, error) {
	switch p.Type {
	case PlanTypeMonthly:
		return from.AddDate(0, 1, 0), nil
	case PlanTypeQuarterly:
		return from.AddDate(0, 3, 0), nil
	case PlanTypeYearly:
		return from.AddDate(1, 0, 0), nil
	}
	return time.Time{}, domain.ErrInvalidArgument
}

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, planType PlanType, priceToman int64) (*Plan, error) {
	if id == "" || name == "" || priceToman <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	switch planType {
	case PlanTypeMonthly, PlanTypeQuarterly, PlanTypeYearly:
	default:
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:         id,
		Name:       name,
		Type:       planType,
		PriceToman: priceToman,
		Active:     true,
		CreatedAt:  time.Now(),
	}, nil
}
