package repository

import (
	"context"

	"subscription-billing/internal/domain/model"
)

// PlanRepository is the read-only port for the plan catalog. Plan CRUD
// belongs to admin tooling outside this core.
type PlanRepository interface {
	FindByID(ctx context.Context, id string) (*model.Plan, error)
	ListActive(ctx context.Context) ([]*model.Plan, error)
}
