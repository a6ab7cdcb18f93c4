package repository

import (
	"context"

	"subscription-billing/internal/domain/model"
)

// OfferRepository is the read-mostly port for promotional offers.
type OfferRepository interface {
	FindByID(ctx context.Context, id string) (*model.Offer, error)
	// IncrementUsage bumps the offer's usage counter after a settled charge.
	IncrementUsage(ctx context.Context, tx Tx, id string) error
}
