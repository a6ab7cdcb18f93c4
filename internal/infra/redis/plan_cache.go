package redis

import (
	"context"
	"encoding/json"
	"time"

	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/repository"
)

var _ repository.PlanRepository = (*PlanCache)(nil)

const (
	planKeyPrefix  = "plan:"
	planActiveKey  = "plans:active"
	defaultPlanTTL = 10 * time.Minute
)

// PlanCache is a read-through cache in front of the Postgres plan
// catalog. Plans change rarely and a short TTL keeps staleness bounded;
// there is no explicit invalidation.
type PlanCache struct {
	inner repository.PlanRepository
	cli   *Client
	ttl   time.Duration
}

func NewPlanCache(inner repository.PlanRepository, cli *Client, ttl time.Duration) *PlanCache {
	if ttl <= 0 {
		ttl = defaultPlanTTL
	}
	return &PlanCache{inner: inner, cli: cli, ttl: ttl}
}

func (c *PlanCache) FindByID(ctx context.Context, id string) (*model.Plan, error) {
	key := planKeyPrefix + id
	if raw, err := c.cli.Get(ctx, key); err == nil {
		p := &model.Plan{}
		if json.Unmarshal([]byte(raw), p) == nil {
			return p, nil
		}
	}
	p, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(p); err == nil {
		_ = c.cli.Set(ctx, key, raw, c.ttl)
	}
	return p, nil
}

func (c *PlanCache) ListActive(ctx context.Context) ([]*model.Plan, error) {
	if raw, err := c.cli.Get(ctx, planActiveKey); err == nil {
		var out []*model.Plan
		if json.Unmarshal([]byte(raw), &out) == nil {
			return out, nil
		}
	}
	out, err := c.inner.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(out); err == nil {
		_ = c.cli.Set(ctx, planActiveKey, raw, c.ttl)
	}
	return out, nil
}
