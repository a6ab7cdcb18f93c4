package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"subscription-billing/internal/domain/model"
	"subscription-billing/internal/domain/ports/repository"
	"subscription-billing/internal/infra/metrics"
)

// ExpirySweeper periodically persists the 'expired' status on pending
// payments whose authority TTL has lapsed. Reads already derive expiry
// on the fly; the sweeper only keeps stored rows from lingering as
// pending forever. The CAS update makes it safe to run concurrently
// with live callbacks.
type ExpirySweeper struct {
	interval time.Duration
	batch    int
	payments repository.PaymentRepository
	log      *zerolog.Logger
}

func NewExpirySweeper(interval time.Duration, payments repository.PaymentRepository, logger *zerolog.Logger) *ExpirySweeper {
	swpLog := logger.With().Str("component", "ExpirySweeper").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpirySweeper{
		interval: interval,
		batch:    200,
		payments: payments,
		log:      &swpLog,
	}
}

func (w *ExpirySweeper) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting expiry sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping expiry sweeper")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.sweep(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("sweep error")
			}
			if n > 0 {
				metrics.AddPaymentsSweptExpired(n)
				w.log.Info().Int("count", n).Msg("stale pending payments expired")
			}
		}
	}
}

func (w *ExpirySweeper) sweep(ctx context.Context) (int, error) {
	stale, err := w.payments.ListPendingOlderThan(ctx, repository.NoTX, time.Now(), w.batch)
	if err != nil {
		return 0, err
	}
	var n int
	for _, p := range stale {
		ok, err := w.payments.UpdateStatusIfPending(ctx, repository.NoTX, p.ID, model.PaymentStatusExpired, nil, "", "", nil)
		if err != nil {
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("expire write failed")
			continue
		}
		if ok {
			n++
		}
	}
	return n, nil
}
