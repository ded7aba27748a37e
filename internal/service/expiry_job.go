package service

import (
	"context"
	"log/slog"
	"time"
)

// ExpiryJob periodically sweeps the registry for conditions past their
// deadline. The clock is injected so tests can drive time; the market core
// itself runs no timers.
type ExpiryJob struct {
	svc      *MarketService
	interval time.Duration
	clock    func() time.Time
	logger   *slog.Logger
}

// NewExpiryJob creates an ExpiryJob sweeping at the given interval.
func NewExpiryJob(svc *MarketService, interval time.Duration, clock func() time.Time, logger *slog.Logger) *ExpiryJob {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryJob{
		svc:      svc,
		interval: interval,
		clock:    clock,
		logger:   logger.With(slog.String("component", "expiry_job")),
	}
}

// Run sweeps on every tick until ctx is cancelled. One sweep runs
// immediately at startup to catch conditions that expired while the process
// was down.
func (j *ExpiryJob) Run(ctx context.Context) error {
	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *ExpiryJob) sweep(ctx context.Context) {
	expired := j.svc.Core().CheckExpiry(j.clock())
	if len(expired) == 0 {
		return
	}
	for _, id := range expired {
		j.logger.InfoContext(ctx, "condition expired",
			slog.String("condition", string(id)),
		)
	}
}
