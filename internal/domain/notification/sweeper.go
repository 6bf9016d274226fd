package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"notihub/internal/common"
)

// SweeperConfig holds configuration for the stale-Pending sweeper.
type SweeperConfig struct {
	// Interval is how often the sweeper scans the store.
	Interval time.Duration

	// StaleThreshold is how long a record may sit in Pending before the
	// sweeper considers the original send lost and retries it.
	StaleThreshold time.Duration

	// BatchSize is the maximum number of stale records retried per cycle.
	BatchSize int
}

// Sweeper periodically scans the store for notifications stuck in Pending
// and pushes each through the resend path. A record only stays Pending when
// a send crashed between creating the record and resolving its outcome, so
// long-Pending records are safe to retry.
type Sweeper struct {
	store   Store
	service *Service
	config  SweeperConfig
}

// NewSweeper creates a new stale-Pending sweeper.
func NewSweeper(store Store, service *Service, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = time.Hour
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &Sweeper{
		store:   store,
		service: service,
		config:  cfg,
	}
}

// Run starts the sweeper loop. It blocks until the context is cancelled.
// Should be called in a goroutine.
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("sweeper started",
		"interval", s.config.Interval,
		"stale_threshold", s.config.StaleThreshold,
		"batch_size", s.config.BatchSize,
	)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one cycle: find stale Pending records and resend them.
func (s *Sweeper) Sweep(ctx context.Context) {
	before := time.Now().UTC().Add(-s.config.StaleThreshold)

	stale, err := s.store.ListStalePending(ctx, before, s.config.BatchSize)
	if err != nil {
		slog.Error("sweeper: failed to list stale notifications", "error", err)
		return
	}

	if len(stale) == 0 {
		return // nothing stuck, the common case
	}

	slog.Warn("sweeper: found stale pending notifications", "count", len(stale))

	retried := 0
	for _, n := range stale {
		result, err := s.service.Resend(ctx, n.ID)
		if err != nil {
			// A concurrent resend may have resolved the record already.
			var precondition *common.FailedPreconditionError
			if errors.As(err, &precondition) {
				continue
			}
			slog.Error("sweeper: resend failed",
				"id", n.ID,
				"error", err,
			)
			continue
		}

		retried++
		slog.Info("sweeper: retried stale notification",
			"id", n.ID,
			"status", result.Status,
			"age", time.Since(n.CreatedAt).Round(time.Second),
		)
	}

	if retried > 0 {
		slog.Info("sweeper: sweep complete", "retried", retried, "total_stale", len(stale))
	}
}
