// Package sweeper runs the periodic expired-reservation cleanup. Expiry is
// the cancellation mechanism for abandoned allocations: a crashed request
// cannot permanently use up a sequence number, because its reservation gets
// swept here once the TTL lapses.
package sweeper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/foundry/internal/config"
	"github.com/Additional-Code/foundry/internal/identifier"
)

// Sweeper schedules the allocator's expiry sweep.
type Sweeper struct {
	cron      *cron.Cron
	allocator *identifier.Allocator
	logger    *zap.Logger
	cfg       config.Allocator
}

// Module wires the sweeper into the Fx lifecycle.
var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(Run),
)

// New constructs a Sweeper from configuration.
func New(cfg config.Config, allocator *identifier.Allocator, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		cron:      cron.New(),
		allocator: allocator,
		logger:    logger,
		cfg:       cfg.Allocator,
	}
}

// Run registers the sweep job and ties the cron scheduler to the lifecycle.
func Run(lc fx.Lifecycle, s *Sweeper) error {
	if !s.cfg.SweepEnabled {
		s.logger.Info("reservation sweeper disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.SweepSchedule, s.sweep); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.logger.Info("reservation sweeper started", zap.String("schedule", s.cfg.SweepSchedule))
			s.cron.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			stopped := s.cron.Stop()
			select {
			case <-stopped.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
	return nil
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.allocator.SweepExpired(ctx, time.Now().UTC()); err != nil {
		// Sweep failures are never fatal; allocation cleans up
		// opportunistically anyway.
		s.logger.Warn("scheduled reservation sweep failed", zap.Error(err))
	}
}
