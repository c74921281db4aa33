package identifier

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/foundry/internal/config"
)

// Module provides the allocator to Fx. The sequence source and reservation
// store are bound by the repository modules.
var Module = fx.Provide(New)

// New builds an Allocator from configuration.
func New(orders SequenceSource, reservations ReservationStore, cfg config.Config, logger *zap.Logger) *Allocator {
	return NewAllocator(orders, reservations, logger,
		WithTTL(cfg.Allocator.ReservationTTL),
		WithMaxAttempts(cfg.Allocator.MaxAttempts),
	)
}
