package reservation

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/foundry/internal/identifier"
)

// Module provides the reservation repository to Fx, both as itself and as
// the allocator's reservation store.
var Module = fx.Provide(
	fx.Annotate(
		NewRepository,
		fx.As(fx.Self()),
		fx.As(new(identifier.ReservationStore)),
	),
)
