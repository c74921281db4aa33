package order

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/foundry/internal/identifier"
)

// Module provides the order repository to Fx, both as itself and as the
// allocator's issued-sequence source.
var Module = fx.Provide(
	fx.Annotate(
		NewRepository,
		fx.As(fx.Self()),
		fx.As(new(identifier.SequenceSource)),
	),
)
