package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/Additional-Code/foundry/internal/transport/http/order"
	pipelinetransport "github.com/Additional-Code/foundry/internal/transport/http/pipeline"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	pipelinetransport.Module,
)
