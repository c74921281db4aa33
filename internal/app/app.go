package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/foundry/internal/cache"
	"github.com/Additional-Code/foundry/internal/config"
	"github.com/Additional-Code/foundry/internal/database"
	"github.com/Additional-Code/foundry/internal/identifier"
	"github.com/Additional-Code/foundry/internal/logger"
	"github.com/Additional-Code/foundry/internal/messaging"
	"github.com/Additional-Code/foundry/internal/observability"
	repositoryorder "github.com/Additional-Code/foundry/internal/repository/order"
	repositoryreservation "github.com/Additional-Code/foundry/internal/repository/reservation"
	grpcserver "github.com/Additional-Code/foundry/internal/server/grpc"
	httpserver "github.com/Additional-Code/foundry/internal/server/http"
	serviceorder "github.com/Additional-Code/foundry/internal/service/order"
	"github.com/Additional-Code/foundry/internal/sweeper"
	transporthttp "github.com/Additional-Code/foundry/internal/transport/http"
	"github.com/Additional-Code/foundry/internal/worker"
	workerorder "github.com/Additional-Code/foundry/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	repositoryorder.Module,
	repositoryreservation.Module,
	identifier.Module,
	serviceorder.Module,
)

// HTTP wires the HTTP transport on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	transporthttp.Module,
	sweeper.Module,
)

// GRPC layers the gRPC server on top of the HTTP wiring for deployments that
// expose both surfaces.
var GRPC = fx.Options(
	HTTP,
	grpcserver.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
