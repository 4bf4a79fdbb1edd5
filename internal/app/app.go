package app

import (
	"go.uber.org/fx"

	"github.com/vendorlink/vendorlink/internal/cache"
	"github.com/vendorlink/vendorlink/internal/config"
	"github.com/vendorlink/vendorlink/internal/database"
	"github.com/vendorlink/vendorlink/internal/gateway"
	"github.com/vendorlink/vendorlink/internal/logger"
	"github.com/vendorlink/vendorlink/internal/messaging"
	"github.com/vendorlink/vendorlink/internal/observability"
	repositoryorder "github.com/vendorlink/vendorlink/internal/repository/order"
	grpcserver "github.com/vendorlink/vendorlink/internal/server/grpc"
	httpserver "github.com/vendorlink/vendorlink/internal/server/http"
	serviceassignment "github.com/vendorlink/vendorlink/internal/service/assignment"
	serviceorder "github.com/vendorlink/vendorlink/internal/service/order"
	servicerider "github.com/vendorlink/vendorlink/internal/service/rider"
	transporthttp "github.com/vendorlink/vendorlink/internal/transport/http"
	"github.com/vendorlink/vendorlink/internal/worker"
	workerorder "github.com/vendorlink/vendorlink/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	gateway.Module,
	repositoryorder.Module,
	serviceorder.Module,
	servicerider.Module,
	serviceassignment.Module,
)

// HTTP wires the HTTP and gRPC transports on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background audit-journal processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring (HTTP only).
var Module = HTTP
