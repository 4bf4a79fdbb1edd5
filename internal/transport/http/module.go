package http

import (
	"go.uber.org/fx"

	ordertransport "github.com/vendorlink/vendorlink/internal/transport/http/order"
	ridertransport "github.com/vendorlink/vendorlink/internal/transport/http/rider"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	ordertransport.Module,
	ridertransport.Module,
)
