package gateway

import "go.uber.org/fx"

// Module provides the platform client to Fx.
var Module = fx.Provide(
	fx.Annotate(NewHTTPClient, fx.As(new(Client))),
)
