// Package http owns the Echo server lifecycle. The error handler is the edge
// of the error taxonomy: expired vendor credentials surface here as a 401
// with a challenge header so clients know to re-authenticate, everything
// else renders with its mapped status.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	echo "github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/vendorlink/vendorlink/internal/config"
	"github.com/vendorlink/vendorlink/internal/observability"
	"github.com/vendorlink/vendorlink/internal/presentation/http/response"
	"github.com/vendorlink/vendorlink/pkg/errorbank"
)

// Module exposes the HTTP server lifecycle to Fx.
var Module = fx.Module("http_server",
	fx.Provide(NewEcho),
	fx.Invoke(Run),
)

// NewEcho configures the Echo router with middleware, health, and metrics.
func NewEcho(cfg config.Config, obs *observability.Manager, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	if obs != nil && obs.TracingEnabled() {
		e.Use(otelecho.Middleware(cfg.Observability.ServiceName))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if obs != nil && obs.MetricsEnabled() && obs.MetricsHandler() != nil {
		e.GET(cfg.Observability.PrometheusPath, echo.WrapHandler(obs.MetricsHandler()))
	}

	return e
}

// errorHandler renders errors that escape the handlers. Echo's own HTTP
// errors pass through untouched; application errors render through the
// shared response shape.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var echoErr *echo.HTTPError
		if errors.As(err, &echoErr) {
			c.Echo().DefaultHTTPErrorHandler(err, c)
			return
		}

		appErr := errorbank.From(err)
		if appErr.Kind() == errorbank.KindAuthExpired {
			c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
		}
		if appErr.Kind() == errorbank.KindInternal {
			logger.Error("http request failed", zap.Error(err))
		}

		if renderErr := response.New(c).WithError(appErr).Build(); renderErr != nil {
			logger.Error("render error response", zap.Error(renderErr))
		}
	}
}

// Run starts the HTTP server and ties it to the Fx lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, e *echo.Echo, logger *zap.Logger) {
	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)

	server := &http.Server{
		Addr:    addr,
		Handler: e,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting HTTP server", zap.String("addr", addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping HTTP server")
			return server.Shutdown(ctx)
		},
	})
}
