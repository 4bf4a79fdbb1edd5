package rider

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"

	"github.com/vendorlink/vendorlink/internal/dto"
	"github.com/vendorlink/vendorlink/internal/presentation/http/response"
	service "github.com/vendorlink/vendorlink/internal/service/rider"
	"github.com/vendorlink/vendorlink/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/vendorlink/vendorlink/transport/http/rider")

// Handler exposes the rider directory over HTTP.
type Handler struct {
	riders *service.Service
}

// NewHandler constructs a rider Handler.
func NewHandler(riders *service.Service) *Handler {
	return &Handler{riders: riders}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/riders")
	g.GET("", h.list)
	g.POST("", h.create)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "riders.list")
	defer span.End()

	riders, err := h.riders.List(ctx)
	if err != nil {
		return b.WithError(err).Build()
	}

	resp := make([]dto.RiderResponse, 0, len(riders))
	for _, rider := range riders {
		resp = append(resp, dto.FromRider(rider))
	}
	return b.WithData(resp).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.Validation("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "riders.create")
	defer span.End()

	rider, err := h.riders.Add(ctx, payload.Name, payload.Phone)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromRider(*rider)).Build()
}
