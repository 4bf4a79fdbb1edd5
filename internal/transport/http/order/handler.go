package order

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendorlink/vendorlink/internal/dto"
	"github.com/vendorlink/vendorlink/internal/entity"
	"github.com/vendorlink/vendorlink/internal/presentation/http/response"
	repo "github.com/vendorlink/vendorlink/internal/repository/order"
	"github.com/vendorlink/vendorlink/internal/service/assignment"
	service "github.com/vendorlink/vendorlink/internal/service/order"
	"github.com/vendorlink/vendorlink/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/vendorlink/vendorlink/transport/http/order")

// Handler exposes order reads and transition commands over HTTP.
type Handler struct {
	orders     *service.Service
	assignment *assignment.Service
	journal    *repo.Repository
}

// NewHandler constructs an order Handler.
func NewHandler(orders *service.Service, assign *assignment.Service, journal *repo.Repository) *Handler {
	return &Handler{orders: orders, assignment: assign, journal: journal}
}

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("", h.list)
	g.GET("/:id", h.getByID)
	g.GET("/:id/events", h.events)
	g.POST("/:id/reject", h.reject)
	g.POST("/:id/out-for-delivery", h.outForDelivery)
	g.POST("/:id/confirm-delivery", h.confirmDelivery)
	g.POST("/assign", h.assign)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	page := queryInt(c, "page")
	limit := queryInt(c, "limit")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	result, err := h.orders.List(ctx, page, limit)
	if err != nil {
		return b.WithError(err).Build()
	}

	resp := dto.OrderPageResponse{
		Total:      result.Total,
		Page:       result.Page,
		Limit:      result.Limit,
		TotalPages: result.TotalPages,
		Orders:     make([]dto.OrderResponse, 0, len(result.Orders)),
	}
	for i := range result.Orders {
		resp.Orders = append(resp.Orders, dto.FromOrder(&result.Orders[i]))
	}
	return b.WithData(resp).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	order, err := h.orders.Get(ctx, orderID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) events(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.events", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	events, err := h.journal.ListByOrder(ctx, orderID)
	if err != nil {
		return b.WithError(errorbank.Internal("failed to load order history", errorbank.WithCause(err))).Build()
	}

	resp := make([]dto.OrderEventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, dto.FromOrderEvent(event))
	}
	return b.WithData(resp).Build()
}

func (h *Handler) reject(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("id")

	var payload struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.Validation("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.reject", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	if err := h.orders.Reject(ctx, orderID, payload.Reason); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusAccepted).Build()
}

func (h *Handler) outForDelivery(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("id")

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.outForDelivery", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	if err := h.orders.MarkOutForDelivery(ctx, orderID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusAccepted).Build()
}

func (h *Handler) confirmDelivery(c echo.Context) error {
	b := response.New(c)
	orderID := c.Param("id")

	var payload struct {
		Method string `json:"method"`
		OTP    string `json:"otp"`
		Image  string `json:"image"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.Validation("invalid payload", errorbank.WithCause(err))).Build()
	}

	confirmation := service.ConfirmationPayload{
		Method: entity.ConfirmationMethod(strings.ToUpper(strings.TrimSpace(payload.Method))),
	}
	switch confirmation.Method {
	case entity.ConfirmOTP:
		confirmation.Value = payload.OTP
	case entity.ConfirmPhoto:
		confirmation.Value = payload.Image
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.confirmDelivery", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	if err := h.orders.ConfirmDelivery(ctx, orderID, confirmation); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusAccepted).Build()
}

func (h *Handler) assign(c echo.Context) error {
	b := response.New(c)

	var payload struct {
		OrderIDs []string `json:"orderIds"`
		RiderID  string   `json:"riderId"`
	}
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.Validation("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.assign", trace.WithAttributes(
		attribute.Int("orders", len(payload.OrderIDs)),
	))
	defer span.End()

	if err := h.assignment.Assign(ctx, payload.OrderIDs, payload.RiderID); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusAccepted).Build()
}

func queryInt(c echo.Context, name string) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
