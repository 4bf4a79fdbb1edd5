// Package gateway implements the client for the delivery platform's vendor
// API. The platform is the system of record for orders and riders; every
// state change in this service is a round trip through here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/vendorlink/vendorlink/internal/config"
	"github.com/vendorlink/vendorlink/internal/entity"
	"github.com/vendorlink/vendorlink/pkg/errorbank"
)

var gatewayTracer = otel.Tracer("github.com/vendorlink/vendorlink/gateway")

// ErrAuthExpired signals a 401 from the platform. The edge layer redirects to
// re-authentication; domain services must never see it as a remote failure.
var ErrAuthExpired = errors.New("vendor credentials expired")

// OrderPage is one page of the platform's order listing.
type OrderPage struct {
	Orders     []entity.Order `json:"orders"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
}

// Confirmation is the wire shape of the delivery confirmation call. Exactly
// one field is set; the caller validates before reaching the gateway.
type Confirmation struct {
	OTP   string `json:"otp,omitempty"`
	Image string `json:"image,omitempty"`
}

// Client is the full surface of the vendor API. Services depend on the narrow
// slices they need; this interface exists so one HTTP client satisfies all.
type Client interface {
	ListOrders(ctx context.Context, page, limit int) (*OrderPage, error)
	GetOrder(ctx context.Context, orderID string) (*entity.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) error
	MarkOutForDelivery(ctx context.Context, orderID string) error
	VerifyDelivery(ctx context.Context, orderID string, confirmation Confirmation) error
	AssignRiders(ctx context.Context, orderIDs []string, riderID string) error
	ListRiders(ctx context.Context) ([]entity.Rider, error)
	CreateRider(ctx context.Context, name, phone string) (*entity.Rider, error)
}

// HTTPClient talks to the platform over REST with bearer authentication.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewHTTPClient builds the platform client from configuration. The bearer
// token rides on a RoundTripper so call sites never handle credentials.
func NewHTTPClient(cfg config.Config, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: cfg.Gateway.BaseURL,
		http: &http.Client{
			Timeout:   cfg.Gateway.Timeout,
			Transport: newAuthTransport(cfg.Gateway.Token, http.DefaultTransport),
		},
		logger: logger,
	}
}

// ListOrders fetches one page of the vendor's orders.
func (c *HTTPClient) ListOrders(ctx context.Context, page, limit int) (*OrderPage, error) {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.ListOrders", trace.WithAttributes(
		attribute.Int("page", page), attribute.Int("limit", limit),
	))
	defer span.End()

	path := "/vendor/orders"
	if page > 0 || limit > 0 {
		path = fmt.Sprintf("/vendor/orders?page=%d&limit=%d", page, limit)
	}
	out := new(OrderPage)
	if err := c.do(ctx, span, http.MethodGet, path, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder fetches a single order by ID.
func (c *HTTPClient) GetOrder(ctx context.Context, orderID string) (*entity.Order, error) {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.GetOrder", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	out := new(entity.Order)
	if err := c.do(ctx, span, http.MethodGet, "/vendor/orders/"+orderID, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOrder asks the platform to cancel an order with the given reason.
func (c *HTTPClient) CancelOrder(ctx context.Context, orderID, reason string) error {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.CancelOrder", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	body := struct {
		CancelReason string `json:"cancelReason"`
	}{CancelReason: reason}
	return c.do(ctx, span, http.MethodPost, "/vendor/orders/"+orderID+"/cancel", body, nil)
}

// MarkOutForDelivery moves a confirmed order into delivery.
func (c *HTTPClient) MarkOutForDelivery(ctx context.Context, orderID string) error {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.MarkOutForDelivery", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	return c.do(ctx, span, http.MethodPost, "/vendor/orders/"+orderID+"/out-for-delivery", nil, nil)
}

// VerifyDelivery submits delivery evidence; the platform judges correctness.
func (c *HTTPClient) VerifyDelivery(ctx context.Context, orderID string, confirmation Confirmation) error {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.VerifyDelivery", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	return c.do(ctx, span, http.MethodPost, "/vendor/orders/"+orderID+"/verify-delivery-otp", confirmation, nil)
}

// AssignRiders assigns one rider to a batch of orders in a single call. The
// platform owns per-order atomicity within the batch.
func (c *HTTPClient) AssignRiders(ctx context.Context, orderIDs []string, riderID string) error {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.AssignRiders", trace.WithAttributes(
		attribute.Int("orders", len(orderIDs)), attribute.String("rider.id", riderID),
	))
	defer span.End()

	body := struct {
		OrderIDs []string `json:"orderIds"`
		RiderID  string   `json:"riderId"`
	}{OrderIDs: orderIDs, RiderID: riderID}
	return c.do(ctx, span, http.MethodPost, "/vendor/orders/assign", body, nil)
}

// ListRiders fetches the vendor's rider directory.
func (c *HTTPClient) ListRiders(ctx context.Context) ([]entity.Rider, error) {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.ListRiders")
	defer span.End()

	var out []entity.Rider
	if err := c.do(ctx, span, http.MethodGet, "/riders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRider registers a new rider and returns the platform's copy.
func (c *HTTPClient) CreateRider(ctx context.Context, name, phone string) (*entity.Rider, error) {
	ctx, span := gatewayTracer.Start(ctx, "Gateway.CreateRider")
	defer span.End()

	body := struct {
		Name  string `json:"name"`
		Phone string `json:"phone"`
	}{Name: name, Phone: phone}
	out := new(entity.Rider)
	if err := c.do(ctx, span, http.MethodPost, "/riders", body, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) do(ctx context.Context, span trace.Span, method, path string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return errorbank.Internal("encode request", errorbank.WithCause(err))
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errorbank.Internal("build request", errorbank.WithCause(err))
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return errorbank.Remote("could not reach the vendor platform", errorbank.WithCause(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		span.SetStatus(codes.Error, "auth expired")
		return errorbank.AuthExpired("vendor session expired", errorbank.WithCause(ErrAuthExpired))
	}

	if resp.StatusCode >= 400 {
		msg := extractMessage(resp.Body)
		span.SetStatus(codes.Error, fmt.Sprintf("http %d", resp.StatusCode))
		if c.logger != nil {
			c.logger.Warn("platform rejected request",
				zap.String("method", method),
				zap.String("path", path),
				zap.Int("status", resp.StatusCode),
				zap.String("message", msg),
			)
		}
		return errorbank.Remote(msg, errorbank.WithDetail("status", resp.StatusCode))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		return errorbank.Remote("malformed platform response", errorbank.WithCause(err))
	}
	return nil
}

// extractMessage pulls a human-readable message out of an error body,
// falling back to a generic message when none is present.
func extractMessage(body io.Reader) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(body, 1<<16)).Decode(&payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return "the vendor platform rejected the request"
}
