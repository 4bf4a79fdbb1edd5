// Package assignment coordinates putting a rider on one or more orders. The
// whole batch goes to the platform in a single call; the platform owns
// per-order atomicity, this service only validates up front and keeps the
// cached order view honest afterwards.
package assignment

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/vendorlink/vendorlink/internal/cache"
	"github.com/vendorlink/vendorlink/internal/config"
	"github.com/vendorlink/vendorlink/internal/gateway"
	"github.com/vendorlink/vendorlink/internal/messaging"
	"github.com/vendorlink/vendorlink/internal/readmodel"
	ordersvc "github.com/vendorlink/vendorlink/internal/service/order"
	"github.com/vendorlink/vendorlink/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/vendorlink/vendorlink/service/assignment")

// Gateway is the slice of the platform client this service needs.
type Gateway interface {
	AssignRiders(ctx context.Context, orderIDs []string, riderID string) error
}

// Service assigns riders to orders in bulk.
type Service struct {
	gateway   Gateway
	cache     cache.Store
	logger    *zap.Logger
	publisher messaging.Client
	publish   bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Gateway   gateway.Client
	Cache     cache.Store
	Config    config.Config
	Logger    *zap.Logger
	Publisher messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Gateway, p.Cache, p.Logger, p.Publisher, p.Config.Messaging.Enabled)
}

// New constructs a Service from explicit collaborators.
func New(gw Gateway, store cache.Store, logger *zap.Logger, publisher messaging.Client, publish bool) *Service {
	return &Service{gateway: gw, cache: store, logger: logger, publisher: publisher, publish: publish}
}

// Assign puts riderID on every order in orderIDs with one platform call.
// Blank entries are dropped; an empty batch or a blank rider fails before any
// network traffic. On success the order list and each affected detail entry
// are invalidated so the new rider shows on the next read. No retries.
func (s *Service) Assign(ctx context.Context, orderIDs []string, riderID string) error {
	ids := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return errorbank.Validation("at least one order must be selected")
	}
	riderID = strings.TrimSpace(riderID)
	if riderID == "" {
		return errorbank.Validation("a rider must be selected")
	}

	ctx, span := serviceTracer.Start(ctx, "AssignmentService.Assign", trace.WithAttributes(
		attribute.Int("orders", len(ids)), attribute.String("rider.id", riderID),
	))
	defer span.End()

	if err := s.gateway.AssignRiders(ctx, ids, riderID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		return err
	}

	s.invalidate(ctx, ids)
	s.publishAssigned(ctx, ids, riderID)

	if s.logger != nil {
		s.logger.Info("rider assigned", zap.String("rider_id", riderID), zap.Int("orders", len(ids)))
	}
	return nil
}

// AssignSelected assigns the rider to the current selection and clears the
// selection only when the platform accepted the batch.
func (s *Service) AssignSelected(ctx context.Context, sel *Selection, riderID string) error {
	if sel == nil || sel.Len() == 0 {
		return errorbank.Validation("at least one order must be selected")
	}
	if err := s.Assign(ctx, sel.IDs(), riderID); err != nil {
		return err
	}
	sel.Clear()
	return nil
}

func (s *Service) invalidate(ctx context.Context, orderIDs []string) {
	if s.cache == nil {
		return
	}
	s.drop(ctx, readmodel.OrderList())
	for _, id := range orderIDs {
		s.drop(ctx, readmodel.OrderDetail(id))
	}
}

func (s *Service) drop(ctx context.Context, key readmodel.Key) {
	if err := s.cache.Delete(ctx, key.String()); err != nil && s.logger != nil {
		s.logger.Warn("order cache invalidation failed", zap.String("key", key.String()), zap.Error(err))
	}
}

func (s *Service) publishAssigned(ctx context.Context, orderIDs []string, riderID string) {
	if !s.publish || s.publisher == nil {
		return
	}
	now := time.Now().UTC()
	for _, orderID := range orderIDs {
		event := ordersvc.StatusChangedEvent{
			Type:       ordersvc.EventRiderAssigned,
			OrderID:    orderID,
			RiderID:    riderID,
			OccurredAt: now,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if err := s.publisher.Publish(ctx, []byte("order-"+orderID), payload); err != nil && s.logger != nil {
			s.logger.Error("publish rider assigned", zap.Error(err))
		}
	}
}
