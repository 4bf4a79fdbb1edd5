// Package order implements the order read model and the transition commands
// a vendor can issue against it. Commands never mutate an order locally:
// each one is validated, executed against the platform, and on success the
// cached view is invalidated so the next read refetches authoritative state.
package order

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/vendorlink/vendorlink/internal/cache"
	"github.com/vendorlink/vendorlink/internal/config"
	"github.com/vendorlink/vendorlink/internal/entity"
	"github.com/vendorlink/vendorlink/internal/gateway"
	"github.com/vendorlink/vendorlink/internal/messaging"
	"github.com/vendorlink/vendorlink/internal/readmodel"
	"github.com/vendorlink/vendorlink/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/vendorlink/vendorlink/service/order")

// Gateway is the slice of the platform client this service needs.
type Gateway interface {
	ListOrders(ctx context.Context, page, limit int) (*gateway.OrderPage, error)
	GetOrder(ctx context.Context, orderID string) (*entity.Order, error)
	CancelOrder(ctx context.Context, orderID, reason string) error
	MarkOutForDelivery(ctx context.Context, orderID string) error
	VerifyDelivery(ctx context.Context, orderID string, confirmation gateway.Confirmation) error
}

// ConfirmationPayload is the tagged delivery-confirmation input. Method picks
// the variant; Value carries the OTP code or the image reference.
type ConfirmationPayload struct {
	Method entity.ConfirmationMethod
	Value  string
}

// Service owns the cached order view and every state-changing command.
type Service struct {
	gateway   Gateway
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	publish   bool

	mu       sync.Mutex
	inflight map[string]struct{}
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
	return New(p.Gateway, p.Cache, p.Config.Cache.DefaultTTL, p.Logger, p.Publisher, p.Config.Messaging.Enabled)
}

// New constructs a Service from explicit collaborators.
func New(gw Gateway, store cache.Store, ttl time.Duration, logger *zap.Logger, publisher messaging.Client, publish bool) *Service {
	return &Service{
		gateway:   gw,
		cache:     store,
		cacheTTL:  ttl,
		logger:    logger,
		publisher: publisher,
		publish:   publish,
		inflight:  make(map[string]struct{}),
	}
}

// List returns one page of the vendor's orders, consulting the cache first.
func (s *Service) List(ctx context.Context, page, limit int) (*gateway.OrderPage, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.List", trace.WithAttributes(
		attribute.Int("page", page), attribute.Int("limit", limit),
	))
	defer span.End()

	key := readmodel.OrderList()
	if page <= 1 && limit <= 0 {
		var cached gateway.OrderPage
		if ok := s.readCache(ctx, key, &cached); ok {
			return &cached, nil
		}
	}

	result, err := s.gateway.ListOrders(ctx, page, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		return nil, err
	}

	if page <= 1 && limit <= 0 {
		s.writeCache(ctx, key, result)
	}
	return result, nil
}

// Get returns a single order, consulting the cache first.
func (s *Service) Get(ctx context.Context, orderID string) (*entity.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, errorbank.Validation("order id is required")
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	key := readmodel.OrderDetail(orderID)
	var cached entity.Order
	if ok := s.readCache(ctx, key, &cached); ok {
		return &cached, nil
	}

	order, err := s.gateway.GetOrder(ctx, orderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		return nil, err
	}

	s.writeCache(ctx, key, order)
	return order, nil
}

// Reject cancels an order with a vendor-supplied reason. The reason must be
// non-empty and the order, when its state is known, must not be terminal.
func (s *Service) Reject(ctx context.Context, orderID, reason string) error {
	if strings.TrimSpace(orderID) == "" {
		return errorbank.Validation("order id is required")
	}
	if strings.TrimSpace(reason) == "" {
		return errorbank.Validation("a rejection reason is required")
	}

	return s.transition(ctx, "OrderService.Reject", orderID, func(ctx context.Context, known *entity.Order) (string, error) {
		if known != nil {
			if known.Status.Terminal() {
				return "", errorbank.Validation("order is already " + strings.ToLower(string(known.Status)))
			}
			if !entity.CanTransition(known.Status, entity.StatusCancelled) {
				return "", errorbank.Validation("order can no longer be rejected")
			}
		}
		if err := s.gateway.CancelOrder(ctx, orderID, reason); err != nil {
			return "", err
		}
		return EventOrderRejected, nil
	}, func(ev *StatusChangedEvent) {
		ev.To = entity.StatusCancelled
		ev.Reason = reason
	})
}

// MarkOutForDelivery moves a confirmed order into delivery.
func (s *Service) MarkOutForDelivery(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return errorbank.Validation("order id is required")
	}

	return s.transition(ctx, "OrderService.MarkOutForDelivery", orderID, func(ctx context.Context, known *entity.Order) (string, error) {
		if known != nil && !entity.CanTransition(known.Status, entity.StatusOutForDelivery) {
			if known.Status.Terminal() {
				return "", errorbank.Validation("order is already " + strings.ToLower(string(known.Status)))
			}
			return "", errorbank.Validation("only confirmed orders can go out for delivery")
		}
		if err := s.gateway.MarkOutForDelivery(ctx, orderID); err != nil {
			return "", err
		}
		return EventOrderOutForDelivery, nil
	}, func(ev *StatusChangedEvent) {
		ev.To = entity.StatusOutForDelivery
	})
}

// ConfirmDelivery submits delivery evidence. An OTP confirmation requires
// exactly four digits; a photo confirmation requires an image reference.
// Correctness of the evidence is judged by the platform.
func (s *Service) ConfirmDelivery(ctx context.Context, orderID string, payload ConfirmationPayload) error {
	if strings.TrimSpace(orderID) == "" {
		return errorbank.Validation("order id is required")
	}

	confirmation, err := payload.wire()
	if err != nil {
		return err
	}

	return s.transition(ctx, "OrderService.ConfirmDelivery", orderID, func(ctx context.Context, known *entity.Order) (string, error) {
		if known != nil && !entity.CanTransition(known.Status, entity.StatusDelivered) {
			if known.Status.Terminal() {
				return "", errorbank.Validation("order is already " + strings.ToLower(string(known.Status)))
			}
			return "", errorbank.Validation("order is not out for delivery")
		}
		if err := s.gateway.VerifyDelivery(ctx, orderID, confirmation); err != nil {
			return "", err
		}
		return EventOrderDelivered, nil
	}, func(ev *StatusChangedEvent) {
		ev.To = entity.StatusDelivered
	})
}

// wire validates the payload and converts it to the platform's shape.
func (p ConfirmationPayload) wire() (gateway.Confirmation, error) {
	switch p.Method {
	case entity.ConfirmOTP:
		code := strings.TrimSpace(p.Value)
		if len(code) != 4 || !digitsOnly(code) {
			return gateway.Confirmation{}, errorbank.Validation("a 4-digit delivery code is required")
		}
		return gateway.Confirmation{OTP: code}, nil
	case entity.ConfirmPhoto:
		if strings.TrimSpace(p.Value) == "" {
			return gateway.Confirmation{}, errorbank.Validation("a delivery photo is required")
		}
		return gateway.Confirmation{Image: p.Value}, nil
	default:
		return gateway.Confirmation{}, errorbank.Validation("unknown confirmation method")
	}
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// transition runs one state-changing command under the per-order lock:
// peek cached state for local guards, call the platform, and on success
// invalidate the cached view and publish a status event.
func (s *Service) transition(ctx context.Context, name, orderID string, run func(context.Context, *entity.Order) (string, error), fill func(*StatusChangedEvent)) error {
	ctx, span := serviceTracer.Start(ctx, name, trace.WithAttributes(attribute.String("order.id", orderID)))
	defer span.End()

	if !s.lock(orderID) {
		span.SetStatus(codes.Error, "command in flight")
		return errorbank.Conflict("another update for this order is still in progress")
	}
	defer s.unlock(orderID)

	known := s.cachedOrder(ctx, orderID)

	eventType, err := run(ctx, known)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "command failed")
		return err
	}

	s.Invalidate(ctx, orderID)

	event := StatusChangedEvent{
		Type:       eventType,
		OrderID:    orderID,
		OccurredAt: time.Now().UTC(),
	}
	if known != nil {
		event.From = known.Status
	}
	fill(&event)
	s.publishEvent(ctx, event)

	return nil
}

// Invalidate drops the cached list and the order's cached detail. Called only
// from a mutation's success path; the cache must never be touched on failure.
func (s *Service) Invalidate(ctx context.Context, orderID string) {
	s.dropCache(ctx, readmodel.OrderList())
	if orderID != "" {
		s.dropCache(ctx, readmodel.OrderDetail(orderID))
	}
}

func (s *Service) lock(orderID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[orderID]; busy {
		return false
	}
	s.inflight[orderID] = struct{}{}
	return true
}

func (s *Service) unlock(orderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, orderID)
}

// cachedOrder peeks the cached detail without touching the network. A miss
// returns nil: local guards only apply when the state is actually known.
func (s *Service) cachedOrder(ctx context.Context, orderID string) *entity.Order {
	var order entity.Order
	if ok := s.readCache(ctx, readmodel.OrderDetail(orderID), &order); !ok {
		return nil
	}
	return &order
}

func (s *Service) readCache(ctx context.Context, key readmodel.Key, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, err := s.cache.Get(ctx, key.String())
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && s.logger != nil {
			s.logger.Warn("order cache read failed", zap.String("key", key.String()), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if s.logger != nil {
			s.logger.Warn("order cache entry corrupt", zap.String("key", key.String()), zap.Error(err))
		}
		return false
	}
	return true
}

func (s *Service) writeCache(ctx context.Context, key readmodel.Key, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("order cache encode failed", zap.String("key", key.String()), zap.Error(err))
		}
		return
	}
	if err := s.cache.Set(ctx, key.String(), raw, s.cacheTTL); err != nil && s.logger != nil {
		s.logger.Warn("order cache write failed", zap.String("key", key.String()), zap.Error(err))
	}
}

func (s *Service) dropCache(ctx context.Context, key readmodel.Key) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, key.String()); err != nil && s.logger != nil {
		s.logger.Warn("order cache invalidation failed", zap.String("key", key.String()), zap.Error(err))
	}
}

func (s *Service) publishEvent(ctx context.Context, event StatusChangedEvent) {
	if !s.publish || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("marshal status event", zap.Error(err))
		}
		return
	}
	if err := s.publisher.Publish(ctx, []byte("order-"+event.OrderID), payload); err != nil && s.logger != nil {
		s.logger.Error("publish status event", zap.Error(err))
	}
}
