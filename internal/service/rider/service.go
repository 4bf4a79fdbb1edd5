// Package rider maintains the vendor's rider directory: a cached listing plus
// on-the-fly creation so a new rider is immediately selectable for assignment.
package rider

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/vendorlink/vendorlink/internal/cache"
	"github.com/vendorlink/vendorlink/internal/config"
	"github.com/vendorlink/vendorlink/internal/entity"
	"github.com/vendorlink/vendorlink/internal/gateway"
	"github.com/vendorlink/vendorlink/internal/readmodel"
	"github.com/vendorlink/vendorlink/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/vendorlink/vendorlink/service/rider")

// Gateway is the slice of the platform client this service needs.
type Gateway interface {
	ListRiders(ctx context.Context) ([]entity.Rider, error)
	CreateRider(ctx context.Context, name, phone string) (*entity.Rider, error)
}

// Service owns the cached rider directory.
type Service struct {
	gateway  Gateway
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Gateway gateway.Client
	Cache   cache.Store
	Config  config.Config
	Logger  *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return New(p.Gateway, p.Cache, p.Config.Cache.DefaultTTL, p.Logger)
}

// New constructs a Service from explicit collaborators.
func New(gw Gateway, store cache.Store, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{gateway: gw, cache: store, cacheTTL: ttl, logger: logger}
}

// List returns the vendor's riders, consulting the cache first.
func (s *Service) List(ctx context.Context) ([]entity.Rider, error) {
	ctx, span := serviceTracer.Start(ctx, "RiderService.List")
	defer span.End()

	key := readmodel.RiderList()
	if cached, ok := s.readCache(ctx, key); ok {
		return cached, nil
	}

	riders, err := s.gateway.ListRiders(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		return nil, err
	}

	s.writeCache(ctx, key, riders)
	return riders, nil
}

// Add registers a new rider. The name is optional but must be at least two
// characters when given; the phone must be exactly ten digits. On success the
// cached directory is invalidated so the rider shows up on the next read.
func (s *Service) Add(ctx context.Context, name, phone string) (*entity.Rider, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName != "" && len(trimmedName) < 2 {
		return nil, errorbank.Validation("rider name must be at least 2 characters")
	}
	phone = strings.TrimSpace(phone)
	if len(phone) != 10 || !digitsOnly(phone) {
		return nil, errorbank.Validation("rider phone must be exactly 10 digits")
	}

	ctx, span := serviceTracer.Start(ctx, "RiderService.Add")
	defer span.End()

	rider, err := s.gateway.CreateRider(ctx, trimmedName, phone)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway error")
		return nil, err
	}

	s.invalidate(ctx)
	if s.logger != nil {
		s.logger.Info("rider created", zap.String("rider", rider.DisplayName()))
	}
	return rider, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	key := readmodel.RiderList()
	if err := s.cache.Delete(ctx, key.String()); err != nil && s.logger != nil {
		s.logger.Warn("rider cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) readCache(ctx context.Context, key readmodel.Key) ([]entity.Rider, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, key.String())
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) && s.logger != nil {
			s.logger.Warn("rider cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var riders []entity.Rider
	if err := json.Unmarshal(raw, &riders); err != nil {
		if s.logger != nil {
			s.logger.Warn("rider cache entry corrupt", zap.Error(err))
		}
		return nil, false
	}
	return riders, true
}

func (s *Service) writeCache(ctx context.Context, key readmodel.Key, riders []entity.Rider) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(riders)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key.String(), raw, s.cacheTTL); err != nil && s.logger != nil {
		s.logger.Warn("rider cache write failed", zap.Error(err))
	}
}
