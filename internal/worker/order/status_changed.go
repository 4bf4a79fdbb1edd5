package order

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/vendorlink/vendorlink/internal/config"
	"github.com/vendorlink/vendorlink/internal/entity"
	"github.com/vendorlink/vendorlink/internal/messaging"
	repo "github.com/vendorlink/vendorlink/internal/repository/order"
	ordersvc "github.com/vendorlink/vendorlink/internal/service/order"
	"github.com/vendorlink/vendorlink/internal/worker"
)

var workerTracer = otel.Tracer("github.com/vendorlink/vendorlink/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewStatusChangedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// NewStatusChangedHandler persists every confirmed transition into the audit
// journal. Failures are returned so the message is redelivered.
func NewStatusChangedHandler(logger *zap.Logger, cfg config.Config, repository *repo.Repository) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.statusChanged", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()

		var event ordersvc.StatusChangedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode status event", zap.Error(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}

		row := &entity.OrderEvent{
			OrderID:    event.OrderID,
			Type:       event.Type,
			FromStatus: string(event.From),
			ToStatus:   string(event.To),
			RiderID:    event.RiderID,
			Reason:     event.Reason,
			OccurredAt: event.OccurredAt,
		}
		if err := repository.Append(ctx, row); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "append failed")
			return err
		}

		logger.Info("transition recorded",
			zap.String("order_id", event.OrderID),
			zap.String("type", event.Type),
			zap.String("to", string(event.To)),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Kafka.Topic,
		Handler: handler,
	}
}
