// Package order persists the local transition audit journal. Rows arrive via
// the status topic; the journal is derivative of platform state and is read
// only for dispute reconstruction, never to decide a transition.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vendorlink/vendorlink/internal/database"
	"github.com/vendorlink/vendorlink/internal/entity"
)

var repoTracer = otel.Tracer("github.com/vendorlink/vendorlink/repository/order")

// Repository encapsulates read/write access for order events.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Append records one transition event using the write connection.
func (r *Repository) Append(ctx context.Context, event *entity.OrderEvent) error {
	if event == nil {
		return errors.New("nil event")
	}
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now().UTC()
	}
	ctx, span := repoTracer.Start(ctx, "OrderEventRepository.Append", trace.WithAttributes(
		attribute.String("order.id", event.OrderID),
		attribute.String("event.type", event.Type),
	))
	defer span.End()

	_, err := r.writer.NewInsert().Model(event).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// ListByOrder returns the journal for one order, oldest first, using the read
// replica when available.
func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]entity.OrderEvent, error) {
	ctx, span := repoTracer.Start(ctx, "OrderEventRepository.ListByOrder", trace.WithAttributes(
		attribute.String("order.id", orderID),
	))
	defer span.End()

	var events []entity.OrderEvent
	err := r.reader.NewSelect().Model(&events).
		Where("order_id = ?", orderID).
		Order("occurred_at ASC", "id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return events, nil
}
