package seeder

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/vendorlink/vendorlink/internal/database"
	"github.com/vendorlink/vendorlink/internal/entity"
)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	return &Seeder{db: conns.Writer, logger: logger}
}

// OrderEvents seeds an example transition history for one order.
func (s *Seeder) OrderEvents(ctx context.Context) error {
	now := time.Now().UTC()
	samples := []entity.OrderEvent{
		{
			OrderID:    "ord_seed_1",
			Type:       "order.out_for_delivery",
			FromStatus: string(entity.StatusConfirmed),
			ToStatus:   string(entity.StatusOutForDelivery),
			OccurredAt: now.Add(-2 * time.Hour),
			RecordedAt: now,
		},
		{
			OrderID:    "ord_seed_1",
			Type:       "order.rider_assigned",
			RiderID:    "rider_seed_1",
			OccurredAt: now.Add(-2 * time.Hour),
			RecordedAt: now,
		},
		{
			OrderID:    "ord_seed_1",
			Type:       "order.delivered",
			FromStatus: string(entity.StatusOutForDelivery),
			ToStatus:   string(entity.StatusDelivered),
			OccurredAt: now.Add(-time.Hour),
			RecordedAt: now,
		},
	}

	for _, sample := range samples {
		event := sample
		if _, err := s.db.NewInsert().Model(&event).Exec(ctx); err != nil {
			return err
		}
	}

	if s.logger != nil {
		s.logger.Info("seeded order events", zap.Int("count", len(samples)))
	}
	return nil
}
