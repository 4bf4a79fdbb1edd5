package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// OrderEvent is one row of the local transition audit journal. The journal is
// derivative of the platform's state, recorded for dispute reconstruction; it
// is never consulted to decide a transition.
type OrderEvent struct {
	bun.BaseModel `bun:"table:order_events"`

	ID         int64     `bun:",pk,autoincrement"`
	OrderID    string    `bun:"order_id,notnull"`
	Type       string    `bun:"type,notnull"`
	FromStatus string    `bun:"from_status"`
	ToStatus   string    `bun:"to_status"`
	RiderID    string    `bun:"rider_id"`
	Reason     string    `bun:"reason"`
	OccurredAt time.Time `bun:"occurred_at,notnull"`
	RecordedAt time.Time `bun:"recorded_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}
