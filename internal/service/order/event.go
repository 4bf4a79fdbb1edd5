package order

import (
	"time"

	"github.com/vendorlink/vendorlink/internal/entity"
)

// Event types emitted onto the status topic.
const (
	EventOrderRejected       = "order.rejected"
	EventOrderOutForDelivery = "order.out_for_delivery"
	EventOrderDelivered      = "order.delivered"
	EventRiderAssigned       = "order.rider_assigned"
)

// StatusChangedEvent is emitted after the platform confirms a transition.
// From is empty when the prior state was not cached locally.
type StatusChangedEvent struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"order_id"`
	From       entity.OrderStatus `json:"from,omitempty"`
	To         entity.OrderStatus `json:"to,omitempty"`
	RiderID    string             `json:"rider_id,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}
