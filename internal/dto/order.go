package dto

import (
	"time"

	"github.com/vendorlink/vendorlink/internal/entity"
)

// OrderItemResponse is one order line as exposed via transport layers.
type OrderItemResponse struct {
	ID          string `json:"id"`
	ProductName string `json:"name"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID                 string              `json:"id"`
	OrderNo            string              `json:"order_no"`
	TotalAmount        string              `json:"total_amount"`
	Status             string              `json:"status"`
	PaymentStatus      string              `json:"payment_status"`
	PaymentMode        string              `json:"payment_mode"`
	DeliveryStatus     string              `json:"delivery_status"`
	AssignedRiderPhone *string             `json:"assigned_rider_phone,omitempty"`
	Rider              *RiderResponse      `json:"rider,omitempty"`
	Items              []OrderItemResponse `json:"items"`
	Address            string              `json:"address"`
	Pincode            string              `json:"pincode"`
	City               string              `json:"city"`
	State              string              `json:"state"`
	CancelReason       *string             `json:"cancel_reason,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
	ConfirmationMethod string              `json:"confirmation_method,omitempty"`
}

// OrderPageResponse wraps a page of orders with paging metadata.
type OrderPageResponse struct {
	Orders     []OrderResponse `json:"orders"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// OrderEventResponse is one audit-journal row.
type OrderEventResponse struct {
	ID         int64     `json:"id"`
	OrderID    string    `json:"order_id"`
	Type       string    `json:"type"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	RiderID    string    `json:"rider_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FromOrder maps a domain order onto its transport shape.
func FromOrder(order *entity.Order) OrderResponse {
	resp := OrderResponse{
		ID:                 order.ID,
		OrderNo:            order.OrderNo,
		TotalAmount:        order.TotalAmount,
		Status:             string(order.Status),
		PaymentStatus:      string(order.PaymentStatus),
		PaymentMode:        string(order.PaymentMode),
		DeliveryStatus:     order.DeliveryStatus,
		AssignedRiderPhone: order.AssignedRiderPhone,
		Address:            order.Address,
		Pincode:            order.Pincode,
		City:               order.City,
		State:              order.State,
		CancelReason:       order.CancelReason,
		CancelledAt:        order.CancelledAt,
		ConfirmationMethod: string(order.ConfirmationMethod),
	}
	if order.Rider != nil {
		rider := FromRider(*order.Rider)
		resp.Rider = &rider
	}
	resp.Items = make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:          item.ID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
		})
	}
	return resp
}

// FromOrderEvent maps an audit row onto its transport shape.
func FromOrderEvent(event entity.OrderEvent) OrderEventResponse {
	return OrderEventResponse{
		ID:         event.ID,
		OrderID:    event.OrderID,
		Type:       event.Type,
		FromStatus: event.FromStatus,
		ToStatus:   event.ToStatus,
		RiderID:    event.RiderID,
		Reason:     event.Reason,
		OccurredAt: event.OccurredAt,
	}
}
