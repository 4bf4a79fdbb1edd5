package entity

import "time"

// OrderStatus is the delivery lifecycle state of an order.
type OrderStatus string

const (
	StatusPending        OrderStatus = "PENDING"
	StatusConfirmed      OrderStatus = "CONFIRMED"
	StatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	StatusDelivered      OrderStatus = "DELIVERED"
	StatusCancelled      OrderStatus = "CANCELLED"
)

// PaymentStatus tracks settlement independently of the delivery lifecycle.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// PaymentMode distinguishes cash-on-delivery from prepaid orders.
type PaymentMode string

const (
	PaymentModeCOD     PaymentMode = "COD"
	PaymentModePrepaid PaymentMode = "PREPAID"
)

// ConfirmationMethod selects how delivery is proven to the platform.
type ConfirmationMethod string

const (
	ConfirmOTP   ConfirmationMethod = "OTP"
	ConfirmPhoto ConfirmationMethod = "PHOTO"
)

// allowedTransitions encodes the vendor-observed order state flow.
// PENDING -> CONFIRMED happens upstream (vendor acceptance) but stays in the
// table so audit events reported by the platform validate cleanly.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status is a sink with no outgoing transitions.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// OrderItem is a single line of an order. Price is a decimal string as
// reported by the platform and is never parsed into a float.
type OrderItem struct {
	ID          string `json:"id"`
	ProductName string `json:"name"`
	Price       string `json:"price"`
	Quantity    int    `json:"quantity"`
}

// Order is the vendor's view of one order as reported by the platform.
// The platform remains the system of record: orders are never mutated
// locally, only refetched after a confirmed transition.
type Order struct {
	ID          string      `json:"id"`
	OrderNo     string      `json:"orderNo"`
	TotalAmount string      `json:"total_amount"`
	Status      OrderStatus `json:"status"`

	PaymentStatus PaymentStatus `json:"payment_status"`
	PaymentMode   PaymentMode   `json:"payment_mode"`

	DeliveryStatus     string  `json:"delivery_status"`
	AssignedRiderPhone *string `json:"assigned_rider_phone"`
	Rider              *Rider  `json:"rider,omitempty"`

	Items []OrderItem `json:"items"`

	// Address snapshot taken at checkout, not a live reference.
	Address string `json:"address"`
	Pincode string `json:"pincode"`
	City    string `json:"city"`
	State   string `json:"state"`

	CancelReason *string    `json:"cancelReason"`
	CancelledAt  *time.Time `json:"cancelledAt"`

	ConfirmationMethod ConfirmationMethod `json:"confirmation_method"`
	ConfirmationOTP    string             `json:"confirmation_otp,omitempty"`
	ConfirmationImage  string             `json:"confirmation_image,omitempty"`
}
