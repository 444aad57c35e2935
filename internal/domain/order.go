package domain

import "time"

// OrderStatus is the fulfillment state of an order. This core only ever
// creates orders as pending (subscription generator) and moves them to
// delivered (webhook pipeline); everything in between belongs to the
// fulfillment flows outside this repository.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderDelivered OrderStatus = "delivered"
)

// PaymentPendingCharge marks subscription-generated orders that the billing
// path still needs to charge.
const PaymentPendingCharge = "pending_charge"

// Order is a customer order. GuestEmail is preferred over the linked
// profile's email when notifying.
type Order struct {
	ID             string      `json:"id"`
	OrderNumber    string      `json:"order_number"`
	Status         OrderStatus `json:"status"`
	PaymentStatus  string      `json:"payment_status"`
	UserID         string      `json:"user_id,omitempty"`
	GuestEmail     string      `json:"guest_email,omitempty"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	TrackingURL    string      `json:"tracking_url,omitempty"`
	Carrier        string      `json:"carrier,omitempty"`
	Total          float64     `json:"total"`
	SubscriptionID string      `json:"subscription_id,omitempty"`
	DeliveredAt    *time.Time  `json:"delivered_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

// OrderItem is one product line on an order.
type OrderItem struct {
	ID          string  `json:"id"`
	OrderID     string  `json:"order_id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// CustomerProfile is the account profile linked to an order's user.
type CustomerProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}
