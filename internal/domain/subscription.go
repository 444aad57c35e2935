package domain

import "time"

// SubscriptionStatus is the lifecycle state of a recurring subscription.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Frequency is how often a subscription materializes an order.
type Frequency string

const (
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// Next returns the schedule date that follows from, per the frequency.
// Unrecognized frequencies advance by two weeks so a bad row can never
// generate an order on every run.
func (f Frequency) Next(from time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyBiweekly:
		return from.AddDate(0, 0, 14)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 14)
	}
}

// Subscription is a recurring standing order. NextOrderDate only ever moves
// forward, and only after the order for the current due date has been
// durably created.
type Subscription struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Status        SubscriptionStatus `json:"status"`
	Frequency     Frequency          `json:"frequency"`
	NextOrderDate time.Time          `json:"next_order_date"`
	UserID        string             `json:"user_id"`
	CreatedAt     time.Time          `json:"created_at"`
}

// SubscriptionItem is one product line on a subscription, joined with the
// product pricing fields the generator needs.
type SubscriptionItem struct {
	ID             string   `json:"id"`
	SubscriptionID string   `json:"subscription_id"`
	ProductID      string   `json:"product_id"`
	ProductName    string   `json:"product_name"`
	Quantity       int      `json:"quantity"`
	BasePrice      float64  `json:"base_price"`
	SalePrice      *float64 `json:"sale_price,omitempty"`
	PricedByWeight bool     `json:"priced_by_weight"`
	EstWeightLb    float64  `json:"est_weight_lb,omitempty"`
}

// UnitPrice computes the effective per-unit price: sale price when present,
// multiplied by estimated weight for weight-priced products.
func (it SubscriptionItem) UnitPrice() float64 {
	price := it.BasePrice
	if it.SalePrice != nil {
		price = *it.SalePrice
	}
	if it.PricedByWeight {
		price *= it.EstWeightLb
	}
	return price
}

// LineTotal is UnitPrice times quantity.
func (it SubscriptionItem) LineTotal() float64 {
	return it.UnitPrice() * float64(it.Quantity)
}
