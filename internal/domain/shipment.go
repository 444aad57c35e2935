package domain

import (
	"strings"
	"time"
)

// ShipmentEventType enumerates the canonical shipment event vocabulary.
// Carrier-specific status strings are normalized to one of these four values
// before anything downstream (notifications, order updates) sees them.
type ShipmentEventType string

const (
	ShipmentInTransit      ShipmentEventType = "in_transit"
	ShipmentOutForDelivery ShipmentEventType = "out_for_delivery"
	ShipmentDelivered      ShipmentEventType = "delivered"
	ShipmentException      ShipmentEventType = "exception"
)

// carrierStatusMap is the fixed mapping from carrier status strings to the
// canonical vocabulary. Lookups are case-insensitive; anything not listed
// maps to in_transit.
var carrierStatusMap = map[string]ShipmentEventType{
	"pre_transit":          ShipmentInTransit,
	"in_transit":           ShipmentInTransit,
	"unknown":              ShipmentInTransit,
	"out_for_delivery":     ShipmentOutForDelivery,
	"available_for_pickup": ShipmentOutForDelivery,
	"delivered":            ShipmentDelivered,
	"return_to_sender":     ShipmentException,
	"failure":              ShipmentException,
	"cancelled":            ShipmentException,
	"error":                ShipmentException,
}

// CanonicalEventType maps a raw carrier status to the canonical event type.
func CanonicalEventType(carrierStatus string) ShipmentEventType {
	if t, ok := carrierStatusMap[strings.ToLower(carrierStatus)]; ok {
		return t
	}
	return ShipmentInTransit
}

// ShipmentEvent is one entry in an order's append-only shipment history.
type ShipmentEvent struct {
	ID              string            `json:"id"`
	OrderID         string            `json:"order_id"`
	EventType       ShipmentEventType `json:"event_type"`
	Carrier         string            `json:"carrier"`
	TrackingCode    string            `json:"tracking_code"`
	OccurredAt      time.Time         `json:"occurred_at"`
	Description     string            `json:"description"`
	LocationCity    string            `json:"location_city,omitempty"`
	LocationState   string            `json:"location_state,omitempty"`
	ProviderEventID string            `json:"provider_event_id"`
	RawData         []byte            `json:"raw_data,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}
