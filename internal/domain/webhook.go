package domain

import "time"

// WebhookSourceEasyPost identifies the carrier-tracking webhook source.
// The (source, provider_event_id) pair is the idempotency key for inbound
// webhook deliveries.
const WebhookSourceEasyPost = "easypost"

// WebhookEventStatus tracks the processing lifecycle of a received webhook.
type WebhookEventStatus string

const (
	WebhookPending   WebhookEventStatus = "pending"
	WebhookProcessed WebhookEventStatus = "processed"
	WebhookFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is the durable record of a single inbound webhook delivery.
// A row is inserted with status pending before any business processing so
// that redelivery of the same provider event id is a no-op. Rows are never
// deleted.
type WebhookEvent struct {
	ID              string             `json:"id"`
	Source          string             `json:"source"`
	ProviderEventID string             `json:"provider_event_id"`
	EventType       string             `json:"event_type"`
	RawPayload      []byte             `json:"raw_payload,omitempty"`
	Signature       string             `json:"signature,omitempty"`
	Status          WebhookEventStatus `json:"status"`
	ReceivedAt      time.Time          `json:"received_at"`
	ProcessedAt     *time.Time         `json:"processed_at,omitempty"`
	LastError       string             `json:"last_error,omitempty"`
}
