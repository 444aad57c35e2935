package domain

import "time"

// NotificationSetting controls whether and how customers are emailed for a
// given shipment event type. One row per event type; admin-managed, read-only
// from the dispatch path.
type NotificationSetting struct {
	ID              string            `json:"id"`
	EventType       ShipmentEventType `json:"event_type"`
	IsEnabled       bool              `json:"is_enabled"`
	DelayMinutes    int               `json:"delay_minutes"`
	EmailTemplateID string            `json:"email_template_id,omitempty"`
}

// NotificationStatus is the outcome of a single dispatch attempt.
type NotificationStatus string

const (
	NotificationSent   NotificationStatus = "sent"
	NotificationFailed NotificationStatus = "failed"
)

// NotificationLogEntry is one row per dispatch attempt, append-only.
// RecipientEmail is "unknown" when the attempt failed before the recipient
// could be resolved.
type NotificationLogEntry struct {
	ID                string             `json:"id"`
	OrderID           string             `json:"order_id"`
	RecipientEmail    string             `json:"recipient_email"`
	NotificationType  string             `json:"notification_type"`
	Status            NotificationStatus `json:"status"`
	ProviderMessageID string             `json:"provider_message_id,omitempty"`
	ErrorMessage      string             `json:"error_message,omitempty"`
	SentAt            *time.Time         `json:"sent_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

// EmailTemplate holds the subject and HTML body for a notification email.
// Both contain {{variable}} tokens substituted at render time.
type EmailTemplate struct {
	ID        string    `json:"id"`
	EventType string    `json:"event_type"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}
