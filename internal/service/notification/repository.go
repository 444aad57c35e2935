package notification

import (
	"context"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
)

// SettingsRepo reads admin-managed notification settings. One setting per
// event type; this core never writes them.
type SettingsRepo interface {
	// GetSetting returns the setting for the event type, or
	// ErrSettingNotFound.
	GetSetting(ctx context.Context, eventType domain.ShipmentEventType) (*domain.NotificationSetting, error)
}

// TemplateRepo reads email templates keyed by event type.
type TemplateRepo interface {
	// GetTemplate returns the template for the event type, or
	// ErrTemplateNotFound.
	GetTemplate(ctx context.Context, eventType string) (*domain.EmailTemplate, error)
}

// OrderRepo loads an order together with its owning customer profile.
type OrderRepo interface {
	// GetOrderWithCustomer returns the order and, when the order is linked
	// to a user, that user's profile (nil for guest orders). Returns
	// ErrOrderNotFound when the order does not exist.
	GetOrderWithCustomer(ctx context.Context, orderID string) (*domain.Order, *domain.CustomerProfile, error)
}

// LogRepo appends to the notification audit trail.
type LogRepo interface {
	// InsertLogEntry records one dispatch attempt, sent or failed.
	InsertLogEntry(ctx context.Context, entry *domain.NotificationLogEntry) error

	// ListByOrder returns an order's dispatch history, newest first.
	ListByOrder(ctx context.Context, orderID string, limit int) ([]domain.NotificationLogEntry, error)
}
