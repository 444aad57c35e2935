package webhook

import (
	"context"
	"time"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
)

// EventRepo is the data access contract for webhook event rows.
// Implementations must be safe for concurrent use.
type EventRepo interface {
	// FindByProviderID returns the event recorded for (source, providerEventID).
	// Returns ErrEventNotFound if none exists.
	FindByProviderID(ctx context.Context, source, providerEventID string) (*domain.WebhookEvent, error)

	// Insert records a new event. Returns ErrDuplicateEvent when the
	// (source, provider_event_id) unique constraint rejects the row —
	// callers treat that as "already being handled", not a failure.
	Insert(ctx context.Context, ev *domain.WebhookEvent) error

	// MarkProcessed finalizes an event. note is informational (e.g. "no
	// matching order") and may be empty.
	MarkProcessed(ctx context.Context, id, note string) error

	// MarkFailed finalizes an event with the failure reason.
	MarkFailed(ctx context.Context, id, reason string) error
}

// ShipmentRepo records normalized shipment events.
type ShipmentRepo interface {
	// Insert appends one event to the order's shipment history.
	Insert(ctx context.Context, ev *domain.ShipmentEvent) error

	// ListByOrder returns an order's shipment history, newest first.
	ListByOrder(ctx context.Context, orderID string) ([]domain.ShipmentEvent, error)
}

// OrderRepo resolves and updates orders for the webhook pipeline.
type OrderRepo interface {
	// FindByTrackingCode returns the order whose stored tracking number
	// matches. Returns ErrOrderNotFound if none does.
	FindByTrackingCode(ctx context.Context, trackingCode string) (*domain.Order, error)

	// MarkDelivered sets the order's status to delivered and stamps
	// delivered_at.
	MarkDelivered(ctx context.Context, orderID string, deliveredAt time.Time) error
}

// Notifier is the best-effort customer notification hook. Implementations
// must never block the caller on delivery and must never surface errors;
// failures are their own concern to log.
type Notifier interface {
	Dispatch(eventType domain.ShipmentEventType, orderID string)
}
