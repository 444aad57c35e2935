package subscription

import (
	"context"
	"time"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
)

// Repository is the data access contract for subscriptions.
// Implementations must be safe for concurrent use.
type Repository interface {
	// ListDue returns active subscriptions with next_order_date <= asOf.
	// Order is whatever the store returns; no ordering is guaranteed.
	ListDue(ctx context.Context, asOf time.Time) ([]domain.Subscription, error)

	// ListDueOn returns active subscriptions whose next_order_date falls on
	// exactly the given calendar date.
	ListDueOn(ctx context.Context, date time.Time) ([]domain.Subscription, error)

	// ListItems returns a subscription's items joined with product pricing.
	ListItems(ctx context.Context, subscriptionID string) ([]domain.SubscriptionItem, error)

	// AdvanceNextOrderDate moves the subscription's schedule forward.
	AdvanceNextOrderDate(ctx context.Context, subscriptionID string, to time.Time) error

	// OwnerProfile returns the profile of the subscription's owning user.
	// Returns ErrProfileNotFound if absent.
	OwnerProfile(ctx context.Context, userID string) (*domain.CustomerProfile, error)
}

// OrderCreator materializes orders from subscriptions. Payment capture,
// shipping, and tax are owned by the wider order-creation path, not here.
type OrderCreator interface {
	// CreateSubscriptionOrder creates a pending order with the given lines
	// and subtotal and returns its id and order number.
	CreateSubscriptionOrder(ctx context.Context, sub *domain.Subscription, items []domain.SubscriptionItem, subtotal float64) (orderID, orderNumber string, err error)
}
