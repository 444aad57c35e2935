package subscription

import "errors"

// Sentinel errors for subscription order generation.
var (
	// ErrEmptySubscription means a due subscription has no items and cannot
	// materialize an order.
	ErrEmptySubscription = errors.New("subscription has no items")

	// ErrProfileNotFound is returned when a subscription's owner has no
	// profile row.
	ErrProfileNotFound = errors.New("customer profile not found")
)
