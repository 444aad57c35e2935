package webhook

import "errors"

// Sentinel errors for the webhook pipeline.
var (
	// ErrInvalidSignature means the HMAC check failed. Terminal: nothing is
	// persisted and the caller must respond 401.
	ErrInvalidSignature = errors.New("webhook signature mismatch")

	// ErrEventNotFound is returned by EventRepo lookups with no match.
	ErrEventNotFound = errors.New("webhook event not found")

	// ErrDuplicateEvent is returned by EventRepo.Insert when the
	// (source, provider_event_id) unique constraint rejects the row.
	ErrDuplicateEvent = errors.New("webhook event already recorded")

	// ErrOrderNotFound is returned by OrderRepo lookups with no match.
	ErrOrderNotFound = errors.New("order not found")

	// ErrNoTrackerData means the payload carried no tracking code.
	ErrNoTrackerData = errors.New("webhook payload has no tracker data")

	// ErrNoTrackingDetails means the tracker's history list was empty.
	ErrNoTrackingDetails = errors.New("tracker has no tracking details")
)
