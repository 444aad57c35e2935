// Package webhook implements the carrier-tracking webhook pipeline: verify
// the delivery's signature, deduplicate it, record a normalized shipment
// event, update the order on delivery, and hand off to the notification
// dispatcher.
//
// The service layer depends on repository interfaces defined in this package
// and should never import from api/. Repository implementations live in
// repository/postgres/.
//
// Idempotency rests on the storage layer: the (source, provider_event_id)
// unique constraint resolves races between concurrent deliveries of the same
// event, and a retried delivery of an already-recorded event is acknowledged
// without side effects.
package webhook
