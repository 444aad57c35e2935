// Package notification implements best-effort customer emails for shipment
// events: settings lookup, optional delay, template rendering, delivery,
// and an append-only dispatch log.
//
// The dispatcher never propagates errors to its caller. Past the settings
// check, every failure becomes a NotificationLogEntry; before it, failures
// are only logged. A disabled or missing setting is an intentional
// suppression and leaves no trace at all.
package notification
