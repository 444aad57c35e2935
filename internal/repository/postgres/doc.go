// Package postgres implements the service-layer repository interfaces
// against PostgreSQL using hand-written SQL.
//
// Idempotency contracts that the services rely on live here: the
// (source, provider_event_id) unique index on webhook_events turns a lost
// insert race into webhook.ErrDuplicateEvent rather than a second row.
package postgres

import "github.com/lib/pq"

// uniqueViolation is the PostgreSQL error code for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == uniqueViolation
}
