package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
)

// ShipmentEventRepo implements webhook.ShipmentRepo against PostgreSQL.
type ShipmentEventRepo struct{ db *sql.DB }

// NewShipmentEventRepo creates a Postgres-backed shipment event repository.
func NewShipmentEventRepo(db *sql.DB) *ShipmentEventRepo { return &ShipmentEventRepo{db: db} }

func (r *ShipmentEventRepo) Insert(ctx context.Context, ev *domain.ShipmentEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shipment_events
			(id, order_id, event_type, carrier, tracking_code, occurred_at,
			 description, location_city, location_state, provider_event_id,
			 raw_data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8,''), NULLIF($9,''), $10, $11, NOW())
	`, ev.ID, ev.OrderID, ev.EventType, ev.Carrier, ev.TrackingCode,
		ev.OccurredAt, ev.Description, ev.LocationCity, ev.LocationState,
		ev.ProviderEventID, ev.RawData)
	if err != nil {
		return fmt.Errorf("insert shipment event: %w", err)
	}
	return nil
}

func (r *ShipmentEventRepo) ListByOrder(ctx context.Context, orderID string) ([]domain.ShipmentEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, event_type, carrier, tracking_code, occurred_at,
		       description, COALESCE(location_city,''), COALESCE(location_state,''),
		       provider_event_id, created_at
		FROM shipment_events
		WHERE order_id = $1
		ORDER BY occurred_at DESC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list shipment events: %w", err)
	}
	defer rows.Close()

	var out []domain.ShipmentEvent
	for rows.Next() {
		var ev domain.ShipmentEvent
		if err := rows.Scan(
			&ev.ID, &ev.OrderID, &ev.EventType, &ev.Carrier, &ev.TrackingCode,
			&ev.OccurredAt, &ev.Description, &ev.LocationCity, &ev.LocationState,
			&ev.ProviderEventID, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan shipment event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
