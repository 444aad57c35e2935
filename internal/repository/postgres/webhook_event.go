package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/webhook"
)

// WebhookEventRepo implements webhook.EventRepo against PostgreSQL.
type WebhookEventRepo struct{ db *sql.DB }

// NewWebhookEventRepo creates a Postgres-backed webhook event repository.
func NewWebhookEventRepo(db *sql.DB) *WebhookEventRepo { return &WebhookEventRepo{db: db} }

func (r *WebhookEventRepo) FindByProviderID(ctx context.Context, source, providerEventID string) (*domain.WebhookEvent, error) {
	ev := &domain.WebhookEvent{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, source, provider_event_id, event_type, status,
		       received_at, processed_at, COALESCE(last_error,'')
		FROM webhook_events
		WHERE source = $1 AND provider_event_id = $2
	`, source, providerEventID).Scan(
		&ev.ID, &ev.Source, &ev.ProviderEventID, &ev.EventType, &ev.Status,
		&ev.ReceivedAt, &ev.ProcessedAt, &ev.LastError,
	)
	if err == sql.ErrNoRows {
		return nil, webhook.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find webhook event: %w", err)
	}
	return ev, nil
}

func (r *WebhookEventRepo) Insert(ctx context.Context, ev *domain.WebhookEvent) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO webhook_events
			(id, source, provider_event_id, event_type, raw_payload, signature,
			 status, received_at, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9,''))
	`, ev.ID, ev.Source, ev.ProviderEventID, ev.EventType, ev.RawPayload,
		ev.Signature, ev.Status, ev.ReceivedAt, ev.LastError)
	if err != nil {
		if isUniqueViolation(err) {
			return webhook.ErrDuplicateEvent
		}
		return fmt.Errorf("insert webhook event: %w", err)
	}
	return nil
}

func (r *WebhookEventRepo) MarkProcessed(ctx context.Context, id, note string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET status = 'processed', processed_at = NOW(), last_error = NULLIF($2,'')
		WHERE id = $1
	`, id, note)
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return webhook.ErrEventNotFound
	}
	return nil
}

func (r *WebhookEventRepo) MarkFailed(ctx context.Context, id, reason string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE webhook_events
		SET status = 'failed', processed_at = NOW(), last_error = $2
		WHERE id = $1
	`, id, reason)
	if err != nil {
		return fmt.Errorf("mark webhook failed: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return webhook.ErrEventNotFound
	}
	return nil
}
