package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/notification"
)

// NotificationRepo implements notification.SettingsRepo,
// notification.TemplateRepo, and notification.LogRepo over one *sql.DB.
type NotificationRepo struct{ db *sql.DB }

// NewNotificationRepo creates a Postgres-backed notification repository.
func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

func (r *NotificationRepo) GetSetting(ctx context.Context, eventType domain.ShipmentEventType) (*domain.NotificationSetting, error) {
	s := &domain.NotificationSetting{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_type, is_enabled, delay_minutes,
		       COALESCE(email_template_id,'')
		FROM notification_settings
		WHERE event_type = $1
	`, eventType).Scan(&s.ID, &s.EventType, &s.IsEnabled, &s.DelayMinutes,
		&s.EmailTemplateID)
	if err == sql.ErrNoRows {
		return nil, notification.ErrSettingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification setting: %w", err)
	}
	return s, nil
}

func (r *NotificationRepo) GetTemplate(ctx context.Context, eventType string) (*domain.EmailTemplate, error) {
	t := &domain.EmailTemplate{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_type, subject, body, updated_at
		FROM email_templates
		WHERE event_type = $1
	`, eventType).Scan(&t.ID, &t.EventType, &t.Subject, &t.Body, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, notification.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get email template: %w", err)
	}
	return t, nil
}

func (r *NotificationRepo) InsertLogEntry(ctx context.Context, entry *domain.NotificationLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notification_log
			(id, order_id, recipient_email, notification_type, status,
			 provider_message_id, error_message, sent_at, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6,''), NULLIF($7,''), $8, NOW())
	`, entry.ID, entry.OrderID, entry.RecipientEmail, entry.NotificationType,
		entry.Status, entry.ProviderMessageID, entry.ErrorMessage, entry.SentAt)
	if err != nil {
		return fmt.Errorf("insert notification log entry: %w", err)
	}
	return nil
}

func (r *NotificationRepo) ListByOrder(ctx context.Context, orderID string, limit int) ([]domain.NotificationLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, recipient_email, notification_type, status,
		       COALESCE(provider_message_id,''), COALESCE(error_message,''),
		       sent_at, created_at
		FROM notification_log
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notification log: %w", err)
	}
	defer rows.Close()

	var entries []domain.NotificationLogEntry
	for rows.Next() {
		var e domain.NotificationLogEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.RecipientEmail,
			&e.NotificationType, &e.Status, &e.ProviderMessageID,
			&e.ErrorMessage, &e.SentAt, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
