package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/notification"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/webhook"
)

// OrderRepo implements order access for the webhook pipeline
// (webhook.OrderRepo), the notification dispatcher
// (notification.OrderRepo), and the subscription generator
// (subscription.OrderCreator).
type OrderRepo struct{ db *sql.DB }

// NewOrderRepo creates a Postgres-backed order repository.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

const orderColumns = `
	id, order_number, status, payment_status, COALESCE(user_id,''),
	COALESCE(guest_email,''), COALESCE(tracking_number,''),
	COALESCE(tracking_url,''), COALESCE(carrier,''), total,
	COALESCE(subscription_id,''), delivered_at, created_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID, &o.OrderNumber, &o.Status, &o.PaymentStatus, &o.UserID,
		&o.GuestEmail, &o.TrackingNumber, &o.TrackingURL, &o.Carrier,
		&o.Total, &o.SubscriptionID, &o.DeliveredAt, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepo) FindByTrackingCode(ctx context.Context, trackingCode string) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE tracking_number = $1
	`, trackingCode)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, webhook.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order by tracking code: %w", err)
	}
	return o, nil
}

func (r *OrderRepo) MarkDelivered(ctx context.Context, orderID string, deliveredAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = 'delivered', delivered_at = $2
		WHERE id = $1
	`, orderID, deliveredAt)
	if err != nil {
		return fmt.Errorf("mark order delivered: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return webhook.ErrOrderNotFound
	}
	return nil
}

func (r *OrderRepo) GetOrderWithCustomer(ctx context.Context, orderID string) (*domain.Order, *domain.CustomerProfile, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, orderID)
	o, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, nil, notification.ErrOrderNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get order: %w", err)
	}

	if o.UserID == "" {
		return o, nil, nil
	}

	p := &domain.CustomerProfile{}
	err = r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(email,''), COALESCE(display_name,'')
		FROM profiles
		WHERE id = $1
	`, o.UserID).Scan(&p.ID, &p.Email, &p.DisplayName)
	if err == sql.ErrNoRows {
		// Orphaned user reference: the order still stands on its own.
		return o, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get customer profile: %w", err)
	}
	return o, p, nil
}

// CreateSubscriptionOrder creates a pending order with its line items in a
// single transaction. The subtotal is stored as the total; shipping and tax
// are appended later by the general order path.
func (r *OrderRepo) CreateSubscriptionOrder(ctx context.Context, sub *domain.Subscription, items []domain.SubscriptionItem, subtotal float64) (string, string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("begin order tx: %w", err)
	}
	defer tx.Rollback()

	orderID := uuid.New().String()
	orderNumber := newOrderNumber(time.Now())

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders
			(id, order_number, status, payment_status, user_id,
			 total, subscription_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	`, orderID, orderNumber, domain.OrderPending, domain.PaymentPendingCharge,
		sub.UserID, subtotal, sub.ID)
	if err != nil {
		return "", "", fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items
				(id, order_id, product_id, product_name, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, uuid.New().String(), orderID, it.ProductID, it.ProductName,
			it.Quantity, it.UnitPrice())
		if err != nil {
			return "", "", fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", "", fmt.Errorf("commit order: %w", err)
	}
	return orderID, orderNumber, nil
}

// newOrderNumber builds a human-readable subscription order number like
// SUB-20260901-4F2A.
func newOrderNumber(t time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:4])
	return fmt.Sprintf("SUB-%s-%s", t.Format("20060102"), suffix)
}
