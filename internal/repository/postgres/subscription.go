package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/subscription"
)

// SubscriptionRepo implements subscription.Repository.
type SubscriptionRepo struct{ db *sql.DB }

// NewSubscriptionRepo creates a Postgres-backed subscription repository.
func NewSubscriptionRepo(db *sql.DB) *SubscriptionRepo {
	return &SubscriptionRepo{db: db}
}

const subscriptionColumns = `
	id, name, status, frequency, next_order_date, user_id, created_at`

func (r *SubscriptionRepo) listWhere(ctx context.Context, where string, args ...interface{}) ([]domain.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status = 'active' AND `+where+`
		ORDER BY next_order_date
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := rows.Scan(&s.ID, &s.Name, &s.Status, &s.Frequency,
			&s.NextOrderDate, &s.UserID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *SubscriptionRepo) ListDue(ctx context.Context, asOf time.Time) ([]domain.Subscription, error) {
	return r.listWhere(ctx, `next_order_date <= $1`, asOf)
}

func (r *SubscriptionRepo) ListDueOn(ctx context.Context, date time.Time) ([]domain.Subscription, error) {
	return r.listWhere(ctx, `next_order_date::date = $1::date`, date)
}

// ListItems joins subscription items with product pricing so the generator
// can price each line without a second lookup.
func (r *SubscriptionRepo) ListItems(ctx context.Context, subscriptionID string) ([]domain.SubscriptionItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT si.id, si.subscription_id, si.product_id, p.name, si.quantity,
		       p.base_price, p.sale_price, p.priced_by_weight,
		       COALESCE(p.est_weight_lb, 0)
		FROM subscription_items si
		JOIN products p ON p.id = si.product_id
		WHERE si.subscription_id = $1
		ORDER BY p.name
	`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("list subscription items: %w", err)
	}
	defer rows.Close()

	var items []domain.SubscriptionItem
	for rows.Next() {
		var it domain.SubscriptionItem
		if err := rows.Scan(&it.ID, &it.SubscriptionID, &it.ProductID,
			&it.ProductName, &it.Quantity, &it.BasePrice, &it.SalePrice,
			&it.PricedByWeight, &it.EstWeightLb); err != nil {
			return nil, fmt.Errorf("scan subscription item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *SubscriptionRepo) AdvanceNextOrderDate(ctx context.Context, subscriptionID string, to time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE subscriptions SET next_order_date = $2
		WHERE id = $1
	`, subscriptionID, to)
	if err != nil {
		return fmt.Errorf("advance next order date: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("advance next order date: subscription %s not found", subscriptionID)
	}
	return nil
}

func (r *SubscriptionRepo) OwnerProfile(ctx context.Context, userID string) (*domain.CustomerProfile, error) {
	p := &domain.CustomerProfile{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(email,''), COALESCE(display_name,'')
		FROM profiles
		WHERE id = $1
	`, userID).Scan(&p.ID, &p.Email, &p.DisplayName)
	if err == sql.ErrNoRows {
		return nil, subscription.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get owner profile: %w", err)
	}
	return p, nil
}
