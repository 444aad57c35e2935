package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
	"github.com/brandonecarr/amosmiller-sub003/internal/mail"
)

type memSubRepo struct {
	mu       sync.Mutex
	subs     []domain.Subscription
	items    map[string][]domain.SubscriptionItem
	profiles map[string]*domain.CustomerProfile
	advanced map[string]time.Time

	listErr     error
	itemsErr    map[string]error
	advanceErr  map[string]error
	profilesErr error
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{
		items:      make(map[string][]domain.SubscriptionItem),
		profiles:   make(map[string]*domain.CustomerProfile),
		advanced:   make(map[string]time.Time),
		itemsErr:   make(map[string]error),
		advanceErr: make(map[string]error),
	}
}

func (m *memSubRepo) ListDue(_ context.Context, asOf time.Time) ([]domain.Subscription, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Subscription
	for _, s := range m.subs {
		if s.Status == domain.SubscriptionActive && !s.NextOrderDate.After(asOf) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSubRepo) ListDueOn(_ context.Context, date time.Time) ([]domain.Subscription, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Subscription
	for _, s := range m.subs {
		if s.Status == domain.SubscriptionActive &&
			s.NextOrderDate.Format("2006-01-02") == date.Format("2006-01-02") {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSubRepo) ListItems(_ context.Context, subscriptionID string) ([]domain.SubscriptionItem, error) {
	if err := m.itemsErr[subscriptionID]; err != nil {
		return nil, err
	}
	return m.items[subscriptionID], nil
}

func (m *memSubRepo) AdvanceNextOrderDate(_ context.Context, subscriptionID string, to time.Time) error {
	if err := m.advanceErr[subscriptionID]; err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanced[subscriptionID] = to
	return nil
}

func (m *memSubRepo) OwnerProfile(_ context.Context, userID string) (*domain.CustomerProfile, error) {
	if m.profilesErr != nil {
		return nil, m.profilesErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

type memOrderCreator struct {
	mu        sync.Mutex
	created   []createdOrder
	failFor   map[string]error
	orderSeq  int
}

type createdOrder struct {
	subscriptionID string
	subtotal       float64
	itemCount      int
}

func newMemOrderCreator() *memOrderCreator {
	return &memOrderCreator{failFor: make(map[string]error)}
}

func (m *memOrderCreator) CreateSubscriptionOrder(_ context.Context, sub *domain.Subscription, items []domain.SubscriptionItem, subtotal float64) (string, string, error) {
	if err := m.failFor[sub.ID]; err != nil {
		return "", "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderSeq++
	m.created = append(m.created, createdOrder{sub.ID, subtotal, len(items)})
	return fmt.Sprintf("ord-%d", m.orderSeq), fmt.Sprintf("SUB-TEST-%d", m.orderSeq), nil
}

type captureSender struct {
	mu       sync.Mutex
	messages []mail.Message
	err      error
}

func (s *captureSender) Send(_ context.Context, msg *mail.Message) (*mail.SendResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	return &mail.SendResult{Success: true, MessageID: "msg-1"}, nil
}

type memTemplates struct{ tpl *domain.EmailTemplate }

func (m *memTemplates) GetTemplate(_ context.Context, key string) (*domain.EmailTemplate, error) {
	if m.tpl == nil {
		return nil, fmt.Errorf("template %s not found", key)
	}
	return m.tpl, nil
}

// passthroughRenderer does simple string substitution for tests.
type passthroughRenderer struct{}

func (passthroughRenderer) Render(tpl string, vars map[string]interface{}) (string, error) {
	out := tpl
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", fmt.Sprintf("%v", v))
	}
	return out, nil
}

func newTestGenerator(repo *memSubRepo, orders *memOrderCreator, sender *captureSender, at time.Time) *Generator {
	g := NewGenerator(repo, orders, sender,
		&memTemplates{tpl: &domain.EmailTemplate{
			Subject: "Your {{subscription_name}} order is coming up",
			Body:    "<p>Hi {{customer_name}}, {{order_total}} on {{next_order_date}}.</p>",
		}},
		passthroughRenderer{}, "Miller's Farm", "orders@example.com")
	g.now = func() time.Time { return at }
	return g
}

func weeklySub(id, userID string, next time.Time) domain.Subscription {
	return domain.Subscription{
		ID:            id,
		Name:          "Weekly Dairy Box",
		Status:        domain.SubscriptionActive,
		Frequency:     domain.FrequencyWeekly,
		NextOrderDate: next,
		UserID:        userID,
	}
}

func TestProcessAllDue_PerItemIsolation(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	repo := newMemSubRepo()
	repo.subs = []domain.Subscription{
		weeklySub("sub-1", "u-1", now.AddDate(0, 0, -1)),
		weeklySub("sub-2", "u-2", now),
		weeklySub("sub-3", "u-3", now),
		weeklySub("sub-future", "u-4", now.AddDate(0, 0, 5)), // not due
	}
	repo.items["sub-1"] = []domain.SubscriptionItem{
		{ProductID: "p1", ProductName: "Raw Milk", Quantity: 2, BasePrice: 9.50},
	}
	// sub-2 has no items: EmptySubscription failure.
	repo.items["sub-3"] = []domain.SubscriptionItem{
		{ProductID: "p2", ProductName: "Eggs", Quantity: 1, BasePrice: 6.00},
	}

	orders := newMemOrderCreator()
	g := newTestGenerator(repo, orders, &captureSender{}, now)

	summary, err := g.ProcessAllDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessAllDue error: %v", err)
	}
	if summary.Processed != 3 {
		t.Errorf("Processed = %d, want 3 (future subscription excluded)", summary.Processed)
	}
	if summary.SuccessCount != 2 || summary.ErrorCount != 1 {
		t.Errorf("success/error = %d/%d, want 2/1", summary.SuccessCount, summary.ErrorCount)
	}
	if len(orders.created) != 2 {
		t.Errorf("orders created = %d, want 2", len(orders.created))
	}

	var emptyResult *ItemResult
	for i := range summary.Details {
		if summary.Details[i].SubscriptionID == "sub-2" {
			emptyResult = &summary.Details[i]
		}
	}
	if emptyResult == nil || emptyResult.Success || emptyResult.Error == "" {
		t.Errorf("empty subscription should fail with an error: %+v", emptyResult)
	}
}

func TestProcessAllDue_PricingUsesSaleAndWeight(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	sale := 10.00
	repo := newMemSubRepo()
	repo.subs = []domain.Subscription{weeklySub("sub-1", "u-1", now)}
	repo.items["sub-1"] = []domain.SubscriptionItem{
		{ProductID: "p1", Quantity: 2, BasePrice: 9.50},                                      // 19.00
		{ProductID: "p2", Quantity: 1, BasePrice: 12.00, SalePrice: &sale},                   // 10.00
		{ProductID: "p3", Quantity: 1, BasePrice: 8.00, PricedByWeight: true, EstWeightLb: 1.5}, // 12.00
	}

	orders := newMemOrderCreator()
	g := newTestGenerator(repo, orders, &captureSender{}, now)

	if _, err := g.ProcessAllDue(context.Background()); err != nil {
		t.Fatalf("ProcessAllDue error: %v", err)
	}
	if len(orders.created) != 1 {
		t.Fatalf("orders created = %d, want 1", len(orders.created))
	}
	if got := orders.created[0].subtotal; got != 41.00 {
		t.Errorf("subtotal = %v, want 41.00", got)
	}
}

func TestProcessAllDue_AdvancesFromScheduledDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	// Three days overdue: the next date advances from the scheduled date,
	// not from today, so the cadence holds.
	scheduled := now.AddDate(0, 0, -3)
	repo := newMemSubRepo()
	repo.subs = []domain.Subscription{weeklySub("sub-1", "u-1", scheduled)}
	repo.items["sub-1"] = []domain.SubscriptionItem{{ProductID: "p1", Quantity: 1, BasePrice: 5}}

	g := newTestGenerator(repo, newMemOrderCreator(), &captureSender{}, now)
	if _, err := g.ProcessAllDue(context.Background()); err != nil {
		t.Fatalf("ProcessAllDue error: %v", err)
	}

	want := scheduled.AddDate(0, 0, 7)
	if got := repo.advanced["sub-1"]; !got.Equal(want) {
		t.Errorf("advanced to %v, want %v", got, want)
	}
}

func TestProcessAllDue_OrderFailureDoesNotAdvance(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	repo := newMemSubRepo()
	repo.subs = []domain.Subscription{weeklySub("sub-1", "u-1", now)}
	repo.items["sub-1"] = []domain.SubscriptionItem{{ProductID: "p1", Quantity: 1, BasePrice: 5}}

	orders := newMemOrderCreator()
	orders.failFor["sub-1"] = errors.New("insert failed")

	g := newTestGenerator(repo, orders, &captureSender{}, now)
	summary, err := g.ProcessAllDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessAllDue error: %v", err)
	}
	if summary.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", summary.ErrorCount)
	}
	if _, advanced := repo.advanced["sub-1"]; advanced {
		t.Error("schedule must not advance when order creation fails")
	}
}

func TestProcessAllDue_AdvanceFailureReportedWithOrder(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	repo := newMemSubRepo()
	repo.subs = []domain.Subscription{weeklySub("sub-1", "u-1", now)}
	repo.items["sub-1"] = []domain.SubscriptionItem{{ProductID: "p1", Quantity: 1, BasePrice: 5}}
	repo.advanceErr["sub-1"] = errors.New("update failed")

	g := newTestGenerator(repo, newMemOrderCreator(), &captureSender{}, now)
	summary, err := g.ProcessAllDue(context.Background())
	if err != nil {
		t.Fatalf("ProcessAllDue error: %v", err)
	}
	if summary.ErrorCount != 1 {
		t.Fatalf("ErrorCount = %d, want 1", summary.ErrorCount)
	}
	detail := summary.Details[0]
	// The order exists; the operator needs its number to reconcile.
	if !strings.Contains(detail.Error, "created but schedule not advanced") ||
		!strings.Contains(detail.Error, detail.OrderNumber) {
		t.Errorf("detail = %+v", detail)
	}
}

func TestProcessAllDue_ListFailureFailsRun(t *testing.T) {
	repo := newMemSubRepo()
	repo.listErr = errors.New("db down")
	g := newTestGenerator(repo, newMemOrderCreator(), &captureSender{}, time.Now())

	if _, err := g.ProcessAllDue(context.Background()); err == nil {
		t.Fatal("expected run-level error when the due query fails")
	}
}

func TestSendUpcomingReminders(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	repo := newMemSubRepo()
	repo.subs = []domain.Subscription{
		weeklySub("sub-soon", "u-1", now.AddDate(0, 0, 2)),  // exactly two days out
		weeklySub("sub-today", "u-2", now),                  // due today, no reminder
		weeklySub("sub-later", "u-3", now.AddDate(0, 0, 3)), // too far out
	}
	repo.items["sub-soon"] = []domain.SubscriptionItem{{ProductID: "p1", Quantity: 2, BasePrice: 9.50}}
	repo.profiles["u-1"] = &domain.CustomerProfile{ID: "u-1", Email: "amos@example.com", DisplayName: "Amos"}

	sender := &captureSender{}
	g := newTestGenerator(repo, newMemOrderCreator(), sender, now)

	summary, err := g.SendUpcomingReminders(context.Background())
	if err != nil {
		t.Fatalf("SendUpcomingReminders error: %v", err)
	}
	if summary.TotalSubscriptions != 1 || summary.RemindersSent != 1 {
		t.Errorf("summary = %+v, want exactly the two-days-out subscription", summary)
	}
	if len(sender.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sender.messages))
	}
	msg := sender.messages[0]
	if msg.To != "amos@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Subject, "Weekly Dairy Box") {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "$19.00") || !strings.Contains(msg.HTML, "March 12, 2026") {
		t.Errorf("HTML = %q", msg.HTML)
	}
}

func TestSendUpcomingReminders_MissingProfileCollected(t *testing.T) {
	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	repo := newMemSubRepo()
	repo.subs = []domain.Subscription{weeklySub("sub-1", "u-missing", now.AddDate(0, 0, 2))}
	repo.items["sub-1"] = []domain.SubscriptionItem{{ProductID: "p1", Quantity: 1, BasePrice: 5}}

	g := newTestGenerator(repo, newMemOrderCreator(), &captureSender{}, now)
	summary, err := g.SendUpcomingReminders(context.Background())
	if err != nil {
		t.Fatalf("SendUpcomingReminders error: %v", err)
	}
	if summary.RemindersSent != 0 || len(summary.Errors) != 1 {
		t.Errorf("summary = %+v, want one collected error", summary)
	}
}

func TestFrequencyNext(t *testing.T) {
	from := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		f    domain.Frequency
		want time.Time
	}{
		{domain.FrequencyWeekly, from.AddDate(0, 0, 7)},
		{domain.FrequencyBiweekly, from.AddDate(0, 0, 14)},
		{domain.FrequencyMonthly, from.AddDate(0, 1, 0)},
		{domain.Frequency("bogus"), from.AddDate(0, 0, 14)},
	}
	for _, c := range cases {
		if got := c.f.Next(from); !got.Equal(c.want) {
			t.Errorf("Next(%q) = %v, want %v", c.f, got, c.want)
		}
	}
}
