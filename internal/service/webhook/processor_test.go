package webhook_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
	"github.com/brandonecarr/amosmiller-sub003/internal/easypost"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/webhook"
)

const testSecret = "whsec_test"

// memEventRepo is an in-memory webhook event repository for unit testing.
type memEventRepo struct {
	mu     sync.Mutex
	events map[string]*domain.WebhookEvent // keyed by source|provider_event_id

	insertErr error
	markErr   error
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[string]*domain.WebhookEvent)}
}

func key(source, providerEventID string) string { return source + "|" + providerEventID }

func (m *memEventRepo) FindByProviderID(_ context.Context, source, providerEventID string) (*domain.WebhookEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[key(source, providerEventID)]
	if !ok {
		return nil, webhook.ErrEventNotFound
	}
	cp := *ev
	return &cp, nil
}

func (m *memEventRepo) Insert(_ context.Context, ev *domain.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	k := key(ev.Source, ev.ProviderEventID)
	if _, exists := m.events[k]; exists {
		return webhook.ErrDuplicateEvent
	}
	cp := *ev
	m.events[k] = &cp
	return nil
}

func (m *memEventRepo) byID(id string) *domain.WebhookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.ID == id {
			return ev
		}
	}
	return nil
}

func (m *memEventRepo) MarkProcessed(_ context.Context, id, note string) error {
	if m.markErr != nil {
		return m.markErr
	}
	ev := m.byID(id)
	if ev == nil {
		return webhook.ErrEventNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Status = domain.WebhookProcessed
	ev.LastError = note
	return nil
}

func (m *memEventRepo) MarkFailed(_ context.Context, id, reason string) error {
	ev := m.byID(id)
	if ev == nil {
		return webhook.ErrEventNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Status = domain.WebhookFailed
	ev.LastError = reason
	return nil
}

type memShipmentRepo struct {
	mu        sync.Mutex
	events    []domain.ShipmentEvent
	insertErr error
}

func (m *memShipmentRepo) Insert(_ context.Context, ev *domain.ShipmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	m.events = append(m.events, *ev)
	return nil
}

func (m *memShipmentRepo) ListByOrder(_ context.Context, orderID string) ([]domain.ShipmentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ShipmentEvent
	for _, ev := range m.events {
		if ev.OrderID == orderID {
			out = append(out, ev)
		}
	}
	return out, nil
}

type memOrderRepo struct {
	mu        sync.Mutex
	byCode    map[string]*domain.Order
	delivered map[string]time.Time
}

func newMemOrderRepo(orders ...*domain.Order) *memOrderRepo {
	m := &memOrderRepo{
		byCode:    make(map[string]*domain.Order),
		delivered: make(map[string]time.Time),
	}
	for _, o := range orders {
		m.byCode[o.TrackingNumber] = o
	}
	return m
}

func (m *memOrderRepo) FindByTrackingCode(_ context.Context, code string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byCode[code]
	if !ok {
		return nil, webhook.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) MarkDelivered(_ context.Context, orderID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered[orderID] = at
	return nil
}

type memNotifier struct {
	mu    sync.Mutex
	calls []struct {
		eventType domain.ShipmentEventType
		orderID   string
	}
}

func (m *memNotifier) Dispatch(eventType domain.ShipmentEventType, orderID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, struct {
		eventType domain.ShipmentEventType
		orderID   string
	}{eventType, orderID})
}

func trackerPayload(eventID, trackingCode, status string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %q,
		"object": "Event",
		"description": "tracker.updated",
		"result": {
			"tracking_code": %q,
			"carrier": "USPS",
			"status": %q,
			"tracking_details": [
				{"status": %q, "message": "latest", "datetime": "2026-03-10T14:00:00Z",
				 "tracking_location": {"city": "Lancaster", "state": "PA"}},
				{"status": "in_transit", "message": "older", "datetime": "2026-03-09T09:00:00Z",
				 "tracking_location": {}}
			]
		}
	}`, eventID, trackingCode, status, status))
}

type fixture struct {
	processor *webhook.Processor
	events    *memEventRepo
	shipments *memShipmentRepo
	orders    *memOrderRepo
	notifier  *memNotifier
}

func newFixture(orders ...*domain.Order) *fixture {
	f := &fixture{
		events:    newMemEventRepo(),
		shipments: &memShipmentRepo{},
		orders:    newMemOrderRepo(orders...),
		notifier:  &memNotifier{},
	}
	f.processor = webhook.NewProcessor(testSecret, f.events, f.shipments, f.orders, f.notifier)
	return f
}

func process(t *testing.T, f *fixture, body []byte) (*webhook.Result, error) {
	t.Helper()
	return f.processor.Process(context.Background(), body, easypost.Sign(testSecret, body))
}

func TestProcess_RecordsShipmentEvent(t *testing.T) {
	f := newFixture(&domain.Order{ID: "ord-1", TrackingNumber: "EZ1000000001"})

	body := trackerPayload("evt_1", "EZ1000000001", "in_transit")
	res, err := process(t, f, body)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if res.Outcome != webhook.OutcomeProcessed {
		t.Fatalf("Outcome = %q, want processed", res.Outcome)
	}
	if res.OrderID != "ord-1" || res.EventType != domain.ShipmentInTransit {
		t.Errorf("unexpected result: %+v", res)
	}

	if len(f.shipments.events) != 1 {
		t.Fatalf("shipment events = %d, want 1", len(f.shipments.events))
	}
	se := f.shipments.events[0]
	if se.Description != "latest" {
		t.Errorf("latest detail should be index 0, got %q", se.Description)
	}
	if se.LocationCity != "Lancaster" || se.LocationState != "PA" {
		t.Errorf("location = %q/%q", se.LocationCity, se.LocationState)
	}

	row := f.events.byID(res.EventID)
	if row == nil || row.Status != domain.WebhookProcessed {
		t.Errorf("event row not finalized: %+v", row)
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0].eventType != domain.ShipmentInTransit {
		t.Errorf("notifier calls: %+v", f.notifier.calls)
	}
}

func TestProcess_InvalidSignature(t *testing.T) {
	f := newFixture()

	body := trackerPayload("evt_1", "EZ1", "in_transit")
	_, err := f.processor.Process(context.Background(), body, "hmac-sha256-hex=deadbeef")
	if !errors.Is(err, webhook.ErrInvalidSignature) {
		t.Fatalf("error = %v, want ErrInvalidSignature", err)
	}
	// Nothing persisted on signature failure.
	if len(f.events.events) != 0 {
		t.Errorf("events persisted = %d, want 0", len(f.events.events))
	}
}

func TestProcess_DuplicateDelivery(t *testing.T) {
	f := newFixture(&domain.Order{ID: "ord-1", TrackingNumber: "EZ1000000001"})
	body := trackerPayload("evt_1", "EZ1000000001", "in_transit")

	if _, err := process(t, f, body); err != nil {
		t.Fatalf("first delivery error: %v", err)
	}
	res, err := process(t, f, body)
	if err != nil {
		t.Fatalf("second delivery error: %v", err)
	}
	if res.Outcome != webhook.OutcomeDuplicate {
		t.Errorf("Outcome = %q, want duplicate", res.Outcome)
	}
	if len(f.shipments.events) != 1 {
		t.Errorf("shipment events = %d, want 1 (no double processing)", len(f.shipments.events))
	}
	if len(f.notifier.calls) != 1 {
		t.Errorf("notifier calls = %d, want 1", len(f.notifier.calls))
	}
}

func TestProcess_FailedEventNotRetriedOnRedelivery(t *testing.T) {
	f := newFixture(&domain.Order{ID: "ord-1", TrackingNumber: "EZ1000000001"})
	f.shipments.insertErr = errors.New("disk full")

	body := trackerPayload("evt_1", "EZ1000000001", "delivered")
	if _, err := process(t, f, body); err == nil {
		t.Fatal("expected processing error")
	}

	// The redelivery after a 500 dedupes against the failed row.
	f.shipments.insertErr = nil
	res, err := process(t, f, body)
	if err != nil {
		t.Fatalf("redelivery error: %v", err)
	}
	if res.Outcome != webhook.OutcomeDuplicate {
		t.Errorf("redelivery outcome = %q, want duplicate", res.Outcome)
	}
}

func TestProcess_DeliveredMarksOrder(t *testing.T) {
	f := newFixture(&domain.Order{ID: "ord-1", TrackingNumber: "EZ1000000001"})

	body := trackerPayload("evt_1", "EZ1000000001", "delivered")
	res, err := process(t, f, body)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if res.EventType != domain.ShipmentDelivered {
		t.Errorf("EventType = %q, want delivered", res.EventType)
	}

	at, ok := f.orders.delivered["ord-1"]
	if !ok {
		t.Fatal("order not marked delivered")
	}
	want := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	if !at.Equal(want) {
		t.Errorf("delivered_at = %v, want %v (the detail's timestamp)", at, want)
	}
}

func TestProcess_NonDeliveredDoesNotMarkOrder(t *testing.T) {
	f := newFixture(&domain.Order{ID: "ord-1", TrackingNumber: "EZ1000000001"})

	if _, err := process(t, f, trackerPayload("evt_1", "EZ1000000001", "out_for_delivery")); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if len(f.orders.delivered) != 0 {
		t.Errorf("order marked delivered on out_for_delivery")
	}
}

func TestProcess_UnmatchedTrackingCode(t *testing.T) {
	f := newFixture() // no orders

	body := trackerPayload("evt_1", "EZ_UNKNOWN", "in_transit")
	res, err := process(t, f, body)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if res.Outcome != webhook.OutcomeUnmatched {
		t.Fatalf("Outcome = %q, want unmatched", res.Outcome)
	}

	row := f.events.byID(res.EventID)
	if row == nil || row.Status != domain.WebhookProcessed {
		t.Errorf("unmatched event should be finalized processed: %+v", row)
	}
	if row != nil && row.LastError != "no matching order for tracking code" {
		t.Errorf("note = %q", row.LastError)
	}
	if len(f.shipments.events) != 0 || len(f.notifier.calls) != 0 {
		t.Error("unmatched delivery must not record shipments or notify")
	}
}

func TestProcess_MalformedPayloadAcknowledged(t *testing.T) {
	f := newFixture()

	body := []byte(`{"id": ""}`)
	res, err := process(t, f, body)
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if res.Outcome != webhook.OutcomeMalformed {
		t.Fatalf("Outcome = %q, want malformed", res.Outcome)
	}
	row := f.events.byID(res.EventID)
	if row == nil || row.Status != domain.WebhookFailed {
		t.Errorf("malformed event should be recorded failed: %+v", row)
	}
	if row != nil && row.LastError == "" {
		t.Error("malformed event should record the parse error")
	}
}

func TestProcess_MalformedRecordFailureReturnsError(t *testing.T) {
	f := newFixture()
	f.events.insertErr = errors.New("db down")

	if _, err := process(t, f, []byte(`not json`)); err == nil {
		t.Fatal("expected error when the malformed row cannot be recorded")
	}
}

func TestProcess_EmptyTrackerData(t *testing.T) {
	f := newFixture()

	body := []byte(`{"id": "evt_1", "description": "tracker.updated", "result": {}}`)
	_, err := process(t, f, body)
	if !errors.Is(err, webhook.ErrNoTrackerData) {
		t.Fatalf("error = %v, want ErrNoTrackerData", err)
	}
	// The pending row was recorded then marked failed.
	for _, ev := range f.events.events {
		if ev.Status != domain.WebhookFailed {
			t.Errorf("event status = %q, want failed", ev.Status)
		}
	}
}

func TestProcess_EmptyTrackingDetails(t *testing.T) {
	f := newFixture(&domain.Order{ID: "ord-1", TrackingNumber: "EZ1"})

	body := []byte(`{"id": "evt_1", "result": {"tracking_code": "EZ1", "tracking_details": []}}`)
	_, err := process(t, f, body)
	if !errors.Is(err, webhook.ErrNoTrackingDetails) {
		t.Fatalf("error = %v, want ErrNoTrackingDetails", err)
	}
}

func TestCanonicalStatusMapping(t *testing.T) {
	cases := map[string]domain.ShipmentEventType{
		"pre_transit":          domain.ShipmentInTransit,
		"in_transit":           domain.ShipmentInTransit,
		"unknown":              domain.ShipmentInTransit,
		"out_for_delivery":     domain.ShipmentOutForDelivery,
		"available_for_pickup": domain.ShipmentOutForDelivery,
		"delivered":            domain.ShipmentDelivered,
		"return_to_sender":     domain.ShipmentException,
		"failure":              domain.ShipmentException,
		"cancelled":            domain.ShipmentException,
		"error":                domain.ShipmentException,
		"DELIVERED":            domain.ShipmentDelivered,
		"some_new_status":      domain.ShipmentInTransit,
		"":                     domain.ShipmentInTransit,
	}
	for raw, want := range cases {
		if got := domain.CanonicalEventType(raw); got != want {
			t.Errorf("CanonicalEventType(%q) = %q, want %q", raw, got, want)
		}
	}
}
