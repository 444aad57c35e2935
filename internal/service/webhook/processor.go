package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
	"github.com/brandonecarr/amosmiller-sub003/internal/easypost"
	"github.com/brandonecarr/amosmiller-sub003/internal/pkg/logger"
)

// Outcome classifies how a webhook delivery was concluded. Every outcome
// except a returned error maps to a 200 response.
type Outcome string

const (
	// OutcomeProcessed means a shipment event was recorded.
	OutcomeProcessed Outcome = "processed"
	// OutcomeDuplicate means this provider event id was already recorded.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeUnmatched means the tracking code belongs to no known order.
	OutcomeUnmatched Outcome = "unmatched"
	// OutcomeMalformed means the payload could not be parsed; the failure
	// was recorded so the provider stops retrying.
	OutcomeMalformed Outcome = "malformed"
)

// Result reports the conclusion of one webhook delivery.
type Result struct {
	Outcome   Outcome
	EventID   string
	OrderID   string
	EventType domain.ShipmentEventType
}

// Processor runs the webhook ingestion pipeline. All dependencies are
// injected; the processor holds no clients of its own.
type Processor struct {
	secret    string
	events    EventRepo
	shipments ShipmentRepo
	orders    OrderRepo
	notifier  Notifier
	now       func() time.Time
}

// NewProcessor creates a webhook processor. secret is the shared HMAC key
// for inbound deliveries.
func NewProcessor(secret string, events EventRepo, shipments ShipmentRepo, orders OrderRepo, notifier Notifier) *Processor {
	return &Processor{
		secret:    secret,
		events:    events,
		shipments: shipments,
		orders:    orders,
		notifier:  notifier,
		now:       time.Now,
	}
}

// Process handles one raw webhook delivery.
//
// Error semantics: ErrInvalidSignature means nothing was persisted and the
// caller responds 401. Any other returned error means the event row was
// recorded (pending or failed) and the caller responds 500 so the provider
// redelivers; the dedup check makes that redelivery safe. A nil error with
// any Outcome is acknowledged with 200.
func (p *Processor) Process(ctx context.Context, body []byte, signature string) (*Result, error) {
	if !easypost.VerifySignature(p.secret, body, signature) {
		return nil, ErrInvalidSignature
	}

	ev, parseErr := easypost.ParseEvent(body)
	if parseErr != nil {
		return p.recordMalformed(ctx, body, signature, parseErr)
	}

	// Dedup: any previously recorded row for this provider event id, in any
	// status, means this delivery has been handled (or is being handled).
	if existing, err := p.events.FindByProviderID(ctx, domain.WebhookSourceEasyPost, ev.ID); err == nil {
		logger.Debug("duplicate webhook delivery", "provider_event_id", ev.ID, "status", string(existing.Status))
		return &Result{Outcome: OutcomeDuplicate, EventID: existing.ID}, nil
	} else if !errors.Is(err, ErrEventNotFound) {
		return nil, fmt.Errorf("dedup lookup: %w", err)
	}

	row := &domain.WebhookEvent{
		ID:              uuid.New().String(),
		Source:          domain.WebhookSourceEasyPost,
		ProviderEventID: ev.ID,
		EventType:       ev.Description,
		RawPayload:      body,
		Signature:       signature,
		Status:          domain.WebhookPending,
		ReceivedAt:      p.now(),
	}
	if err := p.events.Insert(ctx, row); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			// Lost the insert race to a concurrent delivery of the same event.
			return &Result{Outcome: OutcomeDuplicate}, nil
		}
		return nil, fmt.Errorf("record webhook event: %w", err)
	}

	res, err := p.processTracker(ctx, row, ev, body)
	if err != nil {
		if mErr := p.events.MarkFailed(ctx, row.ID, err.Error()); mErr != nil {
			logger.Error("mark webhook failed", "event_id", row.ID, "error", mErr.Error())
		}
		return nil, err
	}
	return res, nil
}

// processTracker runs steps 4-8 against an already-recorded pending event.
func (p *Processor) processTracker(ctx context.Context, row *domain.WebhookEvent, ev *easypost.Event, body []byte) (*Result, error) {
	tracker := ev.Result
	if tracker.TrackingCode == "" {
		return nil, ErrNoTrackerData
	}
	if len(tracker.TrackingDetails) == 0 {
		return nil, ErrNoTrackingDetails
	}

	order, err := p.orders.FindByTrackingCode(ctx, tracker.TrackingCode)
	if errors.Is(err, ErrOrderNotFound) {
		// Not ours to manage. Terminal success: no retry wanted.
		if mErr := p.events.MarkProcessed(ctx, row.ID, "no matching order for tracking code"); mErr != nil {
			return nil, fmt.Errorf("finalize unmatched event: %w", mErr)
		}
		logger.Info("webhook for unmanaged tracking code", "tracking_code", tracker.TrackingCode)
		return &Result{Outcome: OutcomeUnmatched, EventID: row.ID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve order: %w", err)
	}

	// The provider returns tracking_details newest-first; index 0 is the
	// latest event. This ordering is assumed, not sorted.
	latest := tracker.TrackingDetails[0]
	canonical := domain.CanonicalEventType(latest.Status)
	occurredAt := latest.OccurredAt()
	if occurredAt.IsZero() {
		occurredAt = p.now()
	}

	shipment := &domain.ShipmentEvent{
		ID:              uuid.New().String(),
		OrderID:         order.ID,
		EventType:       canonical,
		Carrier:         tracker.Carrier,
		TrackingCode:    tracker.TrackingCode,
		OccurredAt:      occurredAt,
		Description:     latest.Message,
		LocationCity:    latest.TrackingLocation.City,
		LocationState:   latest.TrackingLocation.State,
		ProviderEventID: ev.ID,
		RawData:         body,
	}
	if err := p.shipments.Insert(ctx, shipment); err != nil {
		return nil, fmt.Errorf("record shipment event: %w", err)
	}

	if canonical == domain.ShipmentDelivered {
		if err := p.orders.MarkDelivered(ctx, order.ID, occurredAt); err != nil {
			return nil, fmt.Errorf("mark order delivered: %w", err)
		}
	}

	// Best effort: the dispatcher owns its own failures.
	p.notifier.Dispatch(canonical, order.ID)

	if err := p.events.MarkProcessed(ctx, row.ID, ""); err != nil {
		return nil, fmt.Errorf("finalize event: %w", err)
	}

	return &Result{
		Outcome:   OutcomeProcessed,
		EventID:   row.ID,
		OrderID:   order.ID,
		EventType: canonical,
	}, nil
}

// recordMalformed persists a failed event row for an unparseable payload so
// the provider can be acknowledged and stops redelivering. The synthetic
// provider event id keeps the row out of the dedup space of real events.
func (p *Processor) recordMalformed(ctx context.Context, body []byte, signature string, cause error) (*Result, error) {
	row := &domain.WebhookEvent{
		ID:              uuid.New().String(),
		Source:          domain.WebhookSourceEasyPost,
		ProviderEventID: "malformed-" + uuid.New().String(),
		EventType:       "unknown",
		RawPayload:      body,
		Signature:       signature,
		Status:          domain.WebhookFailed,
		ReceivedAt:      p.now(),
		LastError:       cause.Error(),
	}
	if err := p.events.Insert(ctx, row); err != nil {
		return nil, fmt.Errorf("record malformed webhook: %w", err)
	}
	logger.Warn("malformed webhook payload recorded", "event_id", row.ID, "error", cause.Error())
	return &Result{Outcome: OutcomeMalformed, EventID: row.ID}, nil
}
