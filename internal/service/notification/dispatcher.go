package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
	"github.com/brandonecarr/amosmiller-sub003/internal/mail"
	"github.com/brandonecarr/amosmiller-sub003/internal/pkg/logger"
)

// dispatchTimeout bounds one dispatch beyond its configured delay.
const dispatchTimeout = 2 * time.Minute

// Dispatcher sends shipment notification emails. Dispatch detaches from the
// caller; the webhook response never waits on an email.
type Dispatcher struct {
	settings  SettingsRepo
	templates TemplateRepo
	orders    OrderRepo
	logRepo   LogRepo
	sender    mail.Sender
	renderer  *Renderer

	fromName  string
	fromEmail string

	wg    sync.WaitGroup
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher wires a dispatcher. fromName/fromEmail are the envelope
// sender for all notification emails.
func NewDispatcher(settings SettingsRepo, templates TemplateRepo, orders OrderRepo, logRepo LogRepo, sender mail.Sender, fromName, fromEmail string) *Dispatcher {
	return &Dispatcher{
		settings:  settings,
		templates: templates,
		orders:    orders,
		logRepo:   logRepo,
		sender:    sender,
		renderer:  NewRenderer(),
		fromName:  fromName,
		fromEmail: fromEmail,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatch starts a best-effort notification for the event in the
// background and returns immediately. Satisfies webhook.Notifier.
func (d *Dispatcher) Dispatch(eventType domain.ShipmentEventType, orderID string) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(eventType, orderID)
	}()
}

// Wait blocks until all in-flight dispatches finish. Called on shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// run executes one dispatch with its own lifetime, independent of the
// webhook request that triggered it.
func (d *Dispatcher) run(eventType domain.ShipmentEventType, orderID string) {
	setting, err := d.settings.GetSetting(context.Background(), eventType)
	if errors.Is(err, ErrSettingNotFound) {
		return
	}
	if err != nil {
		logger.Warn("notification setting lookup failed", "event_type", string(eventType), "error", err.Error())
		return
	}
	if !setting.IsEnabled {
		return
	}

	delay := time.Duration(setting.DelayMinutes) * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), delay+dispatchTimeout)
	defer cancel()

	if delay > 0 {
		if err := d.sleep(ctx, delay); err != nil {
			return
		}
	}

	recipient, sendErr := d.send(ctx, eventType, orderID)
	if sendErr != nil {
		// Swallowed: record and move on. The webhook already succeeded.
		if recipient == "" {
			recipient = "unknown"
		}
		d.logAttempt(ctx, &domain.NotificationLogEntry{
			OrderID:          orderID,
			RecipientEmail:   recipient,
			NotificationType: string(eventType),
			Status:           domain.NotificationFailed,
			ErrorMessage:     sendErr.Error(),
		})
		logger.Warn("notification dispatch failed",
			"order_id", orderID, "event_type", string(eventType), "error", sendErr.Error())
	}
}

// send performs the fallible middle of a dispatch and returns the resolved
// recipient (empty if resolution never happened) plus the first error.
func (d *Dispatcher) send(ctx context.Context, eventType domain.ShipmentEventType, orderID string) (string, error) {
	order, profile, err := d.orders.GetOrderWithCustomer(ctx, orderID)
	if err != nil {
		return "", fmt.Errorf("load order: %w", err)
	}

	recipient := order.GuestEmail
	if recipient == "" && profile != nil {
		recipient = profile.Email
	}
	if recipient == "" {
		return "", ErrNoRecipientEmail
	}

	tpl, err := d.templates.GetTemplate(ctx, string(eventType))
	if err != nil {
		return recipient, fmt.Errorf("load template: %w", err)
	}

	vars := buildVars(order, profile, recipient)

	subject, warnings, err := d.renderer.Render(tpl.Subject, vars, RenderLax)
	if err != nil {
		return recipient, fmt.Errorf("render subject: %w", err)
	}
	body, bodyWarnings, err := d.renderer.Render(tpl.Body, vars, RenderLax)
	if err != nil {
		return recipient, fmt.Errorf("render body: %w", err)
	}
	if n := len(warnings) + len(bodyWarnings); n > 0 {
		logger.Warn("notification template has unresolved tokens",
			"event_type", string(eventType),
			"tokens", strings.Join(append(warnings, bodyWarnings...), ","))
	}

	res, err := d.sender.Send(ctx, &mail.Message{
		To:        recipient,
		FromName:  d.fromName,
		FromEmail: d.fromEmail,
		Subject:   subject,
		HTML:      body,
	})
	if err != nil {
		return recipient, fmt.Errorf("send email: %w", err)
	}
	if !res.Success {
		return recipient, fmt.Errorf("email rejected: %w", res.Error)
	}

	sentAt := d.now()
	d.logAttempt(ctx, &domain.NotificationLogEntry{
		OrderID:           orderID,
		RecipientEmail:    recipient,
		NotificationType:  string(eventType),
		Status:            domain.NotificationSent,
		ProviderMessageID: res.MessageID,
		SentAt:            &sentAt,
	})
	return recipient, nil
}

// logAttempt inserts an audit row. Insert failures are logged, never raised.
func (d *Dispatcher) logAttempt(ctx context.Context, entry *domain.NotificationLogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if err := d.logRepo.InsertLogEntry(ctx, entry); err != nil {
		logger.Error("notification log insert failed",
			"order_id", entry.OrderID, "error", err.Error())
	}
}

// buildVars assembles the closed variable map available to notification
// templates.
func buildVars(order *domain.Order, profile *domain.CustomerProfile, recipient string) map[string]interface{} {
	name := ""
	if profile != nil {
		name = profile.DisplayName
	}
	if name == "" {
		if i := strings.Index(recipient, "@"); i > 0 {
			name = recipient[:i]
		} else {
			name = recipient
		}
	}

	trackingNumber := order.TrackingNumber
	if trackingNumber == "" {
		trackingNumber = "Not available"
	}
	trackingURL := order.TrackingURL
	if trackingURL == "" {
		trackingURL = "#"
	}

	total := "$0.00"
	if order.Total > 0 {
		total = fmt.Sprintf("$%.2f", order.Total)
	}

	return map[string]interface{}{
		"customer_name":   name,
		"order_number":    order.OrderNumber,
		"tracking_number": trackingNumber,
		"tracking_url":    trackingURL,
		"carrier":         strings.ToUpper(order.Carrier),
		"order_total":     total,
	}
}
