package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/brandonecarr/amosmiller-sub003/internal/domain"
	"github.com/brandonecarr/amosmiller-sub003/internal/mail"
	"github.com/brandonecarr/amosmiller-sub003/internal/pkg/logger"
)

// reminderLeadDays is how far ahead of the next order date reminder emails
// go out.
const reminderLeadDays = 2

// reminderTemplateKey is the template store key for reminder emails.
const reminderTemplateKey = "subscription_reminder"

// ItemResult is the per-subscription outcome of one generator run.
type ItemResult struct {
	SubscriptionID string `json:"subscriptionId"`
	Success        bool   `json:"success"`
	OrderID        string `json:"orderId,omitempty"`
	OrderNumber    string `json:"orderNumber,omitempty"`
	Error          string `json:"error,omitempty"`
}

// RunSummary aggregates one ProcessAllDue run. It is the contract consumed
// by both the admin-triggered run and the scheduled run.
type RunSummary struct {
	Processed    int          `json:"processed"`
	SuccessCount int          `json:"successCount"`
	ErrorCount   int          `json:"errorCount"`
	Details      []ItemResult `json:"details"`
}

// ReminderSummary aggregates one SendUpcomingReminders run.
type ReminderSummary struct {
	RemindersSent      int      `json:"remindersSent"`
	TotalSubscriptions int      `json:"totalSubscriptions"`
	Errors             []string `json:"errors,omitempty"`
}

// TemplateStore supplies the reminder email template.
type TemplateStore interface {
	GetTemplate(ctx context.Context, key string) (*domain.EmailTemplate, error)
}

// Generator materializes due subscriptions into orders.
type Generator struct {
	repo      Repository
	orders    OrderCreator
	sender    mail.Sender
	templates TemplateStore
	renderer  Renderer

	fromName  string
	fromEmail string
	now       func() time.Time
}

// Renderer is the template rendering hook the generator needs for reminder
// emails. notification.Renderer satisfies it via an adapter in cmd/server.
type Renderer interface {
	Render(tpl string, vars map[string]interface{}) (string, error)
}

// NewGenerator wires a subscription generator. sender, templates, and
// renderer may only be exercised by SendUpcomingReminders.
func NewGenerator(repo Repository, orders OrderCreator, sender mail.Sender, templates TemplateStore, renderer Renderer, fromName, fromEmail string) *Generator {
	return &Generator{
		repo:      repo,
		orders:    orders,
		sender:    sender,
		templates: templates,
		renderer:  renderer,
		fromName:  fromName,
		fromEmail: fromEmail,
		now:       time.Now,
	}
}

// ProcessAllDue materializes an order for every active subscription whose
// next_order_date has arrived. Per-subscription failures are collected in
// the summary; only the initial due query can fail the run.
func (g *Generator) ProcessAllDue(ctx context.Context) (*RunSummary, error) {
	due, err := g.repo.ListDue(ctx, g.now())
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}

	summary := &RunSummary{Processed: len(due)}
	for i := range due {
		res := g.materialize(ctx, &due[i])
		if res.Success {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
		}
		summary.Details = append(summary.Details, res)
	}

	logger.Info("subscription run complete",
		"due", summary.Processed, "succeeded", summary.SuccessCount, "failed", summary.ErrorCount)
	return summary, nil
}

// materialize creates one order for one subscription and advances its
// schedule. Never panics the batch; every failure is an ItemResult.
func (g *Generator) materialize(ctx context.Context, sub *domain.Subscription) ItemResult {
	res := ItemResult{SubscriptionID: sub.ID}

	items, err := g.repo.ListItems(ctx, sub.ID)
	if err != nil {
		res.Error = fmt.Sprintf("load items: %v", err)
		return res
	}
	if len(items) == 0 {
		res.Error = ErrEmptySubscription.Error()
		return res
	}

	subtotal := 0.0
	for _, it := range items {
		subtotal += it.LineTotal()
	}

	orderID, orderNumber, err := g.orders.CreateSubscriptionOrder(ctx, sub, items, subtotal)
	if err != nil {
		res.Error = fmt.Sprintf("create order: %v", err)
		return res
	}
	res.OrderID = orderID
	res.OrderNumber = orderNumber

	// Advance only now that the order exists. If this write fails the next
	// run will see the subscription as still due and create a second order;
	// surfacing the failure here is the only recovery story.
	next := sub.Frequency.Next(sub.NextOrderDate)
	if err := g.repo.AdvanceNextOrderDate(ctx, sub.ID, next); err != nil {
		res.Error = fmt.Sprintf("order %s created but schedule not advanced: %v", orderNumber, err)
		return res
	}

	res.Success = true
	return res
}

// SendUpcomingReminders emails every customer whose subscription generates
// an order in exactly two days. A pricing preview is computed the same way
// the generator prices a real order, but nothing is written.
func (g *Generator) SendUpcomingReminders(ctx context.Context) (*ReminderSummary, error) {
	target := g.now().AddDate(0, 0, reminderLeadDays)
	subs, err := g.repo.ListDueOn(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("list upcoming subscriptions: %w", err)
	}

	summary := &ReminderSummary{TotalSubscriptions: len(subs)}
	for i := range subs {
		if err := g.remind(ctx, &subs[i]); err != nil {
			summary.Errors = append(summary.Errors,
				fmt.Sprintf("%s: %v", subs[i].ID, err))
			continue
		}
		summary.RemindersSent++
	}
	return summary, nil
}

func (g *Generator) remind(ctx context.Context, sub *domain.Subscription) error {
	items, err := g.repo.ListItems(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	if len(items) == 0 {
		return ErrEmptySubscription
	}

	subtotal := 0.0
	for _, it := range items {
		subtotal += it.LineTotal()
	}

	profile, err := g.repo.OwnerProfile(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if profile.Email == "" {
		return fmt.Errorf("profile %s has no email", profile.ID)
	}

	tpl, err := g.templates.GetTemplate(ctx, reminderTemplateKey)
	if err != nil {
		return fmt.Errorf("load template: %w", err)
	}

	name := profile.DisplayName
	if name == "" {
		name = profile.Email
	}
	vars := map[string]interface{}{
		"customer_name":     name,
		"subscription_name": sub.Name,
		"next_order_date":   sub.NextOrderDate.Format("January 2, 2006"),
		"order_total":       fmt.Sprintf("$%.2f", subtotal),
	}

	subject, err := g.renderer.Render(tpl.Subject, vars)
	if err != nil {
		return fmt.Errorf("render subject: %w", err)
	}
	body, err := g.renderer.Render(tpl.Body, vars)
	if err != nil {
		return fmt.Errorf("render body: %w", err)
	}

	res, err := g.sender.Send(ctx, &mail.Message{
		To:        profile.Email,
		FromName:  g.fromName,
		FromEmail: g.fromEmail,
		Subject:   subject,
		HTML:      body,
	})
	if err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("reminder rejected: %w", res.Error)
	}

	logger.Info("subscription reminder sent", "subscription_id", sub.ID, "recipient", profile.Email)
	return nil
}
