package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/brandonecarr/amosmiller-sub003/internal/easypost"
	"github.com/brandonecarr/amosmiller-sub003/internal/pkg/logger"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/notification"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/subscription"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/webhook"
)

// maxWebhookBody caps inbound webhook payloads at 1 MB.
const maxWebhookBody = 1 << 20

// WebhookProcessor handles one raw webhook delivery.
type WebhookProcessor interface {
	Process(ctx context.Context, body []byte, signature string) (*webhook.Result, error)
}

// SubscriptionRunner runs the subscription batch operations.
type SubscriptionRunner interface {
	ProcessAllDue(ctx context.Context) (*subscription.RunSummary, error)
	SendUpcomingReminders(ctx context.Context) (*subscription.ReminderSummary, error)
}

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	processor     WebhookProcessor
	subscriptions SubscriptionRunner
	shipments     webhook.ShipmentRepo
	notifLog      notification.LogRepo
}

// NewHandlers creates the handler set.
func NewHandlers(processor WebhookProcessor, subscriptions SubscriptionRunner, shipments webhook.ShipmentRepo, notifLog notification.LogRepo) *Handlers {
	return &Handlers{
		processor:     processor,
		subscriptions: subscriptions,
		shipments:     shipments,
		notifLog:      notifLog,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleEasyPostWebhook receives carrier tracking webhooks. Signature
// failures get 401 and processing failures get 500 so the provider retries;
// everything else is acknowledged with 200.
func (h *Handlers) HandleEasyPostWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	signature := r.Header.Get(easypost.SignatureHeader)
	result, err := h.processor.Process(r.Context(), body, signature)
	if err == webhook.ErrInvalidSignature {
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	if err != nil {
		logger.Error("webhook processing failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"outcome":  string(result.Outcome),
		"event_id": result.EventID,
	})
}

// ProcessSubscriptions materializes orders for all due subscriptions.
func (h *Handlers) ProcessSubscriptions(w http.ResponseWriter, r *http.Request) {
	summary, err := h.subscriptions.ProcessAllDue(r.Context())
	if err != nil {
		logger.Error("subscription run failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "subscription run failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// SendSubscriptionReminders emails customers whose next order is coming up.
func (h *Handlers) SendSubscriptionReminders(w http.ResponseWriter, r *http.Request) {
	summary, err := h.subscriptions.SendUpcomingReminders(r.Context())
	if err != nil {
		logger.Error("reminder run failed", "error", err.Error())
		respondError(w, http.StatusInternalServerError, "reminder run failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// GetOrderShipments returns an order's shipment history, newest first.
func (h *Handlers) GetOrderShipments(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	events, err := h.shipments.ListByOrder(r.Context(), orderID)
	if err != nil {
		logger.Error("list shipment events failed", "order_id", orderID, "error", err.Error())
		respondError(w, http.StatusInternalServerError, "failed to list shipment events")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": orderID,
		"events":   events,
		"count":    len(events),
	})
}

// GetNotificationLog returns the dispatch history for an order.
func (h *Handlers) GetNotificationLog(w http.ResponseWriter, r *http.Request) {
	orderID := r.URL.Query().Get("order_id")
	if orderID == "" {
		respondError(w, http.StatusBadRequest, "order_id is required")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := h.notifLog.ListByOrder(r.Context(), orderID, limit)
	if err != nil {
		logger.Error("list notification log failed", "order_id", orderID, "error", err.Error())
		respondError(w, http.StatusInternalServerError, "failed to list notification log")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"order_id": orderID,
		"entries":  entries,
		"count":    len(entries),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
