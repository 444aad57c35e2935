package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// CronSecretHeader carries the shared secret for the manual trigger routes.
const CronSecretHeader = "X-Cron-Secret"

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, cronSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://amosmillerorganicfarm.com", "http://localhost:5173"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", CronSecretHeader},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	// Webhooks authenticate with their own HMAC signature, not the cron secret.
	r.Post("/webhooks/easypost", h.HandleEasyPostWebhook)

	r.Route("/api", func(r chi.Router) {
		r.Route("/subscriptions", func(r chi.Router) {
			r.Use(requireCronSecret(cronSecret))
			r.Post("/process", h.ProcessSubscriptions)
			r.Post("/reminders", h.SendSubscriptionReminders)
		})

		r.Get("/orders/{orderID}/shipments", h.GetOrderShipments)
		r.Get("/notifications/log", h.GetNotificationLog)
	})

	return r
}

// requireCronSecret gates manual trigger routes behind a shared secret,
// compared in constant time.
func requireCronSecret(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			got := req.Header.Get(CronSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				respondError(w, http.StatusUnauthorized, "invalid cron secret")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
