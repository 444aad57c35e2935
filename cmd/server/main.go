package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/brandonecarr/amosmiller-sub003/internal/api"
	"github.com/brandonecarr/amosmiller-sub003/internal/config"
	"github.com/brandonecarr/amosmiller-sub003/internal/mail"
	"github.com/brandonecarr/amosmiller-sub003/internal/pkg/logger"
	"github.com/brandonecarr/amosmiller-sub003/internal/repository/postgres"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/notification"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/subscription"
	"github.com/brandonecarr/amosmiller-sub003/internal/service/webhook"
	"github.com/brandonecarr/amosmiller-sub003/internal/worker"
)

// laxRenderer adapts the notification renderer to the generator's simpler
// contract: reminder emails tolerate unresolved tokens.
type laxRenderer struct{ r *notification.Renderer }

func (l laxRenderer) Render(tpl string, vars map[string]interface{}) (string, error) {
	out, warnings, err := l.r.Render(tpl, vars, notification.RenderLax)
	for _, w := range warnings {
		logger.Warn("reminder template token unresolved", "token", w)
	}
	return out, err
}

func openDB(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifeMins) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func newSender(cfg config.MailConfig) (mail.Sender, error) {
	switch cfg.Provider {
	case "resend":
		return mail.NewResendSender(cfg.Resend.APIKey, cfg.Resend.BaseURL, 30*time.Second), nil
	case "ses":
		return mail.NewSESSender(cfg.SES.AccessKey, cfg.SES.SecretKey, cfg.SES.Region), nil
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
	}
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	db, err := openDB(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, falling back to advisory locks", "error", err.Error())
			redisClient = nil
		}
		cancel()
	}

	sender, err := newSender(cfg.Mail)
	if err != nil {
		log.Fatalf("Failed to configure mail sender: %v", err)
	}

	// Repositories
	eventRepo := postgres.NewWebhookEventRepo(db)
	shipmentRepo := postgres.NewShipmentEventRepo(db)
	orderRepo := postgres.NewOrderRepo(db)
	notifRepo := postgres.NewNotificationRepo(db)
	subRepo := postgres.NewSubscriptionRepo(db)

	// Services
	dispatcher := notification.NewDispatcher(notifRepo, notifRepo, orderRepo, notifRepo,
		sender, cfg.Mail.FromName, cfg.Mail.FromEmail)
	processor := webhook.NewProcessor(cfg.EasyPost.WebhookSecret,
		eventRepo, shipmentRepo, orderRepo, dispatcher)
	generator := subscription.NewGenerator(subRepo, orderRepo, sender, notifRepo,
		laxRenderer{notification.NewRenderer()}, cfg.Mail.FromName, cfg.Mail.FromEmail)

	// Scheduler
	var scheduler *worker.SubscriptionScheduler
	if cfg.Scheduler.Enabled {
		scheduler = worker.NewSubscriptionScheduler(db, redisClient, generator)
		scheduler.SetTickInterval(time.Duration(cfg.Scheduler.TickIntervalMinutes) * time.Minute)
		scheduler.SetRunHourUTC(cfg.Scheduler.RunHourUTC)
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
	}

	handlers := api.NewHandlers(processor, generator, shipmentRepo, notifRepo)
	server := api.NewServer(cfg.Server, handlers, cfg.Cron.Secret)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		errCh <- server.ListenAndServe(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("server error", "error", err.Error())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err.Error())
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	// Let in-flight notification goroutines finish their delay windows or
	// time out before the process exits.
	dispatcher.Wait()
	if redisClient != nil {
		redisClient.Close()
	}
}
