package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	adminhandler "github.com/testme/testme-backend/internal/admin/handler"
	"github.com/testme/testme-backend/internal/admin/jwt"
	adminservice "github.com/testme/testme-backend/internal/admin/service"
	"github.com/testme/testme-backend/internal/booking/consumers"
	"github.com/testme/testme-backend/internal/booking/events"
	bookinghandler "github.com/testme/testme-backend/internal/booking/handler"
	"github.com/testme/testme-backend/internal/booking/repository"
	bookingservice "github.com/testme/testme-backend/internal/booking/service"
	"github.com/testme/testme-backend/internal/booking/storage"
	"github.com/testme/testme-backend/internal/documents"
	licensinghandler "github.com/testme/testme-backend/internal/licensing/handler"
	"github.com/testme/testme-backend/internal/licensing/recognizer"
	licensingservice "github.com/testme/testme-backend/internal/licensing/service"
	"github.com/testme/testme-backend/internal/reminder"
	"github.com/testme/testme-backend/internal/sms"
	"github.com/testme/testme-backend/pkg/config"
	"github.com/testme/testme-backend/pkg/httputil"
	"github.com/testme/testme-backend/pkg/i18n"
	"github.com/testme/testme-backend/pkg/logger"
	"github.com/testme/testme-backend/pkg/messaging"
)

const serviceName = "booking-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment, cfg.Server.LogLevel)
	log.Info().Msg("starting Booking Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Booking store
	store, storeCloser, err := repository.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open booking store")
	}
	defer storeCloser.Close()

	// Recognition strategies
	registry, recognizerCloser, err := recognizer.FromConfig(ctx, &cfg.Recognition, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build recognition strategies")
	}
	defer recognizerCloser.Close()
	log.Info().Strs("strategies", registry.Names()).Msg("recognition strategies ready")

	// SMS relay. A gateway without credentials still starts; sends then
	// fail with a configuration error.
	gateway, err := sms.NewGateway(&cfg.SMS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sms gateway")
	}
	relay := sms.NewRelay(gateway, &cfg.SMS, log)

	// License image archive
	var archive storage.Archive
	if cfg.Storage.ImageBucket != "" {
		s3Archive, err := storage.NewS3Archive(ctx, cfg.Storage.AWSRegion, cfg.Storage.ImageBucket, cfg.Storage.ImagePrefix)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create license image archive")
		}
		archive = s3Archive
	} else {
		log.Info().Msg("license image archive disabled")
	}

	// RabbitMQ is optional; without it the admin is notified inline
	var (
		rmq       *messaging.RabbitMQ
		publisher *events.BookingEventPublisher
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		publisher, err = events.NewBookingEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}

		adminNotifier, err := consumers.NewAdminNotifier(rmq, relay, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create admin notifier")
		}
		if err := adminNotifier.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start admin notifier")
		}
		rmq.Watch(ctx, adminNotifier.Start)
	}

	// Services
	licensingService := licensingservice.NewService(registry, &cfg.Recognition, log)
	bookingService := bookingservice.NewBookingService(store, archive, publisher, relay, cfg.Recognition.MaxUploadBytes, log)

	tokens := jwt.NewManager(&cfg.JWT)
	authService, err := adminservice.NewAuthService(&cfg.Admin, tokens, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create admin auth service")
	}

	scanner, err := reminder.NewScanner(store, relay, publisher, &cfg.Reminder, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create reminder scanner")
	}

	var scheduler *reminder.Scheduler
	if cfg.Reminder.Enabled {
		scheduler = reminder.NewScheduler(scanner, cfg.Reminder.Interval, cfg.Reminder.RunOnStart, log)
		scheduler.Start(ctx)
	}

	// Document questions. Without a Gemini key the endpoint answers with a
	// configuration error.
	var embedder documents.Embedder
	var chat documents.Chat
	gemini, err := documents.NewGemini(ctx, &cfg.Documents)
	if err != nil {
		log.Warn().Err(err).Msg("document questions disabled")
	} else {
		defer gemini.Close()
		embedder, chat = gemini, gemini
	}
	documentService := documents.NewService(embedder, chat, &cfg.Documents, log)

	// Handlers
	limiter := httputil.NewIPRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	licensingHandler := licensinghandler.NewHandler(licensingService, log)
	bookingHandler := bookinghandler.NewBookingHandler(bookingService, log)
	authHandler := adminhandler.NewAuthHandler(authService, log)
	smsHandler := sms.NewHandler(relay, authHandler.IsAdmin, log)
	reminderHandler := reminder.NewHandler(scanner, log)
	documentHandler := documents.NewHandler(documentService, log)

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Accept-Language"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(i18n.Middleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]any{
			"status":  "healthy",
			"service": serviceName,
			"store":   store.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		licensingHandler.Routes(r, limiter)
		r.With(limiter.Middleware(log)).Post("/sms/send", smsHandler.Send)
		bookingHandler.Routes(r, limiter)
		documentHandler.Routes(r, limiter)
		authHandler.Routes(r, limiter)

		// Admin dashboard
		r.Group(func(r chi.Router) {
			r.Use(authHandler.RequireAdmin)
			bookingHandler.AdminRoutes(r)
			reminderHandler.AdminRoutes(r)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the scheduler and consumers
	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
