package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ReMyndassessments/concern2care-api/internal/classifier"
	"github.com/ReMyndassessments/concern2care-api/internal/config"
	"github.com/ReMyndassessments/concern2care-api/internal/database"
	"github.com/ReMyndassessments/concern2care-api/internal/handler"
	"github.com/ReMyndassessments/concern2care-api/internal/middleware"
	"github.com/ReMyndassessments/concern2care-api/internal/models"
	"github.com/ReMyndassessments/concern2care-api/internal/repository"
	"github.com/ReMyndassessments/concern2care-api/internal/router"
	"github.com/ReMyndassessments/concern2care-api/internal/service"
	"github.com/ReMyndassessments/concern2care-api/pkg/ai"
	"github.com/ReMyndassessments/concern2care-api/pkg/mailer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Submission{}, &models.AuditEntry{}, &models.FeatureFlag{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSUrl != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSUrl)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	urgentClassifier := classifier.NewDefault()
	if cfg.UrgentTermsFile != "" {
		urgentClassifier, err = classifier.NewFromFile(cfg.UrgentTermsFile)
		if err != nil {
			log.Fatalf("failed to load urgent terms file: %v", err)
		}
	}

	generator := buildGenerator(cfg, logger)
	dispatcher := buildDispatcher(cfg, logger)

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	flagRepo := repository.NewFlagRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)

	events := service.NewEventStream(redisClient, natsConn, logger)
	machine := service.NewStateMachine(submissionRepo, logger)
	flagService := service.NewFlagService(flagRepo, redisClient, validate, logger)
	intakeService := service.NewIntakeService(submissionRepo, urgentClassifier, generator, flagService, events, redisClient, validate, cfg.ReviewWindow, cfg.DedupeTTL, logger)
	reviewService := service.NewAdminReviewService(submissionRepo, auditRepo, machine, dispatcher, generator, events, validate, logger)
	analyticsService := service.NewAnalyticsService(analyticsRepo, redisClient, cfg.AnalyticsCacheTTL, logger)
	reportService := service.NewReportService(submissionRepo, auditRepo, logger)
	scheduler := service.NewAutoSendScheduler(submissionRepo, machine, dispatcher, flagService, events, cfg.SchedulerInterval, logger)

	referralHandler := handler.NewReferralHandler(intakeService, logger)
	adminSubmissions := handler.NewAdminSubmissionHandler(reviewService, reportService, logger)
	adminFlags := handler.NewAdminFlagHandler(flagService, logger)
	adminAnalytics := handler.NewAdminAnalyticsHandler(analyticsService, logger)
	eventsHandler := handler.NewEventsHandler(events, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ReferralHandler:  referralHandler,
		AdminSubmissions: adminSubmissions,
		AdminFlags:       adminFlags,
		AdminAnalytics:   adminAnalytics,
		Events:           eventsHandler,
		JWTMiddleware:    middleware.JWTProtected(cfg.JWTSecret),
		RequireAdminRole: middleware.RequireRole("admin", "counselor"),
		IntakeRateLimit:  middleware.RateLimit("referral-intake", 5, time.Minute),
	})

	backgroundCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	events.Start(backgroundCtx)
	go scheduler.Run(backgroundCtx)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app, cancelBackground)
}

func buildGenerator(cfg config.Config, logger zerolog.Logger) ai.Generator {
	switch cfg.AIProvider {
	case "anthropic":
		generator, err := ai.NewAnthropicGenerator(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
		if err != nil {
			log.Fatalf("failed to create anthropic generator: %v", err)
		}
		return generator
	default:
		if cfg.OpenAIAPIKey == "" {
			logger.Warn().Msg("no openai api key configured, strategy generation disabled")
			return nil
		}
		generator, err := ai.NewOpenAIGenerator(ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Logger: logger})
		if err != nil {
			log.Fatalf("failed to create openai generator: %v", err)
		}
		return generator
	}
}

func buildDispatcher(cfg config.Config, logger zerolog.Logger) service.DeliveryDispatcher {
	if cfg.SendgridAPIKey == "" {
		logger.Warn().Msg("no sendgrid api key configured, deliveries will be logged only")
		return service.NewLogDeliveryDispatcher(logger)
	}

	sender, err := mailer.New(mailer.Config{
		APIKey:    cfg.SendgridAPIKey,
		FromName:  cfg.MailFromName,
		FromEmail: cfg.MailFromEmail,
		Subject:   cfg.MailSubject,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create mailer: %v", err)
	}

	return service.NewEmailDeliveryDispatcher(sender, logger)
}

func waitForShutdown(app *fiber.App, cancelBackground context.CancelFunc) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	cancelBackground()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
