package main

import (
	"context"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"propflow/automation"
	"propflow/config"
	"propflow/gateway"
	"propflow/repository"
	"propflow/routes"
	"propflow/worker"
)

func main() {
	logger := log.New(os.Stdout, "SERVER: ", log.Ldate|log.Ltime|log.Lshortfile)

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Error reporting is optional; an empty DSN disables it
	if config.AppConfig.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: config.AppConfig.SentryDSN}); err != nil {
			logger.Printf("Sentry initialization failed: %v", err)
		}
	}

	// Initialize database connection
	if err := config.ConnectDB(); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Create Fiber app
	app := fiber.New()

	// Repositories
	sequences := repository.NewSequenceRepository(config.DB)
	contacts := repository.NewContactRepository(config.DB)
	templates := repository.NewTemplateRepository(config.DB)
	properties := repository.NewPropertyRepository(config.DB)
	agents := repository.NewAgentRepository(config.DB)
	comms := repository.NewCommunicationRepository(config.DB)

	// Outbound message gateway
	emailSender := gateway.NewEmailSender(config.AppConfig.SMTP, config.AppConfig.BaseURL, config.AppConfig.JWTSecret)
	smsSender := gateway.NewSMSSender(config.AppConfig.SMS)
	dispatcher := gateway.NewDispatcher(emailSender, smsSender, log.New(os.Stdout, "GATEWAY: ", log.LstdFlags))

	engine := automation.NewEngine(
		sequences, contacts, templates, properties, agents, comms,
		dispatcher,
		config.AppConfig.SMS.CreditsPerSend,
		logrus.StandardLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hostname, _ := os.Hostname()
	stepPoller := worker.NewStepPoller(
		comms, sequences, engine,
		log.New(os.Stdout, "POLLER: ", log.LstdFlags),
		hostname,
		config.AppConfig.PollInterval,
		config.AppConfig.ClaimTimeout,
	)
	go stepPoller.Start(ctx)

	replyWorker := worker.NewReplyWorker(
		comms,
		config.AppConfig.ReplyInbox,
		log.New(os.Stdout, "REPLY: ", log.LstdFlags),
		config.AppConfig.ReplyPollInterval,
	)
	go replyWorker.Start(ctx)

	// Setup routes
	routes.SetupRoutes(app, config.DB, engine, stepPoller)

	// Start server
	logger.Printf("🚀 Server starting on port %s", config.AppConfig.ServerPort)
	if err := app.Listen(":" + config.AppConfig.ServerPort); err != nil {
		logger.Fatalf("Failed to start server: %v", err)
	}
}
