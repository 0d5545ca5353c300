package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"propflow/analytics"
	"propflow/automation"
	controller "propflow/controllers"
	"propflow/middleware"
	"propflow/repository"
	"propflow/worker"
)

func SetupAuthRoutes(app *fiber.App, db *gorm.DB) {
	authLogger := log.New(os.Stdout, "AUTH: ", log.Ldate|log.Ltime|log.Lshortfile)

	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	// Google OAuth routes
	auth.Get("/google", controller.GoogleOAuth)
	auth.Get("/google/callback", controller.GoogleOAuthCallback)

	// Protected auth endpoints
	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Post("/change-password", controller.ChangePassword)
	protectedAuth.Get("/me", controller.GetCurrentAgent)

	// Billing routes; the Stripe webhook must stay unauthenticated
	billing := app.Group("/billing")
	billing.Get("/packages", controller.GetCreditPackages)
	billing.Post("/webhook", controller.HandlePaymentWebhook)

	protectedBilling := billing.Group("", middleware.Protected())
	protectedBilling.Post("/create-intent", controller.CreatePaymentIntent)
	protectedBilling.Get("/transactions", controller.GetTransactions)

	authLogger.Println("Authentication routes initialized successfully")
}

func SetupAPIRoutes(app *fiber.App, db *gorm.DB, engine *automation.Engine, poller *worker.StepPoller) {
	comms := repository.NewCommunicationRepository(db)
	contacts := repository.NewContactRepository(db)
	sequences := repository.NewSequenceRepository(db)

	sequenceController := controller.NewSequenceController(db, log.New(os.Stdout, "SEQUENCE: ", log.LstdFlags), engine, contacts)
	contactController := controller.NewContactController(db, log.New(os.Stdout, "CONTACT: ", log.LstdFlags), engine, sequences)
	templateController := controller.NewTemplateController(db, log.New(os.Stdout, "TEMPLATE: ", log.LstdFlags))
	propertyController := controller.NewPropertyController(db, log.New(os.Stdout, "PROPERTY: ", log.LstdFlags))
	analyticsController := controller.NewAnalyticsController(
		analytics.NewService(db, nil),
		log.New(os.Stdout, "ANALYTICS: ", log.LstdFlags),
	)
	trackingController := controller.NewTrackingController(db, comms, log.New(os.Stdout, "TRACKING: ", log.LstdFlags))

	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Sequence routes
	sequence := api.Group("/sequences")
	sequence.Post("/", sequenceController.CreateSequence)
	sequence.Get("/", sequenceController.GetSequences)
	sequence.Get("/:id", sequenceController.GetSequence)
	sequence.Put("/:id", sequenceController.UpdateSequence)
	sequence.Post("/:id/activate", sequenceController.ActivateSequence)
	sequence.Post("/:id/pause", sequenceController.PauseSequence)

	// Step management
	sequence.Post("/:id/steps", sequenceController.AddStep)
	sequence.Put("/:id/steps/:step", sequenceController.UpdateStep)
	sequence.Delete("/:id/steps/:step", sequenceController.RemoveStep)
	sequence.Post("/:id/steps/:step/move", sequenceController.MoveStep)

	// Enrollment and manual processing, throttled per agent
	sendLimited := sequence.Group("", middleware.SendRateLimiter())
	sendLimited.Post("/:id/start", sequenceController.StartForContact)
	sendLimited.Post("/:id/start-audience", sequenceController.StartForAudience)
	sendLimited.Post("/:id/process-step", sequenceController.ProcessStep)

	// Contact routes
	contact := api.Group("/contacts")
	contact.Post("/", contactController.CreateContact)
	contact.Get("/", contactController.GetContacts)
	contact.Get("/:id", contactController.GetContact)
	contact.Put("/:id", contactController.UpdateContact)
	contact.Delete("/:id", contactController.DeleteContact)

	// Template routes
	template := api.Group("/templates")
	template.Post("/", templateController.CreateTemplate)
	template.Get("/", templateController.GetTemplates)
	template.Get("/:id", templateController.GetTemplate)
	template.Put("/:id", templateController.UpdateTemplate)
	template.Delete("/:id", templateController.DeleteTemplate)
	template.Post("/:id/preview", templateController.PreviewTemplate)

	// Property routes
	property := api.Group("/properties")
	property.Post("/", propertyController.CreateProperty)
	property.Get("/", propertyController.GetProperties)
	property.Get("/:id", propertyController.GetProperty)
	property.Put("/:id", propertyController.UpdateProperty)
	property.Delete("/:id", propertyController.DeleteProperty)

	// Manual trigger for due-step processing
	automationController := controller.NewAutomationController(poller, log.New(os.Stdout, "AUTOMATION: ", log.LstdFlags))
	api.Post("/automation/run", automationController.RunPendingSteps)

	// Analytics routes
	analyticsGroup := api.Group("/analytics")
	analyticsGroup.Get("/overview", analyticsController.GetOverview)
	analyticsGroup.Get("/sequences/:id", analyticsController.GetSequenceReport)
	analyticsGroup.Get("/channels", analyticsController.GetChannelBreakdown)
	analyticsGroup.Get("/templates", analyticsController.GetTemplateBreakdown)
	analyticsGroup.Get("/spend", analyticsController.GetSpend)

	// WebSocket route for live sequence progress
	app.Get("/ws/sequences/progress", websocket.New(func(c *websocket.Conn) {
		controller.HandleSequenceProgressWS(c)
	}))

	// Unauthenticated tracking endpoints embedded in sent messages
	app.Get("/track/open/:messageID/:token", trackingController.TrackOpen)
	app.Get("/track/click/:messageID/:token", trackingController.TrackClick)
	app.Get("/track/unsubscribe/:messageID/:token", trackingController.Unsubscribe)
	app.Post("/track/events", trackingController.HandleProviderWebhook)

	log.Println("API routes initialized successfully")
}

func SetupRoutes(app *fiber.App, db *gorm.DB, engine *automation.Engine, poller *worker.StepPoller) {
	// Initialize Stripe
	controller.InitStripe()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000",
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAuthRoutes(app, db)
	SetupAPIRoutes(app, db, engine, poller)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "Not Found",
			"message": "The requested resource was not found",
		})
	})
}
