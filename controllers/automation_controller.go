package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"propflow/worker"
)

// AutomationController exposes a manual trigger for the step poller so due
// steps can be driven on demand instead of waiting for the next tick.
type AutomationController struct {
	Poller *worker.StepPoller
	Logger *log.Logger
}

func NewAutomationController(poller *worker.StepPoller, logger *log.Logger) *AutomationController {
	return &AutomationController{Poller: poller, Logger: logger}
}

func (ac *AutomationController) RunPendingSteps(c *fiber.Ctx) error {
	processed, failed, err := ac.Poller.RunOnce(c.Context())
	if err != nil {
		ac.Logger.Printf("Manual poll cycle failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process pending steps",
		})
	}
	return c.JSON(fiber.Map{
		"processed": processed,
		"failed":    failed,
	})
}
