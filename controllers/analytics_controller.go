package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"propflow/analytics"
	"propflow/models"
	"propflow/utils"
)

type AnalyticsController struct {
	Service *analytics.Service
	Logger  *log.Logger
}

func NewAnalyticsController(service *analytics.Service, logger *log.Logger) *AnalyticsController {
	return &AnalyticsController{Service: service, Logger: logger}
}

// GetOverview returns the agent-wide funnel, optionally windowed by ?days=N
func (ac *AnalyticsController) GetOverview(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var since *time.Time
	if days := c.QueryInt("days", 0); days > 0 {
		s := utils.UTCNow().AddDate(0, 0, -days)
		since = &s
	}

	counts, rates, err := ac.Service.AgentFunnel(c.Context(), agent.ID, since)
	if err != nil {
		ac.Logger.Printf("Overview query failed for agent %d: %v", agent.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute overview",
		})
	}

	return c.JSON(fiber.Map{
		"counts": counts,
		"rates":  rates,
	})
}

// GetSequenceReport returns funnel, rates, spend and a per-step breakdown
// for one sequence
func (ac *AnalyticsController) GetSequenceReport(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	report, err := ac.Service.SequenceReport(c.Context(), agent.ID, utils.ParseUint(c.Params("id")))
	if err != nil {
		ac.Logger.Printf("Sequence report failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute sequence report",
		})
	}

	return c.JSON(report)
}

// GetChannelBreakdown returns per-channel funnels with spend
func (ac *AnalyticsController) GetChannelBreakdown(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	breakdown, err := ac.Service.ChannelBreakdown(c.Context(), agent.ID)
	if err != nil {
		ac.Logger.Printf("Channel breakdown failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute channel breakdown",
		})
	}

	return c.JSON(breakdown)
}

// GetTemplateBreakdown ranks templates by engagement
func (ac *AnalyticsController) GetTemplateBreakdown(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	breakdown, err := ac.Service.TemplateBreakdown(c.Context(), agent.ID)
	if err != nil {
		ac.Logger.Printf("Template breakdown failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute template breakdown",
		})
	}

	return c.JSON(breakdown)
}

// GetSpend totals paid sends for the agent over ?days=N (default 30)
func (ac *AnalyticsController) GetSpend(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	days := c.QueryInt("days", 30)
	if days < 1 {
		days = 30
	}

	spend, err := ac.Service.Spend(c.Context(), agent.ID, utils.UTCNow().AddDate(0, 0, -days))
	if err != nil {
		ac.Logger.Printf("Spend query failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute spend",
		})
	}

	return c.JSON(spend)
}
