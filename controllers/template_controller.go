package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"propflow/models"
	"propflow/utils"
)

type TemplateController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTemplateController(db *gorm.DB, logger *log.Logger) *TemplateController {
	return &TemplateController{DB: db, Logger: logger}
}

// CreateTemplate creates a reusable message template
func (tc *TemplateController) CreateTemplate(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		Name    string `json:"name" validate:"required,max=200"`
		Channel string `json:"channel" validate:"required,channel"`
		Subject string `json:"subject" validate:"omitempty,max=300"`
		Body    string `json:"body" validate:"required"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if input.Channel == models.ChannelEmail && input.Subject == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Email templates need a subject",
		})
	}

	template := models.MessageTemplate{
		AgentID:  agent.ID,
		Name:     input.Name,
		Channel:  input.Channel,
		Subject:  input.Subject,
		Body:     input.Body,
		IsActive: true,
	}
	if err := tc.DB.Create(&template).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create template",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Template created successfully",
		"template": template,
	})
}

// GetTemplates returns the agent's templates, optionally filtered by channel
func (tc *TemplateController) GetTemplates(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	query := tc.DB.Where("agent_id = ?", agent.ID)
	if channel := c.Query("channel"); channel != "" {
		query = query.Where("channel = ?", channel)
	}

	var templates []models.MessageTemplate
	if err := query.Order("created_at DESC").Find(&templates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch templates",
		})
	}

	return c.JSON(templates)
}

// GetTemplate returns a single template
func (tc *TemplateController) GetTemplate(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var template models.MessageTemplate
	if err := tc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agent.ID).
		First(&template).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	return c.JSON(template)
}

// PreviewTemplate renders a template with caller-supplied variables
func (tc *TemplateController) PreviewTemplate(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		Variables map[string]string `json:"variables"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var template models.MessageTemplate
	if err := tc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agent.ID).
		First(&template).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	subject, body := template.Render(input.Variables)
	return c.JSON(fiber.Map{
		"subject": subject,
		"body":    body,
	})
}

// UpdateTemplate updates a template's content or active flag
func (tc *TemplateController) UpdateTemplate(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		Name     string  `json:"name" validate:"omitempty,max=200"`
		Subject  *string `json:"subject"`
		Body     string  `json:"body"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var template models.MessageTemplate
	if err := tc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agent.ID).
		First(&template).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	if input.Name != "" {
		template.Name = input.Name
	}
	if input.Subject != nil {
		template.Subject = *input.Subject
	}
	if input.Body != "" {
		template.Body = input.Body
	}
	if input.IsActive != nil {
		template.IsActive = *input.IsActive
	}

	if err := tc.DB.Save(&template).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update template",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Template updated successfully",
		"template": template,
	})
}

// DeleteTemplate soft-deletes a template; sequence steps referencing it
// fail processing until repointed
func (tc *TemplateController) DeleteTemplate(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	result := tc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agent.ID).
		Delete(&models.MessageTemplate{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete template",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Template deleted successfully",
	})
}
