package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"propflow/automation"
	"propflow/models"
	"propflow/repository"
	"propflow/utils"
)

type SequenceController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Engine   *automation.Engine
	Contacts repository.ContactRepository
}

func NewSequenceController(db *gorm.DB, logger *log.Logger, engine *automation.Engine, contacts repository.ContactRepository) *SequenceController {
	return &SequenceController{
		DB:       db,
		Logger:   logger,
		Engine:   engine,
		Contacts: contacts,
	}
}

type stepInput struct {
	TemplateID   uint                  `json:"template_id" validate:"required"`
	Channel      string                `json:"channel" validate:"required,channel"`
	DelayDays    int                   `json:"delay_days" validate:"min=0"`
	DelayHours   int                   `json:"delay_hours" validate:"min=0"`
	DelayMinutes int                   `json:"delay_minutes" validate:"min=0"`
	Conditions   models.StepConditions `json:"conditions"`
}

// CreateSequence creates a sequence together with its ordered steps
func (sc *SequenceController) CreateSequence(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		Name        string                  `json:"name" validate:"required,max=200"`
		Description string                  `json:"description"`
		TriggerType string                  `json:"trigger_type" validate:"omitempty,oneof=manual contact_added"`
		Audience    models.AudienceFilter   `json:"audience"`
		Settings    models.SequenceSettings `json:"settings"`
		Steps       []stepInput             `json:"steps"`
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
	if input.TriggerType == "" {
		input.TriggerType = models.TriggerManual
	}

	tx := sc.DB.Begin()

	sequence := models.Sequence{
		AgentID:     agent.ID,
		Name:        input.Name,
		Description: input.Description,
		TriggerType: input.TriggerType,
		Audience:    input.Audience,
		Settings:    input.Settings,
	}
	if err := tx.Create(&sequence).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create sequence",
		})
	}

	for i, s := range input.Steps {
		step := models.SequenceStep{
			SequenceID:   sequence.ID,
			TemplateID:   s.TemplateID,
			StepNumber:   i + 1,
			Channel:      s.Channel,
			DelayDays:    s.DelayDays,
			DelayHours:   s.DelayHours,
			DelayMinutes: s.DelayMinutes,
			Conditions:   s.Conditions,
			IsActive:     true,
		}
		if err := tx.Create(&step).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to create sequence step",
			})
		}
		sequence.Steps = append(sequence.Steps, step)
	}

	tx.Commit()

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Sequence created successfully",
		"sequence": sequence,
	})
}

// GetSequences returns all sequences for the agent
func (sc *SequenceController) GetSequences(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var sequences []models.Sequence
	if err := sc.DB.Where("agent_id = ?", agent.ID).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number")
		}).
		Find(&sequences).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch sequences",
		})
	}

	return c.JSON(sequences)
}

// GetSequence returns a single sequence with its steps
func (sc *SequenceController) GetSequence(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	sequence := sc.ownedSequence(c, agent.ID)
	if sequence == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}
	return c.JSON(sequence)
}

// UpdateSequence updates name, description, trigger, audience and settings
func (sc *SequenceController) UpdateSequence(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		Name        string                   `json:"name" validate:"omitempty,max=200"`
		Description *string                  `json:"description"`
		TriggerType string                   `json:"trigger_type" validate:"omitempty,oneof=manual contact_added"`
		Audience    *models.AudienceFilter   `json:"audience"`
		Settings    *models.SequenceSettings `json:"settings"`
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

	sequence := sc.ownedSequence(c, agent.ID)
	if sequence == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	if input.Name != "" {
		sequence.Name = input.Name
	}
	if input.Description != nil {
		sequence.Description = *input.Description
	}
	if input.TriggerType != "" {
		sequence.TriggerType = input.TriggerType
	}
	if input.Audience != nil {
		sequence.Audience = *input.Audience
	}
	if input.Settings != nil {
		sequence.Settings = *input.Settings
	}

	if err := sc.DB.Save(sequence).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update sequence",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Sequence updated successfully",
		"sequence": sequence,
	})
}

// ActivateSequence turns a sequence on so the poller processes its queue
func (sc *SequenceController) ActivateSequence(c *fiber.Ctx) error {
	return sc.setActive(c, true, "Sequence activated")
}

// PauseSequence turns a sequence off; pending communications are held, not
// discarded, and resume when reactivated
func (sc *SequenceController) PauseSequence(c *fiber.Ctx) error {
	return sc.setActive(c, false, "Sequence paused")
}

func (sc *SequenceController) setActive(c *fiber.Ctx, active bool, message string) error {
	agent := c.Locals("agent").(*models.Agent)

	sequence := sc.ownedSequence(c, agent.ID)
	if sequence == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	sequence.IsActive = active
	if err := sc.DB.Save(sequence).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update sequence",
		})
	}

	return c.JSON(fiber.Map{
		"message":  message,
		"sequence": sequence,
	})
}

// AddStep appends or inserts a step, keeping step numbers contiguous
func (sc *SequenceController) AddStep(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		stepInput
		Position int `json:"position" validate:"min=0"` // 0 appends
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input.stepInput); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	sequence := sc.ownedSequence(c, agent.ID)
	if sequence == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	step := models.SequenceStep{
		SequenceID:   sequence.ID,
		TemplateID:   input.TemplateID,
		StepNumber:   len(sequence.Steps) + 1,
		Channel:      input.Channel,
		DelayDays:    input.DelayDays,
		DelayHours:   input.DelayHours,
		DelayMinutes: input.DelayMinutes,
		Conditions:   input.Conditions,
		IsActive:     true,
	}

	steps := append(sequence.Steps, step)
	if input.Position > 0 && input.Position <= len(steps) {
		steps = models.MoveStep(steps, len(steps), input.Position)
	} else {
		models.RenumberSteps(steps)
	}

	if err := sc.saveSteps(steps); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save steps",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Step added successfully",
		"steps":   steps,
	})
}

// UpdateStep changes a step's template, channel, delay or conditions
func (sc *SequenceController) UpdateStep(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		TemplateID   *uint                  `json:"template_id"`
		Channel      string                 `json:"channel" validate:"omitempty,channel"`
		DelayDays    *int                   `json:"delay_days"`
		DelayHours   *int                   `json:"delay_hours"`
		DelayMinutes *int                   `json:"delay_minutes"`
		Conditions   *models.StepConditions `json:"conditions"`
		IsActive     *bool                  `json:"is_active"`
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

	sequence := sc.ownedSequence(c, agent.ID)
	if sequence == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	step := sequence.StepByNumber(int(utils.ParseUint(c.Params("step"))))
	if step == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Step not found",
		})
	}

	if input.TemplateID != nil {
		step.TemplateID = *input.TemplateID
	}
	if input.Channel != "" {
		step.Channel = input.Channel
	}
	if input.DelayDays != nil {
		step.DelayDays = *input.DelayDays
	}
	if input.DelayHours != nil {
		step.DelayHours = *input.DelayHours
	}
	if input.DelayMinutes != nil {
		step.DelayMinutes = *input.DelayMinutes
	}
	if input.Conditions != nil {
		step.Conditions = *input.Conditions
	}
	if input.IsActive != nil {
		step.IsActive = *input.IsActive
	}

	if err := sc.DB.Save(step).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update step",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Step updated successfully",
		"step":    step,
	})
}

// RemoveStep deletes a step and renumbers the remainder to 1..N
func (sc *SequenceController) RemoveStep(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	sequence := sc.ownedSequence(c, agent.ID)
	if sequence == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	stepNumber := int(utils.ParseUint(c.Params("step")))
	step := sequence.StepByNumber(stepNumber)
	if step == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Step not found",
		})
	}

	tx := sc.DB.Begin()
	if err := tx.Delete(step).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to remove step",
		})
	}

	remaining := models.RemoveStep(sequence.Steps, stepNumber)
	for i := range remaining {
		if err := tx.Model(&models.SequenceStep{}).
			Where("id = ?", remaining[i].ID).
			Update("step_number", remaining[i].StepNumber).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to renumber steps",
			})
		}
	}
	tx.Commit()

	return c.JSON(fiber.Map{
		"message": "Step removed successfully",
		"steps":   remaining,
	})
}

// MoveStep reorders a step to a new position; numbering stays contiguous
func (sc *SequenceController) MoveStep(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		To int `json:"to" validate:"required,min=1"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	sequence := sc.ownedSequence(c, agent.ID)
	if sequence == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	from := int(utils.ParseUint(c.Params("step")))
	if sequence.StepByNumber(from) == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Step not found",
		})
	}

	moved := models.MoveStep(sequence.Steps, from, input.To)
	if err := sc.saveSteps(moved); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reorder steps",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Step moved successfully",
		"steps":   moved,
	})
}

// StartForContact enrolls one contact into the sequence
func (sc *SequenceController) StartForContact(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		ContactID  uint  `json:"contact_id" validate:"required"`
		PropertyID *uint `json:"property_id"`
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

	sequence := sc.ownedSequence(c, agent.ID)
	if sequence == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	var contact models.Contact
	if err := sc.DB.Preload("Tags").
		Where("id = ? AND agent_id = ?", input.ContactID, agent.ID).
		First(&contact).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}

	comm, err := sc.Engine.StartForContact(c.Context(), sequence, &contact, input.PropertyID)
	if err != nil {
		return automationError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":       "Contact enrolled in sequence",
		"communication": comm,
	})
}

// StartForAudience enrolls every reachable contact matching the sequence's
// audience filter
func (sc *SequenceController) StartForAudience(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	sequence := sc.ownedSequence(c, agent.ID)
	if sequence == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	targets, err := automation.TargetContacts(c.Context(), sc.Contacts, agent.ID, sequence.Audience)
	if err != nil {
		return automationError(c, err)
	}

	enrolled := 0
	for i := range targets {
		if _, err := sc.Engine.StartForContact(c.Context(), sequence, &targets[i], nil); err != nil {
			sc.Logger.Printf("Could not enroll contact %d: %v", targets[i].ID, err)
			continue
		}
		enrolled++
	}

	return c.JSON(fiber.Map{
		"message":  "Audience enrolled",
		"matched":  len(targets),
		"enrolled": enrolled,
	})
}

// ProcessStep triggers one step for one contact immediately, bypassing the
// poller's schedule
func (sc *SequenceController) ProcessStep(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		ContactID  uint              `json:"contact_id" validate:"required"`
		StepNumber int               `json:"step_number" validate:"required,min=1"`
		Variables  map[string]string `json:"variables"`
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

	sequence := sc.ownedSequence(c, agent.ID)
	if sequence == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Sequence not found",
		})
	}

	result, err := sc.Engine.ProcessSequenceStep(c.Context(), sequence.ID, input.ContactID, input.StepNumber, input.Variables)
	if err != nil {
		return automationError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Step processed",
		"result":  result,
	})
}

// ownedSequence loads the sequence with its steps, scoped to the agent.
// Returns nil when it does not exist or belongs to someone else.
func (sc *SequenceController) ownedSequence(c *fiber.Ctx, agentID uint) *models.Sequence {
	var sequence models.Sequence
	if err := sc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agentID).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("step_number")
		}).
		First(&sequence).Error; err != nil {
		return nil
	}
	return &sequence
}

func (sc *SequenceController) saveSteps(steps []models.SequenceStep) error {
	tx := sc.DB.Begin()
	for i := range steps {
		if steps[i].ID == 0 {
			if err := tx.Create(&steps[i]).Error; err != nil {
				tx.Rollback()
				return err
			}
			continue
		}
		if err := tx.Model(&models.SequenceStep{}).
			Where("id = ?", steps[i].ID).
			Update("step_number", steps[i].StepNumber).Error; err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit().Error
}

// automationError maps engine sentinels onto HTTP statuses
func automationError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, automation.ErrSequenceNotFound),
		errors.Is(err, automation.ErrStepNotFound),
		errors.Is(err, automation.ErrTemplateNotFound),
		errors.Is(err, automation.ErrContactNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, automation.ErrSequenceInactive),
		errors.Is(err, automation.ErrStepInactive),
		errors.Is(err, automation.ErrContactUnreachable):
		status = fiber.StatusConflict
	case errors.Is(err, automation.ErrConditionUnsupported),
		errors.Is(err, automation.ErrLocationFilterUnsupported):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, automation.ErrInsufficientCredits):
		status = fiber.StatusPaymentRequired
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
