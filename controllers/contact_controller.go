package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"propflow/automation"
	"propflow/models"
	"propflow/repository"
	"propflow/utils"
)

type ContactController struct {
	DB        *gorm.DB
	Logger    *log.Logger
	Engine    *automation.Engine
	Sequences repository.SequenceRepository
}

func NewContactController(db *gorm.DB, logger *log.Logger, engine *automation.Engine, sequences repository.SequenceRepository) *ContactController {
	return &ContactController{
		DB:        db,
		Logger:    logger,
		Engine:    engine,
		Sequences: sequences,
	}
}

type contactInput struct {
	FirstName          string   `json:"first_name" validate:"required,max=100"`
	LastName           string   `json:"last_name" validate:"omitempty,max=100"`
	Email              string   `json:"email" validate:"omitempty,email"`
	Phone              string   `json:"phone" validate:"omitempty,max=20"`
	BudgetMin          float64  `json:"budget_min" validate:"min=0"`
	BudgetMax          float64  `json:"budget_max" validate:"min=0"`
	PreferredLocations string   `json:"preferred_locations"`
	Source             string   `json:"source" validate:"omitempty,oneof=manual portal import"`
	Tags               []string `json:"tags"`
}

// CreateContact creates a contact and enrolls it into any active sequences
// triggered on contact_added whose audience it matches
func (cc *ContactController) CreateContact(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input contactInput
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
	if input.Email == "" && input.Phone == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Contact needs an email address or phone number",
		})
	}

	if input.Email != "" {
		if err := utils.ValidateContactEmail(input.Email, false); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid email address",
			})
		}
	}
	if input.Phone != "" {
		normalized, err := utils.NormalizePhone(input.Phone)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid phone number",
			})
		}
		input.Phone = normalized
	}

	if input.Source == "" {
		input.Source = "manual"
	}

	tx := cc.DB.Begin()

	contact := models.Contact{
		AgentID:            agent.ID,
		FirstName:          input.FirstName,
		LastName:           input.LastName,
		Email:              input.Email,
		Phone:              input.Phone,
		BudgetMin:          input.BudgetMin,
		BudgetMax:          input.BudgetMax,
		PreferredLocations: input.PreferredLocations,
		Source:             input.Source,
	}
	if err := tx.Create(&contact).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create contact",
		})
	}

	for _, tag := range input.Tags {
		contactTag := models.ContactTag{ContactID: contact.ID, Tag: tag}
		if err := tx.Create(&contactTag).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to tag contact",
			})
		}
		contact.Tags = append(contact.Tags, contactTag)
	}

	tx.Commit()

	enrolled := cc.enrollInTriggeredSequences(c, agent.ID, &contact)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":            "Contact created successfully",
		"contact":            contact,
		"sequences_enrolled": enrolled,
	})
}

// enrollInTriggeredSequences starts every contact_added sequence whose
// audience matches the new contact. Enrollment failures are logged, not
// surfaced, so contact creation never fails on automation problems.
func (cc *ContactController) enrollInTriggeredSequences(c *fiber.Ctx, agentID uint, contact *models.Contact) int {
	sequences, err := cc.Sequences.ActiveByTrigger(c.Context(), agentID, models.TriggerContactAdded)
	if err != nil {
		cc.Logger.Printf("Could not load triggered sequences: %v", err)
		return 0
	}

	enrolled := 0
	for i := range sequences {
		match, err := automation.MatchesAudience(contact, sequences[i].Audience)
		if err != nil || !match {
			if err != nil {
				cc.Logger.Printf("Audience check failed for sequence %d: %v", sequences[i].ID, err)
			}
			continue
		}
		if _, err := cc.Engine.StartForContact(c.Context(), &sequences[i], contact, nil); err != nil {
			cc.Logger.Printf("Could not enroll contact %d in sequence %d: %v", contact.ID, sequences[i].ID, err)
			continue
		}
		enrolled++
	}
	return enrolled
}

// GetContacts returns the agent's contacts, paginated
func (cc *ContactController) GetContacts(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := cc.DB.Model(&models.Contact{}).Where("agent_id = ?", agent.ID)
	if tag := c.Query("tag"); tag != "" {
		query = query.Joins("JOIN contact_tags ON contact_tags.contact_id = contacts.id AND contact_tags.deleted_at IS NULL").
			Where("contact_tags.tag = ?", tag)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to count contacts",
		})
	}

	var contacts []models.Contact
	if err := query.Preload("Tags").
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&contacts).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch contacts",
		})
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  contacts,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetContact returns a single contact with its tags and communication log
func (cc *ContactController) GetContact(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var contact models.Contact
	if err := cc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agent.ID).
		Preload("Tags").
		Preload("Communications", func(db *gorm.DB) *gorm.DB {
			return db.Order("scheduled_at DESC").Limit(100)
		}).
		First(&contact).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}

	return c.JSON(contact)
}

// UpdateContact updates profile fields and replaces tags when provided
func (cc *ContactController) UpdateContact(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		FirstName          string    `json:"first_name" validate:"omitempty,max=100"`
		LastName           *string   `json:"last_name"`
		Email              *string   `json:"email"`
		Phone              *string   `json:"phone"`
		BudgetMin          *float64  `json:"budget_min"`
		BudgetMax          *float64  `json:"budget_max"`
		PreferredLocations *string   `json:"preferred_locations"`
		IsUnsubscribed     *bool     `json:"is_unsubscribed"`
		IsDoNotContact     *bool     `json:"is_do_not_contact"`
		Tags               *[]string `json:"tags"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var contact models.Contact
	if err := cc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agent.ID).
		Preload("Tags").
		First(&contact).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}

	if input.FirstName != "" {
		contact.FirstName = input.FirstName
	}
	if input.LastName != nil {
		contact.LastName = *input.LastName
	}
	if input.Email != nil {
		if *input.Email != "" {
			if err := utils.ValidateContactEmail(*input.Email, false); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid email address",
				})
			}
		}
		contact.Email = *input.Email
	}
	if input.Phone != nil {
		phone := *input.Phone
		if phone != "" {
			normalized, err := utils.NormalizePhone(phone)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "Invalid phone number",
				})
			}
			phone = normalized
		}
		contact.Phone = phone
	}
	if input.BudgetMin != nil {
		contact.BudgetMin = *input.BudgetMin
	}
	if input.BudgetMax != nil {
		contact.BudgetMax = *input.BudgetMax
	}
	if input.PreferredLocations != nil {
		contact.PreferredLocations = *input.PreferredLocations
	}
	if input.IsUnsubscribed != nil {
		contact.IsUnsubscribed = *input.IsUnsubscribed
	}
	if input.IsDoNotContact != nil {
		contact.IsDoNotContact = *input.IsDoNotContact
	}

	tx := cc.DB.Begin()
	if err := tx.Save(&contact).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update contact",
		})
	}

	if input.Tags != nil {
		if err := tx.Where("contact_id = ?", contact.ID).Delete(&models.ContactTag{}).Error; err != nil {
			tx.Rollback()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to update tags",
			})
		}
		contact.Tags = nil
		for _, tag := range *input.Tags {
			contactTag := models.ContactTag{ContactID: contact.ID, Tag: tag}
			if err := tx.Create(&contactTag).Error; err != nil {
				tx.Rollback()
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error": "Failed to update tags",
				})
			}
			contact.Tags = append(contact.Tags, contactTag)
		}
	}
	tx.Commit()

	return c.JSON(fiber.Map{
		"message": "Contact updated successfully",
		"contact": contact,
	})
}

// DeleteContact soft-deletes a contact
func (cc *ContactController) DeleteContact(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	result := cc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agent.ID).
		Delete(&models.Contact{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete contact",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Contact deleted successfully",
	})
}
