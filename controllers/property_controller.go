package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"propflow/models"
	"propflow/utils"
)

type PropertyController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewPropertyController(db *gorm.DB, logger *log.Logger) *PropertyController {
	return &PropertyController{DB: db, Logger: logger}
}

type propertyInput struct {
	Title      string  `json:"title" validate:"required,max=300"`
	Suburb     string  `json:"suburb" validate:"omitempty,max=100"`
	City       string  `json:"city" validate:"omitempty,max=100"`
	Price      float64 `json:"price" validate:"min=0"`
	Bedrooms   int     `json:"bedrooms" validate:"min=0"`
	Bathrooms  int     `json:"bathrooms" validate:"min=0"`
	ErfSize    int     `json:"erf_size" validate:"min=0"`
	ListingURL string  `json:"listing_url" validate:"omitempty,url"`
}

// CreateProperty adds a listing
func (pc *PropertyController) CreateProperty(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input propertyInput
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

	property := models.Property{
		AgentID:    agent.ID,
		Title:      input.Title,
		Suburb:     input.Suburb,
		City:       input.City,
		Price:      input.Price,
		Bedrooms:   input.Bedrooms,
		Bathrooms:  input.Bathrooms,
		ErfSize:    input.ErfSize,
		ListingURL: input.ListingURL,
		IsActive:   true,
	}
	if err := pc.DB.Create(&property).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create property",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Property created successfully",
		"property": property,
	})
}

// GetProperties lists the agent's properties
func (pc *PropertyController) GetProperties(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var properties []models.Property
	if err := pc.DB.Where("agent_id = ?", agent.ID).
		Order("created_at DESC").
		Find(&properties).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch properties",
		})
	}

	return c.JSON(properties)
}

// GetProperty returns a single property
func (pc *PropertyController) GetProperty(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var property models.Property
	if err := pc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agent.ID).
		First(&property).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Property not found",
		})
	}

	return c.JSON(property)
}

// UpdateProperty updates listing details
func (pc *PropertyController) UpdateProperty(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var input struct {
		Title      string   `json:"title" validate:"omitempty,max=300"`
		Suburb     *string  `json:"suburb"`
		City       *string  `json:"city"`
		Price      *float64 `json:"price"`
		Bedrooms   *int     `json:"bedrooms"`
		Bathrooms  *int     `json:"bathrooms"`
		ErfSize    *int     `json:"erf_size"`
		ListingURL *string  `json:"listing_url"`
		IsActive   *bool    `json:"is_active"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var property models.Property
	if err := pc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agent.ID).
		First(&property).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Property not found",
		})
	}

	if input.Title != "" {
		property.Title = input.Title
	}
	if input.Suburb != nil {
		property.Suburb = *input.Suburb
	}
	if input.City != nil {
		property.City = *input.City
	}
	if input.Price != nil {
		property.Price = *input.Price
	}
	if input.Bedrooms != nil {
		property.Bedrooms = *input.Bedrooms
	}
	if input.Bathrooms != nil {
		property.Bathrooms = *input.Bathrooms
	}
	if input.ErfSize != nil {
		property.ErfSize = *input.ErfSize
	}
	if input.ListingURL != nil {
		property.ListingURL = *input.ListingURL
	}
	if input.IsActive != nil {
		property.IsActive = *input.IsActive
	}

	if err := pc.DB.Save(&property).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update property",
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Property updated successfully",
		"property": property,
	})
}

// DeleteProperty soft-deletes a listing
func (pc *PropertyController) DeleteProperty(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	result := pc.DB.Where("id = ? AND agent_id = ?", c.Params("id"), agent.ID).
		Delete(&models.Property{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete property",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Property not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Property deleted successfully",
	})
}
