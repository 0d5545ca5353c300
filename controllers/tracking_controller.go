package controller

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"propflow/config"
	"propflow/models"
	"propflow/repository"
	"propflow/utils"
)

// 1x1 transparent GIF served from the open pixel endpoint
var transparentPixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// TrackingController serves the unauthenticated endpoints embedded in sent
// email: the open pixel, click redirects and the unsubscribe link, plus
// the delivery provider's status webhook. Every tracked URL carries an HMAC
// token so message IDs can't be enumerated.
type TrackingController struct {
	DB     *gorm.DB
	Comms  repository.CommunicationRepository
	Logger *log.Logger
}

func NewTrackingController(db *gorm.DB, comms repository.CommunicationRepository, logger *log.Logger) *TrackingController {
	return &TrackingController{DB: db, Comms: comms, Logger: logger}
}

// TrackOpen records an email open and returns the pixel. Always serves the
// gif, even on bad tokens, so broken requests don't leak which IDs exist.
func (tc *TrackingController) TrackOpen(c *fiber.Ctx) error {
	messageID := c.Params("messageID")
	token := c.Params("token")

	if utils.ValidTrackingToken(config.AppConfig.JWTSecret, messageID, token) {
		if err := tc.Comms.Advance(c.Context(), messageID, models.StatusOpened, utils.UTCNow()); err != nil {
			tc.Logger.Printf("Open tracking failed for %s: %v", messageID, err)
		}
	}

	c.Set("Content-Type", "image/gif")
	c.Set("Cache-Control", "no-store, no-cache, must-revalidate")
	return c.Send(transparentPixel)
}

// TrackClick records a click and redirects to the original URL
func (tc *TrackingController) TrackClick(c *fiber.Ctx) error {
	messageID := c.Params("messageID")
	token := c.Params("token")
	target := c.Query("url")

	if target == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing redirect URL",
		})
	}

	if utils.ValidTrackingToken(config.AppConfig.JWTSecret, messageID, token) {
		if err := tc.Comms.Advance(c.Context(), messageID, models.StatusClicked, utils.UTCNow()); err != nil {
			tc.Logger.Printf("Click tracking failed for %s: %v", messageID, err)
		}
	}

	return c.Redirect(target, fiber.StatusFound)
}

// Unsubscribe flags the contact and terminates the communication's funnel
func (tc *TrackingController) Unsubscribe(c *fiber.Ctx) error {
	messageID := c.Params("messageID")
	token := c.Params("token")

	if !utils.ValidTrackingToken(config.AppConfig.JWTSecret, messageID, token) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Invalid unsubscribe link",
		})
	}

	comm, err := tc.Comms.ByMessageID(c.Context(), messageID)
	if err != nil || comm == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Message not found",
		})
	}

	if err := tc.DB.Model(&models.Contact{}).
		Where("id = ?", comm.ContactID).
		Update("is_unsubscribed", true).Error; err != nil {
		tc.Logger.Printf("Unsubscribe update failed for contact %d: %v", comm.ContactID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to unsubscribe",
		})
	}

	if err := tc.Comms.Advance(c.Context(), messageID, models.StatusUnsubscribed, utils.UTCNow()); err != nil {
		tc.Logger.Printf("Unsubscribe status update failed for %s: %v", messageID, err)
	}

	return c.SendString("You have been unsubscribed and will not receive further messages.")
}

// HandleProviderWebhook ingests delivery receipts (delivered, bounced) from
// the email and SMS providers
func (tc *TrackingController) HandleProviderWebhook(c *fiber.Ctx) error {
	var input struct {
		EventType string `json:"event_type"` // delivered, bounced
		MessageID string `json:"message_id"`
		Timestamp int64  `json:"timestamp"`
		Reason    string `json:"reason,omitempty"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var status string
	switch input.EventType {
	case "delivered":
		status = models.StatusDelivered
	case "bounced":
		status = models.StatusBounced
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown event type",
		})
	}

	at := utils.UTCNow()
	if input.Timestamp > 0 {
		at = time.Unix(input.Timestamp, 0).UTC()
	}

	if err := tc.Comms.Advance(c.Context(), input.MessageID, status, at); err != nil {
		tc.Logger.Printf("Webhook %s for %s failed: %v", input.EventType, input.MessageID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process event",
		})
	}

	if status == models.StatusBounced && input.Reason != "" {
		if err := tc.DB.Model(&models.Communication{}).
			Where("message_id = ?", input.MessageID).
			Update("error_message", input.Reason).Error; err != nil {
			tc.Logger.Printf("Could not record bounce reason for %s: %v", input.MessageID, err)
		}
	}

	return c.JSON(fiber.Map{
		"message": "Event processed",
	})
}
