package controller

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/charge"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"gorm.io/gorm"

	"propflow/config"
	"propflow/models"
	"propflow/utils"
)

func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

type PurchaseRequest struct {
	Package string `json:"package" validate:"required,oneof=starter growth agency"`
}

// GetCreditPackages lists the purchasable message credit bundles
func GetCreditPackages(c *fiber.Ctx) error {
	return c.JSON(models.CreditPackages)
}

// CreatePaymentIntent starts a Stripe payment for a credit bundle. Credits
// are only granted once the payment_intent.succeeded webhook lands.
func CreatePaymentIntent(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var req PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var pkg *models.CreditPackage
	for i := range models.CreditPackages {
		if models.CreditPackages[i].Name == req.Package {
			pkg = &models.CreditPackages[i]
			break
		}
	}
	if pkg == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown credit package",
		})
	}

	customerID, err := getOrCreateStripeCustomer(agent)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process payment",
		})
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(pkg.Amount)),
		Currency: stripe.String(string(stripe.CurrencyZAR)),
		Customer: stripe.String(customerID),
		Metadata: map[string]string{
			"agent_id": strconv.Itoa(int(agent.ID)),
			"package":  pkg.Name,
		},
		Description: stripe.String("Purchase of " + pkg.Name + " credit package"),
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create payment",
		})
	}

	transaction := models.CreditTransaction{
		AgentID:               agent.ID,
		Credits:               pkg.Credits,
		Amount:                pkg.Amount,
		Currency:              "ZAR",
		PaymentStatus:         "pending",
		StripePaymentIntentID: pi.ID,
		Description:           "Purchase of " + pkg.Name + " credit package",
	}
	if err := config.DB.Create(&transaction).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record transaction",
		})
	}

	return c.JSON(fiber.Map{
		"clientSecret":   pi.ClientSecret,
		"transaction_id": transaction.ID,
		"amount":         pkg.Amount,
		"currency":       "ZAR",
	})
}

// HandlePaymentWebhook handles Stripe webhook events
func HandlePaymentWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Error parsing payment intent",
			})
		}
		return handlePaymentIntentSucceeded(c, &paymentIntent)

	case "payment_intent.payment_failed":
		var paymentIntent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Error parsing payment intent",
			})
		}
		return handlePaymentIntentFailed(c, &paymentIntent)

	default:
		return c.SendStatus(fiber.StatusOK)
	}
}

// handlePaymentIntentSucceeded credits the agent once payment completes.
// The completed-status check keeps webhook retries idempotent.
func handlePaymentIntentSucceeded(c *fiber.Ctx, pi *stripe.PaymentIntent) error {
	var transaction models.CreditTransaction
	if err := config.DB.Where("stripe_payment_intent_id = ?", pi.ID).First(&transaction).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transaction not found",
		})
	}

	if transaction.PaymentStatus == "completed" {
		return c.SendStatus(fiber.StatusOK)
	}

	transaction.PaymentStatus = "completed"
	if pi.LatestCharge != nil {
		if ch, err := charge.Get(pi.LatestCharge.ID, nil); err == nil {
			transaction.ReceiptURL = ch.ReceiptURL
		}
	}
	if err := config.DB.Save(&transaction).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update transaction",
		})
	}

	if err := config.DB.Model(&models.Agent{}).
		Where("id = ?", transaction.AgentID).
		UpdateColumn("message_credits", gorm.Expr("message_credits + ?", transaction.Credits)).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to grant credits",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// handlePaymentIntentFailed marks the transaction failed
func handlePaymentIntentFailed(c *fiber.Ctx, pi *stripe.PaymentIntent) error {
	var transaction models.CreditTransaction
	if err := config.DB.Where("stripe_payment_intent_id = ?", pi.ID).First(&transaction).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Transaction not found",
		})
	}

	transaction.PaymentStatus = "failed"
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		transaction.Description = "Payment failed: " + pi.LastPaymentError.Msg
	}
	if err := config.DB.Save(&transaction).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update transaction",
		})
	}

	return c.SendStatus(fiber.StatusOK)
}

// GetTransactions returns the agent's credit purchase history
func GetTransactions(c *fiber.Ctx) error {
	agent := c.Locals("agent").(*models.Agent)

	var transactions []models.CreditTransaction
	if err := config.DB.Where("agent_id = ?", agent.ID).
		Order("created_at DESC").
		Find(&transactions).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch transactions",
		})
	}

	return c.JSON(fiber.Map{
		"transactions": transactions,
		"balance":      agent.MessageCredits,
	})
}

// getOrCreateStripeCustomer gets or creates a Stripe customer for the agent
func getOrCreateStripeCustomer(agent *models.Agent) (string, error) {
	if agent.StripeCustomerID != nil {
		return *agent.StripeCustomerID, nil
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(agent.Email),
		Name:  stripe.String(agent.Name),
		Metadata: map[string]string{
			"agent_id": strconv.Itoa(int(agent.ID)),
		},
	}

	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	agent.StripeCustomerID = &cust.ID
	if err := config.DB.Save(agent).Error; err != nil {
		return "", err
	}

	return cust.ID, nil
}
