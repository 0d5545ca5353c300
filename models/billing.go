package models

import "gorm.io/gorm"

// CreditTransaction records message-credit purchases and debits. Positive
// Credits for purchases, negative for usage.
type CreditTransaction struct {
	gorm.Model
	AgentID uint `gorm:"not null;index" json:"agent_id"`

	Credits int `gorm:"not null" json:"credits"`

	// Financial information (purchases only)
	Amount        int    `json:"amount"` // in cents
	Currency      string `gorm:"default:'ZAR'" json:"currency"`
	PaymentStatus string `gorm:"default:'pending'" json:"payment_status"` // pending, completed, failed, refunded

	Description           string `json:"description"`
	StripePaymentIntentID string `gorm:"index" json:"stripe_payment_intent_id,omitempty"`
	ReceiptURL            string `json:"receipt_url,omitempty"`

	// Relations
	Agent Agent `json:"-"`
}

// CreditPackage is a purchasable credit bundle
type CreditPackage struct {
	Name    string `json:"name"`
	Credits int    `json:"credits"`
	Amount  int    `json:"amount"` // in cents, ZAR
}

// CreditPackages lists the bundles offered at checkout
var CreditPackages = []CreditPackage{
	{Name: "starter", Credits: 100, Amount: 4900},
	{Name: "growth", Credits: 500, Amount: 19900},
	{Name: "agency", Credits: 2000, Amount: 69900},
}
