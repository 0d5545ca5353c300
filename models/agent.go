package models

import (
	"time"

	"gorm.io/gorm"
)

// Agent represents a registered estate agent account
type Agent struct {
	gorm.Model

	// Authentication fields
	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string `gorm:"not null" json:"-"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`
	TokenVersion  int    `gorm:"default:0" json:"-"`

	// Google OAuth fields
	GoogleID       *string `gorm:"uniqueIndex" json:"google_id,omitempty"`
	GoogleImageURL *string `json:"google_image_url,omitempty"`

	// Profile information
	Name     string `json:"name"`
	Agency   string `json:"agency"`
	Phone    string `json:"phone"`
	Timezone string `gorm:"default:'Africa/Johannesburg'" json:"timezone"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`

	// SMS/WhatsApp sends debit message credits; email is unmetered
	MessageCredits int `gorm:"default:50" json:"message_credits"`

	// Stripe integration
	StripeCustomerID *string `gorm:"index" json:"stripe_customer_id,omitempty"`

	// Relations
	Contacts     []Contact           `gorm:"foreignKey:AgentID" json:"contacts,omitempty"`
	Sequences    []Sequence          `gorm:"foreignKey:AgentID" json:"sequences,omitempty"`
	Transactions []CreditTransaction `gorm:"foreignKey:AgentID" json:"transactions,omitempty"`
}

// RefreshToken stores issued refresh tokens so they can be revoked
type RefreshToken struct {
	gorm.Model
	AgentID   uint       `gorm:"not null;index" json:"agent_id"`
	Token     string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`

	Agent Agent `json:"-"`
}
