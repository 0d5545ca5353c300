package models

import (
	"time"

	"gorm.io/gorm"
)

// Contact represents a buyer or seller lead owned by an agent
type Contact struct {
	gorm.Model
	AgentID uint `gorm:"not null;index" json:"agent_id"`

	FirstName string `gorm:"not null" json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `gorm:"index" json:"email"`
	Phone     string `json:"phone"`

	// Buying profile, matched against a sequence's audience filter
	BudgetMin          float64 `gorm:"default:0" json:"budget_min"`
	BudgetMax          float64 `gorm:"default:0" json:"budget_max"`
	PreferredLocations string  `json:"preferred_locations"` // comma separated suburbs

	// Status
	IsUnsubscribed bool `gorm:"default:false" json:"is_unsubscribed"`
	IsDoNotContact bool `gorm:"default:false" json:"is_do_not_contact"`

	// Metadata
	Source      string     `json:"source"` // manual, portal, import
	LastContact *time.Time `json:"last_contact"`

	// Relations
	Tags           []ContactTag    `gorm:"foreignKey:ContactID" json:"tags,omitempty"`
	Communications []Communication `gorm:"foreignKey:ContactID" json:"communications,omitempty"`
}

// FullName joins first and last name for template rendering
func (c *Contact) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// HasTag reports whether the contact carries the given tag
func (c *Contact) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t.Tag == tag {
			return true
		}
	}
	return false
}

// ContactTag represents tags for contacts (normalized)
type ContactTag struct {
	gorm.Model
	ContactID uint   `gorm:"not null;index" json:"contact_id"`
	Tag       string `gorm:"not null;index" json:"tag"`
}
