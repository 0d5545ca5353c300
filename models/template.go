package models

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

// MessageTemplate represents reusable message content for sequence steps.
// Subject is only used for the email channel.
type MessageTemplate struct {
	gorm.Model
	AgentID uint `gorm:"not null;index" json:"agent_id"`

	Name    string `gorm:"not null" json:"name"`
	Channel string `gorm:"not null;default:'email'" json:"channel"` // email, sms, whatsapp
	Subject string `json:"subject"`
	Body    string `gorm:"type:text;not null" json:"body"`

	IsActive bool `gorm:"default:true" json:"is_active"`
}

// Render expands {{variable}} placeholders in the subject and body.
// Unknown placeholders are left in place so missing data is visible.
func (t *MessageTemplate) Render(vars map[string]string) (subject, body string) {
	return expandPlaceholders(t.Subject, vars), expandPlaceholders(t.Body, vars)
}

func expandPlaceholders(s string, vars map[string]string) string {
	for name, value := range vars {
		s = strings.ReplaceAll(s, "{{"+name+"}}", value)
	}
	return s
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

// formatRand renders a price as "R 1,250,000"
func formatRand(amount float64) string {
	whole := int64(amount)
	s := strconv.FormatInt(whole, 10)
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	return fmt.Sprintf("R %s", strings.Join(parts, ","))
}
