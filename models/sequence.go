package models

import (
	"sort"

	"gorm.io/gorm"
)

// Trigger types for sequences
const (
	TriggerContactAdded = "contact_added"
	TriggerManual       = "manual"
)

// Sequence represents a multi-step automated follow-up campaign
type Sequence struct {
	gorm.Model
	AgentID uint `gorm:"not null;index" json:"agent_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`
	TriggerType string `gorm:"default:'manual'" json:"trigger_type"` // contact_added, manual

	// Sequences are never physically deleted, only deactivated
	IsActive bool `gorm:"default:false" json:"is_active"`

	Audience AudienceFilter   `gorm:"type:jsonb;serializer:json" json:"audience"`
	Settings SequenceSettings `gorm:"type:jsonb;serializer:json" json:"settings"`

	// Relations
	Steps []SequenceStep `gorm:"foreignKey:SequenceID" json:"steps,omitempty"`
}

// StepByNumber returns the step with the given number, or nil
func (s *Sequence) StepByNumber(n int) *SequenceStep {
	for i := range s.Steps {
		if s.Steps[i].StepNumber == n {
			return &s.Steps[i]
		}
	}
	return nil
}

// AudienceFilter narrows which contacts a sequence targets
type AudienceFilter struct {
	Tags      []string `json:"tags,omitempty"`
	PriceMin  float64  `json:"price_min,omitempty"`
	PriceMax  float64  `json:"price_max,omitempty"`
	Locations []string `json:"locations,omitempty"`
}

// SequenceSettings controls pacing and the business-hours window
type SequenceSettings struct {
	MaxMessagesPerDay int    `json:"max_messages_per_day"`
	Timezone          string `json:"timezone"`

	// Business-hours window; sends outside it are rolled forward when
	// RespectQuietHours is set. Days use time.Weekday values (0=Sunday).
	RespectQuietHours bool   `json:"respect_quiet_hours"`
	BusinessDays      []int  `json:"business_days,omitempty"`
	BusinessStart     string `json:"business_start,omitempty"` // "HH:MM"
	BusinessEnd       string `json:"business_end,omitempty"`   // "HH:MM"
}

// SequenceStep represents one timed send within a sequence
type SequenceStep struct {
	gorm.Model
	SequenceID uint `gorm:"not null;index" json:"sequence_id"`
	TemplateID uint `gorm:"not null;index" json:"template_id"`

	// Step numbers within a sequence are a contiguous 1..N ordering; the
	// engine looks up the current step and step+1 by number, so gaps break
	// progression.
	StepNumber int `gorm:"not null" json:"step_number"`

	Channel      string `gorm:"not null;default:'email'" json:"channel"` // email, sms, whatsapp
	DelayDays    int    `gorm:"default:0" json:"delay_days"`
	DelayHours   int    `gorm:"default:0" json:"delay_hours"`
	DelayMinutes int    `gorm:"default:0" json:"delay_minutes"`

	Conditions StepConditions `gorm:"type:jsonb;serializer:json" json:"conditions"`

	IsActive bool `gorm:"default:true" json:"is_active"`

	// Denormalized counters
	SentCount int `gorm:"default:0" json:"sent_count"`

	// Relations
	Template MessageTemplate `json:"-"`
}

// StepConditions gates whether a step fires for a contact. Only
// RequiresResponse is evaluated; the rate thresholds are persisted for the
// builder UI but rejected as unsupported by the engine.
type StepConditions struct {
	RequiresResponse bool     `json:"requires_response,omitempty"`
	MinOpenRate      *float64 `json:"min_open_rate,omitempty"`
	MinClickRate     *float64 `json:"min_click_rate,omitempty"`
}

// RenumberSteps rewrites step numbers to a contiguous 1..N ordering,
// preserving the current relative order.
func RenumberSteps(steps []SequenceStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StepNumber < steps[j].StepNumber
	})
	for i := range steps {
		steps[i].StepNumber = i + 1
	}
}

// RemoveStep deletes the step with the given number and renumbers the rest
func RemoveStep(steps []SequenceStep, stepNumber int) []SequenceStep {
	out := steps[:0]
	for _, s := range steps {
		if s.StepNumber != stepNumber {
			out = append(out, s)
		}
	}
	RenumberSteps(out)
	return out
}

// MoveStep moves a step from one position to another and renumbers so the
// result is again contiguous 1..N.
func MoveStep(steps []SequenceStep, from, to int) []SequenceStep {
	if from == to || from < 1 || to < 1 || from > len(steps) || to > len(steps) {
		return steps
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StepNumber < steps[j].StepNumber
	})
	moved := steps[from-1]
	rest := append([]SequenceStep{}, steps[:from-1]...)
	rest = append(rest, steps[from:]...)
	out := append([]SequenceStep{}, rest[:to-1]...)
	out = append(out, moved)
	out = append(out, rest[to-1:]...)
	for i := range out {
		out[i].StepNumber = i + 1
	}
	return out
}
