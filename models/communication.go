package models

import (
	"time"

	"gorm.io/gorm"
)

// Channels
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// Communication statuses. A record is created pending, claimed by a poller
// (processing), and settles exactly once into sent, skipped or failed. A
// sent email may then be advanced by tracking endpoints, the provider
// webhook, or the reply worker.
const (
	StatusPending      = "pending"
	StatusProcessing   = "processing"
	StatusSent         = "sent"
	StatusSkipped      = "skipped"
	StatusDelivered    = "delivered"
	StatusOpened       = "opened"
	StatusClicked      = "clicked"
	StatusResponded    = "responded"
	StatusBounced      = "bounced"
	StatusFailed       = "failed"
	StatusUnsubscribed = "unsubscribed"
)

// statusRank orders the post-send engagement funnel so that webhook events
// arriving out of order never regress a status.
var statusRank = map[string]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusOpened:    3,
	StatusClicked:   4,
	StatusResponded: 5,
}

// AdvancesTo reports whether a communication in status from may move to.
// Terminal failure statuses are reachable from any engagement state.
func AdvancesTo(from, to string) bool {
	if to == StatusBounced || to == StatusUnsubscribed {
		return statusRank[from] > 0
	}
	fr, fok := statusRank[from]
	tr, tok := statusRank[to]
	return fok && tok && tr > fr
}

// Communication is one row per attempted send, the append-only event log
// driving both the poller and analytics.
type Communication struct {
	gorm.Model
	AgentID    uint  `gorm:"not null;index" json:"agent_id"`
	ContactID  uint  `gorm:"not null;index" json:"contact_id"`
	SequenceID uint  `gorm:"not null;index" json:"sequence_id"`
	StepID     uint  `gorm:"not null;index" json:"step_id"`
	PropertyID *uint `json:"property_id,omitempty"`

	Channel string `gorm:"not null" json:"channel"`
	Status  string `gorm:"not null;default:'pending';index:idx_comms_due,priority:1" json:"status"`

	ScheduledAt time.Time  `gorm:"not null;index:idx_comms_due,priority:2" json:"scheduled_at"`
	SentAt      *time.Time `json:"sent_at,omitempty"`

	// Rendered content snapshot
	Subject string `json:"subject"`
	Body    string `gorm:"type:text" json:"body"`

	// Provider metadata
	MessageID string  `gorm:"index" json:"message_id"`
	Provider  string  `json:"provider"`
	Cost      float64 `gorm:"default:0" json:"cost"`

	// Engagement timestamps
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	OpenedAt    *time.Time `json:"opened_at,omitempty"`
	ClickedAt   *time.Time `json:"clicked_at,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	OpenCount   int        `gorm:"default:0" json:"open_count"`
	ClickCount  int        `gorm:"default:0" json:"click_count"`

	// First lines of the contact's reply, captured by the inbox worker
	ResponseSnippet string `gorm:"type:text" json:"response_snippet,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	// Poller lease; set when a worker claims the row
	ClaimedBy string     `gorm:"index" json:"-"`
	ClaimedAt *time.Time `json:"-"`

	// Relations
	Agent    Agent        `json:"-"`
	Contact  Contact      `json:"-"`
	Sequence Sequence     `json:"-"`
	Step     SequenceStep `json:"-"`
}
