// Package repository provides the data access layer the automation engine
// and workers depend on, keeping gorm details out of the scheduling logic.
package repository

import (
	"context"
	"time"

	"propflow/models"
)

// SequenceRepository loads campaign definitions
type SequenceRepository interface {
	ByID(ctx context.Context, id uint) (*models.Sequence, error)
	ActiveByID(ctx context.Context, id uint) (*models.Sequence, error)
	ActiveByTrigger(ctx context.Context, agentID uint, trigger string) ([]models.Sequence, error)
	IncrementStepSent(ctx context.Context, stepID uint) error
}

// ContactRepository loads contacts with their tags
type ContactRepository interface {
	ByID(ctx context.Context, id uint) (*models.Contact, error)
	ReachableByAgent(ctx context.Context, agentID uint) ([]models.Contact, error)
	TouchLastContact(ctx context.Context, id uint, at time.Time) error
}

// TemplateRepository loads message templates
type TemplateRepository interface {
	ActiveByID(ctx context.Context, id uint) (*models.MessageTemplate, error)
}

// PropertyRepository loads listings used as template variable sources
type PropertyRepository interface {
	ByID(ctx context.Context, id uint) (*models.Property, error)
}

// AgentRepository covers the credit balance operations the engine needs
type AgentRepository interface {
	ByID(ctx context.Context, id uint) (*models.Agent, error)
	DebitCredits(ctx context.Context, agentID uint, credits int) error
}

// CommunicationRepository is the engine's and poller's view of the send log
type CommunicationRepository interface {
	Create(ctx context.Context, comm *models.Communication) error
	ByID(ctx context.Context, id uint) (*models.Communication, error)
	ByMessageID(ctx context.Context, messageID string) (*models.Communication, error)

	// HasResponse reports whether the contact has a responded communication
	// within the sequence (the requires-response step condition).
	HasResponse(ctx context.Context, contactID, sequenceID uint) (bool, error)

	// CountSentSince counts sends for a sequence after the given time,
	// enforcing the max-messages-per-day setting.
	CountSentSince(ctx context.Context, sequenceID uint, since time.Time) (int64, error)

	// ClaimDue atomically transitions due pending rows to processing on
	// behalf of workerID and returns the claimed rows. Two concurrent
	// pollers never claim the same row.
	ClaimDue(ctx context.Context, workerID string, now time.Time, limit int) ([]models.Communication, error)

	// Release returns a claimed row to pending with a new scheduled time
	// (outside business hours, daily cap reached).
	Release(ctx context.Context, id uint, scheduledAt time.Time) error

	// RequeueStale returns rows stuck in processing longer than timeout to
	// pending, covering worker crashes mid-claim.
	RequeueStale(ctx context.Context, now time.Time, timeout time.Duration) (int64, error)

	MarkSent(ctx context.Context, id uint, sentAt time.Time, messageID, provider string, cost float64, subject, body string) error
	MarkSkipped(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, errMsg string) error

	// Advance moves a sent communication along the engagement funnel
	// (delivered, opened, clicked, responded, bounced, unsubscribed).
	// Regressions are ignored, not errors.
	Advance(ctx context.Context, messageID, status string, at time.Time) error

	// SetResponseSnippet stores the opening text of a matched reply.
	SetResponseSnippet(ctx context.Context, messageID, snippet string) error
}
