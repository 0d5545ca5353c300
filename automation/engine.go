package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"propflow/gateway"
	"propflow/models"
	"propflow/repository"
	"propflow/utils"
)

// StepResult reports the outcome of processing one sequence step for one
// contact.
type StepResult struct {
	CommunicationID uint       `json:"communication_id"`
	Skipped         bool       `json:"skipped"`
	MessageID       string     `json:"message_id,omitempty"`
	Provider        string     `json:"provider,omitempty"`
	Cost            float64    `json:"cost"`
	NextStep        int        `json:"next_step"` // 0 when the sequence is complete
	NextScheduledAt *time.Time `json:"next_scheduled_at,omitempty"`
}

// Engine drives sequence progression: it resolves the sequence, step,
// contact and template, evaluates step conditions, renders and sends the
// message, settles the communication row, and schedules the following step.
type Engine struct {
	sequences  repository.SequenceRepository
	contacts   repository.ContactRepository
	templates  repository.TemplateRepository
	properties repository.PropertyRepository
	agents     repository.AgentRepository
	comms      repository.CommunicationRepository
	sender     gateway.Sender

	creditsPerSend int
	logger         *logrus.Logger
	now            func() time.Time
}

func NewEngine(
	sequences repository.SequenceRepository,
	contacts repository.ContactRepository,
	templates repository.TemplateRepository,
	properties repository.PropertyRepository,
	agents repository.AgentRepository,
	comms repository.CommunicationRepository,
	sender gateway.Sender,
	creditsPerSend int,
	logger *logrus.Logger,
) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if creditsPerSend <= 0 {
		creditsPerSend = 1
	}
	return &Engine{
		sequences:      sequences,
		contacts:       contacts,
		templates:      templates,
		properties:     properties,
		agents:         agents,
		comms:          comms,
		sender:         sender,
		creditsPerSend: creditsPerSend,
		logger:         logger,
		now:            utils.UTCNow,
	}
}

// SetClock overrides the engine's time source. Tests use this to pin
// scheduling decisions to a fixed instant.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// StartForContact enrolls a contact into a sequence by creating the pending
// communication for step one, scheduled per the step's delay and the
// sequence's business-hours settings.
func (e *Engine) StartForContact(ctx context.Context, seq *models.Sequence, contact *models.Contact, propertyID *uint) (*models.Communication, error) {
	if !seq.IsActive {
		return nil, ErrSequenceInactive
	}
	first := seq.StepByNumber(1)
	if first == nil {
		return nil, ErrStepNotFound
	}
	if contact.IsUnsubscribed || contact.IsDoNotContact {
		return nil, ErrContactUnreachable
	}

	comm := &models.Communication{
		AgentID:     seq.AgentID,
		ContactID:   contact.ID,
		SequenceID:  seq.ID,
		StepID:      first.ID,
		PropertyID:  propertyID,
		Channel:     first.Channel,
		Status:      models.StatusPending,
		ScheduledAt: NextStepTime(e.now(), first, seq.Settings),
	}
	if err := e.comms.Create(ctx, comm); err != nil {
		return nil, fmt.Errorf("enroll contact %d in sequence %d: %w", contact.ID, seq.ID, err)
	}
	return comm, nil
}

// ProcessSequenceStep sends one step of a sequence to a contact on demand.
// It creates its own communication row (claimed by "api" so pollers skip
// it), drives it through ProcessClaimed, and settles it as failed when
// processing errors.
func (e *Engine) ProcessSequenceStep(ctx context.Context, sequenceID, contactID uint, stepNumber int, vars map[string]string) (*StepResult, error) {
	seq, err := e.loadSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	step := seq.StepByNumber(stepNumber)
	if step == nil {
		return nil, ErrStepNotFound
	}

	now := e.now()
	comm := &models.Communication{
		AgentID:     seq.AgentID,
		ContactID:   contactID,
		SequenceID:  sequenceID,
		StepID:      step.ID,
		Channel:     step.Channel,
		Status:      models.StatusProcessing,
		ScheduledAt: now,
		ClaimedBy:   "api",
		ClaimedAt:   &now,
	}
	if err := e.comms.Create(ctx, comm); err != nil {
		return nil, fmt.Errorf("create communication: %w", err)
	}

	result, err := e.ProcessClaimed(ctx, comm, vars)
	if err != nil {
		if mErr := e.comms.MarkFailed(ctx, comm.ID, err.Error()); mErr != nil {
			e.logger.WithError(mErr).WithField("communication_id", comm.ID).Error("could not settle failed communication")
		}
		return nil, err
	}
	return result, nil
}

// ProcessClaimed executes a communication row already in processing state.
// On success the row is settled as sent (or skipped when conditions do not
// hold) and the next step's pending row is created. On error the row is
// left in processing for the caller to settle as failed.
func (e *Engine) ProcessClaimed(ctx context.Context, comm *models.Communication, vars map[string]string) (*StepResult, error) {
	seq, err := e.loadSequence(ctx, comm.SequenceID)
	if err != nil {
		return nil, err
	}

	step := stepByID(seq, comm.StepID)
	if step == nil {
		return nil, ErrStepNotFound
	}
	if !step.IsActive {
		return nil, ErrStepInactive
	}

	contact, err := e.contacts.ByID(ctx, comm.ContactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, ErrContactNotFound
	}

	result := &StepResult{CommunicationID: comm.ID}

	// Unsubscribed and do-not-contact flags skip the send but still let the
	// sequence advance, same as an unmet step condition.
	proceed := !contact.IsUnsubscribed && !contact.IsDoNotContact
	if proceed {
		met, err := EvaluateConditions(ctx, e.comms, step, seq.ID, contact.ID)
		if err != nil {
			return nil, err
		}
		proceed = met
	}

	if !proceed {
		if err := e.comms.MarkSkipped(ctx, comm.ID); err != nil {
			return nil, fmt.Errorf("settle skipped communication %d: %w", comm.ID, err)
		}
		result.Skipped = true
		if err := e.scheduleNext(ctx, seq, comm, step, result); err != nil {
			return nil, err
		}
		return result, nil
	}

	tmpl, err := e.templates.ActiveByID(ctx, step.TemplateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, ErrTemplateNotFound
	}

	to := contact.Email
	if step.Channel != models.ChannelEmail {
		to = contact.Phone
	}
	if to == "" {
		return nil, ErrContactUnreachable
	}

	// SMS and WhatsApp sends are paid per message from the agent's credit
	// balance.
	if step.Channel != models.ChannelEmail {
		agent, err := e.agents.ByID(ctx, comm.AgentID)
		if err != nil {
			return nil, err
		}
		if agent == nil || agent.MessageCredits < e.creditsPerSend {
			return nil, ErrInsufficientCredits
		}
	}

	subject, body := tmpl.Render(e.buildVariables(ctx, contact, comm.PropertyID, vars))

	msg := gateway.Message{
		Channel:   step.Channel,
		To:        to,
		ToName:    contact.FullName(),
		Subject:   subject,
		Body:      body,
		MessageID: uuid.New().String(),
	}

	sent, err := e.sender.Send(ctx, msg)
	if err != nil {
		e.logger.WithError(err).WithFields(logrus.Fields{
			"communication_id": comm.ID,
			"sequence_id":      seq.ID,
			"contact_id":       contact.ID,
			"channel":          step.Channel,
		}).Error("send failed")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("send step %d of sequence %d: %w", step.StepNumber, seq.ID, err)
	}

	sentAt := e.now()
	if err := e.comms.MarkSent(ctx, comm.ID, sentAt, sent.MessageID, sent.Provider, sent.Cost, subject, body); err != nil {
		return nil, fmt.Errorf("settle sent communication %d: %w", comm.ID, err)
	}

	if step.Channel != models.ChannelEmail {
		if err := e.agents.DebitCredits(ctx, comm.AgentID, e.creditsPerSend); err != nil {
			e.logger.WithError(err).WithField("agent_id", comm.AgentID).Warn("credit debit after send failed")
		}
	}
	if err := e.sequences.IncrementStepSent(ctx, step.ID); err != nil {
		e.logger.WithError(err).WithField("step_id", step.ID).Warn("step counter update failed")
	}
	if err := e.contacts.TouchLastContact(ctx, contact.ID, sentAt); err != nil {
		e.logger.WithError(err).WithField("contact_id", contact.ID).Warn("last-contact update failed")
	}

	result.MessageID = sent.MessageID
	result.Provider = sent.Provider
	result.Cost = sent.Cost

	if err := e.scheduleNext(ctx, seq, comm, step, result); err != nil {
		return nil, err
	}
	return result, nil
}

// scheduleNext creates the pending communication for the step after the one
// just settled. The sequence is complete when no such step exists.
func (e *Engine) scheduleNext(ctx context.Context, seq *models.Sequence, comm *models.Communication, step *models.SequenceStep, result *StepResult) error {
	next := seq.StepByNumber(step.StepNumber + 1)
	if next == nil {
		return nil
	}

	nextAt := NextStepTime(e.now(), next, seq.Settings)
	nextComm := &models.Communication{
		AgentID:     comm.AgentID,
		ContactID:   comm.ContactID,
		SequenceID:  seq.ID,
		StepID:      next.ID,
		PropertyID:  comm.PropertyID,
		Channel:     next.Channel,
		Status:      models.StatusPending,
		ScheduledAt: nextAt,
	}
	if err := e.comms.Create(ctx, nextComm); err != nil {
		return fmt.Errorf("schedule step %d of sequence %d: %w", next.StepNumber, seq.ID, err)
	}

	result.NextStep = next.StepNumber
	result.NextScheduledAt = &nextAt
	return nil
}

// buildVariables assembles the template variable map. Contact fields come
// first, then property fields, then caller-supplied overrides, so explicit
// values always win.
func (e *Engine) buildVariables(ctx context.Context, contact *models.Contact, propertyID *uint, overrides map[string]string) map[string]string {
	vars := map[string]string{
		"name":       contact.FullName(),
		"first_name": contact.FirstName,
		"last_name":  contact.LastName,
		"email":      contact.Email,
		"phone":      contact.Phone,
	}

	if propertyID != nil {
		if prop, err := e.properties.ByID(ctx, *propertyID); err != nil {
			e.logger.WithError(err).WithField("property_id", *propertyID).Warn("property lookup for template variables failed")
		} else if prop != nil {
			for k, v := range prop.TemplateVariables() {
				vars[k] = v
			}
		}
	}

	for k, v := range overrides {
		vars[k] = v
	}
	return vars
}

func (e *Engine) loadSequence(ctx context.Context, id uint) (*models.Sequence, error) {
	seq, err := e.sequences.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if seq == nil {
		return nil, ErrSequenceNotFound
	}
	if !seq.IsActive {
		return nil, ErrSequenceInactive
	}
	return seq, nil
}

func stepByID(seq *models.Sequence, stepID uint) *models.SequenceStep {
	for i := range seq.Steps {
		if seq.Steps[i].ID == stepID {
			return &seq.Steps[i]
		}
	}
	return nil
}
