package automation

import (
	"context"
	"time"

	"propflow/models"
	"propflow/repository"
)

// In-memory repositories backing the engine tests.

type fakeSequences struct {
	byID      map[uint]*models.Sequence
	stepSends map[uint]int
}

func (f *fakeSequences) ByID(ctx context.Context, id uint) (*models.Sequence, error) {
	return f.byID[id], nil
}

func (f *fakeSequences) ActiveByID(ctx context.Context, id uint) (*models.Sequence, error) {
	seq := f.byID[id]
	if seq == nil || !seq.IsActive {
		return nil, nil
	}
	return seq, nil
}

func (f *fakeSequences) ActiveByTrigger(ctx context.Context, agentID uint, trigger string) ([]models.Sequence, error) {
	var out []models.Sequence
	for _, seq := range f.byID {
		if seq.IsActive && seq.AgentID == agentID && seq.TriggerType == trigger {
			out = append(out, *seq)
		}
	}
	return out, nil
}

func (f *fakeSequences) IncrementStepSent(ctx context.Context, stepID uint) error {
	if f.stepSends == nil {
		f.stepSends = map[uint]int{}
	}
	f.stepSends[stepID]++
	return nil
}

type fakeContacts struct {
	byID    map[uint]*models.Contact
	byAgent map[uint][]models.Contact
	touched map[uint]time.Time
}

func (f *fakeContacts) ByID(ctx context.Context, id uint) (*models.Contact, error) {
	return f.byID[id], nil
}

func (f *fakeContacts) ReachableByAgent(ctx context.Context, agentID uint) ([]models.Contact, error) {
	return f.byAgent[agentID], nil
}

func (f *fakeContacts) TouchLastContact(ctx context.Context, id uint, at time.Time) error {
	if f.touched == nil {
		f.touched = map[uint]time.Time{}
	}
	f.touched[id] = at
	return nil
}

type fakeTemplates struct {
	byID map[uint]*models.MessageTemplate
}

func (f *fakeTemplates) ActiveByID(ctx context.Context, id uint) (*models.MessageTemplate, error) {
	tmpl := f.byID[id]
	if tmpl == nil || !tmpl.IsActive {
		return nil, nil
	}
	return tmpl, nil
}

type fakeProperties struct {
	byID map[uint]*models.Property
}

func (f *fakeProperties) ByID(ctx context.Context, id uint) (*models.Property, error) {
	return f.byID[id], nil
}

type fakeAgents struct {
	byID    map[uint]*models.Agent
	debited map[uint]int
}

func (f *fakeAgents) ByID(ctx context.Context, id uint) (*models.Agent, error) {
	return f.byID[id], nil
}

func (f *fakeAgents) DebitCredits(ctx context.Context, agentID uint, credits int) error {
	if f.debited == nil {
		f.debited = map[uint]int{}
	}
	f.debited[agentID] += credits
	if agent := f.byID[agentID]; agent != nil {
		agent.MessageCredits -= credits
	}
	return nil
}

type fakeComms struct {
	rows      []*models.Communication
	nextID    uint
	responded map[uint]bool // contactID -> has responded
	sentSince int64
	snippets  map[string]string
}

var _ repository.CommunicationRepository = (*fakeComms)(nil)

func (f *fakeComms) Create(ctx context.Context, comm *models.Communication) error {
	f.nextID++
	comm.ID = f.nextID
	f.rows = append(f.rows, comm)
	return nil
}

func (f *fakeComms) ByID(ctx context.Context, id uint) (*models.Communication, error) {
	for _, c := range f.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeComms) ByMessageID(ctx context.Context, messageID string) (*models.Communication, error) {
	for _, c := range f.rows {
		if c.MessageID == messageID {
			return c, nil
		}
	}
	return nil, nil
}

func (f *fakeComms) HasResponse(ctx context.Context, contactID, sequenceID uint) (bool, error) {
	return f.responded[contactID], nil
}

func (f *fakeComms) CountSentSince(ctx context.Context, sequenceID uint, since time.Time) (int64, error) {
	return f.sentSince, nil
}

func (f *fakeComms) ClaimDue(ctx context.Context, workerID string, now time.Time, limit int) ([]models.Communication, error) {
	var claimed []models.Communication
	for _, c := range f.rows {
		if len(claimed) >= limit {
			break
		}
		if c.Status == models.StatusPending && !c.ScheduledAt.After(now) {
			c.Status = models.StatusProcessing
			c.ClaimedBy = workerID
			at := now
			c.ClaimedAt = &at
			claimed = append(claimed, *c)
		}
	}
	return claimed, nil
}

func (f *fakeComms) Release(ctx context.Context, id uint, scheduledAt time.Time) error {
	for _, c := range f.rows {
		if c.ID == id && c.Status == models.StatusProcessing {
			c.Status = models.StatusPending
			c.ScheduledAt = scheduledAt
			c.ClaimedBy = ""
			c.ClaimedAt = nil
		}
	}
	return nil
}

func (f *fakeComms) RequeueStale(ctx context.Context, now time.Time, timeout time.Duration) (int64, error) {
	var n int64
	for _, c := range f.rows {
		if c.Status == models.StatusProcessing && c.ClaimedAt != nil && c.ClaimedAt.Before(now.Add(-timeout)) {
			c.Status = models.StatusPending
			c.ClaimedBy = ""
			c.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeComms) MarkSent(ctx context.Context, id uint, sentAt time.Time, messageID, provider string, cost float64, subject, body string) error {
	for _, c := range f.rows {
		if c.ID == id {
			c.Status = models.StatusSent
			at := sentAt
			c.SentAt = &at
			c.MessageID = messageID
			c.Provider = provider
			c.Cost = cost
			c.Subject = subject
			c.Body = body
			c.ClaimedBy = ""
			c.ClaimedAt = nil
		}
	}
	return nil
}

func (f *fakeComms) MarkSkipped(ctx context.Context, id uint) error {
	for _, c := range f.rows {
		if c.ID == id {
			c.Status = models.StatusSkipped
			c.ClaimedBy = ""
			c.ClaimedAt = nil
		}
	}
	return nil
}

func (f *fakeComms) MarkFailed(ctx context.Context, id uint, errMsg string) error {
	for _, c := range f.rows {
		if c.ID == id {
			c.Status = models.StatusFailed
			c.ErrorMessage = errMsg
			c.ClaimedBy = ""
			c.ClaimedAt = nil
		}
	}
	return nil
}

func (f *fakeComms) Advance(ctx context.Context, messageID, status string, at time.Time) error {
	for _, c := range f.rows {
		if c.MessageID == messageID && models.AdvancesTo(c.Status, status) {
			c.Status = status
		}
	}
	return nil
}

func (f *fakeComms) SetResponseSnippet(ctx context.Context, messageID, snippet string) error {
	if f.snippets == nil {
		f.snippets = map[string]string{}
	}
	f.snippets[messageID] = snippet
	return nil
}
