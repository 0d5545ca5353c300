package worker

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"propflow/automation"
	"propflow/gateway"
	"propflow/models"
)

type memSequences struct {
	byID map[uint]*models.Sequence
}

func (m *memSequences) ByID(ctx context.Context, id uint) (*models.Sequence, error) {
	return m.byID[id], nil
}

func (m *memSequences) ActiveByID(ctx context.Context, id uint) (*models.Sequence, error) {
	seq := m.byID[id]
	if seq == nil || !seq.IsActive {
		return nil, nil
	}
	return seq, nil
}

func (m *memSequences) ActiveByTrigger(ctx context.Context, agentID uint, trigger string) ([]models.Sequence, error) {
	return nil, nil
}

func (m *memSequences) IncrementStepSent(ctx context.Context, stepID uint) error { return nil }

type memContacts struct {
	byID map[uint]*models.Contact
}

func (m *memContacts) ByID(ctx context.Context, id uint) (*models.Contact, error) {
	return m.byID[id], nil
}

func (m *memContacts) ReachableByAgent(ctx context.Context, agentID uint) ([]models.Contact, error) {
	return nil, nil
}

func (m *memContacts) TouchLastContact(ctx context.Context, id uint, at time.Time) error {
	return nil
}

type memTemplates struct {
	byID map[uint]*models.MessageTemplate
}

func (m *memTemplates) ActiveByID(ctx context.Context, id uint) (*models.MessageTemplate, error) {
	return m.byID[id], nil
}

type memProperties struct{}

func (memProperties) ByID(ctx context.Context, id uint) (*models.Property, error) { return nil, nil }

type memAgents struct{}

func (memAgents) ByID(ctx context.Context, id uint) (*models.Agent, error) {
	return &models.Agent{Model: gorm.Model{ID: id}, MessageCredits: 100}, nil
}

func (memAgents) DebitCredits(ctx context.Context, agentID uint, credits int) error { return nil }

type memComms struct {
	rows      []*models.Communication
	nextID    uint
	sentToday int64
	responded bool
}

func (m *memComms) Create(ctx context.Context, comm *models.Communication) error {
	m.nextID++
	comm.ID = m.nextID
	m.rows = append(m.rows, comm)
	return nil
}

func (m *memComms) ByID(ctx context.Context, id uint) (*models.Communication, error) {
	for _, c := range m.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, nil
}

func (m *memComms) ByMessageID(ctx context.Context, messageID string) (*models.Communication, error) {
	for _, c := range m.rows {
		if c.MessageID == messageID {
			return c, nil
		}
	}
	return nil, nil
}

func (m *memComms) HasResponse(ctx context.Context, contactID, sequenceID uint) (bool, error) {
	return m.responded, nil
}

func (m *memComms) CountSentSince(ctx context.Context, sequenceID uint, since time.Time) (int64, error) {
	return m.sentToday, nil
}

func (m *memComms) ClaimDue(ctx context.Context, workerID string, now time.Time, limit int) ([]models.Communication, error) {
	var claimed []models.Communication
	for _, c := range m.rows {
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

func (m *memComms) Release(ctx context.Context, id uint, scheduledAt time.Time) error {
	for _, c := range m.rows {
		if c.ID == id && c.Status == models.StatusProcessing {
			c.Status = models.StatusPending
			c.ScheduledAt = scheduledAt
			c.ClaimedBy = ""
			c.ClaimedAt = nil
		}
	}
	return nil
}

func (m *memComms) RequeueStale(ctx context.Context, now time.Time, timeout time.Duration) (int64, error) {
	var n int64
	for _, c := range m.rows {
		if c.Status == models.StatusProcessing && c.ClaimedAt != nil && c.ClaimedAt.Before(now.Add(-timeout)) {
			c.Status = models.StatusPending
			c.ClaimedBy = ""
			c.ClaimedAt = nil
			n++
		}
	}
	return n, nil
}

func (m *memComms) MarkSent(ctx context.Context, id uint, sentAt time.Time, messageID, provider string, cost float64, subject, body string) error {
	for _, c := range m.rows {
		if c.ID == id {
			c.Status = models.StatusSent
			at := sentAt
			c.SentAt = &at
			c.MessageID = messageID
			c.Provider = provider
			c.ClaimedBy = ""
			c.ClaimedAt = nil
		}
	}
	return nil
}

func (m *memComms) MarkSkipped(ctx context.Context, id uint) error {
	for _, c := range m.rows {
		if c.ID == id {
			c.Status = models.StatusSkipped
		}
	}
	return nil
}

func (m *memComms) MarkFailed(ctx context.Context, id uint, errMsg string) error {
	for _, c := range m.rows {
		if c.ID == id {
			c.Status = models.StatusFailed
			c.ErrorMessage = errMsg
		}
	}
	return nil
}

func (m *memComms) Advance(ctx context.Context, messageID, status string, at time.Time) error {
	return nil
}

func (m *memComms) SetResponseSnippet(ctx context.Context, messageID, snippet string) error {
	return nil
}

type pollerFixture struct {
	poller    *StepPoller
	comms     *memComms
	seqs      *memSequences
	templates *memTemplates
	sender    *gateway.MockSender
	now       time.Time
}

func newPollerFixture(t *testing.T) *pollerFixture {
	t.Helper()

	fx := &pollerFixture{
		// Wednesday 2026-03-04 10:00 UTC
		now:    time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC),
		comms:  &memComms{},
		sender: gateway.NewMockSender("mock"),
	}

	fx.seqs = &memSequences{byID: map[uint]*models.Sequence{
		1: {
			Model:    gorm.Model{ID: 1},
			AgentID:  7,
			IsActive: true,
			Settings: models.SequenceSettings{RespectQuietHours: true},
			Steps: []models.SequenceStep{
				{Model: gorm.Model{ID: 11}, SequenceID: 1, TemplateID: 31, StepNumber: 1, Channel: models.ChannelEmail, IsActive: true},
			},
		},
	}}
	contacts := &memContacts{byID: map[uint]*models.Contact{
		21: {Model: gorm.Model{ID: 21}, AgentID: 7, FirstName: "Ayesha", Email: "ayesha@example.com", Phone: "+27821234567"},
	}}
	fx.templates = &memTemplates{byID: map[uint]*models.MessageTemplate{
		31: {Model: gorm.Model{ID: 31}, Channel: models.ChannelEmail, Subject: "Hello", Body: "Hi {{first_name}}", IsActive: true},
	}}

	engine := automation.NewEngine(fx.seqs, contacts, fx.templates, memProperties{}, memAgents{}, fx.comms, fx.sender, 1, nil)
	engine.SetClock(func() time.Time { return fx.now })

	fx.poller = NewStepPoller(fx.comms, fx.seqs, engine, log.New(os.Stdout, "POLLER: ", log.LstdFlags), "worker-test", time.Minute, 5*time.Minute)
	fx.poller.now = func() time.Time { return fx.now }
	return fx
}

// setNow moves the poller's and the engine's shared clock.
func (fx *pollerFixture) setNow(at time.Time) { fx.now = at }

func (fx *pollerFixture) enqueue(scheduledAt time.Time) *models.Communication {
	comm := &models.Communication{
		AgentID: 7, ContactID: 21, SequenceID: 1, StepID: 11,
		Channel: models.ChannelEmail, Status: models.StatusPending,
		ScheduledAt: scheduledAt,
	}
	_ = fx.comms.Create(context.Background(), comm)
	return comm
}

func TestRunOnceProcessesDueRows(t *testing.T) {
	fx := newPollerFixture(t)
	fx.enqueue(fx.now.Add(-time.Minute))
	fx.enqueue(fx.now.Add(time.Hour)) // not yet due

	processed, failed, err := fx.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)

	assert.Equal(t, models.StatusSent, fx.comms.rows[0].Status)
	assert.Equal(t, models.StatusPending, fx.comms.rows[1].Status)
	assert.Len(t, fx.sender.SentMessages(), 1)
}

func TestRunOnceParksPausedSequence(t *testing.T) {
	fx := newPollerFixture(t)
	fx.seqs.byID[1].IsActive = false
	fx.enqueue(fx.now.Add(-time.Minute))

	processed, failed, err := fx.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)

	// Parked, not failed: pending again an hour out
	row := fx.comms.rows[0]
	assert.Equal(t, models.StatusPending, row.Status)
	assert.True(t, row.ScheduledAt.Equal(fx.now.Add(time.Hour)))
	assert.Empty(t, fx.sender.SentMessages())
}

func TestRunOnceDefersOutsideBusinessHours(t *testing.T) {
	fx := newPollerFixture(t)
	// Saturday 2026-03-07 11:00 UTC
	weekend := time.Date(2026, 3, 7, 11, 0, 0, 0, time.UTC)
	fx.setNow(weekend)
	fx.enqueue(weekend.Add(-time.Minute))

	processed, _, err := fx.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	row := fx.comms.rows[0]
	assert.Equal(t, models.StatusPending, row.Status)
	// Monday 08:00 opening
	assert.True(t, row.ScheduledAt.Equal(time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)))
	assert.Empty(t, fx.sender.SentMessages())
}

func TestRunOnceDefersAtDailyCap(t *testing.T) {
	fx := newPollerFixture(t)
	fx.seqs.byID[1].Settings.MaxMessagesPerDay = 5
	fx.comms.sentToday = 5
	fx.enqueue(fx.now.Add(-time.Minute))

	processed, _, err := fx.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, processed)

	row := fx.comms.rows[0]
	assert.Equal(t, models.StatusPending, row.Status)
	// Tomorrow's window opening
	assert.True(t, row.ScheduledAt.Equal(time.Date(2026, 3, 5, 8, 0, 0, 0, time.UTC)))
	assert.Empty(t, fx.sender.SentMessages())
}

func TestRunOnceSettlesFailures(t *testing.T) {
	fx := newPollerFixture(t)
	fx.sender.FailWith = assert.AnError
	fx.enqueue(fx.now.Add(-time.Minute))

	processed, failed, err := fx.poller.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Equal(t, 1, failed)

	row := fx.comms.rows[0]
	assert.Equal(t, models.StatusFailed, row.Status)
	assert.NotEmpty(t, row.ErrorMessage)
}

// Drives a full two-step sequence through the poller: an immediate email,
// then an SMS a day later that only fires once the contact has replied.
func TestRunOnceTwoStepResponseGate(t *testing.T) {
	run := func(t *testing.T, responded bool) *pollerFixture {
		fx := newPollerFixture(t)
		seq := fx.seqs.byID[1]
		seq.Steps = append(seq.Steps, models.SequenceStep{
			Model: gorm.Model{ID: 12}, SequenceID: 1, TemplateID: 32, StepNumber: 2,
			Channel: models.ChannelSMS, DelayDays: 1, IsActive: true,
			Conditions: models.StepConditions{RequiresResponse: true},
		})
		fx.templates.byID[32] = &models.MessageTemplate{
			Model: gorm.Model{ID: 32}, Channel: models.ChannelSMS,
			Body: "Any questions, {{first_name}}?", IsActive: true,
		}

		fx.enqueue(fx.now)
		processed, failed, err := fx.poller.RunOnce(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, processed)
		require.Zero(t, failed)

		// Step one went out by email and step two is queued a day ahead
		sent := fx.sender.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, models.ChannelEmail, sent[0].Channel)
		require.Len(t, fx.comms.rows, 2)
		second := fx.comms.rows[1]
		assert.Equal(t, models.StatusPending, second.Status)
		assert.Equal(t, uint(12), second.StepID)
		assert.True(t, second.ScheduledAt.Equal(fx.now.Add(24*time.Hour)))

		// Nothing is due until the delay elapses
		processed, _, err = fx.poller.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Zero(t, processed)

		fx.comms.responded = responded
		fx.setNow(fx.now.Add(24*time.Hour + time.Minute))
		processed, failed, err = fx.poller.RunOnce(context.Background())
		require.NoError(t, err)
		require.Equal(t, 1, processed)
		require.Zero(t, failed)
		return fx
	}

	t.Run("no reply skips the sms", func(t *testing.T) {
		fx := run(t, false)
		assert.Equal(t, models.StatusSkipped, fx.comms.rows[1].Status)
		assert.Len(t, fx.sender.SentMessages(), 1)
	})

	t.Run("recorded reply sends the sms", func(t *testing.T) {
		fx := run(t, true)
		assert.Equal(t, models.StatusSent, fx.comms.rows[1].Status)

		sent := fx.sender.SentMessages()
		require.Len(t, sent, 2)
		assert.Equal(t, models.ChannelSMS, sent[1].Channel)
		assert.Equal(t, "+27821234567", sent[1].To)
		assert.Equal(t, "Any questions, Ayesha?", sent[1].Body)
	})
}

func TestRunOnceRequeuesStaleClaims(t *testing.T) {
	fx := newPollerFixture(t)
	stale := fx.enqueue(fx.now.Add(-time.Hour))
	stale.Status = models.StatusProcessing
	stale.ClaimedBy = "worker-dead"
	claimedAt := fx.now.Add(-time.Hour)
	stale.ClaimedAt = &claimedAt

	processed, failed, err := fx.poller.RunOnce(context.Background())
	require.NoError(t, err)
	// Requeued and immediately reclaimed in the same cycle
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)
	assert.Equal(t, models.StatusSent, fx.comms.rows[0].Status)
}
