package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"propflow/gateway"
	"propflow/models"
)

type engineFixture struct {
	engine    *Engine
	sequences *fakeSequences
	contacts  *fakeContacts
	templates *fakeTemplates
	agents    *fakeAgents
	comms     *fakeComms
	sender    *gateway.MockSender
	now       time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()

	// Wednesday 2026-03-04 10:00 UTC, inside the default business window
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

	seq := &models.Sequence{
		Model:       gorm.Model{ID: 1},
		AgentID:     7,
		Name:        "New buyer follow-up",
		TriggerType: models.TriggerManual,
		IsActive:    true,
		Settings:    models.SequenceSettings{RespectQuietHours: true},
		Steps: []models.SequenceStep{
			{Model: gorm.Model{ID: 11}, SequenceID: 1, TemplateID: 31, StepNumber: 1, Channel: models.ChannelEmail, IsActive: true},
			{Model: gorm.Model{ID: 12}, SequenceID: 1, TemplateID: 32, StepNumber: 2, Channel: models.ChannelSMS, DelayDays: 2, IsActive: true},
		},
	}

	fx := &engineFixture{
		sequences: &fakeSequences{byID: map[uint]*models.Sequence{1: seq}},
		contacts: &fakeContacts{byID: map[uint]*models.Contact{
			21: {Model: gorm.Model{ID: 21}, AgentID: 7, FirstName: "Sipho", LastName: "Dlamini", Email: "sipho@example.com", Phone: "+27821234567"},
		}},
		templates: &fakeTemplates{byID: map[uint]*models.MessageTemplate{
			31: {Model: gorm.Model{ID: 31}, Channel: models.ChannelEmail, Subject: "Hi {{first_name}}", Body: "Hello {{name}}", IsActive: true},
			32: {Model: gorm.Model{ID: 32}, Channel: models.ChannelSMS, Body: "Quick follow-up, {{first_name}}", IsActive: true},
		}},
		agents: &fakeAgents{byID: map[uint]*models.Agent{
			7: {Model: gorm.Model{ID: 7}, MessageCredits: 10},
		}},
		comms:  &fakeComms{},
		sender: gateway.NewMockSender("mock"),
		now:    now,
	}

	fx.engine = NewEngine(
		fx.sequences, fx.contacts, fx.templates,
		&fakeProperties{}, fx.agents, fx.comms,
		fx.sender, 1, nil,
	)
	fx.engine.SetClock(func() time.Time { return now })
	return fx
}

func (fx *engineFixture) sequence() *models.Sequence { return fx.sequences.byID[1] }

func TestStartForContact(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	t.Run("creates the pending step-one communication", func(t *testing.T) {
		contact := fx.contacts.byID[21]
		comm, err := fx.engine.StartForContact(ctx, fx.sequence(), contact, nil)
		require.NoError(t, err)

		assert.Equal(t, models.StatusPending, comm.Status)
		assert.Equal(t, uint(11), comm.StepID)
		assert.Equal(t, models.ChannelEmail, comm.Channel)
		// Zero delay inside business hours means due immediately
		assert.True(t, comm.ScheduledAt.Equal(fx.now))
	})

	t.Run("inactive sequence", func(t *testing.T) {
		paused := *fx.sequence()
		paused.IsActive = false
		_, err := fx.engine.StartForContact(ctx, &paused, fx.contacts.byID[21], nil)
		assert.ErrorIs(t, err, ErrSequenceInactive)
	})

	t.Run("sequence without steps", func(t *testing.T) {
		empty := *fx.sequence()
		empty.Steps = nil
		_, err := fx.engine.StartForContact(ctx, &empty, fx.contacts.byID[21], nil)
		assert.ErrorIs(t, err, ErrStepNotFound)
	})

	t.Run("unsubscribed contact", func(t *testing.T) {
		unsub := &models.Contact{Model: gorm.Model{ID: 22}, IsUnsubscribed: true}
		_, err := fx.engine.StartForContact(ctx, fx.sequence(), unsub, nil)
		assert.ErrorIs(t, err, ErrContactUnreachable)
	})
}

func TestProcessSequenceStepSendsAndAdvances(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	result, err := fx.engine.ProcessSequenceStep(ctx, 1, 21, 1, nil)
	require.NoError(t, err)

	assert.False(t, result.Skipped)
	assert.Equal(t, "mock", result.Provider)
	assert.NotEmpty(t, result.MessageID)
	assert.Equal(t, 2, result.NextStep)

	sent := fx.sender.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "sipho@example.com", sent[0].To)
	assert.Equal(t, "Hi Sipho", sent[0].Subject)
	assert.Equal(t, "Hello Sipho Dlamini", sent[0].Body)

	// Row one settled as sent, row two pending for step two in two days
	require.Len(t, fx.comms.rows, 2)
	assert.Equal(t, models.StatusSent, fx.comms.rows[0].Status)
	assert.Equal(t, models.StatusPending, fx.comms.rows[1].Status)
	assert.Equal(t, uint(12), fx.comms.rows[1].StepID)
	require.NotNil(t, result.NextScheduledAt)
	assert.True(t, fx.comms.rows[1].ScheduledAt.Equal(*result.NextScheduledAt))
	assert.True(t, result.NextScheduledAt.After(fx.now.Add(47*time.Hour)))

	assert.Equal(t, 1, fx.sequences.stepSends[11])
	assert.True(t, fx.contacts.touched[21].Equal(fx.now))
	// Email sends never touch the credit balance
	assert.Zero(t, fx.agents.debited[7])
}

func TestProcessSequenceStepVariableOverrides(t *testing.T) {
	fx := newEngineFixture(t)

	_, err := fx.engine.ProcessSequenceStep(context.Background(), 1, 21, 1, map[string]string{"first_name": "Mr Dlamini"})
	require.NoError(t, err)

	sent := fx.sender.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hi Mr Dlamini", sent[0].Subject)
}

func TestProcessSequenceStepSkipsUnmetCondition(t *testing.T) {
	fx := newEngineFixture(t)
	fx.sequence().Steps[0].Conditions = models.StepConditions{RequiresResponse: true}

	result, err := fx.engine.ProcessSequenceStep(context.Background(), 1, 21, 1, nil)
	require.NoError(t, err)

	assert.True(t, result.Skipped)
	assert.Empty(t, fx.sender.SentMessages())

	// Skipping still advances the sequence
	assert.Equal(t, 2, result.NextStep)
	require.Len(t, fx.comms.rows, 2)
	assert.Equal(t, models.StatusSkipped, fx.comms.rows[0].Status)
	assert.Equal(t, models.StatusPending, fx.comms.rows[1].Status)
}

func TestProcessSequenceStepSendsWhenConditionMet(t *testing.T) {
	fx := newEngineFixture(t)
	fx.sequence().Steps[0].Conditions = models.StepConditions{RequiresResponse: true}
	fx.comms.responded = map[uint]bool{21: true}

	result, err := fx.engine.ProcessSequenceStep(context.Background(), 1, 21, 1, nil)
	require.NoError(t, err)
	assert.False(t, result.Skipped)
	assert.Len(t, fx.sender.SentMessages(), 1)
}

func TestProcessSequenceStepRejectsRateConditions(t *testing.T) {
	fx := newEngineFixture(t)
	rate := 0.25
	fx.sequence().Steps[0].Conditions = models.StepConditions{MinOpenRate: &rate}

	_, err := fx.engine.ProcessSequenceStep(context.Background(), 1, 21, 1, nil)
	assert.ErrorIs(t, err, ErrConditionUnsupported)

	// The failed attempt is settled so it cannot be claimed later
	require.Len(t, fx.comms.rows, 1)
	assert.Equal(t, models.StatusFailed, fx.comms.rows[0].Status)
}

func TestProcessSequenceStepPaidChannelCredits(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	t.Run("debits after a successful send", func(t *testing.T) {
		result, err := fx.engine.ProcessSequenceStep(ctx, 1, 21, 2, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, fx.agents.debited[7])
		// Step two is the last step, so the sequence is complete
		assert.Zero(t, result.NextStep)
		assert.Nil(t, result.NextScheduledAt)

		sent := fx.sender.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "+27821234567", sent[0].To)
	})

	t.Run("refuses to send on an empty balance", func(t *testing.T) {
		fx.agents.byID[7].MessageCredits = 0
		_, err := fx.engine.ProcessSequenceStep(ctx, 1, 21, 2, nil)
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		assert.Len(t, fx.sender.SentMessages(), 1)
	})
}

func TestProcessSequenceStepSendFailure(t *testing.T) {
	fx := newEngineFixture(t)
	fx.sender.FailWith = assert.AnError

	_, err := fx.engine.ProcessSequenceStep(context.Background(), 1, 21, 1, nil)
	require.Error(t, err)

	require.Len(t, fx.comms.rows, 1)
	assert.Equal(t, models.StatusFailed, fx.comms.rows[0].Status)
	assert.NotEmpty(t, fx.comms.rows[0].ErrorMessage)
}

func TestProcessSequenceStepMissingPieces(t *testing.T) {
	fx := newEngineFixture(t)
	ctx := context.Background()

	t.Run("unknown sequence", func(t *testing.T) {
		_, err := fx.engine.ProcessSequenceStep(ctx, 99, 21, 1, nil)
		assert.ErrorIs(t, err, ErrSequenceNotFound)
	})

	t.Run("unknown step number", func(t *testing.T) {
		_, err := fx.engine.ProcessSequenceStep(ctx, 1, 21, 9, nil)
		assert.ErrorIs(t, err, ErrStepNotFound)
	})

	t.Run("missing template", func(t *testing.T) {
		fx.templates.byID[31].IsActive = false
		_, err := fx.engine.ProcessSequenceStep(ctx, 1, 21, 1, nil)
		assert.ErrorIs(t, err, ErrTemplateNotFound)
		fx.templates.byID[31].IsActive = true
	})

	t.Run("unknown contact", func(t *testing.T) {
		_, err := fx.engine.ProcessSequenceStep(ctx, 1, 99, 1, nil)
		assert.ErrorIs(t, err, ErrContactNotFound)
	})
}

func TestProcessClaimedLeavesRowForCallerOnError(t *testing.T) {
	fx := newEngineFixture(t)
	fx.sender.FailWith = assert.AnError
	ctx := context.Background()

	now := fx.now
	comm := &models.Communication{
		AgentID: 7, ContactID: 21, SequenceID: 1, StepID: 11,
		Channel: models.ChannelEmail, Status: models.StatusProcessing,
		ScheduledAt: now, ClaimedBy: "worker-1", ClaimedAt: &now,
	}
	require.NoError(t, fx.comms.Create(ctx, comm))

	_, err := fx.engine.ProcessClaimed(ctx, comm, nil)
	require.Error(t, err)

	// Settlement is the caller's job; the claim must survive the error
	assert.Equal(t, models.StatusProcessing, fx.comms.rows[0].Status)
}
