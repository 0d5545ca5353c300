package automation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propflow/models"
)

func TestStepDelay(t *testing.T) {
	step := &models.SequenceStep{DelayDays: 2, DelayHours: 3, DelayMinutes: 30}
	assert.Equal(t, 51*time.Hour+30*time.Minute, StepDelay(step))

	assert.Equal(t, time.Duration(0), StepDelay(&models.SequenceStep{}))
}

func TestAdjustForBusinessHours(t *testing.T) {
	jhb, err := time.LoadLocation("Africa/Johannesburg")
	require.NoError(t, err)

	settings := models.SequenceSettings{
		RespectQuietHours: true,
		Timezone:          "Africa/Johannesburg",
	}

	t.Run("inside window unchanged", func(t *testing.T) {
		// Wednesday 10:30
		in := time.Date(2026, 3, 4, 10, 30, 0, 0, jhb)
		assert.True(t, AdjustForBusinessHours(in, settings).Equal(in))
	})

	t.Run("before opening moves to same day open", func(t *testing.T) {
		in := time.Date(2026, 3, 4, 6, 15, 0, 0, jhb)
		want := time.Date(2026, 3, 4, 8, 0, 0, 0, jhb)
		assert.True(t, AdjustForBusinessHours(in, settings).Equal(want))
	})

	t.Run("after close moves to next day open", func(t *testing.T) {
		in := time.Date(2026, 3, 4, 18, 45, 0, 0, jhb)
		want := time.Date(2026, 3, 5, 8, 0, 0, 0, jhb)
		assert.True(t, AdjustForBusinessHours(in, settings).Equal(want))
	})

	t.Run("saturday rolls to monday", func(t *testing.T) {
		in := time.Date(2026, 3, 7, 11, 0, 0, 0, jhb)
		want := time.Date(2026, 3, 9, 8, 0, 0, 0, jhb)
		assert.True(t, AdjustForBusinessHours(in, settings).Equal(want))
	})

	t.Run("friday evening crosses month boundary", func(t *testing.T) {
		// Friday 2026-05-29 after close rolls to Monday 2026-06-01
		in := time.Date(2026, 5, 29, 19, 0, 0, 0, jhb)
		want := time.Date(2026, 6, 1, 8, 0, 0, 0, jhb)
		assert.True(t, AdjustForBusinessHours(in, settings).Equal(want))
	})

	t.Run("quiet hours off is a passthrough", func(t *testing.T) {
		in := time.Date(2026, 3, 7, 2, 0, 0, 0, jhb)
		got := AdjustForBusinessHours(in, models.SequenceSettings{RespectQuietHours: false})
		assert.True(t, got.Equal(in))
	})

	t.Run("custom window and days", func(t *testing.T) {
		custom := models.SequenceSettings{
			RespectQuietHours: true,
			Timezone:          "Africa/Johannesburg",
			BusinessStart:     "09:30",
			BusinessEnd:       "16:00",
			BusinessDays:      []int{int(time.Tuesday), int(time.Thursday)},
		}
		// Wednesday 10:00 is outside the Tue/Thu schedule
		in := time.Date(2026, 3, 4, 10, 0, 0, 0, jhb)
		want := time.Date(2026, 3, 5, 9, 30, 0, 0, jhb)
		assert.True(t, AdjustForBusinessHours(in, custom).Equal(want))
	})

	t.Run("unknown timezone falls back to UTC", func(t *testing.T) {
		bad := models.SequenceSettings{RespectQuietHours: true, Timezone: "Mars/Olympus"}
		in := time.Date(2026, 3, 4, 5, 0, 0, 0, time.UTC)
		want := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
		assert.True(t, AdjustForBusinessHours(in, bad).Equal(want))
	})
}

func TestNextStepTime(t *testing.T) {
	jhb, err := time.LoadLocation("Africa/Johannesburg")
	require.NoError(t, err)

	settings := models.SequenceSettings{
		RespectQuietHours: true,
		Timezone:          "Africa/Johannesburg",
	}
	step := &models.SequenceStep{DelayDays: 1}

	// Thursday 16:00 plus one day lands inside Friday's window
	now := time.Date(2026, 3, 5, 16, 0, 0, 0, jhb)
	want := time.Date(2026, 3, 6, 16, 0, 0, 0, jhb)
	assert.True(t, NextStepTime(now, step, settings).Equal(want))

	// Friday 16:00 plus one day lands on Saturday, so Monday opening
	now = time.Date(2026, 3, 6, 16, 0, 0, 0, jhb)
	want = time.Date(2026, 3, 9, 8, 0, 0, 0, jhb)
	assert.True(t, NextStepTime(now, step, settings).Equal(want))
}
