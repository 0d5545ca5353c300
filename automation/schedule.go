package automation

import (
	"fmt"
	"time"

	"propflow/models"
)

const (
	defaultBusinessStart = "08:00"
	defaultBusinessEnd   = "17:00"
)

// StepDelay converts a step's day/hour/minute offsets into a single duration.
func StepDelay(step *models.SequenceStep) time.Duration {
	return time.Duration(step.DelayDays)*24*time.Hour +
		time.Duration(step.DelayHours)*time.Hour +
		time.Duration(step.DelayMinutes)*time.Minute
}

// NextStepTime returns when a step becomes due: now plus the step's delay,
// shifted into the sequence's business-hours window when quiet hours are
// respected.
func NextStepTime(now time.Time, step *models.SequenceStep, settings models.SequenceSettings) time.Time {
	return AdjustForBusinessHours(now.Add(StepDelay(step)), settings)
}

// AdjustForBusinessHours moves t forward to the nearest moment inside the
// sequence's business window. A time already inside the window on a business
// day is returned unchanged. A time before the window opens moves to that
// day's opening. Anything else (after close, or a non-business day) moves to
// the opening of the next business day. Day arithmetic goes through
// time.Date so month and year boundaries normalize correctly.
func AdjustForBusinessHours(t time.Time, settings models.SequenceSettings) time.Time {
	if !settings.RespectQuietHours {
		return t
	}

	loc := time.UTC
	if settings.Timezone != "" {
		if l, err := time.LoadLocation(settings.Timezone); err == nil {
			loc = l
		}
	}
	local := t.In(loc)

	startH, startM := parseClock(settings.BusinessStart, defaultBusinessStart)
	endH, endM := parseClock(settings.BusinessEnd, defaultBusinessEnd)

	dayStart := func(base time.Time, daysAhead int) time.Time {
		return time.Date(base.Year(), base.Month(), base.Day()+daysAhead, startH, startM, 0, 0, loc)
	}

	if isBusinessDay(local.Weekday(), settings.BusinessDays) {
		open := dayStart(local, 0)
		close := time.Date(local.Year(), local.Month(), local.Day(), endH, endM, 0, 0, loc)
		if !local.Before(open) && local.Before(close) {
			return local
		}
		if local.Before(open) {
			return open
		}
	}

	// After close or non-business day: first business day after local.
	for ahead := 1; ahead <= 7; ahead++ {
		next := dayStart(local, ahead)
		if isBusinessDay(next.Weekday(), settings.BusinessDays) {
			return next
		}
	}
	return dayStart(local, 1)
}

func isBusinessDay(d time.Weekday, days []int) bool {
	if len(days) == 0 {
		return d >= time.Monday && d <= time.Friday
	}
	for _, bd := range days {
		if time.Weekday(bd) == d {
			return true
		}
	}
	return false
}

func parseClock(s, fallback string) (int, int) {
	if s == "" {
		s = fallback
	}
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		fmt.Sscanf(fallback, "%d:%d", &h, &m)
	}
	return h, m
}
