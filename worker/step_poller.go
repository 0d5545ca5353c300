package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"propflow/automation"
	"propflow/models"
	"propflow/repository"
	"propflow/utils"
)

// How long a paused sequence's pending communications wait before the
// poller looks at them again.
const inactiveRetryDelay = time.Hour

// StepPoller claims due pending communications and drives them through the
// automation engine. Claims are atomic per worker, so multiple replicas can
// poll the same table without double-sending.
type StepPoller struct {
	Comms     repository.CommunicationRepository
	Sequences repository.SequenceRepository
	Engine    *automation.Engine
	Logger    *log.Logger

	WorkerID     string
	Interval     time.Duration
	ClaimTimeout time.Duration
	BatchSize    int

	now func() time.Time
}

func NewStepPoller(comms repository.CommunicationRepository, sequences repository.SequenceRepository, engine *automation.Engine, logger *log.Logger, workerID string, interval, claimTimeout time.Duration) *StepPoller {
	if interval <= 0 {
		interval = time.Minute
	}
	if claimTimeout <= 0 {
		claimTimeout = 5 * time.Minute
	}
	return &StepPoller{
		Comms:        comms,
		Sequences:    sequences,
		Engine:       engine,
		Logger:       logger,
		WorkerID:     workerID,
		Interval:     interval,
		ClaimTimeout: claimTimeout,
		BatchSize:    50,
		now:          utils.UTCNow,
	}
}

func (sp *StepPoller) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(5 * time.Second)

	sp.Logger.Printf("Step poller %s started (interval %s)", sp.WorkerID, sp.Interval)

	ticker := time.NewTicker(sp.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			sp.Logger.Println("Step poller shutting down...")
			return
		case <-ticker.C:
			processed, failed, err := sp.RunOnce(ctx)
			if err != nil {
				sp.Logger.Printf("Poll cycle error: %v", err)
				continue
			}
			if processed > 0 || failed > 0 {
				sp.Logger.Printf("Poll cycle done: %d processed, %d failed", processed, failed)
			}
		}
	}
}

// RunOnce executes a single poll cycle: requeue stale claims, claim due
// rows, and process each. It returns how many rows settled successfully
// and how many failed.
func (sp *StepPoller) RunOnce(ctx context.Context) (processed, failed int, err error) {
	now := sp.now()

	requeued, err := sp.Comms.RequeueStale(ctx, now, sp.ClaimTimeout)
	if err != nil {
		return 0, 0, fmt.Errorf("requeue stale claims: %w", err)
	}
	if requeued > 0 {
		sp.Logger.Printf("Requeued %d stale claims", requeued)
	}

	claimed, err := sp.Comms.ClaimDue(ctx, sp.WorkerID, now, sp.BatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("claim due communications: %w", err)
	}

	for i := range claimed {
		if err := sp.processClaim(ctx, &claimed[i]); err != nil {
			sp.Logger.Printf("Communication %d failed: %v", claimed[i].ID, err)
			if mErr := sp.Comms.MarkFailed(ctx, claimed[i].ID, err.Error()); mErr != nil {
				sp.Logger.Printf("Could not settle communication %d as failed: %v", claimed[i].ID, mErr)
			}
			failed++
			continue
		}
		processed++
	}
	return processed, failed, nil
}

// processClaim applies the pacing rules that sit above the engine: paused
// sequences park their rows, sends outside the business window roll forward
// to the window's opening, and a sequence that hit its daily cap defers the
// rest of its queue to the next day.
func (sp *StepPoller) processClaim(ctx context.Context, comm *models.Communication) error {
	now := sp.now()

	seq, err := sp.Sequences.ByID(ctx, comm.SequenceID)
	if err != nil {
		return err
	}
	if seq == nil {
		return automation.ErrSequenceNotFound
	}
	if !seq.IsActive {
		return sp.Comms.Release(ctx, comm.ID, now.Add(inactiveRetryDelay))
	}

	if adjusted := automation.AdjustForBusinessHours(now, seq.Settings); adjusted.After(now) {
		return sp.Comms.Release(ctx, comm.ID, adjusted)
	}

	if seq.Settings.MaxMessagesPerDay > 0 {
		dayStart := startOfDay(now, seq.Settings.Timezone)
		sentToday, err := sp.Comms.CountSentSince(ctx, seq.ID, dayStart)
		if err != nil {
			return err
		}
		if sentToday >= int64(seq.Settings.MaxMessagesPerDay) {
			nextDay := automation.AdjustForBusinessHours(dayStart.AddDate(0, 0, 1), seq.Settings)
			return sp.Comms.Release(ctx, comm.ID, nextDay)
		}
	}

	_, err = sp.Engine.ProcessClaimed(ctx, comm, nil)
	if err != nil && errors.Is(err, automation.ErrSequenceInactive) {
		// Paused between the check above and the engine's own load.
		return sp.Comms.Release(ctx, comm.ID, now.Add(inactiveRetryDelay))
	}
	return err
}

func startOfDay(t time.Time, timezone string) time.Time {
	loc := time.UTC
	if timezone != "" {
		if l, err := time.LoadLocation(timezone); err == nil {
			loc = l
		}
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
