package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propflow/models"

	"gorm.io/gorm"
)

type communicationRepository struct {
	db *gorm.DB
}

func NewCommunicationRepository(db *gorm.DB) CommunicationRepository {
	return &communicationRepository{db: db}
}

func (r *communicationRepository) Create(ctx context.Context, comm *models.Communication) error {
	if err := r.db.WithContext(ctx).Create(comm).Error; err != nil {
		return fmt.Errorf("failed to create communication: %w", err)
	}
	return nil
}

func (r *communicationRepository) ByID(ctx context.Context, id uint) (*models.Communication, error) {
	var comm models.Communication
	err := r.db.WithContext(ctx).First(&comm, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load communication %d: %w", id, err)
	}
	return &comm, nil
}

func (r *communicationRepository) ByMessageID(ctx context.Context, messageID string) (*models.Communication, error) {
	var comm models.Communication
	err := r.db.WithContext(ctx).Where("message_id = ?", messageID).First(&comm).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load communication by message id: %w", err)
	}
	return &comm, nil
}

func (r *communicationRepository) HasResponse(ctx context.Context, contactID, sequenceID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Communication{}).
		Where("contact_id = ? AND sequence_id = ? AND status = ?", contactID, sequenceID, models.StatusResponded).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check for response: %w", err)
	}
	return count > 0, nil
}

func (r *communicationRepository) CountSentSince(ctx context.Context, sequenceID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Communication{}).
		Where("sequence_id = ? AND sent_at >= ?", sequenceID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count sends: %w", err)
	}
	return count, nil
}

// ClaimDue uses a single UPDATE over a locked subquery so overlapping poller
// runs cannot claim the same row twice.
func (r *communicationRepository) ClaimDue(ctx context.Context, workerID string, now time.Time, limit int) ([]models.Communication, error) {
	err := r.db.WithContext(ctx).Exec(`
        UPDATE communications SET status = ?, claimed_by = ?, claimed_at = ?
        WHERE id IN (
            SELECT id FROM communications
            WHERE status = ? AND scheduled_at <= ? AND deleted_at IS NULL
            ORDER BY scheduled_at
            LIMIT ?
            FOR UPDATE SKIP LOCKED
        )`,
		models.StatusProcessing, workerID, now,
		models.StatusPending, now, limit,
	).Error
	if err != nil {
		return nil, fmt.Errorf("failed to claim due communications: %w", err)
	}

	var claimed []models.Communication
	err = r.db.WithContext(ctx).
		Where("status = ? AND claimed_by = ?", models.StatusProcessing, workerID).
		Order("scheduled_at").
		Find(&claimed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load claimed communications: %w", err)
	}
	return claimed, nil
}

func (r *communicationRepository) Release(ctx context.Context, id uint, scheduledAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Communication{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":       models.StatusPending,
			"scheduled_at": scheduledAt,
			"claimed_by":   "",
			"claimed_at":   nil,
		}).Error
}

func (r *communicationRepository) RequeueStale(ctx context.Context, now time.Time, timeout time.Duration) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Communication{}).
		Where("status = ? AND claimed_at < ?", models.StatusProcessing, now.Add(-timeout)).
		Updates(map[string]interface{}{
			"status":     models.StatusPending,
			"claimed_by": "",
			"claimed_at": nil,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to requeue stale claims: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *communicationRepository) MarkSent(ctx context.Context, id uint, sentAt time.Time, messageID, provider string, cost float64, subject, body string) error {
	return r.db.WithContext(ctx).Model(&models.Communication{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":     models.StatusSent,
			"sent_at":    sentAt,
			"message_id": messageID,
			"provider":   provider,
			"cost":       cost,
			"subject":    subject,
			"body":       body,
			"claimed_by": "",
			"claimed_at": nil,
		}).Error
}

func (r *communicationRepository) MarkSkipped(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Communication{}).
		Where("id = ? AND status = ?", id, models.StatusProcessing).
		Updates(map[string]interface{}{
			"status":     models.StatusSkipped,
			"claimed_by": "",
			"claimed_at": nil,
		}).Error
}

func (r *communicationRepository) MarkFailed(ctx context.Context, id uint, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.Communication{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        models.StatusFailed,
			"error_message": errMsg,
			"claimed_by":    "",
			"claimed_at":    nil,
		}).Error
}

func (r *communicationRepository) SetResponseSnippet(ctx context.Context, messageID, snippet string) error {
	return r.db.WithContext(ctx).Model(&models.Communication{}).
		Where("message_id = ?", messageID).
		Update("response_snippet", snippet).Error
}

func (r *communicationRepository) Advance(ctx context.Context, messageID, status string, at time.Time) error {
	comm, err := r.ByMessageID(ctx, messageID)
	if err != nil {
		return err
	}
	if comm == nil {
		return fmt.Errorf("no communication for message id %s", messageID)
	}

	updates := map[string]interface{}{}
	switch status {
	case models.StatusDelivered:
		if comm.DeliveredAt == nil {
			updates["delivered_at"] = at
		}
	case models.StatusOpened:
		if comm.OpenedAt == nil {
			updates["opened_at"] = at
		}
		updates["open_count"] = gorm.Expr("open_count + 1")
	case models.StatusClicked:
		if comm.ClickedAt == nil {
			updates["clicked_at"] = at
		}
		updates["click_count"] = gorm.Expr("click_count + 1")
	case models.StatusResponded:
		if comm.RespondedAt == nil {
			updates["responded_at"] = at
		}
	case models.StatusBounced, models.StatusUnsubscribed:
		// no timestamp column beyond the status change
	default:
		return fmt.Errorf("cannot advance to status %q", status)
	}

	if models.AdvancesTo(comm.Status, status) {
		updates["status"] = status
	}
	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Model(&models.Communication{}).
		Where("id = ?", comm.ID).
		Updates(updates).Error
}
