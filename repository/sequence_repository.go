package repository

import (
	"context"
	"errors"
	"fmt"

	"propflow/models"

	"gorm.io/gorm"
)

type sequenceRepository struct {
	db *gorm.DB
}

func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) ByID(ctx context.Context, id uint) (*models.Sequence, error) {
	var seq models.Sequence
	err := r.db.WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") }).
		First(&seq, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load sequence %d: %w", id, err)
	}
	return &seq, nil
}

func (r *sequenceRepository) ActiveByID(ctx context.Context, id uint) (*models.Sequence, error) {
	var seq models.Sequence
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") }).
		First(&seq, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load active sequence %d: %w", id, err)
	}
	return &seq, nil
}

func (r *sequenceRepository) ActiveByTrigger(ctx context.Context, agentID uint, trigger string) ([]models.Sequence, error) {
	var seqs []models.Sequence
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND trigger_type = ? AND is_active = ?", agentID, trigger, true).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("step_number ASC") }).
		Find(&seqs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load sequences by trigger: %w", err)
	}
	return seqs, nil
}

func (r *sequenceRepository) IncrementStepSent(ctx context.Context, stepID uint) error {
	return r.db.WithContext(ctx).Model(&models.SequenceStep{}).
		Where("id = ?", stepID).
		Update("sent_count", gorm.Expr("sent_count + 1")).Error
}
