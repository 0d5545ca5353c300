package repository

import (
	"context"
	"errors"
	"fmt"

	"propflow/models"

	"gorm.io/gorm"
)

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) ActiveByID(ctx context.Context, id uint) (*models.MessageTemplate, error) {
	var tmpl models.MessageTemplate
	err := r.db.WithContext(ctx).Where("is_active = ?", true).First(&tmpl, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load template %d: %w", id, err)
	}
	return &tmpl, nil
}

type propertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(db *gorm.DB) PropertyRepository {
	return &propertyRepository{db: db}
}

func (r *propertyRepository) ByID(ctx context.Context, id uint) (*models.Property, error) {
	var prop models.Property
	err := r.db.WithContext(ctx).First(&prop, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load property %d: %w", id, err)
	}
	return &prop, nil
}

type agentRepository struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &agentRepository{db: db}
}

func (r *agentRepository) ByID(ctx context.Context, id uint) (*models.Agent, error) {
	var agent models.Agent
	err := r.db.WithContext(ctx).First(&agent, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load agent %d: %w", id, err)
	}
	return &agent, nil
}

// DebitCredits decrements atomically and fails when the balance is short
func (r *agentRepository) DebitCredits(ctx context.Context, agentID uint, credits int) error {
	res := r.db.WithContext(ctx).Model(&models.Agent{}).
		Where("id = ? AND message_credits >= ?", agentID, credits).
		Update("message_credits", gorm.Expr("message_credits - ?", credits))
	if res.Error != nil {
		return fmt.Errorf("failed to debit credits: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("insufficient message credits for agent %d", agentID)
	}
	return nil
}
