package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propflow/models"

	"gorm.io/gorm"
)

type contactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) ContactRepository {
	return &contactRepository{db: db}
}

func (r *contactRepository) ByID(ctx context.Context, id uint) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.WithContext(ctx).Preload("Tags").First(&contact, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load contact %d: %w", id, err)
	}
	return &contact, nil
}

// ReachableByAgent excludes unsubscribed and do-not-contact contacts
func (r *contactRepository) ReachableByAgent(ctx context.Context, agentID uint) ([]models.Contact, error) {
	var contacts []models.Contact
	err := r.db.WithContext(ctx).
		Where("agent_id = ? AND is_unsubscribed = ? AND is_do_not_contact = ?", agentID, false, false).
		Preload("Tags").
		Find(&contacts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts for agent %d: %w", agentID, err)
	}
	return contacts, nil
}

func (r *contactRepository) TouchLastContact(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.Contact{}).
		Where("id = ?", id).
		Update("last_contact", at).Error
}
