// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// WhatsappSession model. Sessions are looked up by name because that is the
// key inbound webhooks carry.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imobchat/go-crm-chat/internal/domain"
)

// CreateSession inserts a new provider session record in the "starting" state.
func CreateSession(ctx context.Context, db *gorm.DB, name string) (*domain.WhatsappSession, error) {
	s := &domain.WhatsappSession{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    "starting",
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// GetSessionByName fetches a session by its unique name, or ErrNotFound.
func GetSessionByName(ctx context.Context, db *gorm.DB, name string) (*domain.WhatsappSession, error) {
	var s domain.WhatsappSession
	err := db.WithContext(ctx).
		Where("name = ?", name).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions returns all sessions ordered by creation time descending.
func ListSessions(ctx context.Context, db *gorm.DB) ([]domain.WhatsappSession, error) {
	var out []domain.WhatsappSession
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// UpdateSessionStatus records a provider lifecycle transition.
// Returns ErrNotFound when the session is missing.
func UpdateSessionStatus(ctx context.Context, db *gorm.DB, name, status string) error {
	res := db.WithContext(ctx).
		Model(&domain.WhatsappSession{}).
		Where("name = ?", name).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
