// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// The chats table carries a unique index on the canonical contact phone, so
// at most one non-deleted chat exists per contact; GetChatByPhone is the
// lookup the webhook processor uses to decide between reuse and lazy create.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imobchat/go-crm-chat/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateChat inserts a new Chat row for the given contact, bound to the named
// provider session. The chat ID is a randomly generated UUID, CreatedAt and
// LastMessageAt are set to UTC now.
func CreateChat(ctx context.Context, db *gorm.DB, contactName, contactPhone, sessionName string) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{
		ID:            uuid.NewString(),
		ContactName:   contactName,
		ContactPhone:  contactPhone,
		SessionName:   sessionName,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetChat fetches a single chat by its ID. If the record does not exist, it
// returns ErrNotFound. On other DB errors, the raw error is returned.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChatByPhone fetches the chat bound to a canonical contact phone, or
// ErrNotFound when no chat exists for that contact yet.
func GetChatByPhone(ctx context.Context, db *gorm.DB, contactPhone string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("contact_phone = ?", contactPhone).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChats returns all chats ordered by last activity descending (most
// recently active conversation first).
func ListChats(ctx context.Context, db *gorm.DB) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Order("last_message_at desc").
		Find(&out).Error
	return out, err
}

// CountChats returns the total number of chats.
func CountChats(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Count(&total).Error
	return total, err
}

// ListChatsPage returns a paginated slice of chats ordered by last activity
// descending. Use CountChats to obtain the total for pagination metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListChatsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Order("last_message_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// TouchChatLastMessage stamps a chat's last_message_at. Called on every new
// message in either direction. Returns ErrNotFound when the chat is missing.
func TouchChatLastMessage(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", id).
		Update("last_message_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateChatObservations replaces a chat's free-text operator notes.
// Returns ErrNotFound when the chat is missing.
func UpdateChatObservations(ctx context.Context, db *gorm.DB, id, observations string) error {
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ?", id).
		Update("user_observations", observations)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
