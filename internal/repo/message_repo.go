// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model, including the provider-id dedup helpers the webhook processor
// relies on for at-least-once webhook delivery.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imobchat/go-crm-chat/internal/domain"
)

// CreateMessage inserts a new message row. messageID is the provider message
// id (unique per chat); userID is nil for received messages.
func CreateMessage(ctx context.Context, db *gorm.DB, chatID, messageID, direction, msgType, content string, userID *string) (*domain.Message, error) {
	m := &domain.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserID:    userID,
		MessageID: messageID,
		Direction: direction,
		Type:      msgType,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// GetMessageByProviderID fetches the message stored for (chatID, providerID),
// or ErrNotFound. This is the duplicate-delivery check.
func GetMessageByProviderID(ctx context.Context, db *gorm.DB, chatID, providerID string) (*domain.Message, error) {
	var m domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ? AND message_id = ?", chatID, providerID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateMessageContent corrects the content and type of an already-stored
// message in place. Used when the provider redelivers a message id with
// different content (e.g., media metadata filled in on a later attempt).
func UpdateMessageContent(ctx context.Context, db *gorm.DB, id, msgType, content string) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ?", id).
		Updates(map[string]any{"type": msgType, "content": content})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpsertByProviderID implements the webhook dedup contract: a provider id not
// yet stored for the chat is inserted; a known id with identical type+content
// is a no-op returning the stored row; a known id with different content is
// updated in place. Never creates a second row for the same provider id.
//
// The boolean result reports whether a row was created (as opposed to reused
// or corrected).
func UpsertByProviderID(ctx context.Context, db *gorm.DB, chatID, providerID, direction, msgType, content string, userID *string) (*domain.Message, bool, error) {
	existing, err := GetMessageByProviderID(ctx, db, chatID, providerID)
	switch {
	case err == nil:
		if existing.Type == msgType && existing.Content == content {
			return existing, false, nil
		}
		if err := UpdateMessageContent(ctx, db, existing.ID, msgType, content); err != nil {
			return nil, false, err
		}
		existing.Type = msgType
		existing.Content = content
		return existing, false, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		m, err := CreateMessage(ctx, db, chatID, providerID, direction, msgType, content, userID)
		if err != nil {
			return nil, false, err
		}
		return m, true, nil
	default:
		return nil, false, err
	}
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE chat_id = ? AND deleted_at IS NULL", chatID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC)
// so conversation history reads top-down deterministically.
func ListMessagesPage(ctx context.Context, db *gorm.DB, chatID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}
