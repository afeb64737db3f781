// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/imobchat/go-crm-chat/internal/domain"
)

// ChatsStats returns aggregate metadata for the chat list: the total number
// of rows and the greatest last_message_at among them. When there are no
// chats, the returned count is 0 and maxLastMessage is nil.
func ChatsStats(ctx context.Context, db *gorm.DB) (count int64, maxLastMessage *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Chat{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Avoid MAX() -> TEXT in SQLite.
	var row struct {
		LastMessageAt time.Time
	}
	if err = q.Select("last_message_at").Order("last_message_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.LastMessageAt, nil
}

// MessagesStats returns aggregate metadata for a chat's messages: total rows
// and the greatest UpdatedAt among them (content corrections bump UpdatedAt,
// so ETags change on dedup-driven rewrites too).
func MessagesStats(ctx context.Context, db *gorm.DB, chatID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("chat_id = ?", chatID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
