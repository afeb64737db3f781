// Package services – MessageService
//
// This file implements MessageService, the outbound send path. It validates
// the text, persists the operator's message, stamps chat activity, relays
// the text to the provider gateway, and pushes the stored message to live
// subscribers so an operator watching the chat sees their own send.
//
// Unlike inbound processing, a relay failure here is surfaced to the caller:
// a failed send is actionable (the UI shows a retry affordance), so it must
// not be silently swallowed.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// chat/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/imobchat/go-crm-chat/internal/domain"
	"github.com/imobchat/go-crm-chat/internal/repo"
	"github.com/imobchat/go-crm-chat/internal/sse"
)

// Relay is the outbound provider gateway contract consumed by this service.
type Relay interface {
	SendText(ctx context.Context, session, phone, text string) error
}

// MessageService coordinates outbound message persistence and provider relay.
type MessageService struct {
	DB    *gorm.DB
	Relay Relay
	Hub   Fanout

	// DefaultSession is used when neither the request nor the chat names one.
	DefaultSession string
	// MaxTextRunes caps outbound text length; 0 disables the check.
	MaxTextRunes int
}

// Send validates and persists an outbound message for chatID, relays it
// through the provider session, and fans it out to live subscribers.
//
// The message row is written before the relay call; on relay failure the row
// remains (the operator's intent is recorded) and the error is returned
// wrapped in ErrRelayFailed for the handler to surface.
func (s *MessageService) Send(ctx context.Context, userID, chatID, text, sessionName string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxTextRunes > 0 && utf8.RuneCountInString(text) > s.MaxTextRunes {
		return nil, ErrTooLong
	}

	chat, err := repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		return nil, ErrChatNotFound
	}

	session := strings.TrimSpace(sessionName)
	if session == "" {
		session = chat.SessionName
	}
	if session == "" {
		session = s.DefaultSession
	}

	// Outbound messages have no provider id at send time; a generated UUID
	// keeps the per-chat dedup index satisfied.
	uid := userID
	msg, err := repo.CreateMessage(ctx, s.DB, chat.ID, uuid.NewString(), domain.DirectionSent, domain.TypeText, text, &uid)
	if err != nil {
		return nil, err
	}
	if err := repo.TouchChatLastMessage(ctx, s.DB, chat.ID, msg.CreatedAt); err != nil {
		return nil, err
	}

	if err := s.Relay.SendText(ctx, session, chat.ContactPhone, text); err != nil {
		log.Error().Err(err).
			Str("chat_id", chat.ID).
			Str("session", session).
			Msg("outbound relay failed")
		return nil, fmt.Errorf("%w: %v", ErrRelayFailed, err)
	}

	s.Hub.SendMessageToChat(chat.ID, sse.NewMessageEvent(chat.ID, msg, nil))
	return msg, nil
}

// ListPage returns paginated messages for a chat in conversation order.
func (s *MessageService) ListPage(ctx context.Context, chatID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	// Ensure chat exists
	var chatCount int64
	if err := s.DB.WithContext(ctx).Model(&domain.Chat{}).Where("id = ?", chatID).Count(&chatCount).Error; err != nil {
		return nil, 0, err
	}
	if chatCount == 0 {
		return nil, 0, ErrChatNotFound
	}

	total, err := repo.CountMessages(ctx, s.DB, chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, chatID, offset, pageSize)
	return items, total, err
}
