// Package services – WebhookService
//
// This file implements the inbound webhook processor: it converts a provider
// webhook event into a normalized, persisted Message, creating the owning
// Chat when this is the first contact from that phone number, then hands the
// result to the fan-out hub.
//
// Inbound processing favors availability over completeness. Malformed
// payloads and unknown sessions are logged and dropped without an error;
// persistence failures are returned to the handler, which logs them and
// still acknowledges the webhook so the provider does not retry-storm a
// broken event.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/imobchat/go-crm-chat/internal/domain"
	"github.com/imobchat/go-crm-chat/internal/repo"
	"github.com/imobchat/go-crm-chat/internal/sse"
	"github.com/imobchat/go-crm-chat/internal/waha"
)

// Fanout is the push surface the processor hands persisted messages to.
// Delivery must never fail the ingestion path; the hub guarantees that.
type Fanout interface {
	SendMessageToChat(chatID string, evt sse.Event)
}

// WebhookService turns provider webhook events into persisted messages and
// live push events.
type WebhookService struct {
	DB  *gorm.DB
	Hub Fanout
}

// MediaDescriptor is the structured content stored for media messages in
// place of the raw body text.
type MediaDescriptor struct {
	Type     string           `json:"type"`
	Filename string           `json:"filename,omitempty"`
	Mimetype string           `json:"mimetype,omitempty"`
	URL      string           `json:"url,omitempty"`
	S3       *waha.S3Location `json:"s3,omitempty"`
}

// ReceiveMessage processes one inbound webhook event:
//
//  1. Validate session, sender, and body; malformed events are dropped.
//  2. Canonicalize the sender address to a bare phone number.
//  3. Resolve the provider session by name; unknown sessions are dropped.
//  4. Find or lazily create the Chat for the canonical phone.
//  5. Classify the message type and build its content payload.
//  6. Persist the message keyed by provider id (duplicate-safe upsert).
//  7. Stamp the chat's last_message_at.
//  8. Hand the message to the fan-out hub with event metadata.
//
// A nil return does not imply a message was stored (dropped events return
// nil too); a non-nil error means an unexpected persistence failure.
func (s *WebhookService) ReceiveMessage(ctx context.Context, evt waha.WebhookEvent) error {
	tr := otel.Tracer("services/WebhookService")
	ctx, span := tr.Start(ctx, "ReceiveMessage",
		trace.WithAttributes(
			attribute.String("session", evt.Session),
			attribute.String("provider.message_id", evt.Payload.ID),
		),
	)
	defer span.End()

	// 1) Required fields. The provider gains nothing from a failure response
	// here, so malformed events are logged and dropped.
	if strings.TrimSpace(evt.Session) == "" || strings.TrimSpace(evt.Payload.From) == "" || evt.Payload.ID == "" {
		log.Warn().
			Str("session", evt.Session).
			Str("from", evt.Payload.From).
			Str("message_id", evt.Payload.ID).
			Msg("webhook: dropping event with missing required fields")
		return nil
	}

	// 2) Canonical phone.
	phone := waha.CanonicalPhone(evt.Payload.From)
	if phone == "" {
		log.Warn().Str("from", evt.Payload.From).Msg("webhook: sender address has no digits, dropping")
		return nil
	}

	// 3) Session must be registered; an unknown one is an operational
	// problem, not a data error.
	if _, err := repo.GetSessionByName(ctx, s.DB, evt.Session); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Str("session", evt.Session).
				Msg("webhook: event references unknown session, dropping")
			return nil
		}
		return err
	}

	// 4) Find or lazily create the chat.
	chat, err := repo.GetChatByPhone(ctx, s.DB, phone)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		name := strings.TrimSpace(evt.Me.PushName)
		if name == "" {
			name = phone
		}
		chat, err = repo.CreateChat(ctx, s.DB, name, phone, evt.Session)
		if err == nil {
			log.Info().Str("chat_id", chat.ID).Str("session", evt.Session).
				Msg("webhook: created chat for new contact")
		}
	}
	if err != nil {
		return err
	}

	// 5–6) Classify, build content, persist (duplicate-safe).
	msgType, content, err := classifyPayload(evt.Payload)
	if err != nil {
		return err
	}
	direction := domain.DirectionReceived
	if evt.Payload.FromMe {
		direction = domain.DirectionSent
	}
	msg, created, err := repo.UpsertByProviderID(ctx, s.DB, chat.ID, evt.Payload.ID, direction, msgType, content, nil)
	if err != nil {
		return err
	}
	if !created {
		log.Debug().Str("chat_id", chat.ID).Str("message_id", evt.Payload.ID).
			Msg("webhook: duplicate delivery resolved via upsert")
	}

	// 7) Chat activity.
	if err := repo.TouchChatLastMessage(ctx, s.DB, chat.ID, time.Now().UTC()); err != nil {
		return err
	}

	// 8) Push (or buffer) for live subscribers. Never fails the caller.
	s.Hub.SendMessageToChat(chat.ID, sse.NewMessageEvent(chat.ID, msg, &sse.WebhookMeta{
		Session:     evt.Session,
		PushName:    evt.Me.PushName,
		HasMedia:    evt.Payload.HasMedia,
		MessageType: msgType,
	}))
	return nil
}

// classifyPayload maps the provider payload to a message type and content
// body. Media with an image/audio/video mimetype prefix maps to that type,
// any other attachment maps to file, and everything else is text carrying
// the raw body. Media content is a serialized MediaDescriptor.
func classifyPayload(p waha.MessagePayload) (msgType, content string, err error) {
	if !p.HasMedia || p.Media == nil {
		return domain.TypeText, p.Body, nil
	}

	switch {
	case strings.HasPrefix(p.Media.Mimetype, "image/"):
		msgType = domain.TypeImage
	case strings.HasPrefix(p.Media.Mimetype, "audio/"):
		msgType = domain.TypeAudio
	case strings.HasPrefix(p.Media.Mimetype, "video/"):
		msgType = domain.TypeVideo
	default:
		msgType = domain.TypeFile
	}

	raw, err := json.Marshal(MediaDescriptor{
		Type:     msgType,
		Filename: p.Media.Filename,
		Mimetype: p.Media.Mimetype,
		URL:      p.Media.URL,
		S3:       p.Media.S3,
	})
	if err != nil {
		return "", "", err
	}
	return msgType, string(raw), nil
}
