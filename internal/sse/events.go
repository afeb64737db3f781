// Package sse implements the live subscription fan-out for chat messages.
//
// This file defines the event frames pushed to subscribers and the Channel
// capability the hub writes them to. A Channel is typically a long-lived HTTP
// response stream, but anything writable and closable works, which keeps the
// hub testable without network connections.
package sse

import (
	"time"

	"github.com/imobchat/go-crm-chat/internal/domain"
)

// Event types emitted on a subscriber channel.
const (
	// EventConnection is emitted once, immediately after a subscription opens.
	EventConnection = "connection"
	// EventHeartbeat is emitted on a fixed interval to keep the transport
	// alive and to refresh the subscription's liveness.
	EventHeartbeat = "heartbeat"
	// EventNewMessage carries one chat message, live or drained from the
	// offline buffer.
	EventNewMessage = "new_message"
)

// WebhookMeta is event metadata propagated from the inbound webhook so
// subscribers can render rich previews without a second fetch.
type WebhookMeta struct {
	Session     string `json:"session"`
	PushName    string `json:"push_name"`
	HasMedia    bool   `json:"has_media"`
	MessageType string `json:"message_type"`
}

// Event is one frame written to a subscriber channel.
type Event struct {
	Type      string          `json:"type"`
	Message   *domain.Message `json:"message,omitempty"`
	ChatID    string          `json:"chat_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Webhook   *WebhookMeta    `json:"webhook_data,omitempty"`
}

// ConnectionEvent builds the initial frame for a fresh subscription.
func ConnectionEvent() Event {
	return Event{Type: EventConnection, Timestamp: time.Now().UTC()}
}

// HeartbeatEvent builds a keepalive frame.
func HeartbeatEvent(now time.Time) Event {
	return Event{Type: EventHeartbeat, Timestamp: now.UTC()}
}

// NewMessageEvent builds a message delivery frame.
func NewMessageEvent(chatID string, msg *domain.Message, meta *WebhookMeta) Event {
	return Event{
		Type:      EventNewMessage,
		Message:   msg,
		ChatID:    chatID,
		Timestamp: time.Now().UTC(),
		Webhook:   meta,
	}
}

// Channel is the push handle a subscriber is reached through.
//
// Write must be safe for concurrent use: the hub writes from webhook
// processing, heartbeat timers, and the drain path. A Write error is treated
// as a disconnect and tears the subscription down.
type Channel interface {
	Write(Event) error
	Close() error
}
