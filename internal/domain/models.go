// Package domain defines the persistence models for chats, messages, and
// WhatsApp provider sessions. These types are mapped with GORM and form the
// core data layer of the CRM chat subsystem.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Message directions. A message is either received from the contact via the
// provider webhook, or sent by a CRM operator.
const (
	DirectionReceived = "received"
	DirectionSent     = "sent"
)

// Message types, classified from the provider payload. Media messages carry a
// JSON descriptor in Content instead of the raw body text.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeAudio = "audio"
	TypeVideo = "video"
	TypeFile  = "file"
)

// Chat represents a conversation thread with one external contact. Chats are
// created lazily on the first inbound message from an unknown phone, or
// explicitly through the API.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - ContactName: display name of the contact (provider push name on lazy create).
//   - ContactPhone: canonical phone, digits only, no provider suffix. Unique
//     among non-deleted rows: at most one chat per contact.
//   - SessionName: the provider session this chat is bound to.
//   - UserObservations: free-text notes maintained by CRM operators.
//   - LastMessageAt: updated on every new message in either direction.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker (deletion itself is owned by the CRM CRUD layer).
type Chat struct {
	ID               string         `json:"id"                gorm:"type:char(36);primaryKey"`
	ContactName      string         `json:"contact_name"      gorm:"type:varchar(255);not null"`
	ContactPhone     string         `json:"contact_phone"     gorm:"type:varchar(32);not null;uniqueIndex:ux_chat_phone"`
	SessionName      string         `json:"session_name"      gorm:"type:varchar(64);not null;index"`
	UserObservations string         `json:"user_observations" gorm:"type:text"`
	LastMessageAt    time.Time      `json:"last_message_at"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `json:"-"                 gorm:"index"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message is an immutable record of one exchanged message. The provider
// message id is the external dedup key: webhook redelivery of an id already
// stored for the chat must update the existing row (if content changed) or
// no-op, never insert a second row.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ChatID: foreign key to the owning chat (indexed).
//   - UserID: operator who sent it; nil for received messages.
//   - MessageID: provider message id, unique per chat.
//   - Direction: "received" or "sent" (enforced by DB constraint).
//   - Type: text|image|audio|video|file.
//   - Content: text body, or a serialized media descriptor for media types.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker.
//   - Chat: FK association, ensures cascade delete/update.
type Message struct {
	ID        string         `json:"id"                gorm:"type:char(36);primaryKey"`
	ChatID    string         `json:"chat_id"           gorm:"type:char(36);not null;uniqueIndex:ux_chat_provider_msg,priority:1;index:idx_chat_msgs,priority:1"`
	UserID    *string        `json:"user_id,omitempty" gorm:"type:varchar(64)"`
	MessageID string         `json:"message_id"        gorm:"type:varchar(128);not null;uniqueIndex:ux_chat_provider_msg,priority:2"`
	Direction string         `json:"direction"         gorm:"type:varchar(16);not null;check:direction IN ('received','sent')"`
	Type      string         `json:"type"              gorm:"type:varchar(16);not null;check:type IN ('text','image','audio','video','file')"`
	Content   string         `json:"content"           gorm:"type:text;not null"`
	CreatedAt time.Time      `json:"created_at"        gorm:"index:idx_chat_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"                 gorm:"index"`

	// Chat is the parent conversation. Messages are cascade-deleted
	// if their chat is removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// WhatsappSession represents one provider gateway session. A session is
// created through the relay gateway and authenticated by scanning a QR code;
// inbound webhooks reference it by name.
type WhatsappSession struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Name      string         `json:"name"       gorm:"type:varchar(64);not null;uniqueIndex:ux_session_name"`
	Status    string         `json:"status"     gorm:"type:varchar(16);not null;default:'starting'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for WhatsappSession.
func (WhatsappSession) TableName() string { return "whatsapp_sessions" }
