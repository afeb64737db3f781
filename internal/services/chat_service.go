// Package services – ChatService
//
// This file implements the ChatService, which manages the lifecycle of chats.
// It canonicalizes contact phones, enforces the one-chat-per-contact rule,
// and coordinates repository operations for creating, listing (with
// pagination), and annotating chats. Chats are also created lazily by the
// webhook processor on first contact; this service covers the explicit API
// path.
//
// Service-level errors (e.g., ErrChatNotFound) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"gorm.io/gorm"

	"github.com/imobchat/go-crm-chat/internal/domain"
	"github.com/imobchat/go-crm-chat/internal/waha"
)

// minPhoneDigits is the minimum canonical phone length accepted on explicit
// chat creation (country code + area code + number).
const minPhoneDigits = 8

// ChatRepo defines the repository contract required by ChatService.
// Implementations are responsible for persistence of chat aggregates.
type ChatRepo interface {
	// CreateChat inserts a new chat row for the given contact.
	CreateChat(ctx context.Context, db *gorm.DB, contactName, contactPhone, sessionName string) (*domain.Chat, error)

	// GetChat fetches a chat by ID.
	GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error)

	// GetChatByPhone fetches the chat bound to a canonical contact phone.
	GetChatByPhone(ctx context.Context, db *gorm.DB, contactPhone string) (*domain.Chat, error)

	// CountChats returns the total number of chats for pagination.
	CountChats(ctx context.Context, db *gorm.DB) (int64, error)

	// ListChatsPage returns a page of chats ordered by last activity.
	ListChatsPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Chat, error)

	// UpdateChatObservations replaces a chat's operator notes.
	UpdateChatObservations(ctx context.Context, db *gorm.DB, id, observations string) error
}

// ChatService provides chat-level operations such as creating, listing, and
// annotating chats. It enforces phone canonicalization and the
// one-chat-per-contact constraint.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the chat repository used by this service.
	Repo ChatRepo

	// DefaultSession is the provider session bound to chats created without
	// an explicit session name.
	DefaultSession string
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, r ChatRepo, defaultSession string) *ChatService {
	return &ChatService{
		DB:             db,
		Repo:           r,
		DefaultSession: defaultSession,
	}
}

// Create inserts a new chat for a contact. The phone is canonicalized before
// the uniqueness check, so "5511999990000@c.us" and "5511999990000" refer to
// the same contact. Returns ErrChatExists when the contact already has a chat.
func (s *ChatService) Create(ctx context.Context, contactName, contactPhone, sessionName string) (*domain.Chat, error) {
	phone := waha.CanonicalPhone(contactPhone)
	if len(phone) < minPhoneDigits {
		return nil, ErrInvalidPhone
	}

	if _, err := s.Repo.GetChatByPhone(ctx, s.DB, phone); err == nil {
		return nil, ErrChatExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	name := normalizeContactName(contactName)
	if name == "" {
		name = phone
	}
	session := strings.TrimSpace(sessionName)
	if session == "" {
		session = s.DefaultSession
	}
	return s.Repo.CreateChat(ctx, s.DB, name, phone, session)
}

// Get fetches a chat by id, mapping missing rows to ErrChatNotFound.
func (s *ChatService) Get(ctx context.Context, chatID string) (*domain.Chat, error) {
	c, err := s.Repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	return c, nil
}

// ListPage returns a page of chats ordered by last activity (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *ChatService) ListPage(ctx context.Context, page, pageSize int) ([]domain.Chat, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountChats(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}

	items, err := s.Repo.ListChatsPage(ctx, s.DB, offset, pageSize)
	return items, total, err
}

// UpdateObservations replaces a chat's operator notes, ensuring the chat
// exists first.
func (s *ChatService) UpdateObservations(ctx context.Context, chatID, observations string) error {
	if _, err := s.Repo.GetChat(ctx, s.DB, chatID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	return s.Repo.UpdateChatObservations(ctx, s.DB, chatID, strings.TrimSpace(observations))
}

// normalizeContactName trims whitespace and collapses multiple spaces to one.
func normalizeContactName(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
