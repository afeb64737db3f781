// Package services – SessionService
//
// This file implements provider session management: creating a named gateway
// session, fetching its pairing QR code, and listing registered sessions.
// Session creation talks to the relay gateway first and only persists the
// record once the gateway accepted the request, so the database never lists
// sessions the provider does not know about.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/imobchat/go-crm-chat/internal/domain"
	"github.com/imobchat/go-crm-chat/internal/repo"
)

// SessionRelay is the gateway contract for session lifecycle operations.
type SessionRelay interface {
	StartSession(ctx context.Context, session string) error
	QRCode(ctx context.Context, session string) ([]byte, error)
}

// SessionService manages provider gateway sessions.
type SessionService struct {
	DB    *gorm.DB
	Relay SessionRelay
}

// Create registers a new named session with the gateway and persists it.
// Returns ErrSessionExists when the name is already taken and ErrRelayFailed
// when the gateway rejects the start request.
func (s *SessionService) Create(ctx context.Context, name string) (*domain.WhatsappSession, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("session name is required")
	}

	if _, err := repo.GetSessionByName(ctx, s.DB, name); err == nil {
		return nil, ErrSessionExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := s.Relay.StartSession(ctx, name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayFailed, err)
	}
	return repo.CreateSession(ctx, s.DB, name)
}

// QRCode fetches the current pairing QR code for a registered session.
func (s *SessionService) QRCode(ctx context.Context, name string) ([]byte, error) {
	if _, err := repo.GetSessionByName(ctx, s.DB, name); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	png, err := s.Relay.QRCode(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRelayFailed, err)
	}
	return png, nil
}

// List returns all registered sessions, newest first.
func (s *SessionService) List(ctx context.Context) ([]domain.WhatsappSession, error) {
	return repo.ListSessions(ctx, s.DB)
}
