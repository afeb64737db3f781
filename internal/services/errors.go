// Package services defines the business logic for chats, messages, webhook
// ingestion, and provider sessions. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

var (
	// ErrChatNotFound indicates that the requested chat does not exist.
	ErrChatNotFound = errors.New("chat not found")

	// ErrChatExists is returned when creating a chat for a contact phone
	// that already has a non-deleted chat.
	ErrChatExists = errors.New("chat already exists for contact")

	// ErrInvalidPhone is returned when a contact phone canonicalizes to an
	// empty or implausibly short number.
	ErrInvalidPhone = errors.New("invalid contact phone")

	// ErrEmptyMessage is returned when an outbound send carries no text.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrTooLong is returned when an outbound send exceeds the configured
	// maximum length limit.
	ErrTooLong = errors.New("message text too long")

	// ErrSessionNotFound indicates that the referenced provider session has
	// no record in the system.
	ErrSessionNotFound = errors.New("whatsapp session not found")

	// ErrSessionExists is returned when creating a session with a name that
	// is already registered.
	ErrSessionExists = errors.New("whatsapp session already exists")

	// ErrRelayFailed wraps gateway delivery failures on the outbound path.
	// Unlike inbound processing errors it is surfaced to the caller: a failed
	// send is actionable by the operator.
	ErrRelayFailed = errors.New("relay to provider failed")
)
