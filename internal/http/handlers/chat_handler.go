// Chat HTTP handlers.
//
// This file exposes REST endpoints for chat resources:
//   - POST   /chats                     (create)
//   - GET    /chats                     (list, paginated, ETag support)
//   - GET    /chats/{id}                (fetch one)
//   - PUT    /chats/{id}/observations   (update operator notes)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/imobchat/go-crm-chat/internal/domain"
	"github.com/imobchat/go-crm-chat/internal/repo"
	"github.com/imobchat/go-crm-chat/internal/services"
	"github.com/imobchat/go-crm-chat/internal/sse"
	"github.com/imobchat/go-crm-chat/internal/utils"
	"github.com/imobchat/go-crm-chat/internal/waha"
)

//
// Service contracts (context-aware)
//

// ChatService defines chat lifecycle operations consumed by HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ChatService interface {
	// Create opens a chat for a contact phone with an optional display name.
	Create(ctx context.Context, contactName, contactPhone, sessionName string) (*domain.Chat, error)
	// Get fetches a chat by id.
	Get(ctx context.Context, chatID string) (*domain.Chat, error)
	// ListPage returns a page of chats ordered by last activity plus the total count.
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Chat, int64, error)
	// UpdateObservations replaces the operator notes attached to a chat.
	UpdateObservations(ctx context.Context, chatID, observations string) error
}

// MessageService defines outbound send and message retrieval operations.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MessageService interface {
	// Send persists an outbound message and relays it through the provider.
	Send(ctx context.Context, userID, chatID, text, sessionName string) (*domain.Message, error)
	// ListPage returns a page of messages within a chat and the total count.
	ListPage(ctx context.Context, chatID string, page, pageSize int) ([]domain.Message, int64, error)
}

// WebhookService processes inbound provider webhook events.
type WebhookService interface {
	// ReceiveMessage normalizes, persists, and fans out one webhook event.
	ReceiveMessage(ctx context.Context, evt waha.WebhookEvent) error
}

// SessionService manages provider gateway sessions.
type SessionService interface {
	// Create registers a named session with the gateway and persists it.
	Create(ctx context.Context, name string) (*domain.WhatsappSession, error)
	// QRCode fetches the pairing QR code image for a session.
	QRCode(ctx context.Context, name string) ([]byte, error)
	// List returns all registered sessions.
	List(ctx context.Context) ([]domain.WhatsappSession, error)
}

// SubscriptionHub is the live fan-out surface consumed by the subscribe
// endpoints. The concrete implementation is sse.Hub.
type SubscriptionHub interface {
	// Subscribe registers ch as the user's push channel for a chat,
	// replacing any previous subscription held by that user.
	Subscribe(userID, chatID string, ch sse.Channel)
	// Unsubscribe removes the user's subscription if one exists.
	Unsubscribe(userID string)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for chats, messages, sessions, webhooks, and
// live subscriptions. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	chatSvc    ChatService
	msgSvc     MessageService
	webhookSvc WebhookService
	sessionSvc SessionService
	hub        SubscriptionHub
}

// New constructs and returns a Handlers instance bound to the given services.
func New(chatSvc ChatService, msgSvc MessageService, webhookSvc WebhookService, sessionSvc SessionService, hub SubscriptionHub) *Handlers {
	return &Handlers{
		chatSvc:    chatSvc,
		msgSvc:     msgSvc,
		webhookSvc: webhookSvc,
		sessionSvc: sessionSvc,
		hub:        hub,
	}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// CreateChatRequest is the JSON payload for creating a chat.
type CreateChatRequest struct {
	// ContactName optionally labels the contact; the phone is used when empty.
	ContactName string `json:"contact_name" example:"Alice Prospect"`
	// ContactPhone is the contact's phone in any provider form; it is
	// canonicalized to bare digits before the uniqueness check.
	ContactPhone string `json:"contact_phone" binding:"required,min=1" example:"5511999990000"`
	// Session optionally binds the chat to a named provider session.
	Session string `json:"session" example:"default"`
}

// UpdateChatObservationsRequest is the JSON payload for updating the operator
// notes attached to a chat.
type UpdateChatObservationsRequest struct {
	// Observations is free-form operator text (may be empty to clear).
	Observations string `json:"observations" example:"Prefers evening visits; asked about unit 1204."`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListChatsResponse wraps a page of chats and pagination information.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateChat godoc
// @ID          createChat
// @Summary     Create a new chat
// @Description Opens a chat for a contact phone. The phone is canonicalized, so any provider address form maps to the same contact.
// @Tags        Chats
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateChatRequest  true  "Create chat payload"
//
// @Success     201  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     409  {object}  handlers.ErrorResponse  "Contact already has a chat"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chats [post]
func (h *Handlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ch, err := h.chatSvc.Create(c.Request.Context(), req.ContactName, req.ContactPhone, req.Session)
	if err != nil {
		switch err {
		case services.ErrInvalidPhone:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "contact_phone must contain a full international number")
		case services.ErrChatExists:
			fail(c, http.StatusConflict, ErrCodeConflict, "contact already has a chat")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, ch)
}

// ListChats godoc
// @ID          listChats
// @Summary     List chats (paginated)
// @Description Returns a page of chats ordered by last activity. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Chats
// @Produce     json
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListChatsResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.chatSvc.(*services.ChatService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.ChatsStats(ctx, db)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"chats:%d:%d"`, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	// Fetch page.
	items, total, err := h.chatSvc.ListPage(ctx, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListChatsResponse{
		Chats: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// GetChat godoc
// @ID          getChat
// @Summary     Fetch a chat
// @Description Returns a single chat resource by id.
// @Tags        Chats
// @Produce     json
//
// @Param       id  path  string  true  "Chat ID (UUID)"  format(uuid)
//
// @Success     200  {object} domain.Chat
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id} [get]
func (h *Handlers) GetChat(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	ch, err := h.chatSvc.Get(c.Request.Context(), chatID)
	if err != nil {
		switch err {
		case services.ErrChatNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, ch)
}

// UpdateChatObservations godoc
// @ID          updateChatObservations
// @Summary     Update chat observations
// @Description Replaces the operator notes attached to a chat.
// @Tags        Chats
// @Accept      json
// @Produce     json
//
// @Param       id    path  string  true  "Chat ID (UUID)"  format(uuid)
// @Param       body  body  handlers.UpdateChatObservationsRequest  true  "New observations"
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/observations [put]
func (h *Handlers) UpdateChatObservations(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	var req UpdateChatObservationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	if err := h.chatSvc.UpdateObservations(c.Request.Context(), chatID, req.Observations); err != nil {
		switch err {
		case services.ErrChatNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	noContent(c)
}
