// Session HTTP handlers.
//
// This file exposes REST endpoints for provider gateway sessions:
//   - POST /sessions             (register and start a session)
//   - GET  /sessions             (list registered sessions)
//   - GET  /sessions/{name}/qr   (fetch the pairing QR code image)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/imobchat/go-crm-chat/internal/domain"
	"github.com/imobchat/go-crm-chat/internal/services"
)

// CreateSessionRequest is the JSON payload for registering a session.
type CreateSessionRequest struct {
	// Name identifies the session at the gateway (e.g. "default").
	Name string `json:"name" binding:"required,min=1" example:"default"`
}

// ListSessionsResponse wraps the registered sessions.
type ListSessionsResponse struct {
	Sessions []domain.WhatsappSession `json:"sessions"`
}

// CreateSession godoc
// @ID          createSession
// @Summary     Register a provider session
// @Description Starts a named session at the gateway and records it. The session must then be paired via its QR code.
// @Tags        Sessions
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.CreateSessionRequest  true  "Session payload"
//
// @Success     201  {object} domain.WhatsappSession
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     409  {object} handlers.ErrorResponse "Session already exists"
// @Failure     502  {object} handlers.ErrorResponse "Gateway rejected the session"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions [post]
func (h *Handlers) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session name required")
		return
	}

	s, err := h.sessionSvc.Create(c.Request.Context(), req.Name)
	if err != nil {
		switch {
		case err == services.ErrSessionExists:
			fail(c, http.StatusConflict, ErrCodeConflict, "session already exists")
		case errors.Is(err, services.ErrRelayFailed):
			fail(c, http.StatusBadGateway, ErrCodeRelayFailed, "gateway rejected the session")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, s)
}

// ListSessions godoc
// @ID          listSessions
// @Summary     List provider sessions
// @Tags        Sessions
// @Produce     json
//
// @Success     200  {object} handlers.ListSessionsResponse
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions [get]
func (h *Handlers) ListSessions(c *gin.Context) {
	items, err := h.sessionSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListSessionsResponse{Sessions: items})
}

// SessionQR godoc
// @ID          sessionQR
// @Summary     Fetch a session's pairing QR code
// @Description Returns the current QR code as a PNG image. Scan it with the WhatsApp app to pair the session.
// @Tags        Sessions
// @Produce     png
//
// @Param       name  path  string  true  "Session name"
//
// @Success     200  {file}   file                    "QR code image"
// @Failure     404  {object} handlers.ErrorResponse "Session not found"
// @Failure     502  {object} handlers.ErrorResponse "Gateway did not provide a QR code"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /sessions/{name}/qr [get]
func (h *Handlers) SessionQR(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "session name required")
		return
	}

	png, err := h.sessionSvc.QRCode(c.Request.Context(), name)
	if err != nil {
		switch {
		case err == services.ErrSessionNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "session not found")
		case errors.Is(err, services.ErrRelayFailed):
			fail(c, http.StatusBadGateway, ErrCodeRelayFailed, "gateway did not provide a QR code")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
