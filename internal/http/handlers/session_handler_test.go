package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/imobchat/go-crm-chat/internal/domain"
	"github.com/imobchat/go-crm-chat/internal/services"
)

func newSessionRouter(svc SessionService) *gin.Engine {
	h := New(stubChatSvc{}, stubMsgSvc{}, stubWebhookSvc{}, svc, &stubHub{})
	r := gin.New()
	r.POST("/sessions", h.CreateSession)
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/:name/qr", h.SessionQR)
	return r
}

func TestCreateSession_Validation_Success_Conflict_Gateway(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// missing name -> 400
	{
		r := newSessionRouter(stubSessionSvc{})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{"name":"   "}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("blank name -> %d", w.Code)
		}
	}

	// success -> 201
	{
		r := newSessionRouter(stubSessionSvc{})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{"name":"main"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("create -> %d body=%s", w.Code, w.Body.String())
		}
		var out domain.WhatsappSession
		if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
			t.Fatalf("json: %v", err)
		}
		if out.Name != "main" || out.Status != "starting" {
			t.Fatalf("unexpected session: %#v", out)
		}
	}

	// duplicate -> 409
	{
		r := newSessionRouter(stubSessionSvc{create: func(context.Context, string) (*domain.WhatsappSession, error) {
			return nil, services.ErrSessionExists
		}})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{"name":"main"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusConflict {
			t.Fatalf("duplicate -> %d", w.Code)
		}
	}

	// gateway rejection -> 502
	{
		r := newSessionRouter(stubSessionSvc{create: func(context.Context, string) (*domain.WhatsappSession, error) {
			return nil, fmt.Errorf("%w: boom", services.ErrRelayFailed)
		}})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{"name":"main"}`))
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("gateway rejection -> %d", w.Code)
		}
	}
}

func TestListSessions(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := newSessionRouter(stubSessionSvc{list: func(context.Context) ([]domain.WhatsappSession, error) {
		return []domain.WhatsappSession{{Name: "a"}, {Name: "b"}}, nil
	}})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d", w.Code)
	}
	var out ListSessionsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(out.Sessions))
	}
}

func TestSessionQR_Success_NotFound_Gateway(t *testing.T) {
	gin.SetMode(gin.TestMode)

	// success -> PNG bytes
	{
		r := newSessionRouter(stubSessionSvc{qr: func(context.Context, string) ([]byte, error) {
			return []byte("png-bytes"), nil
		}})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/main/qr", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("qr -> %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "image/png" {
			t.Fatalf("content type = %q", ct)
		}
		if w.Body.String() != "png-bytes" {
			t.Fatalf("body = %q", w.Body.String())
		}
	}

	// unknown session -> 404
	{
		r := newSessionRouter(stubSessionSvc{qr: func(context.Context, string) ([]byte, error) {
			return nil, services.ErrSessionNotFound
		}})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/ghost/qr", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Fatalf("missing -> %d", w.Code)
		}
	}

	// gateway has no code yet -> 502
	{
		r := newSessionRouter(stubSessionSvc{qr: func(context.Context, string) ([]byte, error) {
			return nil, errors.Join(services.ErrRelayFailed, errors.New("not paired"))
		}})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sessions/main/qr", nil)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadGateway {
			t.Fatalf("gateway -> %d", w.Code)
		}
	}
}
