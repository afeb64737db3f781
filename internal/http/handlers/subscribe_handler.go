// Live subscription HTTP handlers.
//
// This file exposes the Server-Sent Events surface:
//   - GET  /chats/{id}/subscribe   (open an event stream for a chat)
//   - POST /chats/unsubscribe      (drop the caller's subscription)
//
// The subscribe handler adapts one HTTP response stream into the hub's
// Channel contract. All frames (connection handshake, buffered backlog, live
// messages, heartbeats) are written by the hub through that channel; the
// handler itself only sets stream headers and blocks until the client leaves
// or the hub closes the channel.
//
// Because EventSource clients cannot set request headers, the subscriber
// identity may also arrive as a `user_id` query parameter.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"sync"

	ginsse "github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/imobchat/go-crm-chat/internal/services"
	"github.com/imobchat/go-crm-chat/internal/sse"
)

// errStreamClosed is returned by writes to a stream whose client is gone.
var errStreamClosed = errors.New("event stream closed")

// streamChannel adapts a single HTTP response into an sse.Channel. Writes
// encode one SSE frame and flush it immediately; Close marks the stream dead
// and releases the handler goroutine blocked in Subscribe.
type streamChannel struct {
	mu     sync.Mutex
	w      gin.ResponseWriter
	closed bool
	done   chan struct{}
}

func newStreamChannel(w gin.ResponseWriter) *streamChannel {
	return &streamChannel{w: w, done: make(chan struct{})}
}

// Write encodes evt as one SSE frame (event name + JSON data) and flushes.
// A transport error is reported to the hub, which treats it as a disconnect.
func (s *streamChannel) Write(evt sse.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStreamClosed
	}
	if err := ginsse.Encode(s.w, ginsse.Event{Event: evt.Type, Data: evt}); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

// Close is idempotent and never writes to the response.
func (s *streamChannel) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// subscriberID resolves the caller identity for stream endpoints, preferring
// the query parameter EventSource clients are limited to.
func subscriberID(c *gin.Context) string {
	if q := strings.TrimSpace(c.Query("user_id")); q != "" {
		return q
	}
	return userID(c)
}

// Subscribe godoc
// @ID          subscribeChat
// @Summary     Subscribe to a chat's live events
// @Description Opens a Server-Sent Events stream for the chat. The stream starts with a connection frame,
// @Description then replays any messages buffered while nobody was listening, then delivers live messages
// @Description and periodic heartbeats. Subscribing replaces the caller's previous subscription.
// @Tags        Subscriptions
// @Produce     text/event-stream
//
// @Param       id       path   string  true  "Chat ID (UUID)"  format(uuid)
// @Param       user_id  query  string  false "Subscriber user ID (EventSource cannot set headers)"
//
// @Success     200  {string} string "SSE stream"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Router      /chats/{id}/subscribe [get]
func (h *Handlers) Subscribe(c *gin.Context) {
	chatID := c.Param("id")
	if _, err := uuid.Parse(chatID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return
	}

	if _, err := h.chatSvc.Get(c.Request.Context(), chatID); err != nil {
		switch err {
		case services.ErrChatNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ch := newStreamChannel(c.Writer)
	h.hub.Subscribe(subscriberID(c), chatID, ch)

	// Block until the hub closes the channel (replacement, reap, shutdown) or
	// the client disconnects. On disconnect the channel is marked closed so
	// the next hub write fails and the hub drops the subscription itself; a
	// direct Unsubscribe here could race with a replacement subscription.
	select {
	case <-ch.done:
	case <-c.Request.Context().Done():
		_ = ch.Close()
	}
}

// Unsubscribe godoc
// @ID          unsubscribeChat
// @Summary     Drop the caller's live subscription
// @Description Removes the caller's subscription if one exists. Safe to call when none is active.
// @Tags        Subscriptions
// @Produce     json
//
// @Param       X-User-ID  header  string  false "Subscriber user ID"
// @Param       user_id    query   string  false "Subscriber user ID"
//
// @Success     204  {string} string "No Content"
// @Router      /chats/unsubscribe [post]
func (h *Handlers) Unsubscribe(c *gin.Context) {
	h.hub.Unsubscribe(subscriberID(c))
	noContent(c)
}
