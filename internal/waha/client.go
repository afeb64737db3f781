// Package waha integrates with a WAHA-style WhatsApp automation gateway.
//
// This file implements the outbound relay client: session creation, QR code
// retrieval for pairing, and text message delivery. The client is pure
// request/response over HTTP and holds no state beyond its configuration, so
// a single instance is safe for concurrent use.
package waha

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the gateway's REST API. All methods honor the provided
// context for cancellation and timeouts.
type Client struct {
	// BaseURL is the gateway root, e.g. "http://waha:3000".
	BaseURL string
	// APIKey is sent as X-Api-Key when non-empty.
	APIKey string
	// HTTPClient is the underlying transport; a default with a 15s timeout
	// is used when nil.
	HTTPClient *http.Client
}

// NewClient constructs a Client for the given gateway endpoint.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// StartSession asks the gateway to create (or restart) a named session.
// The session moves to scan_qr until paired via QR code.
func (c *Client) StartSession(ctx context.Context, session string) error {
	body := map[string]any{"name": session, "start": true}
	return c.do(ctx, http.MethodPost, "/api/sessions", body, nil)
}

// QRCode fetches the current pairing QR code for a session as a PNG.
func (c *Client) QRCode(ctx context.Context, session string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/"+session+"/auth/qr", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/png")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("waha: qr request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// SendText delivers a text message to the contact phone through the given
// session. The phone may be canonical ("5511999990000"); the provider chat
// address suffix is appended as required by the gateway.
func (c *Client) SendText(ctx context.Context, session, phone, text string) error {
	body := map[string]any{
		"session": session,
		"chatId":  ChatAddress(phone),
		"text":    text,
	}
	return c.do(ctx, http.MethodPost, "/api/sendText", body, nil)
}

// do performs a JSON round trip and decodes the response into out when
// non-nil. Non-2xx statuses are returned as errors carrying the status code.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := c.newRequest(ctx, method, path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("waha: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.APIKey != "" {
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	return req, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// statusError reads a bounded prefix of the response body into the error so
// gateway failures are diagnosable from logs.
func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("waha: gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}
