package waha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCanonicalPhone(t *testing.T) {
	cases := map[string]string{
		"5511999990000@c.us":          "5511999990000",
		"5511999990000@s.whatsapp.net": "5511999990000",
		"5511999990000":               "5511999990000",
		"+55 (11) 99999-0000":         "5511999990000",
		"@c.us":                       "",
		"":                            "",
		"abc":                         "",
	}
	for in, want := range cases {
		if got := CanonicalPhone(in); got != want {
			t.Fatalf("CanonicalPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestChatAddress(t *testing.T) {
	if got := ChatAddress("5511999990000"); got != "5511999990000@c.us" {
		t.Fatalf("ChatAddress = %q", got)
	}
	// Already-addressed input passes through unchanged.
	if got := ChatAddress("5511999990000@c.us"); got != "5511999990000@c.us" {
		t.Fatalf("ChatAddress = %q", got)
	}
}

func TestSendText_RequestShape(t *testing.T) {
	var gotPath, gotKey, gotCT string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		gotCT = r.Header.Get("Content-Type")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	if err := c.SendText(context.Background(), "main", "5511999990000", "hello"); err != nil {
		t.Fatalf("SendText: %v", err)
	}

	if gotPath != "/api/sendText" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotKey != "secret" || gotCT != "application/json" {
		t.Fatalf("headers: key=%q ct=%q", gotKey, gotCT)
	}
	if gotBody["session"] != "main" || gotBody["chatId"] != "5511999990000@c.us" || gotBody["text"] != "hello" {
		t.Fatalf("body: %v", gotBody)
	}
}

func TestSendText_GatewayErrorSurfacesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not paired", http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	err := c.SendText(context.Background(), "main", "5511999990000", "hello")
	if err == nil {
		t.Fatalf("SendText should fail on non-2xx")
	}
	if !strings.Contains(err.Error(), "422") || !strings.Contains(err.Error(), "session not paired") {
		t.Fatalf("error should carry status and body snippet: %v", err)
	}
}

func TestStartSession(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/sessions" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if err := c.StartSession(context.Background(), "main"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if gotBody["name"] != "main" || gotBody["start"] != true {
		t.Fatalf("body: %v", gotBody)
	}
}

func TestQRCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/main/auth/qr" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "image/png" {
			t.Errorf("accept = %q", got)
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	png, err := c.QRCode(context.Background(), "main")
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if string(png) != "png-bytes" {
		t.Fatalf("png = %q", png)
	}
}

func TestQRCode_NotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "qr not available", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.QRCode(context.Background(), "main"); err == nil {
		t.Fatalf("QRCode should fail when the gateway has no code")
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.SendText(ctx, "main", "551199", "x"); err == nil {
		t.Fatalf("cancelled context should fail the request")
	}
}
