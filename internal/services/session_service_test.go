package services

import (
	"context"
	"errors"
	"testing"

	"github.com/imobchat/go-crm-chat/internal/repo"
)

// fakeSessionRelay stubs the gateway session operations.
type fakeSessionRelay struct {
	startErr error
	qrErr    error
	qr       []byte
	started  []string
}

func (f *fakeSessionRelay) StartSession(_ context.Context, session string) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, session)
	return nil
}

func (f *fakeSessionRelay) QRCode(_ context.Context, _ string) ([]byte, error) {
	if f.qrErr != nil {
		return nil, f.qrErr
	}
	return f.qr, nil
}

func TestSessionCreate_StartsGatewayThenPersists(t *testing.T) {
	relay := &fakeSessionRelay{}
	svc := &SessionService{DB: newSvcDB(t), Relay: relay}

	s, err := svc.Create(context.Background(), "  main  ")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.Name != "main" || s.Status != "starting" {
		t.Fatalf("session fields: %+v", s)
	}
	if len(relay.started) != 1 || relay.started[0] != "main" {
		t.Fatalf("gateway calls: %v", relay.started)
	}

	if _, err := repo.GetSessionByName(context.Background(), svc.DB, "main"); err != nil {
		t.Fatalf("session not persisted: %v", err)
	}
}

func TestSessionCreate_DuplicateName(t *testing.T) {
	svc := &SessionService{DB: newSvcDB(t), Relay: &fakeSessionRelay{}}

	if _, err := svc.Create(context.Background(), "main"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := svc.Create(context.Background(), "main"); err != ErrSessionExists {
		t.Fatalf("err = %v, want ErrSessionExists", err)
	}
}

func TestSessionCreate_GatewayFailureDoesNotPersist(t *testing.T) {
	relay := &fakeSessionRelay{startErr: errors.New("gateway down")}
	svc := &SessionService{DB: newSvcDB(t), Relay: relay}

	_, err := svc.Create(context.Background(), "main")
	if !errors.Is(err, ErrRelayFailed) {
		t.Fatalf("err = %v, want ErrRelayFailed", err)
	}
	if _, err := repo.GetSessionByName(context.Background(), svc.DB, "main"); err == nil {
		t.Fatalf("session must not be persisted when the gateway rejects it")
	}
}

func TestSessionCreate_EmptyName(t *testing.T) {
	svc := &SessionService{DB: newSvcDB(t), Relay: &fakeSessionRelay{}}
	if _, err := svc.Create(context.Background(), "   "); err == nil {
		t.Fatalf("blank name should be rejected")
	}
}

func TestSessionQRCode(t *testing.T) {
	relay := &fakeSessionRelay{qr: []byte("png-bytes")}
	svc := &SessionService{DB: newSvcDB(t), Relay: relay}

	if _, err := svc.QRCode(context.Background(), "main"); err != ErrSessionNotFound {
		t.Fatalf("unregistered session: err = %v, want ErrSessionNotFound", err)
	}

	if _, err := svc.Create(context.Background(), "main"); err != nil {
		t.Fatalf("create: %v", err)
	}
	png, err := svc.QRCode(context.Background(), "main")
	if err != nil {
		t.Fatalf("QRCode: %v", err)
	}
	if string(png) != "png-bytes" {
		t.Fatalf("qr = %q", png)
	}

	relay.qrErr = errors.New("not ready")
	if _, err := svc.QRCode(context.Background(), "main"); !errors.Is(err, ErrRelayFailed) {
		t.Fatalf("err = %v, want ErrRelayFailed", err)
	}
}

func TestSessionList(t *testing.T) {
	svc := &SessionService{DB: newSvcDB(t), Relay: &fakeSessionRelay{}}

	for _, n := range []string{"a", "b"} {
		if _, err := svc.Create(context.Background(), n); err != nil {
			t.Fatalf("create %q: %v", n, err)
		}
	}
	items, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("sessions = %d, want 2", len(items))
	}
}
