package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/imobchat/go-crm-chat/internal/domain"
)

// fakeChatRepo is a hand-rolled ChatRepo backed by a map keyed on phone.
type fakeChatRepo struct {
	byPhone map[string]*domain.Chat
	byID    map[string]*domain.Chat

	createErr error
	updates   map[string]string
}

func newFakeChatRepo() *fakeChatRepo {
	return &fakeChatRepo{
		byPhone: map[string]*domain.Chat{},
		byID:    map[string]*domain.Chat{},
		updates: map[string]string{},
	}
}

func (f *fakeChatRepo) CreateChat(_ context.Context, _ *gorm.DB, contactName, contactPhone, sessionName string) (*domain.Chat, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	c := &domain.Chat{
		ID:           "chat-" + contactPhone,
		ContactName:  contactName,
		ContactPhone: contactPhone,
		SessionName:  sessionName,
	}
	f.byPhone[contactPhone] = c
	f.byID[c.ID] = c
	return c, nil
}

func (f *fakeChatRepo) GetChat(_ context.Context, _ *gorm.DB, id string) (*domain.Chat, error) {
	if c, ok := f.byID[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeChatRepo) GetChatByPhone(_ context.Context, _ *gorm.DB, contactPhone string) (*domain.Chat, error) {
	if c, ok := f.byPhone[contactPhone]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeChatRepo) CountChats(_ context.Context, _ *gorm.DB) (int64, error) {
	return int64(len(f.byID)), nil
}

func (f *fakeChatRepo) ListChatsPage(_ context.Context, _ *gorm.DB, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	for _, c := range f.byID {
		out = append(out, *c)
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeChatRepo) UpdateChatObservations(_ context.Context, _ *gorm.DB, id, observations string) error {
	if _, ok := f.byID[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	f.updates[id] = observations
	return nil
}

func TestChatCreate_CanonicalizesPhone(t *testing.T) {
	r := newFakeChatRepo()
	svc := NewChatService(nil, r, "default")

	c, err := svc.Create(context.Background(), "Alice", "5511999990000@c.us", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ContactPhone != "5511999990000" {
		t.Fatalf("phone = %q, want canonical digits", c.ContactPhone)
	}
	if c.SessionName != "default" {
		t.Fatalf("session = %q, want default fallback", c.SessionName)
	}
}

func TestChatCreate_DuplicateContact(t *testing.T) {
	r := newFakeChatRepo()
	svc := NewChatService(nil, r, "default")

	if _, err := svc.Create(context.Background(), "Alice", "5511999990000", ""); err != nil {
		t.Fatalf("first create: %v", err)
	}
	// Same contact, different surface form.
	if _, err := svc.Create(context.Background(), "Alice 2", "+55 (11) 99999-0000", ""); err != ErrChatExists {
		t.Fatalf("err = %v, want ErrChatExists", err)
	}
}

func TestChatCreate_InvalidPhone(t *testing.T) {
	svc := NewChatService(nil, newFakeChatRepo(), "default")

	for _, phone := range []string{"", "abc", "123", "@c.us"} {
		if _, err := svc.Create(context.Background(), "X", phone, ""); err != ErrInvalidPhone {
			t.Fatalf("phone %q: err = %v, want ErrInvalidPhone", phone, err)
		}
	}
}

func TestChatCreate_NameNormalizationAndFallback(t *testing.T) {
	r := newFakeChatRepo()
	svc := NewChatService(nil, r, "default")

	c, err := svc.Create(context.Background(), "  Alice   Prospect ", "5511999990000", "s1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ContactName != "Alice Prospect" {
		t.Fatalf("name = %q, want collapsed whitespace", c.ContactName)
	}
	if c.SessionName != "s1" {
		t.Fatalf("session = %q, want explicit value kept", c.SessionName)
	}

	c2, err := svc.Create(context.Background(), "   ", "5511888880000", "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c2.ContactName != "5511888880000" {
		t.Fatalf("name = %q, want phone fallback", c2.ContactName)
	}
}

func TestChatGet_MapsNotFound(t *testing.T) {
	r := newFakeChatRepo()
	svc := NewChatService(nil, r, "default")

	if _, err := svc.Get(context.Background(), "missing"); err != ErrChatNotFound {
		t.Fatalf("err = %v, want ErrChatNotFound", err)
	}

	created, _ := svc.Create(context.Background(), "Alice", "5511999990000", "")
	got, err := svc.Get(context.Background(), created.ID)
	if err != nil || got.ID != created.ID {
		t.Fatalf("Get: %v %+v", err, got)
	}
}

func TestChatListPage_DefaultsAndTotals(t *testing.T) {
	r := newFakeChatRepo()
	svc := NewChatService(nil, r, "default")

	items, total, err := svc.ListPage(context.Background(), 0, -1)
	if err != nil {
		t.Fatalf("ListPage empty: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("empty repo: total=%d items=%d", total, len(items))
	}

	for _, p := range []string{"5511000000001", "5511000000002", "5511000000003"} {
		if _, err := svc.Create(context.Background(), "c", p, ""); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	items, total, err = svc.ListPage(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Fatalf("total=%d items=%d, want 3/2", total, len(items))
	}
}

func TestChatUpdateObservations(t *testing.T) {
	r := newFakeChatRepo()
	svc := NewChatService(nil, r, "default")

	if err := svc.UpdateObservations(context.Background(), "missing", "note"); err != ErrChatNotFound {
		t.Fatalf("err = %v, want ErrChatNotFound", err)
	}

	c, _ := svc.Create(context.Background(), "Alice", "5511999990000", "")
	if err := svc.UpdateObservations(context.Background(), c.ID, "  trimmed note "); err != nil {
		t.Fatalf("UpdateObservations: %v", err)
	}
	if got := r.updates[c.ID]; got != "trimmed note" {
		t.Fatalf("stored observations = %q", got)
	}
}

func TestChatCreate_RepoErrorPassesThrough(t *testing.T) {
	r := newFakeChatRepo()
	r.createErr = errors.New("disk full")
	svc := NewChatService(nil, r, "default")

	if _, err := svc.Create(context.Background(), "Alice", "5511999990000", ""); err == nil || errors.Is(err, ErrChatExists) {
		t.Fatalf("err = %v, want raw repo error", err)
	}
}
