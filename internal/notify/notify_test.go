package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"keepit/internal/apperr"
	"keepit/internal/models"
	"keepit/internal/store"

	"github.com/rs/zerolog"
)

type staticHooks []models.Webhook

func (s staticHooks) ListWebhooksForAction(_ context.Context, userID int64, action models.WebhookAction) ([]models.Webhook, error) {
	var out []models.Webhook
	for _, h := range s {
		if h.UserID == userID && h.Action == action {
			out = append(out, h)
		}
	}
	return out, nil
}

func TestWebhookNotifierPostsEvent(t *testing.T) {
	received := make(chan Event, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		received <- ev
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	hooks := staticHooks{
		{ID: 1, UserID: 7, Action: models.WebhookNoteCreated, URL: srv.URL},
		{ID: 2, UserID: 7, Action: models.WebhookNoteDeleted, URL: srv.URL},
	}
	n := NewWebhookNotifier(hooks, WebhookConfig{Timeout: time.Second}, zerolog.Nop())

	note := &models.Note{ID: 42, UserID: 7, Title: "hello"}
	if err := n.Notify(context.Background(), NewEvent(models.WebhookNoteCreated, 7, note)); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("Expected 1 delivery, got %d", len(received))
	}
	got := <-received
	if got.Action != models.WebhookNoteCreated || got.NoteID != 42 || got.UserID != 7 || got.Note.Title != "hello" {
		t.Errorf("Unexpected payload: %+v", got)
	}
}

func TestWebhookNotifierRateLimitsDestination(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	hooks := staticHooks{{ID: 1, UserID: 1, Action: models.WebhookNoteUpdated, URL: srv.URL}}
	n := NewWebhookNotifier(hooks, WebhookConfig{MinInterval: time.Hour}, zerolog.Nop())
	for i := 0; i < 3; i++ {
		if err := n.Notify(context.Background(), NewEvent(models.WebhookNoteUpdated, 1, nil)); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("Expected 1 delivery within the interval, got %d", n)
	}
}

func TestWebhookNotifierReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	hooks := staticHooks{{ID: 1, UserID: 1, Action: models.WebhookNoteUpdated, URL: srv.URL}}
	n := NewWebhookNotifier(hooks, WebhookConfig{}, zerolog.Nop())
	if err := n.Notify(context.Background(), NewEvent(models.WebhookNoteUpdated, 1, nil)); err == nil {
		t.Error("Expected an error for a 502 response")
	}
}

type recorder struct {
	calls int32
	err   error
}

func (r *recorder) Notify(context.Context, Event) error {
	atomic.AddInt32(&r.calls, 1)
	return r.err
}

func TestMultiAndAsync(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("broker down")}

	if err := (Multi{ok, bad}).Notify(context.Background(), Event{}); err == nil {
		t.Error("Expected Multi to surface the failing notifier")
	}

	async := NewAsync(Multi{ok, bad}, time.Second, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	if err := async.Notify(ctx, Event{}); err != nil {
		t.Errorf("Expected Async to swallow errors, got %v", err)
	}
	cancel()
	async.Wait()
	if ok.calls != 2 || bad.calls != 2 {
		t.Errorf("Expected every notifier called twice, got %d and %d", ok.calls, bad.calls)
	}
}

// fakeDNS answers host lookups from a fixed table for the test's duration.
func fakeDNS(t *testing.T, table map[string][]string) {
	t.Helper()
	orig := lookupIP
	lookupIP = func(host string) ([]net.IP, error) {
		addrs, ok := table[host]
		if !ok {
			return nil, fmt.Errorf("no such host %s", host)
		}
		var ips []net.IP
		for _, a := range addrs {
			ips = append(ips, net.ParseIP(a))
		}
		return ips, nil
	}
	t.Cleanup(func() { lookupIP = orig })
}

func TestValidateURL(t *testing.T) {
	fakeDNS(t, map[string][]string{
		"hooks.example.com":  {"93.184.216.34"},
		"rebind.example.com": {"93.184.216.35", "10.0.0.7"},
		"loop.example.com":   {"127.0.0.1"},
	})
	tests := []struct {
		url          string
		allowPrivate bool
		want         error
	}{
		{"https://hooks.example.com/notes", false, nil},
		{"ftp://example.com", false, ErrInvalidURL},
		{"not a url", false, ErrInvalidURL},
		{"http://localhost:8080/hook", false, ErrInternalURL},
		{"http://127.0.0.1/hook", false, ErrInternalURL},
		{"http://10.1.2.3/hook", false, ErrInternalURL},
		{"http://169.254.169.254/latest", false, ErrInternalURL},
		{"http://127.0.0.1/hook", true, nil},
		{"https://rebind.example.com/hook", false, ErrInternalURL},
		{"https://loop.example.com/hook", false, ErrInternalURL},
		{"https://nowhere.example.com/hook", false, ErrInvalidURL},
		{"https://loop.example.com/hook", true, nil},
	}
	for _, tt := range tests {
		if err := ValidateURL(tt.url, tt.allowPrivate); !errors.Is(err, tt.want) {
			t.Errorf("ValidateURL(%q, %v) = %v, want %v", tt.url, tt.allowPrivate, err, tt.want)
		}
	}
}

type memHooks struct {
	hooks  []models.Webhook
	nextID int64
}

func (m *memHooks) CreateWebhook(_ context.Context, h *models.Webhook) error {
	m.nextID++
	h.ID = m.nextID
	m.hooks = append(m.hooks, *h)
	return nil
}

func (m *memHooks) ListWebhooks(_ context.Context, userID int64) ([]models.Webhook, error) {
	var out []models.Webhook
	for _, h := range m.hooks {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *memHooks) DeleteWebhook(_ context.Context, id, userID int64) error {
	for i, h := range m.hooks {
		if h.ID == id && h.UserID == userID {
			m.hooks = append(m.hooks[:i], m.hooks[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func TestRegistry(t *testing.T) {
	fakeDNS(t, map[string][]string{
		"hooks.example.com":    {"93.184.216.34"},
		"intranet.example.com": {"192.168.4.4"},
	})
	st := &memHooks{}
	reg := NewRegistry(st, false)
	ctx := context.Background()

	hook, err := reg.Create(ctx, 1, models.WebhookNoteCreated, " https://hooks.example.com/a ")
	if err != nil {
		t.Fatalf("Failed to create webhook: %v", err)
	}
	if hook.URL != "https://hooks.example.com/a" {
		t.Errorf("Expected trimmed url, got %q", hook.URL)
	}
	if _, err := reg.Create(ctx, 1, "note_archived", "https://hooks.example.com/a"); apperr.KindOf(err) != apperr.ValidationFailed {
		t.Errorf("Expected unknown action to fail validation, got %v", err)
	}
	if _, err := reg.Create(ctx, 1, models.WebhookNoteCreated, "http://192.168.1.10/hook"); apperr.KindOf(err) != apperr.ValidationFailed {
		t.Errorf("Expected private url to fail validation, got %v", err)
	}
	if _, err := reg.Create(ctx, 1, models.WebhookNoteCreated, "https://intranet.example.com/hook"); apperr.KindOf(err) != apperr.ValidationFailed {
		t.Errorf("Expected host resolving to a private address to fail validation, got %v", err)
	}

	if err := reg.Delete(ctx, hook.ID, 2); !errors.Is(err, apperr.ErrWebhookNotFound) {
		t.Errorf("Expected foreign delete to fail, got %v", err)
	}
	if err := reg.Delete(ctx, hook.ID, 1); err != nil {
		t.Fatalf("Failed to delete webhook: %v", err)
	}
	if hooks, _ := reg.List(ctx, 1); len(hooks) != 0 {
		t.Errorf("Expected no webhooks left, got %d", len(hooks))
	}
}
