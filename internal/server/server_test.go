package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"
)

type stubDispatcher struct {
	mu      sync.Mutex
	updates []api.Update
	err     error
}

func (d *stubDispatcher) Dispatch(_ context.Context, u api.Update) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.updates = append(d.updates, u)
	return nil
}

func serve(t *testing.T, h http.Handler, method, path, body string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestWebhookDispatchesUpdates(t *testing.T) {
	t.Parallel()

	d := &stubDispatcher{}
	path := WebhookPath("123:secret")
	s := New(Options{WebhookPath: path, Metrics: true}, d)

	body := `{"update_id": 5, "message": {"message_id": 1, "date": 0, "chat": {"id": 7, "type": "private"}, "text": "hi"}}`
	if code := serve(t, s.Handler(), http.MethodPost, path, body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(d.updates) != 1 || d.updates[0].UpdateID != 5 || d.updates[0].Message.Text != "hi" {
		t.Fatalf("unexpected updates %+v", d.updates)
	}
	if code := serve(t, s.Handler(), http.MethodPost, path, "{not json"); code != http.StatusBadRequest {
		t.Fatalf("malformed update must be rejected, got %d", code)
	}
	if code := serve(t, s.Handler(), http.MethodPost, "/webhook/guess", body); code != http.StatusNotFound {
		t.Fatalf("unknown path must 404, got %d", code)
	}

	d.err = errors.New("stopped")
	if code := serve(t, s.Handler(), http.MethodPost, path, body); code != http.StatusServiceUnavailable {
		t.Fatalf("dispatch failure must 503, got %d", code)
	}
}

func TestWebhookChecksSecretToken(t *testing.T) {
	t.Parallel()

	const token = "123:secret"
	d := &stubDispatcher{}
	path := WebhookPath(token)
	s := New(Options{WebhookPath: path, WebhookSecret: WebhookSecret(token)}, d)
	body := `{"update_id": 6}`

	post := func(secret string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set(SecretTokenHeader, secret)
		}
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	if code := post(""); code != http.StatusUnauthorized {
		t.Fatalf("missing secret must be rejected, got %d", code)
	}
	if code := post(WebhookSecret("other")); code != http.StatusUnauthorized {
		t.Fatalf("wrong secret must be rejected, got %d", code)
	}
	if len(d.updates) != 0 {
		t.Fatalf("rejected calls must not dispatch, got %+v", d.updates)
	}
	if code := post(WebhookSecret(token)); code != http.StatusOK {
		t.Fatalf("matching secret must pass, got %d", code)
	}
	if len(d.updates) != 1 || d.updates[0].UpdateID != 6 {
		t.Fatalf("unexpected updates %+v", d.updates)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	s := New(Options{Metrics: true}, &stubDispatcher{})
	if code := serve(t, s.Handler(), http.MethodGet, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
	if code := serve(t, s.Handler(), http.MethodGet, "/metrics", ""); code != http.StatusOK {
		t.Fatalf("metrics: %d", code)
	}

	polling := New(Options{}, &stubDispatcher{})
	if code := serve(t, polling.Handler(), http.MethodGet, "/metrics", ""); code != http.StatusNotFound {
		t.Fatalf("disabled metrics must 404, got %d", code)
	}
}

func TestWebhookPathIsStable(t *testing.T) {
	t.Parallel()

	a, b := WebhookPath("token-a"), WebhookPath("token-b")
	if a != WebhookPath("token-a") || a == b {
		t.Fatalf("unexpected paths %q %q", a, b)
	}
	if strings.Contains(a, "token") || len(a) != len("/webhook/")+32 {
		t.Fatalf("path must not leak the token: %q", a)
	}
	secret := WebhookSecret("token-a")
	if len(secret) != 32 || strings.Contains(a, secret) {
		t.Fatalf("secret must be distinct from the path: %q %q", secret, a)
	}
}

func TestStartStop(t *testing.T) {
	t.Parallel()

	s := New(Options{Listen: "127.0.0.1", Port: 0}, &stubDispatcher{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}
