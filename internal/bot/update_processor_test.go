package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

type recordingHandler struct {
	name    string
	proceed bool
	err     error
	mu      *sync.Mutex
	calls   *[]string
}

func (h recordingHandler) Handle(_ context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	h.mu.Lock()
	*h.calls = append(*h.calls, h.name)
	h.mu.Unlock()
	return h.proceed, h.err
}

func textUpdate(userID int64, sent time.Time) *api.Update {
	return &api.Update{
		UpdateID: 1,
		Message: &api.Message{
			MessageID: 1,
			From:      &api.User{ID: userID, FirstName: "U"},
			Chat:      api.Chat{ID: userID, Type: "private"},
			Date:      int(sent.Unix()),
			Text:      "hello",
		},
	}
}

func TestProcessRunsHandlersInConfiguredOrder(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []string
	)
	registered := map[string]Handler{
		"admin":  recordingHandler{name: "admin", proceed: true, mu: &mu, calls: &calls},
		"guard":  recordingHandler{name: "guard", proceed: false, mu: &mu, calls: &calls},
		"ledger": recordingHandler{name: "ledger", proceed: true, mu: &mu, calls: &calls},
	}
	up := NewUpdateProcessor([]string{"admin", "missing", "guard", "ledger"}, registered)

	if err := up.Process(context.Background(), textUpdate(1, time.Now())); err != nil {
		t.Fatalf("process: %v", err)
	}
	if strings.Join(calls, ",") != "admin,guard" {
		t.Fatalf("expected chain to stop after guard, got %v", calls)
	}
}

func TestProcessSkipsOutdatedUpdates(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []string
	)
	up := NewUpdateProcessor([]string{"guard"}, map[string]Handler{
		"guard": recordingHandler{name: "guard", proceed: true, mu: &mu, calls: &calls},
	})
	if err := up.Process(context.Background(), textUpdate(1, time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("outdated update must be skipped, got %v", calls)
	}
}

func TestProcessWrapsHandlerErrors(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		calls []string
	)
	cause := errors.New("telegram is down")
	up := NewUpdateProcessor([]string{"guard"}, map[string]Handler{
		"guard": recordingHandler{name: "guard", err: cause, mu: &mu, calls: &calls},
	})
	err := up.Process(context.Background(), textUpdate(1, time.Now()))
	if !errors.Is(err, cause) || !strings.Contains(err.Error(), "handling error") {
		t.Fatalf("expected wrapped handler error, got %v", err)
	}
	if up.Process(context.Background(), nil) == nil {
		t.Fatalf("nil update must fail")
	}
}

func TestNames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		user     *api.User
		un, full string
	}{
		{nil, "", ""},
		{&api.User{UserName: "hustler", FirstName: "Jo", LastName: "Doe"}, "hustler", "Jo Doe"},
		{&api.User{FirstName: "Jo"}, "Jo", "Jo"},
		{&api.User{UserName: "only"}, "only", "only"},
	}
	for _, tt := range tests {
		if got := GetUN(tt.user); got != tt.un {
			t.Fatalf("GetUN(%+v) = %q, want %q", tt.user, got, tt.un)
		}
		if got := GetFullName(tt.user); got != tt.full {
			t.Fatalf("GetFullName(%+v) = %q, want %q", tt.user, got, tt.full)
		}
	}
}

func TestExtractContentFromMessage(t *testing.T) {
	t.Parallel()

	if got := ExtractContentFromMessage(&api.Message{Caption: " my meme "}); got != "my meme" {
		t.Fatalf("unexpected content %q", got)
	}
	if got := ExtractContentFromMessage(nil); got != "" {
		t.Fatalf("nil message must be empty, got %q", got)
	}
}
