package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/hustlebot/internal/infra/reg"
	"github.com/iamwavecut/hustlebot/internal/moderation"
)

type stubMessenger struct {
	mu         sync.Mutex
	deleted    []int
	sent       []string
	keyboards  int
	markup     api.InlineKeyboardMarkup
	answered   []string
	restricted []int64
	banned     []int64
	sendErr    error
}

func (m *stubMessenger) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *stubMessenger) SendText(_ context.Context, _ int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, text)
	return m.sendErr
}

func (m *stubMessenger) SendTextWithKeyboard(_ context.Context, _ int64, text string, markup api.InlineKeyboardMarkup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keyboards++
	m.markup = markup
	m.sent = append(m.sent, text)
	return nil
}

func (m *stubMessenger) AnswerCallback(_ context.Context, callbackID, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answered = append(m.answered, callbackID)
	return nil
}

func (m *stubMessenger) RestrictUser(_ context.Context, userID int64, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restricted = append(m.restricted, userID)
	return nil
}

func (m *stubMessenger) BanUser(_ context.Context, userID int64, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.banned = append(m.banned, userID)
	return nil
}

type stubGate struct {
	out  moderation.Outcome
	seen []moderation.Event
}

func (g *stubGate) Evaluate(_ context.Context, ev moderation.Event) moderation.Outcome {
	g.seen = append(g.seen, ev)
	return g.out
}

func english(*api.User) string { return "en" }

func groupMessage(userID int64, text string) (*api.Update, *api.Chat, *api.User) {
	user := &api.User{ID: userID, FirstName: "U"}
	msg := &api.Message{
		MessageID: 42,
		From:      user,
		Chat:      api.Chat{ID: -100, Type: "supergroup"},
		Text:      text,
	}
	return &api.Update{Message: msg}, &msg.Chat, user
}

func newTestGuard(t *testing.T, out moderation.Outcome) (*Guard, *stubMessenger, *stubGate, *reg.Registry) {
	t.Helper()
	decisions, err := reg.New(16)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	ops := &stubMessenger{}
	gate := &stubGate{out: out}
	return newGuard(ops, gate, decisions, english), ops, gate, decisions
}

func TestGuardExecutesIntentsAndStopsChain(t *testing.T) {
	t.Parallel()

	out := moderation.Outcome{
		Decision: moderation.DecisionDeleteEscalate,
		Reason:   moderation.ReasonFloodMuted,
		Intents: []moderation.Intent{
			{Kind: moderation.IntentDeleteMessage, ChatID: -100, MessageID: 42},
			{Kind: moderation.IntentSendText, ChatID: -100, Text: "muted"},
		},
	}
	g, ops, gate, decisions := newTestGuard(t, out)
	u, chat, user := groupMessage(7, "spam spam")

	proceed, err := g.Handle(context.Background(), u, chat, user)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if proceed {
		t.Fatalf("blocked outcome must stop the chain")
	}
	if len(ops.deleted) != 1 || ops.deleted[0] != 42 || len(ops.sent) != 1 {
		t.Fatalf("intents not executed: %+v", ops)
	}
	if len(ops.restricted) != 1 || ops.restricted[0] != 7 {
		t.Fatalf("flood mute must restrict the user in groups, got %v", ops.restricted)
	}
	if ev := gate.seen[0]; ev.ChatID != -100 || ev.MessageID != 42 || ev.Text != "spam spam" || ev.Lang != "en" {
		t.Fatalf("unexpected event %+v", ev)
	}
	d, ok := decisions.Lookup(-100, 42)
	if !ok || d.Reason != moderation.ReasonFloodMuted || d.Decision != "delete_escalate" || d.UserID != 7 {
		t.Fatalf("decision not remembered: %+v %v", d, ok)
	}
}

func TestGuardSendsChallengeKeyboard(t *testing.T) {
	t.Parallel()

	out := moderation.Outcome{
		Decision: moderation.DecisionSuppress,
		Reason:   moderation.ReasonChallengeIssued,
		Intents: []moderation.Intent{{
			Kind:    moderation.IntentSendTextWithKeyboard,
			ChatID:  -100,
			Text:    "What is 1 + 1?",
			Buttons: [][]moderation.Button{{{Text: "2", Data: "7;abc;2"}, {Text: "3", Data: "7;abc;3"}}},
		}},
	}
	g, ops, _, _ := newTestGuard(t, out)
	u, chat, user := groupMessage(7, "hello")

	if proceed, err := g.Handle(context.Background(), u, chat, user); proceed || err != nil {
		t.Fatalf("challenged user must stop, got %v %v", proceed, err)
	}
	if ops.keyboards != 1 || len(ops.markup.InlineKeyboard) != 1 || len(ops.markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("challenge keyboard not sent: %+v", ops.markup)
	}
	if data := ops.markup.InlineKeyboard[0][1].CallbackData; data == nil || *data != "7;abc;3" {
		t.Fatalf("unexpected callback data %v", data)
	}
}

func TestGuardAllowsAndKeepsGoingOnIntentFailure(t *testing.T) {
	t.Parallel()

	out := moderation.Outcome{
		Decision: moderation.DecisionAllow,
		Reason:   moderation.ReasonSuspiciousPattern,
		Intents:  []moderation.Intent{{Kind: moderation.IntentSendText, ChatID: 7, Text: "careful"}},
	}
	g, ops, _, _ := newTestGuard(t, out)
	ops.sendErr = errors.New("forbidden")
	u, _, user := groupMessage(7, "www.example.com")
	u.Message.Chat = api.Chat{ID: 7, Type: "private"}

	proceed, err := g.Handle(context.Background(), u, &u.Message.Chat, user)
	if err != nil || !proceed {
		t.Fatalf("allowed outcome must proceed, got %v %v", proceed, err)
	}
	if len(ops.restricted) != 0 || len(ops.banned) != 0 {
		t.Fatalf("private chats get no restrictions: %+v", ops)
	}
}

func TestGuardAnswersBlockedCallbacks(t *testing.T) {
	t.Parallel()

	g, ops, gate, _ := newTestGuard(t, moderation.Outcome{Decision: moderation.DecisionSuppress, Reason: moderation.ReasonMuted})
	user := &api.User{ID: 9}
	u := &api.Update{CallbackQuery: &api.CallbackQuery{
		ID:      "cb-1",
		From:    user,
		Data:    "check_points",
		Message: &api.Message{MessageID: 5, Chat: api.Chat{ID: 9, Type: "private"}},
	}}

	proceed, err := g.Handle(context.Background(), u, &u.CallbackQuery.Message.Chat, user)
	if err != nil || proceed {
		t.Fatalf("blocked callback must stop, got %v %v", proceed, err)
	}
	if len(ops.answered) != 1 || ops.answered[0] != "cb-1" {
		t.Fatalf("callback must be answered, got %v", ops.answered)
	}
	if ev := gate.seen[0]; !ev.IsCallback || ev.Text != "check_points" || ev.MessageID != 0 {
		t.Fatalf("unexpected callback event %+v", ev)
	}
}

func TestGuardSkipsBotsAndServiceMessages(t *testing.T) {
	t.Parallel()

	g, _, gate, _ := newTestGuard(t, moderation.Outcome{Decision: moderation.DecisionSuppress})

	u, chat, user := groupMessage(3, "")
	u.Message.NewChatMembers = []api.User{{ID: 3}}
	if proceed, _ := g.Handle(context.Background(), u, chat, user); !proceed {
		t.Fatalf("service messages pass through")
	}
	bot := &api.User{ID: 4, IsBot: true}
	if proceed, _ := g.Handle(context.Background(), u, chat, bot); !proceed {
		t.Fatalf("bots pass through")
	}
	if len(gate.seen) != 0 {
		t.Fatalf("gate must not be consulted, saw %v", gate.seen)
	}
}

func TestKeyboard(t *testing.T) {
	t.Parallel()

	markup := Keyboard([][]moderation.Button{{{Text: "a", Data: "x"}, {Text: "b", Data: "y"}}, {{Text: "c", Data: "z"}}})
	if len(markup.InlineKeyboard) != 2 || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("unexpected layout %+v", markup.InlineKeyboard)
	}
	if data := markup.InlineKeyboard[1][0].CallbackData; data == nil || *data != "z" {
		t.Fatalf("unexpected callback data %v", data)
	}
}
