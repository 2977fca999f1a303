package handlers

import (
	"context"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/hustlebot/internal/bot"
	"github.com/iamwavecut/hustlebot/internal/infra/reg"
	"github.com/iamwavecut/hustlebot/internal/moderation"
)

type guardMessenger interface {
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	SendText(ctx context.Context, chatID int64, text string) error
	SendTextWithKeyboard(ctx context.Context, chatID int64, text string, markup api.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	RestrictUser(ctx context.Context, userID int64, chatID int64) error
	BanUser(ctx context.Context, userID int64, chatID int64) error
}

type evaluator interface {
	Evaluate(ctx context.Context, ev moderation.Event) moderation.Outcome
}

// Guard runs every user update through the moderation gate and executes the resulting intents.
type Guard struct {
	ops       guardMessenger
	gate      evaluator
	decisions *reg.Registry
	language  func(user *api.User) string
	now       func() time.Time
}

func NewGuard(s bot.Service, gate evaluator, decisions *reg.Registry) *Guard {
	return newGuard(s.GetOps(), gate, decisions, s.GetLanguage)
}

func newGuard(ops guardMessenger, gate evaluator, decisions *reg.Registry, language func(*api.User) string) *Guard {
	g := &Guard{
		ops:       ops,
		gate:      gate,
		decisions: decisions,
		language:  language,
		now:       time.Now,
	}
	g.getLogEntry().Debug("created new guard")
	return g
}

func (g *Guard) getLogEntry() *log.Entry {
	return log.WithField("object", "Guard")
}

func (g *Guard) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if user == nil || user.IsBot {
		return true, nil
	}

	ev, ok := g.event(u, user)
	if !ok {
		return true, nil
	}

	out := g.gate.Evaluate(ctx, ev)
	if g.decisions != nil {
		g.decisions.Remember(ev.ChatID, ev.MessageID, reg.Decision{
			UserID:   ev.UserID,
			Decision: out.Decision.String(),
			Reason:   out.Reason,
			At:       g.now(),
		})
	}

	g.execute(ctx, out.Intents)
	g.enforce(ctx, chat, ev.UserID, out.Reason)

	if ev.IsCallback && out.Blocked() {
		if err := g.ops.AnswerCallback(ctx, u.CallbackQuery.ID, ""); err != nil {
			g.getLogEntry().WithFields(log.Fields{"method": "Handle", "error": err.Error()}).Warn("failed to answer callback")
		}
	}
	return !out.Blocked(), nil
}

func (g *Guard) event(u *api.Update, user *api.User) (moderation.Event, bool) {
	ev := moderation.Event{UserID: user.ID, Lang: g.language(user)}

	switch {
	case u.CallbackQuery != nil:
		ev.IsCallback = true
		ev.Text = u.CallbackQuery.Data
		ev.ChatID = user.ID
		if u.CallbackQuery.Message != nil {
			ev.ChatID = u.CallbackQuery.Message.Chat.ID
		}
	case u.Message != nil:
		msg := u.Message
		if len(msg.NewChatMembers) > 0 || msg.LeftChatMember != nil {
			return ev, false
		}
		ev.ChatID = msg.Chat.ID
		ev.MessageID = msg.MessageID
		ev.Text = bot.ExtractContentFromMessage(msg)
		ev.IsCommand = msg.IsCommand()
		ev.HasPhoto = len(msg.Photo) > 0
	default:
		return ev, false
	}
	return ev, true
}

// execute applies intents in order; a failed intent is logged and the rest still run.
func (g *Guard) execute(ctx context.Context, intents []moderation.Intent) {
	entry := g.getLogEntry().WithField("method", "execute")
	for _, intent := range intents {
		var err error
		switch intent.Kind {
		case moderation.IntentDeleteMessage:
			err = g.ops.DeleteMessage(ctx, intent.ChatID, intent.MessageID)
		case moderation.IntentSendText:
			err = g.ops.SendText(ctx, intent.ChatID, intent.Text)
		case moderation.IntentSendTextWithKeyboard:
			err = g.ops.SendTextWithKeyboard(ctx, intent.ChatID, intent.Text, Keyboard(intent.Buttons))
		}
		if err != nil {
			entry.WithFields(log.Fields{
				"chat_id": intent.ChatID,
				"kind":    intent.Kind,
				"error":   err.Error(),
			}).Warn("intent failed")
		}
	}
}

// enforce mirrors mutes and bans as chat restrictions when the event came from a group.
func (g *Guard) enforce(ctx context.Context, chat *api.Chat, userID int64, reason string) {
	if chat == nil || !(chat.IsGroup() || chat.IsSuperGroup()) {
		return
	}
	var err error
	switch reason {
	case moderation.ReasonFloodMuted:
		err = g.ops.RestrictUser(ctx, userID, chat.ID)
	case moderation.ReasonChallengeFailed:
		err = g.ops.BanUser(ctx, userID, chat.ID)
	default:
		return
	}
	if err != nil {
		g.getLogEntry().WithFields(log.Fields{
			"method":  "enforce",
			"chat_id": chat.ID,
			"user_id": userID,
			"error":   err.Error(),
		}).Error("failed to enforce decision in chat")
	}
}

func Keyboard(rows [][]moderation.Button) api.InlineKeyboardMarkup {
	keyboard := make([][]api.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]api.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, api.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		keyboard = append(keyboard, api.NewInlineKeyboardRow(buttons...))
	}
	return api.NewInlineKeyboardMarkup(keyboard...)
}
