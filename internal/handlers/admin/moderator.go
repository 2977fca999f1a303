package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/hustlebot/internal/bot"
	"github.com/iamwavecut/hustlebot/internal/db"
	"github.com/iamwavecut/hustlebot/internal/i18n"
	"github.com/iamwavecut/hustlebot/internal/infra/reg"
	"github.com/iamwavecut/hustlebot/internal/moderation"
)

const (
	whyCommand    = "why"
	modlogCommand = "modlog"
	modlogLimit   = 10
)

type adminMessenger interface {
	Reply(ctx context.Context, chatID int64, messageID int, text string) error
	RestrictUser(ctx context.Context, userID int64, chatID int64) error
	UnrestrictUser(ctx context.Context, userID int64, chatID int64) error
	BanUser(ctx context.Context, userID int64, chatID int64) error
	UnbanUser(ctx context.Context, userID int64, chatID int64) error
}

type commandRunner interface {
	Run(ctx context.Context, actorID int64, name, args, lang string) (string, error)
}

type adminStore interface {
	GetModerationLog(ctx context.Context, subjectID int64, limit int) ([]*db.ModerationLogEntry, error)
}

type adminChecker interface {
	IsAdmin(userID int64) bool
}

// Admin serves the moderation command surface. Commands from non-admins pass through untouched.
type Admin struct {
	ops       adminMessenger
	commands  commandRunner
	admins    adminChecker
	store     adminStore
	decisions *reg.Registry
	language  func(user *api.User) string
}

func NewAdmin(s bot.Service, commands *moderation.Commands, escalation *moderation.EscalationPolicy, decisions *reg.Registry) *Admin {
	return newAdmin(s.GetOps(), commands, escalation, s.GetDB(), decisions, s.GetLanguage)
}

func newAdmin(ops adminMessenger, commands commandRunner, admins adminChecker, store adminStore, decisions *reg.Registry, language func(*api.User) string) *Admin {
	a := &Admin{
		ops:       ops,
		commands:  commands,
		admins:    admins,
		store:     store,
		decisions: decisions,
		language:  language,
	}
	log.WithField("object", "Admin").WithField("method", "newAdmin").Debug("created new admin handler")
	return a
}

func (a *Admin) getLogEntry() *log.Entry {
	return log.WithField("object", "Admin")
}

func (a *Admin) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if u.Message == nil || chat == nil || user == nil || !u.Message.IsCommand() {
		return true, nil
	}
	msg := u.Message
	name := strings.ToLower(msg.Command())
	lang := a.language(user)
	entry := a.getLogEntry().WithFields(log.Fields{"method": "Handle", "command": name, "user_id": user.ID})

	if name == whyCommand || name == modlogCommand {
		if !a.admins.IsAdmin(user.ID) {
			return true, nil
		}
		text := a.why(chat.ID, msg, lang)
		if name == modlogCommand {
			text = a.modlog(ctx, msg, lang)
		}
		a.reply(ctx, chat.ID, msg.MessageID, text)
		return false, nil
	}
	if !moderation.IsAdminCommand(name) {
		return true, nil
	}

	args := commandArgs(msg)
	text, err := a.commands.Run(ctx, user.ID, name, args, lang)
	switch {
	case errors.Is(err, moderation.ErrUnauthorized):
		entry.Debug("ignoring command from non-admin")
		return true, nil
	case errors.Is(err, moderation.ErrMalformedInput):
		entry.WithField("error", err.Error()).Debug("malformed command")
		a.reply(ctx, chat.ID, msg.MessageID, text)
		return false, nil
	case err != nil:
		return false, errors.WithMessage(err, "admin command")
	}

	entry.Info("command executed")
	if target, err := moderation.ParseUserID(args); err == nil {
		a.enforce(ctx, chat, name, target)
	}
	a.reply(ctx, chat.ID, msg.MessageID, text)
	return false, nil
}

func (a *Admin) why(chatID int64, msg *api.Message, lang string) string {
	if msg.ReplyToMessage == nil {
		return i18n.Get("Reply to a message with /why to see its moderation decision.", lang)
	}
	if a.decisions == nil {
		return i18n.Get("No moderation decision recorded for this message.", lang)
	}
	d, ok := a.decisions.Lookup(chatID, msg.ReplyToMessage.MessageID)
	if !ok {
		return i18n.Get("No moderation decision recorded for this message.", lang)
	}
	return fmt.Sprintf(
		i18n.Get("🔎 User %d: decision %s, reason %s (%s).", lang),
		d.UserID, d.Decision, d.Reason, d.At.UTC().Format("2006-01-02 15:04:05"),
	)
}

func (a *Admin) modlog(ctx context.Context, msg *api.Message, lang string) string {
	target, err := moderation.ParseUserID(commandArgs(msg))
	if err != nil {
		return fmt.Sprintf(i18n.Get("Usage: /%s <user_id> or reply to a message of the user.", lang), modlogCommand)
	}
	entries, err := a.store.GetModerationLog(ctx, target, modlogLimit)
	if err != nil {
		a.getLogEntry().WithFields(log.Fields{"method": "modlog", "error": err.Error()}).Error("failed to read moderation log")
		return fmt.Sprintf(i18n.Get("No moderation log entries for user %d.", lang), target)
	}
	if len(entries) == 0 {
		return fmt.Sprintf(i18n.Get("No moderation log entries for user %d.", lang), target)
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(i18n.Get("📜 Moderation log of user %d:", lang), target))
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("\n%s %s: %s", e.CreatedAt.UTC().Format("2006-01-02 15:04"), e.Action, e.Reason))
		if e.AdminID.Valid {
			sb.WriteString(fmt.Sprintf(" (%d)", e.AdminID.Int64))
		}
	}
	return sb.String()
}

// commandArgs falls back to the author of the replied message when no argument is given.
func commandArgs(msg *api.Message) string {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" && msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		args = strconv.FormatInt(msg.ReplyToMessage.From.ID, 10)
	}
	return args
}

// enforce applies the command to the chat itself when issued inside a group.
func (a *Admin) enforce(ctx context.Context, chat *api.Chat, name string, target int64) {
	if !(chat.IsGroup() || chat.IsSuperGroup()) {
		return
	}
	var err error
	switch name {
	case "mute":
		err = a.ops.RestrictUser(ctx, target, chat.ID)
	case "unmute":
		err = a.ops.UnrestrictUser(ctx, target, chat.ID)
	case "ban":
		err = a.ops.BanUser(ctx, target, chat.ID)
	case "unban":
		err = a.ops.UnbanUser(ctx, target, chat.ID)
	default:
		return
	}
	if err != nil {
		a.getLogEntry().WithFields(log.Fields{
			"method":  "enforce",
			"command": name,
			"target":  target,
			"error":   err.Error(),
		}).Error("failed to apply command in chat")
	}
}

func (a *Admin) reply(ctx context.Context, chatID int64, messageID int, text string) {
	if text == "" {
		return
	}
	if err := a.ops.Reply(ctx, chatID, messageID, text); err != nil {
		a.getLogEntry().WithFields(log.Fields{"method": "reply", "error": err.Error()}).Warn("failed to reply")
	}
}
