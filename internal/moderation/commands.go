package moderation

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/hustlebot/internal/i18n"
)

// AdminCommands lists the command names handled by Commands.Run.
var AdminCommands = []string{
	"addadmin", "removeadmin", "mute", "unmute", "ban", "unban", "warn", "modstats", "verify",
}

// Commands executes admin moderation commands against the shared state.
type Commands struct {
	escalation   *EscalationPolicy
	verification *VerificationManager
	journal      *Journal
	notifier     Notifier
}

func NewCommands(escalation *EscalationPolicy, verification *VerificationManager, journal *Journal, notifier Notifier) *Commands {
	return &Commands{escalation: escalation, verification: verification, journal: journal, notifier: notifier}
}

func IsAdminCommand(name string) bool {
	return tool.In(strings.ToLower(name), AdminCommands...)
}

// Run executes the command on behalf of actorID and returns the reply text.
// Non-admin actors get ErrUnauthorized and no reply; bad arguments get ErrMalformedInput
// together with a usage reply.
func (c *Commands) Run(ctx context.Context, actorID int64, name, args, lang string) (string, error) {
	name = strings.ToLower(name)
	if !IsAdminCommand(name) {
		return "", fmt.Errorf("%w: unknown command %q", ErrMalformedInput, name)
	}
	if !c.escalation.IsAdmin(actorID) {
		return "", ErrUnauthorized
	}

	if name == "modstats" {
		return c.stats(lang), nil
	}

	target, err := ParseUserID(args)
	if err != nil {
		return fmt.Sprintf(i18n.Get("Usage: /%s <user_id> or reply to a message of the user.", lang), name), err
	}

	switch name {
	case "addadmin":
		c.escalation.AddAdmin(target)
		_ = c.journal.Record(ctx, target, ActionAddAdmin, "admin command", actorID)
		return fmt.Sprintf(i18n.Get("✅ User %d is now an admin.", lang), target), nil
	case "removeadmin":
		if target == actorID {
			return i18n.Get("You cannot remove yourself from admins.", lang), nil
		}
		c.escalation.RemoveAdmin(target)
		_ = c.journal.Record(ctx, target, ActionRemoveAdmin, "admin command", actorID)
		return fmt.Sprintf(i18n.Get("✅ User %d is no longer an admin.", lang), target), nil
	case "mute":
		c.escalation.Mute(target)
		_ = c.journal.Record(ctx, target, ActionMute, "admin command", actorID)
		return fmt.Sprintf(i18n.Get("🔇 User %d muted.", lang), target), nil
	case "unmute":
		c.escalation.Unmute(target)
		c.escalation.ResetWarnings(target)
		_ = c.journal.Record(ctx, target, ActionUnmute, "admin command", actorID)
		return fmt.Sprintf(i18n.Get("🔊 User %d unmuted.", lang), target), nil
	case "ban":
		c.escalation.Ban(target)
		_ = c.journal.Record(ctx, target, ActionBan, "admin command", actorID)
		return fmt.Sprintf(i18n.Get("⛔ User %d banned.", lang), target), nil
	case "unban":
		c.escalation.Unban(target)
		_ = c.journal.Record(ctx, target, ActionUnban, "admin command", actorID)
		return fmt.Sprintf(i18n.Get("✅ User %d unbanned.", lang), target), nil
	case "warn":
		return c.warn(ctx, actorID, target, lang), nil
	case "verify":
		if err := c.verification.Verify(ctx, target); err != nil {
			log.WithFields(log.Fields{"method": "Run", "user_id": target, "error": err.Error()}).Warn("persist verified flag failed")
		}
		_ = c.journal.Record(ctx, target, ActionVerify, "admin command", actorID)
		return fmt.Sprintf(i18n.Get("✅ User %d verified.", lang), target), nil
	}
	return "", nil
}

func (c *Commands) warn(ctx context.Context, actorID, target int64, lang string) string {
	count := c.escalation.AddWarning(target)
	_ = c.journal.Record(ctx, target, ActionWarn, "admin command", actorID)
	if !c.escalation.ReachesMuteThreshold(count) {
		return fmt.Sprintf(i18n.Get("⚠️ User %d warned (%d/%d).", lang), target, count, c.escalation.MuteThreshold())
	}
	c.escalation.Mute(target)
	_ = c.journal.Record(ctx, target, ActionMute, "warning threshold", actorID)
	if c.notifier != nil {
		c.notifier.Notify(fmt.Sprintf(i18n.Get("🔇 User %d muted after %d warnings.", lang), target, count))
	}
	return fmt.Sprintf(i18n.Get("🔇 User %d warned (%d/%d) and muted.", lang), target, count, c.escalation.MuteThreshold())
}

func (c *Commands) stats(lang string) string {
	st := c.escalation.Stats()
	return tool.ExecTemplate(i18n.Get(
		"📊 Moderation stats\nAdmins: {{.admins}}\nVerified: {{.verified}}\nPending verification: {{.pending}}\nWarned: {{.warned}}\nMuted: {{.muted}}\nBanned: {{.banned}}",
		lang,
	), map[string]any{
		"admins":   st.Admins,
		"verified": st.Verified,
		"pending":  st.Pending,
		"warned":   st.Warned,
		"muted":    st.Muted,
		"banned":   st.Banned,
	})
}

// ParseUserID parses a single numeric user id argument.
func ParseUserID(args string) (int64, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: missing user id", ErrMalformedInput)
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: user id %q is not a number", ErrMalformedInput, fields[0])
	}
	return id, nil
}
