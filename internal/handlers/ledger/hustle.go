package handlers

import (
	"context"
	"fmt"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/hustlebot/internal/bot"
	"github.com/iamwavecut/hustlebot/internal/db"
	"github.com/iamwavecut/hustlebot/internal/i18n"
	"github.com/iamwavecut/hustlebot/internal/ledger"
)

const (
	callbackCheckPoints = "check_points"
	callbackLeaderboard = "leaderboard"
	callbackDailyTasks  = "daily_tasks"
	callbackTaskPrefix  = "task_"

	callbackLeaderboardSize = 5
)

var (
	medals     = []string{"🥇", "🥈", "🥉"}
	taskLabels = map[string]string{
		"goal":     "🎯 Goal",
		"workout":  "💪 Workout",
		"learning": "📚 Learning",
		"quote":    "🧠 Quote",
		"business": "💼 Business",
	}
)

type hustleMessenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendTextWithKeyboard(ctx context.Context, chatID int64, text string, markup api.InlineKeyboardMarkup) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, markup *api.InlineKeyboardMarkup) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type pointsLedger interface {
	Register(ctx context.Context, userID int64, userName, firstName string) (*db.User, error)
	Stats(ctx context.Context, userID int64) (*db.User, error)
	Leaderboard(ctx context.Context, limit int) ([]*db.User, error)
	CompleteTask(ctx context.Context, userID int64, task string) (int, bool, error)
	SubmitMeme(ctx context.Context, userID int64, fileID, caption string) (int, error)
}

// Hustle serves the points economy. It only sees updates the moderation guard let through.
type Hustle struct {
	ops      hustleMessenger
	ledger   pointsLedger
	language func(user *api.User) string
}

func NewHustle(s bot.Service) *Hustle {
	return newHustle(s.GetOps(), ledger.New(s.GetDB()), s.GetLanguage)
}

func newHustle(ops hustleMessenger, l pointsLedger, language func(*api.User) string) *Hustle {
	return &Hustle{ops: ops, ledger: l, language: language}
}

func (h *Hustle) getLogEntry() *log.Entry {
	return log.WithField("object", "Hustle")
}

func (h *Hustle) Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if user == nil || user.IsBot {
		return true, nil
	}

	switch {
	case u.CallbackQuery != nil:
		if err := h.handleCallback(ctx, u.CallbackQuery, user); err != nil {
			return false, errors.WithMessage(err, "ledger callback")
		}
		return false, nil
	case u.Message != nil && chat != nil:
		handled, err := h.handleMessage(ctx, u.Message, chat, user)
		if err != nil {
			return false, errors.WithMessage(err, "ledger message")
		}
		return !handled, nil
	}
	return true, nil
}

func (h *Hustle) handleMessage(ctx context.Context, msg *api.Message, chat *api.Chat, user *api.User) (bool, error) {
	lang := h.language(user)

	if !msg.IsCommand() {
		if len(msg.Photo) == 0 {
			return false, nil
		}
		return true, h.submitMeme(ctx, msg, chat.ID, user, lang)
	}

	command := strings.ToLower(msg.Command())
	switch command {
	case "start", "help", "points", "leaderboard", "daily", "submit_meme":
	default:
		return false, nil
	}
	if _, err := h.ledger.Register(ctx, user.ID, user.UserName, user.FirstName); err != nil {
		return true, err
	}

	switch command {
	case "start":
		text := fmt.Sprintf(i18n.Get("🚀 Welcome to HustleBot, %s!\n\n💪 Your journey to success starts here!\n\n🔥 Available commands:\n/points - Check your hustle points\n/leaderboard - See top hustlers\n/daily - Complete daily tasks\n/submit_meme - Submit a meme for points\n/help - Show all commands\n\nLet's start hustling! 💯", lang), bot.GetFullName(user))
		return true, h.ops.SendTextWithKeyboard(ctx, chat.ID, text, api.NewInlineKeyboardMarkup(
			api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("💎 Check Points", lang), callbackCheckPoints)),
			api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("🏆 Leaderboard", lang), callbackLeaderboard)),
			api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("📋 Daily Tasks", lang), callbackDailyTasks)),
		))
	case "help":
		return true, h.ops.SendText(ctx, chat.ID, fmt.Sprintf(i18n.Get("🤖 HustleBot commands:\n\n🎯 Basic commands:\n/start - Start your hustle journey\n/points - Check your hustle points\n/leaderboard - Top 10 hustlers\n/daily - View daily tasks\n/submit_meme - Submit a meme for points\n\n💡 How to earn points:\n• Complete daily tasks (+%d-%d points)\n• Submit memes (+%d points)\n• Keep your daily streak\n\n🔥 Keep hustling every day to climb the leaderboard!", lang), ledger.TaskPoints("quote"), ledger.TaskPoints("business"), ledger.MemePoints))
	case "points":
		return true, h.ops.SendText(ctx, chat.ID, h.statsText(ctx, user.ID, lang))
	case "leaderboard":
		text, err := h.leaderboardText(ctx, lang)
		if err != nil {
			return true, err
		}
		return true, h.ops.SendTextWithKeyboard(ctx, chat.ID, text, api.NewInlineKeyboardMarkup(
			api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("💎 My Points", lang), callbackCheckPoints)),
			api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("📋 Daily Tasks", lang), callbackDailyTasks)),
		))
	case "daily":
		return true, h.ops.SendTextWithKeyboard(ctx, chat.ID, h.tasksText(lang), h.tasksKeyboard(lang))
	case "submit_meme":
		return true, h.ops.SendText(ctx, chat.ID, fmt.Sprintf(i18n.Get("🎭 Meme submission\n\n📸 Send me a photo to submit a meme!\n✨ Add a caption to make it funnier\n🏆 Earn %d hustle points per meme\n\nJust send your meme now! 📱", lang), ledger.MemePoints))
	}
	return false, nil
}

func (h *Hustle) submitMeme(ctx context.Context, msg *api.Message, chatID int64, user *api.User, lang string) error {
	if _, err := h.ledger.Register(ctx, user.ID, user.UserName, user.FirstName); err != nil {
		return err
	}
	photo := msg.Photo[len(msg.Photo)-1]
	points, err := h.ledger.SubmitMeme(ctx, user.ID, photo.FileID, msg.Caption)
	if err != nil {
		return err
	}
	h.getLogEntry().WithFields(log.Fields{"method": "submitMeme", "user_id": user.ID}).Debug("meme submitted")
	return h.ops.SendTextWithKeyboard(ctx, chatID, fmt.Sprintf(i18n.Get("🎉 Meme submitted!\n\n+%d hustle points earned! 💎\nYour meme has been added to the collection!\n\nKeep the memes coming! 🔥", lang), points), api.NewInlineKeyboardMarkup(
		api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("💎 Check Points", lang), callbackCheckPoints)),
		api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(i18n.Get("🏆 Leaderboard", lang), callbackLeaderboard)),
	))
}

func (h *Hustle) handleCallback(ctx context.Context, cq *api.CallbackQuery, user *api.User) error {
	entry := h.getLogEntry().WithFields(log.Fields{"method": "handleCallback", "data": cq.Data})
	if err := h.ops.AnswerCallback(ctx, cq.ID, ""); err != nil {
		entry.WithField("error", err.Error()).Warn("failed to answer callback")
	}
	if cq.Message == nil {
		return nil
	}
	chatID, messageID := cq.Message.Chat.ID, cq.Message.MessageID
	lang := h.language(user)

	if _, err := h.ledger.Register(ctx, user.ID, user.UserName, user.FirstName); err != nil {
		return err
	}

	switch {
	case cq.Data == callbackCheckPoints:
		text := i18n.Get("❌ Error fetching your stats. Try again!", lang)
		if stats, err := h.ledger.Stats(ctx, user.ID); err == nil {
			text = fmt.Sprintf(i18n.Get("💎 Hustle Points: %d\n⚡ Daily Streak: %d days", lang), stats.HustlePoints, stats.DailyStreak)
		}
		return h.ops.EditText(ctx, chatID, messageID, text, nil)
	case cq.Data == callbackLeaderboard:
		users, err := h.ledger.Leaderboard(ctx, callbackLeaderboardSize)
		if err != nil {
			return err
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf(i18n.Get("🏆 Top %d hustlers:", lang), callbackLeaderboardSize))
		sb.WriteString("\n\n")
		for i, u := range users {
			sb.WriteString(fmt.Sprintf(i18n.Get("%d. %s: %d points", lang), i+1, u.DisplayName(), u.HustlePoints))
			sb.WriteString("\n")
		}
		return h.ops.EditText(ctx, chatID, messageID, sb.String(), nil)
	case cq.Data == callbackDailyTasks:
		markup := h.tasksKeyboard(lang)
		return h.ops.EditText(ctx, chatID, messageID, i18n.Get("📋 Click task buttons to complete them!", lang), &markup)
	case strings.HasPrefix(cq.Data, callbackTaskPrefix):
		task := strings.TrimPrefix(cq.Data, callbackTaskPrefix)
		points, done, err := h.ledger.CompleteTask(ctx, user.ID, task)
		if err != nil {
			return err
		}
		text := i18n.Get("⚠️ You already completed this task today!", lang)
		if done {
			text = fmt.Sprintf(i18n.Get("✅ Task completed! +%d points earned!", lang), points)
		}
		return h.ops.EditText(ctx, chatID, messageID, text, nil)
	}
	entry.Debug("unknown callback")
	return nil
}

func (h *Hustle) statsText(ctx context.Context, userID int64, lang string) string {
	stats, err := h.ledger.Stats(ctx, userID)
	if err != nil {
		h.getLogEntry().WithFields(log.Fields{"method": "statsText", "error": err.Error()}).Warn("failed to fetch stats")
		return i18n.Get("❌ Error fetching your stats. Try again!", lang)
	}
	lastActivity := stats.LastActivity
	if lastActivity == "" {
		lastActivity = "-"
	}
	return fmt.Sprintf(
		i18n.Get("💎 Your hustle stats:\n\n🔥 Hustle Points: %d\n⚡ Daily Streak: %d days\n📅 Last Activity: %s\n🗓️ Joined: %s\n\nKeep grinding! 💪", lang),
		stats.HustlePoints, stats.DailyStreak, lastActivity, stats.JoinDate.Format(db.DayLayout),
	)
}

func (h *Hustle) leaderboardText(ctx context.Context, lang string) (string, error) {
	users, err := h.ledger.Leaderboard(ctx, ledger.LeaderboardSize)
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return i18n.Get("🏆 No hustlers yet! Be the first!", lang), nil
	}
	var sb strings.Builder
	sb.WriteString(i18n.Get("🏆 TOP HUSTLERS LEADERBOARD 🏆", lang))
	sb.WriteString("\n\n")
	for i, u := range users {
		place := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			place = medals[i]
		}
		sb.WriteString(fmt.Sprintf(i18n.Get("%s %s: %d points (🔥%d streak)", lang), place, u.DisplayName(), u.HustlePoints, u.DailyStreak))
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func (h *Hustle) tasksText(lang string) string {
	var sb strings.Builder
	sb.WriteString(i18n.Get("📋 Daily hustle tasks\n\nComplete these tasks to earn points:", lang))
	sb.WriteString("\n\n")
	for _, task := range ledger.Tasks {
		sb.WriteString(fmt.Sprintf("%s (+%d)\n", i18n.Get(taskLabels[task], lang), ledger.TaskPoints(task)))
	}
	sb.WriteString("\n")
	sb.WriteString(i18n.Get("Click buttons below to complete tasks!", lang))
	return sb.String()
}

func (h *Hustle) tasksKeyboard(lang string) api.InlineKeyboardMarkup {
	rows := make([][]api.InlineKeyboardButton, 0, len(ledger.Tasks))
	for _, task := range ledger.Tasks {
		label := fmt.Sprintf("%s (+%d)", i18n.Get(taskLabels[task], lang), ledger.TaskPoints(task))
		rows = append(rows, api.NewInlineKeyboardRow(api.NewInlineKeyboardButtonData(label, callbackTaskPrefix+task)))
	}
	return api.NewInlineKeyboardMarkup(rows...)
}
