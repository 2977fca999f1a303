package bot

import (
	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/hustlebot/internal/db"
	"github.com/iamwavecut/hustlebot/internal/i18n"
	"github.com/iamwavecut/hustlebot/internal/infrastructure/telegram"
)

type service struct {
	bot *api.BotAPI
	ops *telegram.Operations
	db  db.Client
}

func NewService(bot *api.BotAPI, db db.Client) *service {
	return &service{
		bot: bot,
		ops: telegram.NewOperations(bot),
		db:  db,
	}
}

func (s *service) GetBot() *api.BotAPI {
	return s.bot
}

func (s *service) GetOps() *telegram.Operations {
	return s.ops
}

func (s *service) GetDB() db.Client {
	return s.db
}

// GetLanguage resolves the user's client language to a supported one.
func (s *service) GetLanguage(user *api.User) string {
	if user == nil {
		return i18n.GetDefaultLanguage()
	}
	return i18n.Resolve(user.LanguageCode)
}
