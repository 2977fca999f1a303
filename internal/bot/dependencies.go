package bot

import (
	"context"

	api "github.com/OvyFlash/telegram-bot-api"

	"github.com/iamwavecut/hustlebot/internal/db"
	"github.com/iamwavecut/hustlebot/internal/infrastructure/telegram"
)

type ServiceBot interface {
	GetBot() *api.BotAPI
	GetOps() *telegram.Operations
}

type ServiceDB interface {
	GetDB() db.Client
}

type Service interface {
	ServiceBot
	ServiceDB
	GetLanguage(user *api.User) string
}

// Handler processes an update, returning proceed=false stops the chain.
type Handler interface {
	Handle(ctx context.Context, u *api.Update, chat *api.Chat, user *api.User) (proceed bool, err error)
}
