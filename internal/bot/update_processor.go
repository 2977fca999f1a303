package bot

import (
	"context"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	UpdateTimeout = 5 * time.Minute
)

type UpdateProcessor struct {
	updateHandlers []Handler
	now            func() time.Time
}

// NewUpdateProcessor chains the registered handlers in the order of enabled.
// Unknown names are skipped with a warning.
func NewUpdateProcessor(enabled []string, registered map[string]Handler) *UpdateProcessor {
	handlers := make([]Handler, 0, len(enabled))
	for _, name := range enabled {
		handler, ok := registered[strings.TrimSpace(name)]
		if !ok || handler == nil {
			log.Warnf("no registered handler: %s", name)
			continue
		}
		handlers = append(handlers, handler)
	}
	return &UpdateProcessor{updateHandlers: handlers, now: time.Now}
}

func (up *UpdateProcessor) Process(ctx context.Context, u *api.Update) error {
	if u == nil {
		return errors.New("update is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if updateTime, ok := UpdateTime(u); ok && up.now().Sub(updateTime) > UpdateTimeout {
		log.WithFields(log.Fields{
			"update_id": u.UpdateID,
			"age":       up.now().Sub(updateTime).String(),
		}).Debug("skipping outdated update")
		return nil
	}

	chat := u.FromChat()
	user := u.SentFrom()

	for _, handler := range up.updateHandlers {
		if err := ctx.Err(); err != nil {
			return err
		}
		proceed, err := handler.Handle(ctx, u, chat, user)
		if err != nil {
			return errors.WithMessage(err, "handling error")
		}
		if !proceed {
			log.Trace("not proceeding")
			return nil
		}
	}
	return nil
}

// UpdateTime returns the send time of message based updates.
func UpdateTime(u *api.Update) (time.Time, bool) {
	switch {
	case u.Message != nil:
		return time.Unix(int64(u.Message.Date), 0), true
	case u.EditedMessage != nil:
		return time.Unix(int64(u.EditedMessage.Date), 0), true
	default:
		return time.Time{}, false
	}
}

// GetUpdatesChans long-polls updates until ctx is done.
func GetUpdatesChans(ctx context.Context, bot *api.BotAPI, config api.UpdateConfig) (api.UpdatesChannel, chan error) {
	ch := make(chan api.Update, bot.Buffer)
	chErr := make(chan error, 1)

	go func() {
		defer close(ch)
		defer close(chErr)
		for {
			if err := ctx.Err(); err != nil {
				chErr <- err
				return
			}
			updates, err := bot.GetUpdates(config)
			if err != nil {
				chErr <- err
				return
			}
			for _, update := range updates {
				if update.UpdateID < config.Offset {
					continue
				}
				config.Offset = update.UpdateID + 1
				select {
				case ch <- update:
				case <-ctx.Done():
					chErr <- ctx.Err()
					return
				}
			}
		}
	}()

	return ch, chErr
}

func GetUN(user *api.User) string {
	if user == nil {
		return ""
	}
	if user.UserName != "" {
		return user.UserName
	}
	return GetFullName(user)
}

func GetFullName(user *api.User) string {
	if user == nil {
		return ""
	}
	fullName := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if fullName == "" {
		fullName = user.UserName
	}
	return fullName
}

// ExtractContentFromMessage returns the text or caption of the message.
func ExtractContentFromMessage(msg *api.Message) string {
	if msg == nil {
		return ""
	}
	return strings.TrimSpace(msg.Text + " " + msg.Caption)
}
