package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	api "github.com/OvyFlash/telegram-bot-api"
)

// MuteDuration bounds chat restrictions, moderators lift them earlier with /unmute.
const MuteDuration = 24 * time.Hour

// Requester is the subset of *api.BotAPI used by Operations.
type Requester interface {
	Request(c api.Chattable) (*api.APIResponse, error)
	Send(c api.Chattable) (api.Message, error)
}

// Operations wraps the Telegram calls the bot performs.
type Operations struct {
	bot Requester
}

func NewOperations(bot Requester) *Operations {
	return &Operations{bot: bot}
}

func (o *Operations) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := o.bot.Request(api.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

func (o *Operations) SendText(ctx context.Context, chatID int64, text string) error {
	_, err := o.send(ctx, chatID, text, nil)
	return err
}

func (o *Operations) SendTextWithKeyboard(ctx context.Context, chatID int64, text string, markup api.InlineKeyboardMarkup) error {
	_, err := o.send(ctx, chatID, text, &markup)
	return err
}

// Reply sends text as a reply to messageID.
func (o *Operations) Reply(ctx context.Context, chatID int64, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := api.NewMessage(chatID, text)
	msg.ReplyParameters.MessageID = messageID
	msg.ReplyParameters.AllowSendingWithoutReply = true
	msg.LinkPreviewOptions.IsDisabled = true
	if _, err := o.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to reply: %w", err)
	}
	return nil
}

func (o *Operations) send(ctx context.Context, chatID int64, text string, markup *api.InlineKeyboardMarkup) (api.Message, error) {
	if err := ctx.Err(); err != nil {
		return api.Message{}, err
	}
	msg := api.NewMessage(chatID, text)
	msg.LinkPreviewOptions.IsDisabled = true
	if markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := o.bot.Send(msg)
	if err != nil {
		return api.Message{}, fmt.Errorf("failed to send message: %w", err)
	}
	return sent, nil
}

// EditText replaces the text and keyboard of a bot message.
func (o *Operations) EditText(ctx context.Context, chatID int64, messageID int, text string, markup *api.InlineKeyboardMarkup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var edit api.EditMessageTextConfig
	if markup != nil {
		edit = api.NewEditMessageTextAndMarkup(chatID, messageID, text, *markup)
	} else {
		edit = api.NewEditMessageText(chatID, messageID, text)
	}
	edit.LinkPreviewOptions.IsDisabled = true
	if _, err := o.bot.Send(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

func (o *Operations) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := o.bot.Request(api.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func (o *Operations) BanUser(ctx context.Context, userID int64, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	config := api.BanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		RevokeMessages: true,
	}
	if _, err := o.bot.Request(config); err != nil {
		if strings.Contains(err.Error(), "not enough rights") {
			return fmt.Errorf("not enough rights to ban user")
		}
		return fmt.Errorf("failed to ban user: %w", err)
	}
	return nil
}

func (o *Operations) UnbanUser(ctx context.Context, userID int64, chatID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	config := api.UnbanChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		OnlyIfBanned: true,
	}
	if _, err := o.bot.Request(config); err != nil {
		return fmt.Errorf("failed to unban user: %w", err)
	}
	return nil
}

func (o *Operations) RestrictUser(ctx context.Context, userID int64, chatID int64) error {
	return o.restrict(ctx, userID, chatID, false, time.Now().Add(MuteDuration).Unix())
}

func (o *Operations) UnrestrictUser(ctx context.Context, userID int64, chatID int64) error {
	return o.restrict(ctx, userID, chatID, true, 0)
}

func (o *Operations) restrict(ctx context.Context, userID, chatID int64, allow bool, until int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	config := api.RestrictChatMemberConfig{
		ChatMemberConfig: api.ChatMemberConfig{
			ChatConfig: api.ChatConfig{ChatID: chatID},
			UserID:     userID,
		},
		UntilDate: until,
		Permissions: &api.ChatPermissions{
			CanSendMessages:       allow,
			CanSendAudios:         allow,
			CanSendDocuments:      allow,
			CanSendPhotos:         allow,
			CanSendVideos:         allow,
			CanSendVideoNotes:     allow,
			CanSendVoiceNotes:     allow,
			CanSendPolls:          allow,
			CanSendOtherMessages:  allow,
			CanAddWebPagePreviews: allow,
		},
	}
	if _, err := o.bot.Request(config); err != nil {
		if allow {
			return fmt.Errorf("failed to unrestrict user: %w", err)
		}
		return fmt.Errorf("failed to restrict user: %w", err)
	}
	return nil
}
