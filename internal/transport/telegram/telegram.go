// Package telegram adapts the Telegram Bot API to the dispatcher and
// membership contracts the funnel engine consumes, and feeds inbound
// updates into the engine.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/petrijr/dripline/pkg/api"
)

// videoNoteLength is the side length Telegram expects for video notes.
const videoNoteLength = 360

// Bot wraps a Telegram bot client. It implements api.Dispatcher and
// api.MembershipChecker.
type Bot struct {
	client *tgbotapi.BotAPI
}

// Ensure Bot implements the engine-facing contracts.
var _ api.Dispatcher = (*Bot)(nil)

var _ api.MembershipChecker = (*Bot)(nil)

// New authenticates against the Bot API and returns the adapter.
func New(token string) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return &Bot{client: client}, nil
}

// Username returns the authenticated bot's username.
func (b *Bot) Username() string {
	return b.client.Self.UserName
}

func (b *Bot) SendText(ctx context.Context, userID int64, text string, buttons ...api.Button) error {
	msg := tgbotapi.NewMessage(userID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = keyboard(buttons)
	}
	if _, err := b.client.Send(msg); err != nil {
		return fmt.Errorf("send text to %d: %w", userID, err)
	}
	return nil
}

func (b *Bot) SendDocument(ctx context.Context, userID int64, file string, caption string) error {
	doc := tgbotapi.NewDocument(userID, fileRef(file))
	doc.Caption = caption
	if _, err := b.client.Send(doc); err != nil {
		return fmt.Errorf("send document to %d: %w", userID, err)
	}
	return nil
}

func (b *Bot) SendMediaNote(ctx context.Context, userID int64, mediaRef string) error {
	note := tgbotapi.NewVideoNote(userID, videoNoteLength, fileRef(mediaRef))
	if _, err := b.client.Send(note); err != nil {
		return fmt.Errorf("send video note to %d: %w", userID, err)
	}
	return nil
}

// Membership reports the raw chat member status ("member", "administrator",
// "creator", "left", ...) for the (channel, user) pair.
func (b *Bot) Membership(ctx context.Context, channelID int64, userID int64) (api.MembershipStatus, error) {
	member, err := b.client.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: channelID,
			UserID: userID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("get chat member %d in %d: %w", userID, channelID, err)
	}
	return api.MembershipStatus(member.Status), nil
}

// fileRef treats http(s) strings as URLs and anything else as a Telegram
// file id.
func fileRef(ref string) tgbotapi.RequestFileData {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tgbotapi.FileURL(ref)
	}
	return tgbotapi.FileID(ref)
}

func keyboard(buttons []api.Button) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, btn := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btn.Label, encodeAction(btn.Action)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
