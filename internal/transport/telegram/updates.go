package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/petrijr/dripline/pkg/api"
)

const pollTimeoutSeconds = 30

// Run consumes updates from long polling and feeds them into the engine
// until the context is cancelled. /start commands become HandleStart calls;
// inline button presses become HandleAction calls. Everything else is
// ignored.
//
// The source labels users created by this loop; a /start deep-link payload
// overrides it per user.
func (b *Bot) Run(ctx context.Context, engine api.Engine, source string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds
	updates := b.client.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, engine, source, logger, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, engine api.Engine, source string, logger *slog.Logger, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand():
		if update.Message.Command() != "start" {
			return
		}
		msg := update.Message
		if msg.From == nil {
			return
		}
		userSource := source
		if payload := msg.CommandArguments(); payload != "" {
			userSource = payload
		}
		if err := engine.HandleStart(ctx, msg.Chat.ID, msg.From.UserName, userSource); err != nil {
			logger.ErrorContext(ctx, "start_failed",
				slog.Int64("user_id", msg.Chat.ID), slog.Any("error", err))
		}

	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		// Acknowledge first so the button stops spinning even when the
		// action turns out to be stale.
		if _, err := b.client.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			logger.WarnContext(ctx, "callback_ack_failed",
				slog.String("callback_id", cb.ID), slog.Any("error", err))
		}
		action, err := decodeAction(cb.Data)
		if err != nil {
			logger.WarnContext(ctx, "callback_data_invalid",
				slog.String("data", cb.Data), slog.Any("error", err))
			return
		}
		if err := engine.HandleAction(ctx, cb.From.ID, action); err != nil {
			logger.ErrorContext(ctx, "action_failed",
				slog.Int64("user_id", cb.From.ID),
				slog.String("action", action.String()), slog.Any("error", err))
		}
	}
}

// encodeAction renders an action as callback data. The format matches
// Action.String: a bare type, or "quiz_answer:<question>:<answer>".
func encodeAction(a api.Action) string {
	return a.String()
}

func decodeAction(data string) (api.Action, error) {
	parts := strings.Split(data, ":")
	switch api.ActionType(parts[0]) {
	case api.ActionGetMaterial, api.ActionStartQuiz, api.ActionFinishQuiz:
		if len(parts) != 1 {
			return api.Action{}, fmt.Errorf("unexpected arguments in %q", data)
		}
		return api.Action{Type: api.ActionType(parts[0])}, nil

	case api.ActionQuizAnswer:
		if len(parts) != 3 {
			return api.Action{}, fmt.Errorf("quiz answer %q needs question and answer", data)
		}
		question, err := strconv.Atoi(parts[1])
		if err != nil {
			return api.Action{}, fmt.Errorf("bad question index in %q: %w", data, err)
		}
		answer, err := strconv.ParseBool(parts[2])
		if err != nil {
			return api.Action{}, fmt.Errorf("bad answer in %q: %w", data, err)
		}
		return api.Action{Type: api.ActionQuizAnswer, Question: question, Answer: answer}, nil

	default:
		return api.Action{}, fmt.Errorf("unknown action %q", data)
	}
}
