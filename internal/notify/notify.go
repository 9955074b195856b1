// Package notify delivers short text messages to users' chats.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/0xayot/davids-sling/internal/batch"
	"github.com/0xayot/davids-sling/internal/domain"
)

// Notifier sends msg to one chat.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, msg string) error
}

// broadcastConcurrency bounds in-flight sends during a broadcast.
const broadcastConcurrency = 8

// NotifyUser sends msg to user's chat. Users without a numeric chat id are an error.
func NotifyUser(ctx context.Context, n Notifier, user domain.User, msg string) error {
	chatID, err := strconv.ParseInt(user.TelegramID, 10, 64)
	if err != nil {
		return fmt.Errorf("notify: user %d: invalid chat id %q", user.ID, user.TelegramID)
	}
	return n.Notify(ctx, chatID, msg)
}

// Broadcast sends msg to every user concurrently. Users with an invalid chat
// id are skipped, send failures are logged and reported.
func Broadcast(ctx context.Context, n Notifier, users []*domain.User, msg string) batch.Report {
	rep := batch.Run(ctx, users, broadcastConcurrency,
		func(u *domain.User) string { return strconv.FormatInt(u.ID, 10) },
		func(ctx context.Context, u *domain.User) error {
			if _, err := strconv.ParseInt(u.TelegramID, 10, 64); err != nil {
				return batch.Skip("invalid chat id")
			}
			if err := NotifyUser(ctx, n, *u, msg); err != nil {
				log.Warn().Err(err).Int64("user_id", u.ID).Msg("notify: broadcast send failed")
				return err
			}
			return nil
		})
	log.Info().
		Int("users", rep.Total).
		Int("sent", rep.Succeeded).
		Int("failed", rep.Failed).
		Int("skipped", rep.Skipped).
		Msg("notify: broadcast finished")
	return rep
}

// ---------------------------------------------------------------------------
// Telegram
// ---------------------------------------------------------------------------

// Telegram sends messages through the Bot API.
type Telegram struct {
	api *tgbotapi.BotAPI
}

var _ Notifier = (*Telegram)(nil)

// NewTelegram connects to the public Bot API with token.
func NewTelegram(token string) (*Telegram, error) {
	return NewTelegramWithEndpoint(token, tgbotapi.APIEndpoint, &http.Client{})
}

// NewTelegramWithEndpoint connects to a Bot API at endpoint, a format string
// taking the token and the method name.
func NewTelegramWithEndpoint(token, endpoint string, client *http.Client) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("notify: telegram: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("notify: telegram bot connected")
	return &Telegram{api: api}, nil
}

// Notify sends a plain text message.
func (t *Telegram) Notify(_ context.Context, chatID int64, msg string) error {
	if _, err := t.api.Send(tgbotapi.NewMessage(chatID, msg)); err != nil {
		return fmt.Errorf("notify: telegram chat %d: %w", chatID, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Log
// ---------------------------------------------------------------------------

// Log writes messages to the process log instead of a chat. Used when no bot
// token is configured.
type Log struct{}

var _ Notifier = Log{}

func (Log) Notify(_ context.Context, chatID int64, msg string) error {
	log.Info().Int64("chat_id", chatID).Str("msg", msg).Msg("notify: message")
	return nil
}
