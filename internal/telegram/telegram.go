// Package telegram connects the bot handler to the Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-bot/internal/bot"
	"github.com/dvloznov/finance-bot/internal/domain"
)

// MaxMessageLength is Telegram's limit for one text message.
const MaxMessageLength = 4096

const pollTimeout = 60

// API is the part of tgbotapi.BotAPI the transport uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Handler answers chat input.
type Handler interface {
	HandleText(ctx context.Context, req bot.Request, text string) bot.Reply
	HandleCallback(ctx context.Context, req bot.Request, data string) bot.Reply
}

// Connect logs in with token. A rejected token yields ErrTransportAuthInvalid.
func Connect(token string, debug bool) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, fmt.Errorf("Connect: empty token: %w", domain.ErrTransportAuthInvalid)
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("Connect: %w", classify(err))
	}
	api.Debug = debug
	return api, nil
}

// classify marks credential rejections as terminal.
func classify(err error) error {
	code := 0
	var ptr *tgbotapi.Error
	var val tgbotapi.Error
	switch {
	case errors.As(err, &ptr):
		code = ptr.Code
	case errors.As(err, &val):
		code = val.Code
	}
	// Telegram answers 404 for a malformed token.
	if code == http.StatusUnauthorized || code == http.StatusNotFound {
		return fmt.Errorf("%w: %w", domain.ErrTransportAuthInvalid, err)
	}
	return err
}

// Transport polls updates and delivers replies.
type Transport struct {
	api     API
	handler Handler
	logger  zerolog.Logger
}

// New creates a Transport.
func New(api API, handler Handler, logger zerolog.Logger) *Transport {
	return &Transport{api: api, handler: handler, logger: logger}
}

// Run processes updates until ctx is done or the token is revoked.
func (t *Transport) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeout
	updates := t.api.GetUpdatesChan(cfg)
	defer t.api.StopReceivingUpdates()

	t.logger.Info().Msg("Listening for Telegram updates")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			if err := t.handleUpdate(ctx, u); err != nil {
				if errors.Is(err, domain.ErrTransportAuthInvalid) {
					return err
				}
				t.logger.Warn().Err(err).Int("update_id", u.UpdateID).Msg("Failed to handle update")
			}
		}
	}
}

func originator(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (t *Transport) handleUpdate(ctx context.Context, u tgbotapi.Update) error {
	switch {
	case u.Message != nil:
		m := u.Message
		if m.Text == "" {
			return nil
		}
		req := bot.Request{ChatID: m.Chat.ID, Originator: originator(m.From)}
		if m.From != nil {
			req.UserID = m.From.ID
		}
		return t.deliver(m.Chat.ID, 0, t.handler.HandleText(ctx, req, m.Text))

	case u.CallbackQuery != nil:
		cq := u.CallbackQuery
		if cq.Message == nil {
			return nil
		}
		req := bot.Request{ChatID: cq.Message.Chat.ID, Originator: originator(cq.From)}
		if cq.From != nil {
			req.UserID = cq.From.ID
		}
		reply := t.handler.HandleCallback(ctx, req, cq.Data)

		// Answer callback query to remove loading state
		if _, err := t.api.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
			t.logger.Debug().Err(err).Msg("Failed to answer callback")
		}

		editID := 0
		if reply.Edit {
			editID = cq.Message.MessageID
		}
		return t.deliver(cq.Message.Chat.ID, editID, reply)
	}
	return nil
}

// deliver sends reply, editing messageID when it is non-zero. Long texts
// are split on line boundaries; buttons go with the last part.
func (t *Transport) deliver(chatID int64, messageID int, reply bot.Reply) error {
	if reply.Text == "" {
		return nil
	}

	parts := Split(reply.Text, MaxMessageLength)
	markup := keyboard(reply.Choices)

	for i, part := range parts {
		last := i == len(parts)-1
		var c tgbotapi.Chattable
		if i == 0 && messageID != 0 {
			edit := tgbotapi.NewEditMessageText(chatID, messageID, part)
			if last && markup != nil {
				edit.ReplyMarkup = markup
			}
			c = edit
		} else {
			msg := tgbotapi.NewMessage(chatID, part)
			if last && markup != nil {
				msg.ReplyMarkup = *markup
			}
			c = msg
		}
		if _, err := t.api.Send(c); err != nil {
			return fmt.Errorf("deliver: %w", classify(err))
		}
	}
	return nil
}

func keyboard(rows [][]bot.Choice) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, c := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(c.Label, c.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &markup
}

// Notify sends a standalone message. It serves reminders and export results.
func (t *Transport) Notify(ctx context.Context, chatID int64, text string) error {
	return t.deliver(chatID, 0, bot.Reply{Text: text})
}

// Split cuts text into pieces of at most limit runes, preferring line breaks.
func Split(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var (
		parts []string
		cur   strings.Builder
		n     int
	)
	flush := func() {
		if n > 0 {
			parts = append(parts, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
			n = 0
		}
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		ln := utf8.RuneCountInString(line)
		if n+ln > limit {
			flush()
		}
		for ln > limit {
			r := []rune(line)
			parts = append(parts, string(r[:limit]))
			line = string(r[limit:])
			ln -= limit
		}
		cur.WriteString(line)
		n += ln
	}
	flush()
	return parts
}
