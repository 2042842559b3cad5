// Package telegram delivers status cards to Telegram chats through the bot
// API. One Bot (one token) serves any number of chat destinations; Sender
// binds the shared bot to a single chat id.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"scorebot/internal/card"
	"scorebot/internal/transport"
	"scorebot/pkg/logx"
)

// apiTimeout bounds every bot API call. The bot never long-polls, so a
// client-level timeout cannot cut a poller short.
const apiTimeout = 10 * time.Second

type Config struct {
	Token string
	// APIURL overrides the bot API endpoint (self-hosted bot API servers,
	// tests). Empty means api.telegram.org.
	APIURL string
	// Offline skips the startup token check against the API.
	Offline bool
}

// Bot wraps one authenticated bot API session.
type Bot struct {
	bot *tele.Bot
	log logx.Logger
}

func NewBot(cfg Config, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: token is empty")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.APIURL,
		Offline: cfg.Offline,
		Client:  &http.Client{Timeout: apiTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	return &Bot{bot: b, log: log}, nil
}

// Sender builds the delivery handle for one telegram:<chat_id> destination.
func (b *Bot) Sender(dest string) (*Sender, error) {
	id, ok := transport.TelegramChatID(dest)
	if !ok {
		return nil, fmt.Errorf("telegram: bad destination %s", transport.Mask(dest))
	}
	label := transport.Mask(dest)
	return &Sender{
		b:      b,
		chatID: id,
		target: strings.TrimSpace(dest),
		label:  label,
		log:    b.log.With(logx.String("dest", label)),
	}, nil
}

// Sender posts to exactly one chat.
type Sender struct {
	b      *Bot
	chatID int64
	target string
	label  string
	log    logx.Logger
}

func (s *Sender) Kind() string   { return transport.KindTelegram }
func (s *Sender) Target() string { return s.target }
func (s *Sender) Label() string  { return s.label }

func (s *Sender) Send(ctx context.Context, c card.Card) (transport.MessageRef, error) {
	// telebot calls are not context-aware; honor cancellation at the edge.
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msg, err := s.b.bot.Send(&tele.Chat{ID: s.chatID}, renderText(c), sendOptions())
	if err != nil {
		return "", fmt.Errorf("telegram %s: send: %w", s.label, err)
	}
	return transport.MessageRef(strconv.Itoa(msg.ID)), nil
}

func (s *Sender) Edit(ctx context.Context, ref transport.MessageRef, c card.Card) error {
	id, err := strconv.Atoi(string(ref))
	if err != nil || id == 0 {
		return fmt.Errorf("telegram %s: bad message ref %q", s.label, ref)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m := &tele.Message{ID: id, Chat: &tele.Chat{ID: s.chatID}}
	if _, err := s.b.bot.Edit(m, renderText(c), sendOptions()); err != nil {
		// Re-rendering an unchanged server state produces identical text;
		// the API rejects that edit but the message on screen is current.
		if errors.Is(err, tele.ErrSameMessageContent) || strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("telegram %s: edit: %w", s.label, err)
	}
	return nil
}

func sendOptions() *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	}
}
