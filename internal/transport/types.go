// Package transport defines the delivery surface for rendered status cards.
//
// A Sender owns exactly one destination (one webhook endpoint, one Telegram
// chat) and knows how to post a card there and how to edit a previously
// posted one in place. Destinations are configured as opaque strings:
//
//	https://…            webhook endpoint (the URL embeds an auth token)
//	telegram:<chat_id>   Telegram chat, delivered through the bot API
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"scorebot/internal/card"
)

// MessageRef identifies a message a Sender previously posted to its
// destination. The value is backend-specific (webhook message snowflake,
// Telegram message id) and is persisted verbatim by the message-id store.
type MessageRef string

const (
	KindWebhook  = "webhook"
	KindTelegram = "telegram"
)

// TelegramPrefix marks a destination entry that routes to a Telegram chat.
const TelegramPrefix = "telegram:"

// Sender delivers cards to a single destination.
type Sender interface {
	// Kind reports the backend family ("webhook", "telegram").
	Kind() string
	// Target returns the destination exactly as configured. It is the key
	// under which the message-id store files this destination; treat it as
	// a secret and never log it directly.
	Target() string
	// Label returns a redacted form of Target that is safe for logs.
	Label() string

	Send(ctx context.Context, c card.Card) (MessageRef, error)
	Edit(ctx context.Context, ref MessageRef, c card.Card) error
}

// Validate checks that a configured destination entry is routable.
// Error text never echoes the raw entry; webhook URLs carry credentials.
func Validate(dest string) error {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return errors.New("transport: empty destination")
	}
	if strings.HasPrefix(dest, TelegramPrefix) {
		if _, ok := TelegramChatID(dest); !ok {
			return fmt.Errorf("transport: %s: chat id must be a non-zero integer", Mask(dest))
		}
		return nil
	}
	u, err := url.Parse(dest)
	if err != nil {
		return errors.New("transport: destination is not a valid URL")
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("transport: %s: unsupported scheme %q", Mask(dest), u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("transport: %s: missing host", Mask(dest))
	}
	return nil
}

// TelegramChatID extracts the chat id from a telegram:<chat_id> entry.
// Group chat ids are negative, so any non-zero integer is accepted.
func TelegramChatID(dest string) (int64, bool) {
	raw, ok := strings.CutPrefix(strings.TrimSpace(dest), TelegramPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// Mask redacts a destination for logging. Webhook URLs embed an auth token in
// the path, so everything past the first path segment collapses to an
// ellipsis plus the last four characters. Telegram entries pass through:
// chat ids are routing data, not credentials.
func Mask(dest string) string {
	dest = strings.TrimSpace(dest)
	if strings.HasPrefix(dest, TelegramPrefix) {
		return dest
	}
	u, err := url.Parse(dest)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "dest:…" + lastRunes(dest, 4)
	}
	masked := u.Scheme + "://" + u.Host
	if seg := firstPathSegment(u.Path); seg != "" {
		masked += "/" + seg
	}
	return masked + "/…" + lastRunes(dest, 4)
}

func firstPathSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		return p[:i]
	}
	return p
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
