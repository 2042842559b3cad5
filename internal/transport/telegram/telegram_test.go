package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"scorebot/internal/card"
	"scorebot/pkg/logx"
)

// botAPI emulates the bot API surface the sender touches.
type botAPI struct {
	mu     chan struct{} // 1-slot semaphore keeps the race detector quiet
	calls  []string
	bodies []map[string]string
	editRe string // canned editMessageText response, "" means ok
}

func newBotAPI() *botAPI {
	a := &botAPI{mu: make(chan struct{}, 1)}
	a.mu <- struct{}{}
	return a
}

func (a *botAPI) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-a.mu
		defer func() { a.mu <- struct{}{} }()

		method := r.URL.Path[strings.LastIndexByte(r.URL.Path, '/')+1:]
		a.calls = append(a.calls, method)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		a.bodies = append(a.bodies, body)

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "sendMessage":
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"chat":{"id":123}}}`))
		case "editMessageText":
			if a.editRe != "" {
				_, _ = w.Write([]byte(a.editRe))
				return
			}
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":7,"chat":{"id":123}}}`))
		default:
			_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
		}
	})
}

func newTestSender(t *testing.T, api *botAPI) *Sender {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)

	b, err := NewBot(Config{Token: "123:test", APIURL: srv.URL, Offline: true}, logx.Nop())
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	s, err := b.Sender("telegram:123")
	if err != nil {
		t.Fatalf("Sender: %v", err)
	}
	return s
}

func testCard() card.Card {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return card.Card{
		Title:   "Dust <&> Arena",
		Color:   card.ColorOnline,
		Summary: "3/16 (19%)",
		Bar:     strings.Repeat("█", 8) + strings.Repeat("░", 32),
		Fields: []card.Field{
			{Name: "Map", Value: "dm_crossfire", Inline: true},
		},
		Table:       "Player   Score  Time\n<script>     7  10m",
		At:          at,
		NextRefresh: at.Add(5 * time.Minute),
	}
}

func TestSendPostsHTMLAndReturnsRef(t *testing.T) {
	api := newBotAPI()
	s := newTestSender(t, api)

	ref, err := s.Send(context.Background(), testCard())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ref != "7" {
		t.Fatalf("ref = %q, want \"7\"", ref)
	}
	if len(api.calls) != 1 || api.calls[0] != "sendMessage" {
		t.Fatalf("calls = %v", api.calls)
	}
	body := api.bodies[0]
	if body["chat_id"] != "123" {
		t.Errorf("chat_id = %q", body["chat_id"])
	}
	if body["parse_mode"] != "HTML" {
		t.Errorf("parse_mode = %q", body["parse_mode"])
	}
	text := body["text"]
	if !strings.Contains(text, "<b>Dust &lt;&amp;&gt; Arena</b>") {
		t.Errorf("title not escaped/bold: %q", text)
	}
	if strings.Contains(text, "<script>") {
		t.Errorf("player name injected raw HTML: %q", text)
	}
	if !strings.Contains(text, "<pre><code>") {
		t.Errorf("no preformatted block: %q", text)
	}
	if !strings.Contains(text, "Next refresh 12:05:00") {
		t.Errorf("missing refresh marker: %q", text)
	}
}

func TestEditTargetsStoredMessage(t *testing.T) {
	api := newBotAPI()
	s := newTestSender(t, api)

	if err := s.Edit(context.Background(), "7", testCard()); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if len(api.calls) != 1 || api.calls[0] != "editMessageText" {
		t.Fatalf("calls = %v", api.calls)
	}
	body := api.bodies[0]
	if body["message_id"] != "7" {
		t.Errorf("message_id = %q", body["message_id"])
	}
	if body["chat_id"] != "123" {
		t.Errorf("chat_id = %q", body["chat_id"])
	}
}

func TestEditUnchangedContentIsSuccess(t *testing.T) {
	api := newBotAPI()
	api.editRe = `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified: specified new message content and reply markup are exactly the same as a current content and reply markup of the message"}`
	s := newTestSender(t, api)

	if err := s.Edit(context.Background(), "7", testCard()); err != nil {
		t.Fatalf("Edit of unchanged content must not fail: %v", err)
	}
}

func TestEditRejectsBadRef(t *testing.T) {
	api := newBotAPI()
	s := newTestSender(t, api)

	if err := s.Edit(context.Background(), "not-a-number", testCard()); err == nil {
		t.Fatal("expected error for malformed ref")
	}
	if len(api.calls) != 0 {
		t.Fatalf("no API call expected, got %v", api.calls)
	}
}

func TestSenderRejectsWebhookDestination(t *testing.T) {
	api := newBotAPI()
	s := newTestSender(t, api)
	if _, err := s.b.Sender("https://chat.example.com/hook"); err == nil {
		t.Fatal("expected error for non-telegram destination")
	}
}
