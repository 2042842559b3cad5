package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"scorebot/internal/card"
	"scorebot/pkg/logx"
)

func testCard() card.Card {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return card.Card{
		Title:   "Test server",
		Color:   card.ColorOnline,
		Summary: "3/16 (19%)",
		Bar:     strings.Repeat("█", 8) + strings.Repeat("░", 32),
		Fields: []card.Field{
			{Name: "Map", Value: "dm_crossfire", Inline: true},
			{Name: "Address", Value: "203.0.113.7:27015", Inline: true},
		},
		Table:       "Player  Score  Time\nalpha        7  10m",
		At:          at,
		NextRefresh: at.Add(5 * time.Minute),
	}
}

func TestSendReturnsMessageID(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Query().Get("wait") != "true" {
			t.Errorf("missing wait=true, query = %q", r.URL.RawQuery)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"111222333"}`))
	}))
	defer srv.Close()

	s, err := New(Config{URL: srv.URL + "/api/webhooks/1/tok"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, err := s.Send(context.Background(), testCard())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ref != "111222333" {
		t.Fatalf("ref = %q", ref)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Title != "Test server" {
		t.Errorf("title = %q", e.Title)
	}
	if !strings.Contains(e.Description, "**3/16 (19%)**") {
		t.Errorf("description missing summary: %q", e.Description)
	}
	if !strings.Contains(e.Description, "░") {
		t.Errorf("description missing bar: %q", e.Description)
	}
	wantMarker := fmt.Sprintf("<t:%d:R>", testCard().NextRefresh.Unix())
	if !strings.Contains(e.Description, wantMarker) {
		t.Errorf("description missing refresh marker %s: %q", wantMarker, e.Description)
	}
	last := e.Fields[len(e.Fields)-1]
	if last.Name != "Scoreboard" {
		t.Errorf("last field = %q, want Scoreboard", last.Name)
	}
	if !strings.HasPrefix(last.Value, "```\n") || !strings.HasSuffix(last.Value, "\n```") {
		t.Errorf("scoreboard not fenced: %q", last.Value)
	}
	if e.Timestamp != "2025-06-01T12:00:00Z" {
		t.Errorf("timestamp = %q", e.Timestamp)
	}
}

func TestEditPatchesStoredMessage(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}))
	defer srv.Close()

	s, err := New(Config{URL: srv.URL + "/hook"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Edit(context.Background(), "42", testCard()); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %s, want PATCH", gotMethod)
	}
	if gotPath != "/hook/messages/42" {
		t.Errorf("path = %q", gotPath)
	}
}

func TestSendSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Unknown Webhook", "code": 10015}`))
	}))
	defer srv.Close()

	s, err := New(Config{URL: srv.URL + "/hook"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = s.Send(context.Background(), testCard())
	if err == nil {
		t.Fatal("expected error")
	}
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error %T not a StatusError: %v", err, err)
	}
	if se.Code != http.StatusNotFound {
		t.Errorf("code = %d", se.Code)
	}
	if !strings.Contains(err.Error(), "Unknown Webhook") {
		t.Errorf("error lost API detail: %v", err)
	}
}

func TestSendWithoutWaitSupportStillDelivers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s, err := New(Config{URL: srv.URL + "/hook"}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ref, err := s.Send(context.Background(), testCard())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if ref != "" {
		t.Fatalf("ref = %q, want empty for 204", ref)
	}
}

func TestEditURLKeepsQuery(t *testing.T) {
	got := editURL("https://h.example/hook?thread_id=9", "77")
	if got != "https://h.example/hook/messages/77?thread_id=9" {
		t.Fatalf("editURL = %q", got)
	}
}

func TestBuildEmbedBoundsOversizeTable(t *testing.T) {
	c := card.Card{Table: strings.Repeat("x", 5*maxFieldValue)}
	e := buildEmbed(c)
	if len(e.Fields) != 1 {
		t.Fatalf("fields = %d", len(e.Fields))
	}
	v := e.Fields[0].Value
	if n := utf8.RuneCountInString(v); n > maxFieldValue {
		t.Fatalf("field value %d runes, limit %d", n, maxFieldValue)
	}
	if !strings.HasSuffix(v, "\n```") {
		t.Fatalf("truncation broke the closing fence: %q", v[len(v)-16:])
	}
}
