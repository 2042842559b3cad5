package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeConfigFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, "scorebot.json", `{
  "server": {"url": "https://game.example.net/status.json", "timeout": "10s", "max_retries": 2, "retry_delay": "1s"},
  "poll": {"schedule": "*/5 * * * *", "error_threshold": 4, "timezone": "Europe/Berlin"},
  "card": {"title": "Frag Palace"},
  "destinations": ["https://hooks.example.com/api/h/abc123", "telegram:-100200300"],
  "delivery": {"rate_per_sec": 3, "bot_name": "Scorebot"},
  "telegram": {"token": "12345:AAbbCC"},
  "storage": {"driver": "file", "path": "./state"},
  "logging": {"level": "debug", "console": true, "file": {"enabled": false, "path": ""}},
  "ops": {"enabled": true, "addr": "127.0.0.1:9090", "pprof": true}
}`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Server.URL != "https://game.example.net/status.json" {
		t.Fatalf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Server.MaxRetries != 2 || cfg.Server.Timeout != "10s" {
		t.Fatalf("server knobs = %+v", cfg.Server)
	}
	if cfg.Poll.Schedule != "*/5 * * * *" || cfg.Poll.ErrorThreshold != 4 {
		t.Fatalf("poll knobs = %+v", cfg.Poll)
	}
	if len(cfg.Destinations) != 2 || cfg.Destinations[1] != "telegram:-100200300" {
		t.Fatalf("destinations = %v", cfg.Destinations)
	}
	if cfg.Telegram == nil || cfg.Telegram.Token != "12345:AAbbCC" {
		t.Fatal("telegram section not decoded")
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Fatal("storage section not decoded")
	}
	if !cfg.Ops.Enabled || !cfg.Ops.Pprof {
		t.Fatalf("ops knobs = %+v", cfg.Ops)
	}
}

func TestParseYAML(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, "scorebot.yaml", `
server:
  url: https://game.example.net/status.json
  timeout: 15s
  max_retries: 3
poll:
  schedule: 5m
  error_threshold: 3
destinations:
  - https://hooks.example.com/api/h/abc123
delivery:
  rate_per_sec: 5
logging:
  level: info
  console: true
  file:
    enabled: true
    path: ./scorebot.log
`)

	cfg, err := NewManager(path).Parse()
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if cfg.Server.URL != "https://game.example.net/status.json" {
		t.Fatalf("Server.URL = %q", cfg.Server.URL)
	}
	if cfg.Poll.Schedule != "5m" {
		t.Fatalf("Poll.Schedule = %q", cfg.Poll.Schedule)
	}
	if cfg.Delivery.RatePerSec != 5 {
		t.Fatalf("Delivery.RatePerSec = %d", cfg.Delivery.RatePerSec)
	}
	if !cfg.Logging.File.Enabled || cfg.Logging.File.Path != "./scorebot.log" {
		t.Fatalf("logging.file = %+v", cfg.Logging.File)
	}
	if cfg.Telegram != nil {
		t.Fatal("telegram should stay nil when omitted")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "json top-level typo",
			file: "bad.json",
			body: `{"server": {"url": "http://x"}, "pool": {"schedule": "5m"}}`,
		},
		{
			name: "json nested typo",
			file: "bad.json",
			body: `{"server": {"url": "http://x", "timout": "5s"}}`,
		},
		{
			name: "yaml typo",
			file: "bad.yaml",
			body: "server:\n  url: http://x\nschedule: 5m\n",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := writeConfigFile(t, tt.file, tt.body)
			if _, err := NewManager(path).Parse(); err == nil {
				t.Fatal("expected unknown-field error")
			}
		})
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, "trailing.json", `{"server": {"url": "http://x"}} {"extra": 1}`)
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("expected trailing-data error")
	}
}

func TestLoadCommitsSnapshot(t *testing.T) {
	t.Parallel()
	path := writeConfigFile(t, "ok.json", `{"server": {"url": "http://x"}, "destinations": []}`)
	m := NewManager(path)
	if m.Get() != nil {
		t.Fatal("Get before Load should be nil")
	}
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if m.Get() != cfg {
		t.Fatal("Get should return the committed snapshot")
	}
}

func TestSubscribeGetsLatestWhenSlow(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	first := &Config{Poll: PollConfig{Schedule: "1m"}}
	second := &Config{Poll: PollConfig{Schedule: "2m"}}
	third := &Config{Poll: PollConfig{Schedule: "3m"}}
	m.publish(first)
	m.publish(second)
	m.publish(third)

	select {
	case got := <-ch:
		if got != third {
			t.Fatalf("Schedule = %q, want the newest revision", got.Poll.Schedule)
		}
	default:
		t.Fatal("no config delivered")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	t.Parallel()
	m := NewManager("unused")
	ch := m.Subscribe(1)
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed")
	}
	// Publishing after unsubscribe must not panic.
	m.publish(&Config{})
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty", raw: "", want: 0},
		{name: "whitespace", raw: "   ", want: 0},
		{name: "seconds", raw: "15s", want: 15 * time.Second},
		{name: "compound", raw: "1m30s", want: 90 * time.Second},
		{name: "negative", raw: "-5s", wantErr: true},
		{name: "garbage", raw: "soon", wantErr: true},
		{name: "bare number", raw: "15", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDurationField("server.timeout", tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationField(%q): expected error", tt.raw)
				}
				if !strings.Contains(err.Error(), "server.timeout") {
					t.Fatalf("error should name the field: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationField(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	got, err := ParseDurationOrDefault("server.timeout", "", 15*time.Second)
	if err != nil || got != 15*time.Second {
		t.Fatalf("empty: got %v, %v", got, err)
	}
	got, err = ParseDurationOrDefault("server.timeout", "3s", 15*time.Second)
	if err != nil || got != 3*time.Second {
		t.Fatalf("set: got %v, %v", got, err)
	}
	if _, err = ParseDurationOrDefault("server.timeout", "nope", 15*time.Second); err == nil {
		t.Fatal("expected error for bad duration")
	}
}

func TestSummarizeConfigChangeSections(t *testing.T) {
	t.Parallel()
	oldCfg := &Config{
		Server:       ServerConfig{URL: "http://a"},
		Poll:         PollConfig{Schedule: "5m"},
		Destinations: []string{"https://hooks.example.com/api/h/abc123"},
	}
	newCfg := &Config{
		Server:       ServerConfig{URL: "http://b"},
		Poll:         PollConfig{Schedule: "1m"},
		Destinations: []string{"https://hooks.example.com/api/h/abc123", "telegram:42"},
		Delivery:     DeliveryConfig{RatePerSec: 2},
	}

	changed, _ := SummarizeConfigChange(oldCfg, newCfg)
	want := []string{"delivery", "destinations", "poll", "server"}
	if len(changed) != len(want) {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	for i := range want {
		if changed[i] != want[i] {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
	}
}

func TestSummarizeConfigChangeKeepsSecretsOut(t *testing.T) {
	t.Parallel()
	const (
		hookURL  = "https://hooks.example.com/api/h/secret-hook-token"
		botToken = "12345:AAsecretBotToken"
		opsToken = "ops-bearer-secret"
	)
	oldCfg := &Config{}
	newCfg := &Config{
		Server:       ServerConfig{URL: "https://game.example.net/status.json"},
		Destinations: []string{hookURL},
		Telegram:     &TelegramConfig{Token: botToken},
		Ops:          OpsConfig{Enabled: true, Addr: "0.0.0.0:9090", Token: opsToken},
	}

	changed, attrs := SummarizeConfigChange(oldCfg, newCfg)
	if len(changed) == 0 {
		t.Fatal("expected changed sections")
	}

	var buf bytes.Buffer
	ev := zerolog.New(&buf).Info()
	for _, f := range attrs {
		f(ev)
	}
	ev.Msg("config changed")

	out := buf.String()
	for _, secret := range []string{hookURL, "secret-hook-token", botToken, opsToken} {
		if strings.Contains(out, secret) {
			t.Fatalf("attrs leak %q: %s", secret, out)
		}
	}
	if !strings.Contains(out, `"destinations.count":1`) {
		t.Fatalf("expected destination count in attrs: %s", out)
	}
	if !strings.Contains(out, `"telegram.token_set":true`) {
		t.Fatalf("expected token_set flag: %s", out)
	}
}
