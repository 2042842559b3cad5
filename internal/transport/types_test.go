package transport

import (
	"strings"
	"testing"
)

func TestMaskHidesWebhookToken(t *testing.T) {
	const token = "aBcDeFgHiJkLmNoPqRsTuVwXyZ0123456789"
	raw := "https://chat.example.com/api/webhooks/123456789/" + token

	masked := Mask(raw)

	if strings.Contains(masked, token) {
		t.Fatalf("masked destination still contains token: %s", masked)
	}
	if strings.Contains(masked, "123456789") {
		t.Fatalf("masked destination still contains webhook id: %s", masked)
	}
	if !strings.HasPrefix(masked, "https://chat.example.com/api/") {
		t.Fatalf("masked destination lost routing info: %s", masked)
	}
	if !strings.HasSuffix(masked, "…"+token[len(token)-4:]) {
		t.Fatalf("masked destination missing tail hint: %s", masked)
	}
}

func TestMaskPassesTelegramThrough(t *testing.T) {
	if got := Mask("telegram:-100123"); got != "telegram:-100123" {
		t.Fatalf("Mask(telegram) = %q", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		dest    string
		wantErr bool
	}{
		{"webhook https", "https://chat.example.com/api/webhooks/1/tok", false},
		{"webhook http", "http://127.0.0.1:8080/hook", false},
		{"telegram private", "telegram:123456", false},
		{"telegram group", "telegram:-1001234567890", false},
		{"empty", "   ", true},
		{"telegram no id", "telegram:", true},
		{"telegram zero id", "telegram:0", true},
		{"telegram junk id", "telegram:abc", true},
		{"bad scheme", "ftp://example.com/x", true},
		{"no host", "https:///path-only", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.dest)
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate(%q) err = %v, wantErr = %v", tc.dest, err, tc.wantErr)
			}
		})
	}
}

func TestValidateErrorNeverEchoesRawURL(t *testing.T) {
	const secret = "ssshhh-very-secret-token-0001"
	err := Validate("gopher://chat.example.com/api/webhooks/1/" + secret)
	if err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
	if strings.Contains(err.Error(), secret) {
		t.Fatalf("error leaks token: %v", err)
	}
}

func TestTelegramChatID(t *testing.T) {
	if id, ok := TelegramChatID("telegram:-100555"); !ok || id != -100555 {
		t.Fatalf("TelegramChatID = %d, %v", id, ok)
	}
	if _, ok := TelegramChatID("https://example.com"); ok {
		t.Fatal("URL must not parse as telegram destination")
	}
}
