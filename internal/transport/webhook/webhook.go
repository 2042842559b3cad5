// Package webhook delivers status cards to Discord-compatible webhook
// endpoints. Creating a message POSTs the webhook URL with ?wait=true so the
// response carries the message id; editing PATCHes <url>/messages/<id>.
//
// Endpoints that answer 204 (wait unsupported) still count as delivered,
// they just come back without a ref, so the message can never be edited.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"scorebot/internal/card"
	"scorebot/internal/transport"
	"scorebot/pkg/logx"
)

const (
	defaultTimeout = 10 * time.Second
	userAgent      = "scorebot/1 (+status-poller)"

	maxRespBytes = 1 << 20
	maxErrorBody = 512
)

type Config struct {
	URL      string
	Username string // optional display-name override on posted messages
	Timeout  time.Duration
}

// Sender posts to exactly one webhook URL.
type Sender struct {
	cfg   Config
	http  *http.Client
	label string
	log   logx.Logger
}

func New(cfg Config, log logx.Logger) (*Sender, error) {
	if err := transport.Validate(cfg.URL); err != nil {
		return nil, err
	}
	if strings.HasPrefix(cfg.URL, transport.TelegramPrefix) {
		return nil, errors.New("webhook: telegram destination routed to webhook sender")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	label := transport.Mask(cfg.URL)
	return &Sender{
		cfg:   cfg,
		http:  &http.Client{Timeout: cfg.Timeout},
		label: label,
		log:   log.With(logx.String("dest", label)),
	}, nil
}

func (s *Sender) Kind() string   { return transport.KindWebhook }
func (s *Sender) Target() string { return s.cfg.URL }
func (s *Sender) Label() string  { return s.label }

func (s *Sender) Send(ctx context.Context, c card.Card) (transport.MessageRef, error) {
	body, err := marshalPayload(c, s.cfg.Username)
	if err != nil {
		return "", fmt.Errorf("webhook %s: encode: %w", s.label, err)
	}
	status, data, err := s.do(ctx, http.MethodPost, withWait(s.cfg.URL), body)
	if err != nil {
		return "", fmt.Errorf("webhook %s: post: %w", s.label, err)
	}
	if status == http.StatusNoContent || len(data) == 0 {
		s.log.Debug("webhook answered without a message id, edits disabled")
		return "", nil
	}
	var msg struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.ID == "" {
		s.log.Debug("webhook response had no parseable message id, edits disabled")
		return "", nil
	}
	return transport.MessageRef(msg.ID), nil
}

func (s *Sender) Edit(ctx context.Context, ref transport.MessageRef, c card.Card) error {
	if ref == "" {
		return fmt.Errorf("webhook %s: edit without message ref", s.label)
	}
	body, err := marshalPayload(c, s.cfg.Username)
	if err != nil {
		return fmt.Errorf("webhook %s: encode: %w", s.label, err)
	}
	if _, _, err := s.do(ctx, http.MethodPatch, editURL(s.cfg.URL, ref), body); err != nil {
		return fmt.Errorf("webhook %s: edit: %w", s.label, err)
	}
	return nil
}

// do issues one API call and returns the status plus the (bounded) body.
// Errors never contain the request URL; it embeds the auth token.
func (s *Sender) do(ctx context.Context, method, rawURL string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, errors.New("build request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, stripURL(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRespBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", stripURL(err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, &StatusError{Code: resp.StatusCode, Body: clampRunes(strings.TrimSpace(string(data)), maxErrorBody)}
	}
	return resp.StatusCode, data, nil
}

// StatusError is a non-2xx webhook API response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// stripURL unwraps url.Error so the full webhook URL never reaches logs.
func stripURL(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		return ue.Err
	}
	return err
}

func withWait(base string) string {
	if strings.Contains(base, "?") {
		return base + "&wait=true"
	}
	return base + "?wait=true"
}

// editURL keeps any query the webhook URL carries (e.g. thread routing)
// while inserting the /messages/<id> path.
func editURL(base string, ref transport.MessageRef) string {
	q := ""
	if i := strings.IndexByte(base, '?'); i >= 0 {
		base, q = base[:i], base[i:]
	}
	return strings.TrimRight(base, "/") + "/messages/" + string(ref) + q
}
