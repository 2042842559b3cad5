package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	logx "scorebot/pkg/logx"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	defaultUserAgent  = "scorebot/1 (+status-poller)"

	// maxBodyBytes bounds how much of a response we are willing to parse.
	maxBodyBytes = 2 << 20
)

type Config struct {
	URL        string
	Timeout    time.Duration // per-attempt HTTP timeout
	MaxRetries int           // a fetch makes 1 + MaxRetries attempts
	RetryDelay time.Duration // pause between attempts
}

// ErrExhausted marks a fetch whose every attempt failed. Match with
// errors.Is; the concrete *FetchError carries the attempt counts.
var ErrExhausted = errors.New("fetch attempts exhausted")

// FetchError is returned when all attempts of one fetch are exhausted.
// Consecutive counts failed fetches since the last success.
type FetchError struct {
	Attempts    int
	Consecutive int
	Err         error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("status fetch failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrExhausted }

// Client polls the status endpoint with bounded retries.
//
// Not safe for concurrent Fetch calls; the cycle controller guarantees
// single-flight. Failures() and Apply() may be called concurrently
// (health output, config reload).
type Client struct {
	mu   sync.RWMutex
	cfg  Config
	http *http.Client
	log  logx.Logger

	failures atomic.Int64
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("server url is empty")
	}
	cfg = normalizeConfig(cfg)
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}, nil
}

func normalizeConfig(cfg Config) Config {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return cfg
}

// Apply swaps the endpoint and retry bounds at runtime (config reload).
// The consecutive-failure counter carries over; an in-flight fetch finishes
// with the settings it started with.
func (c *Client) Apply(cfg Config) error {
	if strings.TrimSpace(cfg.URL) == "" {
		return errors.New("server url is empty")
	}
	cfg = normalizeConfig(cfg)
	c.mu.Lock()
	if cfg.Timeout != c.cfg.Timeout {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	c.cfg = cfg
	c.mu.Unlock()
	return nil
}

func (c *Client) snapshot() (Config, *http.Client) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg, c.http
}

// Failures returns the number of consecutive exhausted fetches.
func (c *Client) Failures() int { return int(c.failures.Load()) }

// Fetch retrieves one status snapshot.
//
// Transport errors and non-2xx responses count as attempt failures; the
// client retries up to MaxRetries more times with RetryDelay pauses. When
// every attempt failed it bumps the consecutive-failure counter once and
// returns a *FetchError wrapping the last cause. A success resets the
// counter.
func (c *Client) Fetch(ctx context.Context) (*ServerState, error) {
	cfg, hc := c.snapshot()
	attempts := cfg.MaxRetries + 1

	var lastErr error
	for i := 0; i < attempts; i++ {
		st, err := c.fetchOnce(ctx, cfg, hc)
		if err == nil {
			c.failures.Store(0)
			return st, nil
		}
		lastErr = err
		c.log.Debug("fetch attempt failed",
			logx.Int("attempt", i+1),
			logx.Int("max_attempts", attempts),
			logx.Err(err))

		if i == attempts-1 || ctx.Err() != nil {
			break
		}
		// Pause between attempts without blocking shutdown.
		t := time.NewTimer(cfg.RetryDelay)
		select {
		case <-t.C:
			continue
		case <-ctx.Done():
			t.Stop()
		}
		break
	}

	n := int(c.failures.Add(1))
	return nil, &FetchError{Attempts: attempts, Consecutive: n, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, cfg Config, hc *http.Client) (*ServerState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var st ServerState
	dec := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes))
	if err := dec.Decode(&st); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	st.normalize()
	return &st, nil
}
