package app

import (
	"fmt"
	"strings"
	"time"

	"scorebot/internal/card"
	"scorebot/internal/config"
	"scorebot/internal/deliver"
	"scorebot/internal/ops"
	"scorebot/internal/poll"
	"scorebot/internal/sched"
	"scorebot/internal/source"
	"scorebot/internal/storage"
	"scorebot/internal/transport"
	"scorebot/internal/transport/telegram"
	"scorebot/internal/transport/webhook"
	logx "scorebot/pkg/logx"
)

const (
	defaultSchedule  = "5m"
	defaultStatePath = "./scorebot_state"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	lc := logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
	// A config with every sink off almost certainly means the section was
	// omitted, not that the operator wants a silent bot.
	if !lc.Console && !lc.File.Enabled {
		lc.Console = true
	}
	return lc
}

func mapSourceConfig(cfg *config.Config) (source.Config, error) {
	timeout, err := config.ParseDurationOrDefault("server.timeout", cfg.Server.Timeout, 15*time.Second)
	if err != nil {
		return source.Config{}, err
	}
	retryDelay, err := config.ParseDurationOrDefault("server.retry_delay", cfg.Server.RetryDelay, 2*time.Second)
	if err != nil {
		return source.Config{}, err
	}
	retries := cfg.Server.MaxRetries
	if retries == 0 {
		retries = 3
	} else if retries < 0 {
		// Explicit "no retries": a single attempt per poll.
		retries = 0
	}
	return source.Config{
		URL:        strings.TrimSpace(cfg.Server.URL),
		Timeout:    timeout,
		MaxRetries: retries,
		RetryDelay: retryDelay,
	}, nil
}

func loadLocation(cfg *config.Config) (*time.Location, error) {
	tz := strings.TrimSpace(cfg.Poll.Timezone)
	if tz == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("poll.timezone: invalid %q: %w", tz, err)
	}
	return loc, nil
}

func parseSchedule(cfg *config.Config) (sched.Spec, error) {
	loc, err := loadLocation(cfg)
	if err != nil {
		return sched.Spec{}, err
	}
	raw := strings.TrimSpace(cfg.Poll.Schedule)
	if raw == "" {
		raw = defaultSchedule
	}
	spec, err := sched.Parse(raw, loc)
	if err != nil {
		return sched.Spec{}, fmt.Errorf("poll.schedule: %w", err)
	}
	return spec, nil
}

func mapPollConfig(cfg *config.Config) (poll.Config, error) {
	loc, err := loadLocation(cfg)
	if err != nil {
		return poll.Config{}, err
	}
	if cfg.Poll.ErrorThreshold < 0 {
		return poll.Config{}, fmt.Errorf("poll.error_threshold must be >= 0")
	}
	return poll.Config{
		ErrorThreshold: cfg.Poll.ErrorThreshold,
		Card: card.Options{
			Title:   strings.TrimSpace(cfg.Card.Title),
			IconURL: strings.TrimSpace(cfg.Card.IconURL),
		},
		Location: loc,
	}, nil
}

func mapDeliverConfig(cfg *config.Config) deliver.Config {
	rate := cfg.Delivery.RatePerSec
	if rate == 0 {
		rate = 5
	} else if rate < 0 {
		// Explicit "no limiter".
		rate = 0
	}
	return deliver.Config{RatePerSec: rate}
}

// mapStorageConfig picks the message-id store backend. An omitted section
// means the file driver with a default path: edit-in-place should survive
// restarts without any configuration.
func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	if sc == nil {
		return storage.Config{Driver: "file", Path: defaultStatePath}, nil
	}
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file":
		if path == "" {
			path = defaultStatePath
		}
		return storage.Config{Driver: "file", Path: path}, nil
	case "none", "memory", "mem":
		// Without durable ids every restart posts fresh messages, but the
		// engine still edits in place within one run.
		return storage.Config{Driver: "memory"}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	default:
		return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
	}
}

func mapOpsConfig(cfg *config.Config) (ops.Config, error) {
	read, err := config.ParseDurationOrDefault("ops.read_timeout", cfg.Ops.ReadTimeout, 5*time.Second)
	if err != nil {
		return ops.Config{}, err
	}
	// WriteTimeout stays 0 unless set; pprof profile captures run 30s+.
	write, err := config.ParseDurationField("ops.write_timeout", cfg.Ops.WriteTimeout)
	if err != nil {
		return ops.Config{}, err
	}
	idle, err := config.ParseDurationOrDefault("ops.idle_timeout", cfg.Ops.IdleTimeout, 60*time.Second)
	if err != nil {
		return ops.Config{}, err
	}
	return ops.Config{
		Enabled:       cfg.Ops.Enabled,
		Addr:          strings.TrimSpace(cfg.Ops.Addr),
		Token:         cfg.Ops.Token,
		AllowInsecure: cfg.Ops.AllowInsecure,
		Pprof:         cfg.Ops.Pprof,
		ReadTimeout:   read,
		WriteTimeout:  write,
		IdleTimeout:   idle,
	}, nil
}

func mapTelegramConfig(cfg *config.Config) telegram.Config {
	if cfg.Telegram == nil {
		return telegram.Config{}
	}
	return telegram.Config{
		Token:  strings.TrimSpace(cfg.Telegram.Token),
		APIURL: strings.TrimSpace(cfg.Telegram.APIURL),
	}
}

func hasTelegramDest(cfg *config.Config) bool {
	for _, d := range cfg.Destinations {
		if _, ok := transport.TelegramChatID(strings.TrimSpace(d)); ok {
			return true
		}
	}
	return false
}

// buildSenders constructs one sender per configured destination. All
// telegram destinations share the one bot session; every webhook gets its
// own sender.
func buildSenders(cfg *config.Config, tg *telegram.Bot, log logx.Logger) ([]transport.Sender, error) {
	webhookTimeout, err := config.ParseDurationField("delivery.timeout", cfg.Delivery.Timeout)
	if err != nil {
		return nil, err
	}
	botName := strings.TrimSpace(cfg.Delivery.BotName)

	senders := make([]transport.Sender, 0, len(cfg.Destinations))
	for i, dest := range cfg.Destinations {
		dest = strings.TrimSpace(dest)
		if err := transport.Validate(dest); err != nil {
			return nil, fmt.Errorf("destinations[%d]: %w", i, err)
		}
		if _, ok := transport.TelegramChatID(dest); ok {
			if tg == nil {
				return nil, fmt.Errorf("destinations[%d]: telegram destination needs telegram.token", i)
			}
			s, err := tg.Sender(dest)
			if err != nil {
				return nil, fmt.Errorf("destinations[%d]: %w", i, err)
			}
			senders = append(senders, s)
			continue
		}
		s, err := webhook.New(webhook.Config{
			URL:      dest,
			Username: botName,
			Timeout:  webhookTimeout,
		}, log.With(logx.String("comp", "webhook")))
		if err != nil {
			return nil, fmt.Errorf("destinations[%d]: %w", i, err)
		}
		senders = append(senders, s)
	}
	return senders, nil
}

// validateConfig is the gate for both boot and hot reload: a config that
// fails here is never committed.
func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Server.URL) == "" {
		return fmt.Errorf("server.url is required")
	}
	if _, err := mapSourceConfig(cfg); err != nil {
		return err
	}
	if len(cfg.Destinations) == 0 {
		return fmt.Errorf("at least one destination is required")
	}
	for i, d := range cfg.Destinations {
		if err := transport.Validate(strings.TrimSpace(d)); err != nil {
			return fmt.Errorf("destinations[%d]: %w", i, err)
		}
	}
	if hasTelegramDest(cfg) && mapTelegramConfig(cfg).Token == "" {
		return fmt.Errorf("telegram destinations configured but telegram.token is missing")
	}
	if _, err := parseSchedule(cfg); err != nil {
		return err
	}
	if _, err := mapPollConfig(cfg); err != nil {
		return err
	}
	if _, err := config.ParseDurationField("delivery.timeout", cfg.Delivery.Timeout); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := mapOpsConfig(cfg); err != nil {
		return err
	}
	return nil
}
