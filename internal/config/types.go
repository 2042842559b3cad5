package config

// Config is the whole bot configuration as read from the YAML/JSON file.
//
// All duration-typed knobs are Go duration strings (e.g. "500ms", "15s", "5m").
type Config struct {
	Server       ServerConfig    `json:"server"`
	Poll         PollConfig      `json:"poll"`
	Card         CardConfig      `json:"card"`
	Destinations []string        `json:"destinations"`
	Delivery     DeliveryConfig  `json:"delivery"`
	Telegram     *TelegramConfig `json:"telegram,omitempty"`
	Storage      *StorageConfig  `json:"storage,omitempty"`
	Logging      LoggingConfig   `json:"logging"`
	Ops          OpsConfig       `json:"ops,omitempty"`
}

// ServerConfig points at the game server's status endpoint.
//
// Defaults (when fields are omitted/zero):
//   - timeout: "15s"
//   - max_retries: 3 (a poll makes 1 + max_retries attempts)
//   - retry_delay: "2s"
type ServerConfig struct {
	URL        string `json:"url"`
	Timeout    string `json:"timeout,omitempty"`
	MaxRetries int    `json:"max_retries,omitempty"`
	RetryDelay string `json:"retry_delay,omitempty"`
}

// PollConfig controls the trigger cadence.
//
// Schedule accepts a cron expression (5 or 6 fields, @every, @hourly, ...)
// or a plain Go duration ("5m"). Default: "5m".
//
// ErrorThreshold is the number of consecutive failed polls after which the
// error card is pushed to destinations. Default: 3.
type PollConfig struct {
	Schedule       string `json:"schedule,omitempty"`
	ErrorThreshold int    `json:"error_threshold,omitempty"`
	Timezone       string `json:"timezone,omitempty"`
	// SkipInitialRun waits out the first schedule activation instead of
	// polling immediately on startup.
	SkipInitialRun bool `json:"skip_initial_run,omitempty"`
}

// CardConfig tweaks status card presentation. Title falls back to the server
// name reported by the status endpoint.
type CardConfig struct {
	Title   string `json:"title,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

// DeliveryConfig bounds outbound chat API traffic.
// RatePerSec is shared across all destinations. Default: 5.
type DeliveryConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"`
	// BotName overrides the display name on webhook posts.
	BotName string `json:"bot_name,omitempty"`
	// Timeout is the per-request webhook timeout (Go duration string).
	Timeout string `json:"timeout,omitempty"`
}

// TelegramConfig is required only when a "telegram:<chat_id>" destination is
// configured. Token is a secret; it never appears in logs.
type TelegramConfig struct {
	Token string `json:"token"`
	// APIURL overrides the bot API endpoint (self-hosted bot API servers).
	// Empty means api.telegram.org.
	APIURL string `json:"api_url,omitempty"`
}

// StorageConfig controls where delivered message ids are persisted.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./scorebot_state" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// OpsConfig controls the optional operational HTTP server
// (/healthz, /metrics, optionally /debug/pprof/).
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8090").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8090"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"` // also mount /debug/pprof/

	// Server timeouts (Go duration strings). WriteTimeout defaults to 0 (disabled)
	// so pprof profile captures (30s+) work reliably.
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}
