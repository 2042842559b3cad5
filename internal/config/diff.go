package config

import (
	"reflect"
	"sort"
	"strings"

	logx "scorebot/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections and
// (2) safe structured attrs for logging. Secrets (telegram token, ops token,
// destination URLs) never appear in the attrs.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Server endpoint
	if oldCfg.Server != newCfg.Server {
		changed = append(changed, "server")
		attrs = append(attrs,
			logx.Bool("server.url_changed", strings.TrimSpace(oldCfg.Server.URL) != strings.TrimSpace(newCfg.Server.URL)),
			logx.String("server.timeout", strings.TrimSpace(newCfg.Server.Timeout)),
			logx.Int("server.max_retries", newCfg.Server.MaxRetries),
			logx.String("server.retry_delay", strings.TrimSpace(newCfg.Server.RetryDelay)),
		)
	}

	// Poll cadence
	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
		attrs = append(attrs,
			logx.String("poll.schedule", strings.TrimSpace(newCfg.Poll.Schedule)),
			logx.Int("poll.error_threshold", newCfg.Poll.ErrorThreshold),
			logx.String("poll.timezone", strings.TrimSpace(newCfg.Poll.Timezone)),
			logx.Bool("poll.skip_initial_run", newCfg.Poll.SkipInitialRun),
		)
	}

	// Card presentation
	if oldCfg.Card != newCfg.Card {
		changed = append(changed, "card")
		attrs = append(attrs,
			logx.Bool("card.title_set", strings.TrimSpace(newCfg.Card.Title) != ""),
			logx.Bool("card.icon_set", strings.TrimSpace(newCfg.Card.IconURL) != ""),
		)
	}

	// Destinations: log counts only, the URLs are secrets.
	if !reflect.DeepEqual(oldCfg.Destinations, newCfg.Destinations) {
		changed = append(changed, "destinations")
		attrs = append(attrs, logx.Int("destinations.count", len(newCfg.Destinations)))
	}

	if oldCfg.Delivery != newCfg.Delivery {
		changed = append(changed, "delivery")
		attrs = append(attrs,
			logx.Int("delivery.rate_per_sec", newCfg.Delivery.RatePerSec),
			logx.String("delivery.bot_name", strings.TrimSpace(newCfg.Delivery.BotName)),
			logx.String("delivery.timeout", strings.TrimSpace(newCfg.Delivery.Timeout)),
		)
	}

	// Telegram: compare token by value so rotation is detected, but only
	// ever log whether one is set.
	var oTok, nTok, oAPI, nAPI string
	if oldCfg.Telegram != nil {
		oTok = strings.TrimSpace(oldCfg.Telegram.Token)
		oAPI = strings.TrimSpace(oldCfg.Telegram.APIURL)
	}
	if newCfg.Telegram != nil {
		nTok = strings.TrimSpace(newCfg.Telegram.Token)
		nAPI = strings.TrimSpace(newCfg.Telegram.APIURL)
	}
	if oTok != nTok || oAPI != nAPI {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Bool("telegram.token_set", nTok != ""),
			logx.Bool("telegram.api_url_set", nAPI != ""),
		)
	}

	// Storage (restart required; nil means file defaults)
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	// Logging
	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Ops: compare token by value so rotation is detected, log set-ness only.
	if oldCfg.Ops.Enabled != newCfg.Ops.Enabled ||
		strings.TrimSpace(oldCfg.Ops.Addr) != strings.TrimSpace(newCfg.Ops.Addr) ||
		oldCfg.Ops.AllowInsecure != newCfg.Ops.AllowInsecure ||
		oldCfg.Ops.Pprof != newCfg.Ops.Pprof ||
		strings.TrimSpace(oldCfg.Ops.ReadTimeout) != strings.TrimSpace(newCfg.Ops.ReadTimeout) ||
		strings.TrimSpace(oldCfg.Ops.WriteTimeout) != strings.TrimSpace(newCfg.Ops.WriteTimeout) ||
		strings.TrimSpace(oldCfg.Ops.IdleTimeout) != strings.TrimSpace(newCfg.Ops.IdleTimeout) ||
		strings.TrimSpace(oldCfg.Ops.Token) != strings.TrimSpace(newCfg.Ops.Token) {
		changed = append(changed, "ops")
		attrs = append(attrs,
			logx.Bool("ops.enabled", newCfg.Ops.Enabled),
			logx.String("ops.addr", strings.TrimSpace(newCfg.Ops.Addr)),
			logx.Bool("ops.token_set", strings.TrimSpace(newCfg.Ops.Token) != ""),
			logx.Bool("ops.allow_insecure", newCfg.Ops.AllowInsecure),
			logx.Bool("ops.pprof", newCfg.Ops.Pprof),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
