package app

import (
	"context"
	"strings"

	"scorebot/internal/config"
	"scorebot/internal/transport/telegram"
	logx "scorebot/pkg/logx"
)

// reloadLoop applies committed config revisions. Bursts are coalesced so a
// rapid series of file writes applies once, with the newest revision.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(8)
	defer a.cfgm.Unsubscribe(sub)

	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			a.applyConfig(ctx, last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	changed := make(map[string]bool, len(sections))
	for _, s := range sections {
		changed[s] = true
	}

	// Logging first so the rest of the apply logs at the new level.
	if changed["logging"] {
		a.logs.Apply(mapLogConfig(newCfg))
	}

	if changed["server"] {
		if srcCfg, err := mapSourceConfig(newCfg); err != nil {
			a.log.Warn("invalid server config; keeping previous", logx.Err(err))
		} else if err := a.client.Apply(srcCfg); err != nil {
			a.log.Warn("server config apply failed; keeping previous", logx.Err(err))
		}
	}

	if changed["poll"] || changed["card"] {
		if pc, err := mapPollConfig(newCfg); err != nil {
			a.log.Warn("invalid poll config; keeping previous", logx.Err(err))
		} else {
			a.ctl.Apply(pc)
		}
		if spec, err := parseSchedule(newCfg); err != nil {
			a.log.Warn("invalid schedule; keeping previous", logx.Err(err))
		} else {
			a.trig.Apply(spec)
		}
	}

	if changed["delivery"] {
		a.engine.Apply(mapDeliverConfig(newCfg))
	}

	if changed["destinations"] || changed["delivery"] || changed["telegram"] {
		a.rebuildSenders(newCfg)
	}

	if changed["storage"] {
		a.log.Warn("storage config changed; restart required for changes to take effect")
	}

	if changed["ops"] {
		if oc, err := mapOpsConfig(newCfg); err != nil {
			a.log.Warn("invalid ops config; keeping previous", logx.Err(err))
		} else {
			a.ops.Reconfigure(ctx, oc)
		}
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

// rebuildSenders swaps the destination set in one shot. The telegram bot is
// reused unless its credentials changed; a failed rebuild keeps the previous
// senders so delivery never goes dark on a bad reload.
func (a *App) rebuildSenders(cfg *config.Config) {
	if hasTelegramDest(cfg) {
		want := mapTelegramConfig(cfg)
		if want.Token == "" {
			a.log.Warn("telegram destinations configured but telegram.token is missing; keeping previous destinations")
			return
		}
		if a.tg == nil || want != a.tgCfg {
			bot, err := telegram.NewBot(want, a.root.With(logx.String("comp", "telegram")))
			if err != nil {
				a.log.Warn("telegram bot init failed; keeping previous destinations", logx.Err(err))
				return
			}
			a.tg = bot
			a.tgCfg = want
			a.log.Info("telegram bot ready")
		}
	}

	senders, err := buildSenders(cfg, a.tg, a.root)
	if err != nil {
		a.log.Warn("destination rebuild failed; keeping previous destinations", logx.Err(err))
		return
	}
	a.engine.SetSenders(senders)
	a.log.Info("destinations updated", logx.Int("count", len(senders)))
}
